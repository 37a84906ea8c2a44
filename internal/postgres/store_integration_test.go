//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"socialgraph/internal/database"
	"socialgraph/internal/social"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("social"),
		tcpostgres.WithUsername("social"),
		tcpostgres.WithPassword("social"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.New(ctx, url, 4, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	// migrating twice must be harmless
	require.NoError(t, db.Migrate(ctx))
	return New(db)
}

func TestStore_FollowLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	edge := &social.FollowEdge{Follower: "alice", Following: "bob", Status: social.FollowPending}
	require.NoError(t, s.CreateFollow(ctx, edge))

	err := s.CreateFollow(ctx, &social.FollowEdge{Follower: "alice", Following: "bob", Status: social.FollowPending})
	assert.ErrorIs(t, err, social.ErrConflict)

	_, err = s.TransitionFollow(ctx, "alice", "bob", social.FollowAccepted, social.FollowDeclined)
	assert.ErrorIs(t, err, social.ErrNotFound)

	got, err := s.TransitionFollow(ctx, "alice", "bob", social.FollowPending, social.FollowAccepted)
	require.NoError(t, err)
	assert.Equal(t, social.FollowAccepted, got.Status)
	assert.Equal(t, edge.ID, got.ID)

	got, err = s.SetCloseFriend(ctx, "alice", "bob", true)
	require.NoError(t, err)
	assert.True(t, got.CloseFriend)

	followers, err := s.CountFollowers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), followers)

	require.NoError(t, s.DeleteFollow(ctx, "alice", "bob", social.FollowAccepted))
	assert.ErrorIs(t, s.DeleteFollow(ctx, "alice", "bob", social.FollowAccepted), social.ErrNotFound)
}

func TestStore_SelfFollowRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateFollow(context.Background(), &social.FollowEdge{Follower: "alice", Following: "alice", Status: social.FollowPending})
	assert.ErrorIs(t, err, social.ErrInvalidArgument)
}

func TestStore_BlockRemovesFollowsBothWays(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateFollow(ctx, &social.FollowEdge{Follower: "alice", Following: "bob", Status: social.FollowAccepted}))
	require.NoError(t, s.CreateFollow(ctx, &social.FollowEdge{Follower: "bob", Following: "alice", Status: social.FollowPending}))

	require.NoError(t, s.CreateBlock(ctx, &social.BlockEdge{Blocker: "bob", Blocked: "alice"}))
	assert.ErrorIs(t, s.CreateBlock(ctx, &social.BlockEdge{Blocker: "bob", Blocked: "alice"}), social.ErrConflict)

	_, err := s.GetFollow(ctx, "alice", "bob")
	assert.ErrorIs(t, err, social.ErrNotFound)
	_, err = s.GetFollow(ctx, "bob", "alice")
	assert.ErrorIs(t, err, social.ErrNotFound)

	blocked, err := s.BlockExists(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, s.DeleteBlock(ctx, "bob", "alice"))
	assert.ErrorIs(t, s.DeleteBlock(ctx, "bob", "alice"), social.ErrNotFound)
}

func TestStore_BlockedAmong(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateBlock(ctx, &social.BlockEdge{Blocker: "liker", Blocked: "f1"}))
	require.NoError(t, s.CreateBlock(ctx, &social.BlockEdge{Blocker: "f3", Blocked: "liker"}))
	require.NoError(t, s.CreateBlock(ctx, &social.BlockEdge{Blocker: "f2", Blocked: "someone"}))

	blocked, err := s.BlockedAmong(ctx, "liker", []string{"f1", "f2", "f3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"f1": true, "f3": true}, blocked)

	blocked, err = s.BlockedAmong(ctx, "liker", nil)
	require.NoError(t, err)
	assert.Empty(t, blocked)
}

func TestStore_StreamFollowersPages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, u := range []string{"f1", "f2", "f3", "f4", "f5"} {
		edge := &social.FollowEdge{Follower: u, Following: "owner", Status: social.FollowAccepted, CloseFriend: i%2 == 0}
		require.NoError(t, s.CreateFollow(ctx, edge))
	}
	require.NoError(t, s.CreateFollow(ctx, &social.FollowEdge{Follower: "p1", Following: "owner", Status: social.FollowPending}))

	var batches [][]string
	err := s.StreamFollowers(ctx, "owner", false, 2, func(b []string) error {
		batches = append(batches, b)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"f1", "f2"}, {"f3", "f4"}, {"f5"}}, batches)

	var close []string
	err = s.StreamFollowers(ctx, "owner", true, 10, func(b []string) error {
		close = append(close, b...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f3", "f5"}, close)
}

func TestStore_NotificationIdempotency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := &social.Notification{ActionCreator: "alice", ActionType: social.ActionComment, TargetEntityID: "c1", TargetUser: "bob", IdempotencyKey: "k1"}
	created, err := s.CreateNotification(ctx, n)
	require.NoError(t, err)
	assert.True(t, created)

	again := &social.Notification{ActionCreator: "alice", ActionType: social.ActionComment, TargetEntityID: "c1", TargetUser: "bob", IdempotencyKey: "k1"}
	created, err = s.CreateNotification(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, n.ID, again.ID)

	// unkeyed rows never collide
	for range 2 {
		created, err = s.CreateNotification(ctx, &social.Notification{ActionCreator: "alice", ActionType: social.ActionComment, TargetUser: "bob"})
		require.NoError(t, err)
		assert.True(t, created)
	}

	written, err := s.AddRecipients(ctx, n.ID, []string{"bob", "carol"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), written)
	written, err = s.AddRecipients(ctx, n.ID, []string{"bob", "carol", "dave"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	_, err = s.AddRecipients(ctx, "00000000-0000-0000-0000-000000000000", []string{"bob"})
	assert.ErrorIs(t, err, social.ErrNotFound)

	items, err := s.ListInbox(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, n.ID, items[0].ID)

	unseen, err := s.CountUnseen(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unseen)

	require.NoError(t, s.MarkSeen(ctx, "bob", n.ID))
	unseen, err = s.CountUnseen(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, unseen)
	assert.ErrorIs(t, s.MarkSeen(ctx, "erin", n.ID), social.ErrNotFound)
}

func TestStore_FollowRequestOutcome(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.FindFollowRequest(ctx, "alice", "bob", "")
	assert.ErrorIs(t, err, social.ErrNotFound)

	n := &social.Notification{ActionCreator: "alice", ActionType: social.ActionFollowRequest, TargetEntityID: "e1", TargetUser: "bob", Outcome: social.OutcomePending}
	_, err = s.CreateNotification(ctx, n)
	require.NoError(t, err)

	found, err := s.FindFollowRequest(ctx, "alice", "bob", "e1")
	require.NoError(t, err)
	require.NoError(t, s.SetOutcome(ctx, found.ID, social.OutcomeAccepted))

	found, err = s.FindFollowRequest(ctx, "alice", "bob", "")
	require.NoError(t, err)
	assert.Equal(t, social.OutcomeAccepted, found.Outcome)
}

func TestStore_DirectoryAndPosts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertAccount(ctx, "bob", true))
	exists, err := s.Exists(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, exists)
	private, err := s.IsPrivate(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, private)
	_, err = s.IsPrivate(ctx, "nobody")
	assert.ErrorIs(t, err, social.ErrNotFound)

	require.NoError(t, s.UpsertContent(ctx, social.Content{ID: "p1", Owner: "bob", CloseFriendsOnly: true}))
	c, err := s.Lookup(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "bob", c.Owner)
	assert.True(t, c.CloseFriendsOnly)

	require.NoError(t, s.CreateLike(ctx, &social.Like{PostID: "p1", Username: "alice"}))
	assert.ErrorIs(t, s.CreateLike(ctx, &social.Like{PostID: "p1", Username: "alice"}), social.ErrConflict)
	cnt, err := s.CountLikes(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cnt)

	cm := &social.Comment{PostID: "p1", Username: "alice", Body: "hi"}
	require.NoError(t, s.CreateComment(ctx, cm))
	_, err = s.UpdateComment(ctx, cm.ID, "mallory", "x")
	assert.ErrorIs(t, err, social.ErrNotFound)
	updated, err := s.UpdateComment(ctx, cm.ID, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Body)

	list, err := s.ListComments(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.NoError(t, s.DeleteComment(ctx, cm.ID, "alice"))
}
