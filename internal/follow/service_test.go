package follow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/internal/memstore"
	"socialgraph/internal/relation"
	"socialgraph/internal/social"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, opts Options) (Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	st.AddAccount("alice", false)
	st.AddAccount("bob", false)
	st.AddAccount("carol", true)
	return NewService(st, st, relation.NewResolver(st), opts, discardLogger()), st
}

func TestSendRequest_CreatesPendingEdge(t *testing.T) {
	svc, st := newTestService(t, Options{})
	ctx := context.Background()

	edge, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)
	assert.Equal(t, social.FollowPending, edge.Status)

	stored, err := st.GetFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, edge.ID, stored.ID)
}

func TestSendRequest_DuplicateIsConflict(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, social.ErrConflict)
}

func TestSendRequest_AfterDeclineIsConflict(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	edge, err := svc.Decide(ctx, "alice", "bob", ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, social.FollowDeclined, edge.Status)

	// a declined edge still counts as an existing edge
	_, err = svc.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, social.ErrConflict)
}

func TestSendRequest_ReverseDirectionIsIndependent(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, "bob", "alice")
	assert.NoError(t, err)
}

func TestSendRequest_BlockedEitherWay(t *testing.T) {
	ctx := context.Background()
	for _, dir := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		svc, _ := newTestService(t, Options{})
		_, err := svc.Block(ctx, dir[0], dir[1])
		require.NoError(t, err)

		_, err = svc.SendRequest(ctx, "alice", "bob")
		assert.ErrorIs(t, err, social.ErrForbidden)
		reason, ok := social.ReasonOf(err)
		assert.True(t, ok)
		assert.Equal(t, social.ReasonBlocked, reason)
	}
}

func TestSendRequest_UnknownReceiver(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	_, err := svc.SendRequest(context.Background(), "alice", "nobody")
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestSendRequest_SelfIsInvalid(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	_, err := svc.SendRequest(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, social.ErrInvalidArgument)
}

func TestSendRequest_StorageConflictIsAuthoritative(t *testing.T) {
	svc, st := newTestService(t, Options{})
	// the pre-check passes but the insert loses a race
	st.FailOn("CreateFollow", social.ErrConflict)

	_, err := svc.SendRequest(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, social.ErrConflict)
	assert.NotErrorIs(t, err, social.ErrInfrastructure)
}

func TestSendRequest_StorageFailureIsInfrastructure(t *testing.T) {
	svc, st := newTestService(t, Options{})
	st.FailOn("CreateFollow", errors.New("connection reset"))

	_, err := svc.SendRequest(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, social.ErrInfrastructure)
}

func TestSendRequest_AutoAcceptPublic(t *testing.T) {
	svc, _ := newTestService(t, Options{AutoAcceptPublic: true})
	ctx := context.Background()

	edge, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, social.FollowAccepted, edge.Status)

	edge, err = svc.SendRequest(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, social.FollowPending, edge.Status, "private accounts still review requests")
}

func TestDecide(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	sent, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	edge, err := svc.Decide(ctx, "alice", "bob", ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, edge.ID)
	assert.Equal(t, social.FollowAccepted, edge.Status)

	// decided edges are not pending anymore
	_, err = svc.Decide(ctx, "alice", "bob", ActionDecline)
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestDecide_RequiresExactOrderedPair(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.Decide(ctx, "bob", "alice", ActionAccept)
	assert.ErrorIs(t, err, social.ErrNotFound)

	_, err = svc.Decide(ctx, "alice", "bob", Action("maybe"))
	assert.ErrorIs(t, err, social.ErrInvalidArgument)
}

func TestUnfollowAndCancel(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Unfollow(ctx, "alice", "bob"), social.ErrNotFound, "pending edges are cancelled, not unfollowed")
	require.NoError(t, svc.CancelRequest(ctx, "alice", "bob"))
	assert.ErrorIs(t, svc.CancelRequest(ctx, "alice", "bob"), social.ErrNotFound)

	_, err = svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Decide(ctx, "alice", "bob", ActionAccept)
	require.NoError(t, err)

	require.NoError(t, svc.Unfollow(ctx, "alice", "bob"))
	assert.ErrorIs(t, svc.Unfollow(ctx, "alice", "bob"), social.ErrNotFound)
}

func TestRemoveFollower(t *testing.T) {
	svc, _ := newTestService(t, Options{AutoAcceptPublic: true})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveFollower(ctx, "bob", "alice"))
	followers, err := svc.ListFollowers(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestBlock_RemovesEdgesBothWays(t *testing.T) {
	svc, _ := newTestService(t, Options{AutoAcceptPublic: true})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, "bob", "alice")
	require.NoError(t, err)

	_, err = svc.Block(ctx, "alice", "bob")
	require.NoError(t, err)

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		view, err := svc.Relationship(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, "blocked", view.Kind(), "%s -> %s", pair[0], pair[1])
	}

	counts, err := svc.Counts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, &social.Counts{Username: "alice"}, counts)
}

func TestBlock_DuplicateIsConflict(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.Block(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Block(ctx, "alice", "bob")
	assert.ErrorIs(t, err, social.ErrConflict)

	// the opposite direction is a separate edge
	_, err = svc.Block(ctx, "bob", "alice")
	assert.NoError(t, err)
}

func TestUnblock_DoesNotRestoreFollows(t *testing.T) {
	svc, _ := newTestService(t, Options{AutoAcceptPublic: true})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Block(ctx, "bob", "alice")
	require.NoError(t, err)
	require.NoError(t, svc.Unblock(ctx, "bob", "alice"))

	view, err := svc.Relationship(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, social.NoConnection{}, view)

	assert.ErrorIs(t, svc.Unblock(ctx, "bob", "alice"), social.ErrNotFound)
}

func TestSetCloseFriend(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = svc.SetCloseFriend(ctx, "alice", "bob", true)
	assert.ErrorIs(t, err, social.ErrNotFound, "pending followers cannot be close friends")

	_, err = svc.Decide(ctx, "alice", "bob", ActionAccept)
	require.NoError(t, err)

	edge, err := svc.SetCloseFriend(ctx, "alice", "bob", true)
	require.NoError(t, err)
	assert.True(t, edge.CloseFriend)

	view, err := svc.Relationship(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, social.Following{Status: social.FollowAccepted, CloseFriend: true}, view)
}

func TestListsAndCounts(t *testing.T) {
	svc, st := newTestService(t, Options{})
	st.AddAccount("dave", false)
	ctx := context.Background()

	for _, f := range []string{"alice", "dave"} {
		_, err := svc.SendRequest(ctx, f, "carol")
		require.NoError(t, err)
	}

	requests, err := svc.ListRequests(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, requests, 2)

	_, err = svc.Decide(ctx, "dave", "carol", ActionAccept)
	require.NoError(t, err)

	followers, err := svc.ListFollowers(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"dave"}, followers)

	following, err := svc.ListFollowing(ctx, "dave")
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "carol", following[0].Following)

	counts, err := svc.Counts(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Followers, "pending requests are not counted")

	_, err = svc.Block(ctx, "carol", "alice")
	require.NoError(t, err)
	blocked, err := svc.ListBlocked(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "alice", blocked[0].Blocked)
}
