package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialgraph/internal/events"
	"socialgraph/internal/memstore"
	"socialgraph/internal/social"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTracker struct {
	processed map[string]bool
	err       error
}

func (f *fakeTracker) IsProcessed(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.processed[key], nil
}

func (f *fakeTracker) MarkProcessed(_ context.Context, key string, _ events.ActionEvent) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.processed[key] {
		return false, nil
	}
	f.processed[key] = true
	return true, nil
}

type fixture struct {
	store    *memstore.Store
	consumer *FanoutConsumer
	metrics  *Metrics
}

func newFixture(t *testing.T, opts Options, tracker Tracker) *fixture {
	t.Helper()
	st := memstore.New()
	m := NewMetrics(prometheus.NewRegistry())
	return &fixture{
		store:    st,
		consumer: NewFanoutConsumer(st, st, tracker, m, opts, discardLogger()),
		metrics:  m,
	}
}

func (f *fixture) follow(t *testing.T, follower, owner string, closeFriend bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateFollow(ctx, &social.FollowEdge{Follower: follower, Following: owner, Status: social.FollowAccepted}))
	if closeFriend {
		_, err := f.store.SetCloseFriend(ctx, follower, owner, true)
		require.NoError(t, err)
	}
}

func (f *fixture) deliver(t *testing.T, e events.ActionEvent, attempt int) events.Disposition {
	t.Helper()
	payload, err := e.Encode()
	require.NoError(t, err)
	return f.consumer.HandleDelivery(context.Background(), events.Delivery{Payload: payload, Attempt: attempt})
}

func recipientsOf(st *memstore.Store) []string {
	var out []string
	for _, r := range st.Recipients() {
		out = append(out, r.Username)
	}
	return out
}

func TestFanout_CloseFriendFiltering(t *testing.T) {
	for _, tc := range []struct {
		name       string
		checkClose bool
		want       []string
	}{
		{"close friends only", true, []string{"f1"}},
		{"all followers", false, []string{"f1", "f2"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{Dedupe: true}, nil)
			f.follow(t, "f1", "owner", true)
			f.follow(t, "f2", "owner", false)

			d := f.deliver(t, events.ActionEvent{
				ActionCreator:  "liker",
				ActionType:     social.ActionLike,
				TargetEntityID: "post-1",
				TargetUser:     "owner",
				CheckClose:     tc.checkClose,
			}, 1)

			assert.Equal(t, events.Ack, d)
			assert.ElementsMatch(t, tc.want, recipientsOf(f.store))
			assert.Len(t, f.store.Notifications(), 1)
		})
	}
}

func TestFanout_PendingFollowersExcluded(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)
	f.follow(t, "f1", "owner", false)
	require.NoError(t, f.store.CreateFollow(context.Background(), &social.FollowEdge{Follower: "f2", Following: "owner", Status: social.FollowPending}))

	f.deliver(t, events.ActionEvent{ActionCreator: "liker", ActionType: social.ActionLike, TargetEntityID: "p", TargetUser: "owner"}, 1)

	assert.Equal(t, []string{"f1"}, recipientsOf(f.store))
}

func TestFanout_BlockedFollowersExcluded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Dedupe: true, BatchSize: 2}, nil)
	for _, u := range []string{"f1", "f2", "f3"} {
		f.follow(t, u, "owner", false)
	}
	require.NoError(t, f.store.CreateBlock(ctx, &social.BlockEdge{Blocker: "liker", Blocked: "f1"}))
	require.NoError(t, f.store.CreateBlock(ctx, &social.BlockEdge{Blocker: "f3", Blocked: "liker"}))

	d := f.deliver(t, events.ActionEvent{ActionCreator: "liker", ActionType: social.ActionLike, TargetEntityID: "p", TargetUser: "owner"}, 1)

	assert.Equal(t, events.Ack, d)
	assert.Equal(t, []string{"f2"}, recipientsOf(f.store))
}

func TestFanout_DirectActionAcrossBlockDropped(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)
	require.NoError(t, f.store.CreateBlock(context.Background(), &social.BlockEdge{Blocker: "bob", Blocked: "alice"}))

	d := f.deliver(t, events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionMention, TargetEntityID: "c", TargetUser: "bob"}, 1)

	assert.Equal(t, events.Ack, d)
	assert.Empty(t, recipientsOf(f.store))
}

func TestFanout_BlockLookupFailureRequeues(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)
	f.follow(t, "f1", "owner", false)
	f.store.FailOn("BlockedAmong", errors.New("connection reset"))

	d := f.deliver(t, events.ActionEvent{ActionCreator: "liker", ActionType: social.ActionLike, TargetEntityID: "p", TargetUser: "owner"}, 1)

	assert.Equal(t, events.Requeue, d)
	assert.Empty(t, recipientsOf(f.store))
}

func TestFanout_BatchesFollowers(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true, BatchSize: 1}, nil)
	for _, u := range []string{"a1", "a2", "a3"} {
		f.follow(t, u, "owner", false)
	}

	d := f.deliver(t, events.ActionEvent{ActionCreator: "liker", ActionType: social.ActionLike, TargetEntityID: "p", TargetUser: "owner"}, 1)

	assert.Equal(t, events.Ack, d)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, recipientsOf(f.store))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Recipients.WithLabelValues("like")))
}

func TestFanout_DirectActions(t *testing.T) {
	for _, at := range []social.ActionType{social.ActionFollow, social.ActionFollowRequest, social.ActionMention, social.ActionComment} {
		t.Run(string(at), func(t *testing.T) {
			f := newFixture(t, Options{Dedupe: true}, nil)
			f.follow(t, "f1", "bob", false)

			d := f.deliver(t, events.ActionEvent{ActionCreator: "alice", ActionType: at, TargetEntityID: "x", TargetUser: "bob"}, 1)

			assert.Equal(t, events.Ack, d)
			assert.Equal(t, []string{"bob"}, recipientsOf(f.store), "direct actions never reach followers")
		})
	}
}

func TestFanout_SelfNotificationsSuppressed(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)
	f.follow(t, "alice", "bob", false)
	f.follow(t, "carol", "bob", false)

	f.deliver(t, events.ActionEvent{ActionCreator: "bob", ActionType: social.ActionComment, TargetEntityID: "p", TargetUser: "bob"}, 1)
	f.deliver(t, events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionLike, TargetEntityID: "p", TargetUser: "bob"}, 1)

	assert.Equal(t, []string{"carol"}, recipientsOf(f.store))
}

func TestFanout_FollowRequestOutcome(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)

	request := events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionFollowRequest, TargetEntityID: "edge-1", TargetUser: "bob"}
	require.Equal(t, events.Ack, f.deliver(t, request, 1))

	notes := f.store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, social.OutcomePending, notes[0].Outcome)

	accepted := request
	accepted.ActionType = social.ActionFollowAccepted
	require.Equal(t, events.Ack, f.deliver(t, accepted, 1))

	notes = f.store.Notifications()
	require.Len(t, notes, 1, "acceptance updates the request notification in place")
	assert.Equal(t, social.OutcomeAccepted, notes[0].Outcome)
	assert.Equal(t, social.ActionFollowRequest, notes[0].ActionType)
	assert.Len(t, f.store.Recipients(), 1, "acceptance adds no fan-out rows")
}

func TestFanout_FollowDeclinedOutcome(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)
	request := events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionFollowRequest, TargetEntityID: "edge-1", TargetUser: "bob"}
	require.Equal(t, events.Ack, f.deliver(t, request, 1))

	declined := request
	declined.ActionType = social.ActionFollowDeclined
	require.Equal(t, events.Ack, f.deliver(t, declined, 1))

	assert.Equal(t, social.OutcomeDeclined, f.store.Notifications()[0].Outcome)
}

func TestFanout_DecisionBeforeRequestIsRetried(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true, MaxRedeliveries: 3}, nil)
	accepted := events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionFollowAccepted, TargetEntityID: "edge-1", TargetUser: "bob"}

	assert.Equal(t, events.Requeue, f.deliver(t, accepted, 1))
	assert.Empty(t, f.store.Notifications())

	// the request arrives late, the retry then succeeds
	request := accepted
	request.ActionType = social.ActionFollowRequest
	require.Equal(t, events.Ack, f.deliver(t, request, 1))
	assert.Equal(t, events.Ack, f.deliver(t, accepted, 2))
	assert.Equal(t, social.OutcomeAccepted, f.store.Notifications()[0].Outcome)
}

func TestFanout_DecisionDeadLetteredAfterMaxRedeliveries(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true, MaxRedeliveries: 3}, nil)
	accepted := events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionFollowAccepted, TargetEntityID: "edge-1", TargetUser: "bob"}

	assert.Equal(t, events.Requeue, f.deliver(t, accepted, 2))
	assert.Equal(t, events.DeadLetter, f.deliver(t, accepted, 3))
}

func TestFanout_InfrastructureFailureRequeues(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)
	f.follow(t, "f1", "owner", false)
	f.follow(t, "f2", "owner", false)
	like := events.ActionEvent{ActionCreator: "liker", ActionType: social.ActionLike, TargetEntityID: "p", TargetUser: "owner"}

	f.store.FailOn("AddRecipients", errors.New("connection reset"))
	assert.Equal(t, events.Requeue, f.deliver(t, like, 1))
	assert.Len(t, f.store.Notifications(), 1, "partial work is left in place")

	f.store.FailOn("AddRecipients", nil)
	assert.Equal(t, events.Ack, f.deliver(t, like, 2))
	assert.Len(t, f.store.Notifications(), 1)
	assert.ElementsMatch(t, []string{"f1", "f2"}, recipientsOf(f.store))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Events.WithLabelValues("like", "requeue")))
}

func TestFanout_StoreDownRequeues(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)
	f.store.FailOn("CreateNotification", errors.New("too many connections"))

	d := f.deliver(t, events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionComment, TargetEntityID: "p", TargetUser: "bob"}, 1)
	assert.Equal(t, events.Requeue, d)
}

func TestFanout_PoisonMessageDeadLettered(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)

	for _, payload := range []string{`not json`, `{"actionCreator":"alice","actionType":"poke","targetUser":"bob"}`} {
		d := f.consumer.HandleDelivery(context.Background(), events.Delivery{Payload: []byte(payload), Attempt: 1})
		assert.Equal(t, events.DeadLetter, d, payload)
	}
	assert.Empty(t, f.store.Notifications())
}

func TestFanout_RedeliveryWithDedupeIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, nil)
	f.follow(t, "f1", "owner", false)
	like := events.ActionEvent{ActionCreator: "liker", ActionType: social.ActionLike, TargetEntityID: "p", TargetUser: "owner"}

	require.Equal(t, events.Ack, f.deliver(t, like, 1))
	require.Equal(t, events.Ack, f.deliver(t, like, 2))

	assert.Len(t, f.store.Notifications(), 1)
	assert.Equal(t, []string{"f1"}, recipientsOf(f.store))
}

func TestFanout_RepeatedLikeIsNotARedelivery(t *testing.T) {
	f := newFixture(t, Options{Dedupe: true}, &fakeTracker{processed: map[string]bool{}})
	f.follow(t, "f1", "owner", false)
	like := events.ActionEvent{ActionCreator: "liker", ActionType: social.ActionLike, TargetEntityID: "p", TargetUser: "owner", ActionID: "like-1"}
	relike := like
	relike.ActionID = "like-2"

	require.Equal(t, events.Ack, f.deliver(t, like, 1))
	require.Equal(t, events.Ack, f.deliver(t, relike, 1))

	assert.Len(t, f.store.Notifications(), 2)
	assert.Equal(t, []string{"f1", "f1"}, recipientsOf(f.store))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Duplicates))
}

// Known defect of the legacy mode kept behind NOTIFY_DEDUPE=false: a
// redelivered event is processed again and duplicates every row. This test
// pins that behavior so a change to it is deliberate.
func TestFanout_RedeliveryWithoutDedupeDuplicatesRows(t *testing.T) {
	f := newFixture(t, Options{Dedupe: false}, nil)
	comment := events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionComment, TargetEntityID: "p", TargetUser: "bob"}

	require.Equal(t, events.Ack, f.deliver(t, comment, 1))
	require.Equal(t, events.Ack, f.deliver(t, comment, 2))

	assert.Len(t, f.store.Notifications(), 2)
	assert.Equal(t, []string{"bob", "bob"}, recipientsOf(f.store))
}

func TestFanout_TrackerShortCircuitsDuplicates(t *testing.T) {
	tracker := &fakeTracker{processed: map[string]bool{}}
	f := newFixture(t, Options{Dedupe: true}, tracker)
	comment := events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionComment, TargetEntityID: "p", TargetUser: "bob"}

	require.Equal(t, events.Ack, f.deliver(t, comment, 1))
	assert.True(t, tracker.processed[comment.IdempotencyKey()])

	f.store.FailOn("CreateNotification", errors.New("must not be called"))
	assert.Equal(t, events.Ack, f.deliver(t, comment, 2))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Duplicates))
}

func TestFanout_TrackerOutageFallsBackToDatabase(t *testing.T) {
	tracker := &fakeTracker{processed: map[string]bool{}, err: errors.New("redis down")}
	f := newFixture(t, Options{Dedupe: true}, tracker)
	comment := events.ActionEvent{ActionCreator: "alice", ActionType: social.ActionComment, TargetEntityID: "p", TargetUser: "bob"}

	require.Equal(t, events.Ack, f.deliver(t, comment, 1))
	require.Equal(t, events.Ack, f.deliver(t, comment, 2))
	assert.Equal(t, []string{"bob"}, recipientsOf(f.store))
}
