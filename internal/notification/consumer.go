// Package notification turns action events into notifications: the queue
// side fans events out to recipients, the HTTP side lets recipients read them.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"socialgraph/internal/events"
	"socialgraph/internal/social"
)

// errNotYet marks a decision event whose followRequest notification has not
// been written yet. The event is retried, not dropped.
var errNotYet = errors.New("follow request notification not written yet")

// Options tunes the consumer.
type Options struct {
	// Dedupe stores an idempotency key on each notification so a redelivered
	// event reuses the existing row. With Dedupe off every delivery writes a
	// new notification and new recipient rows.
	Dedupe bool
	// MaxRedeliveries bounds retries of errNotYet before dead-lettering.
	MaxRedeliveries int
	// BatchSize is the follower page size for audience fan-out.
	BatchSize int
}

// FanoutConsumer processes one action event at a time. It holds no
// per-message state, so one instance can serve many workers.
type FanoutConsumer struct {
	notifications social.NotificationStore
	relationships social.RelationshipStore
	tracker       Tracker
	metrics       *Metrics
	opts          Options
	logger        *slog.Logger
}

// NewFanoutConsumer builds a consumer. tracker may be nil.
func NewFanoutConsumer(
	notifications social.NotificationStore,
	relationships social.RelationshipStore,
	tracker Tracker,
	metrics *Metrics,
	opts Options,
	logger *slog.Logger,
) *FanoutConsumer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.MaxRedeliveries <= 0 {
		opts.MaxRedeliveries = 10
	}
	return &FanoutConsumer{
		notifications: notifications,
		relationships: relationships,
		tracker:       tracker,
		metrics:       metrics,
		opts:          opts,
		logger:        logger,
	}
}

var _ events.Handler = (*FanoutConsumer)(nil)

// HandleDelivery decodes a delivered message, processes it and tells the
// queue adapter what to do with it. It never panics on bad input and never
// acks a message whose fan-out failed.
func (c *FanoutConsumer) HandleDelivery(ctx context.Context, d events.Delivery) events.Disposition {
	e, err := events.Decode(d.Payload)
	if err != nil {
		c.logger.Error("Discarding undecodable action event",
			"error", err,
			"raw_value", string(d.Payload))
		c.metrics.Events.WithLabelValues("unknown", events.DeadLetter.String()).Inc()
		return events.DeadLetter
	}

	disposition := c.handle(ctx, e, d.Attempt)
	c.metrics.Events.WithLabelValues(string(e.ActionType), disposition.String()).Inc()
	return disposition
}

func (c *FanoutConsumer) handle(ctx context.Context, e events.ActionEvent, attempt int) events.Disposition {
	key := e.IdempotencyKey()
	if c.opts.Dedupe && c.tracker != nil {
		processed, err := c.tracker.IsProcessed(ctx, key)
		if err != nil {
			// the database constraint still deduplicates
			c.logger.Warn("Processed marker lookup failed", "error", err)
		} else if processed {
			c.logger.Info("Duplicate action event detected, skipping",
				"actionType", e.ActionType,
				"actionCreator", e.ActionCreator,
				"targetUser", e.TargetUser)
			c.metrics.Duplicates.Inc()
			return events.Ack
		}
	}

	start := time.Now()
	err := c.Process(ctx, e)
	c.metrics.Duration.WithLabelValues(string(e.ActionType)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		if c.opts.Dedupe && c.tracker != nil {
			if _, err := c.tracker.MarkProcessed(ctx, key, e); err != nil {
				c.logger.Warn("Failed to mark action event processed", "error", err)
			}
		}
		return events.Ack

	case errors.Is(err, errNotYet):
		if attempt >= c.opts.MaxRedeliveries {
			c.logger.Error("Giving up on follow decision without request notification",
				"actionType", e.ActionType,
				"actionCreator", e.ActionCreator,
				"targetUser", e.TargetUser,
				"attempt", attempt)
			return events.DeadLetter
		}
		c.logger.Warn("Follow request notification not found yet, will retry",
			"actionType", e.ActionType,
			"actionCreator", e.ActionCreator,
			"targetUser", e.TargetUser,
			"attempt", attempt)
		return events.Requeue

	case errors.Is(err, social.ErrInfrastructure):
		c.logger.Error("Fan-out failed, leaving message for redelivery",
			"actionType", e.ActionType,
			"actionCreator", e.ActionCreator,
			"targetUser", e.TargetUser,
			"attempt", attempt,
			"error", err)
		return events.Requeue

	default:
		c.logger.Error("Action event rejected",
			"actionType", e.ActionType,
			"actionCreator", e.ActionCreator,
			"error", err)
		return events.DeadLetter
	}
}

// Process applies one event to the stores. Decision events update the
// original request notification; every other event creates a notification
// and fans it out.
func (c *FanoutConsumer) Process(ctx context.Context, e events.ActionEvent) error {
	if e.ActionType.IsDecision() {
		return c.applyDecision(ctx, e)
	}

	n := &social.Notification{
		ActionCreator:  e.ActionCreator,
		ActionType:     e.ActionType,
		TargetEntityID: e.TargetEntityID,
		TargetUser:     e.TargetUser,
	}
	if e.ActionType == social.ActionFollowRequest {
		n.Outcome = social.OutcomePending
	}
	if c.opts.Dedupe {
		n.IdempotencyKey = e.IdempotencyKey()
	}

	created, err := c.notifications.CreateNotification(ctx, n)
	if err != nil {
		return social.Infra("create notification", err)
	}
	if !created {
		// a previous attempt may have stopped halfway; recipient writes skip
		// existing rows so finishing the fan-out is safe
		c.logger.Debug("Notification exists, resuming fan-out", "notification_id", n.ID)
	}

	var written int64
	if audienceAction(e.ActionType) {
		written, err = c.fanOutToFollowers(ctx, n.ID, e)
	} else {
		written, err = c.fanOutDirect(ctx, n.ID, e)
	}
	c.metrics.Recipients.WithLabelValues(string(e.ActionType)).Add(float64(written))
	if err != nil {
		return err
	}

	c.logger.Info("Action event fanned out",
		"actionType", e.ActionType,
		"actionCreator", e.ActionCreator,
		"targetUser", e.TargetUser,
		"notification_id", n.ID,
		"recipients", written)
	return nil
}

// audienceAction reports whether t is delivered to the target's followers
// rather than to the target.
func audienceAction(t social.ActionType) bool {
	return t == social.ActionLike
}

func (c *FanoutConsumer) fanOutDirect(ctx context.Context, notificationID string, e events.ActionEvent) (int64, error) {
	if e.TargetUser == e.ActionCreator {
		return 0, nil
	}
	blocked, err := c.relationships.BlockedAmong(ctx, e.ActionCreator, []string{e.TargetUser})
	if err != nil {
		return 0, social.Infra("check blocks", err)
	}
	if blocked[e.TargetUser] {
		c.logger.Info("Dropping notification across a block",
			"actionType", e.ActionType,
			"actionCreator", e.ActionCreator,
			"targetUser", e.TargetUser)
		return 0, nil
	}
	n, err := c.notifications.AddRecipients(ctx, notificationID, []string{e.TargetUser})
	if err != nil {
		return 0, social.Infra("add recipient", err)
	}
	return n, nil
}

func (c *FanoutConsumer) fanOutToFollowers(ctx context.Context, notificationID string, e events.ActionEvent) (int64, error) {
	var written int64
	err := c.relationships.StreamFollowers(ctx, e.TargetUser, e.CheckClose, c.opts.BatchSize, func(batch []string) error {
		// a block either way with the actor overrides the follow
		blocked, err := c.relationships.BlockedAmong(ctx, e.ActionCreator, batch)
		if err != nil {
			return err
		}
		recipients := make([]string, 0, len(batch))
		for _, u := range batch {
			if u != e.ActionCreator && !blocked[u] {
				recipients = append(recipients, u)
			}
		}
		if len(recipients) == 0 {
			return nil
		}
		n, err := c.notifications.AddRecipients(ctx, notificationID, recipients)
		written += n
		return err
	})
	if err != nil {
		return written, social.Infra("fan out to followers", err)
	}
	return written, nil
}

func (c *FanoutConsumer) applyDecision(ctx context.Context, e events.ActionEvent) error {
	outcome := social.OutcomeDeclined
	if e.ActionType == social.ActionFollowAccepted {
		outcome = social.OutcomeAccepted
	}

	n, err := c.notifications.FindFollowRequest(ctx, e.ActionCreator, e.TargetUser, e.TargetEntityID)
	if errors.Is(err, social.ErrNotFound) {
		return fmt.Errorf("%w: %s -> %s", errNotYet, e.ActionCreator, e.TargetUser)
	}
	if err != nil {
		return social.Infra("find follow request", err)
	}

	if err := c.notifications.SetOutcome(ctx, n.ID, outcome); err != nil {
		return social.Infra("set outcome", err)
	}

	c.logger.Info("Follow request notification updated",
		"notification_id", n.ID,
		"actionCreator", e.ActionCreator,
		"targetUser", e.TargetUser,
		"outcome", outcome)
	return nil
}
