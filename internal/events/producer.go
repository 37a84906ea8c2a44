package events

import (
	"context"
	"fmt"
	"log/slog"

	"socialgraph/internal/social"
)

// Envelope is an encoded event plus the routing hints a broker may use.
type Envelope struct {
	// PartitionKey groups all events for one target user.
	PartitionKey string
	// DedupeID is stable across republishes of the same action.
	DedupeID string
	Payload  []byte
}

// Publisher writes an encoded event to the durable queue.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Handler processes one delivered message and says what to do with it.
type Handler interface {
	HandleDelivery(ctx context.Context, d Delivery) Disposition
}

// Producer is the thin publisher domain services call after a successful
// action. Publishing is fire-and-forget from the caller's point of view: a
// failure is logged and returned but never rolls back the action.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

// Publish validates and enqueues e.
func (p *Producer) Publish(ctx context.Context, e ActionEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	payload, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	env := Envelope{PartitionKey: e.TargetUser, DedupeID: e.IdempotencyKey(), Payload: payload}
	if err := p.pub.Publish(ctx, env); err != nil {
		p.logger.Error("Failed to publish action event",
			"actionType", e.ActionType,
			"actionCreator", e.ActionCreator,
			"targetUser", e.TargetUser,
			"error", err)
		return social.Infra("publish event", err)
	}
	p.logger.Debug("Action event published",
		"actionType", e.ActionType,
		"actionCreator", e.ActionCreator,
		"targetUser", e.TargetUser)
	return nil
}

// FollowRequested builds the event for a new follow edge. An edge that was
// auto-accepted is announced as follow, a pending one as followRequest.
func FollowRequested(edge *social.FollowEdge) ActionEvent {
	t := social.ActionFollowRequest
	if edge.Status == social.FollowAccepted {
		t = social.ActionFollow
	}
	return ActionEvent{
		ActionCreator:  edge.Follower,
		ActionType:     t,
		TargetEntityID: edge.ID,
		TargetUser:     edge.Following,
	}
}

// FollowDecided builds the event answering a follow request. It keeps the
// orientation of the request (creator = requester, target = decider) so the
// consumer can find the request notification by the same pair.
func FollowDecided(edge *social.FollowEdge) ActionEvent {
	t := social.ActionFollowDeclined
	if edge.Status == social.FollowAccepted {
		t = social.ActionFollowAccepted
	}
	return ActionEvent{
		ActionCreator:  edge.Follower,
		ActionType:     t,
		TargetEntityID: edge.ID,
		TargetUser:     edge.Following,
	}
}

// Liked builds the audience event for a new like. Followers of the post owner
// are notified, narrowed to close friends for close-friends-only posts. The
// like row id keeps a like after an unlike distinct from the first one.
func Liked(like *social.Like, content *social.Content) ActionEvent {
	return ActionEvent{
		ActionCreator:  like.Username,
		ActionType:     social.ActionLike,
		TargetEntityID: content.ID,
		TargetUser:     content.Owner,
		CheckClose:     content.CloseFriendsOnly,
		ActionID:       like.ID,
	}
}

// Commented builds the event telling the post owner about a new comment.
func Commented(comment *social.Comment, content *social.Content) ActionEvent {
	return ActionEvent{
		ActionCreator:  comment.Username,
		ActionType:     social.ActionComment,
		TargetEntityID: comment.ID,
		TargetUser:     content.Owner,
	}
}

// Mentioned builds the event for one @username in a comment body.
func Mentioned(comment *social.Comment, username string) ActionEvent {
	return ActionEvent{
		ActionCreator:  comment.Username,
		ActionType:     social.ActionMention,
		TargetEntityID: comment.ID,
		TargetUser:     username,
	}
}
