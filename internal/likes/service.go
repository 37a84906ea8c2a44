// Package likes lets accounts like posts they are allowed to see and
// announces new likes to the owner's audience.
package likes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"socialgraph/internal/events"
	"socialgraph/internal/relation"
	"socialgraph/internal/social"
)

// EventPublisher enqueues action events after a successful mutation.
type EventPublisher interface {
	Publish(ctx context.Context, e events.ActionEvent) error
}

type Service interface {
	// Like records the like and reports whether it is new. Only a new like
	// is published.
	Like(ctx context.Context, username, postID string) (*social.Like, bool, error)
	Unlike(ctx context.Context, username, postID string) error
	Count(ctx context.Context, viewer, postID string) (int64, error)
	IsLiked(ctx context.Context, username, postID string) (bool, error)
}

type service struct {
	store  social.LikeStore
	guard  *relation.Guard
	events EventPublisher
	logger *slog.Logger
}

func NewService(store social.LikeStore, guard *relation.Guard, publisher EventPublisher, logger *slog.Logger) Service {
	return &service{store: store, guard: guard, events: publisher, logger: logger}
}

// authorize resolves the post and checks that viewer may see it. A block is
// reported as not-found.
func (s *service) authorize(ctx context.Context, viewer, postID string) (*social.Content, error) {
	if err := social.ValidateUsername(viewer); err != nil {
		return nil, err
	}
	if postID == "" {
		return nil, fmt.Errorf("%w: post id is required", social.ErrInvalidArgument)
	}

	d, content, err := s.guard.CanView(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, fmt.Errorf("post %q: %w", postID, d.MaskedErr())
	}
	return content, nil
}

func (s *service) Like(ctx context.Context, username, postID string) (*social.Like, bool, error) {
	content, err := s.authorize(ctx, username, postID)
	if err != nil {
		return nil, false, err
	}

	like := &social.Like{PostID: postID, Username: username}
	if err := s.store.CreateLike(ctx, like); err != nil {
		if errors.Is(err, social.ErrConflict) {
			return like, false, nil
		}
		return nil, false, social.Infra("create like", err)
	}

	if err := s.events.Publish(ctx, events.Liked(like, content)); err != nil {
		s.logger.Warn("Like event dropped",
			"post_id", postID,
			"username", username,
			"error", err)
	}
	return like, true, nil
}

func (s *service) Unlike(ctx context.Context, username, postID string) error {
	if err := social.ValidateUsername(username); err != nil {
		return err
	}
	if err := s.store.DeleteLike(ctx, username, postID); err != nil {
		return social.Infra("delete like", err)
	}
	return nil
}

func (s *service) Count(ctx context.Context, viewer, postID string) (int64, error) {
	if _, err := s.authorize(ctx, viewer, postID); err != nil {
		return 0, err
	}
	cnt, err := s.store.CountLikes(ctx, postID)
	if err != nil {
		return 0, social.Infra("count likes", err)
	}
	return cnt, nil
}

func (s *service) IsLiked(ctx context.Context, username, postID string) (bool, error) {
	if err := social.ValidateUsername(username); err != nil {
		return false, err
	}
	liked, err := s.store.HasLiked(ctx, username, postID)
	if err != nil {
		return false, social.Infra("has liked", err)
	}
	return liked, nil
}
