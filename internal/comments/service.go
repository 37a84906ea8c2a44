// Package comments stores comments on posts and notifies the post owner and
// any mentioned accounts.
package comments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"socialgraph/internal/events"
	"socialgraph/internal/relation"
	"socialgraph/internal/social"
)

// EventPublisher enqueues action events after a successful mutation.
type EventPublisher interface {
	Publish(ctx context.Context, e events.ActionEvent) error
}

type Service interface {
	Create(ctx context.Context, username string, req CreateCommentRequest) (*social.Comment, error)
	Update(ctx context.Context, username, commentID, body string) (*social.Comment, error)
	Delete(ctx context.Context, username, commentID string) error
	ListByPost(ctx context.Context, viewer, postID string) ([]social.Comment, error)
}

type service struct {
	store    social.CommentStore
	accounts social.AccountDirectory
	resolver *relation.Resolver
	guard    *relation.Guard
	events   EventPublisher
	logger   *slog.Logger
}

func NewService(
	store social.CommentStore,
	accounts social.AccountDirectory,
	resolver *relation.Resolver,
	guard *relation.Guard,
	publisher EventPublisher,
	logger *slog.Logger,
) Service {
	return &service{
		store:    store,
		accounts: accounts,
		resolver: resolver,
		guard:    guard,
		events:   publisher,
		logger:   logger,
	}
}

func (s *service) authorize(ctx context.Context, viewer, postID string) (*social.Content, error) {
	if err := social.ValidateUsername(viewer); err != nil {
		return nil, err
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

func validBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", fmt.Errorf("%w: comment body is empty", social.ErrInvalidArgument)
	}
	return body, nil
}

func (s *service) Create(ctx context.Context, username string, req CreateCommentRequest) (*social.Comment, error) {
	body, err := validBody(req.Body)
	if err != nil {
		return nil, err
	}
	content, err := s.authorize(ctx, username, req.PostID)
	if err != nil {
		return nil, err
	}

	c := &social.Comment{PostID: req.PostID, Username: username, Body: body}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, social.Infra("create comment", err)
	}

	if content.Owner != username {
		s.publish(ctx, events.Commented(c, content))
	}
	for _, mentioned := range Mentions(body) {
		ok, err := s.shouldNotifyMention(ctx, c, content, mentioned)
		if err != nil {
			s.logger.Warn("Skipping mention after lookup failure",
				"comment_id", c.ID,
				"mentioned", mentioned,
				"error", err)
			continue
		}
		if ok {
			s.publish(ctx, events.Mentioned(c, mentioned))
		}
	}
	return c, nil
}

// shouldNotifyMention drops self mentions, unknown handles, pairs with a
// block in either direction, and accounts that could not read the post.
func (s *service) shouldNotifyMention(ctx context.Context, c *social.Comment, content *social.Content, mentioned string) (bool, error) {
	if mentioned == c.Username {
		return false, nil
	}
	exists, err := s.accounts.Exists(ctx, mentioned)
	if err != nil || !exists {
		return false, err
	}
	blocked, err := s.resolver.IsBlocked(ctx, c.Username, mentioned)
	if err != nil || blocked {
		return false, err
	}
	d, err := s.guard.CanViewContent(ctx, mentioned, *content)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

func (s *service) publish(ctx context.Context, e events.ActionEvent) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("Comment event dropped",
			"actionType", e.ActionType,
			"comment_id", e.TargetEntityID,
			"targetUser", e.TargetUser,
			"error", err)
	}
}

func (s *service) Update(ctx context.Context, username, commentID, body string) (*social.Comment, error) {
	if err := social.ValidateUsername(username); err != nil {
		return nil, err
	}
	body, err := validBody(body)
	if err != nil {
		return nil, err
	}
	c, err := s.store.UpdateComment(ctx, commentID, username, body)
	if err != nil {
		return nil, social.Infra("update comment", err)
	}
	return c, nil
}

func (s *service) Delete(ctx context.Context, username, commentID string) error {
	if err := social.ValidateUsername(username); err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, commentID, username); err != nil {
		return social.Infra("delete comment", err)
	}
	return nil
}

func (s *service) ListByPost(ctx context.Context, viewer, postID string) ([]social.Comment, error) {
	if _, err := s.authorize(ctx, viewer, postID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		return nil, social.Infra("list comments", err)
	}
	return comments, nil
}
