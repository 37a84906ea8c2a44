package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"socialgraph/internal/social"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

// Service is the recipient-facing read side of notifications.
type Service interface {
	List(ctx context.Context, username string, limit int) (*InboxResponse, error)
	MarkSeen(ctx context.Context, username, notificationID string) error
}

type service struct {
	store social.NotificationStore
}

func NewService(store social.NotificationStore) Service {
	return &service{store: store}
}

func (s *service) List(ctx context.Context, username string, limit int) (*InboxResponse, error) {
	if err := social.ValidateUsername(username); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultInboxLimit
	case limit > maxInboxLimit:
		limit = maxInboxLimit
	}

	items, err := s.store.ListInbox(ctx, username, limit)
	if err != nil {
		return nil, social.Infra("list inbox", err)
	}
	unseen, err := s.store.CountUnseen(ctx, username)
	if err != nil {
		return nil, social.Infra("count unseen", err)
	}
	return &InboxResponse{Username: username, Unseen: unseen, Items: items}, nil
}

// MarkSeen flips seen to true on the caller's own row. Marking twice is a
// no-op.
func (s *service) MarkSeen(ctx context.Context, username, notificationID string) error {
	if err := social.ValidateUsername(username); err != nil {
		return err
	}
	if err := uuid.Validate(notificationID); err != nil {
		return fmt.Errorf("%w: notification id %q", social.ErrInvalidArgument, notificationID)
	}
	err := s.store.MarkSeen(ctx, username, notificationID)
	if errors.Is(err, social.ErrNotFound) {
		return fmt.Errorf("notification %s: %w", notificationID, social.ErrNotFound)
	}
	return social.Infra("mark seen", err)
}
