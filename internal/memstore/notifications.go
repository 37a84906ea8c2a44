package memstore

import (
	"context"

	"github.com/google/uuid"

	"socialgraph/internal/social"
)

func (s *Store) CreateNotification(_ context.Context, n *social.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateNotification"); err != nil {
		return false, err
	}
	if n.IdempotencyKey != "" {
		if id, ok := s.byKey[n.IdempotencyKey]; ok {
			*n = *s.notifications[id]
			return false, nil
		}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = s.now()
	cp := *n
	s.notifications[n.ID] = &cp
	if n.IdempotencyKey != "" {
		s.byKey[n.IdempotencyKey] = n.ID
	}
	return true, nil
}

func (s *Store) FindFollowRequest(_ context.Context, creator, target, entityID string) (*social.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindFollowRequest"); err != nil {
		return nil, err
	}
	var found *social.Notification
	for _, n := range s.notifications {
		if n.ActionType != social.ActionFollowRequest || n.ActionCreator != creator || n.TargetUser != target {
			continue
		}
		if entityID != "" && n.TargetEntityID != entityID {
			continue
		}
		if found == nil || n.CreatedAt.After(found.CreatedAt) {
			found = n
		}
	}
	if found == nil {
		return nil, social.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *Store) SetOutcome(_ context.Context, notificationID string, outcome social.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetOutcome"); err != nil {
		return err
	}
	n, ok := s.notifications[notificationID]
	if !ok {
		return social.ErrNotFound
	}
	n.Outcome = outcome
	return nil
}

func (s *Store) AddRecipients(_ context.Context, notificationID string, usernames []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AddRecipients"); err != nil {
		return 0, err
	}
	if _, ok := s.notifications[notificationID]; !ok {
		return 0, social.ErrNotFound
	}
	var written int64
	for _, u := range usernames {
		k := recipientKey{notificationID, u}
		if _, ok := s.recipients[k]; ok {
			continue
		}
		s.recipients[k] = &social.UserNotification{
			Username:       u,
			NotificationID: notificationID,
			CreatedAt:      s.now(),
		}
		s.inboxOrder = append(s.inboxOrder, k)
		written++
	}
	return written, nil
}

func (s *Store) ListInbox(_ context.Context, username string, limit int) ([]social.InboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListInbox"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	out := []social.InboxItem{}
	for i := len(s.inboxOrder) - 1; i >= 0 && len(out) < limit; i-- {
		k := s.inboxOrder[i]
		if k.username != username {
			continue
		}
		out = append(out, social.InboxItem{
			Notification: *s.notifications[k.notificationID],
			Seen:         s.recipients[k].Seen,
		})
	}
	return out, nil
}

func (s *Store) CountUnseen(_ context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CountUnseen"); err != nil {
		return 0, err
	}
	var n int64
	for k, un := range s.recipients {
		if k.username == username && !un.Seen {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkSeen(_ context.Context, username, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("MarkSeen"); err != nil {
		return err
	}
	un, ok := s.recipients[recipientKey{notificationID, username}]
	if !ok {
		return social.ErrNotFound
	}
	un.Seen = true
	return nil
}

// Notifications returns a copy of every stored notification.
func (s *Store) Notifications() []social.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]social.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, *n)
	}
	return out
}

// Recipients returns every UserNotification row in insertion order.
func (s *Store) Recipients() []social.UserNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]social.UserNotification, 0, len(s.inboxOrder))
	for _, k := range s.inboxOrder {
		out = append(out, *s.recipients[k])
	}
	return out
}
