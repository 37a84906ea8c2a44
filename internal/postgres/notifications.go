package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"socialgraph/internal/social"
)

const notificationColumns = `id, action_creator, action_type, target_entity_id, target_user, outcome, COALESCE(idempotency_key, ''), created_at`

func scanNotification(row pgx.Row, n *social.Notification) error {
	return row.Scan(&n.ID, &n.ActionCreator, &n.ActionType, &n.TargetEntityID, &n.TargetUser, &n.Outcome, &n.IdempotencyKey, &n.CreatedAt)
}

// nullable maps an empty key to NULL so unkeyed notifications never collide
// on the unique index.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Store) CreateNotification(ctx context.Context, n *social.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	const insert = `
		INSERT INTO notifications (id, action_creator, action_type, target_entity_id, target_user, outcome, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING created_at
	`
	err := s.db.QueryRow(ctx, insert,
		n.ID, n.ActionCreator, n.ActionType, n.TargetEntityID, n.TargetUser, n.Outcome, nullable(n.IdempotencyKey),
	).Scan(&n.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || n.IdempotencyKey == "" {
		return false, mapError("create notification", err)
	}

	const existing = `SELECT ` + notificationColumns + ` FROM notifications WHERE idempotency_key = $1`
	if err := scanNotification(s.db.QueryRow(ctx, existing, n.IdempotencyKey), n); err != nil {
		return false, mapError("load notification by key", err)
	}
	return false, nil
}

func (s *Store) FindFollowRequest(ctx context.Context, creator, target, entityID string) (*social.Notification, error) {
	const q = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE action_creator = $1 AND target_user = $2 AND action_type = 'followRequest'
		  AND ($3 = '' OR target_entity_id = $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	var n social.Notification
	if err := scanNotification(s.db.QueryRow(ctx, q, creator, target, entityID), &n); err != nil {
		return nil, mapError("find follow request", err)
	}
	return &n, nil
}

func (s *Store) SetOutcome(ctx context.Context, notificationID string, outcome social.Outcome) error {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET outcome = $2 WHERE id = $1`, notificationID, outcome)
	if err != nil {
		return mapError("set outcome", err)
	}
	if tag.RowsAffected() == 0 {
		return social.ErrNotFound
	}
	return nil
}

func (s *Store) AddRecipients(ctx context.Context, notificationID string, usernames []string) (int64, error) {
	if len(usernames) == 0 {
		return 0, nil
	}
	const q = `
		INSERT INTO user_notifications (notification_id, username)
		SELECT $1, u FROM unnest($2::text[]) AS u
		ON CONFLICT (notification_id, username) DO NOTHING
	`
	tag, err := s.db.Exec(ctx, q, notificationID, usernames)
	if err != nil {
		return 0, mapError("add recipients", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListInbox(ctx context.Context, username string, limit int) ([]social.InboxItem, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT n.id, n.action_creator, n.action_type, n.target_entity_id, n.target_user, n.outcome,
		       COALESCE(n.idempotency_key, ''), n.created_at, un.seen
		FROM user_notifications un
		JOIN notifications n ON n.id = un.notification_id
		WHERE un.username = $1
		ORDER BY un.created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, q, username, limit)
	if err != nil {
		return nil, mapError("list inbox", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (social.InboxItem, error) {
		var it social.InboxItem
		n := &it.Notification
		err := row.Scan(&n.ID, &n.ActionCreator, &n.ActionType, &n.TargetEntityID, &n.TargetUser, &n.Outcome,
			&n.IdempotencyKey, &n.CreatedAt, &it.Seen)
		return it, err
	})
	if err != nil {
		return nil, mapError("list inbox", err)
	}
	return items, nil
}

func (s *Store) CountUnseen(ctx context.Context, username string) (int64, error) {
	const q = `SELECT COUNT(*) FROM user_notifications WHERE username = $1 AND NOT seen`

	var cnt int64
	err := s.db.QueryRow(ctx, q, username).Scan(&cnt)
	return cnt, mapError("count unseen", err)
}

func (s *Store) MarkSeen(ctx context.Context, username, notificationID string) error {
	const q = `UPDATE user_notifications SET seen = TRUE WHERE notification_id = $1 AND username = $2`

	tag, err := s.db.Exec(ctx, q, notificationID, username)
	if err != nil {
		return mapError("mark seen", err)
	}
	if tag.RowsAffected() == 0 {
		return social.ErrNotFound
	}
	return nil
}
