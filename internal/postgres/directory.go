package postgres

import (
	"context"

	"socialgraph/internal/social"
)

func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&exists)
	return exists, mapError("account exists", err)
}

func (s *Store) IsPrivate(ctx context.Context, username string) (bool, error) {
	var private bool
	err := s.db.QueryRow(ctx, `SELECT private FROM accounts WHERE username = $1`, username).Scan(&private)
	return private, mapError("account privacy", err)
}

func (s *Store) Lookup(ctx context.Context, contentID string) (*social.Content, error) {
	const q = `SELECT post_id, username, close_friends_only FROM posts WHERE post_id = $1`

	var c social.Content
	if err := s.db.QueryRow(ctx, q, contentID).Scan(&c.ID, &c.Owner, &c.CloseFriendsOnly); err != nil {
		return nil, mapError("lookup content", err)
	}
	return &c, nil
}

// UpsertAccount mirrors an account from the identity service.
func (s *Store) UpsertAccount(ctx context.Context, username string, private bool) error {
	const q = `
		INSERT INTO accounts (username, private) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET private = EXCLUDED.private
	`
	_, err := s.db.Exec(ctx, q, username, private)
	return mapError("upsert account", err)
}

// UpsertContent mirrors a post from the content service.
func (s *Store) UpsertContent(ctx context.Context, c social.Content) error {
	const q = `
		INSERT INTO posts (post_id, username, close_friends_only) VALUES ($1, $2, $3)
		ON CONFLICT (post_id) DO UPDATE SET username = EXCLUDED.username, close_friends_only = EXCLUDED.close_friends_only
	`
	_, err := s.db.Exec(ctx, q, c.ID, c.Owner, c.CloseFriendsOnly)
	return mapError("upsert content", err)
}
