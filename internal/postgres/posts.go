package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"socialgraph/internal/social"
)

func (s *Store) CreateLike(ctx context.Context, like *social.Like) error {
	if like.ID == "" {
		like.ID = uuid.New().String()
	}
	like.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO likes (id, post_id, username, created_at) VALUES ($1, $2, $3, $4)`
	_, err := s.db.Exec(ctx, q, like.ID, like.PostID, like.Username, like.CreatedAt)
	return mapError("create like", err)
}

func (s *Store) DeleteLike(ctx context.Context, username, postID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM likes WHERE username = $1 AND post_id = $2`, username, postID)
	if err != nil {
		return mapError("delete like", err)
	}
	if tag.RowsAffected() == 0 {
		return social.ErrNotFound
	}
	return nil
}

func (s *Store) CountLikes(ctx context.Context, postID string) (int64, error) {
	var cnt int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&cnt)
	return cnt, mapError("count likes", err)
}

func (s *Store) HasLiked(ctx context.Context, username, postID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM likes WHERE username = $1 AND post_id = $2)`

	var liked bool
	err := s.db.QueryRow(ctx, q, username, postID).Scan(&liked)
	return liked, mapError("has liked", err)
}

const commentColumns = `id, post_id, username, body, created_at, updated_at`

func scanComment(row pgx.Row) (*social.Comment, error) {
	var c social.Comment
	if err := row.Scan(&c.ID, &c.PostID, &c.Username, &c.Body, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateComment(ctx context.Context, c *social.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	const q = `INSERT INTO comments (` + commentColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.Exec(ctx, q, c.ID, c.PostID, c.Username, c.Body, c.CreatedAt, c.UpdatedAt)
	return mapError("create comment", err)
}

func (s *Store) GetComment(ctx context.Context, id string) (*social.Comment, error) {
	c, err := scanComment(s.db.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	return c, mapError("get comment", err)
}

func (s *Store) UpdateComment(ctx context.Context, id, username, body string) (*social.Comment, error) {
	const q = `
		UPDATE comments SET body = $3, updated_at = now()
		WHERE id = $1 AND username = $2
		RETURNING ` + commentColumns

	c, err := scanComment(s.db.QueryRow(ctx, q, id, username, body))
	return c, mapError("update comment", err)
}

func (s *Store) DeleteComment(ctx context.Context, id, username string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1 AND username = $2`, id, username)
	if err != nil {
		return mapError("delete comment", err)
	}
	if tag.RowsAffected() == 0 {
		return social.ErrNotFound
	}
	return nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]social.Comment, error) {
	const q = `SELECT ` + commentColumns + ` FROM comments WHERE post_id = $1 ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, q, postID)
	if err != nil {
		return nil, mapError("list comments", err)
	}
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (social.Comment, error) {
		c, err := scanComment(row)
		if err != nil {
			return social.Comment{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, mapError("list comments", err)
	}
	return comments, nil
}
