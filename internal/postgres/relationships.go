package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"socialgraph/internal/database"
	"socialgraph/internal/social"
)

var (
	_ social.RelationshipStore = (*Store)(nil)
	_ social.NotificationStore = (*Store)(nil)
	_ social.AccountDirectory  = (*Store)(nil)
	_ social.ContentDirectory  = (*Store)(nil)
	_ social.LikeStore         = (*Store)(nil)
	_ social.CommentStore      = (*Store)(nil)
)

// Store is the Postgres implementation of every social store.
type Store struct {
	db database.Service
}

func New(db database.Service) *Store {
	return &Store{db: db}
}

const followColumns = `id, follower, following, status, close_friend, created_at, updated_at`

func scanFollow(row pgx.Row) (*social.FollowEdge, error) {
	var e social.FollowEdge
	err := row.Scan(&e.ID, &e.Follower, &e.Following, &e.Status, &e.CloseFriend, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) GetFollow(ctx context.Context, follower, following string) (*social.FollowEdge, error) {
	const q = `SELECT ` + followColumns + ` FROM follow_edges WHERE follower = $1 AND following = $2`

	e, err := scanFollow(s.db.QueryRow(ctx, q, follower, following))
	return e, mapError("get follow", err)
}

func (s *Store) CreateFollow(ctx context.Context, edge *social.FollowEdge) error {
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	edge.CreatedAt, edge.UpdatedAt = now, now

	const q = `
		INSERT INTO follow_edges (id, follower, following, status, close_friend, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, q, edge.ID, edge.Follower, edge.Following, edge.Status, edge.CloseFriend, edge.CreatedAt, edge.UpdatedAt)
	return mapError("create follow", err)
}

func (s *Store) TransitionFollow(ctx context.Context, follower, following string, from, to social.FollowStatus) (*social.FollowEdge, error) {
	const q = `
		UPDATE follow_edges
		SET status = $4, updated_at = now()
		WHERE follower = $1 AND following = $2 AND status = $3
		RETURNING ` + followColumns

	e, err := scanFollow(s.db.QueryRow(ctx, q, follower, following, from, to))
	return e, mapError("transition follow", err)
}

func (s *Store) SetCloseFriend(ctx context.Context, follower, following string, value bool) (*social.FollowEdge, error) {
	const q = `
		UPDATE follow_edges
		SET close_friend = $3, updated_at = now()
		WHERE follower = $1 AND following = $2 AND status = 'accepted'
		RETURNING ` + followColumns

	e, err := scanFollow(s.db.QueryRow(ctx, q, follower, following, value))
	return e, mapError("set close friend", err)
}

func (s *Store) DeleteFollow(ctx context.Context, follower, following string, status social.FollowStatus) error {
	const q = `DELETE FROM follow_edges WHERE follower = $1 AND following = $2 AND status = $3`

	tag, err := s.db.Exec(ctx, q, follower, following, status)
	if err != nil {
		return mapError("delete follow", err)
	}
	if tag.RowsAffected() == 0 {
		return social.ErrNotFound
	}
	return nil
}

func (s *Store) BlockExists(ctx context.Context, blocker, blocked string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM block_edges WHERE blocker = $1 AND blocked = $2)`

	var exists bool
	if err := s.db.QueryRow(ctx, q, blocker, blocked).Scan(&exists); err != nil {
		return false, mapError("block exists", err)
	}
	return exists, nil
}

func (s *Store) BlockedAmong(ctx context.Context, username string, candidates []string) (map[string]bool, error) {
	blocked := make(map[string]bool)
	if len(candidates) == 0 {
		return blocked, nil
	}
	const q = `
		SELECT blocked FROM block_edges WHERE blocker = $1 AND blocked = ANY($2)
		UNION
		SELECT blocker FROM block_edges WHERE blocked = $1 AND blocker = ANY($2)
	`
	rows, err := s.db.Query(ctx, q, username, candidates)
	if err != nil {
		return nil, mapError("blocked among", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError("blocked among", err)
	}
	for _, n := range names {
		blocked[n] = true
	}
	return blocked, nil
}

// CreateBlock inserts the block and drops follow edges in both directions in
// one transaction.
func (s *Store) CreateBlock(ctx context.Context, edge *social.BlockEdge) error {
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	edge.CreatedAt = time.Now().UTC()

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		const insert = `INSERT INTO block_edges (id, blocker, blocked, created_at) VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, insert, edge.ID, edge.Blocker, edge.Blocked, edge.CreatedAt); err != nil {
			return err
		}

		const unfollow = `
			DELETE FROM follow_edges
			WHERE (follower = $1 AND following = $2) OR (follower = $2 AND following = $1)
		`
		_, err := tx.Exec(ctx, unfollow, edge.Blocker, edge.Blocked)
		return err
	})
	return mapError("create block", err)
}

func (s *Store) DeleteBlock(ctx context.Context, blocker, blocked string) error {
	const q = `DELETE FROM block_edges WHERE blocker = $1 AND blocked = $2`

	tag, err := s.db.Exec(ctx, q, blocker, blocked)
	if err != nil {
		return mapError("delete block", err)
	}
	if tag.RowsAffected() == 0 {
		return social.ErrNotFound
	}
	return nil
}

// StreamFollowers pages through followers with keyset pagination on the
// follower name so large audiences never load at once.
func (s *Store) StreamFollowers(ctx context.Context, owner string, closeOnly bool, batchSize int, yield func([]string) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	const q = `
		SELECT follower FROM follow_edges
		WHERE following = $1 AND status = 'accepted' AND (NOT $2 OR close_friend) AND follower > $3
		ORDER BY follower
		LIMIT $4
	`

	after := ""
	for {
		rows, err := s.db.Query(ctx, q, owner, closeOnly, after, batchSize)
		if err != nil {
			return mapError("stream followers", err)
		}
		batch, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return mapError("stream followers", err)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := yield(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1]
	}
}

func (s *Store) listFollows(ctx context.Context, op, where, username string) ([]social.FollowEdge, error) {
	q := `SELECT ` + followColumns + ` FROM follow_edges WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, q, username)
	if err != nil {
		return nil, mapError(op, err)
	}
	edges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (social.FollowEdge, error) {
		e, err := scanFollow(row)
		if err != nil {
			return social.FollowEdge{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, mapError(op, err)
	}
	return edges, nil
}

func (s *Store) ListFollowing(ctx context.Context, follower string) ([]social.FollowEdge, error) {
	return s.listFollows(ctx, "list following", `follower = $1 AND status = 'accepted'`, follower)
}

func (s *Store) ListRequests(ctx context.Context, following string) ([]social.FollowEdge, error) {
	return s.listFollows(ctx, "list requests", `following = $1 AND status = 'pending'`, following)
}

func (s *Store) ListBlocked(ctx context.Context, blocker string) ([]social.BlockEdge, error) {
	const q = `SELECT id, blocker, blocked, created_at FROM block_edges WHERE blocker = $1 ORDER BY blocked`

	rows, err := s.db.Query(ctx, q, blocker)
	if err != nil {
		return nil, mapError("list blocked", err)
	}
	blocks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (social.BlockEdge, error) {
		var b social.BlockEdge
		err := row.Scan(&b.ID, &b.Blocker, &b.Blocked, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, mapError("list blocked", err)
	}
	return blocks, nil
}

func (s *Store) CountFollowers(ctx context.Context, username string) (int64, error) {
	const q = `SELECT COUNT(*) FROM follow_edges WHERE following = $1 AND status = 'accepted'`

	var cnt int64
	err := s.db.QueryRow(ctx, q, username).Scan(&cnt)
	return cnt, mapError("count followers", err)
}

func (s *Store) CountFollowing(ctx context.Context, username string) (int64, error) {
	const q = `SELECT COUNT(*) FROM follow_edges WHERE follower = $1 AND status = 'accepted'`

	var cnt int64
	err := s.db.QueryRow(ctx, q, username).Scan(&cnt)
	return cnt, mapError("count following", err)
}
