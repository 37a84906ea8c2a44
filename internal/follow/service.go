package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"socialgraph/internal/relation"
	"socialgraph/internal/social"
)

// Service is the follow request state machine plus the block and
// close-friend operations that mutate the same edges. It never publishes
// events; the handler does that after a successful call.
type Service interface {
	SendRequest(ctx context.Context, sender, receiver string) (*social.FollowEdge, error)
	Decide(ctx context.Context, sender, receiver string, action Action) (*social.FollowEdge, error)
	Unfollow(ctx context.Context, follower, following string) error
	CancelRequest(ctx context.Context, sender, receiver string) error
	RemoveFollower(ctx context.Context, owner, follower string) error

	Block(ctx context.Context, blocker, blocked string) (*social.BlockEdge, error)
	Unblock(ctx context.Context, blocker, blocked string) error

	SetCloseFriend(ctx context.Context, follower, following string, value bool) (*social.FollowEdge, error)

	Relationship(ctx context.Context, viewer, target string) (social.RelationshipView, error)
	ListFollowers(ctx context.Context, username string) ([]string, error)
	ListFollowing(ctx context.Context, username string) ([]social.FollowEdge, error)
	ListRequests(ctx context.Context, username string) ([]social.FollowEdge, error)
	ListBlocked(ctx context.Context, username string) ([]social.BlockEdge, error)
	Counts(ctx context.Context, username string) (*social.Counts, error)
}

// Options tunes request policy.
type Options struct {
	// AutoAcceptPublic creates requests to public accounts already accepted.
	AutoAcceptPublic bool
	// ListBatchSize is the page size used when streaming follower lists.
	ListBatchSize int
}

type service struct {
	store    social.RelationshipStore
	accounts social.AccountDirectory
	resolver *relation.Resolver
	opts     Options
	logger   *slog.Logger
}

func NewService(store social.RelationshipStore, accounts social.AccountDirectory, resolver *relation.Resolver, opts Options, logger *slog.Logger) Service {
	if opts.ListBatchSize <= 0 {
		opts.ListBatchSize = 500
	}
	return &service{store: store, accounts: accounts, resolver: resolver, opts: opts, logger: logger}
}

func (s *service) requireAccount(ctx context.Context, username string) error {
	ok, err := s.accounts.Exists(ctx, username)
	if err != nil {
		return social.Infra("lookup account", err)
	}
	if !ok {
		return fmt.Errorf("account %q: %w", username, social.ErrNotFound)
	}
	return nil
}

func (s *service) SendRequest(ctx context.Context, sender, receiver string) (*social.FollowEdge, error) {
	if err := social.ValidatePair(sender, receiver); err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, receiver); err != nil {
		return nil, err
	}

	view, err := s.resolver.Resolve(ctx, sender, receiver)
	if err != nil {
		return nil, err
	}
	err = social.MatchRelationship(view, social.RelationshipCases[error]{
		Blocked: func(social.Blocked) error { return social.Deny(social.ReasonBlocked) },
		Following: func(f social.Following) error {
			return fmt.Errorf("follow edge already %s: %w", f.Status, social.ErrConflict)
		},
		NoConnection: func() error { return nil },
	})
	if err != nil {
		return nil, err
	}

	status := social.FollowPending
	if s.opts.AutoAcceptPublic {
		private, err := s.accounts.IsPrivate(ctx, receiver)
		if err != nil {
			return nil, social.Infra("check privacy", err)
		}
		if !private {
			status = social.FollowAccepted
		}
	}

	edge := &social.FollowEdge{Follower: sender, Following: receiver, Status: status}
	// the pre-check above is advisory; the uniqueness constraint decides
	if err := s.store.CreateFollow(ctx, edge); err != nil {
		if errors.Is(err, social.ErrConflict) {
			return nil, fmt.Errorf("follow edge already exists: %w", social.ErrConflict)
		}
		return nil, social.Infra("create follow", err)
	}

	s.logger.Info("Follow request created",
		"follower", sender,
		"following", receiver,
		"status", edge.Status,
		"edge_id", edge.ID)
	return edge, nil
}

func (s *service) Decide(ctx context.Context, sender, receiver string, action Action) (*social.FollowEdge, error) {
	if err := social.ValidatePair(sender, receiver); err != nil {
		return nil, err
	}
	to, err := action.Status()
	if err != nil {
		return nil, err
	}

	edge, err := s.store.TransitionFollow(ctx, sender, receiver, social.FollowPending, to)
	if err != nil {
		if errors.Is(err, social.ErrNotFound) {
			return nil, fmt.Errorf("pending request from %q: %w", sender, social.ErrNotFound)
		}
		return nil, social.Infra("transition follow", err)
	}

	s.logger.Info("Follow request decided",
		"follower", sender,
		"following", receiver,
		"status", edge.Status,
		"edge_id", edge.ID)
	return edge, nil
}

func (s *service) Unfollow(ctx context.Context, follower, following string) error {
	return s.deleteFollow(ctx, follower, following, social.FollowAccepted)
}

func (s *service) CancelRequest(ctx context.Context, sender, receiver string) error {
	return s.deleteFollow(ctx, sender, receiver, social.FollowPending)
}

func (s *service) RemoveFollower(ctx context.Context, owner, follower string) error {
	return s.deleteFollow(ctx, follower, owner, social.FollowAccepted)
}

func (s *service) deleteFollow(ctx context.Context, follower, following string, status social.FollowStatus) error {
	if err := social.ValidatePair(follower, following); err != nil {
		return err
	}
	if err := s.store.DeleteFollow(ctx, follower, following, status); err != nil {
		if errors.Is(err, social.ErrNotFound) {
			return fmt.Errorf("%s follow edge %s -> %s: %w", status, follower, following, social.ErrNotFound)
		}
		return social.Infra("delete follow", err)
	}
	s.logger.Info("Follow edge removed", "follower", follower, "following", following, "status", status)
	return nil
}

func (s *service) Block(ctx context.Context, blocker, blocked string) (*social.BlockEdge, error) {
	if err := social.ValidatePair(blocker, blocked); err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, blocked); err != nil {
		return nil, err
	}

	edge := &social.BlockEdge{Blocker: blocker, Blocked: blocked}
	if err := s.store.CreateBlock(ctx, edge); err != nil {
		if errors.Is(err, social.ErrConflict) {
			return nil, fmt.Errorf("%q already blocked: %w", blocked, social.ErrConflict)
		}
		return nil, social.Infra("create block", err)
	}

	s.logger.Info("User blocked", "blocker", blocker, "blocked", blocked)
	return edge, nil
}

func (s *service) Unblock(ctx context.Context, blocker, blocked string) error {
	if err := social.ValidatePair(blocker, blocked); err != nil {
		return err
	}
	if err := s.store.DeleteBlock(ctx, blocker, blocked); err != nil {
		if errors.Is(err, social.ErrNotFound) {
			return fmt.Errorf("block on %q: %w", blocked, social.ErrNotFound)
		}
		return social.Infra("delete block", err)
	}
	s.logger.Info("User unblocked", "blocker", blocker, "blocked", blocked)
	return nil
}

func (s *service) SetCloseFriend(ctx context.Context, follower, following string, value bool) (*social.FollowEdge, error) {
	if err := social.ValidatePair(follower, following); err != nil {
		return nil, err
	}
	edge, err := s.store.SetCloseFriend(ctx, follower, following, value)
	if err != nil {
		if errors.Is(err, social.ErrNotFound) {
			return nil, fmt.Errorf("%q is not an accepted follower: %w", follower, social.ErrNotFound)
		}
		return nil, social.Infra("set close friend", err)
	}
	return edge, nil
}

func (s *service) Relationship(ctx context.Context, viewer, target string) (social.RelationshipView, error) {
	return s.resolver.Resolve(ctx, viewer, target)
}

func (s *service) ListFollowers(ctx context.Context, username string) ([]string, error) {
	if err := social.ValidateUsername(username); err != nil {
		return nil, err
	}
	followers := []string{}
	err := s.store.StreamFollowers(ctx, username, false, s.opts.ListBatchSize, func(batch []string) error {
		followers = append(followers, batch...)
		return nil
	})
	if err != nil {
		return nil, social.Infra("list followers", err)
	}
	return followers, nil
}

func (s *service) ListFollowing(ctx context.Context, username string) ([]social.FollowEdge, error) {
	if err := social.ValidateUsername(username); err != nil {
		return nil, err
	}
	edges, err := s.store.ListFollowing(ctx, username)
	return edges, social.Infra("list following", err)
}

func (s *service) ListRequests(ctx context.Context, username string) ([]social.FollowEdge, error) {
	if err := social.ValidateUsername(username); err != nil {
		return nil, err
	}
	edges, err := s.store.ListRequests(ctx, username)
	return edges, social.Infra("list requests", err)
}

func (s *service) ListBlocked(ctx context.Context, username string) ([]social.BlockEdge, error) {
	if err := social.ValidateUsername(username); err != nil {
		return nil, err
	}
	edges, err := s.store.ListBlocked(ctx, username)
	return edges, social.Infra("list blocked", err)
}

// Counts recomputes follower totals from accepted edges.
func (s *service) Counts(ctx context.Context, username string) (*social.Counts, error) {
	if err := social.ValidateUsername(username); err != nil {
		return nil, err
	}
	followers, err := s.store.CountFollowers(ctx, username)
	if err != nil {
		return nil, social.Infra("count followers", err)
	}
	following, err := s.store.CountFollowing(ctx, username)
	if err != nil {
		return nil, social.Infra("count following", err)
	}
	return &social.Counts{Username: username, Followers: followers, Following: following}, nil
}
