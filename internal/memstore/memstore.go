// Package memstore is an in-process implementation of the social stores and
// directories. It backs STORE_DRIVER=memory and the package tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"socialgraph/internal/social"
)

var (
	_ social.RelationshipStore = (*Store)(nil)
	_ social.NotificationStore = (*Store)(nil)
	_ social.AccountDirectory  = (*Store)(nil)
	_ social.ContentDirectory  = (*Store)(nil)
)

type pair struct{ from, to string }

type recipientKey struct{ notificationID, username string }

// Store keeps every edge and notification in maps guarded by one mutex, so
// multi-row operations such as CreateBlock are atomic.
type Store struct {
	mu sync.Mutex

	follows map[pair]*social.FollowEdge
	blocks  map[pair]*social.BlockEdge

	notifications map[string]*social.Notification
	byKey         map[string]string
	recipients    map[recipientKey]*social.UserNotification
	inboxOrder    []recipientKey

	accounts map[string]bool
	contents map[string]social.Content
	likes    map[likeKey]social.Like
	comments map[string]*social.Comment

	failures map[string]error
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		follows:       make(map[pair]*social.FollowEdge),
		blocks:        make(map[pair]*social.BlockEdge),
		notifications: make(map[string]*social.Notification),
		byKey:         make(map[string]string),
		recipients:    make(map[recipientKey]*social.UserNotification),
		accounts:      make(map[string]bool),
		contents:      make(map[string]social.Content),
		likes:         make(map[likeKey]social.Like),
		comments:      make(map[string]*social.Comment),
		failures:      make(map[string]error),
		now:           time.Now,
	}
}

// AddAccount registers an account for the directory methods.
func (s *Store) AddAccount(username string, private bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = private
}

// AddContent registers a content item for Lookup.
func (s *Store) AddContent(c social.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[c.ID] = c
}

// FailOn makes the named operation return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

// Exists implements social.AccountDirectory.
func (s *Store) Exists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Exists"); err != nil {
		return false, err
	}
	_, ok := s.accounts[username]
	return ok, nil
}

// IsPrivate implements social.AccountDirectory.
func (s *Store) IsPrivate(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("IsPrivate"); err != nil {
		return false, err
	}
	private, ok := s.accounts[username]
	if !ok {
		return false, social.ErrNotFound
	}
	return private, nil
}

// Lookup implements social.ContentDirectory.
func (s *Store) Lookup(_ context.Context, contentID string) (*social.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Lookup"); err != nil {
		return nil, err
	}
	c, ok := s.contents[contentID]
	if !ok {
		return nil, social.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetFollow(_ context.Context, follower, following string) (*social.FollowEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetFollow"); err != nil {
		return nil, err
	}
	e, ok := s.follows[pair{follower, following}]
	if !ok {
		return nil, social.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) CreateFollow(_ context.Context, edge *social.FollowEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateFollow"); err != nil {
		return err
	}
	k := pair{edge.Follower, edge.Following}
	if _, ok := s.follows[k]; ok {
		return social.ErrConflict
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	now := s.now()
	edge.CreatedAt, edge.UpdatedAt = now, now
	cp := *edge
	s.follows[k] = &cp
	return nil
}

func (s *Store) TransitionFollow(_ context.Context, follower, following string, from, to social.FollowStatus) (*social.FollowEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("TransitionFollow"); err != nil {
		return nil, err
	}
	e, ok := s.follows[pair{follower, following}]
	if !ok || e.Status != from {
		return nil, social.ErrNotFound
	}
	e.Status = to
	e.UpdatedAt = s.now()
	cp := *e
	return &cp, nil
}

func (s *Store) SetCloseFriend(_ context.Context, follower, following string, value bool) (*social.FollowEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetCloseFriend"); err != nil {
		return nil, err
	}
	e, ok := s.follows[pair{follower, following}]
	if !ok || e.Status != social.FollowAccepted {
		return nil, social.ErrNotFound
	}
	e.CloseFriend = value
	e.UpdatedAt = s.now()
	cp := *e
	return &cp, nil
}

func (s *Store) DeleteFollow(_ context.Context, follower, following string, status social.FollowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteFollow"); err != nil {
		return err
	}
	k := pair{follower, following}
	e, ok := s.follows[k]
	if !ok || e.Status != status {
		return social.ErrNotFound
	}
	delete(s.follows, k)
	return nil
}

func (s *Store) BlockExists(_ context.Context, blocker, blocked string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("BlockExists"); err != nil {
		return false, err
	}
	_, ok := s.blocks[pair{blocker, blocked}]
	return ok, nil
}

func (s *Store) BlockedAmong(_ context.Context, username string, candidates []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("BlockedAmong"); err != nil {
		return nil, err
	}
	blocked := make(map[string]bool)
	for _, c := range candidates {
		_, out := s.blocks[pair{username, c}]
		_, in := s.blocks[pair{c, username}]
		if out || in {
			blocked[c] = true
		}
	}
	return blocked, nil
}

func (s *Store) CreateBlock(_ context.Context, edge *social.BlockEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateBlock"); err != nil {
		return err
	}
	k := pair{edge.Blocker, edge.Blocked}
	if _, ok := s.blocks[k]; ok {
		return social.ErrConflict
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	edge.CreatedAt = s.now()
	cp := *edge
	s.blocks[k] = &cp
	delete(s.follows, pair{edge.Blocker, edge.Blocked})
	delete(s.follows, pair{edge.Blocked, edge.Blocker})
	return nil
}

func (s *Store) DeleteBlock(_ context.Context, blocker, blocked string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteBlock"); err != nil {
		return err
	}
	k := pair{blocker, blocked}
	if _, ok := s.blocks[k]; !ok {
		return social.ErrNotFound
	}
	delete(s.blocks, k)
	return nil
}

func (s *Store) StreamFollowers(ctx context.Context, owner string, closeOnly bool, batchSize int, yield func([]string) error) error {
	s.mu.Lock()
	if err := s.fail("StreamFollowers"); err != nil {
		s.mu.Unlock()
		return err
	}
	var followers []string
	for k, e := range s.follows {
		if k.to != owner || e.Status != social.FollowAccepted {
			continue
		}
		if closeOnly && !e.CloseFriend {
			continue
		}
		followers = append(followers, k.from)
	}
	s.mu.Unlock()

	sort.Strings(followers)
	if batchSize <= 0 {
		batchSize = len(followers)
	}
	for i := 0; i < len(followers); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(followers))
		if err := yield(followers[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListFollowing(_ context.Context, follower string) ([]social.FollowEdge, error) {
	return s.listFollows("ListFollowing", func(k pair, e *social.FollowEdge) bool {
		return k.from == follower && e.Status == social.FollowAccepted
	})
}

func (s *Store) ListRequests(_ context.Context, following string) ([]social.FollowEdge, error) {
	return s.listFollows("ListRequests", func(k pair, e *social.FollowEdge) bool {
		return k.to == following && e.Status == social.FollowPending
	})
}

func (s *Store) listFollows(op string, keep func(pair, *social.FollowEdge) bool) ([]social.FollowEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(op); err != nil {
		return nil, err
	}
	out := []social.FollowEdge{}
	for k, e := range s.follows {
		if keep(k, e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListBlocked(_ context.Context, blocker string) ([]social.BlockEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListBlocked"); err != nil {
		return nil, err
	}
	out := []social.BlockEdge{}
	for k, e := range s.blocks {
		if k.from == blocker {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Blocked < out[j].Blocked })
	return out, nil
}

func (s *Store) CountFollowers(_ context.Context, username string) (int64, error) {
	return s.count("CountFollowers", func(k pair) bool { return k.to == username })
}

func (s *Store) CountFollowing(_ context.Context, username string) (int64, error) {
	return s.count("CountFollowing", func(k pair) bool { return k.from == username })
}

func (s *Store) count(op string, match func(pair) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(op); err != nil {
		return 0, err
	}
	var n int64
	for k, e := range s.follows {
		if e.Status == social.FollowAccepted && match(k) {
			n++
		}
	}
	return n, nil
}
