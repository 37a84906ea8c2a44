package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"socialgraph/internal/social"
)

var (
	_ social.LikeStore    = (*Store)(nil)
	_ social.CommentStore = (*Store)(nil)
)

type likeKey struct{ username, postID string }

func (s *Store) CreateLike(_ context.Context, like *social.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateLike"); err != nil {
		return err
	}
	k := likeKey{like.Username, like.PostID}
	if _, ok := s.likes[k]; ok {
		return social.ErrConflict
	}
	if like.ID == "" {
		like.ID = uuid.NewString()
	}
	like.CreatedAt = s.now()
	s.likes[k] = *like
	return nil
}

func (s *Store) DeleteLike(_ context.Context, username, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteLike"); err != nil {
		return err
	}
	k := likeKey{username, postID}
	if _, ok := s.likes[k]; !ok {
		return social.ErrNotFound
	}
	delete(s.likes, k)
	return nil
}

func (s *Store) CountLikes(_ context.Context, postID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CountLikes"); err != nil {
		return 0, err
	}
	var n int64
	for k := range s.likes {
		if k.postID == postID {
			n++
		}
	}
	return n, nil
}

func (s *Store) HasLiked(_ context.Context, username, postID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("HasLiked"); err != nil {
		return false, err
	}
	_, ok := s.likes[likeKey{username, postID}]
	return ok, nil
}

func (s *Store) CreateComment(_ context.Context, c *social.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateComment"); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.comments[c.ID] = &cp
	return nil
}

func (s *Store) GetComment(_ context.Context, id string) (*social.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("GetComment"); err != nil {
		return nil, err
	}
	c, ok := s.comments[id]
	if !ok {
		return nil, social.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) UpdateComment(_ context.Context, id, username, body string) (*social.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateComment"); err != nil {
		return nil, err
	}
	c, ok := s.comments[id]
	if !ok || c.Username != username {
		return nil, social.ErrNotFound
	}
	c.Body = body
	c.UpdatedAt = s.now()
	cp := *c
	return &cp, nil
}

func (s *Store) DeleteComment(_ context.Context, id, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteComment"); err != nil {
		return err
	}
	c, ok := s.comments[id]
	if !ok || c.Username != username {
		return social.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) ListComments(_ context.Context, postID string) ([]social.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ListComments"); err != nil {
		return nil, err
	}
	out := []social.Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
