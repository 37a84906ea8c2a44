// Package relation classifies the relationship between two accounts and
// authorizes reads on top of that classification.
package relation

import (
	"context"
	"errors"

	"socialgraph/internal/social"
)

// Resolver computes a RelationshipView from current store state. It never
// caches: relationships change at any time and a stale answer is an
// authorization defect.
type Resolver struct {
	store social.RelationshipStore
}

func NewResolver(store social.RelationshipStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve classifies viewer -> target. Block edges are consulted first and
// short-circuit to Blocked even if a follow edge is still present.
func (r *Resolver) Resolve(ctx context.Context, viewer, target string) (social.RelationshipView, error) {
	if err := social.ValidatePair(viewer, target); err != nil {
		return nil, err
	}

	byViewer, err := r.store.BlockExists(ctx, viewer, target)
	if err != nil {
		return nil, social.Infra("check block", err)
	}
	byTarget, err := r.store.BlockExists(ctx, target, viewer)
	if err != nil {
		return nil, social.Infra("check block", err)
	}

	switch {
	case byViewer && byTarget:
		return social.Blocked{Status: social.BlockedBoth}, nil
	case byViewer:
		return social.Blocked{Status: social.BlockedByViewer}, nil
	case byTarget:
		return social.Blocked{Status: social.BlockedByTarget}, nil
	}

	edge, err := r.store.GetFollow(ctx, viewer, target)
	if errors.Is(err, social.ErrNotFound) {
		return social.NoConnection{}, nil
	}
	if err != nil {
		return nil, social.Infra("get follow", err)
	}
	return social.Following{Status: edge.Status, CloseFriend: edge.CloseFriend}, nil
}

// IsBlocked reports whether a block exists between a and b in either direction.
func (r *Resolver) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	v, err := r.Resolve(ctx, a, b)
	if err != nil {
		return false, err
	}
	_, blocked := v.(social.Blocked)
	return blocked, nil
}
