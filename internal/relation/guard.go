package relation

import (
	"context"

	"socialgraph/internal/social"
)

// Decision is the outcome of a visibility check.
type Decision struct {
	Allowed bool              `json:"allowed"`
	Reason  social.DenyReason `json:"reason,omitempty"`
}

// Err returns nil for an allowed decision and a *social.Denial otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return social.Deny(d.Reason)
}

// MaskedErr is Err with a block reported as not-found, for reads that must
// not reveal that the owner blocked the viewer.
func (d Decision) MaskedErr() error {
	if d.Reason == social.ReasonBlocked {
		return social.ErrNotFound
	}
	return d.Err()
}

func allow() Decision { return Decision{Allowed: true} }
func deny(reason social.DenyReason) Decision { return Decision{Reason: reason} }

// Guard authorizes reads. Checks run in a fixed order and the first failure
// wins: block, close-friend gating, account privacy.
type Guard struct {
	resolver *Resolver
	accounts social.AccountDirectory
	contents social.ContentDirectory
}

func NewGuard(resolver *Resolver, accounts social.AccountDirectory, contents social.ContentDirectory) *Guard {
	return &Guard{resolver: resolver, accounts: accounts, contents: contents}
}

// CanView looks up contentID and decides whether viewer may read it.
func (g *Guard) CanView(ctx context.Context, viewer, contentID string) (Decision, *social.Content, error) {
	content, err := g.contents.Lookup(ctx, contentID)
	if err != nil {
		return Decision{}, nil, social.Infra("lookup content", err)
	}
	d, err := g.CanViewContent(ctx, viewer, *content)
	return d, content, err
}

// CanViewContent decides whether viewer may read content.
func (g *Guard) CanViewContent(ctx context.Context, viewer string, content social.Content) (Decision, error) {
	if viewer == content.Owner {
		return allow(), nil
	}

	view, err := g.resolver.Resolve(ctx, viewer, content.Owner)
	if err != nil {
		return Decision{}, err
	}
	if _, blocked := view.(social.Blocked); blocked {
		return deny(social.ReasonBlocked), nil
	}

	accepted, closeFriend := social.IsAcceptedFollower(view)
	if content.CloseFriendsOnly && !(accepted && closeFriend) {
		return deny(social.ReasonNotCloseFriend), nil
	}

	private, err := g.accounts.IsPrivate(ctx, content.Owner)
	if err != nil {
		return Decision{}, social.Infra("check privacy", err)
	}
	if private && !accepted {
		return deny(social.ReasonPrivateAccount), nil
	}
	return allow(), nil
}

// CanViewProfile applies the block and privacy checks to an account's
// non-restricted content, such as its post list or follower lists.
func (g *Guard) CanViewProfile(ctx context.Context, viewer, owner string) (Decision, error) {
	return g.CanViewContent(ctx, viewer, social.Content{Owner: owner})
}
