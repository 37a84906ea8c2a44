package social

// BlockStatus tells which side of a pair holds a block edge.
type BlockStatus string

const (
	BlockedByViewer BlockStatus = "blockedByViewer"
	BlockedByTarget BlockStatus = "blockedByTarget"
	BlockedBoth     BlockStatus = "both"
)

// RelationshipView is the classified relationship between a viewer and a
// target. The set of variants is closed: Blocked, Following and NoConnection.
// Use MatchRelationship to branch on it so every variant is handled.
type RelationshipView interface {
	relationshipView()
	Kind() string
}

// Blocked means a block edge exists in at least one direction.
type Blocked struct {
	Status BlockStatus `json:"status"`
}

// Following means there is a follow edge viewer -> target and no block.
type Following struct {
	Status      FollowStatus `json:"status"`
	CloseFriend bool         `json:"close_friend"`
}

// NoConnection means neither a block nor a follow edge viewer -> target.
type NoConnection struct{}

func (Blocked) relationshipView()      {}
func (Following) relationshipView()    {}
func (NoConnection) relationshipView() {}

func (Blocked) Kind() string      { return "blocked" }
func (Following) Kind() string    { return "following" }
func (NoConnection) Kind() string { return "none" }

// RelationshipCases holds one handler per RelationshipView variant.
type RelationshipCases[T any] struct {
	Blocked      func(Blocked) T
	Following    func(Following) T
	NoConnection func() T
}

// MatchRelationship dispatches v to the handler for its variant. It panics if
// a handler is missing or v is nil, which can only be a programming error.
func MatchRelationship[T any](v RelationshipView, c RelationshipCases[T]) T {
	if c.Blocked == nil || c.Following == nil || c.NoConnection == nil {
		panic("social: MatchRelationship requires a handler for every variant")
	}
	switch rv := v.(type) {
	case Blocked:
		return c.Blocked(rv)
	case Following:
		return c.Following(rv)
	case NoConnection:
		return c.NoConnection()
	default:
		panic("social: unknown relationship view")
	}
}

// IsAcceptedFollower reports whether v is an accepted follow, and whether the
// follower is flagged as a close friend.
func IsAcceptedFollower(v RelationshipView) (accepted, closeFriend bool) {
	type result struct{ accepted, close bool }
	r := MatchRelationship(v, RelationshipCases[result]{
		Blocked: func(Blocked) result { return result{} },
		Following: func(f Following) result {
			if f.Status != FollowAccepted {
				return result{}
			}
			return result{accepted: true, close: f.CloseFriend}
		},
		NoConnection: func() result { return result{} },
	})
	return r.accepted, r.close
}
