package social

import "context"

// RelationshipStore persists follow and block edges. Implementations must
// enforce at most one follow edge and one block edge per ordered pair and
// report a violation as ErrConflict.
type RelationshipStore interface {
	GetFollow(ctx context.Context, follower, following string) (*FollowEdge, error)
	CreateFollow(ctx context.Context, edge *FollowEdge) error
	// TransitionFollow moves the edge from one status to another and fails
	// with ErrNotFound when no edge in status from exists.
	TransitionFollow(ctx context.Context, follower, following string, from, to FollowStatus) (*FollowEdge, error)
	SetCloseFriend(ctx context.Context, follower, following string, value bool) (*FollowEdge, error)
	// DeleteFollow removes the edge only when it is in the given status.
	DeleteFollow(ctx context.Context, follower, following string, status FollowStatus) error

	BlockExists(ctx context.Context, blocker, blocked string) (bool, error)
	// BlockedAmong returns the candidates that share a block edge with
	// username in either direction.
	BlockedAmong(ctx context.Context, username string, candidates []string) (map[string]bool, error)
	// CreateBlock inserts the block and removes follow edges between the pair
	// in both directions as one unit.
	CreateBlock(ctx context.Context, edge *BlockEdge) error
	DeleteBlock(ctx context.Context, blocker, blocked string) error

	// StreamFollowers yields accepted followers of owner in batches. With
	// closeOnly only close-friend followers are yielded.
	StreamFollowers(ctx context.Context, owner string, closeOnly bool, batchSize int, yield func([]string) error) error
	ListFollowing(ctx context.Context, follower string) ([]FollowEdge, error)
	ListRequests(ctx context.Context, following string) ([]FollowEdge, error)
	ListBlocked(ctx context.Context, blocker string) ([]BlockEdge, error)
	CountFollowers(ctx context.Context, username string) (int64, error)
	CountFollowing(ctx context.Context, username string) (int64, error)
}

// NotificationStore persists canonical notifications and their fan-out rows.
type NotificationStore interface {
	// CreateNotification inserts n. When n.IdempotencyKey is set and a row
	// with the same key exists, n is filled from that row and created is false.
	CreateNotification(ctx context.Context, n *Notification) (created bool, err error)
	// FindFollowRequest returns the followRequest notification from creator to
	// target. A non-empty entityID narrows the match, otherwise the latest wins.
	FindFollowRequest(ctx context.Context, creator, target, entityID string) (*Notification, error)
	SetOutcome(ctx context.Context, notificationID string, outcome Outcome) error
	// AddRecipients inserts one UserNotification per username, skipping pairs
	// that already exist, and returns how many rows were written.
	AddRecipients(ctx context.Context, notificationID string, usernames []string) (int64, error)
	ListInbox(ctx context.Context, username string, limit int) ([]InboxItem, error)
	CountUnseen(ctx context.Context, username string) (int64, error)
	MarkSeen(ctx context.Context, username, notificationID string) error
}

// AccountDirectory is the identity subsystem as seen by this core.
type AccountDirectory interface {
	Exists(ctx context.Context, username string) (bool, error)
	IsPrivate(ctx context.Context, username string) (bool, error)
}

// ContentDirectory resolves ownership and audience flags for a content id.
type ContentDirectory interface {
	Lookup(ctx context.Context, contentID string) (*Content, error)
}

// LikeStore persists likes, unique per (username, post).
type LikeStore interface {
	// CreateLike fails with ErrConflict when the like already exists.
	CreateLike(ctx context.Context, like *Like) error
	DeleteLike(ctx context.Context, username, postID string) error
	CountLikes(ctx context.Context, postID string) (int64, error)
	HasLiked(ctx context.Context, username, postID string) (bool, error)
}

// CommentStore persists comments. Updates and deletes match on the author.
type CommentStore interface {
	CreateComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	UpdateComment(ctx context.Context, id, username, body string) (*Comment, error)
	DeleteComment(ctx context.Context, id, username string) error
	ListComments(ctx context.Context, postID string) ([]Comment, error)
}
