// Package social holds the relationship and notification domain shared by the
// follow, relation and notification packages and by every store implementation.
package social

import "time"

// FollowStatus is the lifecycle state of a follow edge.
type FollowStatus string

const (
	FollowPending  FollowStatus = "pending"
	FollowAccepted FollowStatus = "accepted"
	FollowDeclined FollowStatus = "declined"
)

// Valid reports whether s is one of the known statuses.
func (s FollowStatus) Valid() bool {
	switch s {
	case FollowPending, FollowAccepted, FollowDeclined:
		return true
	}
	return false
}

// FollowEdge is a directed follow relationship Follower -> Following.
// CloseFriend is only meaningful while Status is accepted and is granted by
// the followed user.
type FollowEdge struct {
	ID          string       `json:"id"`
	Follower    string       `json:"follower_username"`
	Following   string       `json:"following_username"`
	Status      FollowStatus `json:"status"`
	CloseFriend bool         `json:"close_friend"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BlockEdge is a directed block Blocker -> Blocked.
type BlockEdge struct {
	ID        string    `json:"id"`
	Blocker   string    `json:"blocker_username"`
	Blocked   string    `json:"blocking_username"`
	CreatedAt time.Time `json:"created_at"`
}

// Content is the slice of a post the visibility rules care about.
type Content struct {
	ID               string `json:"id"`
	Owner            string `json:"owner"`
	CloseFriendsOnly bool   `json:"close_friends_only"`
}

// Counts are follower/following totals recomputed from accepted edges.
type Counts struct {
	Username  string `json:"username"`
	Followers int64  `json:"followers"`
	Following int64  `json:"following"`
}

// ActionType names the kind of action carried by a queue event.
type ActionType string

const (
	ActionLike           ActionType = "like"
	ActionComment        ActionType = "comment"
	ActionFollow         ActionType = "follow"
	ActionFollowRequest  ActionType = "followRequest"
	ActionFollowAccepted ActionType = "followAccepted"
	ActionFollowDeclined ActionType = "followDeclined"
	ActionMention        ActionType = "mention"
)

// Valid reports whether t is one of the known action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionLike, ActionComment, ActionFollow, ActionFollowRequest,
		ActionFollowAccepted, ActionFollowDeclined, ActionMention:
		return true
	}
	return false
}

// IsDecision reports whether t answers an earlier follow request instead of
// producing a notification of its own.
func (t ActionType) IsDecision() bool {
	return t == ActionFollowAccepted || t == ActionFollowDeclined
}

// Outcome is the recorded answer to a follow request notification.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomePending  Outcome = "pending"
	OutcomeAccepted Outcome = "accepted"
	OutcomeDeclined Outcome = "declined"
)

// Notification is the canonical record of one action.
type Notification struct {
	ID             string     `json:"id"`
	ActionCreator  string     `json:"action_creator"`
	ActionType     ActionType `json:"action_type"`
	TargetEntityID string     `json:"target_entity_id"`
	TargetUser     string     `json:"target_user"`
	Outcome        Outcome    `json:"outcome,omitempty"`
	IdempotencyKey string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// UserNotification is one recipient's copy of a Notification.
type UserNotification struct {
	Username       string    `json:"username"`
	NotificationID string    `json:"notification_id"`
	Seen           bool      `json:"seen"`
	CreatedAt      time.Time `json:"created_at"`
}

// InboxItem joins a UserNotification with its Notification for reading.
type InboxItem struct {
	Notification
	Seen bool `json:"seen"`
}

// Like is one account's like on a post.
type Like struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a comment on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
