package follow

import (
	"fmt"

	"socialgraph/internal/social"
)

// Action is the receiver's answer to a pending request.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

// Status returns the edge status the action moves a pending edge to.
func (a Action) Status() (social.FollowStatus, error) {
	switch a {
	case ActionAccept:
		return social.FollowAccepted, nil
	case ActionDecline:
		return social.FollowDeclined, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", social.ErrInvalidArgument, a)
}

type UserRequest struct {
	Username string `json:"username" binding:"required"`
}

type CloseFriendRequest struct {
	CloseFriend *bool `json:"close_friend" binding:"required"`
}

type RelationshipResponse struct {
	Username    string              `json:"username"`
	Kind        string              `json:"kind"`
	BlockStatus social.BlockStatus  `json:"block_status,omitempty"`
	Status      social.FollowStatus `json:"status,omitempty"`
	CloseFriend bool                `json:"close_friend,omitempty"`
}

func newRelationshipResponse(username string, v social.RelationshipView) RelationshipResponse {
	resp := RelationshipResponse{Username: username, Kind: v.Kind()}
	social.MatchRelationship(v, social.RelationshipCases[struct{}]{
		Blocked: func(b social.Blocked) struct{} {
			resp.BlockStatus = b.Status
			return struct{}{}
		},
		Following: func(f social.Following) struct{} {
			resp.Status = f.Status
			resp.CloseFriend = f.CloseFriend
			return struct{}{}
		},
		NoConnection: func() struct{} { return struct{}{} },
	})
	return resp
}

type FollowersResponse struct {
	Username  string   `json:"username"`
	Followers []string `json:"followers"`
}

type EdgesResponse struct {
	Username string              `json:"username"`
	Edges    []social.FollowEdge `json:"edges"`
}

type BlocksResponse struct {
	Blocks []social.BlockEdge `json:"blocks"`
}
