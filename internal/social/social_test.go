package social

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	cases := map[string]bool{
		"alice":       true,
		"bob.smith_2": true,
		"":            false,
		"with space":  false,
		"@alice":      false,
		"a/b":         false,
	}
	for name, ok := range cases {
		err := ValidateUsername(name)
		if ok {
			assert.NoError(t, err, name)
		} else {
			assert.ErrorIs(t, err, ErrInvalidArgument, name)
		}
	}
}

func TestValidatePairRejectsSelf(t *testing.T) {
	assert.ErrorIs(t, ValidatePair("alice", "alice"), ErrInvalidArgument)
	assert.NoError(t, ValidatePair("alice", "bob"))
}

func TestDenialIsForbidden(t *testing.T) {
	err := fmt.Errorf("like post: %w", Deny(ReasonBlocked))

	assert.ErrorIs(t, err, ErrForbidden)
	reason, ok := ReasonOf(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonBlocked, reason)
}

func TestInfraWrapsOnlyForeignErrors(t *testing.T) {
	assert.Nil(t, Infra("op", nil))
	assert.Equal(t, ErrNotFound, Infra("op", ErrNotFound))

	err := Infra("get follow", errors.New("connection reset"))
	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.False(t, IsDomain(err))
}

func TestMatchRelationship(t *testing.T) {
	cases := RelationshipCases[string]{
		Blocked:      func(b Blocked) string { return "blocked:" + string(b.Status) },
		Following:    func(f Following) string { return "following:" + string(f.Status) },
		NoConnection: func() string { return "none" },
	}

	assert.Equal(t, "blocked:both", MatchRelationship[string](Blocked{Status: BlockedBoth}, cases))
	assert.Equal(t, "following:pending", MatchRelationship[string](Following{Status: FollowPending}, cases))
	assert.Equal(t, "none", MatchRelationship[string](NoConnection{}, cases))
}

func TestIsAcceptedFollower(t *testing.T) {
	accepted, closeFriend := IsAcceptedFollower(Following{Status: FollowAccepted, CloseFriend: true})
	assert.True(t, accepted)
	assert.True(t, closeFriend)

	accepted, _ = IsAcceptedFollower(Following{Status: FollowPending})
	assert.False(t, accepted)

	accepted, _ = IsAcceptedFollower(Blocked{Status: BlockedByTarget})
	assert.False(t, accepted)
}
