package social

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInfrastructure  = errors.New("infrastructure failure")
)

// DenyReason tags why an authorization check failed.
type DenyReason string

const (
	ReasonBlocked        DenyReason = "blocked"
	ReasonNotCloseFriend DenyReason = "not-close-friend"
	ReasonPrivateAccount DenyReason = "private-account"
)

// Denial is a Forbidden error carrying the reason tag. Callers decide whether
// to surface the reason or mask it as not-found.
type Denial struct {
	Reason DenyReason
}

func (d *Denial) Error() string {
	return fmt.Sprintf("forbidden: %s", d.Reason)
}

func (d *Denial) Is(target error) bool {
	return target == ErrForbidden
}

// Deny returns a Denial for reason.
func Deny(reason DenyReason) error {
	return &Denial{Reason: reason}
}

// ReasonOf extracts the deny reason from err, if any.
func ReasonOf(err error) (DenyReason, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d.Reason, true
	}
	return "", false
}

// IsDomain reports whether err is one of the expected domain outcomes.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidArgument)
}

// Infra wraps a storage or queue failure as ErrInfrastructure. Domain errors
// and nil pass through unchanged.
func Infra(op string, err error) error {
	if err == nil || IsDomain(err) || errors.Is(err, ErrInfrastructure) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInfrastructure, err)
}
