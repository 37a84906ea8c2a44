// Package postgres implements the social stores and directories on pgx.
package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"socialgraph/internal/social"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// mapError translates driver errors into the domain taxonomy. Anything it
// does not recognize is returned wrapped with op for the caller to classify.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return social.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, social.ErrConflict)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, social.ErrNotFound)
		case checkViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, social.ErrInvalidArgument)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
