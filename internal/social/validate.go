package social

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,64}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateUsername rejects empty or malformed account identifiers.
func ValidateUsername(username string) error {
	if err := validate.Var(username, "required,handle"); err != nil {
		return fmt.Errorf("%w: username %q", ErrInvalidArgument, username)
	}
	return nil
}

// ValidatePair validates both identities and rejects a self pair.
func ValidatePair(a, b string) error {
	if err := ValidateUsername(a); err != nil {
		return err
	}
	if err := ValidateUsername(b); err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("%w: %q cannot relate to itself", ErrInvalidArgument, a)
	}
	return nil
}

// Validator exposes the shared validator, with the "handle" tag registered,
// for struct-tag checks elsewhere.
func Validator() *validator.Validate {
	return validate
}
