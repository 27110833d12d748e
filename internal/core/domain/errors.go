package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("configuration error")
	ErrPrecondition  = errors.New("precondition failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// LookupError reports an identifier that could not be resolved on an axis,
// neither exactly nor approximately. It unwraps to ErrNotFound.
type LookupError struct {
	Axis      string
	Requested string
}

func (e *LookupError) Error() string {
	axis := e.Axis
	if axis == "" {
		axis = "identifier"
	}
	return fmt.Sprintf("%s %q not found", axis, e.Requested)
}

func (e *LookupError) Unwrap() error {
	return ErrNotFound
}

// KindName returns a stable short name for the error kind carried by err.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrNotFound):
		return "not_found"
	case IsKind(err, ErrInvalidInput):
		return "invalid_input"
	case IsKind(err, ErrConfiguration):
		return "configuration"
	case IsKind(err, ErrPrecondition):
		return "precondition"
	case IsKind(err, ErrUnauthorized):
		return "unauthorized"
	case IsKind(err, ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}

// KindFromName is the inverse of KindName. Unknown names map to nil.
func KindFromName(name string) error {
	switch name {
	case "not_found":
		return ErrNotFound
	case "invalid_input":
		return ErrInvalidInput
	case "configuration":
		return ErrConfiguration
	case "precondition":
		return ErrPrecondition
	case "unauthorized":
		return ErrUnauthorized
	case "temporary":
		return ErrTemporary
	default:
		return nil
	}
}
