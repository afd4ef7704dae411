package order

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("invalid order")
	ErrNotFound         = errors.New("not found")
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrForbidden        = errors.New("order does not belong to vendor")
	ErrAlreadyConfirmed = errors.New("order already confirmed")
	ErrSubmitConflict   = errors.New("another order submission for this user is in progress")
)

// ValidationError describes why a cart was rejected. It matches ErrValidation.
type ValidationError struct {
	Reason  string
	Product string
	Tag     string
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Product != "" {
		msg += fmt.Sprintf(" (product %q", e.Product)
		if e.Tag != "" {
			msg += fmt.Sprintf(", tag %q", e.Tag)
		}
		msg += ")"
	} else if e.Tag != "" {
		msg += fmt.Sprintf(" (tag %q)", e.Tag)
	}
	return msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func invalidOption(reason, product, tag string) *ValidationError {
	return &ValidationError{Reason: reason, Product: product, Tag: tag}
}

// notFound wraps ErrNotFound with what was missing.
func notFound(what string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(what, args...), ErrNotFound)
}
