package cart

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/storefront-client/pkg/client"
)

var (
	// ErrInvalidQuantity is returned by Add for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrLoginRequired matches mutations rejected because the session is
	// not authenticated. The login redirect hook has already run.
	ErrLoginRequired = errors.New("login required")
)

// MutationError is a failed remote cart write. Local state is unchanged.
type MutationError struct {
	Op    string
	ID    int
	Class client.ErrorClass
	Err   error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("cart %s %d: %v", e.Op, e.ID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// Is reports unauthorized failures as ErrLoginRequired.
func (e *MutationError) Is(target error) bool {
	return target == ErrLoginRequired && e.Class == client.ClassUnauthorized
}

// UserMessage is the text shown to the user for this failure.
func (e *MutationError) UserMessage() string {
	var apiErr *client.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.UserMessage()
	}
	return client.UserMessage(e.Class, e.Err.Error())
}

// ClearError reports a partially applied Clear. Removed lines stay
// removed; Remaining lists the lines still in the cart, starting with
// the one that failed.
type ClearError struct {
	Removed   []int
	Remaining []int
	Err       error
}

// Error implements the error interface.
func (e *ClearError) Error() string {
	return fmt.Sprintf("clear cart: removed %d lines, %d remain: %v",
		len(e.Removed), len(e.Remaining), e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ClearError) Unwrap() error {
	return e.Err
}
