package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrUserNotFound          = errors.New("user not found")
	ErrProjectNotFound       = errors.New("project not found")
	ErrSessionNotFound       = errors.New("checkout session not found")
	ErrSessionIncomplete     = errors.New("checkout session not completed")
	ErrInvalidMetadata       = errors.New("invalid processor metadata")
	ErrInvalidPlan           = errors.New("invalid plan")
	ErrSubscriptionActive    = errors.New("active subscription already exists")
	ErrPaymentRequestMissing = errors.New("payment request not created")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrAlreadyPaid           = errors.New("payment already settled")
	ErrTokenInvalid          = errors.New("login token invalid")
	ErrNoCustomer            = errors.New("no processor customer on file")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidInput          = errors.New("invalid input")
)

// StorageError marks a persistence failure. These are transient: the webhook
// handler maps them to a retryable response.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it is nil or a domain sentinel
// that callers are expected to match.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrUserNotFound, ErrProjectNotFound, ErrEmailTaken} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is a transient persistence failure.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
