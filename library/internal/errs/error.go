package errs

import (
	"errors"
)

// Loan lifecycle.
var (
	ErrNotFound               = errors.New("not found")
	ErrOutOfStock             = errors.New("no copies available")
	ErrInvariantViolation     = errors.New("inventory invariant violated")
	ErrInvalidStateTransition = errors.New("invalid loan line state transition")
	ErrReturnNotAllowed       = errors.New("loan line is not borrowed")
	ErrFineNotSettled         = errors.New("fine is not settled")
	ErrTitleInactive          = errors.New("title is inactive")
	ErrInvalidDueDate         = errors.New("expected return date is in the past")
	ErrEmptyBatch             = errors.New("empty batch")
)

var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked")
	ErrEmptyPatch         = errors.New("nothing to update")
	ErrInUse              = errors.New("resource is still referenced")
)
