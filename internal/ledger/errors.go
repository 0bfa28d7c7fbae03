package ledger

import "errors"

var (
	// ErrInsufficientFunds: a debit would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound: unknown or already-resolved pending id, or unknown
	// username on an explicit lookup.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount: non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnauthorized: privileged-only operation attempted by another
	// identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyClaimed: the one-time starting grant was already taken.
	ErrAlreadyClaimed = errors.New("already claimed")
)

// StorageError wraps a driver-level failure. Business conditions
// (insufficient funds, missing rows) use the sentinels above instead.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }
