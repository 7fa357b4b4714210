// Package service provides business logic implementations.
package service

import "errors"

// Typed failures surfaced by the core operations. The boundary layer
// maps these to transport responses; the core never retries on behalf
// of the caller.
var (
	// Validation errors: the caller's input is malformed.
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidChoice = errors.New("choice must be YES or NO")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
	ErrInvalidOdds   = errors.New("odds must be valid American odds")

	// Not-found errors.
	ErrUserNotFound       = errors.New("user not found")
	ErrLineNotFound       = errors.New("no line set for that date")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrTxNotFound         = errors.New("transaction not found on chain")

	// State conflicts.
	ErrBettingClosed   = errors.New("betting is closed")
	ErrAlreadyResolved = errors.New("line already resolved")
	ErrInvalidState    = errors.New("withdrawal already resolved")

	// Terminal request failures.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateTx       = errors.New("transaction id already used")
	ErrAddressMismatch   = errors.New("sender address mismatch")
	ErrRecipientMismatch = errors.New("transaction did not go to the platform address")

	// Transient: the chain lookup failed before any mutation, so the
	// caller may retry.
	ErrChainUnavailable = errors.New("chain lookup unavailable")
)
