package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/notify"
	"daily-bet-platform/internal/pkg/lock"
	"daily-bet-platform/internal/repository"
)

// UserStore is the persistence surface the ledger needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetOrCreate(ctx context.Context, username string) (*model.User, bool, error)
	CreditBalance(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error)
	DebitBalanceIfSufficient(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error)
	ListByBalance(ctx context.Context, limit int) ([]*model.User, error)
	TouchLastActive(ctx context.Context, username string) error
}

// Ledger exclusively owns balance mutation. Debits and credits are
// linearizable per user: the store applies them as single conditional
// updates and the per-user lock bounds how long a debit may wait its
// turn. Balance arithmetic is decimal throughout; no floats.
type Ledger struct {
	users       UserStore
	locks       *lock.AccountLock
	notifier    notify.Notifier
	lockTimeout time.Duration
}

// NewLedger creates a new Ledger instance.
func NewLedger(users UserStore, locks *lock.AccountLock, notifier notify.Notifier, lockTimeout time.Duration) *Ledger {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Ledger{
		users:       users,
		locks:       locks,
		notifier:    notifier,
		lockTimeout: lockTimeout,
	}
}

// Debit atomically decrements the user's balance if it covers the
// amount. Returns the new balance, ErrInsufficientFunds or
// ErrUserNotFound. The notification goes out only after the debit
// committed, outside the lock.
func (l *Ledger) Debit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	var balance decimal.Decimal
	err := l.locks.WithLockContext(ctx, username, l.lockTimeout, func() error {
		var err error
		balance, err = l.users.DebitBalanceIfSufficient(ctx, username, amount)
		return err
	})
	if err != nil {
		return decimal.Zero, mapUserErr(err, "debit")
	}

	l.notifier.Publish(ctx, notify.EventBalanceUpdated, notify.BalancePayload{
		Username: username,
		Balance:  balance.String(),
	})
	return balance, nil
}

// Credit atomically increments the user's balance and returns the new
// balance. Fails only with ErrUserNotFound.
func (l *Ledger) Credit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	balance, err := l.users.CreditBalance(ctx, username, amount)
	if err != nil {
		return decimal.Zero, mapUserErr(err, "credit")
	}

	l.notifier.Publish(ctx, notify.EventBalanceUpdated, notify.BalancePayload{
		Username: username,
		Balance:  balance.String(),
	})
	return balance, nil
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	user, err := l.users.GetByUsername(ctx, username)
	if err != nil {
		return decimal.Zero, mapUserErr(err, "get balance")
	}
	return user.Balance, nil
}

// EnsureUser returns the account for a username, creating it on first
// successful authentication. Existing accounts get their last_active
// refreshed.
func (l *Ledger) EnsureUser(ctx context.Context, username string) (*model.User, bool, error) {
	if username == "" {
		return nil, false, ErrMissingField
	}

	user, created, err := l.users.GetOrCreate(ctx, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	if !created {
		if err := l.users.TouchLastActive(ctx, username); err != nil {
			// Non-fatal: the account exists, the timestamp is cosmetic.
			log.Warn().Err(err).Str("username", username).Msg("Failed to update last_active")
		}
	} else {
		log.Info().Str("username", username).Msg("New user created")
	}

	return user, created, nil
}

// ListUsers returns accounts ordered by balance, richest first.
func (l *Ledger) ListUsers(ctx context.Context, limit int) ([]*model.User, error) {
	return l.users.ListByBalance(ctx, limit)
}

// mapUserErr translates repository sentinels into the service taxonomy.
func mapUserErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrInsufficientFunds):
		return ErrInsufficientFunds
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
