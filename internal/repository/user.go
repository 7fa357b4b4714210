// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// UserRepository handles user account persistence. Balance columns are
// NUMERIC; values cross the wire as text and are parsed into decimals
// so no binary floating point ever touches money.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `username, balance::text, last_active, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	var balance string
	err := row.Scan(
		&user.Username,
		&balance,
		&user.LastActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}
	return &user, nil
}

// Create creates a new user with a zero balance.
func (r *UserRepository) Create(ctx context.Context, username string) (*model.User, error) {
	const query = `
		INSERT INTO users (username, balance, last_active, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by username, creating one if it doesn't
// exist. Accounts are created on first successful authentication.
func (r *UserRepository) GetOrCreate(ctx context.Context, username string) (*model.User, bool, error) {
	user, err := r.GetByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, username)
	if err != nil {
		// Handle race condition: another request might have created the user
		user, err = r.GetByUsername(ctx, username)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// CreditBalance atomically increments a user's balance and returns the
// new balance.
func (r *UserRepository) CreditBalance(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2::numeric, updated_at = NOW()
		WHERE username = $1
		RETURNING balance::text
	`

	var balance string
	err := r.pool.QueryRow(ctx, query, username, amount.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to credit balance: %w", err)
	}
	return decimal.NewFromString(balance)
}

// DebitBalanceIfSufficient decrements a user's balance only when the
// current balance covers the amount, in a single conditional update.
// Concurrent debits therefore can never drive the balance negative.
// Returns ErrInsufficientFunds or ErrUserNotFound otherwise.
func (r *UserRepository) DebitBalanceIfSufficient(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	const query = `
		UPDATE users
		SET balance = balance - $2::numeric, updated_at = NOW()
		WHERE username = $1 AND balance >= $2::numeric
		RETURNING balance::text
	`

	var balance string
	err := r.pool.QueryRow(ctx, query, username, amount.String()).Scan(&balance)
	if err == nil {
		return decimal.NewFromString(balance)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to debit balance: %w", err)
	}

	// Distinguish a missing user from an insufficient balance.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists); err != nil {
		return decimal.Zero, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return decimal.Zero, ErrUserNotFound
	}
	return decimal.Zero, ErrInsufficientFunds
}

// ListByBalance retrieves users ordered by balance, richest first.
// A limit of zero returns all users.
func (r *UserRepository) ListByBalance(ctx context.Context, limit int) ([]*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY balance DESC LIMIT NULLIF($1, 0)`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// TouchLastActive updates the user's last_active timestamp.
func (r *UserRepository) TouchLastActive(ctx context.Context, username string) error {
	const query = `UPDATE users SET last_active = NOW(), updated_at = NOW() WHERE username = $1`

	result, err := r.pool.Exec(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to touch last_active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
