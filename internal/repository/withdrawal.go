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

// Withdrawal-related repository errors.
var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrNotPending         = errors.New("withdrawal is not pending")
)

// WithdrawalRepository handles withdrawal request persistence.
type WithdrawalRepository struct {
	pool *pgxpool.Pool
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(pool *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{pool: pool}
}

const withdrawalColumns = `id, username, amount::text, status, created_at, resolved_at`

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	var amount string
	err := row.Scan(
		&w.ID,
		&w.Username,
		&amount,
		&w.Status,
		&w.CreatedAt,
		&w.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse withdrawal amount %q: %w", amount, err)
	}
	return &w, nil
}

// Create persists a new PENDING withdrawal request.
func (r *WithdrawalRepository) Create(ctx context.Context, w *model.Withdrawal) error {
	const query = `
		INSERT INTO withdrawals (id, username, amount, status, created_at)
		VALUES ($1, $2, $3::numeric, 'PENDING', NOW())
		RETURNING status, created_at
	`

	err := r.pool.QueryRow(ctx, query, w.ID, w.Username, w.Amount.String()).
		Scan(&w.Status, &w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return nil
}

// Get retrieves a withdrawal by id.
func (r *WithdrawalRepository) Get(ctx context.Context, id string) (*model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// SetStatusIfPending transitions a withdrawal out of PENDING. The
// update is conditional, so two concurrent approvals cannot both
// succeed; the loser gets ErrNotPending.
func (r *WithdrawalRepository) SetStatusIfPending(ctx context.Context, id string, status model.WithdrawalStatus) (*model.Withdrawal, error) {
	const query = `
		UPDATE withdrawals
		SET status = $2, resolved_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + withdrawalColumns

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id, string(status)))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update withdrawal status: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM withdrawals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check withdrawal existence: %w", err)
	}
	if !exists {
		return nil, ErrWithdrawalNotFound
	}
	return nil, ErrNotPending
}

// ListByUsername retrieves a user's withdrawal history, newest first.
func (r *WithdrawalRepository) ListByUsername(ctx context.Context, username string) ([]*model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE username = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, username)
}

// ListPending retrieves all unresolved withdrawal requests, oldest
// first so operators work the queue in order.
func (r *WithdrawalRepository) ListPending(ctx context.Context) ([]*model.Withdrawal, error) {
	const query = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE status = 'PENDING' ORDER BY created_at`
	return r.list(ctx, query)
}

func (r *WithdrawalRepository) list(ctx context.Context, query string, args ...any) ([]*model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}
	return withdrawals, nil
}
