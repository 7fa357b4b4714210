package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/model"
)

// BetRepository handles wager persistence. Bets are immutable once
// created.
type BetRepository struct {
	pool *pgxpool.Pool
}

// NewBetRepository creates a new BetRepository instance.
func NewBetRepository(pool *pgxpool.Pool) *BetRepository {
	return &BetRepository{pool: pool}
}

const betColumns = `id, username, line_id, choice, amount::text, created_at`

func scanBet(row pgx.Row) (*model.Bet, error) {
	var bet model.Bet
	var amount string
	err := row.Scan(
		&bet.ID,
		&bet.Username,
		&bet.LineID,
		&bet.Choice,
		&amount,
		&bet.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	bet.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bet amount %q: %w", amount, err)
	}
	return &bet, nil
}

// Create persists a bet with a server-assigned timestamp, which is
// written back into the given bet.
func (r *BetRepository) Create(ctx context.Context, bet *model.Bet) error {
	const query = `
		INSERT INTO bets (id, username, line_id, choice, amount, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, NOW())
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		bet.ID, bet.Username, bet.LineID, string(bet.Choice), bet.Amount.String(),
	).Scan(&bet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}
	return nil
}

// ListByLine retrieves all bets on a line, newest first.
func (r *BetRepository) ListByLine(ctx context.Context, lineID string) ([]*model.Bet, error) {
	const query = `SELECT ` + betColumns + ` FROM bets WHERE line_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	defer rows.Close()

	var bets []*model.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}
	return bets, nil
}

// VolumeByLine sums the wagered amounts per side in SQL.
func (r *BetRepository) VolumeByLine(ctx context.Context, lineID string) (yesTotal, noTotal decimal.Decimal, err error) {
	const query = `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE choice = 'YES'), 0)::text,
			COALESCE(SUM(amount) FILTER (WHERE choice = 'NO'), 0)::text
		FROM bets
		WHERE line_id = $1
	`

	var yes, no string
	if err = r.pool.QueryRow(ctx, query, lineID).Scan(&yes, &no); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to aggregate volume: %w", err)
	}
	if yesTotal, err = decimal.NewFromString(yes); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse yes total %q: %w", yes, err)
	}
	if noTotal, err = decimal.NewFromString(no); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse no total %q: %w", no, err)
	}
	return yesTotal, noTotal, nil
}
