package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"daily-bet-platform/internal/model"
)

// Line-related repository errors.
var (
	ErrLineNotFound    = errors.New("daily line not found")
	ErrAlreadyResolved = errors.New("daily line already resolved")
)

// LineRepository handles daily line persistence. Lines are keyed by the
// calendar date string (YYYY-MM-DD), one per day.
type LineRepository struct {
	pool *pgxpool.Pool
}

// NewLineRepository creates a new LineRepository instance.
func NewLineRepository(pool *pgxpool.Pool) *LineRepository {
	return &LineRepository{pool: pool}
}

const lineColumns = `date, question, yes_odds, no_odds, cutoff_time, is_active, winning_side, created_at, updated_at`

func scanLine(row pgx.Row) (*model.DailyLine, error) {
	var line model.DailyLine
	var winningSide *string
	err := row.Scan(
		&line.Date,
		&line.Question,
		&line.YesOdds,
		&line.NoOdds,
		&line.CutoffTime,
		&line.IsActive,
		&winningSide,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if winningSide != nil {
		side := model.Side(*winningSide)
		line.WinningSide = &side
	}
	return &line, nil
}

// Upsert inserts or overwrites the line for its date key and reactivates
// it. A line whose winning side is already set is terminal: the update
// is conditionally skipped and ErrAlreadyResolved is returned, so a
// resolution can never be silently overwritten.
func (r *LineRepository) Upsert(ctx context.Context, line *model.DailyLine) (*model.DailyLine, error) {
	const query = `
		INSERT INTO daily_lines (date, question, yes_odds, no_odds, cutoff_time, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		ON CONFLICT (date) DO UPDATE
		SET question = EXCLUDED.question,
		    yes_odds = EXCLUDED.yes_odds,
		    no_odds = EXCLUDED.no_odds,
		    cutoff_time = EXCLUDED.cutoff_time,
		    is_active = TRUE,
		    updated_at = NOW()
		WHERE daily_lines.winning_side IS NULL
		RETURNING ` + lineColumns

	stored, err := scanLine(r.pool.QueryRow(ctx, query,
		line.Date, line.Question, line.YesOdds, line.NoOdds, line.CutoffTime))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyResolved
		}
		return nil, fmt.Errorf("failed to upsert line: %w", err)
	}
	return stored, nil
}

// Get retrieves the line for a date key.
// Returns ErrLineNotFound if no line is set for that date.
func (r *LineRepository) Get(ctx context.Context, date string) (*model.DailyLine, error) {
	const query = `SELECT ` + lineColumns + ` FROM daily_lines WHERE date = $1`

	line, err := scanLine(r.pool.QueryRow(ctx, query, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("failed to get line: %w", err)
	}
	return line, nil
}

// SetWinningSide declares the outcome for a line. The update only
// applies while winning_side is unset, which makes resolution a
// one-time transition: a second call reports ErrAlreadyResolved.
func (r *LineRepository) SetWinningSide(ctx context.Context, date string, side model.Side) (*model.DailyLine, error) {
	const query = `
		UPDATE daily_lines
		SET winning_side = $2, updated_at = NOW()
		WHERE date = $1 AND winning_side IS NULL
		RETURNING ` + lineColumns

	line, err := scanLine(r.pool.QueryRow(ctx, query, date, string(side)))
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to set winning side: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM daily_lines WHERE date = $1)`, date).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check line existence: %w", err)
	}
	if !exists {
		return nil, ErrLineNotFound
	}
	return nil, ErrAlreadyResolved
}

// SetActive flips the line's active flag.
func (r *LineRepository) SetActive(ctx context.Context, date string, active bool) error {
	const query = `UPDATE daily_lines SET is_active = $2, updated_at = NOW() WHERE date = $1`

	result, err := r.pool.Exec(ctx, query, date, active)
	if err != nil {
		return fmt.Errorf("failed to set line active flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

// ListExpiredActive returns unresolved lines still flagged active whose
// cutoff has passed. Used by the cutoff sweep job.
func (r *LineRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]*model.DailyLine, error) {
	const query = `
		SELECT ` + lineColumns + `
		FROM daily_lines
		WHERE is_active AND winning_side IS NULL AND cutoff_time <= $1
		ORDER BY date
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired lines: %w", err)
	}
	defer rows.Close()

	var lines []*model.DailyLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines: %w", err)
	}
	return lines, nil
}
