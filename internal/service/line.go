package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/notify"
	"daily-bet-platform/internal/odds"
	"daily-bet-platform/internal/repository"
)

// dateKeyLayout is the calendar date key format for daily lines.
const dateKeyLayout = "2006-01-02"

// LineRepo is the persistence surface of the line store.
type LineRepo interface {
	Upsert(ctx context.Context, line *model.DailyLine) (*model.DailyLine, error)
	Get(ctx context.Context, date string) (*model.DailyLine, error)
	SetWinningSide(ctx context.Context, date string, side model.Side) (*model.DailyLine, error)
	SetActive(ctx context.Context, date string, active bool) error
	ListExpiredActive(ctx context.Context, now time.Time) ([]*model.DailyLine, error)
}

// LineStore owns the single daily proposition and its state
// transitions: upsert while unresolved, a one-time resolution that
// triggers settlement, and deactivation once the cutoff passes.
type LineStore struct {
	lines      LineRepo
	bets       BetStore
	settlement *Settlement
	notifier   notify.Notifier
}

// NewLineStore creates a new LineStore instance.
func NewLineStore(lines LineRepo, bets BetStore, settlement *Settlement, notifier notify.Notifier) *LineStore {
	return &LineStore{
		lines:      lines,
		bets:       bets,
		settlement: settlement,
		notifier:   notifier,
	}
}

// DateKey formats an instant as the line key for its calendar day.
func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

// SetLine upserts the line for a date and reactivates it. A resolved
// line is terminal and cannot be overwritten.
func (s *LineStore) SetLine(ctx context.Context, date, question string, yesOdds, noOdds int, cutoff time.Time) (*model.DailyLine, error) {
	if question == "" {
		return nil, ErrMissingField
	}
	if _, err := time.Parse(dateKeyLayout, date); err != nil {
		return nil, ErrInvalidDate
	}
	if !odds.ValidAmerican(yesOdds) || !odds.ValidAmerican(noOdds) {
		return nil, ErrInvalidOdds
	}

	line, err := s.lines.Upsert(ctx, &model.DailyLine{
		Date:       date,
		Question:   question,
		YesOdds:    yesOdds,
		NoOdds:     noOdds,
		CutoffTime: cutoff,
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyResolved) {
			return nil, ErrAlreadyResolved
		}
		return nil, fmt.Errorf("failed to set line: %w", err)
	}

	s.notifier.Publish(ctx, notify.EventLineUpdated, line)
	log.Info().
		Str("date", line.Date).
		Str("question", line.Question).
		Str("yes_odds", odds.FormatAmerican(line.YesOdds)).
		Str("no_odds", odds.FormatAmerican(line.NoOdds)).
		Time("cutoff", line.CutoffTime).
		Msg("Daily line set")
	return line, nil
}

// GetLine returns the line for a date key.
func (s *LineStore) GetLine(ctx context.Context, date string) (*model.DailyLine, error) {
	line, err := s.lines.Get(ctx, date)
	if err != nil {
		if errors.Is(err, repository.ErrLineNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("failed to get line: %w", err)
	}
	return line, nil
}

// Resolve declares the winning side and settles every bet on the line.
// The winning-side transition happens first and exactly once, so a
// repeated resolution is rejected before any payout can repeat. The
// line is marked inactive even when some credits fail: resolution is a
// one-time event and failed credits are a reconciliation concern, not
// a reason to leave the line in limbo. Partial failures are surfaced
// through PartialSettlementError alongside the report.
func (s *LineStore) Resolve(ctx context.Context, date string, side model.Side) (*model.DailyLine, *SettlementReport, error) {
	if !side.Valid() {
		return nil, nil, ErrInvalidChoice
	}

	line, err := s.lines.SetWinningSide(ctx, date, side)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLineNotFound):
			return nil, nil, ErrLineNotFound
		case errors.Is(err, repository.ErrAlreadyResolved):
			return nil, nil, ErrAlreadyResolved
		default:
			return nil, nil, fmt.Errorf("failed to resolve line: %w", err)
		}
	}

	bets, err := s.bets.ListByLine(ctx, date)
	if err != nil {
		// The outcome is recorded; without the bet list settlement
		// cannot run and must be redone by hand.
		return line, nil, fmt.Errorf("line resolved but bets could not be loaded: %w", err)
	}

	report := s.settlement.Settle(ctx, line, bets)

	if err := s.lines.SetActive(ctx, date, false); err != nil {
		log.Error().Err(err).Str("date", date).Msg("Failed to deactivate resolved line")
	}
	line.IsActive = false

	s.notifier.Publish(ctx, notify.EventLineUpdated, line)

	if len(report.Failures) > 0 {
		return line, report, &PartialSettlementError{Failures: report.Failures}
	}
	return line, report, nil
}

// CloseExpired deactivates unresolved lines whose cutoff has passed and
// broadcasts their final pre-resolution state. Returns how many lines
// were closed.
func (s *LineStore) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.lines.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired lines: %w", err)
	}

	closed := 0
	for _, line := range expired {
		if err := s.lines.SetActive(ctx, line.Date, false); err != nil {
			log.Error().Err(err).Str("date", line.Date).Msg("Failed to deactivate expired line")
			continue
		}
		line.IsActive = false
		s.notifier.Publish(ctx, notify.EventLineUpdated, line)
		closed++
	}
	if closed > 0 {
		log.Info().Int("closed", closed).Msg("Expired lines deactivated")
	}
	return closed, nil
}
