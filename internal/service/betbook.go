package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/metrics"
	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/notify"
	"daily-bet-platform/internal/odds"
	"daily-bet-platform/internal/repository"
)

// LineGetter fetches a daily line by its date key.
type LineGetter interface {
	Get(ctx context.Context, date string) (*model.DailyLine, error)
}

// BetStore is the persistence surface of the bet book.
type BetStore interface {
	Create(ctx context.Context, bet *model.Bet) error
	ListByLine(ctx context.Context, lineID string) ([]*model.Bet, error)
	VolumeByLine(ctx context.Context, lineID string) (yesTotal, noTotal decimal.Decimal, err error)
}

// BalanceLedger is the slice of the Ledger the bet book and the
// settlement engine use.
type BalanceLedger interface {
	Debit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error)
}

// PlacedBet is the result of an accepted wager.
type PlacedBet struct {
	Bet     *model.Bet
	Balance decimal.Decimal
	Volume  model.VolumeSummary
}

// EnrichedBet pairs a bet with its derived status.
type EnrichedBet struct {
	Bet    *model.Bet
	Status model.BetStatus
}

// BetBook accepts wagers against the daily line and tracks aggregate
// volume.
type BetBook struct {
	lines    LineGetter
	bets     BetStore
	ledger   BalanceLedger
	notifier notify.Notifier
}

// NewBetBook creates a new BetBook instance.
func NewBetBook(lines LineGetter, bets BetStore, ledger BalanceLedger, notifier notify.Notifier) *BetBook {
	return &BetBook{
		lines:    lines,
		bets:     bets,
		ledger:   ledger,
		notifier: notifier,
	}
}

// PlaceBet validates the wager against the line's state, debits the
// stake and persists the bet. The debit happens first; if the bet
// cannot be persisted the stake is credited back, so a persisted bet
// always has a matching successful debit and vice versa. The volume
// broadcast happens only after everything committed.
func (b *BetBook) PlaceBet(ctx context.Context, username, lineID string, choice model.Side, amount decimal.Decimal) (*PlacedBet, error) {
	if username == "" || lineID == "" {
		return nil, ErrMissingField
	}
	if !amount.IsPositive() {
		metrics.BetsRejected.WithLabelValues("invalid_amount").Inc()
		return nil, ErrInvalidAmount
	}
	if !choice.Valid() {
		metrics.BetsRejected.WithLabelValues("invalid_choice").Inc()
		return nil, ErrInvalidChoice
	}

	line, err := b.lines.Get(ctx, lineID)
	if err != nil {
		if errors.Is(err, repository.ErrLineNotFound) {
			metrics.BetsRejected.WithLabelValues("line_not_found").Inc()
			return nil, ErrLineNotFound
		}
		return nil, fmt.Errorf("failed to fetch line: %w", err)
	}
	if !line.BettingOpen(time.Now()) {
		metrics.BetsRejected.WithLabelValues("betting_closed").Inc()
		return nil, ErrBettingClosed
	}

	balance, err := b.ledger.Debit(ctx, username, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			metrics.BetsRejected.WithLabelValues("insufficient_funds").Inc()
		}
		return nil, err
	}

	bet := &model.Bet{
		ID:       uuid.NewString(),
		Username: username,
		LineID:   lineID,
		Choice:   choice,
		Amount:   amount,
	}
	if err := b.bets.Create(ctx, bet); err != nil {
		// Roll the debit back so no stake is lost to a failed write.
		if _, cerr := b.ledger.Credit(ctx, username, amount); cerr != nil {
			log.Error().Err(cerr).
				Str("username", username).
				Str("amount", amount.String()).
				Msg("Failed to refund stake after bet persist failure; manual reconciliation required")
		}
		return nil, fmt.Errorf("failed to persist bet: %w", err)
	}

	volume, err := b.Volume(ctx, lineID)
	if err != nil {
		// The bet is committed; volume is a derived view.
		log.Warn().Err(err).Str("line_id", lineID).Msg("Failed to recompute volume after bet")
		volume = model.VolumeSummary{LineID: lineID}
	} else {
		b.notifier.Publish(ctx, notify.EventVolumeUpdated, volume)
	}

	metrics.BetsPlaced.Inc()
	log.Info().
		Str("username", username).
		Str("line_id", lineID).
		Str("choice", string(choice)).
		Str("amount", amount.String()).
		Msg("Bet placed")

	return &PlacedBet{Bet: bet, Balance: balance, Volume: volume}, nil
}

// ListBets returns all bets on a line, newest first.
func (b *BetBook) ListBets(ctx context.Context, lineID string) ([]*model.Bet, error) {
	bets, err := b.bets.ListByLine(ctx, lineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	return bets, nil
}

// Volume aggregates the wagered amounts on a line.
func (b *BetBook) Volume(ctx context.Context, lineID string) (model.VolumeSummary, error) {
	yesTotal, noTotal, err := b.bets.VolumeByLine(ctx, lineID)
	if err != nil {
		return model.VolumeSummary{}, err
	}
	yesPercent, noPercent := odds.Percentages(yesTotal, noTotal)
	return model.VolumeSummary{
		LineID:     lineID,
		YesTotal:   yesTotal,
		NoTotal:    noTotal,
		Total:      yesTotal.Add(noTotal),
		YesPercent: yesPercent,
		NoPercent:  noPercent,
	}, nil
}

// EnrichWithStatus derives each bet's status from the line's outcome:
// PENDING while unresolved, then WON or LOST. Pure function.
func EnrichWithStatus(bets []*model.Bet, line *model.DailyLine) []EnrichedBet {
	enriched := make([]EnrichedBet, 0, len(bets))
	for _, bet := range bets {
		status := model.BetStatusPending
		if line.Resolved() {
			if bet.Choice == *line.WinningSide {
				status = model.BetStatusWon
			} else {
				status = model.BetStatusLost
			}
		}
		enriched = append(enriched, EnrichedBet{Bet: bet, Status: status})
	}
	return enriched
}
