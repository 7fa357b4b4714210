package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/metrics"
	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/odds"
)

// CreditFailure records a winner whose payout could not be applied.
type CreditFailure struct {
	BetID    string          `json:"bet_id"`
	Username string          `json:"username"`
	Payout   decimal.Decimal `json:"payout"`
	Reason   string          `json:"reason"`
}

// SettlementReport summarizes one settlement run.
type SettlementReport struct {
	LineID      string          `json:"line_id"`
	WinningSide model.Side      `json:"winning_side"`
	WinnersPaid int             `json:"winners_paid"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Failures    []CreditFailure `json:"failures,omitempty"`
}

// PartialSettlementError reports that the line was resolved but some
// winners could not be credited. The resolution itself stands; the
// failures need manual remediation.
type PartialSettlementError struct {
	Failures []CreditFailure
}

func (e *PartialSettlementError) Error() string {
	return fmt.Sprintf("settlement completed with %d failed credits", len(e.Failures))
}

// Settlement pays out winning bets when a line is resolved. The house
// is the counterparty: each winner receives stake plus fixed-odds
// profit, losers forfeited their stake at placement.
type Settlement struct {
	ledger BalanceLedger
}

// NewSettlement creates a new Settlement instance.
func NewSettlement(ledger BalanceLedger) *Settlement {
	return &Settlement{ledger: ledger}
}

// Settle credits every bet on the winning side exactly once. A failed
// credit is logged and recorded but never aborts the run: the
// remaining winners are still paid. Run-twice protection lives in the
// line store's one-time winning-side transition, not here.
func (s *Settlement) Settle(ctx context.Context, line *model.DailyLine, bets []*model.Bet) *SettlementReport {
	report := &SettlementReport{
		LineID:      line.Date,
		WinningSide: *line.WinningSide,
		TotalPaid:   decimal.Zero,
	}

	winOdds := line.SideOdds(report.WinningSide)
	for _, bet := range bets {
		if bet.Choice != report.WinningSide {
			continue
		}

		payout := odds.Payout(bet.Amount, winOdds)
		if _, err := s.ledger.Credit(ctx, bet.Username, payout); err != nil {
			metrics.SettlementCreditFailures.Inc()
			log.Error().Err(err).
				Str("line_id", line.Date).
				Str("bet_id", bet.ID).
				Str("username", bet.Username).
				Str("payout", payout.String()).
				Msg("Failed to credit winner")
			report.Failures = append(report.Failures, CreditFailure{
				BetID:    bet.ID,
				Username: bet.Username,
				Payout:   payout,
				Reason:   err.Error(),
			})
			continue
		}

		report.WinnersPaid++
		report.TotalPaid = report.TotalPaid.Add(payout)
	}

	metrics.SettlementsCompleted.Inc()
	log.Info().
		Str("line_id", line.Date).
		Str("winning_side", string(report.WinningSide)).
		Int("winners_paid", report.WinnersPaid).
		Str("total_paid", report.TotalPaid.String()).
		Int("failed_credits", len(report.Failures)).
		Msg("Line settled")

	return report
}
