package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/notify"
	"daily-bet-platform/internal/pkg/lock"
	"daily-bet-platform/internal/repository"
)

func resolvedLine(yesOdds, noOdds int, winner model.Side) *model.DailyLine {
	return &model.DailyLine{
		Date:        "2026-08-30",
		YesOdds:     yesOdds,
		NoOdds:      noOdds,
		WinningSide: &winner,
	}
}

func TestSettle(t *testing.T) {
	ctx := context.Background()

	t.Run("winners paid stake plus profit", func(t *testing.T) {
		users := newMemUsers()
		users.set("alice", decimal.Zero)
		users.set("bob", decimal.Zero)
		ledger := NewLedger(users, lock.NewAccountLock(), notify.Nop{}, time.Second)
		engine := NewSettlement(ledger)

		line := resolvedLine(-110, 120, model.SideYes)
		bets := []*model.Bet{
			{ID: "1", Username: "alice", Choice: model.SideYes, Amount: decimal.NewFromInt(10)},
			{ID: "2", Username: "bob", Choice: model.SideNo, Amount: decimal.NewFromInt(50)},
		}

		report := engine.Settle(ctx, line, bets)
		assert.Equal(t, 1, report.WinnersPaid)
		assert.Empty(t, report.Failures)

		// Stake 10 at -110 pays 10 + 10*100/110.
		balance, err := ledger.Balance(ctx, "alice")
		require.NoError(t, err)
		expected := decimal.NewFromInt(10).Add(
			decimal.NewFromInt(10).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(110)),
		)
		assert.True(t, balance.Equal(expected), "got %s want %s", balance, expected)

		// The loser's stake was forfeited at placement; nothing moves now.
		bobBalance, err := ledger.Balance(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, bobBalance.IsZero())
	})

	t.Run("positive odds payout", func(t *testing.T) {
		users := newMemUsers()
		users.set("carol", decimal.Zero)
		ledger := NewLedger(users, lock.NewAccountLock(), notify.Nop{}, time.Second)
		engine := NewSettlement(ledger)

		line := resolvedLine(-110, 150, model.SideNo)
		bets := []*model.Bet{
			{ID: "1", Username: "carol", Choice: model.SideNo, Amount: decimal.NewFromInt(20)},
		}

		report := engine.Settle(ctx, line, bets)
		assert.Equal(t, 1, report.WinnersPaid)
		assert.True(t, report.TotalPaid.Equal(decimal.NewFromInt(50)), "stake 20 at +150 pays 50")
	})

	t.Run("failed credit does not abort the run", func(t *testing.T) {
		users := newMemUsers()
		users.set("alice", decimal.Zero)
		// bob has no account, so his credit fails.
		ledger := NewLedger(users, lock.NewAccountLock(), notify.Nop{}, time.Second)
		engine := NewSettlement(ledger)

		line := resolvedLine(100, 100, model.SideYes)
		bets := []*model.Bet{
			{ID: "1", Username: "bob", Choice: model.SideYes, Amount: decimal.NewFromInt(10)},
			{ID: "2", Username: "alice", Choice: model.SideYes, Amount: decimal.NewFromInt(10)},
		}

		report := engine.Settle(ctx, line, bets)
		assert.Equal(t, 1, report.WinnersPaid)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, "bob", report.Failures[0].Username)

		balance, err := ledger.Balance(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(20)), "alice is still paid after bob's failure")
	})

	t.Run("no winners", func(t *testing.T) {
		users := newMemUsers()
		ledger := NewLedger(users, lock.NewAccountLock(), notify.Nop{}, time.Second)
		engine := NewSettlement(ledger)

		line := resolvedLine(-110, 120, model.SideYes)
		bets := []*model.Bet{
			{ID: "1", Username: "bob", Choice: model.SideNo, Amount: decimal.NewFromInt(50)},
		}

		report := engine.Settle(ctx, line, bets)
		assert.Equal(t, 0, report.WinnersPaid)
		assert.True(t, report.TotalPaid.IsZero())
		assert.Empty(t, report.Failures)
	})
}

// Settlement must credit through the same ledger bets debit through, so
// a user who wins exactly what the house owes can immediately re-bet it.
func TestSettleCreditsAreSpendable(t *testing.T) {
	ctx := context.Background()
	users := newMemUsers()
	users.set("alice", decimal.NewFromInt(10))
	ledger := NewLedger(users, lock.NewAccountLock(), notify.Nop{}, time.Second)
	engine := NewSettlement(ledger)

	_, err := ledger.Debit(ctx, "alice", decimal.NewFromInt(10))
	require.NoError(t, err)

	line := resolvedLine(100, 100, model.SideYes)
	engine.Settle(ctx, line, []*model.Bet{
		{ID: "1", Username: "alice", Choice: model.SideYes, Amount: decimal.NewFromInt(10)},
	})

	// Even-money win on a 10 stake pays 20, all of it spendable.
	_, err = ledger.Debit(ctx, "alice", decimal.NewFromInt(20))
	require.NoError(t, err)

	balance, err := ledger.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestPartialSettlementError(t *testing.T) {
	err := &PartialSettlementError{Failures: []CreditFailure{
		{BetID: "1", Username: "bob", Payout: decimal.NewFromInt(20), Reason: repository.ErrUserNotFound.Error()},
	}}
	assert.Contains(t, err.Error(), "1 failed credits")
}
