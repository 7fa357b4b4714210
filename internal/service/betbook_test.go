package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/notify"
	"daily-bet-platform/internal/pkg/lock"
)

type betBookFixture struct {
	users    *memUsers
	lines    *memLines
	bets     *memBets
	ledger   *Ledger
	recorder *recordingNotifier
	book     *BetBook
}

func newBetBookFixture() *betBookFixture {
	users := newMemUsers()
	lines := newMemLines()
	bets := newMemBets()
	recorder := &recordingNotifier{}
	ledger := NewLedger(users, lock.NewAccountLock(), notify.Nop{}, time.Second)
	return &betBookFixture{
		users:    users,
		lines:    lines,
		bets:     bets,
		ledger:   ledger,
		recorder: recorder,
		book:     NewBetBook(lines, bets, ledger, recorder),
	}
}

func openLine(date string) *model.DailyLine {
	return &model.DailyLine{
		Date:       date,
		Question:   "Will it rain tomorrow?",
		YesOdds:    -110,
		NoOdds:     120,
		CutoffTime: time.Now().Add(time.Hour),
		IsActive:   true,
	}
}

func TestPlaceBet(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		f := newBetBookFixture()
		f.users.set("alice", decimal.NewFromInt(100))
		f.lines.put(openLine("2026-08-30"))

		placed, err := f.book.PlaceBet(ctx, "alice", "2026-08-30", model.SideYes, decimal.NewFromInt(25))
		require.NoError(t, err)
		assert.NotEmpty(t, placed.Bet.ID)
		assert.True(t, placed.Balance.Equal(decimal.NewFromInt(75)))
		assert.True(t, placed.Volume.YesTotal.Equal(decimal.NewFromInt(25)))
		assert.Equal(t, 100, placed.Volume.YesPercent)
		assert.Equal(t, 1, f.recorder.count(notify.EventVolumeUpdated))
	})

	t.Run("betting closed after cutoff", func(t *testing.T) {
		f := newBetBookFixture()
		f.users.set("alice", decimal.NewFromInt(100))
		line := openLine("2026-08-30")
		line.CutoffTime = time.Now().Add(-time.Minute)
		f.lines.put(line)

		_, err := f.book.PlaceBet(ctx, "alice", "2026-08-30", model.SideYes, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, ErrBettingClosed)
	})

	t.Run("inactive line rejected", func(t *testing.T) {
		f := newBetBookFixture()
		f.users.set("alice", decimal.NewFromInt(100))
		line := openLine("2026-08-30")
		line.IsActive = false
		f.lines.put(line)

		_, err := f.book.PlaceBet(ctx, "alice", "2026-08-30", model.SideNo, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, ErrBettingClosed)
	})

	t.Run("insufficient funds leaves no bet", func(t *testing.T) {
		f := newBetBookFixture()
		f.users.set("alice", decimal.NewFromInt(5))
		f.lines.put(openLine("2026-08-30"))

		_, err := f.book.PlaceBet(ctx, "alice", "2026-08-30", model.SideYes, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		bets, err := f.book.ListBets(ctx, "2026-08-30")
		require.NoError(t, err)
		assert.Empty(t, bets)
	})

	t.Run("persist failure refunds the stake", func(t *testing.T) {
		f := newBetBookFixture()
		f.users.set("alice", decimal.NewFromInt(100))
		f.lines.put(openLine("2026-08-30"))
		f.bets.createErr = errors.New("disk on fire")

		_, err := f.book.PlaceBet(ctx, "alice", "2026-08-30", model.SideYes, decimal.NewFromInt(40))
		require.Error(t, err)

		balance, err := f.ledger.Balance(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(100)), "stake must be refunded")
	})

	t.Run("validation", func(t *testing.T) {
		f := newBetBookFixture()
		f.users.set("alice", decimal.NewFromInt(100))
		f.lines.put(openLine("2026-08-30"))

		_, err := f.book.PlaceBet(ctx, "", "2026-08-30", model.SideYes, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, ErrMissingField)

		_, err = f.book.PlaceBet(ctx, "alice", "2026-08-30", model.SideYes, decimal.Zero)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = f.book.PlaceBet(ctx, "alice", "2026-08-30", model.Side("MAYBE"), decimal.NewFromInt(10))
		assert.ErrorIs(t, err, ErrInvalidChoice)

		_, err = f.book.PlaceBet(ctx, "alice", "2026-09-01", model.SideYes, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, ErrLineNotFound)
	})
}

func TestVolume(t *testing.T) {
	ctx := context.Background()
	f := newBetBookFixture()
	f.users.set("alice", decimal.NewFromInt(100))
	f.users.set("bob", decimal.NewFromInt(100))
	f.lines.put(openLine("2026-08-30"))

	_, err := f.book.PlaceBet(ctx, "alice", "2026-08-30", model.SideYes, decimal.NewFromInt(40))
	require.NoError(t, err)
	_, err = f.book.PlaceBet(ctx, "bob", "2026-08-30", model.SideNo, decimal.NewFromInt(20))
	require.NoError(t, err)

	volume, err := f.book.Volume(ctx, "2026-08-30")
	require.NoError(t, err)
	assert.True(t, volume.Total.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, 67, volume.YesPercent)
	assert.Equal(t, 33, volume.NoPercent)
}

func TestVolumeEmptyLine(t *testing.T) {
	ctx := context.Background()
	f := newBetBookFixture()

	volume, err := f.book.Volume(ctx, "2026-08-30")
	require.NoError(t, err)
	assert.True(t, volume.Total.IsZero())
	assert.Equal(t, 0, volume.YesPercent)
	assert.Equal(t, 100, volume.NoPercent)
}

func TestEnrichWithStatus(t *testing.T) {
	bets := []*model.Bet{
		{ID: "1", Choice: model.SideYes},
		{ID: "2", Choice: model.SideNo},
	}

	t.Run("unresolved line keeps everything pending", func(t *testing.T) {
		line := openLine("2026-08-30")
		for _, e := range EnrichWithStatus(bets, line) {
			assert.Equal(t, model.BetStatusPending, e.Status)
		}
	})

	t.Run("resolved line splits winners and losers", func(t *testing.T) {
		line := openLine("2026-08-30")
		winner := model.SideYes
		line.WinningSide = &winner

		enriched := EnrichWithStatus(bets, line)
		assert.Equal(t, model.BetStatusWon, enriched[0].Status)
		assert.Equal(t, model.BetStatusLost, enriched[1].Status)
	})
}
