// Package model defines the data models for the daily-line betting platform.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is one of the two sides of the daily proposition.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether the side is one of YES/NO.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side of the proposition.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// User represents a platform account. Balance is mutated only through
// ledger operations; it must never go negative.
type User struct {
	Username   string          `db:"username"`
	Balance    decimal.Decimal `db:"balance"`
	LastActive time.Time       `db:"last_active"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// DailyLine is the single proposition offered for one calendar day.
// It is keyed by the date string (YYYY-MM-DD); at most one line exists
// per day. WinningSide stays nil until the line is resolved and is
// immutable afterwards.
type DailyLine struct {
	Date        string          `db:"date"`
	Question    string          `db:"question"`
	YesOdds     int             `db:"yes_odds"`
	NoOdds      int             `db:"no_odds"`
	CutoffTime  time.Time       `db:"cutoff_time"`
	IsActive    bool            `db:"is_active"`
	WinningSide *Side           `db:"winning_side"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// Resolved reports whether the winning side has been declared.
func (l *DailyLine) Resolved() bool {
	return l.WinningSide != nil
}

// BettingOpen reports whether the line still accepts bets at the given
// instant.
func (l *DailyLine) BettingOpen(now time.Time) bool {
	return l.IsActive && !l.Resolved() && now.Before(l.CutoffTime)
}

// SideOdds returns the American odds for the given side.
func (l *DailyLine) SideOdds(s Side) int {
	if s == SideYes {
		return l.YesOdds
	}
	return l.NoOdds
}

// Bet is an accepted wager against a daily line. Immutable once created.
type Bet struct {
	ID        string          `db:"id"`
	Username  string          `db:"username"`
	LineID    string          `db:"line_id"`
	Choice    Side            `db:"choice"`
	Amount    decimal.Decimal `db:"amount"`
	CreatedAt time.Time       `db:"created_at"`
}

// BetStatus is derived from the bet's choice and the line's outcome.
type BetStatus string

const (
	BetStatusPending BetStatus = "PENDING"
	BetStatusWon     BetStatus = "WON"
	BetStatusLost    BetStatus = "LOST"
)

// Deposit records one credited blockchain transaction. The txid is the
// idempotency token: its existence is the sole guard against crediting
// the same transaction twice.
type Deposit struct {
	Txid      string          `db:"txid"`
	Username  string          `db:"username"`
	Amount    decimal.Decimal `db:"amount"`
	Confirmed bool            `db:"confirmed"`
	CreatedAt time.Time       `db:"created_at"`
}

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "PENDING"
	WithdrawalApproved WithdrawalStatus = "APPROVED"
	WithdrawalRejected WithdrawalStatus = "REJECTED"
)

// Terminal reports whether the status can no longer change.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalApproved || s == WithdrawalRejected
}

// Withdrawal is a user-initiated debit request. The balance is only
// debited when the request is approved.
type Withdrawal struct {
	ID         string           `db:"id"`
	Username   string           `db:"username"`
	Amount     decimal.Decimal  `db:"amount"`
	Status     WithdrawalStatus `db:"status"`
	CreatedAt  time.Time        `db:"created_at"`
	ResolvedAt *time.Time       `db:"resolved_at"`
}

// VolumeSummary aggregates the wagered amounts on a line.
type VolumeSummary struct {
	LineID     string          `json:"line_id"`
	YesTotal   decimal.Decimal `json:"yes_total"`
	NoTotal    decimal.Decimal `json:"no_total"`
	Total      decimal.Decimal `json:"total"`
	YesPercent int             `json:"yes_percent"`
	NoPercent  int             `json:"no_percent"`
}
