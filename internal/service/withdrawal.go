package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/repository"
)

// WithdrawalStore is the persistence surface of the workflow.
type WithdrawalStore interface {
	Create(ctx context.Context, w *model.Withdrawal) error
	Get(ctx context.Context, id string) (*model.Withdrawal, error)
	SetStatusIfPending(ctx context.Context, id string, status model.WithdrawalStatus) (*model.Withdrawal, error)
	ListByUsername(ctx context.Context, username string) ([]*model.Withdrawal, error)
	ListPending(ctx context.Context) ([]*model.Withdrawal, error)
}

// BalanceReader is the read slice of the Ledger the workflow uses.
type BalanceReader interface {
	Balance(ctx context.Context, username string) (decimal.Decimal, error)
}

// Withdrawals runs the two-step withdrawal workflow: a user requests,
// an operator approves or rejects. The balance is only touched on
// approval, so a rejected or still-pending request costs the user
// nothing. A request can resolve exactly once.
type Withdrawals struct {
	store  WithdrawalStore
	ledger BalanceLedger
	reader BalanceReader
}

// NewWithdrawals creates a new Withdrawals instance.
func NewWithdrawals(store WithdrawalStore, ledger BalanceLedger, reader BalanceReader) *Withdrawals {
	return &Withdrawals{store: store, ledger: ledger, reader: reader}
}

// Request files a PENDING withdrawal. The amount is checked against the
// current balance as a courtesy only; funds stay available until
// approval, so the real sufficiency check happens at approval time.
func (w *Withdrawals) Request(ctx context.Context, username string, amount decimal.Decimal) (*model.Withdrawal, error) {
	if username == "" {
		return nil, ErrMissingField
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	balance, err := w.reader.Balance(ctx, username)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	req := &model.Withdrawal{
		ID:       uuid.NewString(),
		Username: username,
		Amount:   amount,
	}
	if err := w.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	log.Info().
		Str("withdrawal_id", req.ID).
		Str("username", username).
		Str("amount", amount.String()).
		Msg("Withdrawal requested")
	return req, nil
}

// Approve debits the user and marks the request APPROVED. The debit
// happens first; if the status transition then loses a race the debit
// is credited back, so exactly one resolution ever moves funds. An
// insufficient balance at approval time leaves the request PENDING for
// the operator to retry or reject.
func (w *Withdrawals) Approve(ctx context.Context, id string) (*model.Withdrawal, error) {
	req, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, mapWithdrawalErr(err)
	}
	if req.Status.Terminal() {
		return nil, ErrInvalidState
	}

	if _, err := w.ledger.Debit(ctx, req.Username, req.Amount); err != nil {
		return nil, err
	}

	resolved, err := w.store.SetStatusIfPending(ctx, id, model.WithdrawalApproved)
	if err != nil {
		if _, cerr := w.ledger.Credit(ctx, req.Username, req.Amount); cerr != nil {
			log.Error().Err(cerr).
				Str("withdrawal_id", id).
				Str("username", req.Username).
				Str("amount", req.Amount.String()).
				Msg("Failed to refund after lost approval race; manual reconciliation required")
		}
		return nil, mapWithdrawalErr(err)
	}

	log.Info().
		Str("withdrawal_id", id).
		Str("username", req.Username).
		Str("amount", req.Amount.String()).
		Msg("Withdrawal approved")
	return resolved, nil
}

// Reject marks the request REJECTED without touching the balance.
func (w *Withdrawals) Reject(ctx context.Context, id string) (*model.Withdrawal, error) {
	resolved, err := w.store.SetStatusIfPending(ctx, id, model.WithdrawalRejected)
	if err != nil {
		return nil, mapWithdrawalErr(err)
	}

	log.Info().
		Str("withdrawal_id", id).
		Str("username", resolved.Username).
		Msg("Withdrawal rejected")
	return resolved, nil
}

// History returns a user's withdrawal requests, newest first.
func (w *Withdrawals) History(ctx context.Context, username string) ([]*model.Withdrawal, error) {
	list, err := w.store.ListByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return list, nil
}

// Pending returns the unresolved queue, oldest first.
func (w *Withdrawals) Pending(ctx context.Context) ([]*model.Withdrawal, error) {
	list, err := w.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	return list, nil
}

func mapWithdrawalErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return ErrWithdrawalNotFound
	case errors.Is(err, repository.ErrNotPending):
		return ErrInvalidState
	default:
		return fmt.Errorf("withdrawal operation failed: %w", err)
	}
}
