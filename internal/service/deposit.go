package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/chain"
	"daily-bet-platform/internal/metrics"
	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/notify"
	"daily-bet-platform/internal/repository"
)

// DepositStore is the persistence surface of the deposit verifier.
type DepositStore interface {
	Exists(ctx context.Context, txid string) (bool, error)
	CreditConfirmed(ctx context.Context, username, txid string, amount decimal.Decimal) (decimal.Decimal, error)
	ListByUsername(ctx context.Context, username string) ([]*model.Deposit, error)
}

// CreditedDeposit is the result of a verified deposit.
type CreditedDeposit struct {
	Txid    string
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

// DepositVerifier credits balances for on-chain transfers to the
// platform address. The chain is read-only oracle: the verifier never
// moves funds on chain, it only checks what already happened there.
type DepositVerifier struct {
	deposits        DepositStore
	observer        chain.Observer
	notifier        notify.Notifier
	platformAddress string
}

// NewDepositVerifier creates a new DepositVerifier instance.
func NewDepositVerifier(deposits DepositStore, observer chain.Observer, notifier notify.Notifier, platformAddress string) *DepositVerifier {
	return &DepositVerifier{
		deposits:        deposits,
		observer:        observer,
		notifier:        notifier,
		platformAddress: platformAddress,
	}
}

// PlatformAddress returns the address users must send deposits to.
func (v *DepositVerifier) PlatformAddress() string {
	return v.platformAddress
}

// Verify checks a claimed deposit against the chain and credits the
// user once. Order matters: the duplicate check and chain lookup come
// before any mutation, so a failed or mismatched verification leaves
// no trace. The final insert re-checks the txid inside the database
// transaction, which closes the race between two concurrent claims of
// the same txid.
func (v *DepositVerifier) Verify(ctx context.Context, username, txid, senderAddress string) (*CreditedDeposit, error) {
	if username == "" || txid == "" || senderAddress == "" {
		return nil, ErrMissingField
	}

	exists, err := v.deposits.Exists(ctx, txid)
	if err != nil {
		return nil, fmt.Errorf("failed to check txid: %w", err)
	}
	if exists {
		return nil, ErrDuplicateTx
	}

	tx, err := v.observer.Lookup(ctx, txid)
	if err != nil {
		switch {
		case errors.Is(err, chain.ErrTxNotFound):
			return nil, ErrTxNotFound
		case errors.Is(err, chain.ErrUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
		default:
			return nil, fmt.Errorf("failed to look up transaction: %w", err)
		}
	}

	// Addresses are hex and case-insensitive on chain.
	if !strings.EqualFold(tx.To, v.platformAddress) {
		return nil, ErrRecipientMismatch
	}
	if !strings.EqualFold(tx.From, senderAddress) {
		return nil, ErrAddressMismatch
	}

	amount := tx.ValueEth()
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	balance, err := v.deposits.CreditConfirmed(ctx, username, txid, amount)
	if err != nil {
		return nil, mapDepositErr(err)
	}

	v.notifier.Publish(ctx, notify.EventBalanceUpdated, notify.BalancePayload{
		Username: username,
		Balance:  balance.String(),
	})
	metrics.DepositsCredited.Inc()
	log.Info().
		Str("username", username).
		Str("txid", txid).
		Str("amount", amount.String()).
		Msg("Deposit verified and credited")

	return &CreditedDeposit{Txid: txid, Amount: amount, Balance: balance}, nil
}

// History returns a user's credited deposits, newest first.
func (v *DepositVerifier) History(ctx context.Context, username string) ([]*model.Deposit, error) {
	deposits, err := v.deposits.ListByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	return deposits, nil
}

func mapDepositErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateTxid):
		return ErrDuplicateTx
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	default:
		return fmt.Errorf("failed to credit deposit: %w", err)
	}
}
