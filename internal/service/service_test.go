package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/chain"
	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/repository"
)

// In-memory fakes for the persistence interfaces. They reproduce the
// conditional-update semantics of the real repositories, including the
// sentinel errors, so service behavior can be tested without a database.

type memUsers struct {
	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	creditErr error
	debitErr  error
}

func newMemUsers() *memUsers {
	return &memUsers{balances: make(map[string]decimal.Decimal)}
}

func (m *memUsers) set(username string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[username] = balance
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &model.User{Username: username, Balance: balance}, nil
}

func (m *memUsers) GetOrCreate(_ context.Context, username string) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if balance, ok := m.balances[username]; ok {
		return &model.User{Username: username, Balance: balance}, false, nil
	}
	m.balances[username] = decimal.Zero
	return &model.User{Username: username, Balance: decimal.Zero}, true, nil
}

func (m *memUsers) CreditBalance(_ context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creditErr != nil {
		return decimal.Zero, m.creditErr
	}
	balance, ok := m.balances[username]
	if !ok {
		return decimal.Zero, repository.ErrUserNotFound
	}
	balance = balance.Add(amount)
	m.balances[username] = balance
	return balance, nil
}

func (m *memUsers) DebitBalanceIfSufficient(_ context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debitErr != nil {
		return decimal.Zero, m.debitErr
	}
	balance, ok := m.balances[username]
	if !ok {
		return decimal.Zero, repository.ErrUserNotFound
	}
	if balance.LessThan(amount) {
		return decimal.Zero, repository.ErrInsufficientFunds
	}
	balance = balance.Sub(amount)
	m.balances[username] = balance
	return balance, nil
}

func (m *memUsers) ListByBalance(_ context.Context, limit int) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]*model.User, 0, len(m.balances))
	for username, balance := range m.balances {
		users = append(users, &model.User{Username: username, Balance: balance})
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Balance.GreaterThan(users[j].Balance)
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *memUsers) TouchLastActive(context.Context, string) error { return nil }

type memLines struct {
	mu    sync.Mutex
	lines map[string]*model.DailyLine
}

func newMemLines() *memLines {
	return &memLines{lines: make(map[string]*model.DailyLine)}
}

func (m *memLines) put(line *model.DailyLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[line.Date] = line
}

func (m *memLines) Upsert(_ context.Context, line *model.DailyLine) (*model.DailyLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.lines[line.Date]; ok && existing.WinningSide != nil {
		return nil, repository.ErrAlreadyResolved
	}
	stored := *line
	stored.IsActive = true
	m.lines[line.Date] = &stored
	copied := stored
	return &copied, nil
}

func (m *memLines) Get(_ context.Context, date string) (*model.DailyLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[date]
	if !ok {
		return nil, repository.ErrLineNotFound
	}
	copied := *line
	return &copied, nil
}

func (m *memLines) SetWinningSide(_ context.Context, date string, side model.Side) (*model.DailyLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[date]
	if !ok {
		return nil, repository.ErrLineNotFound
	}
	if line.WinningSide != nil {
		return nil, repository.ErrAlreadyResolved
	}
	line.WinningSide = &side
	copied := *line
	return &copied, nil
}

func (m *memLines) SetActive(_ context.Context, date string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.lines[date]
	if !ok {
		return repository.ErrLineNotFound
	}
	line.IsActive = active
	return nil
}

func (m *memLines) ListExpiredActive(_ context.Context, now time.Time) ([]*model.DailyLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []*model.DailyLine
	for _, line := range m.lines {
		if line.IsActive && line.WinningSide == nil && !line.CutoffTime.After(now) {
			copied := *line
			expired = append(expired, &copied)
		}
	}
	return expired, nil
}

type memBets struct {
	mu        sync.Mutex
	bets      []*model.Bet
	createErr error
}

func newMemBets() *memBets {
	return &memBets{}
}

func (m *memBets) Create(_ context.Context, bet *model.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	bet.CreatedAt = time.Now()
	copied := *bet
	m.bets = append(m.bets, &copied)
	return nil
}

func (m *memBets) ListByLine(_ context.Context, lineID string) ([]*model.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Bet
	for _, bet := range m.bets {
		if bet.LineID == lineID {
			copied := *bet
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memBets) VolumeByLine(_ context.Context, lineID string) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	yesTotal, noTotal := decimal.Zero, decimal.Zero
	for _, bet := range m.bets {
		if bet.LineID != lineID {
			continue
		}
		if bet.Choice == model.SideYes {
			yesTotal = yesTotal.Add(bet.Amount)
		} else {
			noTotal = noTotal.Add(bet.Amount)
		}
	}
	return yesTotal, noTotal, nil
}

type memDeposits struct {
	mu    sync.Mutex
	users *memUsers
	txids map[string]*model.Deposit
}

func newMemDeposits(users *memUsers) *memDeposits {
	return &memDeposits{users: users, txids: make(map[string]*model.Deposit)}
}

func (m *memDeposits) Exists(_ context.Context, txid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.txids[txid]
	return ok, nil
}

func (m *memDeposits) CreditConfirmed(ctx context.Context, username, txid string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	if _, ok := m.txids[txid]; ok {
		m.mu.Unlock()
		return decimal.Zero, repository.ErrDuplicateTxid
	}
	m.txids[txid] = &model.Deposit{
		Txid:      txid,
		Username:  username,
		Amount:    amount,
		Confirmed: true,
		CreatedAt: time.Now(),
	}
	m.mu.Unlock()
	return m.users.CreditBalance(ctx, username, amount)
}

func (m *memDeposits) ListByUsername(_ context.Context, username string) ([]*model.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Deposit
	for _, d := range m.txids {
		if d.Username == username {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memWithdrawals struct {
	mu         sync.Mutex
	requests   map[string]*model.Withdrawal
	resolveErr error
}

func newMemWithdrawals() *memWithdrawals {
	return &memWithdrawals{requests: make(map[string]*model.Withdrawal)}
}

func (m *memWithdrawals) Create(_ context.Context, w *model.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.Status = model.WithdrawalPending
	w.CreatedAt = time.Now()
	copied := *w
	m.requests[w.ID] = &copied
	return nil
}

func (m *memWithdrawals) Get(_ context.Context, id string) (*model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	copied := *w
	return &copied, nil
}

func (m *memWithdrawals) SetStatusIfPending(_ context.Context, id string, status model.WithdrawalStatus) (*model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	w, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	if w.Status != model.WithdrawalPending {
		return nil, repository.ErrNotPending
	}
	now := time.Now()
	w.Status = status
	w.ResolvedAt = &now
	copied := *w
	return &copied, nil
}

func (m *memWithdrawals) ListByUsername(_ context.Context, username string) ([]*model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Withdrawal
	for _, w := range m.requests {
		if w.Username == username {
			copied := *w
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memWithdrawals) ListPending(_ context.Context) ([]*model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Withdrawal
	for _, w := range m.requests {
		if w.Status == model.WithdrawalPending {
			copied := *w
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeObserver struct {
	txs map[string]*chain.Tx
	err error
}

func (f *fakeObserver) Lookup(_ context.Context, txid string) (*chain.Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	tx, ok := f.txs[txid]
	if !ok {
		return nil, chain.ErrTxNotFound
	}
	return tx, nil
}

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Publish(_ context.Context, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}
