// Package http is the JSON API boundary. Handlers decode, call a
// service and encode; every business rule lives below this layer.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/odds"
	"daily-bet-platform/internal/service"
)

// Service surfaces the handlers depend on. Narrow interfaces so tests
// can stub them without a database.
type (
	LedgerService interface {
		Balance(ctx context.Context, username string) (decimal.Decimal, error)
		EnsureUser(ctx context.Context, username string) (*model.User, bool, error)
		ListUsers(ctx context.Context, limit int) ([]*model.User, error)
	}

	LineService interface {
		SetLine(ctx context.Context, date, question string, yesOdds, noOdds int, cutoff time.Time) (*model.DailyLine, error)
		GetLine(ctx context.Context, date string) (*model.DailyLine, error)
		Resolve(ctx context.Context, date string, side model.Side) (*model.DailyLine, *service.SettlementReport, error)
	}

	BetService interface {
		PlaceBet(ctx context.Context, username, lineID string, choice model.Side, amount decimal.Decimal) (*service.PlacedBet, error)
		ListBets(ctx context.Context, lineID string) ([]*model.Bet, error)
		Volume(ctx context.Context, lineID string) (model.VolumeSummary, error)
	}

	DepositService interface {
		Verify(ctx context.Context, username, txid, senderAddress string) (*service.CreditedDeposit, error)
		PlatformAddress() string
	}

	WithdrawalService interface {
		Request(ctx context.Context, username string, amount decimal.Decimal) (*model.Withdrawal, error)
		Approve(ctx context.Context, id string) (*model.Withdrawal, error)
		Reject(ctx context.Context, id string) (*model.Withdrawal, error)
		History(ctx context.Context, username string) ([]*model.Withdrawal, error)
		Pending(ctx context.Context) ([]*model.Withdrawal, error)
	}
)

// Server holds the API handlers.
type Server struct {
	ledger      LedgerService
	lines       LineService
	bets        BetService
	deposits    DepositService
	withdrawals WithdrawalService
	adminToken  string
}

// NewServer creates a new Server instance.
func NewServer(ledger LedgerService, lines LineService, bets BetService, deposits DepositService, withdrawals WithdrawalService, adminToken string) *Server {
	return &Server{
		ledger:      ledger,
		lines:       lines,
		bets:        bets,
		deposits:    deposits,
		withdrawals: withdrawals,
		adminToken:  adminToken,
	}
}

// Router builds the route table. Admin routes sit behind the token
// check; everything else trusts the upstream auth gate's username.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("GET /api/line", s.getLine)
	mux.HandleFunc("POST /api/bets", s.placeBet)
	mux.HandleFunc("GET /api/user/balance/{username}", s.getBalance)
	mux.HandleFunc("POST /api/verify-deposit", s.verifyDeposit)
	mux.HandleFunc("GET /api/deposit-address", s.depositAddress)
	mux.HandleFunc("POST /api/withdrawals", s.requestWithdrawal)
	mux.HandleFunc("GET /api/withdrawals/{username}", s.withdrawalHistory)

	mux.Handle("GET /api/admin/bets", s.adminOnly(s.listBets))
	mux.Handle("POST /api/admin/line", s.adminOnly(s.setLine))
	mux.Handle("POST /api/admin/resolve", s.adminOnly(s.resolveLine))
	mux.Handle("GET /api/admin/users", s.adminOnly(s.listUsers))
	mux.Handle("GET /api/admin/withdrawals", s.adminOnly(s.pendingWithdrawals))
	mux.Handle("POST /api/admin/withdrawals/approve", s.adminOnly(s.approveWithdrawal))
	mux.Handle("POST /api/admin/withdrawals/reject", s.adminOnly(s.rejectWithdrawal))

	return mux
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, created, err := s.ledger.EnsureUser(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Username: user.Username,
		Balance:  user.Balance.String(),
		Created:  created,
	})
}

// getLine serves the line for ?date=YYYY-MM-DD, defaulting to today,
// with the current volume attached.
func (s *Server) getLine(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = service.DateKey(time.Now().UTC())
	}

	line, err := s.lines.GetLine(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}

	volume, err := s.bets.Volume(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLineResponse(line, &volume))
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, service.ErrInvalidAmount)
		return
	}

	placed, err := s.bets.PlaceBet(r.Context(), req.Username, req.Date, model.Side(req.Choice), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeBetResponse{
		BetID:   placed.Bet.ID,
		Balance: placed.Balance.String(),
		Volume:  toVolumeResponse(placed.Volume),
	})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	balance, err := s.ledger.Balance(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Username: username, Balance: balance.String()})
}

func (s *Server) verifyDeposit(w http.ResponseWriter, r *http.Request) {
	var req verifyDepositRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	credited, err := s.deposits.Verify(r.Context(), req.Username, req.Txid, req.SenderAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyDepositResponse{
		Txid:    credited.Txid,
		Amount:  credited.Amount.String(),
		Balance: credited.Balance.String(),
	})
}

func (s *Server) depositAddress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, depositAddressResponse{Address: s.deposits.PlatformAddress()})
}

func (s *Server) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, service.ErrInvalidAmount)
		return
	}

	created, err := s.withdrawals.Request(r.Context(), req.Username, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalResponse(created))
}

func (s *Server) withdrawalHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.withdrawals.History(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResponses(list))
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = service.DateKey(time.Now().UTC())
	}

	bets, err := s.bets.ListBets(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}

	line, err := s.lines.GetLine(r.Context(), date)
	if err != nil {
		if errors.Is(err, service.ErrLineNotFound) {
			writeJSON(w, http.StatusOK, []betResponse{})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponses(service.EnrichWithStatus(bets, line)))
}

func (s *Server) setLine(w http.ResponseWriter, r *http.Request) {
	var req setLineRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	yesOdds, err := odds.ParseAmerican(req.YesOdds)
	if err != nil {
		writeError(w, service.ErrInvalidOdds)
		return
	}
	noOdds, err := odds.ParseAmerican(req.NoOdds)
	if err != nil {
		writeError(w, service.ErrInvalidOdds)
		return
	}

	line, err := s.lines.SetLine(r.Context(), req.Date, req.Question, yesOdds, noOdds, req.CutoffTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLineResponse(line, nil))
}

func (s *Server) resolveLine(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	line, report, err := s.lines.Resolve(r.Context(), req.Date, model.Side(req.WinningSide))
	var partial *service.PartialSettlementError
	if err != nil && !errors.As(err, &partial) {
		writeError(w, err)
		return
	}

	// A partial settlement still resolved the line; report the failures
	// in-band rather than failing the request.
	writeJSON(w, http.StatusOK, resolveResponse{
		Line:        toLineResponse(line, nil),
		WinnersPaid: report.WinnersPaid,
		TotalPaid:   report.TotalPaid.String(),
		FailedCount: len(report.Failures),
	})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, service.ErrInvalidAmount)
			return
		}
		limit = parsed
	}

	users, err := s.ledger.ListUsers(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{
			Username:   u.Username,
			Balance:    u.Balance.String(),
			LastActive: u.LastActive,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) pendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	list, err := s.withdrawals.Pending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResponses(list))
}

func (s *Server) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.resolveWithdrawal(w, r, s.withdrawals.Approve)
}

func (s *Server) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.resolveWithdrawal(w, r, s.withdrawals.Reject)
}

func (s *Server) resolveWithdrawal(w http.ResponseWriter, r *http.Request, action func(context.Context, string) (*model.Withdrawal, error)) {
	var req withdrawalActionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ID == "" {
		writeError(w, service.ErrMissingField)
		return
	}

	resolved, err := action(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalResponse(resolved))
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
