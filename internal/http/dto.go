package http

import (
	"time"

	"daily-bet-platform/internal/model"
	"daily-bet-platform/internal/odds"
	"daily-bet-platform/internal/service"
)

// Odds cross the wire as signed strings ("+150", "-110") to match what
// the frontend renders; amounts as decimal strings.

type loginRequest struct {
	Username string `json:"username"`
}

type loginResponse struct {
	Username string `json:"username"`
	Balance  string `json:"balance"`
	Created  bool   `json:"created"`
}

type lineResponse struct {
	Date        string          `json:"date"`
	Question    string          `json:"question"`
	YesOdds     string          `json:"yes_odds"`
	NoOdds      string          `json:"no_odds"`
	CutoffTime  time.Time       `json:"cutoff_time"`
	IsActive    bool            `json:"is_active"`
	WinningSide *model.Side     `json:"winning_side,omitempty"`
	Volume      *volumeResponse `json:"volume,omitempty"`
}

type volumeResponse struct {
	YesTotal   string `json:"yes_total"`
	NoTotal    string `json:"no_total"`
	Total      string `json:"total"`
	YesPercent int    `json:"yes_percent"`
	NoPercent  int    `json:"no_percent"`
}

type setLineRequest struct {
	Date       string    `json:"date"`
	Question   string    `json:"question"`
	YesOdds    string    `json:"yes_odds"`
	NoOdds     string    `json:"no_odds"`
	CutoffTime time.Time `json:"cutoff_time"`
}

type placeBetRequest struct {
	Username string `json:"username"`
	Date     string `json:"date"`
	Choice   string `json:"choice"`
	Amount   string `json:"amount"`
}

type placeBetResponse struct {
	BetID   string         `json:"bet_id"`
	Balance string         `json:"balance"`
	Volume  volumeResponse `json:"volume"`
}

type betResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Date      string    `json:"date"`
	Choice    string    `json:"choice"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type resolveRequest struct {
	Date        string `json:"date"`
	WinningSide string `json:"winning_side"`
}

type resolveResponse struct {
	Line        lineResponse `json:"line"`
	WinnersPaid int          `json:"winners_paid"`
	TotalPaid   string       `json:"total_paid"`
	FailedCount int          `json:"failed_count"`
}

type userResponse struct {
	Username   string    `json:"username"`
	Balance    string    `json:"balance"`
	LastActive time.Time `json:"last_active"`
}

type balanceResponse struct {
	Username string `json:"username"`
	Balance  string `json:"balance"`
}

type verifyDepositRequest struct {
	Username      string `json:"username"`
	Txid          string `json:"txid"`
	SenderAddress string `json:"sender_address"`
}

type verifyDepositResponse struct {
	Txid    string `json:"txid"`
	Amount  string `json:"amount"`
	Balance string `json:"balance"`
}

type depositAddressResponse struct {
	Address string `json:"address"`
}

type withdrawalRequest struct {
	Username string `json:"username"`
	Amount   string `json:"amount"`
}

type withdrawalActionRequest struct {
	ID string `json:"id"`
}

type withdrawalResponse struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Amount     string     `json:"amount"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func toLineResponse(line *model.DailyLine, volume *model.VolumeSummary) lineResponse {
	resp := lineResponse{
		Date:        line.Date,
		Question:    line.Question,
		YesOdds:     odds.FormatAmerican(line.YesOdds),
		NoOdds:      odds.FormatAmerican(line.NoOdds),
		CutoffTime:  line.CutoffTime,
		IsActive:    line.IsActive,
		WinningSide: line.WinningSide,
	}
	if volume != nil {
		v := toVolumeResponse(*volume)
		resp.Volume = &v
	}
	return resp
}

func toVolumeResponse(v model.VolumeSummary) volumeResponse {
	return volumeResponse{
		YesTotal:   v.YesTotal.String(),
		NoTotal:    v.NoTotal.String(),
		Total:      v.Total.String(),
		YesPercent: v.YesPercent,
		NoPercent:  v.NoPercent,
	}
}

func toBetResponses(enriched []service.EnrichedBet) []betResponse {
	out := make([]betResponse, 0, len(enriched))
	for _, e := range enriched {
		out = append(out, betResponse{
			ID:        e.Bet.ID,
			Username:  e.Bet.Username,
			Date:      e.Bet.LineID,
			Choice:    string(e.Bet.Choice),
			Amount:    e.Bet.Amount.String(),
			Status:    string(e.Status),
			CreatedAt: e.Bet.CreatedAt,
		})
	}
	return out
}

func toWithdrawalResponse(w *model.Withdrawal) withdrawalResponse {
	return withdrawalResponse{
		ID:         w.ID,
		Username:   w.Username,
		Amount:     w.Amount.String(),
		Status:     string(w.Status),
		CreatedAt:  w.CreatedAt,
		ResolvedAt: w.ResolvedAt,
	}
}

func toWithdrawalResponses(list []*model.Withdrawal) []withdrawalResponse {
	out := make([]withdrawalResponse, 0, len(list))
	for _, w := range list {
		out = append(out, toWithdrawalResponse(w))
	}
	return out
}
