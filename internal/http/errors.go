package http

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"daily-bet-platform/internal/service"
)

var errBadJSON = errors.New("malformed JSON body")

// errorBody is the machine-readable failure envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// kindOf maps a service error to a stable kind string and HTTP status.
func kindOf(err error) (string, int) {
	switch {
	case errors.Is(err, errBadJSON):
		return "bad_request", http.StatusBadRequest
	case errors.Is(err, service.ErrMissingField):
		return "missing_field", http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidAmount):
		return "invalid_amount", http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidChoice):
		return "invalid_choice", http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidDate):
		return "invalid_date", http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidOdds):
		return "invalid_odds", http.StatusBadRequest
	case errors.Is(err, service.ErrUserNotFound):
		return "user_not_found", http.StatusNotFound
	case errors.Is(err, service.ErrLineNotFound):
		return "line_not_found", http.StatusNotFound
	case errors.Is(err, service.ErrWithdrawalNotFound):
		return "withdrawal_not_found", http.StatusNotFound
	case errors.Is(err, service.ErrTxNotFound):
		return "tx_not_found", http.StatusNotFound
	case errors.Is(err, service.ErrBettingClosed):
		return "betting_closed", http.StatusConflict
	case errors.Is(err, service.ErrAlreadyResolved):
		return "already_resolved", http.StatusConflict
	case errors.Is(err, service.ErrInvalidState):
		return "invalid_state", http.StatusConflict
	case errors.Is(err, service.ErrInsufficientFunds):
		return "insufficient_funds", http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrDuplicateTx):
		return "duplicate_tx", http.StatusConflict
	case errors.Is(err, service.ErrAddressMismatch):
		return "address_mismatch", http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrRecipientMismatch):
		return "recipient_mismatch", http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrChainUnavailable):
		return "chain_unavailable", http.StatusBadGateway
	default:
		return "internal", http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind, status := kindOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		// Internal details stay in the log.
		writeJSON(w, status, errorBody{Error: kind, Message: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: kind, Message: err.Error()})
}
