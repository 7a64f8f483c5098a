package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, ErrorResponse{Error: msg})
}

// StatusFor maps an error kind to the HTTP status the API reports for it.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidAmount),
		errors.Is(err, apperr.ErrInvalidBankInfo),
		errors.Is(err, apperr.ErrReasonRequired),
		errors.Is(err, apperr.ErrInvalidURL),
		errors.Is(err, apperr.ErrUnsupportedPlatform):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrInvalidTransition), errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError hides internal failures behind a generic message.
func WriteAppError(w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		logger.Log.Error("request failed", zap.Error(err))
		WriteError(w, code, http.StatusText(code))
		return
	}
	WriteError(w, code, err.Error())
}
