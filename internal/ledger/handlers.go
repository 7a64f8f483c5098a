package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/antonminaichev/cashback-ledger/internal/httputil"
	"github.com/antonminaichev/cashback-ledger/internal/middleware"
	"github.com/antonminaichev/cashback-ledger/internal/types/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	h.writeBalance(w, r, userID)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	entries, err := h.svc.History(r.Context(), userID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// AccountBalance is the admin view of any account.
func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	h.writeBalance(w, r, accountID)
}

func (h *Handler) writeBalance(w http.ResponseWriter, r *http.Request, accountID int64) {
	bal, err := h.svc.Balance(r.Context(), accountID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bal)
}

type adjustFunc func(ctx context.Context, adminID, accountID, amount int64, note string) (uuid.UUID, error)

type adjustResponse struct {
	EntryID string            `json:"entry_id"`
	Balance ledger.BalanceDTO `json:"balance"`
}

func (h *Handler) Payout(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.svc.ManualPayout)
}

func (h *Handler) Bonus(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.svc.Bonus)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, op adjustFunc) {
	accountID, ok := accountParam(w, r)
	if !ok {
		return
	}
	var req ledger.AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	adminID := middleware.UserIDFromContext(r.Context())
	id, err := op(r.Context(), adminID, accountID, req.Amount, req.Note)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	bal, err := h.svc.Balance(r.Context(), accountID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, adjustResponse{EntryID: id.String(), Balance: bal})
}

func accountParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid account id")
		return 0, false
	}
	return id, true
}
