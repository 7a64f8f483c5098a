package withdrawal

import (
	"encoding/json"
	"net/http"

	"github.com/antonminaichev/cashback-ledger/internal/httputil"
	"github.com/antonminaichev/cashback-ledger/internal/middleware"
	"github.com/antonminaichev/cashback-ledger/internal/types/withdrawal"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	svc     *Service
	gateway *Gateway
}

func NewHandler(svc *Service, gateway *Gateway) *Handler {
	return &Handler{svc: svc, gateway: gateway}
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var req withdrawal.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	wd, err := h.svc.Request(r.Context(), userID, req.Amount, withdrawal.BankInfo{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, withdrawal.WithdrawResponse{WithdrawalID: wd.ID, Status: wd.Status})
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	list, err := h.svc.ListByAccount(r.Context(), userID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if len(list) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// List is the admin queue. ?status= narrows it to one state.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := withdrawal.Status(r.URL.Query().Get("status"))
	switch status {
	case "", withdrawal.StatusPending, withdrawal.StatusProcessing, withdrawal.StatusCompleted, withdrawal.StatusRejected:
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown status")
		return
	}
	list, err := h.svc.List(r.Context(), status)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if len(list) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	wd, err := h.gateway.Approve(r.Context(), p, id)
	h.writeDecision(w, wd, err)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req withdrawal.RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	wd, err := h.gateway.Reject(r.Context(), p, id, req.Reason)
	h.writeDecision(w, wd, err)
}

func (h *Handler) MarkProcessing(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())
	wd, err := h.gateway.MarkProcessing(r.Context(), p, id)
	h.writeDecision(w, wd, err)
}

func (h *Handler) writeDecision(w http.ResponseWriter, wd *withdrawal.Withdrawal, err error) {
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, withdrawal.StatusResponse{Status: wd.Status})
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid withdrawal id")
		return uuid.Nil, false
	}
	return id, true
}
