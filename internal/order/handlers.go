package order

import (
	"encoding/json"
	"net/http"

	"github.com/antonminaichev/cashback-ledger/internal/httputil"
	"github.com/antonminaichev/cashback-ledger/internal/middleware"
	"github.com/antonminaichev/cashback-ledger/internal/types/order"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req order.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	err := h.svc.SubmitOrder(r.Context(), userID, req)
	switch err {
	case ErrInvalidOrder, ErrUnknownLink:
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case ErrOrderAlreadyExists:
		w.WriteHeader(http.StatusOK)
	case ErrOrderAccepted:
		w.WriteHeader(http.StatusAccepted)
	case ErrOrderConflict:
		httputil.WriteError(w, http.StatusConflict, err.Error())
	default:
		httputil.WriteAppError(w, err)
	}
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	orders, err := h.svc.ListOrders(r.Context(), userID)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}
