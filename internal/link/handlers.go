package link

import (
	"encoding/json"
	"net/http"

	"github.com/antonminaichev/cashback-ledger/internal/httputil"
	"github.com/antonminaichev/cashback-ledger/internal/middleware"
	"github.com/antonminaichev/cashback-ledger/internal/ratelimit"
	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req link.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	resp, err := h.svc.Generate(r.Context(), Creator{
		AccountID: middleware.UserIDFromContext(r.Context()),
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	}, req.URL)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.List(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if len(links) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, links)
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	http.Redirect(w, r, l.AffiliateURL, http.StatusFound)
}
