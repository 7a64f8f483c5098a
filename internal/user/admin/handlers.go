// Package admin serves the account management routes under /api/admin/users.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/antonminaichev/cashback-ledger/internal/httputil"
	"github.com/antonminaichev/cashback-ledger/internal/middleware"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	usersvc "github.com/antonminaichev/cashback-ledger/internal/user"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *usersvc.Service
}

func NewHandler(svc *usersvc.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if len(users) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}
	var req user.BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	u, err := h.svc.SetBanned(r.Context(), middleware.UserIDFromContext(r.Context()), id, req.Banned)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}
	var req user.PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), middleware.UserIDFromContext(r.Context()), id, req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userParam(w, r)
	if !ok {
		return
	}
	var req user.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	u, err := h.svc.Rename(r.Context(), middleware.UserIDFromContext(r.Context()), id, req.Login)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case usersvc.IsPolicyError(err):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, usersvc.ErrUserExists), errors.Is(err, usersvc.ErrCannotBanAdmin):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	default:
		httputil.WriteAppError(w, err)
	}
}

func userParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}
