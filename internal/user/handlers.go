package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/antonminaichev/cashback-ledger/internal/httputil"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req user.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if _, err := h.svc.Register(r.Context(), req.Login, req.Password); err != nil {
		switch {
		case IsPolicyError(err):
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUserExists):
			httputil.WriteError(w, http.StatusConflict, err.Error())
		default:
			httputil.WriteAppError(w, err)
		}
		return
	}

	sess, err := h.svc.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	writeSession(w, sess)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req user.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := h.svc.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCreds):
			httputil.WriteError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, ErrAccountBanned):
			httputil.WriteError(w, http.StatusForbidden, err.Error())
		default:
			httputil.WriteAppError(w, err)
		}
		return
	}
	writeSession(w, sess)
}

func writeSession(w http.ResponseWriter, sess *user.Session) {
	w.Header().Set("Authorization", "Bearer "+sess.Token)
	httputil.WriteJSON(w, http.StatusOK, sess)
}

// IsPolicyError reports whether err is a login or password policy violation.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrEmptyLogin) ||
		errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordNoUpper) ||
		errors.Is(err, ErrPasswordNoSpecial)
}
