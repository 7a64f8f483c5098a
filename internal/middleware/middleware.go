package middleware

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/antonminaichev/cashback-ledger/internal/httputil"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	usersvc "github.com/antonminaichev/cashback-ledger/internal/user"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func GzipHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gzr, err := gzip.NewReader(r.Body)
			if err != nil {
				httputil.WriteError(rw, http.StatusBadRequest, "failed to create gzip reader")
				return
			}
			defer gzr.Close()
			r.Body = io.NopCloser(gzr)
		}

		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			rw.Header().Set("Content-Encoding", "gzip")
			gzw := gzip.NewWriter(rw)
			defer gzw.Close()

			gzrw := gzipResponseWriter{Writer: gzw, ResponseWriter: rw}
			next.ServeHTTP(gzrw, r)
		} else {
			next.ServeHTTP(rw, r)
		}
	})
}

type ctxKeyPrincipal struct{}

// JWTMiddleware authenticates the bearer token and stores the caller's
// principal in the request context. Role and ban status are read from
// storage, not from the token, so changes apply on the next request.
func JWTMiddleware(secret []byte, repo usersvc.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			tokenStr := strings.TrimPrefix(auth, "Bearer ")

			claims := &usersvc.Claims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			u, err := repo.FindByLogin(r.Context(), claims.Subject)
			if err != nil {
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if u.Banned() {
				httputil.WriteError(w, http.StatusForbidden, usersvc.ErrAccountBanned.Error())
				return
			}
			ctx := ContextWithPrincipal(r.Context(), user.Principal{UserID: u.ID, Role: u.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after JWTMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.IsAdmin() {
			logger.Log.Warn("admin access denied",
				zap.Int64("user_id", p.UserID),
				zap.String("path", r.URL.Path),
			)
			httputil.WriteError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func PrincipalFromContext(ctx context.Context) (user.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal{}).(user.Principal)
	return p, ok
}

func ContextWithPrincipal(ctx context.Context, p user.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal{}, p)
}

func UserIDFromContext(ctx context.Context) int64 {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return ContextWithPrincipal(ctx, user.Principal{UserID: userID, Role: user.RoleUser})
}
