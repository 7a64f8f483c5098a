package ratelimit

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/httputil"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"go.uber.org/zap"
)

// Middleware limits requests per client IP. scope keeps separate counters for
// separate routes. If the counter store fails the request is let through.
func (l *Limiter) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + ClientIP(r)
			res, err := l.Check(r.Context(), key)
			if err != nil {
				logger.Log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				secs := int(math.Ceil(res.ResetIn.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httputil.WriteError(w, http.StatusTooManyRequests,
					fmt.Sprintf("%s, retry in %ds", apperr.ErrRateLimited, secs))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP expects chi's RealIP middleware to have normalised RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
