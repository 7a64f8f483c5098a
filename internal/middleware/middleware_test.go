package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	usersvc "github.com/antonminaichev/cashback-ledger/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type repo map[string]*user.User

func (r repo) Create(ctx context.Context, u *user.User) error {
	u.ID = int64(len(r) + 1)
	r[u.Login] = u
	return nil
}

func (r repo) FindByID(ctx context.Context, id int64) (*user.User, error) {
	for _, u := range r {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r repo) ListUsers(ctx context.Context) ([]user.User, error) {
	var out []user.User
	for _, u := range r {
		out = append(out, *u)
	}
	return out, nil
}

func (r repo) UpdateUser(ctx context.Context, u *user.User) error {
	r[u.Login] = u
	return nil
}

func (r repo) FindByLogin(ctx context.Context, login string) (*user.User, error) {
	if u, ok := r[login]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

var secret = []byte("mw-secret")

func tokens(t *testing.T) (repo, string, string) {
	t.Helper()
	r := repo{}
	svc := usersvc.NewService(r, secret, time.Hour)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "Password#123")
	require.NoError(t, err)
	_, err = svc.EnsureAdmin(ctx, "root", "Root#Pass1")
	require.NoError(t, err)
	u, err := svc.Authenticate(ctx, "alice", "Password#123")
	require.NoError(t, err)
	a, err := svc.Authenticate(ctx, "root", "Root#Pass1")
	require.NoError(t, err)
	return r, u.Token, a.Token
}

func TestJWTMiddleware(t *testing.T) {
	r, userToken, adminToken := tokens(t)

	var got user.Principal
	h := JWTMiddleware(secret, r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, _ = PrincipalFromContext(req.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
		role   user.Role
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, ""},
		{"user", "Bearer " + userToken, http.StatusOK, user.RoleUser},
		{"admin", "Bearer " + adminToken, http.StatusOK, user.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = user.Principal{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.role, got.Role)
		})
	}
}

func TestRoleComesFromStorage(t *testing.T) {
	r, userToken, _ := tokens(t)
	// promoted after the token was issued
	r["alice"].Role = user.RoleAdmin

	h := JWTMiddleware(secret, r)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBannedUserIsRefused(t *testing.T) {
	r, userToken, _ := tokens(t)
	r["alice"].Status = user.StatusBanned

	called := false
	h := JWTMiddleware(secret, r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, tc := range []struct {
		ctx  context.Context
		want int
	}{
		{context.Background(), http.StatusForbidden},
		{ContextWithUserID(context.Background(), 7), http.StatusForbidden},
		{ContextWithPrincipal(context.Background(), user.Principal{UserID: 1, Role: user.RoleAdmin}), http.StatusOK},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tc.ctx))
		assert.Equal(t, tc.want, rec.Code)
	}
}

func TestGzipHandler(t *testing.T) {
	h := GzipHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	zw.Write([]byte(`{"amount":50000}`))
	zw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &compressed)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"amount":50000}`, string(out))

	bad := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("plain"))
	bad.Header.Set("Content-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
