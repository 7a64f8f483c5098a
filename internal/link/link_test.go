package link

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antonminaichev/cashback-ledger/internal/affiliate"
	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/middleware"
	"github.com/antonminaichev/cashback-ledger/internal/storage/memory"
	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url  string
		want link.Platform
		ok   bool
	}{
		{"https://shopee.vn/product/123", link.PlatformShopee, true},
		{"https://SHOPEE.co.id/item", link.PlatformShopee, true},
		{"https://www.lazada.com.ph/p/1", link.PlatformLazada, true},
		{"https://shop.tiktok.com/view/2", link.PlatformTikTok, true},
		{"https://tiktokshop.vn/x", link.PlatformTikTok, true},
		{"https://tiki.vn/abc", link.PlatformTiki, true},
		{"https://amazon.com/dp/1", "", false},
		{"https://example.com/?q=shopee.vn", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, ok := ParseURL(tt.url)
			require.True(t, ok)
			got, ok := DetectPlatform(u)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseURL(t *testing.T) {
	for _, bad := range []string{"", "shopee.vn/x", "ftp://shopee.vn/x", "javascript:alert(1)", "https://"} {
		_, ok := ParseURL(bad)
		assert.False(t, ok, bad)
	}
	_, ok := ParseURL("http://tiki.vn")
	assert.True(t, ok)
}

func TestShortCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := ShortCode()
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected %q", r)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func newService(t *testing.T) (*Service, *memory.Storage, int64) {
	t.Helper()
	st := memory.New()
	u := &user.User{Login: "carol", PasswordHash: "x", Role: user.RoleUser}
	require.NoError(t, st.Create(context.Background(), u))
	return NewService(st, affiliate.NewStub(), "https://ct.example/"), st, u.ID
}

func TestGenerate(t *testing.T) {
	svc, _, acc := newService(t)
	ctx := context.Background()
	creator := Creator{AccountID: acc, IP: "10.1.1.1", UserAgent: "test"}

	resp, err := svc.Generate(ctx, creator, " https://shopee.vn/product/123 ")
	require.NoError(t, err)
	assert.Equal(t, link.PlatformShopee, resp.Platform)
	assert.Equal(t, "https://shopee.vn/product/123", resp.OriginalURL)
	assert.Equal(t, "https://ct.example/r/"+resp.ShortCode, resp.ShortURL)
	assert.Equal(t, "5.3%", resp.EstimatedCommission)
	assert.Contains(t, resp.AffiliateURL, "aff_id=")

	_, err = svc.Generate(ctx, creator, "not a url")
	assert.ErrorIs(t, err, apperr.ErrInvalidURL)
	_, err = svc.Generate(ctx, creator, "https://amazon.com/dp/1")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedPlatform)

	links, err := svc.List(ctx, acc)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "10.1.1.1", links[0].CreatorIP)
}

func TestGenerateRetriesCodeCollision(t *testing.T) {
	svc, _, acc := newService(t)
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	ctx := context.Background()
	first, err := svc.Generate(ctx, Creator{AccountID: acc}, "https://tiki.vn/1")
	require.NoError(t, err)
	second, err := svc.Generate(ctx, Creator{AccountID: acc}, "https://tiki.vn/2")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.ShortCode)
	assert.Equal(t, "BBBBBB", second.ShortCode)
}

func TestGenerateGivesUpAfterCollisions(t *testing.T) {
	svc, _, acc := newService(t)
	svc.newCode = func() (string, error) { return "SAME22", nil }
	ctx := context.Background()
	_, err := svc.Generate(ctx, Creator{AccountID: acc}, "https://tiki.vn/1")
	require.NoError(t, err)
	_, err = svc.Generate(ctx, Creator{AccountID: acc}, "https://tiki.vn/2")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestResolveCountsClicks(t *testing.T) {
	svc, st, acc := newService(t)
	ctx := context.Background()
	resp, err := svc.Generate(ctx, Creator{AccountID: acc}, "https://tiki.vn/1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		l, err := svc.Resolve(ctx, resp.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, resp.AffiliateURL, l.AffiliateURL)
	}
	l, err := st.FindLinkByCode(ctx, resp.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(3), l.ClickCount)

	_, err = svc.Resolve(ctx, "nope99")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckSelfReferral(t *testing.T) {
	l := &link.Link{CreatorIP: "1.2.3.4"}
	fraud, reason := CheckSelfReferral(l, "1.2.3.4")
	assert.True(t, fraud)
	assert.Contains(t, reason, "1.2.3.4")

	fraud, _ = CheckSelfReferral(l, "5.6.7.8")
	assert.False(t, fraud)
	fraud, _ = CheckSelfReferral(l, "")
	assert.False(t, fraud)
	fraud, _ = CheckSelfReferral(nil, "1.2.3.4")
	assert.False(t, fraud)
}

func TestHandlers(t *testing.T) {
	svc, _, acc := newService(t)
	h := NewHandler(svc)
	ctx := middleware.ContextWithUserID(context.Background(), acc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/links", strings.NewReader(`{"url":"https://lazada.vn/p/9"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Generate(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp link.GenerateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, link.PlatformLazada, resp.Platform)

	req = httptest.NewRequest(http.MethodPost, "/api/user/links", strings.NewReader(`{"url":"https://ebay.com/x"}`)).WithContext(ctx)
	rec = httptest.NewRecorder()
	h.Generate(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("code", resp.ShortCode)
	req = httptest.NewRequest(http.MethodGet, "/r/"+resp.ShortCode, nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec = httptest.NewRecorder()
	h.Redirect(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, resp.AffiliateURL, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/user/links", nil).WithContext(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
}
