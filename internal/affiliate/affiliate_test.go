package affiliate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubGenerateLink(t *testing.T) {
	s := NewStub()
	tests := []struct {
		platform link.Platform
		url      string
		wantRate string
		wantSep  string
	}{
		{link.PlatformShopee, "https://shopee.vn/product/1", "5.3", "?"},
		{link.PlatformLazada, "https://www.lazada.vn/p?id=2", "6.5", "&"},
		{link.PlatformTikTok, "https://www.tiktok.com/view/3", "8", "?"},
		{link.PlatformTiki, "https://tiki.vn/4", "4.5", "?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			q, err := s.GenerateLink(context.Background(), tt.url, tt.platform)
			require.NoError(t, err)
			assert.True(t, q.CommissionRate.Equal(decimal.RequireFromString(tt.wantRate)), q.CommissionRate.String())
			assert.True(t, strings.HasPrefix(q.AffiliateURL, tt.url+tt.wantSep+"aff_id=CT"), q.AffiliateURL)
			assert.True(t, strings.HasSuffix(q.AffiliateURL, "&utm_source=cashbacktitan&utm_medium=affiliate"))
			assert.NotEmpty(t, q.CampaignName)
		})
	}

	a, _ := s.GenerateLink(context.Background(), "https://tiki.vn/1", link.PlatformTiki)
	b, _ := s.GenerateLink(context.Background(), "https://tiki.vn/1", link.PlatformTiki)
	assert.NotEqual(t, a.AffiliateURL, b.AffiliateURL)

	_, err := s.GenerateLink(context.Background(), "https://ebay.com", link.Platform("EBAY"))
	assert.Error(t, err)
}

func TestStubConversion(t *testing.T) {
	s := NewStub()
	c, err := s.Conversion(context.Background(), "X1")
	require.NoError(t, err)
	assert.Nil(t, c)

	s.Record(Conversion{ExternalID: "X1", Status: ConversionApproved, GMV: 1_000_000})
	c, err = s.Conversion(context.Background(), "X1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ConversionApproved, c.Status)
	assert.Equal(t, int64(1_000_000), c.GMV)
}

func TestHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/links":
			var req generateReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"affiliate_url":"` + req.URL + `?aff=1","commission_rate":7.5}`))
		case r.URL.Path == "/api/conversions/OK-1":
			w.Write([]byte(`{"order":"OK-1","status":"PENDING","gmv":250000,"purchaser_ip":"1.1.1.1"}`))
		case r.URL.Path == "/api/conversions/BUSY":
			w.WriteHeader(http.StatusTooManyRequests)
		case r.URL.Path == "/api/conversions/BROKEN":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 100)
	ctx := context.Background()

	q, err := c.GenerateLink(ctx, "https://shopee.vn/x", link.PlatformShopee)
	require.NoError(t, err)
	assert.Equal(t, "https://shopee.vn/x?aff=1", q.AffiliateURL)
	assert.True(t, q.CommissionRate.Equal(decimal.RequireFromString("7.5")))

	conv, err := c.Conversion(ctx, "OK-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "OK-1", conv.ExternalID)
	assert.Equal(t, int64(250000), conv.GMV)
	assert.Equal(t, "1.1.1.1", conv.PurchaserIP)

	conv, err = c.Conversion(ctx, "UNKNOWN")
	assert.NoError(t, err)
	assert.Nil(t, conv)

	_, err = c.Conversion(ctx, "BUSY")
	assert.ErrorContains(t, err, "429")

	_, err = c.Conversion(ctx, "BROKEN")
	assert.Error(t, err)
}

func TestHTTPClientCancelledContext(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Conversion(ctx, "X")
	assert.Error(t, err)
}
