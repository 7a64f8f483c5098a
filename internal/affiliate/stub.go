package affiliate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/shopspring/decimal"
)

type rateRange struct {
	min, max decimal.Decimal
}

var commissionRates = map[link.Platform]rateRange{
	link.PlatformShopee: {decimal.RequireFromString("2.5"), decimal.RequireFromString("8")},
	link.PlatformLazada: {decimal.RequireFromString("3"), decimal.RequireFromString("10")},
	link.PlatformTikTok: {decimal.RequireFromString("4"), decimal.RequireFromString("12")},
	link.PlatformTiki:   {decimal.RequireFromString("2"), decimal.RequireFromString("7")},
}

var campaigns = map[link.Platform]string{
	link.PlatformShopee: "Shopee Mall Deals",
	link.PlatformLazada: "LazMall Exclusive",
	link.PlatformTikTok: "TikTok Live Shopping",
	link.PlatformTiki:   "Official Store Deals",
}

// Stub is an in-process network for development and tests. It quotes the
// middle of each platform's commission range and reports only conversions
// that were recorded on it.
type Stub struct {
	seq uint64

	mu          sync.RWMutex
	conversions map[string]Conversion
}

func NewStub() *Stub {
	return &Stub{conversions: make(map[string]Conversion)}
}

func (s *Stub) GenerateLink(ctx context.Context, originalURL string, platform link.Platform) (*Quote, error) {
	rr, ok := commissionRates[platform]
	if !ok {
		return nil, fmt.Errorf("no campaign for platform %q", platform)
	}
	rate := rr.min.Add(rr.max).Div(decimal.NewFromInt(2)).Round(1)

	n := atomic.AddUint64(&s.seq, 1)
	trackingID := "CT" + strings.ToUpper(strconv.FormatInt(time.Now().Unix(), 36)+strconv.FormatUint(n, 36))

	sep := "?"
	if strings.Contains(originalURL, "?") {
		sep = "&"
	}
	return &Quote{
		AffiliateURL:   originalURL + sep + "aff_id=" + trackingID + "&utm_source=cashbacktitan&utm_medium=affiliate",
		CommissionRate: rate,
		CampaignName:   campaigns[platform],
	}, nil
}

// Record makes the stub report c for its external id.
func (s *Stub) Record(c Conversion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversions[c.ExternalID] = c
}

func (s *Stub) Conversion(ctx context.Context, externalID string) (*Conversion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversions[externalID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
