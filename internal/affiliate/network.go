// Package affiliate talks to the affiliate network that issues tracking URLs
// and reports purchase conversions.
package affiliate

import (
	"context"

	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/shopspring/decimal"
)

// Quote is the network's answer for one product URL. CommissionRate is a
// percentage of GMV.
type Quote struct {
	AffiliateURL   string          `json:"affiliate_url"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	CampaignName   string          `json:"campaign_name,omitempty"`
}

// Conversion statuses as reported by the network.
const (
	ConversionPending  = "PENDING"
	ConversionApproved = "APPROVED"
	ConversionRejected = "REJECTED"
)

type Conversion struct {
	ExternalID  string `json:"order"`
	Status      string `json:"status"`
	GMV         int64  `json:"gmv"`
	PurchaserIP string `json:"purchaser_ip,omitempty"`
}

type Network interface {
	GenerateLink(ctx context.Context, originalURL string, platform link.Platform) (*Quote, error)
	// Conversion returns nil, nil while the network has no record of the order.
	Conversion(ctx context.Context, externalID string) (*Conversion, error)
}
