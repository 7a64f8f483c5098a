package link

import (
	"time"

	"github.com/shopspring/decimal"
)

type Platform string

const (
	PlatformShopee Platform = "SHOPEE"
	PlatformLazada Platform = "LAZADA"
	PlatformTikTok Platform = "TIKTOK"
	PlatformTiki   Platform = "TIKI"
)

type Link struct {
	ID               int64           `db:"id" json:"-"`
	AccountID        int64           `db:"account_id" json:"-"`
	Platform         Platform        `db:"platform" json:"platform"`
	OriginalURL      string          `db:"original_url" json:"original_url"`
	AffiliateURL     string          `db:"affiliate_url" json:"affiliate_url"`
	ShortCode        string          `db:"short_code" json:"short_code"`
	CommissionRate   decimal.Decimal `db:"commission_rate" json:"commission_rate"`
	CreatorIP        string          `db:"creator_ip" json:"-"`
	CreatorUserAgent string          `db:"creator_user_agent" json:"-"`
	ClickCount       int64           `db:"click_count" json:"click_count"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

type GenerateRequest struct {
	URL string `json:"url"`
}

type GenerateResponse struct {
	Platform            Platform `json:"platform"`
	OriginalURL         string   `json:"original_url"`
	AffiliateURL        string   `json:"affiliate_url"`
	ShortCode           string   `json:"short_code"`
	ShortURL            string   `json:"short_url"`
	EstimatedCommission string   `json:"estimated_commission"`
}
