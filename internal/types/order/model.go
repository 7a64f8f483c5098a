package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPending  OrderStatus = "PENDING"
	StatusApproved OrderStatus = "APPROVED"
	StatusRejected OrderStatus = "REJECTED"
)

type Order struct {
	ID               int64           `db:"id" json:"-"`
	AccountID        int64           `db:"account_id" json:"-"`
	ExternalID       string          `db:"external_id" json:"external_id"`
	LinkCode         string          `db:"link_code" json:"link_code,omitempty"`
	Platform         string          `db:"platform" json:"platform,omitempty"`
	Status           OrderStatus     `db:"status" json:"status"`
	GMV              int64           `db:"gmv" json:"gmv"`
	CommissionRate   decimal.Decimal `db:"commission_rate" json:"commission_rate"`
	CommissionAmount int64           `db:"commission_amount" json:"commission_amount"`
	UserCommission   int64           `db:"user_commission" json:"user_commission"`
	SystemFee        int64           `db:"system_fee" json:"-"`
	Tax              int64           `db:"tax" json:"-"`
	Note             string          `db:"note" json:"note,omitempty"`
	UploadedAt       time.Time       `db:"uploaded_at" json:"uploaded_at"`
	ProcessedAt      *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

type SubmitRequest struct {
	ExternalID string `json:"external_id"`
	LinkCode   string `json:"link_code"`
}
