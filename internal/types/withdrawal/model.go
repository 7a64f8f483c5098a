package withdrawal

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
)

// InFlight reports whether funds are still locked for the withdrawal.
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

type BankInfo struct {
	BankName      string `db:"bank_name" json:"bank_name" validate:"required"`
	AccountNumber string `db:"account_number" json:"account_number" validate:"required"`
	AccountHolder string `db:"account_holder" json:"account_holder" validate:"required"`
}

type Withdrawal struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	AccountID   int64      `db:"account_id" json:"account_id"`
	Amount      int64      `db:"amount" json:"amount"`
	BankInfo    BankInfo   `json:"bank_info"`
	Status      Status     `db:"status" json:"status"`
	AdminNote   string     `db:"admin_note" json:"admin_note,omitempty"`
	ProcessedBy *int64     `db:"processed_by" json:"processed_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}

type WithdrawRequest struct {
	Amount        int64  `json:"amount"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

type WithdrawResponse struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	Status       Status    `json:"status"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type StatusResponse struct {
	Status Status `json:"status"`
}
