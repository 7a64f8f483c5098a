package ledger

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCashbackPending          Kind = "CASHBACK_PENDING"
	KindCashbackApproved         Kind = "CASHBACK_APPROVED"
	KindWithdrawalLock           Kind = "WITHDRAWAL_LOCK"
	KindWithdrawalCompleted      Kind = "WITHDRAWAL_COMPLETED"
	KindWithdrawalRejectedRefund Kind = "WITHDRAWAL_REJECTED_REFUND"
	KindManualPayout             Kind = "MANUAL_PAYOUT"
	KindBonus                    Kind = "BONUS"
)

// Entry is immutable once posted. Amount is signed.
type Entry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AccountID   int64     `db:"account_id" json:"account_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Kind        Kind      `db:"kind" json:"kind"`
	ReferenceID string    `db:"reference_id" json:"reference_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type BalanceDTO struct {
	Available int64 `json:"available"`
	Pending   int64 `json:"pending"`
	Locked    int64 `json:"locked"`
}

// Total is available + pending + locked.
func (b BalanceDTO) Total() int64 {
	return b.Available + b.Pending + b.Locked
}

type AdjustRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}
