package withdrawal

import (
	"context"

	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/types/withdrawal"
	"github.com/google/uuid"
)

type Repository interface {
	InAccountTx(ctx context.Context, accountID int64, fn storage.TxFunc) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error)
	ListWithdrawalsByAccount(ctx context.Context, accountID int64) ([]withdrawal.Withdrawal, error)
	ListWithdrawals(ctx context.Context, status withdrawal.Status) ([]withdrawal.Withdrawal, error)
}
