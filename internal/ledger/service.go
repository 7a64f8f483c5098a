package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/types/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// PostTx appends one entry inside an open account transaction. It is the only
// way entries are created; callers enforce business rules before calling it.
func PostTx(ctx context.Context, w EntryWriter, accountID, amount int64, kind ledger.Kind, referenceID string) (uuid.UUID, error) {
	if amount == 0 {
		return uuid.Nil, fmt.Errorf("post %s: zero amount: %w", kind, apperr.ErrInvalidAmount)
	}
	if !KnownKind(kind) {
		return uuid.Nil, fmt.Errorf("post: unknown entry kind %q", kind)
	}
	e := &ledger.Entry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        kind,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := w.InsertEntry(ctx, e); err != nil {
		return uuid.Nil, fmt.Errorf("insert entry: %w", err)
	}
	return e.ID, nil
}

// BalanceTx folds the account's entries as seen by r.
func BalanceTx(ctx context.Context, r SumReader, accountID int64) (ledger.BalanceDTO, error) {
	sums, err := r.SumByKind(ctx, accountID)
	if err != nil {
		return ledger.BalanceDTO{}, err
	}
	return Fold(sums), nil
}

func (s *Service) Post(ctx context.Context, accountID, amount int64, kind ledger.Kind, referenceID string) (uuid.UUID, error) {
	if amount == 0 {
		return uuid.Nil, fmt.Errorf("post %s: zero amount: %w", kind, apperr.ErrInvalidAmount)
	}
	var id uuid.UUID
	err := s.repo.InAccountTx(ctx, accountID, func(ctx context.Context, tx storage.Tx) error {
		var err error
		id, err = PostTx(ctx, tx, accountID, amount, kind, referenceID)
		return err
	})
	return id, err
}

func (s *Service) Balance(ctx context.Context, accountID int64) (ledger.BalanceDTO, error) {
	return BalanceTx(ctx, s.repo, accountID)
}

func (s *Service) History(ctx context.Context, accountID int64) ([]ledger.Entry, error) {
	return s.repo.ListEntries(ctx, accountID)
}

// ManualPayout pays amount out of the available balance outside the
// withdrawal flow.
func (s *Service) ManualPayout(ctx context.Context, adminID, accountID, amount int64, note string) (uuid.UUID, error) {
	if amount <= 0 {
		return uuid.Nil, fmt.Errorf("payout %d: %w", amount, apperr.ErrInvalidAmount)
	}
	var id uuid.UUID
	err := s.repo.InAccountTx(ctx, accountID, func(ctx context.Context, tx storage.Tx) error {
		bal, err := BalanceTx(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if amount > bal.Available {
			return fmt.Errorf("payout %d, available %d: %w", amount, bal.Available, apperr.ErrInsufficientBalance)
		}
		id, err = PostTx(ctx, tx, accountID, -amount, ledger.KindManualPayout, note)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	logger.Log.Info("manual payout",
		zap.Int64("account_id", accountID),
		zap.Int64("admin_id", adminID),
		zap.Int64("amount", amount),
	)
	return id, nil
}

func (s *Service) Bonus(ctx context.Context, adminID, accountID, amount int64, note string) (uuid.UUID, error) {
	if amount <= 0 {
		return uuid.Nil, fmt.Errorf("bonus %d: %w", amount, apperr.ErrInvalidAmount)
	}
	id, err := s.Post(ctx, accountID, amount, ledger.KindBonus, note)
	if err != nil {
		return uuid.Nil, err
	}
	logger.Log.Info("bonus credited",
		zap.Int64("account_id", accountID),
		zap.Int64("admin_id", adminID),
		zap.Int64("amount", amount),
	)
	return id, nil
}
