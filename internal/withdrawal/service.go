package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	ledgersvc "github.com/antonminaichev/cashback-ledger/internal/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/types/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/types/withdrawal"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinAmount int64 = 50_000
	MaxAmount int64 = 50_000_000
)

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(r Repository) *Service {
	return &Service{repo: r, validate: validator.New()}
}

// Request locks amount out of the available balance and opens a PENDING
// withdrawal. Checks run in a fixed order and the first failure is returned.
func (s *Service) Request(ctx context.Context, accountID, amount int64, bank withdrawal.BankInfo) (*withdrawal.Withdrawal, error) {
	switch {
	case amount <= 0:
		return nil, fmt.Errorf("amount %d must be positive: %w", amount, apperr.ErrInvalidAmount)
	case amount < MinAmount:
		return nil, fmt.Errorf("amount %d below minimum %d: %w", amount, MinAmount, apperr.ErrInvalidAmount)
	case amount > MaxAmount:
		return nil, fmt.Errorf("amount %d above maximum %d: %w", amount, MaxAmount, apperr.ErrInvalidAmount)
	}

	bank = withdrawal.BankInfo{
		BankName:      strings.TrimSpace(bank.BankName),
		AccountNumber: strings.TrimSpace(bank.AccountNumber),
		AccountHolder: strings.TrimSpace(bank.AccountHolder),
	}

	var w *withdrawal.Withdrawal
	err := s.repo.InAccountTx(ctx, accountID, func(ctx context.Context, tx storage.Tx) error {
		bal, err := ledgersvc.BalanceTx(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if amount > bal.Available {
			return fmt.Errorf("amount %d, available %d: %w", amount, bal.Available, apperr.ErrInsufficientBalance)
		}
		if err := s.validate.Struct(bank); err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrInvalidBankInfo, err)
		}

		w = &withdrawal.Withdrawal{
			ID:        uuid.New(),
			AccountID: accountID,
			Amount:    amount,
			BankInfo:  bank,
			Status:    withdrawal.StatusPending,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := ledgersvc.PostTx(ctx, tx, accountID, -amount, ledger.KindWithdrawalLock, w.ID.String()); err != nil {
			return err
		}
		return tx.InsertWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("withdrawal requested",
		zap.String("withdrawal_id", w.ID.String()),
		zap.Int64("account_id", accountID),
		zap.Int64("amount", amount),
	)
	return w, nil
}

// Approve releases the locked amount out of the system.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, adminID int64) (*withdrawal.Withdrawal, error) {
	return s.transition(ctx, id, "approve", func(ctx context.Context, tx storage.Tx, w *withdrawal.Withdrawal) error {
		if _, err := ledgersvc.PostTx(ctx, tx, w.AccountID, -w.Amount, ledger.KindWithdrawalCompleted, w.ID.String()); err != nil {
			return err
		}
		now := time.Now().UTC()
		w.Status = withdrawal.StatusCompleted
		w.ProcessedAt = &now
		w.ProcessedBy = &adminID
		return nil
	})
}

// Reject returns the locked amount to available. reason is required.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, adminID int64, reason string) (*withdrawal.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("reject %s: %w", id, apperr.ErrReasonRequired)
	}
	return s.transition(ctx, id, "reject", func(ctx context.Context, tx storage.Tx, w *withdrawal.Withdrawal) error {
		if _, err := ledgersvc.PostTx(ctx, tx, w.AccountID, w.Amount, ledger.KindWithdrawalRejectedRefund, w.ID.String()); err != nil {
			return err
		}
		now := time.Now().UTC()
		w.Status = withdrawal.StatusRejected
		w.AdminNote = reason
		w.ProcessedAt = &now
		w.ProcessedBy = &adminID
		return nil
	})
}

// MarkProcessing moves a PENDING withdrawal to PROCESSING. Funds stay locked.
func (s *Service) MarkProcessing(ctx context.Context, id uuid.UUID, adminID int64) (*withdrawal.Withdrawal, error) {
	return s.transition(ctx, id, "mark processing", func(ctx context.Context, tx storage.Tx, w *withdrawal.Withdrawal) error {
		if w.Status != withdrawal.StatusPending {
			return fmt.Errorf("withdrawal %s is %s: %w", w.ID, w.Status, apperr.ErrInvalidTransition)
		}
		w.Status = withdrawal.StatusProcessing
		w.ProcessedBy = &adminID
		return nil
	})
}

type applyFunc func(ctx context.Context, tx storage.Tx, w *withdrawal.Withdrawal) error

// transition locks the owning account, re-reads the withdrawal under that lock
// and applies fn only while the withdrawal is in flight.
func (s *Service) transition(ctx context.Context, id uuid.UUID, op string, fn applyFunc) (*withdrawal.Withdrawal, error) {
	current, err := s.repo.GetWithdrawal(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%s %s: %w: %w", op, id, apperr.ErrInvalidTransition, err)
		}
		return nil, err
	}

	var w *withdrawal.Withdrawal
	err = s.repo.InAccountTx(ctx, current.AccountID, func(ctx context.Context, tx storage.Tx) error {
		var err error
		w, err = tx.GetWithdrawalForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !w.Status.InFlight() {
			return fmt.Errorf("%s %s: status %s: %w", op, id, w.Status, apperr.ErrInvalidTransition)
		}
		if err := fn(ctx, tx, w); err != nil {
			return err
		}
		return tx.UpdateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("withdrawal transition",
		zap.String("op", op),
		zap.String("withdrawal_id", id.String()),
		zap.String("status", string(w.Status)),
	)
	return w, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	return s.repo.GetWithdrawal(ctx, id)
}

func (s *Service) ListByAccount(ctx context.Context, accountID int64) ([]withdrawal.Withdrawal, error) {
	return s.repo.ListWithdrawalsByAccount(ctx, accountID)
}

func (s *Service) List(ctx context.Context, status withdrawal.Status) ([]withdrawal.Withdrawal, error) {
	return s.repo.ListWithdrawals(ctx, status)
}
