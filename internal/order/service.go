package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/affiliate"
	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	ledgersvc "github.com/antonminaichev/cashback-ledger/internal/ledger"
	linksvc "github.com/antonminaichev/cashback-ledger/internal/link"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/types/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/types/order"
	"go.uber.org/zap"
)

var (
	ErrInvalidOrder       = errors.New("external order id and link code are required")
	ErrUnknownLink        = errors.New("tracking link not found")
	ErrOrderAlreadyExists = errors.New("order already uploaded by this user")
	ErrOrderConflict      = errors.New("order already uploaded by another user")
	ErrOrderAccepted      = errors.New("order accepted")
)

type Service struct {
	repo  OrderRepository
	links LinkFinder
}

func NewService(r OrderRepository, links LinkFinder) *Service {
	return &Service{repo: r, links: links}
}

// SubmitOrder registers a purchase made through one of the user's tracking
// links. The commission rate is fixed from the link at this point.
func (s *Service) SubmitOrder(ctx context.Context, userID int64, req order.SubmitRequest) error {
	externalID := strings.TrimSpace(req.ExternalID)
	code := strings.TrimSpace(req.LinkCode)
	if externalID == "" || code == "" {
		return ErrInvalidOrder
	}

	l, err := s.links.FindLinkByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ErrUnknownLink
		}
		return err
	}
	if l.AccountID != userID {
		return ErrUnknownLink
	}

	existing, err := s.repo.FindOrderByExternalID(ctx, externalID)
	if err == nil {
		if existing.AccountID == userID {
			return ErrOrderAlreadyExists
		}
		return ErrOrderConflict
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	o := &order.Order{
		AccountID:      userID,
		ExternalID:     externalID,
		LinkCode:       l.ShortCode,
		Platform:       string(l.Platform),
		Status:         order.StatusNew,
		CommissionRate: l.CommissionRate,
		UploadedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return ErrOrderConflict
		}
		return err
	}
	return ErrOrderAccepted
}

func (s *Service) ListOrders(ctx context.Context, userID int64) ([]order.Order, error) {
	return s.repo.ListOrdersByAccount(ctx, userID)
}

func (s *Service) ListForPolling(ctx context.Context) ([]order.Order, error) {
	return s.repo.ListOrdersForPolling(ctx)
}

// UpdateFromConversion applies the network's view of an order and posts the
// matching cashback entries in the same account transaction. Orders already
// APPROVED or REJECTED are left alone.
func (s *Service) UpdateFromConversion(ctx context.Context, conv affiliate.Conversion) error {
	current, err := s.repo.FindOrderByExternalID(ctx, conv.ExternalID)
	if err != nil {
		return err
	}

	target := order.OrderStatus(conv.Status)
	note := ""
	if target != order.StatusRejected && current.LinkCode != "" {
		l, err := s.links.FindLinkByCode(ctx, current.LinkCode)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if fraud, reason := linksvc.CheckSelfReferral(l, conv.PurchaserIP); fraud {
			logger.Log.Warn("conversion flagged",
				zap.String("order", conv.ExternalID),
				zap.Int64("account_id", current.AccountID),
				zap.String("reason", reason),
			)
			target, note = order.StatusRejected, reason
		}
	}

	return s.repo.InAccountTx(ctx, current.AccountID, func(ctx context.Context, tx storage.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, conv.ExternalID)
		if err != nil {
			return err
		}
		if o.Status == order.StatusApproved || o.Status == order.StatusRejected || o.Status == target {
			return nil
		}

		if o.Status == order.StatusNew && target != order.StatusRejected {
			split := SplitCommission(conv.GMV, o.CommissionRate)
			o.GMV = conv.GMV
			o.CommissionAmount = split.Commission
			o.UserCommission = split.User
			o.Tax = split.Tax
			o.SystemFee = split.SystemFee
		}

		switch target {
		case order.StatusPending:
			if err := postIfNonZero(ctx, tx, o, o.UserCommission, ledger.KindCashbackPending); err != nil {
				return err
			}
		case order.StatusApproved:
			if o.Status == order.StatusNew {
				if err := postIfNonZero(ctx, tx, o, o.UserCommission, ledger.KindCashbackPending); err != nil {
					return err
				}
			}
			if err := postIfNonZero(ctx, tx, o, o.UserCommission, ledger.KindCashbackApproved); err != nil {
				return err
			}
		case order.StatusRejected:
			if o.Status == order.StatusPending {
				if err := postIfNonZero(ctx, tx, o, -o.UserCommission, ledger.KindCashbackPending); err != nil {
					return err
				}
			}
			if note == "" {
				note = "rejected by affiliate network"
			}
			o.Note = note
		default:
			return fmt.Errorf("order %s: unknown conversion status %q", o.ExternalID, conv.Status)
		}

		if target == order.StatusApproved || target == order.StatusRejected {
			now := time.Now().UTC()
			o.ProcessedAt = &now
		}
		o.Status = target
		return tx.UpdateOrder(ctx, o)
	})
}

func postIfNonZero(ctx context.Context, tx storage.Tx, o *order.Order, amount int64, kind ledger.Kind) error {
	if amount == 0 {
		return nil
	}
	_, err := ledgersvc.PostTx(ctx, tx, o.AccountID, amount, kind, o.ExternalID)
	return err
}
