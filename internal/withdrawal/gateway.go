package withdrawal

import (
	"context"
	"fmt"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	"github.com/antonminaichev/cashback-ledger/internal/types/withdrawal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the only way admin decisions reach the state machine. It checks
// the caller's role and leaves every transition rule to Service.
type Gateway struct {
	svc *Service
}

func NewGateway(svc *Service) *Gateway {
	return &Gateway{svc: svc}
}

func (g *Gateway) Approve(ctx context.Context, p user.Principal, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	if err := authorize(p, "approve", id); err != nil {
		return nil, err
	}
	return g.svc.Approve(ctx, id, p.UserID)
}

func (g *Gateway) Reject(ctx context.Context, p user.Principal, id uuid.UUID, reason string) (*withdrawal.Withdrawal, error) {
	if err := authorize(p, "reject", id); err != nil {
		return nil, err
	}
	return g.svc.Reject(ctx, id, p.UserID, reason)
}

func (g *Gateway) MarkProcessing(ctx context.Context, p user.Principal, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	if err := authorize(p, "mark processing", id); err != nil {
		return nil, err
	}
	return g.svc.MarkProcessing(ctx, id, p.UserID)
}

func authorize(p user.Principal, op string, id uuid.UUID) error {
	if p.IsAdmin() {
		return nil
	}
	logger.Log.Warn("non-admin withdrawal decision refused",
		zap.Int64("user_id", p.UserID),
		zap.String("op", op),
		zap.String("withdrawal_id", id.String()),
	)
	return fmt.Errorf("%s %s by user %d: %w", op, id, p.UserID, apperr.ErrUnauthorized)
}
