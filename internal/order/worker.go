package order

import (
	"context"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/affiliate"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/types/order"
	"go.uber.org/zap"
)

// ConversionSource is the part of the affiliate network the poller needs.
type ConversionSource interface {
	Conversion(ctx context.Context, externalID string) (*affiliate.Conversion, error)
}

type Updater interface {
	UpdateFromConversion(ctx context.Context, conv affiliate.Conversion) error
}

type Poller interface {
	Updater
	ListForPolling(ctx context.Context) ([]order.Order, error)
}

func workerLoop(
	ctx context.Context,
	id int,
	source ConversionSource,
	jobs <-chan string,
	svc Updater,
) {
	log := logger.Log.With(zap.Int("worker", id))
	log.Debug("worker started")
	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopped by context")
			return

		case externalID, ok := <-jobs:
			if !ok {
				log.Debug("jobs channel closed")
				return
			}

			conv, err := source.Conversion(ctx, externalID)
			if err != nil {
				log.Warn("conversion request failed", zap.String("order", externalID), zap.Error(err))
				continue
			}
			if conv == nil || conv.ExternalID == "" {
				log.Debug("no conversion yet", zap.String("order", externalID))
				continue
			}

			if err := svc.UpdateFromConversion(ctx, *conv); err != nil {
				log.Error("order update failed", zap.String("order", conv.ExternalID), zap.Error(err))
				continue
			}
			log.Info("order updated",
				zap.String("order", conv.ExternalID),
				zap.String("status", conv.Status),
				zap.Int64("gmv", conv.GMV),
			)
		}
	}
}

// DispatcherLoop polls unsettled orders every interval and fans them out to
// workerCount workers. It returns when ctx is cancelled.
func DispatcherLoop(
	ctx context.Context,
	source ConversionSource,
	svc Poller,
	workerCount int,
	interval time.Duration,
) {
	if workerCount <= 0 {
		workerCount = 1
	}
	jobs := make(chan string, workerCount*3)

	for i := 1; i <= workerCount; i++ {
		go workerLoop(ctx, i, source, jobs, svc)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Log.Info("conversion dispatcher started", zap.Int("workers", workerCount), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("conversion dispatcher stopping")
			close(jobs)
			return
		case <-ticker.C:
			orders, err := svc.ListForPolling(ctx)
			if err != nil {
				logger.Log.Error("list orders for polling", zap.Error(err))
				continue
			}
			if len(orders) == 0 {
				continue
			}
			logger.Log.Debug("polling orders", zap.Int("count", len(orders)))
			for _, o := range orders {
				select {
				case jobs <- o.ExternalID:
				default:
					logger.Log.Warn("jobs channel full, skipping order this cycle", zap.String("order", o.ExternalID))
				}
			}
		}
	}
}
