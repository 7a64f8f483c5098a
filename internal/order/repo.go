package order

import (
	"context"

	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/antonminaichev/cashback-ledger/internal/types/order"
)

type OrderRepository interface {
	InAccountTx(ctx context.Context, accountID int64, fn storage.TxFunc) error
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrderByExternalID(ctx context.Context, externalID string) (*order.Order, error)
	ListOrdersByAccount(ctx context.Context, accountID int64) ([]order.Order, error)
	ListOrdersForPolling(ctx context.Context) ([]order.Order, error)
}

type LinkFinder interface {
	FindLinkByCode(ctx context.Context, code string) (*link.Link, error)
}
