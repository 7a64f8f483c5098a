package storage

import (
	"context"

	"github.com/antonminaichev/cashback-ledger/internal/types/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/antonminaichev/cashback-ledger/internal/types/order"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	"github.com/antonminaichev/cashback-ledger/internal/types/withdrawal"
	"github.com/google/uuid"
)

// Tx is a unit of work bound to one locked account. Nothing it writes is
// visible to other callers until the surrounding InAccountTx returns nil.
type Tx interface {
	SumByKind(ctx context.Context, accountID int64) (map[ledger.Kind]int64, error)
	InsertEntry(ctx context.Context, e *ledger.Entry) error

	InsertWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error
	GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error

	GetOrderForUpdate(ctx context.Context, externalID string) (*order.Order, error)
	UpdateOrder(ctx context.Context, o *order.Order) error
}

type TxFunc func(ctx context.Context, tx Tx) error

// AccountLocker serializes every balance-affecting operation on one account.
// Returns apperr.ErrNotFound for an unknown account.
type AccountLocker interface {
	InAccountTx(ctx context.Context, accountID int64, fn TxFunc) error
}

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	FindByLogin(ctx context.Context, login string) (*user.User, error)
	FindByID(ctx context.Context, id int64) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	// UpdateUser rewrites login, password hash and status.
	UpdateUser(ctx context.Context, u *user.User) error
}

// LedgerRepository only ever appends and sums entries.
type LedgerRepository interface {
	AccountLocker
	SumByKind(ctx context.Context, accountID int64) (map[ledger.Kind]int64, error)
	ListEntries(ctx context.Context, accountID int64) ([]ledger.Entry, error)
}

type WithdrawalRepository interface {
	AccountLocker
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error)
	ListWithdrawalsByAccount(ctx context.Context, accountID int64) ([]withdrawal.Withdrawal, error)
	// ListWithdrawals returns every withdrawal when status is empty.
	ListWithdrawals(ctx context.Context, status withdrawal.Status) ([]withdrawal.Withdrawal, error)
}

// OrderRepository stores cashback orders keyed by the network's external id.
type OrderRepository interface {
	AccountLocker
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrderByExternalID(ctx context.Context, externalID string) (*order.Order, error)
	ListOrdersByAccount(ctx context.Context, accountID int64) ([]order.Order, error)
	ListOrdersForPolling(ctx context.Context) ([]order.Order, error)
}

type LinkRepository interface {
	CreateLink(ctx context.Context, l *link.Link) error
	FindLinkByCode(ctx context.Context, code string) (*link.Link, error)
	ListLinksByAccount(ctx context.Context, accountID int64) ([]link.Link, error)
	IncrementClicks(ctx context.Context, code string) error
}

// Storage is implemented by the postgres and memory backends.
type Storage interface {
	UserRepository
	LedgerRepository
	WithdrawalRepository
	OrderRepository
	LinkRepository

	Ping(ctx context.Context) error
	Close() error
}
