package ledger

import (
	"context"

	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/types/ledger"
)

type Repository interface {
	InAccountTx(ctx context.Context, accountID int64, fn storage.TxFunc) error
	SumByKind(ctx context.Context, accountID int64) (map[ledger.Kind]int64, error)
	ListEntries(ctx context.Context, accountID int64) ([]ledger.Entry, error)
}

// EntryWriter is the part of a storage transaction the ledger posts through.
type EntryWriter interface {
	InsertEntry(ctx context.Context, e *ledger.Entry) error
}

type SumReader interface {
	SumByKind(ctx context.Context, accountID int64) (map[ledger.Kind]int64, error)
}
