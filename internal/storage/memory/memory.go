// Package memory is an in-process Storage. Each account has its own mutex, so
// operations on one account are serialized while different accounts proceed
// in parallel. Writes made inside InAccountTx are buffered and applied only
// when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/types/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/antonminaichev/cashback-ledger/internal/types/order"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	"github.com/antonminaichev/cashback-ledger/internal/types/withdrawal"
	"github.com/google/uuid"
)

type Storage struct {
	mu sync.RWMutex

	accountLocks map[int64]*sync.Mutex

	users        map[int64]*user.User
	usersByLogin map[string]int64
	nextUserID   int64

	entries map[int64][]ledger.Entry

	withdrawals     map[uuid.UUID]*withdrawal.Withdrawal
	withdrawalOrder []uuid.UUID

	orders      map[string]*order.Order
	nextOrderID int64

	links      map[string]*link.Link
	nextLinkID int64
}

var _ storage.Storage = (*Storage)(nil)

func New() *Storage {
	return &Storage{
		accountLocks: make(map[int64]*sync.Mutex),
		users:        make(map[int64]*user.User),
		usersByLogin: make(map[string]int64),
		entries:      make(map[int64][]ledger.Entry),
		withdrawals:  make(map[uuid.UUID]*withdrawal.Withdrawal),
		orders:       make(map[string]*order.Order),
		links:        make(map[string]*link.Link),
	}
}

func (s *Storage) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Storage) Close() error                   { return nil }

// ---- users ----

func (s *Storage) Create(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByLogin[u.Login]; ok {
		return fmt.Errorf("user %q: %w", u.Login, apperr.ErrConflict)
	}
	s.nextUserID++
	u.ID = s.nextUserID
	if u.Status == "" {
		u.Status = user.StatusActive
	}
	cp := *u
	s.users[u.ID] = &cp
	s.usersByLogin[u.Login] = u.ID
	return nil
}

func (s *Storage) FindByLogin(ctx context.Context, login string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByLogin[login]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", login, apperr.ErrNotFound)
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Storage) FindByID(ctx context.Context, id int64) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) UpdateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("user %d: %w", u.ID, apperr.ErrNotFound)
	}
	if u.Login != cur.Login {
		if _, taken := s.usersByLogin[u.Login]; taken {
			return fmt.Errorf("user %q: %w", u.Login, apperr.ErrConflict)
		}
		delete(s.usersByLogin, cur.Login)
		s.usersByLogin[u.Login] = u.ID
	}
	cur.Login = u.Login
	cur.PasswordHash = u.PasswordHash
	cur.Status = u.Status
	return nil
}

// ---- account transactions ----

func (s *Storage) accountLock(accountID int64) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[accountID]; !ok {
		return nil, fmt.Errorf("account %d: %w", accountID, apperr.ErrNotFound)
	}
	l, ok := s.accountLocks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.accountLocks[accountID] = l
	}
	return l, nil
}

func (s *Storage) InAccountTx(ctx context.Context, accountID int64, fn storage.TxFunc) error {
	l, err := s.accountLock(accountID)
	if err != nil {
		return err
	}
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:           s,
		withdrawals: make(map[uuid.UUID]*withdrawal.Withdrawal),
		orders:      make(map[string]*order.Order),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Storage) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range tx.entries {
		s.entries[e.AccountID] = append(s.entries[e.AccountID], e)
	}
	for id, w := range tx.withdrawals {
		if _, ok := s.withdrawals[id]; !ok {
			s.withdrawalOrder = append(s.withdrawalOrder, id)
		}
		s.withdrawals[id] = w
	}
	for ext, o := range tx.orders {
		s.orders[ext] = o
	}
}

type memTx struct {
	s           *Storage
	entries     []ledger.Entry
	withdrawals map[uuid.UUID]*withdrawal.Withdrawal
	orders      map[string]*order.Order
}

func (t *memTx) SumByKind(ctx context.Context, accountID int64) (map[ledger.Kind]int64, error) {
	sums, err := t.s.SumByKind(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, e := range t.entries {
		if e.AccountID == accountID {
			sums[e.Kind] += e.Amount
		}
	}
	return sums, nil
}

func (t *memTx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	t.entries = append(t.entries, *e)
	return nil
}

func (t *memTx) InsertWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error {
	if _, err := t.GetWithdrawalForUpdate(ctx, w.ID); err == nil {
		return fmt.Errorf("withdrawal %s: %w", w.ID, apperr.ErrConflict)
	}
	cp := *w
	t.withdrawals[w.ID] = &cp
	return nil
}

func (t *memTx) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	if w, ok := t.withdrawals[id]; ok {
		cp := *w
		return &cp, nil
	}
	return t.s.GetWithdrawal(ctx, id)
}

func (t *memTx) UpdateWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error {
	if _, err := t.GetWithdrawalForUpdate(ctx, w.ID); err != nil {
		return err
	}
	cp := *w
	t.withdrawals[w.ID] = &cp
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, externalID string) (*order.Order, error) {
	if o, ok := t.orders[externalID]; ok {
		cp := *o
		return &cp, nil
	}
	return t.s.FindOrderByExternalID(ctx, externalID)
}

func (t *memTx) UpdateOrder(ctx context.Context, o *order.Order) error {
	if _, err := t.GetOrderForUpdate(ctx, o.ExternalID); err != nil {
		return err
	}
	cp := *o
	t.orders[o.ExternalID] = &cp
	return nil
}

// ---- ledger ----

func (s *Storage) SumByKind(ctx context.Context, accountID int64) (map[ledger.Kind]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[accountID]; !ok {
		return nil, fmt.Errorf("account %d: %w", accountID, apperr.ErrNotFound)
	}
	sums := make(map[ledger.Kind]int64)
	for _, e := range s.entries[accountID] {
		sums[e.Kind] += e.Amount
	}
	return sums, nil
}

func (s *Storage) ListEntries(ctx context.Context, accountID int64) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.users[accountID]; !ok {
		return nil, fmt.Errorf("account %d: %w", accountID, apperr.ErrNotFound)
	}
	src := s.entries[accountID]
	out := make([]ledger.Entry, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// ---- withdrawals ----

func (s *Storage) GetWithdrawal(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, fmt.Errorf("withdrawal %s: %w", id, apperr.ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (s *Storage) ListWithdrawalsByAccount(ctx context.Context, accountID int64) ([]withdrawal.Withdrawal, error) {
	return s.listWithdrawals(func(w *withdrawal.Withdrawal) bool { return w.AccountID == accountID }), nil
}

func (s *Storage) ListWithdrawals(ctx context.Context, status withdrawal.Status) ([]withdrawal.Withdrawal, error) {
	return s.listWithdrawals(func(w *withdrawal.Withdrawal) bool {
		return status == "" || w.Status == status
	}), nil
}

func (s *Storage) listWithdrawals(match func(*withdrawal.Withdrawal) bool) []withdrawal.Withdrawal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []withdrawal.Withdrawal
	for i := len(s.withdrawalOrder) - 1; i >= 0; i-- {
		w := s.withdrawals[s.withdrawalOrder[i]]
		if match(w) {
			out = append(out, *w)
		}
	}
	return out
}

// ---- orders ----

func (s *Storage) CreateOrder(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ExternalID]; ok {
		return fmt.Errorf("order %s: %w", o.ExternalID, apperr.ErrConflict)
	}
	s.nextOrderID++
	o.ID = s.nextOrderID
	cp := *o
	s.orders[o.ExternalID] = &cp
	return nil
}

func (s *Storage) FindOrderByExternalID(ctx context.Context, externalID string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[externalID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", externalID, apperr.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *Storage) ListOrdersByAccount(ctx context.Context, accountID int64) ([]order.Order, error) {
	out := s.listOrders(func(o *order.Order) bool { return o.AccountID == accountID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Storage) ListOrdersForPolling(ctx context.Context) ([]order.Order, error) {
	out := s.listOrders(func(o *order.Order) bool {
		return o.Status == order.StatusNew || o.Status == order.StatusPending
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) listOrders(match func(*order.Order) bool) []order.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []order.Order
	for _, o := range s.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	return out
}

// ---- links ----

func (s *Storage) CreateLink(ctx context.Context, l *link.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[l.ShortCode]; ok {
		return fmt.Errorf("link %s: %w", l.ShortCode, apperr.ErrConflict)
	}
	s.nextLinkID++
	l.ID = s.nextLinkID
	cp := *l
	s.links[l.ShortCode] = &cp
	return nil
}

func (s *Storage) FindLinkByCode(ctx context.Context, code string) (*link.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[code]
	if !ok {
		return nil, fmt.Errorf("link %s: %w", code, apperr.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (s *Storage) ListLinksByAccount(ctx context.Context, accountID int64) ([]link.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []link.Link
	for _, l := range s.links {
		if l.AccountID == accountID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Storage) IncrementClicks(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[code]
	if !ok {
		return fmt.Errorf("link %s: %w", code, apperr.ErrNotFound)
	}
	l.ClickCount++
	return nil
}
