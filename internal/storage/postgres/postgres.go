package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/antonminaichev/cashback-ledger/internal/apperr"
	"github.com/antonminaichev/cashback-ledger/internal/storage"
	"github.com/antonminaichev/cashback-ledger/internal/types/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"github.com/antonminaichev/cashback-ledger/internal/types/order"
	"github.com/antonminaichev/cashback-ledger/internal/types/user"
	"github.com/antonminaichev/cashback-ledger/internal/types/withdrawal"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStorage struct {
	db *sql.DB
}

var _ storage.Storage = (*PostgresStorage)(nil)

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &PostgresStorage{db: db}

	if err := s.db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            login TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'USER',
            status TEXT NOT NULL DEFAULT 'ACTIVE',
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'ACTIVE'`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
            id UUID PRIMARY KEY,
            account_id BIGINT NOT NULL REFERENCES users(id),
            amount BIGINT NOT NULL CHECK (amount <> 0),
            kind TEXT NOT NULL,
            reference_id TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_id)`,
		`CREATE OR REPLACE RULE ledger_entries_no_update AS ON UPDATE TO ledger_entries DO INSTEAD NOTHING`,
		`CREATE OR REPLACE RULE ledger_entries_no_delete AS ON DELETE TO ledger_entries DO INSTEAD NOTHING`,
		`CREATE TABLE IF NOT EXISTS withdrawals (
            id UUID PRIMARY KEY,
            account_id BIGINT NOT NULL REFERENCES users(id),
            amount BIGINT NOT NULL CHECK (amount > 0),
            bank_name TEXT NOT NULL,
            account_number TEXT NOT NULL,
            account_holder TEXT NOT NULL,
            status TEXT NOT NULL,
            admin_note TEXT NOT NULL DEFAULT '',
            processed_by BIGINT REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL,
            processed_at TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_account ON withdrawals(account_id)`,
		`CREATE TABLE IF NOT EXISTS tracking_links (
            id BIGSERIAL PRIMARY KEY,
            account_id BIGINT NOT NULL REFERENCES users(id),
            platform TEXT NOT NULL,
            original_url TEXT NOT NULL,
            affiliate_url TEXT NOT NULL,
            short_code TEXT UNIQUE NOT NULL,
            commission_rate NUMERIC(6,2) NOT NULL,
            creator_ip TEXT NOT NULL DEFAULT '',
            creator_user_agent TEXT NOT NULL DEFAULT '',
            click_count BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id BIGSERIAL PRIMARY KEY,
            account_id BIGINT NOT NULL REFERENCES users(id),
            external_id TEXT UNIQUE NOT NULL,
            link_code TEXT NOT NULL DEFAULT '',
            platform TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            gmv BIGINT NOT NULL DEFAULT 0,
            commission_rate NUMERIC(6,2) NOT NULL DEFAULT 0,
            commission_amount BIGINT NOT NULL DEFAULT 0,
            user_commission BIGINT NOT NULL DEFAULT 0,
            system_fee BIGINT NOT NULL DEFAULT 0,
            tax BIGINT NOT NULL DEFAULT 0,
            note TEXT NOT NULL DEFAULT '',
            uploaded_at TIMESTAMPTZ NOT NULL,
            processed_at TIMESTAMPTZ
        )`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ---- users ----

func (s *PostgresStorage) Create(ctx context.Context, u *user.User) error {
	if u.Status == "" {
		u.Status = user.StatusActive
	}
	q := `INSERT INTO users (login,password_hash,role,status,created_at) VALUES($1,$2,$3,$4,$5) RETURNING id`
	err := s.db.QueryRowContext(ctx, q, u.Login, u.PasswordHash, u.Role, u.Status, u.CreatedAt).Scan(&u.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", u.Login, apperr.ErrConflict)
	}
	return err
}

const userColumns = `id,login,password_hash,role,status,created_at`

func scanUser(r rowScanner) (*user.User, error) {
	u := &user.User{}
	if err := r.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Role, &u.Status, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStorage) FindByLogin(ctx context.Context, login string) (*user.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE login=$1`, login)
}

func (s *PostgresStorage) FindByID(ctx context.Context, id int64) (*user.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (s *PostgresStorage) findUser(ctx context.Context, q string, arg any) (*user.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %v: %w", arg, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStorage) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpdateUser(ctx context.Context, u *user.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET login=$2, password_hash=$3, status=$4 WHERE id=$1`,
		u.ID, u.Login, u.PasswordHash, u.Status)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %q: %w", u.Login, apperr.ErrConflict)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", u.ID, apperr.ErrNotFound)
	}
	return nil
}

// ---- account transactions ----

// InAccountTx locks the account's users row for the lifetime of the
// transaction, which serializes concurrent balance checks on that account.
func (s *PostgresStorage) InAccountTx(ctx context.Context, accountID int64, fn storage.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, accountID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %d: %w", accountID, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	q queryer
}

func (t *pgTx) SumByKind(ctx context.Context, accountID int64) (map[ledger.Kind]int64, error) {
	return sumByKind(ctx, t.q, accountID)
}

func (t *pgTx) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	q := `
        INSERT INTO ledger_entries (id, account_id, amount, kind, reference_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := t.q.ExecContext(ctx, q, e.ID, e.AccountID, e.Amount, e.Kind, e.ReferenceID, e.CreatedAt)
	return err
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error {
	q := `
        INSERT INTO withdrawals (id, account_id, amount, bank_name, account_number, account_holder, status, admin_note, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := t.q.ExecContext(ctx, q,
		w.ID, w.AccountID, w.Amount,
		w.BankInfo.BankName, w.BankInfo.AccountNumber, w.BankInfo.AccountHolder,
		w.Status, w.AdminNote, w.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("withdrawal %s: %w", w.ID, apperr.ErrConflict)
	}
	return err
}

func (t *pgTx) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	return getWithdrawal(ctx, t.q, withdrawalColumns+` WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *withdrawal.Withdrawal) error {
	q := `
        UPDATE withdrawals
        SET status=$1, admin_note=$2, processed_by=$3, processed_at=$4
        WHERE id=$5`
	_, err := t.q.ExecContext(ctx, q, w.Status, w.AdminNote, w.ProcessedBy, w.ProcessedAt, w.ID)
	return err
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, externalID string) (*order.Order, error) {
	return getOrder(ctx, t.q, orderColumns+` WHERE external_id = $1 FOR UPDATE`, externalID)
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *order.Order) error {
	q := `
        UPDATE orders
        SET status=$1, gmv=$2, commission_rate=$3, commission_amount=$4, user_commission=$5,
            system_fee=$6, tax=$7, note=$8, processed_at=$9, platform=$10
        WHERE external_id=$11`
	_, err := t.q.ExecContext(ctx, q,
		o.Status, o.GMV, o.CommissionRate, o.CommissionAmount, o.UserCommission,
		o.SystemFee, o.Tax, o.Note, o.ProcessedAt, o.Platform, o.ExternalID,
	)
	return err
}

// ---- ledger ----

func (s *PostgresStorage) accountExists(ctx context.Context, accountID int64) error {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1`, accountID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("account %d: %w", accountID, apperr.ErrNotFound)
	}
	return err
}

func (s *PostgresStorage) SumByKind(ctx context.Context, accountID int64) (map[ledger.Kind]int64, error) {
	if err := s.accountExists(ctx, accountID); err != nil {
		return nil, err
	}
	return sumByKind(ctx, s.db, accountID)
}

func sumByKind(ctx context.Context, q queryer, accountID int64) (map[ledger.Kind]int64, error) {
	const stmt = `
        SELECT kind, COALESCE(SUM(amount),0)
        FROM ledger_entries
        WHERE account_id=$1
        GROUP BY kind`
	rows, err := q.QueryContext(ctx, stmt, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[ledger.Kind]int64)
	for rows.Next() {
		var kind ledger.Kind
		var sum int64
		if err := rows.Scan(&kind, &sum); err != nil {
			return nil, err
		}
		sums[kind] = sum
	}
	return sums, rows.Err()
}

func (s *PostgresStorage) ListEntries(ctx context.Context, accountID int64) ([]ledger.Entry, error) {
	if err := s.accountExists(ctx, accountID); err != nil {
		return nil, err
	}
	const q = `
        SELECT id, account_id, amount, kind, reference_id, created_at
        FROM ledger_entries
        WHERE account_id=$1
        ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Kind, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- withdrawals ----

const withdrawalColumns = `
    SELECT id, account_id, amount, bank_name, account_number, account_holder,
           status, admin_note, processed_by, created_at, processed_at
    FROM withdrawals`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWithdrawal(r rowScanner) (*withdrawal.Withdrawal, error) {
	var w withdrawal.Withdrawal
	var processedBy sql.NullInt64
	var processedAt sql.NullTime
	if err := r.Scan(
		&w.ID, &w.AccountID, &w.Amount,
		&w.BankInfo.BankName, &w.BankInfo.AccountNumber, &w.BankInfo.AccountHolder,
		&w.Status, &w.AdminNote, &processedBy, &w.CreatedAt, &processedAt,
	); err != nil {
		return nil, err
	}
	if processedBy.Valid {
		w.ProcessedBy = &processedBy.Int64
	}
	if processedAt.Valid {
		t := processedAt.Time
		w.ProcessedAt = &t
	}
	return &w, nil
}

func getWithdrawal(ctx context.Context, q queryer, stmt string, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	w, err := scanWithdrawal(q.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("withdrawal %s: %w", id, apperr.ErrNotFound)
	}
	return w, err
}

func (s *PostgresStorage) GetWithdrawal(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	return getWithdrawal(ctx, s.db, withdrawalColumns+` WHERE id = $1`, id)
}

func (s *PostgresStorage) ListWithdrawalsByAccount(ctx context.Context, accountID int64) ([]withdrawal.Withdrawal, error) {
	return s.listWithdrawals(ctx, withdrawalColumns+` WHERE account_id=$1 ORDER BY created_at DESC`, accountID)
}

func (s *PostgresStorage) ListWithdrawals(ctx context.Context, status withdrawal.Status) ([]withdrawal.Withdrawal, error) {
	if status == "" {
		return s.listWithdrawals(ctx, withdrawalColumns+` ORDER BY created_at DESC`)
	}
	return s.listWithdrawals(ctx, withdrawalColumns+` WHERE status=$1 ORDER BY created_at DESC`, status)
}

func (s *PostgresStorage) listWithdrawals(ctx context.Context, q string, args ...any) ([]withdrawal.Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []withdrawal.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// ---- orders ----

const orderColumns = `
    SELECT id, account_id, external_id, link_code, platform, status, gmv, commission_rate,
           commission_amount, user_commission, system_fee, tax, note, uploaded_at, processed_at
    FROM orders`

func scanOrder(r rowScanner) (*order.Order, error) {
	var o order.Order
	var processedAt sql.NullTime
	if err := r.Scan(
		&o.ID, &o.AccountID, &o.ExternalID, &o.LinkCode, &o.Platform, &o.Status, &o.GMV, &o.CommissionRate,
		&o.CommissionAmount, &o.UserCommission, &o.SystemFee, &o.Tax, &o.Note, &o.UploadedAt, &processedAt,
	); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		t := processedAt.Time
		o.ProcessedAt = &t
	}
	return &o, nil
}

func getOrder(ctx context.Context, q queryer, stmt string, externalID string) (*order.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, stmt, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", externalID, apperr.ErrNotFound)
	}
	return o, err
}

func (s *PostgresStorage) CreateOrder(ctx context.Context, o *order.Order) error {
	q := `
        INSERT INTO orders (account_id, external_id, link_code, platform, status, uploaded_at)
        VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	err := s.db.QueryRowContext(ctx, q,
		o.AccountID, o.ExternalID, o.LinkCode, o.Platform, o.Status, o.UploadedAt,
	).Scan(&o.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("order %s: %w", o.ExternalID, apperr.ErrConflict)
	}
	return err
}

func (s *PostgresStorage) FindOrderByExternalID(ctx context.Context, externalID string) (*order.Order, error) {
	return getOrder(ctx, s.db, orderColumns+` WHERE external_id = $1`, externalID)
}

func (s *PostgresStorage) ListOrdersByAccount(ctx context.Context, accountID int64) ([]order.Order, error) {
	return s.listOrders(ctx, orderColumns+` WHERE account_id = $1 ORDER BY uploaded_at DESC`, accountID)
}

func (s *PostgresStorage) ListOrdersForPolling(ctx context.Context) ([]order.Order, error) {
	return s.listOrders(ctx, orderColumns+` WHERE status IN ('NEW','PENDING') ORDER BY uploaded_at`)
}

func (s *PostgresStorage) listOrders(ctx context.Context, q string, args ...any) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ---- links ----

const linkColumns = `
    SELECT id, account_id, platform, original_url, affiliate_url, short_code, commission_rate,
           creator_ip, creator_user_agent, click_count, created_at
    FROM tracking_links`

func scanLink(r rowScanner) (*link.Link, error) {
	var l link.Link
	if err := r.Scan(
		&l.ID, &l.AccountID, &l.Platform, &l.OriginalURL, &l.AffiliateURL, &l.ShortCode, &l.CommissionRate,
		&l.CreatorIP, &l.CreatorUserAgent, &l.ClickCount, &l.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStorage) CreateLink(ctx context.Context, l *link.Link) error {
	q := `
        INSERT INTO tracking_links (account_id, platform, original_url, affiliate_url, short_code,
                                    commission_rate, creator_ip, creator_user_agent, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`
	err := s.db.QueryRowContext(ctx, q,
		l.AccountID, l.Platform, l.OriginalURL, l.AffiliateURL, l.ShortCode,
		l.CommissionRate, l.CreatorIP, l.CreatorUserAgent, l.CreatedAt,
	).Scan(&l.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("link %s: %w", l.ShortCode, apperr.ErrConflict)
	}
	return err
}

func (s *PostgresStorage) FindLinkByCode(ctx context.Context, code string) (*link.Link, error) {
	l, err := scanLink(s.db.QueryRowContext(ctx, linkColumns+` WHERE short_code = $1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link %s: %w", code, apperr.ErrNotFound)
	}
	return l, err
}

func (s *PostgresStorage) ListLinksByAccount(ctx context.Context, accountID int64) ([]link.Link, error) {
	rows, err := s.db.QueryContext(ctx, linkColumns+` WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []link.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) IncrementClicks(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tracking_links SET click_count = click_count + 1 WHERE short_code = $1`, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("link %s: %w", code, apperr.ErrNotFound)
	}
	return nil
}
