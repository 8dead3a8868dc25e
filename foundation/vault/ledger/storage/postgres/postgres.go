// Package postgres implements the ability to keep the vault table in a
// PostgreSQL database.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationsFS embeds the schema migrations.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrReadOnly is returned when a read only store is asked to persist.
var ErrReadOnly = errors.New("store is read only")

// PostgreSQL error codes.
const (
	pgErrUniqueViolation = "23505"
)

// Postgres represents the storage implementation for keeping the vault table
// in PostgreSQL. This implements the ledger.Storage interface.
type Postgres struct {
	pool     *pgxpool.Pool
	readOnly bool
	mu       sync.RWMutex
	docs     map[string]ledger.Document
}

// New connects to the database identified by the dsn.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	return connect(ctx, dsn, false)
}

// NewReadOnly connects to the database identified by the dsn for queries
// only. Every unit runs in a read only transaction.
func NewReadOnly(ctx context.Context, dsn string) (*Postgres, error) {
	return connect(ctx, dsn, true)
}

func connect(ctx context.Context, dsn string, readOnly bool) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := Postgres{
		pool:     pool,
		readOnly: readOnly,
		docs:     make(map[string]ledger.Document),
	}

	return &p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Migrate applies every embedded migration in lexical order. Migrations are
// written to be idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := p.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}

// Atomic runs fn inside a database transaction. Every row fn reads is locked
// until the transaction ends. A snapshot of the attached documents is
// written in the same transaction when fn changed the table.
func (p *Postgres) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if p.readOnly {
		opts.AccessMode = pgx.ReadOnly
	}

	pgTx, err := p.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer pgTx.Rollback(ctx)

	t := txn{tx: pgTx, readOnly: p.readOnly}
	if err := fn(&t); err != nil {
		return err
	}

	if !t.changed {
		if err := pgTx.Commit(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	}

	return p.commit(ctx, pgTx)
}

// Attach restores the document from the documents table and includes it in
// every later commit.
func (p *Postgres) Attach(ctx context.Context, name string, doc ledger.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var body []byte
	err := p.pool.QueryRow(ctx, `SELECT body FROM documents WHERE name = $1`, name).Scan(&body)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("query document %s: %w", name, err)
	default:
		if err := doc.Restore(body); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
	}

	p.docs[name] = doc
	return nil
}

// Flush commits a snapshot of the attached documents in its own
// transaction.
func (p *Postgres) Flush(ctx context.Context) error {
	if p.readOnly {
		return ErrReadOnly
	}

	pgTx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer pgTx.Rollback(ctx)

	return p.commit(ctx, pgTx)
}

// commit writes a snapshot of the attached documents into the transaction
// and commits it.
func (p *Postgres) commit(ctx context.Context, pgTx pgx.Tx) error {
	p.mu.RLock()
	snaps, err := ledger.Snapshot(p.docs)
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	const q = `
	INSERT INTO documents (name, body, last_updated) VALUES ($1, $2, now())
	ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, last_updated = EXCLUDED.last_updated`

	for name, data := range snaps {
		if _, err := pgTx.Exec(ctx, q, name, string(data)); err != nil {
			return fmt.Errorf("save document %s: %w", name, err)
		}
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// =============================================================================

const selectColumns = `
	SELECT id, deposit_amount, deposit_symbol, deposit_contract, staked_amount,
	       supply_amount, supply_symbol, supply_contract, account, last_updated
	FROM vaults`

// txn implements the ledger.Tx interface on top of a database transaction.
type txn struct {
	tx       pgx.Tx
	readOnly bool
	changed  bool
}

// Lock takes a transaction level advisory lock for every code in sorted
// order. A row lock cannot cover a code no row uses yet.
func (t *txn) Lock(ctx context.Context, codes ...asset.SymbolCode) error {
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, string(code))
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	for _, key := range keys {
		if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('vaults:' || $1))`, key); err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
	}

	return nil
}

// QueryByID returns the entry for the specified underlying code.
func (t *txn) QueryByID(ctx context.Context, id asset.SymbolCode) (ledger.Entry, error) {
	row := t.tx.QueryRow(ctx, selectColumns+` WHERE id = $1`+t.forUpdate(), string(id))

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Entry{}, ledger.ErrNotFound
		}
		return ledger.Entry{}, fmt.Errorf("query vault %s: %w", id, err)
	}

	return entry, nil
}

// QueryBySupply returns every entry indexed by the specified supply code.
func (t *txn) QueryBySupply(ctx context.Context, code asset.SymbolCode) ([]ledger.Entry, error) {
	rows, err := t.tx.Query(ctx, selectColumns+` WHERE supply_code = $1 ORDER BY id`+t.forUpdate(), string(code))
	if err != nil {
		return nil, fmt.Errorf("query vault by supply %s: %w", code, err)
	}

	return scanEntries(rows)
}

// Insert adds a new entry.
func (t *txn) Insert(ctx context.Context, entry ledger.Entry) error {
	const q = `
	INSERT INTO vaults (
		id, deposit_amount, deposit_symbol, deposit_contract, staked_amount,
		supply_amount, supply_symbol, supply_code, supply_contract, account, last_updated
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := t.tx.Exec(ctx, q,
		string(entry.ID),
		entry.Deposit.Quantity.Amount,
		entry.Deposit.Quantity.Symbol.String(),
		string(entry.Deposit.Contract),
		entry.Staked.Amount,
		entry.Supply.Quantity.Amount,
		entry.Supply.Quantity.Symbol.String(),
		string(entry.SupplyCode()),
		string(entry.Supply.Contract),
		string(entry.Account),
		entry.LastUpdated,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return ledger.ErrDuplicateVault
		}
		return fmt.Errorf("insert vault %s: %w", entry.ID, err)
	}

	t.changed = true
	return nil
}

// Update replaces an existing entry.
func (t *txn) Update(ctx context.Context, entry ledger.Entry) error {
	const q = `
	UPDATE vaults SET
		deposit_amount = $2, deposit_symbol = $3, deposit_contract = $4, staked_amount = $5,
		supply_amount = $6, supply_symbol = $7, supply_code = $8, supply_contract = $9,
		account = $10, last_updated = $11
	WHERE id = $1`

	tag, err := t.tx.Exec(ctx, q,
		string(entry.ID),
		entry.Deposit.Quantity.Amount,
		entry.Deposit.Quantity.Symbol.String(),
		string(entry.Deposit.Contract),
		entry.Staked.Amount,
		entry.Supply.Quantity.Amount,
		entry.Supply.Quantity.Symbol.String(),
		string(entry.SupplyCode()),
		string(entry.Supply.Contract),
		string(entry.Account),
		entry.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("update vault %s: %w", entry.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}

	t.changed = true
	return nil
}

// List returns all the entries ordered by id.
func (t *txn) List(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := t.tx.Query(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}

	return scanEntries(rows)
}

// forUpdate returns the row locking clause. A read only transaction may not
// lock rows.
func (t *txn) forUpdate() string {
	if t.readOnly {
		return ""
	}
	return ` FOR UPDATE`
}

// =============================================================================

func scanEntries(rows pgx.Rows) ([]ledger.Entry, error) {
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}

	return entries, nil
}

func scanEntry(row pgx.Row) (ledger.Entry, error) {
	var (
		entry           ledger.Entry
		id              string
		depositAmount   int64
		depositSymbol   string
		depositContract string
		stakedAmount    int64
		supplyAmount    int64
		supplySymbol    string
		supplyContract  string
		account         string
	)

	err := row.Scan(
		&id,
		&depositAmount,
		&depositSymbol,
		&depositContract,
		&stakedAmount,
		&supplyAmount,
		&supplySymbol,
		&supplyContract,
		&account,
		&entry.LastUpdated,
	)
	if err != nil {
		return ledger.Entry{}, err
	}

	depSym, err := asset.ParseSymbol(depositSymbol)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("deposit symbol: %w", err)
	}

	supSym, err := asset.ParseSymbol(supplySymbol)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("supply symbol: %w", err)
	}

	entry.ID = asset.SymbolCode(id)
	entry.Deposit = asset.ExtendedAsset{Quantity: asset.New(depositAmount, depSym), Contract: asset.Name(depositContract)}
	entry.Staked = asset.New(stakedAmount, depSym)
	entry.Supply = asset.ExtendedAsset{Quantity: asset.New(supplyAmount, supSym), Contract: asset.Name(supplyContract)}
	entry.Account = asset.Name(account)
	entry.LastUpdated = entry.LastUpdated.UTC()

	return entry, nil
}
