// Package ledger maintains the authoritative books of every vault: the
// deposit of the underlying asset, the staked portion of that deposit and
// the circulating supply of the share token.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
)

// Set of errors returned by the ledger.
var (
	ErrNotFound             = errors.New("vault not found")
	ErrDuplicateVault       = errors.New("vault already exists")
	ErrIndexConflict        = errors.New("vault index conflict")
	ErrStakedExceedsDeposit = errors.New("staked amount exceeds deposit")
	ErrSupplyUnderflow      = errors.New("supply underflow")
)

// StakedError is returned when a redemption would leave less deposit than
// is staked. Max is the deposit the vault held when the check failed.
type StakedError struct {
	Max asset.Asset
}

// Error implements the error interface.
func (se *StakedError) Error() string {
	return fmt.Sprintf("maximum withdraw is %s, please wait for deposit balance to equal or exceed staked amount", se.Max)
}

// Unwrap allows errors.Is to match ErrStakedExceedsDeposit.
func (se *StakedError) Unwrap() error {
	return ErrStakedExceedsDeposit
}

// =============================================================================

// Tx represents the behavior required from a storage transaction. Every
// read and write performed through a Tx is part of a single all or nothing
// unit of work.
type Tx interface {

	// Lock serializes units that use any of the specified codes until the
	// unit ends, whether or not a row exists for them yet.
	Lock(ctx context.Context, codes ...asset.SymbolCode) error
	QueryByID(ctx context.Context, id asset.SymbolCode) (Entry, error)
	QueryBySupply(ctx context.Context, code asset.SymbolCode) ([]Entry, error)
	Insert(ctx context.Context, entry Entry) error
	Update(ctx context.Context, entry Entry) error
	List(ctx context.Context) ([]Entry, error)
}

// Document is host state that is persisted together with the vault table,
// such as the token sheet. Snapshot must return a JSON document.
type Document interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// Storage interface represents the behavior required to be implemented by any
// package providing support for persisting the vault table.
type Storage interface {

	// Atomic executes fn as a single unit. When fn returns an error nothing
	// fn wrote is kept. Rows read inside fn may not be changed by any other
	// unit until Atomic returns. A unit that commits also commits a snapshot
	// of every attached document.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	// Attach restores the document from its last committed snapshot, if
	// any, and includes it in every later commit.
	Attach(ctx context.Context, name string, doc Document) error

	// Flush commits a snapshot of the attached documents on its own.
	Flush(ctx context.Context) error

	Close() error
}

// Snapshot collects a snapshot of every document. Any failure fails the
// whole set.
func Snapshot(docs map[string]Document) (map[string][]byte, error) {
	snaps := make(map[string][]byte, len(docs))
	for name, doc := range docs {
		data, err := doc.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", name, err)
		}
		snaps[name] = data
	}

	return snaps, nil
}

// =============================================================================

// Ledger applies the vault accounting rules on top of a storage transaction.
type Ledger struct {
	tx  Tx
	now func() time.Time
}

// New constructs a ledger bound to the specified transaction.
func New(tx Tx, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}

	return &Ledger{
		tx:  tx,
		now: now,
	}
}

// Create adds a new vault entry. The entry may not collide with an existing
// entry in either index, and a supply code may not shadow an underlying code.
func (l *Ledger) Create(ctx context.Context, entry Entry) (Entry, error) {
	if err := l.tx.Lock(ctx, entry.ID, entry.SupplyCode()); err != nil {
		return Entry{}, fmt.Errorf("create %s: %w", entry.ID, err)
	}

	if _, err := l.tx.QueryByID(ctx, entry.ID); err == nil {
		return Entry{}, fmt.Errorf("create %s: %w", entry.ID, ErrDuplicateVault)
	} else if !errors.Is(err, ErrNotFound) {
		return Entry{}, fmt.Errorf("create %s: %w", entry.ID, err)
	}

	supplyCode := entry.SupplyCode()
	if supplyCode == entry.ID {
		return Entry{}, fmt.Errorf("create %s: supply code equals deposit code: %w", entry.ID, ErrIndexConflict)
	}

	if entries, err := l.tx.QueryBySupply(ctx, supplyCode); err != nil {
		return Entry{}, fmt.Errorf("create %s: %w", entry.ID, err)
	} else if len(entries) > 0 {
		return Entry{}, fmt.Errorf("create %s: supply %s used by %s: %w", entry.ID, supplyCode, entries[0].ID, ErrIndexConflict)
	}

	if _, err := l.tx.QueryByID(ctx, supplyCode); err == nil {
		return Entry{}, fmt.Errorf("create %s: supply %s is a deposit code: %w", entry.ID, supplyCode, ErrIndexConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Entry{}, fmt.Errorf("create %s: %w", entry.ID, err)
	}

	if entries, err := l.tx.QueryBySupply(ctx, entry.ID); err != nil {
		return Entry{}, fmt.Errorf("create %s: %w", entry.ID, err)
	} else if len(entries) > 0 {
		return Entry{}, fmt.Errorf("create %s: deposit code is the supply of %s: %w", entry.ID, entries[0].ID, ErrIndexConflict)
	}

	entry.LastUpdated = l.now().UTC()
	if err := l.tx.Insert(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("create %s: %w", entry.ID, err)
	}

	return entry, nil
}

// QueryByDeposit returns the entry for the specified underlying code.
func (l *Ledger) QueryByDeposit(ctx context.Context, id asset.SymbolCode) (Entry, error) {
	return l.tx.QueryByID(ctx, id)
}

// QueryBySupply returns the entry whose share token uses the specified code.
// Finding more than one entry means the index invariant is broken.
func (l *Ledger) QueryBySupply(ctx context.Context, code asset.SymbolCode) (Entry, error) {
	entries, err := l.tx.QueryBySupply(ctx, code)
	if err != nil {
		return Entry{}, err
	}

	switch len(entries) {
	case 0:
		return Entry{}, ErrNotFound
	case 1:
		return entries[0], nil
	default:
		return Entry{}, fmt.Errorf("supply %s matches %d vaults: %w", code, len(entries), ErrIndexConflict)
	}
}

// List returns all the entries.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	return l.tx.List(ctx)
}

// ApplyIssuance adds the deposited amount and the minted supply to the entry.
func (l *Ledger) ApplyIssuance(ctx context.Context, id asset.SymbolCode, deposit int64, supply int64) (Entry, error) {
	entry, err := l.tx.QueryByID(ctx, id)
	if err != nil {
		return Entry{}, fmt.Errorf("issuance %s: %w", id, err)
	}

	if entry.Deposit.Quantity, err = entry.Deposit.Quantity.Add(asset.New(deposit, entry.Deposit.Quantity.Symbol)); err != nil {
		return Entry{}, fmt.Errorf("issuance %s: deposit: %w", id, err)
	}

	if entry.Supply.Quantity, err = entry.Supply.Quantity.Add(asset.New(supply, entry.Supply.Quantity.Symbol)); err != nil {
		return Entry{}, fmt.Errorf("issuance %s: supply: %w", id, err)
	}

	return l.update(ctx, entry)
}

// ApplyRedemption removes the redeemed amount and the retired supply from the
// entry. The deposit left behind must still cover the staked amount.
func (l *Ledger) ApplyRedemption(ctx context.Context, id asset.SymbolCode, deposit int64, supply int64) (Entry, error) {
	entry, err := l.tx.QueryByID(ctx, id)
	if err != nil {
		return Entry{}, fmt.Errorf("redemption %s: %w", id, err)
	}

	if entry, err = subSupply(entry, supply); err != nil {
		return Entry{}, fmt.Errorf("redemption %s: %w", id, err)
	}

	if entry.Deposit.Quantity, err = entry.Deposit.Quantity.Sub(asset.New(deposit, entry.Deposit.Quantity.Symbol)); err != nil {
		return Entry{}, fmt.Errorf("redemption %s: deposit: %w", id, err)
	}

	// Deposit (liquid balance) must be equal or above the staked amount.
	if entry.Deposit.Quantity.Amount < entry.Staked.Amount {
		return Entry{}, &StakedError{Max: entry.Deposit.Quantity}
	}

	return l.update(ctx, entry)
}

// ApplyBurn removes retired supply from the entry without releasing any of
// the deposit. The value of the remaining shares grows accordingly.
func (l *Ledger) ApplyBurn(ctx context.Context, id asset.SymbolCode, supply int64) (Entry, error) {
	entry, err := l.tx.QueryByID(ctx, id)
	if err != nil {
		return Entry{}, fmt.Errorf("burn %s: %w", id, err)
	}

	if entry, err = subSupply(entry, supply); err != nil {
		return Entry{}, fmt.Errorf("burn %s: %w", id, err)
	}

	return l.update(ctx, entry)
}

// Overwrite replaces the deposit and staked amounts with externally observed
// values. The liquid balance plus the staked amount make up the deposit.
func (l *Ledger) Overwrite(ctx context.Context, id asset.SymbolCode, balance int64, staked int64) (Entry, error) {
	entry, err := l.tx.QueryByID(ctx, id)
	if err != nil {
		return Entry{}, fmt.Errorf("overwrite %s: %w", id, err)
	}

	sym := entry.Deposit.Quantity.Symbol
	if entry.Deposit.Quantity, err = asset.New(balance, sym).Add(asset.New(staked, sym)); err != nil {
		return Entry{}, fmt.Errorf("overwrite %s: %w", id, err)
	}
	entry.Staked = asset.New(staked, sym)

	return l.update(ctx, entry)
}

// =============================================================================

// update stamps the entry and writes it back to storage.
func (l *Ledger) update(ctx context.Context, entry Entry) (Entry, error) {
	entry.LastUpdated = l.now().UTC()

	if err := l.tx.Update(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("update %s: %w", entry.ID, err)
	}

	return entry, nil
}

// subSupply removes the specified amount from the circulating supply.
func subSupply(entry Entry, supply int64) (Entry, error) {
	if supply > entry.Supply.Quantity.Amount {
		return Entry{}, fmt.Errorf("retiring %d of %s: %w", supply, entry.Supply.Quantity, ErrSupplyUnderflow)
	}

	entry.Supply.Quantity.Amount -= supply
	return entry, nil
}
