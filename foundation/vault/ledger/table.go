package ledger

import (
	"context"
	"sort"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
)

// Table is an in memory vault table with its primary index by underlying
// code and a non unique secondary index by supply code. It implements the
// Tx interface for the stores that keep the table in memory. A Table is not
// safe for concurrent use; the owning store serializes access.
type Table struct {
	entries  map[asset.SymbolCode]Entry
	bySupply map[asset.SymbolCode][]asset.SymbolCode
	changed  bool
}

// NewTable constructs a table loaded with the specified entries.
func NewTable(entries []Entry) *Table {
	tbl := Table{
		entries:  make(map[asset.SymbolCode]Entry),
		bySupply: make(map[asset.SymbolCode][]asset.SymbolCode),
	}

	for _, entry := range entries {
		tbl.put(entry)
	}

	return &tbl
}

// Clone makes a deep copy of the table.
func (tbl *Table) Clone() *Table {
	return NewTable(tbl.Entries())
}

// Changed reports whether an entry was inserted or updated since the table
// was constructed.
func (tbl *Table) Changed() bool {
	return tbl.changed
}

// Entries returns a copy of the entries ordered by id.
func (tbl *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(tbl.entries))
	for _, entry := range tbl.entries {
		entries = append(entries, entry)
	}
	sort.Sort(byID(entries))

	return entries
}

// Lock has nothing to do since the owning store serializes every unit.
func (tbl *Table) Lock(ctx context.Context, codes ...asset.SymbolCode) error {
	return nil
}

// QueryByID returns the entry for the specified underlying code.
func (tbl *Table) QueryByID(ctx context.Context, id asset.SymbolCode) (Entry, error) {
	entry, exists := tbl.entries[id]
	if !exists {
		return Entry{}, ErrNotFound
	}

	return entry, nil
}

// QueryBySupply returns every entry indexed by the specified supply code.
func (tbl *Table) QueryBySupply(ctx context.Context, code asset.SymbolCode) ([]Entry, error) {
	ids := tbl.bySupply[code]

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, tbl.entries[id])
	}
	sort.Sort(byID(entries))

	return entries, nil
}

// Insert adds a new entry to the table.
func (tbl *Table) Insert(ctx context.Context, entry Entry) error {
	if _, exists := tbl.entries[entry.ID]; exists {
		return ErrDuplicateVault
	}

	tbl.put(entry)
	tbl.changed = true
	return nil
}

// Update replaces an existing entry.
func (tbl *Table) Update(ctx context.Context, entry Entry) error {
	current, exists := tbl.entries[entry.ID]
	if !exists {
		return ErrNotFound
	}

	tbl.unindex(current)
	tbl.put(entry)
	tbl.changed = true
	return nil
}

// List returns all the entries ordered by id.
func (tbl *Table) List(ctx context.Context) ([]Entry, error) {
	return tbl.Entries(), nil
}

// =============================================================================

// put stores the entry and adds it to the supply index.
func (tbl *Table) put(entry Entry) {
	tbl.entries[entry.ID] = entry

	code := entry.SupplyCode()
	tbl.bySupply[code] = append(tbl.bySupply[code], entry.ID)
}

// unindex removes the entry from the supply index.
func (tbl *Table) unindex(entry Entry) {
	code := entry.SupplyCode()

	ids := tbl.bySupply[code]
	for i, id := range ids {
		if id == entry.ID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}

	if len(ids) == 0 {
		delete(tbl.bySupply, code)
		return
	}
	tbl.bySupply[code] = ids
}
