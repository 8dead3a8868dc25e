// Package memory implements the ability to keep the vault table in memory.
package memory

import (
	"context"
	"sync"

	"github.com/ardanlabs/vaults/foundation/vault/ledger"
)

// Memory represents the storage implementation for keeping the vault table
// in memory. This implements the ledger.Storage interface.
type Memory struct {
	mu    sync.Mutex
	table *ledger.Table
	docs  map[string]ledger.Document
	saved map[string][]byte
}

// New constructs a Memory value for use, optionally seeded with entries.
func New(entries ...ledger.Entry) *Memory {
	return &Memory{
		table: ledger.NewTable(entries),
		docs:  make(map[string]ledger.Document),
		saved: make(map[string][]byte),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Atomic runs fn against a copy of the table and swaps the copy in only
// when fn succeeds and changed the table. The lock is held for the whole
// unit.
func (m *Memory) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := m.table.Clone()
	if err := fn(tx); err != nil {
		return err
	}

	if !tx.Changed() {
		return nil
	}

	snaps, err := ledger.Snapshot(m.docs)
	if err != nil {
		return err
	}

	m.table = tx
	m.saved = snaps
	return nil
}

// Attach restores the document from the last committed snapshot held in
// memory and includes it in every later commit.
func (m *Memory) Attach(ctx context.Context, name string, doc ledger.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if data, exists := m.saved[name]; exists {
		if err := doc.Restore(data); err != nil {
			return err
		}
	}

	m.docs[name] = doc
	return nil
}

// Flush commits a snapshot of the attached documents.
func (m *Memory) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps, err := ledger.Snapshot(m.docs)
	if err != nil {
		return err
	}

	m.saved = snaps
	return nil
}

// Entries returns a copy of the committed entries ordered by id.
func (m *Memory) Entries() []ledger.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.table.Entries()
}
