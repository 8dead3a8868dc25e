// Package disk implements the ability to persist the vault table as a JSON
// document on disk.
package disk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ardanlabs/vaults/foundation/vault/ledger"
)

// FileName is the name of the document holding the vault table.
const FileName = "vaults.json"

// ErrReadOnly is returned when a read only store is asked to persist.
var ErrReadOnly = errors.New("store is read only")

// document is the layout of the file. The vault table and every attached
// document are replaced together.
type document struct {
	Vaults    []ledger.Entry             `json:"vaults"`
	Documents map[string]json.RawMessage `json:"documents,omitempty"`
}

// Disk represents the serialization implementation for reading and storing
// the vault table in a single file on disk. This implements the
// ledger.Storage interface.
type Disk struct {
	dbPath   string
	readOnly bool
	mu       sync.Mutex
	table    *ledger.Table
	docs     map[string]ledger.Document
	saved    map[string]json.RawMessage
}

// New constructs a Disk value for use, loading any table already written
// to the specified directory. The caller must be the only writer of the
// directory.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return open(dbPath, false)
}

// NewReadOnly constructs a Disk value that reads the committed table but
// never writes it. Units run against a copy that is always discarded.
func NewReadOnly(dbPath string) (*Disk, error) {
	return open(dbPath, true)
}

func open(dbPath string, readOnly bool) (*Disk, error) {
	d := Disk{
		dbPath:   dbPath,
		readOnly: readOnly,
		docs:     make(map[string]ledger.Document),
	}

	doc, err := d.read()
	if err != nil {
		return nil, err
	}
	d.table = ledger.NewTable(doc.Vaults)
	d.saved = doc.Documents

	return &d, nil
}

// Close in this implementation has nothing to do since the file is written
// and closed on every commit.
func (d *Disk) Close() error {
	return nil
}

// Atomic runs fn against a copy of the table. When fn succeeds and changed
// the table, the copy and a snapshot of the attached documents are written
// to disk in one file and the copy becomes the committed table.
func (d *Disk) Atomic(ctx context.Context, fn func(tx ledger.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := d.table.Clone()
	if err := fn(tx); err != nil {
		return err
	}

	if d.readOnly || !tx.Changed() {
		return nil
	}

	if err := d.commit(tx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	d.table = tx
	return nil
}

// Attach restores the document from the file and includes it in every
// later commit.
func (d *Disk) Attach(ctx context.Context, name string, doc ledger.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if data, exists := d.saved[name]; exists {
		if err := doc.Restore(data); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
	}

	d.docs[name] = doc
	return nil
}

// Flush writes the committed table with a fresh snapshot of the attached
// documents.
func (d *Disk) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readOnly {
		return ErrReadOnly
	}

	if err := d.commit(d.table); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

// Path returns the location of the document.
func (d *Disk) Path() string {
	return filepath.Join(d.dbPath, FileName)
}

// =============================================================================

// commit snapshots the attached documents and writes them with the table.
func (d *Disk) commit(tbl *ledger.Table) error {
	snaps, err := ledger.Snapshot(d.docs)
	if err != nil {
		return err
	}

	docs := make(map[string]json.RawMessage, len(d.saved)+len(snaps))
	for name, data := range d.saved {
		docs[name] = data
	}
	for name, data := range snaps {
		docs[name] = json.RawMessage(data)
	}

	if err := d.write(document{Vaults: tbl.Entries(), Documents: docs}); err != nil {
		return err
	}

	d.saved = docs
	return nil
}

// read decodes the file. A missing file is an empty table. A file holding
// only an array is a table written before documents were attached.
func (d *Disk) read() (document, error) {
	content, err := os.ReadFile(d.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return document{}, nil
		}
		return document{}, err
	}

	var doc document
	if trimmed := bytes.TrimSpace(content); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &doc.Vaults)
	} else {
		err = json.Unmarshal(content, &doc)
	}
	if err != nil {
		return document{}, fmt.Errorf("decode %s: %w", d.Path(), err)
	}

	return doc, nil
}

// write replaces the file through a temporary file so a reader never
// observes a partial document.
func (d *Disk) write(doc document) error {

	// Marshal the document for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(d.dbPath, FileName+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, d.Path())
}
