// Package inbox processes signed transfer events dropped as JSON files into a
// folder. Each file is one unit of work against the token sheet and the
// vault books.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ardanlabs/vaults/foundation/vault/event"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
	"github.com/ardanlabs/vaults/foundation/vault/state"
	"github.com/ardanlabs/vaults/foundation/vault/token/sheet"
	"github.com/google/uuid"
)

// Layout of the inbox folder.
const (
	Ext          = ".json"
	ErrExt       = ".err"
	ProcessedDir = "processed"
	RejectedDir  = "rejected"
)

// DocumentName names the inbox progress in the ledger storage.
const DocumentName = "inbox"

// ErrNotPersisted is returned when the outcome of an event could not be
// committed. The books on disk are still consistent but the processor must
// stop before moving any more files.
var ErrNotPersisted = errors.New("inbox progress not persisted")

// IsFatal reports whether the error must stop the processing of the inbox.
func IsFatal(err error) bool {
	return state.IsFatal(err) || errors.Is(err, ErrNotPersisted)
}

// Config represents the settings for a processor.
type Config struct {
	Dir       string
	State     *state.State
	Sheet     *sheet.Sheet
	Storage   ledger.Storage
	EvHandler state.EventHandler
}

// Result describes what happened to a single inbox file.
type Result struct {
	File    string
	Receipt state.Receipt
	Err     error
}

// Processor drains the inbox in file name order.
type Processor struct {
	dir       string
	state     *state.State
	sheet     *sheet.Sheet
	storage   ledger.Storage
	progress  *progress
	evHandler state.EventHandler
}

// New constructs a processor for use. The progress of the inbox is attached
// to the storage so it is committed with the books.
func New(ctx context.Context, cfg Config) (*Processor, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.State == nil || cfg.Sheet == nil || cfg.Storage == nil {
		return nil, errors.New("inbox: state, sheet and storage are required")
	}

	p := Processor{
		dir:       cfg.Dir,
		state:     cfg.State,
		sheet:     cfg.Sheet,
		storage:   cfg.Storage,
		progress:  &progress{Applied: make(map[string]string)},
		evHandler: ev,
	}

	if err := cfg.Storage.Attach(ctx, DocumentName, p.progress); err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}

	return &p, nil
}

// Run processes every file currently in the inbox. Rejected events are
// moved aside with a note and processing continues. A fatal error stops the
// run and is returned.
func (p *Processor) Run(ctx context.Context) ([]Result, error) {
	for _, dir := range []string{p.dir, p.path(ProcessedDir), p.path(RejectedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	files, err := p.pending()
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, applied := p.progress.outcome(file)
		if applied {
			p.evHandler("inbox: run: %s: already applied", file)
		} else {
			res = p.process(ctx, file)
			if state.IsFatal(res.Err) {
				results = append(results, res)
				return results, fmt.Errorf("inbox: %s: %w", file, res.Err)
			}
			p.progress.record(res)
		}
		results = append(results, res)

		// The token moves of ignored and rejected events and the outcome of
		// every event are committed before the file leaves the inbox.
		if err := p.storage.Flush(ctx); err != nil {
			return results, fmt.Errorf("inbox: %s: %w: %w", file, ErrNotPersisted, err)
		}

		if err := p.settle(res); err != nil {
			return results, err
		}
		p.progress.forget(file)
	}

	return results, nil
}

// =============================================================================

// pending returns the inbox files in name order.
func (p *Processor) pending() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != Ext {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	return files, nil
}

// process performs the token move of the transfer and notifies the vaults
// as one unit. Either both happen or neither does.
func (p *Processor) process(ctx context.Context, file string) Result {
	res := Result{File: file}

	content, err := os.ReadFile(filepath.Join(p.dir, file))
	if err != nil {
		res.Err = err
		return res
	}

	var tr event.Transfer
	if err := json.Unmarshal(content, &tr); err != nil {
		res.Err = fmt.Errorf("decode transfer: %w", err)
		return res
	}

	p.evHandler("inbox: process: %s: %s", file, tr)

	res.Err = p.sheet.Atomic(func() error {
		if err := p.sheet.Transfer(tr.Contract, tr.From, tr.To, tr.Quantity); err != nil {
			return fmt.Errorf("token transfer: %w", err)
		}

		// Marked as applied so a committing unit carries the mark.
		p.progress.record(Result{File: file})

		var err error
		if res.Receipt, err = p.state.OnAssetReceived(ctx, tr); err != nil {
			p.progress.forget(file)
			return err
		}

		return nil
	})

	return res
}

// settle moves a processed file out of the inbox. Rejected files get a
// note next to them with the reason.
func (p *Processor) settle(res Result) error {
	src := filepath.Join(p.dir, res.File)

	if res.Err == nil {
		p.evHandler("inbox: settle: %s: %s", res.File, res.Receipt.Kind)
		return os.Rename(src, filepath.Join(p.path(ProcessedDir), res.File))
	}

	p.evHandler("inbox: settle: %s: REJECTED: %s", res.File, res.Err)

	note := filepath.Join(p.path(RejectedDir), strings.TrimSuffix(res.File, Ext)+ErrExt)
	if err := os.WriteFile(note, []byte(res.Err.Error()+"\n"), 0644); err != nil {
		return err
	}

	return os.Rename(src, filepath.Join(p.path(RejectedDir), res.File))
}

func (p *Processor) path(dir string) string {
	return filepath.Join(p.dir, dir)
}

// =============================================================================

// progress records the outcome of events that were applied but not yet
// moved out of the inbox. It implements the ledger.Document interface.
type progress struct {
	mu      sync.Mutex
	Applied map[string]string `json:"applied"`
}

func (pr *progress) record(res Result) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	var reason string
	if res.Err != nil {
		reason = res.Err.Error()
	}
	pr.Applied[res.File] = reason
}

func (pr *progress) forget(file string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	delete(pr.Applied, file)
}

// outcome returns the recorded result for the file, if the file was
// applied.
func (pr *progress) outcome(file string) (Result, bool) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	reason, exists := pr.Applied[file]
	if !exists {
		return Result{}, false
	}

	res := Result{File: file}
	if reason != "" {
		res.Err = errors.New(reason)
	}

	return res, true
}

// Snapshot implements the ledger.Document interface.
func (pr *progress) Snapshot() ([]byte, error) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	return json.Marshal(pr)
}

// Restore implements the ledger.Document interface.
func (pr *progress) Restore(data []byte) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	var doc struct {
		Applied map[string]string `json:"applied"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	applied := doc.Applied
	if applied == nil {
		applied = make(map[string]string)
	}

	pr.Applied = applied
	return nil
}

// =============================================================================

// Submit writes the transfer into the inbox folder. The file name orders
// submissions by time.
func Submit(dir string, tr event.Transfer) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%020d-%s%s", time.Now().UnixNano(), uuid.NewString(), Ext)

	// Written under another extension first so a running processor never
	// reads a partial file.
	tmp := filepath.Join(dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", err
	}

	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		return "", err
	}

	return name, nil
}
