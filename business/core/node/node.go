// Package node opens the data directory of a vault deployment and wires the
// ledger storage, the token sheet and the name service into the vault state.
package node

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/vaults/foundation/events"
	"github.com/ardanlabs/vaults/foundation/nameservice"
	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/auth"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
	"github.com/ardanlabs/vaults/foundation/vault/ledger/storage/disk"
	"github.com/ardanlabs/vaults/foundation/vault/ledger/storage/postgres"
	"github.com/ardanlabs/vaults/foundation/vault/state"
	"github.com/ardanlabs/vaults/foundation/vault/token/sheet"
	"github.com/gofrs/flock"
)

// Layout of the data directory.
const (
	AccountsDir = "accounts"
	InboxDir    = "inbox"
	LockFile    = ".lock"
)

// SheetDocument names the token sheet in the ledger storage.
const SheetDocument = "tokens"

// ErrInUse is returned when another process has the data directory open
// for writing.
var ErrInUse = errors.New("data directory is in use by another process")

// Config represents the settings needed to open a deployment.
type Config struct {
	DataDir       string
	PostgresDSN   string
	Self          string
	TokenContract string
	NativeSymbol  string
	Ratio         int64
	Trusted       bool
	ReadOnly      bool
	Receipts      *events.Events[state.Receipt]
	EvHandler     state.EventHandler
}

// Node holds everything a vault deployment needs at runtime.
type Node struct {
	State   *state.State
	Sheet   *sheet.Sheet
	NS      *nameservice.NameService
	Storage ledger.Storage

	dataDir  string
	readOnly bool
	lock     *flock.Flock
}

// Open loads the data directory and constructs the vault state. A writable
// node holds an exclusive lock on the data directory until it is closed. A
// read only node takes no lock and never persists anything.
func Open(ctx context.Context, cfg Config) (*Node, error) {
	self, err := asset.ToName(cfg.Self)
	if err != nil {
		return nil, fmt.Errorf("vault account: %w", err)
	}

	tokenContract, err := asset.ToName(cfg.TokenContract)
	if err != nil {
		return nil, fmt.Errorf("token contract: %w", err)
	}

	var native asset.ExtendedSymbol
	if cfg.NativeSymbol != "" {
		if native, err = asset.ParseExtendedSymbol(cfg.NativeSymbol); err != nil {
			return nil, fmt.Errorf("native symbol: %w", err)
		}
	}

	var lock *flock.Flock
	if !cfg.ReadOnly {
		if lock, err = lockDataDir(cfg.DataDir); err != nil {
			return nil, err
		}
	}

	n, err := open(ctx, cfg, self, tokenContract, native)
	if err != nil {
		if lock != nil {
			lock.Unlock()
		}
		return nil, err
	}
	n.lock = lock

	return n, nil
}

func open(ctx context.Context, cfg Config, self asset.Name, tokenContract asset.Name, native asset.ExtendedSymbol) (*Node, error) {
	accounts := filepath.Join(cfg.DataDir, AccountsDir)
	if err := os.MkdirAll(accounts, 0755); err != nil {
		return nil, err
	}

	ns, err := nameservice.New(accounts)
	if err != nil {
		return nil, fmt.Errorf("unable to load account name service: %w", err)
	}

	strg, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sht := sheet.New(nil, nil)
	if err := strg.Attach(ctx, SheetDocument, sht); err != nil {
		strg.Close()
		return nil, fmt.Errorf("unable to load token sheet: %w", err)
	}

	var authenticator auth.Authenticator = auth.NewSignature(ns)
	if cfg.Trusted {
		authenticator = auth.Trusted{}
	}

	st, err := state.New(state.Config{
		Self:          self,
		TokenContract: tokenContract,
		NativeSymbol:  native,
		Ratio:         cfg.Ratio,
		Storage:       strg,
		Tokens:        sht,
		Staking:       sht,
		Dispatcher:    sht,
		Auth:          authenticator,
		Receipts:      cfg.Receipts,
		EvHandler:     cfg.EvHandler,
	})
	if err != nil {
		strg.Close()
		return nil, err
	}

	n := Node{
		State:    st,
		Sheet:    sht,
		NS:       ns,
		Storage:  strg,
		dataDir:  cfg.DataDir,
		readOnly: cfg.ReadOnly,
	}

	return &n, nil
}

// Save commits the token sheet to the ledger storage.
func (n *Node) Save(ctx context.Context) error {
	return n.Storage.Flush(ctx)
}

// Close saves the token sheet, releases the ledger storage and unlocks the
// data directory.
func (n *Node) Close() error {
	var err error
	if !n.readOnly {
		err = n.Save(context.Background())
	}

	err = errors.Join(err, n.Storage.Close())

	if n.lock != nil {
		err = errors.Join(err, n.lock.Unlock())
	}

	return err
}

// InboxPath returns the folder transfer events are dropped into.
func (n *Node) InboxPath() string {
	return filepath.Join(n.dataDir, InboxDir)
}

// AccountsPath returns the folder holding the account keys.
func (n *Node) AccountsPath() string {
	return filepath.Join(n.dataDir, AccountsDir)
}

// =============================================================================

// lockDataDir takes the exclusive lock on the data directory without
// waiting for it.
func lockDataDir(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(dataDir, LockFile))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("unable to lock data directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", dataDir, ErrInUse)
	}

	return lock, nil
}

// openStorage selects postgres when a connection string is configured and
// the JSON document in the data directory otherwise.
func openStorage(ctx context.Context, cfg Config) (ledger.Storage, error) {
	if cfg.PostgresDSN == "" {
		newDisk := disk.New
		if cfg.ReadOnly {
			newDisk = disk.NewReadOnly
		}

		d, err := newDisk(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("unable to open vault table: %w", err)
		}
		return d, nil
	}

	if cfg.ReadOnly {
		pg, err := postgres.NewReadOnly(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to postgres: %w", err)
		}
		return pg, nil
	}

	pg, err := postgres.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to postgres: %w", err)
	}

	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("unable to migrate postgres: %w", err)
	}

	return pg, nil
}
