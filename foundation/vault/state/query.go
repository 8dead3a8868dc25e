package state

import (
	"context"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
)

// QueryVault returns the vault for the specified underlying code.
func (s *State) QueryVault(ctx context.Context, id asset.SymbolCode) (ledger.Entry, error) {
	var entry ledger.Entry
	err := s.storage.Atomic(ctx, func(tx ledger.Tx) error {
		var err error
		entry, err = ledger.New(tx, s.now).QueryByDeposit(ctx, id)
		return err
	})

	return entry, err
}

// QueryVaultBySupply returns the vault minting the specified share code.
func (s *State) QueryVaultBySupply(ctx context.Context, code asset.SymbolCode) (ledger.Entry, error) {
	var entry ledger.Entry
	err := s.storage.Atomic(ctx, func(tx ledger.Tx) error {
		var err error
		entry, err = ledger.New(tx, s.now).QueryBySupply(ctx, code)
		return err
	})

	return entry, err
}

// Vaults returns every vault ordered by underlying code.
func (s *State) Vaults(ctx context.Context) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	err := s.storage.Atomic(ctx, func(tx ledger.Tx) error {
		var err error
		entries, err = ledger.New(tx, s.now).List(ctx)
		return err
	})

	return entries, err
}
