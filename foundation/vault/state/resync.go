package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
	"github.com/ardanlabs/vaults/foundation/vault/token"
)

// Resync replaces the books of the vault with the balances observed on the
// token contract.
func (s *State) Resync(ctx context.Context, id asset.SymbolCode) (Receipt, error) {
	s.evHandler("state: Resync: started: %s", id)

	var rcpt Receipt
	err := s.storage.Atomic(ctx, func(tx ledger.Tx) error {
		l := ledger.New(tx, s.now)

		entry, err := l.QueryByDeposit(ctx, id)
		if err != nil {
			return fmt.Errorf("resync %s: %w", id, err)
		}

		if entry, err = s.refresh(ctx, l, entry); err != nil {
			return err
		}

		rcpt = Receipt{
			Kind:   KindResync,
			Amount: entry.Deposit.Quantity,
			Entry:  entry,
		}

		return nil
	})

	if err != nil {
		s.evHandler("state: Resync: ERROR: %s", err)
		return Receipt{}, err
	}

	s.evHandler("state: Resync: completed: deposit[%s] staked[%s]", rcpt.Entry.Deposit.Quantity, rcpt.Entry.Staked)
	s.publish(rcpt)

	return rcpt, nil
}

// refresh overwrites the deposit with the custodial balance. For the native
// asset the amounts locked in staking count toward the deposit.
func (s *State) refresh(ctx context.Context, l *ledger.Ledger, entry ledger.Entry) (ledger.Entry, error) {
	balance, err := s.tokens.GetBalance(ctx, entry.Deposit.Contract, entry.Account, entry.ID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("resync %s: balance: %w", entry.ID, err)
	}

	var staked int64
	if s.staking != nil && entry.Deposit.ExtendedSymbol() == s.nativeSymbol {
		if staked, err = token.TotalStaked(ctx, s.staking, entry.Account); err != nil {
			return ledger.Entry{}, fmt.Errorf("resync %s: staked: %w", entry.ID, err)
		}
	}

	return l.Overwrite(ctx, entry.ID, balance.Amount, staked)
}
