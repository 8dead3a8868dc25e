package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/vaults/foundation/validate"
	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/curve"
	"github.com/ardanlabs/vaults/foundation/vault/event"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
	"github.com/ardanlabs/vaults/foundation/vault/outbox"
)

// OnAssetReceived processes a token transfer notification. Deposits of an
// underlying asset mint shares for the sender, and shares sent back are
// redeemed for the underlying asset or burned.
func (s *State) OnAssetReceived(ctx context.Context, tr event.Transfer) (Receipt, error) {
	if err := validate.Check(tr); err != nil {
		return Receipt{}, fmt.Errorf("validate transfer: %w", err)
	}
	if !tr.Quantity.IsValid() || tr.Quantity.Amount <= 0 {
		return Receipt{}, fmt.Errorf("transfer of %s: %w", tr.Quantity, ErrInvalidQuantity)
	}

	if err := s.auth.Authenticate(ctx, tr); err != nil {
		s.evHandler("state: OnAssetReceived: ERROR: %s", err)
		return Receipt{}, err
	}

	s.evHandler("state: OnAssetReceived: started: %s", tr)

	// Only incoming transfers move the books.
	if tr.To != s.self {
		s.evHandler("state: OnAssetReceived: ignored: outgoing transfer")
		return ignored(tr), nil
	}

	var rcpt Receipt
	err := s.storage.Atomic(ctx, func(tx ledger.Tx) error {
		l := ledger.New(tx, s.now)
		code := tr.Quantity.Symbol.Code

		entry, err := l.QueryByDeposit(ctx, code)
		switch {
		case err == nil:
			if tr.From == entry.Account {
				rcpt = ignored(tr)
				return nil
			}
			rcpt, err = s.issue(ctx, l, entry, tr)
			return err

		case !errors.Is(err, ledger.ErrNotFound):
			return err
		}

		entry, err = l.QueryBySupply(ctx, code)
		switch {
		case err == nil:
			if tr.From == entry.Account {
				rcpt = ignored(tr)
				return nil
			}
			rcpt, err = s.redeem(ctx, l, entry, tr)
			return err

		case errors.Is(err, ledger.ErrNotFound):
			return fmt.Errorf("transfer of %s: %w", tr.Quantity, ErrUnknownAsset)
		}

		return err
	})

	if err != nil {
		s.evHandler("state: OnAssetReceived: ERROR: %s", err)
		return Receipt{}, err
	}

	if rcpt.Kind == KindIgnored {
		s.evHandler("state: OnAssetReceived: ignored: sender is the custodial account")
		return rcpt, nil
	}

	s.evHandler("state: OnAssetReceived: completed: kind[%s] amount[%s] batch[%s]", rcpt.Kind, rcpt.Amount, rcpt.BatchID)
	s.publish(rcpt)

	return rcpt, nil
}

// =============================================================================

// issue converts a deposit of the underlying asset into shares.
func (s *State) issue(ctx context.Context, l *ledger.Ledger, entry ledger.Entry, tr event.Transfer) (Receipt, error) {
	if tr.Contract != entry.Deposit.Contract {
		return Receipt{}, fmt.Errorf("deposit %s from %s: expected %s: %w", tr.Quantity, tr.Contract, entry.Deposit.Contract, ErrContractMismatch)
	}
	if tr.Quantity.Symbol != entry.Deposit.Quantity.Symbol {
		return Receipt{}, fmt.Errorf("deposit %s: expected %s: %w", tr.Quantity, entry.Deposit.Quantity.Symbol, ErrPrecisionMismatch)
	}

	minted, err := curve.Issue(entry.Deposit.Quantity.Amount, entry.Supply.Quantity.Amount, tr.Quantity.Amount, s.ratio)
	if err != nil {
		return Receipt{}, fmt.Errorf("deposit %s: %w", tr.Quantity, err)
	}
	if minted <= 0 {
		return Receipt{}, fmt.Errorf("deposit %s mints no shares: %w", tr.Quantity, ErrInvalidQuantity)
	}

	if entry, err = l.ApplyIssuance(ctx, entry.ID, tr.Quantity.Amount, minted); err != nil {
		return Receipt{}, err
	}

	out := asset.New(minted, entry.Supply.Quantity.Symbol)
	memo := string(s.self)

	ob := outbox.New()
	if entry.Account != s.self {
		ob.Transfer(tr.Contract, s.self, entry.Account, tr.Quantity, memo)
	}
	ob.Issue(entry.Supply.Contract, s.self, out, IssueMemo)
	ob.Transfer(entry.Supply.Contract, s.self, tr.From, out, memo)

	return s.flush(ctx, ob, KindIssue, tr, out, entry)
}

// redeem converts shares back into the underlying asset. Shares sent with
// the burn memo are retired without releasing any of the deposit.
func (s *State) redeem(ctx context.Context, l *ledger.Ledger, entry ledger.Entry, tr event.Transfer) (Receipt, error) {
	if tr.Contract != entry.Supply.Contract {
		return Receipt{}, fmt.Errorf("shares %s from %s: expected %s: %w", tr.Quantity, tr.Contract, entry.Supply.Contract, ErrContractMismatch)
	}
	if tr.Quantity.Symbol != entry.Supply.Quantity.Symbol {
		return Receipt{}, fmt.Errorf("shares %s: expected %s: %w", tr.Quantity, entry.Supply.Quantity.Symbol, ErrPrecisionMismatch)
	}

	ob := outbox.New()

	if tr.Memo == BurnMemo {
		entry, err := l.ApplyBurn(ctx, entry.ID, tr.Quantity.Amount)
		if err != nil {
			return Receipt{}, err
		}

		ob.Retire(entry.Supply.Contract, s.self, tr.Quantity, RetireMemo)
		return s.flush(ctx, ob, KindBurn, tr, tr.Quantity, entry)
	}

	redeemed, err := curve.Redeem(entry.Deposit.Quantity.Amount, entry.Supply.Quantity.Amount, tr.Quantity.Amount)
	if err != nil {
		return Receipt{}, fmt.Errorf("shares %s: %w", tr.Quantity, err)
	}
	if redeemed <= 0 {
		return Receipt{}, fmt.Errorf("shares %s redeem nothing: %w", tr.Quantity, ErrInvalidQuantity)
	}

	if entry, err = l.ApplyRedemption(ctx, entry.ID, redeemed, tr.Quantity.Amount); err != nil {
		return Receipt{}, err
	}

	out := asset.New(redeemed, entry.Deposit.Quantity.Symbol)
	memo := string(s.self)

	if entry.Account != s.self {
		ob.Transfer(entry.Deposit.Contract, entry.Account, s.self, out, memo)
	}
	ob.Transfer(entry.Deposit.Contract, s.self, tr.From, out, memo)
	ob.Retire(entry.Supply.Contract, s.self, tr.Quantity, RetireMemo)

	return s.flush(ctx, ob, KindRedeem, tr, out, entry)
}

// flush dispatches the instructions while the unit is still open so a
// failure rolls the books back.
func (s *State) flush(ctx context.Context, ob *outbox.Outbox, kind Kind, tr event.Transfer, amount asset.Asset, entry ledger.Entry) (Receipt, error) {
	batch, err := ob.Flush(ctx, s.dispatcher)
	if err != nil {
		return Receipt{}, err
	}

	rcpt := Receipt{
		BatchID:      batch.ID,
		Kind:         kind,
		Transfer:     &tr,
		Amount:       amount,
		Entry:        entry,
		Instructions: batch.Instructions,
	}

	return rcpt, nil
}

// ignored constructs the receipt of a transfer that leaves the books alone.
func ignored(tr event.Transfer) Receipt {
	return Receipt{
		Kind:     KindIgnored,
		Transfer: &tr,
		Amount:   tr.Quantity,
	}
}
