package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/vaults/foundation/validate"
	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
	"github.com/ardanlabs/vaults/foundation/vault/outbox"
	"github.com/ardanlabs/vaults/foundation/vault/token"
)

// SetupRequest names the underlying asset a new vault accepts, the code of
// the share token it mints and the account that holds its deposits.
type SetupRequest struct {
	Deposit asset.ExtendedSymbol `json:"deposit"`
	Supply  asset.SymbolCode     `json:"supply" validate:"required,symcode"`
	Account asset.Name           `json:"account" validate:"required,account"`
}

// Setup registers a new vault for the underlying asset. The share token is
// created on the token contract when it does not exist yet.
func (s *State) Setup(ctx context.Context, req SetupRequest) (Receipt, error) {
	if err := validate.Check(req); err != nil {
		return Receipt{}, fmt.Errorf("validate setup: %w", err)
	}
	if !req.Deposit.Symbol.IsValid() || !req.Deposit.Contract.IsValid() {
		return Receipt{}, fmt.Errorf("validate setup: invalid deposit %s", req.Deposit)
	}

	s.evHandler("state: Setup: started: deposit[%s] supply[%s] account[%s]", req.Deposit, req.Supply, req.Account)

	var rcpt Receipt
	err := s.storage.Atomic(ctx, func(tx ledger.Tx) error {
		l := ledger.New(tx, s.now)

		if _, err := l.QueryByDeposit(ctx, req.Deposit.Symbol.Code); err == nil {
			return fmt.Errorf("setup %s: %w", req.Deposit.Symbol.Code, ledger.ErrDuplicateVault)
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		// The underlying asset must already circulate so the vault has a
		// reference precision.
		underlying, err := s.tokens.GetSupply(ctx, req.Deposit.Contract, req.Deposit.Symbol.Code)
		switch {
		case errors.Is(err, token.ErrNotFound):
			return fmt.Errorf("setup %s: %w", req.Deposit, ErrInsufficientSupplyForBootstrap)
		case err != nil:
			return fmt.Errorf("setup %s: supply: %w", req.Deposit, err)
		case underlying.Amount <= 0:
			return fmt.Errorf("setup %s: %w", req.Deposit, ErrInsufficientSupplyForBootstrap)
		case underlying.Symbol != req.Deposit.Symbol:
			return fmt.Errorf("setup %s: observed %s: %w", req.Deposit, underlying.Symbol, ErrPrecisionMismatch)
		}

		balance, err := s.tokens.GetBalance(ctx, req.Deposit.Contract, req.Account, req.Deposit.Symbol.Code)
		if err != nil {
			return fmt.Errorf("setup %s: balance: %w", req.Deposit, err)
		}
		if balance.Amount != 0 {
			return fmt.Errorf("setup %s: %s holds %s: %w", req.Deposit, req.Account, balance, ErrNonZeroInitialBalance)
		}

		ob := outbox.New()
		shareSymbol := asset.Symbol{Code: req.Supply, Precision: req.Deposit.Symbol.Precision}

		shares, err := s.tokens.GetSupply(ctx, s.tokenContract, req.Supply)
		switch {
		case errors.Is(err, token.ErrNotFound):
			shares = asset.New(0, shareSymbol)
			ob.Create(s.tokenContract, s.self, asset.New(asset.MaxAmount, shareSymbol))

		case err != nil:
			return fmt.Errorf("setup %s: share supply: %w", req.Deposit, err)

		case shares.Symbol != shareSymbol:
			return fmt.Errorf("setup %s: share token is %s: %w", req.Deposit, shares.Symbol, ErrPrecisionMismatch)

		default:
			s.evHandler("state: Setup: adopting share supply: %s", shares)
		}

		entry := ledger.NewEntry(req.Deposit, asset.ExtendedAsset{Quantity: shares, Contract: s.tokenContract}, req.Account, s.now())
		if _, err := l.Create(ctx, entry); err != nil {
			return err
		}

		entry, err = s.refresh(ctx, l, entry)
		if err != nil {
			return err
		}

		batch, err := ob.Flush(ctx, s.dispatcher)
		if err != nil {
			return err
		}

		rcpt = Receipt{
			BatchID:      batch.ID,
			Kind:         KindSetup,
			Amount:       entry.Supply.Quantity,
			Entry:        entry,
			Instructions: batch.Instructions,
		}

		return nil
	})

	if err != nil {
		s.evHandler("state: Setup: ERROR: %s", err)
		return Receipt{}, err
	}

	s.evHandler("state: Setup: completed: %s", rcpt.Entry.ID)
	s.publish(rcpt)

	return rcpt, nil
}
