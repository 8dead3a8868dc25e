// Package token defines the contracts the vaults rely on to read the state of
// the token ledgers and the staking system.
package token

import (
	"context"
	"errors"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
)

// ErrNotFound is returned when a token has never been created.
var ErrNotFound = errors.New("token not found")

// Service represents the read side of a token transfer service.
type Service interface {

	// GetSupply returns the circulating supply of the token identified by the
	// code on the contract. ErrNotFound is returned when no such token exists.
	GetSupply(ctx context.Context, contract asset.Name, code asset.SymbolCode) (asset.Asset, error)

	// GetBalance returns the balance the account holds. An account without a
	// balance row holds zero.
	GetBalance(ctx context.Context, contract asset.Name, account asset.Name, code asset.SymbolCode) (asset.Asset, error)
}

// Staking represents the staking collaborator of the native asset.
type Staking interface {
	VoterStaked(ctx context.Context, account asset.Name) (int64, error)
	PendingRefund(ctx context.Context, account asset.Name) (int64, error)
	RexFund(ctx context.Context, account asset.Name) (int64, error)
}

// TotalStaked returns the sum of everything the account has locked away from
// its liquid balance.
func TotalStaked(ctx context.Context, staking Staking, account asset.Name) (int64, error) {
	staked, err := staking.VoterStaked(ctx, account)
	if err != nil {
		return 0, err
	}

	refund, err := staking.PendingRefund(ctx, account)
	if err != nil {
		return 0, err
	}

	rex, err := staking.RexFund(ctx, account)
	if err != nil {
		return 0, err
	}

	return staked + refund + rex, nil
}
