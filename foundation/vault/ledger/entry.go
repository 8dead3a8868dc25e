package ledger

import (
	"time"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
)

// Entry represents the books of a single vault. There is exactly one entry
// per underlying asset code.
type Entry struct {
	ID          asset.SymbolCode    `json:"id"`           // Code of the underlying asset, the primary key.
	Deposit     asset.ExtendedAsset `json:"deposit"`      // Underlying asset held by the vault.
	Staked      asset.Asset         `json:"staked"`       // Portion of the deposit locked elsewhere.
	Supply      asset.ExtendedAsset `json:"supply"`       // Share token currently in circulation.
	Account     asset.Name          `json:"account"`      // Custodial account holding the deposit.
	LastUpdated time.Time           `json:"last_updated"` // Time of the most recent mutation.
}

// NewEntry constructs a fresh entry with an empty deposit and stake and the
// specified share supply.
func NewEntry(deposit asset.ExtendedSymbol, supply asset.ExtendedAsset, account asset.Name, now time.Time) Entry {
	return Entry{
		ID:          deposit.Symbol.Code,
		Deposit:     asset.NewExtended(0, deposit),
		Staked:      asset.New(0, deposit.Symbol),
		Supply:      supply,
		Account:     account,
		LastUpdated: now.UTC(),
	}
}

// SupplyCode returns the code the entry is indexed by in the supply index.
func (e Entry) SupplyCode() asset.SymbolCode {
	return e.Supply.Quantity.Symbol.Code
}

// Liquid returns the part of the deposit that is available for withdrawal.
func (e Entry) Liquid() asset.Asset {
	return asset.New(e.Deposit.Quantity.Amount-e.Staked.Amount, e.Deposit.Quantity.Symbol)
}

// =============================================================================

// byID provides sorting support by the entry id value.
type byID []Entry

// Len returns the number of entries in the list.
func (b byID) Len() int {
	return len(b)
}

// Less helps to sort the list by entry id in ascending order.
func (b byID) Less(i, j int) bool {
	return b[i].ID < b[j].ID
}

// Swap moves entries in the order of the entry id value.
func (b byID) Swap(i, j int) {
	b[i], b[j] = b[j], b[i]
}
