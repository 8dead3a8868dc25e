// Package event defines the inbound token transfer notification the vaults
// react to.
package event

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/signature"
)

// Transfer represents a token transfer observed on a token contract.
type Transfer struct {
	From      asset.Name  `json:"from" validate:"required,account"`
	To        asset.Name  `json:"to" validate:"required,account"`
	Quantity  asset.Asset `json:"quantity"`
	Contract  asset.Name  `json:"contract" validate:"required,account"`
	Memo      string      `json:"memo" validate:"max=256"`
	Signature string      `json:"signature,omitempty"`
}

// Payload is the part of a transfer covered by its signature.
type Payload struct {
	From     asset.Name  `json:"from"`
	To       asset.Name  `json:"to"`
	Quantity asset.Asset `json:"quantity"`
	Contract asset.Name  `json:"contract"`
	Memo     string      `json:"memo"`
}

// Payload returns the signed portion of the transfer.
func (tr Transfer) Payload() Payload {
	return Payload{
		From:     tr.From,
		To:       tr.To,
		Quantity: tr.Quantity,
		Contract: tr.Contract,
		Memo:     tr.Memo,
	}
}

// Sign returns a copy of the transfer signed with the private key.
func (tr Transfer) Sign(privateKey *ecdsa.PrivateKey) (Transfer, error) {
	sig, err := signature.Sign(tr.Payload(), privateKey)
	if err != nil {
		return Transfer{}, fmt.Errorf("sign transfer: %w", err)
	}

	tr.Signature = sig
	return tr, nil
}

// SignerAddress returns the address of the account that signed the transfer.
func (tr Transfer) SignerAddress() (string, error) {
	if tr.Signature == "" {
		return "", errors.New("transfer is not signed")
	}

	return signature.Recover(tr.Payload(), tr.Signature)
}

// String implements the fmt.Stringer interface.
func (tr Transfer) String() string {
	return fmt.Sprintf("%s->%s %s@%s %q", tr.From, tr.To, tr.Quantity, tr.Contract, tr.Memo)
}
