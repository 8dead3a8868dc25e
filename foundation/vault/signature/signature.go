// Package signature signs vault events and recovers the address of the
// account that signed them.
package signature

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// vaultID is added to the recovery id so a signature is only ever accepted
// for a vault event.
const vaultID = 31

// Set of errors returned by the package.
var (
	ErrMalformed = errors.New("malformed signature")
	ErrInvalid   = errors.New("invalid signature")
)

// Sign signs the JSON form of the value with the private key. The signature
// is returned in hex using the [R|S|V] layout.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {
	digest, err := stamp(value)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += vaultID

	return hexutil.Encode(sig), nil
}

// Recover checks the signature and returns the address of the account that
// signed the value. Altered data recovers a different address.
func Recover(value any, sigHex string) (string, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: length %d, expected %d", ErrMalformed, len(sig), crypto.SignatureLength)
	}

	recID := sig[crypto.RecoveryIDOffset] - vaultID
	if sig[crypto.RecoveryIDOffset] < vaultID || recID > 1 {
		return "", fmt.Errorf("%w: recovery id", ErrInvalid)
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(recID, r, s, false) {
		return "", fmt.Errorf("%w: signature values", ErrInvalid)
	}

	digest, err := stamp(value)
	if err != nil {
		return "", err
	}

	raw := make([]byte, crypto.SignatureLength)
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] = recID

	publicKey, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// stamp hashes the JSON form of the value together with the vault stamp
// into the 32 byte digest that gets signed.
func stamp(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	stamp := []byte("\x19Vaults Signed Message:\n32")

	return crypto.Keccak256(stamp, crypto.Keccak256(data)), nil
}
