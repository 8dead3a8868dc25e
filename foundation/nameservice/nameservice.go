// Package nameservice reads a folder of account keys and creates a name
// service lookup between signing addresses and account names.
package nameservice

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyExt is the extension of the private key files the service reads.
const KeyExt = ".ecdsa"

// NameService maintains a map of addresses for name lookup.
type NameService struct {
	mu       sync.RWMutex
	accounts map[string]asset.Name
	names    map[asset.Name]string
}

// New constructs a name service with the accounts found in the root folder.
// Every file named <account>.ecdsa contributes one account.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[string]asset.Name),
		names:    make(map[asset.Name]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != KeyExt {
			return nil
		}

		name, err := asset.ToName(strings.TrimSuffix(path.Base(fileName), KeyExt))
		if err != nil {
			return fmt.Errorf("key file %s: %w", fileName, err)
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		ns.add(name, privateKey.PublicKey)
		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Register adds an account with its public key to the service.
func (ns *NameService) Register(name asset.Name, publicKey ecdsa.PublicKey) {
	ns.add(name, publicKey)
}

// Lookup returns the account name for the specified address.
func (ns *NameService) Lookup(address string) (asset.Name, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	name, exists := ns.accounts[address]
	return name, exists
}

// Address returns the address registered for the specified account name.
func (ns *NameService) Address(name asset.Name) (string, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	address, exists := ns.names[name]
	return address, exists
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[string]asset.Name {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	cpy := make(map[string]asset.Name, len(ns.accounts))
	for address, name := range ns.accounts {
		cpy[address] = name
	}
	return cpy
}

func (ns *NameService) add(name asset.Name, publicKey ecdsa.PublicKey) {
	address := crypto.PubkeyToAddress(publicKey).String()

	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.accounts[address] = name
	ns.names[name] = address
}
