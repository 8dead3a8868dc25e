// Package auth decides whether an inbound transfer really was sent by the
// account it names.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/event"
)

// ErrUnauthenticated is returned when a transfer can not be attributed to its
// sender.
var ErrUnauthenticated = errors.New("transfer not authenticated")

// Authenticator represents the behavior required to attribute a transfer to
// its sender.
type Authenticator interface {
	Authenticate(ctx context.Context, tr event.Transfer) error
}

// =============================================================================

// Trusted accepts every transfer. It is used when the host already verified
// the notification.
type Trusted struct{}

// Authenticate implements the Authenticator interface.
func (Trusted) Authenticate(ctx context.Context, tr event.Transfer) error {
	return nil
}

// =============================================================================

// Resolver represents the behavior required to map a signing address to an
// account name.
type Resolver interface {
	Lookup(address string) (asset.Name, bool)
}

// Signature authenticates transfers by recovering the signing address and
// resolving it to the sending account.
type Signature struct {
	resolver Resolver
}

// NewSignature constructs a signature authenticator for use.
func NewSignature(resolver Resolver) *Signature {
	return &Signature{
		resolver: resolver,
	}
}

// Authenticate implements the Authenticator interface.
func (s *Signature) Authenticate(ctx context.Context, tr event.Transfer) error {
	address, err := tr.SignerAddress()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}

	name, exists := s.resolver.Lookup(address)
	if !exists {
		return fmt.Errorf("%w: unknown signer %s", ErrUnauthenticated, address)
	}

	if name != tr.From {
		return fmt.Errorf("%w: signed by %s, sent from %s", ErrUnauthenticated, name, tr.From)
	}

	return nil
}
