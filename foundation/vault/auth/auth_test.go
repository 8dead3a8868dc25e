package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/vaults/foundation/nameservice"
	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/auth"
	"github.com/ardanlabs/vaults/foundation/vault/event"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestSignature(t *testing.T) {
	ctx := context.Background()

	alice, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}
	mallory, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %s", err)
	}
	ns.Register("alice", alice.PublicKey)
	ns.Register("mallory", mallory.PublicKey)

	a := auth.NewSignature(ns)
	tr := event.Transfer{
		From:     "alice",
		To:       "vaults.sx",
		Quantity: asset.New(10_000, asset.MustSymbol("EOS", 4)),
		Contract: "eosio.token",
	}

	t.Log("Given the need to attribute a transfer to its sender.")
	{
		t.Logf("\tTest 0:\tWhen the sender signed the transfer.")
		{
			signed, err := tr.Sign(alice)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign: %s", failed, err)
			}

			if err := a.Authenticate(ctx, signed); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the transfer: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the transfer.", success)
		}

		t.Logf("\tTest 1:\tWhen another account signed the transfer.")
		{
			signed, err := tr.Sign(mallory)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to sign: %s", failed, err)
			}

			if err := a.Authenticate(ctx, signed); !errors.Is(err, auth.ErrUnauthenticated) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the transfer: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the transfer.", success)
		}

		t.Logf("\tTest 2:\tWhen the transfer was altered after signing.")
		{
			signed, err := tr.Sign(alice)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to sign: %s", failed, err)
			}
			signed.Quantity.Amount *= 100

			if err := a.Authenticate(ctx, signed); !errors.Is(err, auth.ErrUnauthenticated) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the transfer: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the transfer.", success)
		}

		t.Logf("\tTest 3:\tWhen the transfer is not signed.")
		{
			if err := a.Authenticate(ctx, tr); !errors.Is(err, auth.ErrUnauthenticated) {
				t.Fatalf("\t%s\tTest 3:\tShould reject the transfer: %v", failed, err)
			}
			if err := (auth.Trusted{}).Authenticate(ctx, tr); err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be accepted by a trusted host: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould only be accepted by a trusted host.", success)
		}
	}
}
