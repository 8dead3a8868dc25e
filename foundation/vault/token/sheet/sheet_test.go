package sheet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/outbox"
	"github.com/ardanlabs/vaults/foundation/vault/token"
	"github.com/ardanlabs/vaults/foundation/vault/token/sheet"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func eos(amount int64) asset.Asset {
	return asset.New(amount, asset.MustSymbol("EOS", 4))
}

func seeded(t *testing.T) *sheet.Sheet {
	s := sheet.New(nil, nil)
	if err := s.Create("eosio.token", "eosio", eos(asset.MaxAmount)); err != nil {
		t.Fatalf("\t%s\tShould be able to create the token: %s", failed, err)
	}
	if err := s.Issue("eosio.token", "eosio", eos(10_000_000)); err != nil {
		t.Fatalf("\t%s\tShould be able to issue the token: %s", failed, err)
	}
	if err := s.Transfer("eosio.token", "eosio", "alice", eos(1_000_000)); err != nil {
		t.Fatalf("\t%s\tShould be able to fund alice: %s", failed, err)
	}
	return s
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to apply token instructions as a batch.")
	{
		t.Logf("\tTest 0:\tWhen every instruction is valid.")
		{
			s := seeded(t)

			ob := outbox.New()
			ob.Transfer("eosio.token", "alice", "bob", eos(250_000), "")
			ob.Transfer("eosio.token", "eosio", "eosio.ram", eos(1), "ram")
			if _, err := ob.Flush(ctx, s); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to dispatch: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to dispatch.", success)

			alice, _ := s.GetBalance(ctx, "eosio.token", "alice", "EOS")
			bob, _ := s.GetBalance(ctx, "eosio.token", "bob", "EOS")
			if alice.String() != "75.0000 EOS" || bob.String() != "25.0000 EOS" {
				t.Fatalf("\t%s\tTest 0:\tShould move the balances: %s %s", failed, alice, bob)
			}
			t.Logf("\t%s\tTest 0:\tShould move the balances.", success)
		}

		t.Logf("\tTest 1:\tWhen a later instruction fails.")
		{
			s := seeded(t)

			ob := outbox.New()
			ob.Transfer("eosio.token", "alice", "bob", eos(250_000), "")
			ob.Transfer("eosio.token", "bob", "carol", eos(500_000), "")
			_, err := ob.Flush(ctx, s)

			var de *outbox.DispatchError
			if !errors.As(err, &de) || !errors.Is(err, sheet.ErrInsufficientBalance) {
				t.Fatalf("\t%s\tTest 1:\tShould report the overdraft: %v", failed, err)
			}
			if de.Index != 1 || de.BatchID != ob.ID() {
				t.Fatalf("\t%s\tTest 1:\tShould point at the failing instruction: %+v", failed, de)
			}
			t.Logf("\t%s\tTest 1:\tShould point at the failing instruction.", success)

			alice, _ := s.GetBalance(ctx, "eosio.token", "alice", "EOS")
			if alice.Amount != 1_000_000 {
				t.Fatalf("\t%s\tTest 1:\tShould apply none of the batch: %s", failed, alice)
			}
			t.Logf("\t%s\tTest 1:\tShould apply none of the batch.", success)
		}

		t.Logf("\tTest 2:\tWhen creating, issuing and retiring a share token.")
		{
			s := seeded(t)
			sx := asset.MustSymbol("SXEOS", 4)

			ob := outbox.New()
			ob.Create("token.sx", "vaults.sx", asset.New(asset.MaxAmount, sx))
			ob.Issue("token.sx", "vaults.sx", asset.New(1_000_000, sx), "issue")
			ob.Retire("token.sx", "vaults.sx", asset.New(400_000, sx), "retire")
			if _, err := ob.Flush(ctx, s); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to dispatch: %s", failed, err)
			}

			supply, err := s.GetSupply(ctx, "token.sx", "SXEOS")
			if err != nil || supply.Amount != 600_000 {
				t.Fatalf("\t%s\tTest 2:\tShould track the supply: %s %v", failed, supply, err)
			}
			t.Logf("\t%s\tTest 2:\tShould track the supply.", success)

			ob = outbox.New()
			ob.Issue("token.sx", "alice", asset.New(1, sx), "issue")
			if _, err := ob.Flush(ctx, s); !errors.Is(err, sheet.ErrNotIssuer) {
				t.Fatalf("\t%s\tTest 2:\tShould only let the issuer issue: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould only let the issuer issue.", success)
		}

		t.Logf("\tTest 3:\tWhen reading an unknown token.")
		{
			s := seeded(t)

			if _, err := s.GetSupply(ctx, "token.sx", "SXUSDT"); !errors.Is(err, token.ErrNotFound) {
				t.Fatalf("\t%s\tTest 3:\tShould report the token is missing: %v", failed, err)
			}
			bal, err := s.GetBalance(ctx, "token.sx", "alice", "SXUSDT")
			if err != nil || bal.Amount != 0 {
				t.Fatalf("\t%s\tTest 3:\tShould report a zero balance: %s %v", failed, bal, err)
			}
			t.Logf("\t%s\tTest 3:\tShould report the token is missing and a zero balance.", success)
		}
	}
}

func TestAtomicAndSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Log("Given the need to keep the sheet consistent across units and restarts.")
	{
		t.Logf("\tTest 0:\tWhen a unit fails.")
		{
			s := seeded(t)

			err := s.Atomic(func() error {
				if err := s.Transfer("eosio.token", "alice", "vaults.sx", eos(100)); err != nil {
					return err
				}
				return errors.New("rejected")
			})
			if err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould return the unit error.", failed)
			}

			alice, _ := s.GetBalance(ctx, "eosio.token", "alice", "EOS")
			if alice.Amount != 1_000_000 {
				t.Fatalf("\t%s\tTest 0:\tShould restore the sheet: %s", failed, alice)
			}
			t.Logf("\t%s\tTest 0:\tShould restore the sheet.", success)
		}

		t.Logf("\tTest 1:\tWhen restoring a snapshot into a new sheet.")
		{
			s := seeded(t)
			s.SetStake("vaults.sx", sheet.Stake{VoterStaked: 10, PendingRefund: 20, RexFund: 30})

			data, err := s.Snapshot()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to snapshot: %s", failed, err)
			}

			loaded := sheet.New(nil, nil)
			if err := loaded.Restore(data); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to restore: %s", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to snapshot and restore.", success)

			alice, _ := loaded.GetBalance(ctx, "eosio.token", "alice", "EOS")
			if alice.String() != "100.0000 EOS" {
				t.Fatalf("\t%s\tTest 1:\tShould keep the balances: %s", failed, alice)
			}

			staked, err := token.TotalStaked(ctx, loaded, "vaults.sx")
			if err != nil || staked != 60 {
				t.Fatalf("\t%s\tTest 1:\tShould keep the stakes: %d %v", failed, staked, err)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the balances and stakes.", success)
		}

		t.Logf("\tTest 2:\tWhen restoring a snapshot over a sheet.")
		{
			s := seeded(t)
			data, err := s.Snapshot()
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to snapshot: %s", failed, err)
			}

			if err := s.Transfer("eosio.token", "alice", "vaults.sx", eos(100)); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to transfer: %s", failed, err)
			}

			if err := s.Restore(data); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to restore: %s", failed, err)
			}

			alice, _ := s.GetBalance(ctx, "eosio.token", "alice", "EOS")
			if alice.Amount != 1_000_000 {
				t.Fatalf("\t%s\tTest 2:\tShould return to the snapshot: %s", failed, alice)
			}
			t.Logf("\t%s\tTest 2:\tShould return to the snapshot.", success)
		}
	}
}
