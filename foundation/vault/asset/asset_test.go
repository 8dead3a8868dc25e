package asset_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestParseAsset(t *testing.T) {
	type table struct {
		name   string
		text   string
		amount int64
		symbol asset.Symbol
		fail   bool
	}

	tt := []table{
		{name: "eos", text: "1.0000 EOS", amount: 10000, symbol: asset.MustSymbol("EOS", 4)},
		{name: "fraction", text: "0.0001 EOS", amount: 1, symbol: asset.MustSymbol("EOS", 4)},
		{name: "negative", text: "-12.5000 SXEOS", amount: -125000, symbol: asset.MustSymbol("SXEOS", 4)},
		{name: "integer", text: "42 USD", amount: 42, symbol: asset.MustSymbol("USD", 0)},
		{name: "max", text: "4611686018427387903 MAX", amount: asset.MaxAmount, symbol: asset.MustSymbol("MAX", 0)},
		{name: "overflow", text: "4611686018427387904 MAX", fail: true},
		{name: "lowercase", text: "1.0000 eos", fail: true},
		{name: "nosymbol", text: "1.0000", fail: true},
		{name: "dangling", text: "1. EOS", fail: true},
		{name: "letters", text: "1.0a00 EOS", fail: true},
	}

	t.Log("Given the need to parse the text form of assets.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %q.", testID, tst.text)
			{
				f := func(t *testing.T) {
					a, err := asset.ParseAsset(tst.text)
					if tst.fail {
						if err == nil {
							t.Fatalf("\t%s\tTest %d:\tShould fail to parse the asset.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould fail to parse the asset.", success, testID)
						return
					}

					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to parse the asset: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to parse the asset.", success, testID)

					if a.Amount != tst.amount || a.Symbol != tst.symbol {
						t.Logf("\t%s\tTest %d:\tgot: %d %s", failed, testID, a.Amount, a.Symbol)
						t.Logf("\t%s\tTest %d:\texp: %d %s", failed, testID, tst.amount, tst.symbol)
						t.Fatalf("\t%s\tTest %d:\tShould get back the right amount and symbol.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the right amount and symbol.", success, testID)

					if a.String() != tst.text {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, a)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.text)
						t.Fatalf("\t%s\tTest %d:\tShould render back to the same text.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould render back to the same text.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func TestArithmetic(t *testing.T) {
	eos := asset.MustSymbol("EOS", 4)
	other := asset.MustSymbol("EOS", 3)

	t.Log("Given the need to add and subtract assets safely.")
	{
		t.Logf("\tTest 0:\tWhen adding and subtracting the same symbol.")
		{
			sum, err := asset.New(100, eos).Add(asset.New(50, eos))
			if err != nil || sum.Amount != 150 {
				t.Fatalf("\t%s\tTest 0:\tShould be able to add assets: %v %v", failed, sum, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to add assets.", success)

			diff, err := asset.New(100, eos).Sub(asset.New(150, eos))
			if err != nil || diff.Amount != -50 {
				t.Fatalf("\t%s\tTest 0:\tShould be able to subtract assets: %v %v", failed, diff, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to subtract assets.", success)
		}

		t.Logf("\tTest 1:\tWhen the precision differs.")
		{
			_, err := asset.New(100, eos).Add(asset.New(50, other))
			if !errors.Is(err, asset.ErrSymbolMismatch) {
				t.Fatalf("\t%s\tTest 1:\tShould reject mixing precisions: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject mixing precisions.", success)
		}

		t.Logf("\tTest 2:\tWhen the result leaves the valid range.")
		{
			_, err := asset.New(asset.MaxAmount, eos).Add(asset.New(1, eos))
			if !errors.Is(err, asset.ErrOverflow) {
				t.Fatalf("\t%s\tTest 2:\tShould detect the overflow: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould detect the overflow.", success)
		}
	}
}

func TestNamesAndSymbols(t *testing.T) {
	t.Log("Given the need to validate account names and symbols.")
	{
		t.Logf("\tTest 0:\tWhen handling account names.")
		{
			for _, good := range []string{"vaults.sx", "eosio.token", "alice", "a1b2c3d4e5"} {
				if _, err := asset.ToName(good); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould accept %q: %s", failed, good, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould accept valid names.", success)

			for _, bad := range []string{"", "Alice", "toolongaccount", "bad.", "six6"} {
				if _, err := asset.ToName(bad); err == nil {
					t.Fatalf("\t%s\tTest 0:\tShould reject %q.", failed, bad)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould reject invalid names.", success)
		}

		t.Logf("\tTest 1:\tWhen handling extended symbols.")
		{
			es, err := asset.ParseExtendedSymbol("4,EOS@eosio.token")
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould parse the extended symbol: %s", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould parse the extended symbol.", success)

			if es.Symbol != asset.MustSymbol("EOS", 4) || es.Contract != "eosio.token" {
				t.Fatalf("\t%s\tTest 1:\tShould get back the right parts: %s", failed, es)
			}
			t.Logf("\t%s\tTest 1:\tShould get back the right parts.", success)

			if es.String() != "4,EOS@eosio.token" {
				t.Fatalf("\t%s\tTest 1:\tShould render back to the same text: %s", failed, es)
			}
			t.Logf("\t%s\tTest 1:\tShould render back to the same text.", success)
		}

		t.Logf("\tTest 2:\tWhen encoding an extended asset as JSON.")
		{
			ea := asset.NewExtended(10000, asset.ExtendedSymbol{Symbol: asset.MustSymbol("EOS", 4), Contract: "eosio.token"})

			data, err := json.Marshal(ea)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to marshal: %s", failed, err)
			}

			exp := `{"quantity":"1.0000 EOS","contract":"eosio.token"}`
			if string(data) != exp {
				t.Logf("\t%s\tTest 2:\tgot: %s", failed, data)
				t.Logf("\t%s\tTest 2:\texp: %s", failed, exp)
				t.Fatalf("\t%s\tTest 2:\tShould use the text form of the quantity.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould use the text form of the quantity.", success)

			var got asset.ExtendedAsset
			if err := json.Unmarshal(data, &got); err != nil || got != ea {
				t.Fatalf("\t%s\tTest 2:\tShould decode back to the same value: %v %v", failed, got, err)
			}
			t.Logf("\t%s\tTest 2:\tShould decode back to the same value.", success)
		}
	}
}
