package inbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardanlabs/vaults/business/core/inbox"
	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/event"
	"github.com/ardanlabs/vaults/foundation/vault/ledger"
	"github.com/ardanlabs/vaults/foundation/vault/ledger/storage/memory"
	"github.com/ardanlabs/vaults/foundation/vault/state"
	"github.com/ardanlabs/vaults/foundation/vault/token/sheet"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	self          = asset.Name("vaults.sx")
	tokenContract = asset.Name("token.sx")
	alice         = asset.Name("alice")
)

var (
	eos  = asset.ExtendedSymbol{Symbol: asset.MustSymbol("EOS", 4), Contract: "eosio.token"}
	usdt = asset.ExtendedSymbol{Symbol: asset.MustSymbol("USDT", 4), Contract: "tethertether"}
)

func TestRun(t *testing.T) {
	t.Log("Given the need to process transfer files from an inbox.")
	{
		t.Logf("\tTest 0:\tWhen the inbox holds good and bad events.")
		{
			ctx := context.Background()
			dir := t.TempDir()
			strg := memory.New()
			st, sht := newVaults(t, strg)

			writeTransfer(t, dir, "001.json", event.Transfer{From: alice, To: self, Quantity: asset.New(100_0000, eos.Symbol), Contract: eos.Contract})
			writeFile(t, dir, "002.json", "{not json")
			writeTransfer(t, dir, "003.json", event.Transfer{From: alice, To: self, Quantity: asset.New(10_0000, usdt.Symbol), Contract: usdt.Contract})
			writeFile(t, dir, "004.txt", "ignored")

			p, err := inbox.New(ctx, inbox.Config{
				Dir:       dir,
				State:     st,
				Sheet:     sht,
				Storage:   strg,
				EvHandler: func(v string, args ...any) { t.Logf(v, args...) },
			})
			check(t, err)

			results, err := p.Run(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to drain the inbox: %s", failed, err)
			}
			if len(results) != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould process every event file: %d", failed, len(results))
			}
			t.Logf("\t%s\tTest 0:\tShould process every event file.", success)

			if results[0].Err != nil || results[0].Receipt.Kind != state.KindIssue {
				t.Fatalf("\t%s\tTest 0:\tShould accept the deposit: %v", failed, results[0].Err)
			}
			if _, err := os.Stat(filepath.Join(dir, inbox.ProcessedDir, "001.json")); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould move the deposit to processed: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the deposit.", success)

			for _, name := range []string{"002", "003"} {
				note, err := os.ReadFile(filepath.Join(dir, inbox.RejectedDir, name+inbox.ErrExt))
				if err != nil || len(note) == 0 {
					t.Fatalf("\t%s\tTest 0:\tShould leave a note for %s: %v", failed, name, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould reject the bad events with a note.", success)

			bal, err := sht.GetBalance(ctx, usdt.Contract, alice, "USDT")
			if err != nil || bal.Amount != 1_000_0000 {
				t.Fatalf("\t%s\tTest 0:\tShould roll back the rejected token move: %s %v", failed, bal, err)
			}
			t.Logf("\t%s\tTest 0:\tShould roll back the rejected token move.", success)

			if _, err := os.Stat(filepath.Join(dir, "004.txt")); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould leave other files alone: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould leave other files alone.", success)
		}

		t.Logf("\tTest 1:\tWhen an event breaks the books.")
		{
			ctx := context.Background()
			dir := t.TempDir()
			strg := memory.New()
			st, sht := newVaults(t, strg)

			// Shares circulating on the token contract with nothing backing them.
			sxusd := asset.MustSymbol("SXUSD", 4)
			check(t, sht.Create(tokenContract, self, asset.New(asset.MaxAmount, sxusd)))
			check(t, sht.Issue(tokenContract, self, asset.New(1_0000, sxusd)))
			_, err := st.Setup(ctx, state.SetupRequest{Deposit: usdt, Supply: "SXUSD", Account: self})
			check(t, err)

			writeTransfer(t, dir, "001.json", event.Transfer{From: alice, To: self, Quantity: asset.New(10_0000, usdt.Symbol), Contract: usdt.Contract})
			writeTransfer(t, dir, "002.json", event.Transfer{From: alice, To: self, Quantity: asset.New(1_0000, eos.Symbol), Contract: eos.Contract})

			p, err := inbox.New(ctx, inbox.Config{Dir: dir, State: st, Sheet: sht, Storage: strg})
			check(t, err)

			results, err := p.Run(ctx)
			if !state.IsFatal(err) || !inbox.IsFatal(err) {
				t.Fatalf("\t%s\tTest 1:\tShould stop with a fatal error: %v", failed, err)
			}
			if len(results) != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould stop at the failing event: %d", failed, len(results))
			}
			if _, err := os.Stat(filepath.Join(dir, "002.json")); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould leave the next event in the inbox: %s", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould stop at the failing event.", success)
		}
	}
}

func TestRestart(t *testing.T) {
	t.Log("Given the need to keep the inbox and the books in step across restarts.")
	{
		t.Logf("\tTest 0:\tWhen the outcome of an event cannot be committed.")
		{
			ctx := context.Background()
			dir := t.TempDir()
			strg := &flaky{Memory: memory.New(), err: errors.New("disk full")}
			st, sht := newVaults(t, strg)

			writeTransfer(t, dir, "001.json", event.Transfer{From: alice, To: self, Quantity: asset.New(100_0000, eos.Symbol), Contract: eos.Contract})

			p, err := inbox.New(ctx, inbox.Config{Dir: dir, State: st, Sheet: sht, Storage: strg})
			check(t, err)

			_, err = p.Run(ctx)
			if !inbox.IsFatal(err) || !errors.Is(err, inbox.ErrNotPersisted) {
				t.Fatalf("\t%s\tTest 0:\tShould stop when the outcome is not committed: %v", failed, err)
			}
			if _, err := os.Stat(filepath.Join(dir, "001.json")); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould leave the event in the inbox: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould stop and leave the event in the inbox.", success)

			// Everything held in memory is lost. Only what the storage
			// committed survives.
			strg.err = nil
			restarted := sheet.New(nil, nil)
			check(t, strg.Attach(ctx, "tokens", restarted))
			st, err = state.New(state.Config{
				Self:          self,
				TokenContract: tokenContract,
				Storage:       strg,
				Tokens:        restarted,
				Dispatcher:    restarted,
			})
			check(t, err)

			p, err = inbox.New(ctx, inbox.Config{Dir: dir, State: st, Sheet: restarted, Storage: strg})
			check(t, err)

			results, err := p.Run(ctx)
			if err != nil || len(results) != 1 || results[0].Err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould settle the committed event: %+v %v", failed, results, err)
			}
			if _, err := os.Stat(filepath.Join(dir, inbox.ProcessedDir, "001.json")); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould move the event to processed: %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould settle the committed event after a restart.", success)

			entry, err := st.QueryVault(ctx, "EOS")
			if err != nil || entry.Deposit.Quantity.Amount != 100_0000 {
				t.Fatalf("\t%s\tTest 0:\tShould apply the deposit once: %s %v", failed, entry.Deposit, err)
			}

			bal, err := restarted.GetBalance(ctx, eos.Contract, self, "EOS")
			if err != nil || bal.Amount != entry.Deposit.Quantity.Amount {
				t.Fatalf("\t%s\tTest 0:\tShould keep the token sheet in step with the books: %s %v", failed, bal, err)
			}

			shares, err := restarted.GetBalance(ctx, tokenContract, alice, "SXEOS")
			if err != nil || shares.Amount != entry.Supply.Quantity.Amount {
				t.Fatalf("\t%s\tTest 0:\tShould keep the shares in step with the supply: %s %v", failed, shares, err)
			}
			t.Logf("\t%s\tTest 0:\tShould apply the deposit once and keep the sheet in step.", success)
		}

		t.Logf("\tTest 1:\tWhen an ignored event cannot be committed.")
		{
			ctx := context.Background()
			dir := t.TempDir()
			strg := &flaky{Memory: memory.New(), err: errors.New("disk full")}
			st, sht := newVaults(t, strg)

			// Outgoing transfers move tokens without touching the books.
			check(t, sht.Issue(eos.Contract, "eosio", asset.New(5_0000, eos.Symbol)))
			check(t, sht.Transfer(eos.Contract, "eosio", self, asset.New(5_0000, eos.Symbol)))
			check(t, strg.Memory.Flush(ctx))
			writeTransfer(t, dir, "001.json", event.Transfer{From: self, To: alice, Quantity: asset.New(1_0000, eos.Symbol), Contract: eos.Contract})

			p, err := inbox.New(ctx, inbox.Config{Dir: dir, State: st, Sheet: sht, Storage: strg})
			check(t, err)

			if _, err := p.Run(ctx); !errors.Is(err, inbox.ErrNotPersisted) {
				t.Fatalf("\t%s\tTest 1:\tShould stop when the token move is not committed: %v", failed, err)
			}

			strg.err = nil
			restarted := sheet.New(nil, nil)
			check(t, strg.Attach(ctx, "tokens", restarted))

			bal, err := restarted.GetBalance(ctx, eos.Contract, self, "EOS")
			if err != nil || bal.Amount != 5_0000 {
				t.Fatalf("\t%s\tTest 1:\tShould not keep the uncommitted token move: %s %v", failed, bal, err)
			}
			t.Logf("\t%s\tTest 1:\tShould not keep the uncommitted token move.", success)
		}
	}
}

func TestSubmit(t *testing.T) {
	t.Log("Given the need to drop events into an inbox.")
	{
		t.Logf("\tTest 0:\tWhen submitting a transfer.")
		{
			dir := filepath.Join(t.TempDir(), "inbox")
			tr := event.Transfer{From: alice, To: self, Quantity: asset.New(1_0000, eos.Symbol), Contract: eos.Contract, Memo: "hello"}

			name, err := inbox.Submit(dir, tr)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit: %s", failed, err)
			}
			if !strings.HasSuffix(name, inbox.Ext) {
				t.Fatalf("\t%s\tTest 0:\tShould name the file as an event: %s", failed, name)
			}

			content, err := os.ReadFile(filepath.Join(dir, name))
			check(t, err)

			var got event.Transfer
			check(t, json.Unmarshal(content, &got))
			if got != tr {
				t.Fatalf("\t%s\tTest 0:\tShould write the transfer as is: %s", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould write the transfer as is.", success)
		}
	}
}

// =============================================================================

func newVaults(t *testing.T, strg ledger.Storage) (*state.State, *sheet.Sheet) {
	t.Helper()

	sht := sheet.New(nil, nil)
	check(t, strg.Attach(context.Background(), "tokens", sht))

	check(t, sht.Create(eos.Contract, "eosio", asset.New(asset.MaxAmount, eos.Symbol)))
	check(t, sht.Issue(eos.Contract, "eosio", asset.New(1_000_000_0000, eos.Symbol)))
	check(t, sht.Transfer(eos.Contract, "eosio", alice, asset.New(1_000_0000, eos.Symbol)))
	check(t, sht.Create(usdt.Contract, "tether", asset.New(asset.MaxAmount, usdt.Symbol)))
	check(t, sht.Issue(usdt.Contract, "tether", asset.New(1_000_000_0000, usdt.Symbol)))
	check(t, sht.Transfer(usdt.Contract, "tether", alice, asset.New(1_000_0000, usdt.Symbol)))

	st, err := state.New(state.Config{
		Self:          self,
		TokenContract: tokenContract,
		Storage:       strg,
		Tokens:        sht,
		Dispatcher:    sht,
	})
	check(t, err)

	_, err = st.Setup(context.Background(), state.SetupRequest{Deposit: eos, Supply: "SXEOS", Account: self})
	check(t, err)

	return st, sht
}

// flaky fails to flush while err is set.
type flaky struct {
	*memory.Memory
	err error
}

func (f *flaky) Flush(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	return f.Memory.Flush(ctx)
}

func writeTransfer(t *testing.T, dir string, name string, tr event.Transfer) {
	t.Helper()

	data, err := json.Marshal(tr)
	check(t, err)
	writeFile(t, dir, name, string(data))
}

func writeFile(t *testing.T, dir string, name string, content string) {
	t.Helper()

	check(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func check(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("\t%s\tShould be able to prepare the inbox: %s", failed, err)
	}
}
