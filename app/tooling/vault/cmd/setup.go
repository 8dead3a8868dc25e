package cmd

import (
	"context"
	"errors"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/state"
	"github.com/spf13/cobra"
)

var (
	setupDeposit string
	setupSupply  string
	setupAccount string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register a vault for an underlying asset",
	RunE:  setupRun,
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVar(&setupDeposit, "deposit", "", "Underlying asset such as \"4,EOS@eosio.token\".")
	setupCmd.Flags().StringVar(&setupSupply, "supply", "", "Code of the share token such as SXEOS.")
	setupCmd.Flags().StringVar(&setupAccount, "account", "", "Custodial account, the vault account when empty.")
	setupCmd.MarkFlagRequired("deposit")
	setupCmd.MarkFlagRequired("supply")
}

func setupRun(cmd *cobra.Command, args []string) (err error) {
	deposit, err := asset.ParseExtendedSymbol(setupDeposit)
	if err != nil {
		return err
	}

	account := setupAccount
	if account == "" {
		account = self
	}

	ctx := context.Background()

	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, n.Close()) }()

	rcpt, err := n.State.Setup(ctx, state.SetupRequest{
		Deposit: deposit,
		Supply:  asset.SymbolCode(setupSupply),
		Account: asset.Name(account),
	})
	if err != nil {
		return err
	}

	return printJSON(rcpt)
}
