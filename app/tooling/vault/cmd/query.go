package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/spf13/cobra"
)

var (
	resyncID        string
	vaultsSupply    string
	balanceContract string
	balanceAccount  string
	balanceCode     string
)

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Refresh the books of a vault from the token balances",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := context.Background()

		n, err := openNode(ctx)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, n.Close()) }()

		rcpt, err := n.State.Resync(ctx, asset.SymbolCode(resyncID))
		if err != nil {
			return err
		}

		return printJSON(rcpt.Entry)
	},
}

var vaultsCmd = &cobra.Command{
	Use:   "vaults",
	Short: "List the vaults",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := context.Background()

		n, err := openReadOnly(ctx)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, n.Close()) }()

		if vaultsSupply != "" {
			entry, err := n.State.QueryVaultBySupply(ctx, asset.SymbolCode(vaultsSupply))
			if err != nil {
				return err
			}
			return printJSON(entry)
		}

		entries, err := n.State.Vaults(ctx)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			fmt.Printf("%-7s deposit[%s] staked[%s] supply[%s] account[%s]\n", entry.ID, entry.Deposit, entry.Staked, entry.Supply, entry.Account)
		}

		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the token balance of an account",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := context.Background()

		n, err := openReadOnly(ctx)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, n.Close()) }()

		bal, err := n.Sheet.GetBalance(ctx, asset.Name(balanceContract), asset.Name(balanceAccount), asset.SymbolCode(balanceCode))
		if err != nil {
			return err
		}

		fmt.Printf("%s@%s: %s\n", balanceAccount, balanceContract, bal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resyncCmd, vaultsCmd, balanceCmd)

	resyncCmd.Flags().StringVar(&resyncID, "id", "", "Code of the underlying asset such as EOS.")
	resyncCmd.MarkFlagRequired("id")

	vaultsCmd.Flags().StringVar(&vaultsSupply, "supply", "", "Look a vault up by the code of its share token.")

	balanceCmd.Flags().StringVarP(&balanceContract, "contract", "c", "", "Token contract.")
	balanceCmd.Flags().StringVarP(&balanceAccount, "account", "a", "", "Account.")
	balanceCmd.Flags().StringVar(&balanceCode, "code", "", "Symbol code such as EOS.")
	balanceCmd.MarkFlagRequired("contract")
	balanceCmd.MarkFlagRequired("account")
	balanceCmd.MarkFlagRequired("code")
}
