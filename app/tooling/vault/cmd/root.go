// Package cmd contains the vault admin app.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/vaults/business/core/node"
	"github.com/ardanlabs/vaults/foundation/nameservice"
	"github.com/ardanlabs/vaults/foundation/vault/token/sheet"
	"github.com/spf13/cobra"
)

var (
	dataDir       string
	postgresDSN   string
	self          string
	tokenContract string
	nativeSymbol  string
	ratio         int64
	trusted       bool
	verbose       bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "zvault/", "Path to the data directory.")
	rootCmd.PersistentFlags().StringVar(&postgresDSN, "postgres", "", "Postgres connection string, the vault table is kept in the data directory when empty.")
	rootCmd.PersistentFlags().StringVar(&self, "self", "vaults.sx", "Account of the vaults.")
	rootCmd.PersistentFlags().StringVar(&tokenContract, "token-contract", "token.sx", "Contract minting the share tokens.")
	rootCmd.PersistentFlags().StringVar(&nativeSymbol, "native", "4,EOS@eosio.token", "Native asset whose staked amounts back the deposit.")
	rootCmd.PersistentFlags().Int64Var(&ratio, "ratio", 10000, "Share units minted per underlying unit for an empty vault.")
	rootCmd.PersistentFlags().BoolVar(&trusted, "trusted", false, "Accept transfer events without checking signatures.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print the vault events to stderr.")
}

var rootCmd = &cobra.Command{
	Use:          "vault",
	Short:        "Administer liquidity vaults",
	SilenceUsage: true,
}

// Execute runs the command selected on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// =============================================================================

// openNode opens the deployment in the data directory for writing. It fails
// while the service or another command holds the data directory. The caller
// must close the node so the token sheet is saved and the lock released.
func openNode(ctx context.Context) (*node.Node, error) {
	return node.Open(ctx, nodeConfig(false))
}

// openReadOnly opens the deployment for queries. It can run next to the
// service and sees what was last committed.
func openReadOnly(ctx context.Context) (*node.Node, error) {
	return node.Open(ctx, nodeConfig(true))
}

func nodeConfig(readOnly bool) node.Config {
	return node.Config{
		DataDir:       dataDir,
		PostgresDSN:   postgresDSN,
		Self:          self,
		TokenContract: tokenContract,
		NativeSymbol:  nativeSymbol,
		Ratio:         ratio,
		Trusted:       trusted,
		ReadOnly:      readOnly,
		EvHandler: func(v string, args ...any) {
			if verbose {
				fmt.Fprintf(os.Stderr, v+"\n", args...)
			}
		},
	}
}

// withSheet opens the deployment, runs fn against its token sheet and
// commits the sheet on close.
func withSheet(fn func(sht *sheet.Sheet) error) (err error) {
	n, err := openNode(context.Background())
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, n.Close()) }()

	return fn(n.Sheet)
}

func accountsPath() string {
	return filepath.Join(dataDir, node.AccountsDir)
}

func keyPath(account string) string {
	return filepath.Join(accountsPath(), account+nameservice.KeyExt)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}
