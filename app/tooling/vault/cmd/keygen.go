package cmd

import (
	"fmt"
	"os"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var keygenAccount string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the signing key of an account",
	RunE:  keygenRun,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenAccount, "account", "a", "", "Name of the account.")
	keygenCmd.MarkFlagRequired("account")
}

func keygenRun(cmd *cobra.Command, args []string) error {
	if _, err := asset.ToName(keygenAccount); err != nil {
		return err
	}

	if err := os.MkdirAll(accountsPath(), 0755); err != nil {
		return err
	}

	path := keyPath(keygenAccount)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", keygenAccount, crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
	return nil
}
