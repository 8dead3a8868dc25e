package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ardanlabs/vaults/business/core/inbox"
	"github.com/ardanlabs/vaults/business/core/node"
	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/event"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	sendFrom     string
	sendTo       string
	sendContract string
	sendQuantity string
	sendMemo     string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign a transfer and drop it into the inbox",
	RunE:  sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendFrom, "from", "f", "", "Sending account, signs with its key file.")
	sendCmd.Flags().StringVarP(&sendTo, "to", "t", "", "Receiving account, the vault account when empty.")
	sendCmd.Flags().StringVarP(&sendContract, "contract", "c", "", "Token contract.")
	sendCmd.Flags().StringVarP(&sendQuantity, "quantity", "q", "", "Quantity such as \"100.0000 EOS\".")
	sendCmd.Flags().StringVarP(&sendMemo, "memo", "m", "", "Memo of the transfer.")
	sendCmd.MarkFlagRequired("from")
	sendCmd.MarkFlagRequired("contract")
	sendCmd.MarkFlagRequired("quantity")
}

func sendRun(cmd *cobra.Command, args []string) error {
	privateKey, err := crypto.LoadECDSA(keyPath(sendFrom))
	if err != nil {
		return err
	}

	quantity, err := asset.ParseAsset(sendQuantity)
	if err != nil {
		return err
	}

	to := sendTo
	if to == "" {
		to = self
	}

	tr := event.Transfer{
		From:     asset.Name(sendFrom),
		To:       asset.Name(to),
		Quantity: quantity,
		Contract: asset.Name(sendContract),
		Memo:     sendMemo,
	}

	signed, err := tr.Sign(privateKey)
	if err != nil {
		return err
	}

	name, err := inbox.Submit(filepath.Join(dataDir, node.InboxDir), signed)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", name, signed)
	return nil
}
