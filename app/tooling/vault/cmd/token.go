package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/vaults/foundation/vault/asset"
	"github.com/ardanlabs/vaults/foundation/vault/token/sheet"
	"github.com/spf13/cobra"
)

var (
	tokenContractFlag string
	tokenFrom         string
	tokenTo           string
	tokenIssuer       string
	tokenQuantity     string
	stakeAccount      string
	stakeVoter        int64
	stakeRefund       int64
	stakeRex          int64
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the token sheet",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a token with its maximum supply",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tokenRun(func(sht *sheet.Sheet, contract asset.Name, quantity asset.Asset) error {
			issuer, err := asset.ToName(tokenIssuer)
			if err != nil {
				return err
			}
			return sht.Create(contract, issuer, quantity)
		})
	},
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue new supply to the issuer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tokenRun(func(sht *sheet.Sheet, contract asset.Name, quantity asset.Asset) error {
			to, err := asset.ToName(tokenTo)
			if err != nil {
				return err
			}
			return sht.Issue(contract, to, quantity)
		})
	},
}

var tokenTransferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Move tokens between accounts without notifying the vaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tokenRun(func(sht *sheet.Sheet, contract asset.Name, quantity asset.Asset) error {
			from, err := asset.ToName(tokenFrom)
			if err != nil {
				return err
			}
			to, err := asset.ToName(tokenTo)
			if err != nil {
				return err
			}
			return sht.Transfer(contract, from, to, quantity)
		})
	},
}

var tokenStakeCmd = &cobra.Command{
	Use:   "stake",
	Short: "Record what an account has locked in staking",
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := asset.ToName(stakeAccount)
		if err != nil {
			return err
		}

		return withSheet(func(sht *sheet.Sheet) error {
			sht.SetStake(account, sheet.Stake{VoterStaked: stakeVoter, PendingRefund: stakeRefund, RexFund: stakeRex})

			total, err := sht.VoterStaked(context.Background(), account)
			if err != nil {
				return err
			}
			fmt.Printf("%s: voter staked %d\n", account, total)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenCreateCmd, tokenIssueCmd, tokenTransferCmd, tokenStakeCmd)

	for _, cmd := range []*cobra.Command{tokenCreateCmd, tokenIssueCmd, tokenTransferCmd} {
		cmd.Flags().StringVarP(&tokenContractFlag, "contract", "c", "", "Token contract.")
		cmd.Flags().StringVarP(&tokenQuantity, "quantity", "q", "", "Quantity such as \"100.0000 EOS\".")
		cmd.MarkFlagRequired("contract")
		cmd.MarkFlagRequired("quantity")
	}

	tokenCreateCmd.Flags().StringVarP(&tokenIssuer, "issuer", "i", "", "Account allowed to issue the token.")
	tokenIssueCmd.Flags().StringVarP(&tokenTo, "to", "t", "", "Issuer receiving the supply.")
	tokenTransferCmd.Flags().StringVarP(&tokenFrom, "from", "f", "", "Sending account.")
	tokenTransferCmd.Flags().StringVarP(&tokenTo, "to", "t", "", "Receiving account.")

	tokenStakeCmd.Flags().StringVarP(&stakeAccount, "account", "a", "", "Staking account.")
	tokenStakeCmd.Flags().Int64Var(&stakeVoter, "voter", 0, "Amount staked for voting in the smallest unit.")
	tokenStakeCmd.Flags().Int64Var(&stakeRefund, "refund", 0, "Amount pending refund in the smallest unit.")
	tokenStakeCmd.Flags().Int64Var(&stakeRex, "rex", 0, "Amount in the REX fund in the smallest unit.")
	tokenStakeCmd.MarkFlagRequired("account")
}

// tokenRun parses the shared flags of the token commands and applies fn to
// the sheet.
func tokenRun(fn func(sht *sheet.Sheet, contract asset.Name, quantity asset.Asset) error) error {
	contract, err := asset.ToName(tokenContractFlag)
	if err != nil {
		return err
	}

	quantity, err := asset.ParseAsset(tokenQuantity)
	if err != nil {
		return err
	}

	return withSheet(func(sht *sheet.Sheet) error {
		if err := fn(sht, contract, quantity); err != nil {
			return err
		}
		fmt.Printf("%s@%s: ok\n", quantity, contract)
		return nil
	})
}
