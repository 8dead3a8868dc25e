package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/vaults/business/core/inbox"
	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Drain the inbox once",
	RunE:  processRun,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func processRun(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	n, err := openNode(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, n.Close()) }()

	p, err := inbox.New(ctx, inbox.Config{
		Dir:     n.InboxPath(),
		State:   n.State,
		Sheet:   n.Sheet,
		Storage: n.Storage,
	})
	if err != nil {
		return err
	}

	results, err := p.Run(ctx)
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("%s: REJECTED: %s\n", res.File, res.Err)
			continue
		}
		fmt.Printf("%s: %s %s\n", res.File, res.Receipt.Kind, res.Receipt.Amount)
	}

	return err
}
