package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "govledgerd [command] [flags]",
		Short: "DAO governance ledger daemon",
		Long: `govledgerd runs the DAO governance ledger as a block application: DAOs,
proposals, one vote per user per proposal and per-DAO reward points.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newAddressCmd())
	return root
}
