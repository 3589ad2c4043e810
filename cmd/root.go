package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"capledger/logx"
)

var rootCmd = &cobra.Command{
	Use:   "capledger",
	Short: "Gated ledger node CLI",
	Long:  "Command line interface for running and managing a gated-ledger node with cap-table replay.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
