package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"capledger/captable"
	"capledger/config"
	"capledger/jsonx"
	"capledger/replay"
	"capledger/store"
)

var (
	capTableHeight uint64
	capTableJSON   bool
)

var capTableCmd = &cobra.Command{
	Use:   "captable",
	Short: "Print the cap table at a height straight from the local stores",
	Run: func(cmd *cobra.Command, args []string) {
		printCapTable(cmd)
	},
}

func init() {
	rootCmd.AddCommand(capTableCmd)
	capTableCmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to node config.ini")
	capTableCmd.Flags().Uint64Var(&capTableHeight, "height", 0, "Snapshot height (0 = current)")
	capTableCmd.Flags().BoolVar(&capTableJSON, "json", false, "Print the snapshot as JSON")
}

func printCapTable(cmd *cobra.Command) {
	nodeCfg, err := config.LoadNodeConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load node config: %v", err)
	}

	stores, err := store.OpenStores(&nodeCfg.Store)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer stores.MustClose()

	assembler, err := captable.NewAssembler(stores.Events, stores.Meta)
	if err != nil {
		log.Fatalf("Failed to create snapshot assembler: %v", err)
	}

	height := capTableHeight
	if !cmd.Flags().Changed("height") {
		height = replay.HeightCurrent
	}

	snapshot, err := assembler.GetCapTable(context.Background(), height)
	if err != nil {
		log.Fatalf("Failed to assemble cap table: %v", err)
	}

	if capTableJSON {
		data, err := jsonx.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal snapshot: %v", err)
		}
		os.Stdout.Write(append(data, '\n'))
		return
	}

	fmt.Printf("Ledger %s (%s) at height %d, multiplier %d\n",
		snapshot.LedgerID, snapshot.Symbol, snapshot.Height, snapshot.Multiplier)
	fmt.Printf("Total supply: %s\n", snapshot.TotalSupply.Dec())
	for _, holder := range snapshot.Holders {
		fmt.Printf("  %-40s %20s  %s%%\n", holder.Address, holder.Balance.Dec(), holder.Percentage)
	}
	if snapshot.RoundingNote != "" {
		fmt.Printf("Note: %s\n", snapshot.RoundingNote)
	}
}
