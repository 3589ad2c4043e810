package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"capledger/captable"
	"capledger/config"
	"capledger/jsonrpc"
	"capledger/ledger"
	"capledger/logx"
	"capledger/store"
)

const (
	defaultConfigPath  = "config/config.ini"
	defaultGenesisPath = "config/genesis.yml"
)

var (
	configPath  string
	genesisPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ledger node",
	Run: func(cmd *cobra.Command, args []string) {
		runNode()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to node config.ini")
	runCmd.Flags().StringVarP(&genesisPath, "genesis", "g", defaultGenesisPath, "Path to genesis.yml")
}

func runNode() {
	nodeCfg, err := config.LoadNodeConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load node config: %v", err)
	}

	if nodeCfg.Store.Directory != "" {
		if err := os.MkdirAll(nodeCfg.Store.Directory, 0755); err != nil {
			log.Fatalf("Failed to create store directory %s: %v", nodeCfg.Store.Directory, err)
		}
	}

	stores, err := store.OpenStores(&nodeCfg.Store)
	if err != nil {
		log.Fatalf("Failed to open stores: %v", err)
	}
	defer stores.MustClose()

	ld := ledger.NewLedger(stores)

	genesisCfg, err := config.LoadGenesisConfig(genesisPath)
	if err != nil {
		log.Fatalf("Failed to load genesis config: %v", err)
	}
	if err := ld.InitGenesis(genesisCfg); err != nil {
		if !errors.Is(err, ledger.ErrAlreadyInitialized) {
			log.Fatalf("Failed to initialize genesis: %v", err)
		}
		logx.Info("NODE", "Ledger already initialized, skipping genesis")
	}

	assembler, err := captable.NewAssembler(stores.Events, stores.Meta)
	if err != nil {
		log.Fatalf("Failed to create snapshot assembler: %v", err)
	}

	server := jsonrpc.NewServer(nodeCfg.RPC.Listen, ld, assembler, stores.Events)
	server.Start()

	meta, err := ld.Meta()
	if err != nil {
		log.Fatalf("Failed to read ledger meta: %v", err)
	}
	logx.Info("NODE", fmt.Sprintf("Serving ledger %s (%s) at height %d on %s",
		meta.LedgerID, meta.Symbol, meta.CurrentHeight, nodeCfg.RPC.Listen))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logx.Info("NODE", "Received signal ", sig, ", shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logx.Error("NODE", "RPC shutdown failed:", err)
	}
}
