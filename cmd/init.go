package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initDir string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write starter config and genesis files",
	Run: func(cmd *cobra.Command, args []string) {
		writeStarterConfig(initDir)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initDir, "dir", "d", "config", "Directory to write config files into")
}

const starterNodeConfig = `[store]
type = leveldb
directory = ./data

[rpc]
listen = :8645
`

const starterGenesis = `ledger:
  id: gated-demo
  symbol: GATED
  genesis_height: 1
  roles:
    admin:
      - alice
    minter:
      - alice
    approver:
      - alice
  allowlist:
    - alice
    - bob
  mints:
    - to: alice
      amount: "1000"
    - to: bob
      amount: "500"
`

func writeStarterConfig(dir string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("Failed to create %s: %v", dir, err)
	}

	write := func(name, content string) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			log.Fatalf("Refusing to overwrite existing %s", path)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("Wrote %s\n", path)
	}

	write("config.ini", starterNodeConfig)
	write("genesis.yml", starterGenesis)
}
