package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"capledger/logx"
	"capledger/store"
	"capledger/utils"
)

// LoadGenesisConfig reads and parses the genesis.yml file
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open genesis config: %w", err)
	}
	defer file.Close()

	var genFile GenesisFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&genFile); err != nil {
		return nil, fmt.Errorf("failed to decode genesis config: %w", err)
	}

	cfg := &genFile.Ledger
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logx.Info("CONFIG", fmt.Sprintf("Loaded genesis config: id=%s symbol=%s height=%d mints=%d",
		cfg.ID, cfg.Symbol, cfg.GenesisHeight, len(cfg.Mints)))
	return cfg, nil
}

// Validate checks the genesis configuration for internal consistency.
func (c *GenesisConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("genesis: ledger id cannot be empty")
	}
	if c.Symbol == "" {
		return fmt.Errorf("genesis: symbol cannot be empty")
	}
	if len(c.Roles.Admin) == 0 {
		return fmt.Errorf("genesis: at least one admin is required")
	}

	allowed := make(map[string]bool, len(c.Allowlist))
	for _, addr := range c.Allowlist {
		if addr == "" {
			return fmt.Errorf("genesis: empty address in allowlist")
		}
		allowed[addr] = true
	}

	for i, mint := range c.Mints {
		if mint.To == "" {
			return fmt.Errorf("genesis: mint %d has empty recipient", i)
		}
		if !allowed[mint.To] {
			return fmt.Errorf("genesis: mint recipient %s is not allowlisted", mint.To)
		}
		amount, err := utils.StringToUint256(mint.Amount)
		if err != nil {
			return fmt.Errorf("genesis: mint %d has invalid amount %q: %w", i, mint.Amount, err)
		}
		if amount.IsZero() {
			return fmt.Errorf("genesis: mint %d has zero amount", i)
		}
	}
	return nil
}

// LoadNodeConfig reads and parses the config.ini file
func LoadNodeConfig(path string) (*NodeConfig, error) {
	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load node config: %w", err)
	}

	cfg := &NodeConfig{
		Store: store.StoreConfig{
			Type:      store.LevelDBStoreType,
			Directory: "./data",
		},
		RPC: RPCConfig{
			Listen: ":8645",
		},
	}

	if sec := iniFile.Section("store"); sec != nil {
		if v := sec.Key("type").String(); v != "" {
			cfg.Store.Type = store.StoreType(v)
		}
		if v := sec.Key("directory").String(); v != "" {
			cfg.Store.Directory = v
		}
	}
	if sec := iniFile.Section("rpc"); sec != nil {
		if v := sec.Key("listen").String(); v != "" {
			cfg.RPC.Listen = v
		}
	}

	if err := cfg.Store.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
