package config

import (
	"capledger/store"
)

// GenesisFile is the top-level structure of genesis.yml.
type GenesisFile struct {
	Ledger GenesisConfig `yaml:"ledger"`
}

// GenesisConfig describes the initial state of a ledger. Everything here is
// emitted as ordinary events at the genesis height, so a full replay from an
// empty log reproduces it exactly.
type GenesisConfig struct {
	ID            string        `yaml:"id"`
	Symbol        string        `yaml:"symbol"`
	GenesisHeight uint64        `yaml:"genesis_height"`
	Roles         RolesConfig   `yaml:"roles"`
	Allowlist     []string      `yaml:"allowlist"`
	Mints         []GenesisMint `yaml:"mints"`
}

// RolesConfig lists the initial principals per role.
type RolesConfig struct {
	Admin    []string `yaml:"admin"`
	Minter   []string `yaml:"minter"`
	Approver []string `yaml:"approver"`
}

// GenesisMint is one initial allocation, in base units.
type GenesisMint struct {
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
}

// NodeConfig holds the node settings loaded from config.ini.
type NodeConfig struct {
	Store store.StoreConfig
	RPC   RPCConfig
}

// RPCConfig holds the JSON-RPC listen settings.
type RPCConfig struct {
	Listen string `ini:"listen"`
}
