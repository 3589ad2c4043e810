package store

import (
	"fmt"

	"capledger/db"
)

// StoreType represents the type of store implementation
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// BoltStoreType uses the bbolt implementation
	BoltStoreType StoreType = "bolt"

	// MemoryStoreType keeps everything in memory (tests, one-shot commands)
	MemoryStoreType StoreType = "memory"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `json:"type" yaml:"type" ini:"type"`

	// Directory is the database directory path (for file-based databases)
	Directory string `json:"directory" yaml:"directory" ini:"directory"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}

	switch sc.Type {
	case LevelDBStoreType, BoltStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty for %s store", sc.Type)
		}
		return nil
	case MemoryStoreType:
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// NewProvider opens the database backend described by the configuration.
// All stores of one ledger share the returned provider so cross-store batches
// commit atomically.
func NewProvider(cfg *StoreConfig) (db.IterableProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(cfg.Directory)
	case BoltStoreType:
		return db.NewBoltProvider(cfg.Directory)
	case MemoryStoreType:
		return db.NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// Stores bundles the three stores of one ledger over a shared provider.
type Stores struct {
	Accounts AccountStore
	Events   EventStore
	Meta     MetaStore

	provider db.IterableProvider
}

// OpenStores creates the account, event and meta stores over one provider.
func OpenStores(cfg *StoreConfig) (*Stores, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewStores(provider)
}

// NewStores wires the stores over an already-open provider.
func NewStores(provider db.IterableProvider) (*Stores, error) {
	accounts, err := NewGenericAccountStore(provider)
	if err != nil {
		return nil, err
	}
	events, err := NewGenericEventStore(provider)
	if err != nil {
		return nil, err
	}
	meta, err := NewGenericMetaStore(provider)
	if err != nil {
		return nil, err
	}

	return &Stores{
		Accounts: accounts,
		Events:   events,
		Meta:     meta,
		provider: provider,
	}, nil
}

// Provider exposes the shared provider for batch composition.
func (s *Stores) Provider() db.IterableProvider {
	return s.provider
}

// MustClose closes the shared provider.
func (s *Stores) MustClose() {
	if err := s.provider.Close(); err != nil {
		panic(fmt.Sprintf("failed to close store provider: %v", err))
	}
}
