package store

import (
	"fmt"
	"sync"

	"capledger/db"
	"capledger/jsonx"
	"capledger/types"
)

// LedgerMeta is the aggregate metadata of one ledger: everything authoritative
// state needs beyond per-account records. The genesis height is registered
// here at initialization, which is the primary genesis-discovery strategy;
// scanning for the first event is the fallback.
type LedgerMeta struct {
	LedgerID      string        `json:"ledger_id"`
	Symbol        string        `json:"symbol"`
	Multiplier    uint64        `json:"multiplier"`
	GenesisHeight uint64        `json:"genesis_height"`
	CurrentHeight uint64        `json:"current_height"`
	Roles         types.RoleSet `json:"roles"`
}

// Clone returns a deep copy, so in-flight mutations never leak into the
// stored aggregate before commit.
func (m *LedgerMeta) Clone() *LedgerMeta {
	cp := *m
	cp.Roles = m.Roles.Clone()
	return &cp
}

// MetaStore persists the LedgerMeta aggregate under a single key so it can be
// staged into the same batch as account updates and event appends.
type MetaStore interface {
	Get() (*LedgerMeta, error)
	Put(meta *LedgerMeta) error
	PutToBatch(batch db.DatabaseBatch, meta *LedgerMeta) error
	MustClose()
}

type GenericMetaStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
}

func NewGenericMetaStore(dbProvider db.DatabaseProvider) (*GenericMetaStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericMetaStore{
		dbProvider: dbProvider,
	}, nil
}

// Get returns the stored metadata, or nil when the ledger was never initialized.
func (ms *GenericMetaStore) Get() (*LedgerMeta, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, err := ms.dbProvider.Get([]byte(KeyLedgerMeta))
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger meta: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var meta LedgerMeta
	if err := jsonx.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger meta: %w", err)
	}
	if meta.Roles == nil {
		meta.Roles = make(types.RoleSet)
	}
	return &meta, nil
}

func (ms *GenericMetaStore) Put(meta *LedgerMeta) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data, err := jsonx.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger meta: %w", err)
	}
	return ms.dbProvider.Put([]byte(KeyLedgerMeta), data)
}

func (ms *GenericMetaStore) PutToBatch(batch db.DatabaseBatch, meta *LedgerMeta) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	data, err := jsonx.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger meta: %w", err)
	}
	batch.Put([]byte(KeyLedgerMeta), data)
	return nil
}

func (ms *GenericMetaStore) MustClose() {
	if err := ms.dbProvider.Close(); err != nil {
		panic(fmt.Sprintf("failed to close meta store: %v", err))
	}
}
