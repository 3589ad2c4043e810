package db

import (
	"fmt"

	"capledger/logx"
)

// DBTxManager manages database batches for atomic operations across multiple
// stores sharing one provider. A rejected ledger operation discards the whole
// batch, so state mutation and event append commit together or not at all.
type DBTxManager struct {
	provider DatabaseProvider
}

// NewDBTxManager creates a new transaction manager with the given provider
func NewDBTxManager(provider DatabaseProvider) *DBTxManager {
	return &DBTxManager{provider: provider}
}

// WithBatch executes the given function within a batch context.
// If the function returns nil, the batch is committed; otherwise, it's discarded.
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) error {
	batch := tm.provider.Batch()
	defer func() {
		batch.Close()
	}()

	if err := fn(batch); err != nil {
		batch.Reset()
		return err
	}

	if err := batch.Write(); err != nil {
		logx.Error("TX_MANAGER", "Failed to commit batch:", err)
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}
