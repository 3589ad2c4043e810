package store

import (
	"fmt"
	"sort"
	"sync"

	"capledger/db"
	"capledger/jsonx"
	"capledger/types"
)

// AccountStore persists the current base balances and allowlist flags. It is
// a cache of truth: the same state is always reproducible by replaying the
// full event log.
type AccountStore interface {
	Store(account *types.Account) error
	StoreToBatch(batch db.DatabaseBatch, accounts ...*types.Account) error
	GetByAddr(addr string) (*types.Account, error)
	ExistsByAddr(addr string) (bool, error)
	GetAll() ([]*types.Account, error)
	MustClose()
}

type GenericAccountStore struct {
	mu         sync.RWMutex
	dbProvider db.IterableProvider
}

func NewGenericAccountStore(dbProvider db.IterableProvider) (*GenericAccountStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericAccountStore{
		dbProvider: dbProvider,
	}, nil
}

func (as *GenericAccountStore) Store(account *types.Account) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if account.IsEmpty() {
		return as.dbProvider.Delete(as.getDbKey(account.Address))
	}

	data, err := jsonx.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if err := as.dbProvider.Put(as.getDbKey(account.Address), data); err != nil {
		return fmt.Errorf("failed to write account to db: %w", err)
	}

	return nil
}

// StoreToBatch stages accounts into batch without committing. Accounts that
// carry no state are deleted, keeping them indistinguishable from never-seen
// addresses.
func (as *GenericAccountStore) StoreToBatch(batch db.DatabaseBatch, accounts ...*types.Account) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	for _, account := range accounts {
		if account.IsEmpty() {
			batch.Delete(as.getDbKey(account.Address))
			continue
		}
		data, err := jsonx.Marshal(account)
		if err != nil {
			return fmt.Errorf("failed to marshal account: %w", err)
		}
		batch.Put(as.getDbKey(account.Address), data)
	}
	return nil
}

// GetByAddr returns the stored account for addr, or nil when unseen.
func (as *GenericAccountStore) GetByAddr(addr string) (*types.Account, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	data, err := as.dbProvider.Get(as.getDbKey(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to read account from db: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var account types.Account
	if err := jsonx.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

func (as *GenericAccountStore) ExistsByAddr(addr string) (bool, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	return as.dbProvider.Has(as.getDbKey(addr))
}

// GetAll returns every stored account ordered by address.
func (as *GenericAccountStore) GetAll() ([]*types.Account, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	accounts := make([]*types.Account, 0)
	var iterErr error
	err := as.dbProvider.IteratePrefix([]byte(PrefixAccount), func(key, value []byte) bool {
		var account types.Account
		if err := jsonx.Unmarshal(value, &account); err != nil {
			iterErr = fmt.Errorf("failed to unmarshal account %s: %w", key, err)
			return false
		}
		accounts = append(accounts, &account)
		return true
	})
	if err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, iterErr
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Address < accounts[j].Address
	})
	return accounts, nil
}

func (as *GenericAccountStore) MustClose() {
	if err := as.dbProvider.Close(); err != nil {
		panic(fmt.Sprintf("failed to close account store: %v", err))
	}
}

func (as *GenericAccountStore) getDbKey(addr string) []byte {
	return []byte(PrefixAccount + addr)
}
