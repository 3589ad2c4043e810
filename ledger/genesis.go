package ledger

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"capledger/config"
	"capledger/db"
	"capledger/logx"
	"capledger/store"
	"capledger/types"
	"capledger/utils"
)

var (
	ErrAlreadyInitialized = errors.New("ledger already initialized")
)

// InitGenesis seeds a fresh ledger from the genesis configuration. The whole
// initial state is expressed as events at the genesis height (symbol, role
// grants, allowlist entries, initial mints, in that sequence order), so a
// replay from an empty log reproduces genesis exactly like any later state.
func (l *Ledger) InitGenesis(cfg *config.GenesisConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.stores.Meta.Get()
	if err != nil {
		return fmt.Errorf("could not load ledger meta: %w", err)
	}
	if existing != nil {
		return ErrAlreadyInitialized
	}

	height := cfg.GenesisHeight
	seq := uint64(0)
	nextSeq := func() uint64 {
		s := seq
		seq++
		return s
	}

	events := []*types.LedgerEvent{{
		Height:    height,
		Sequence:  nextSeq(),
		Kind:      types.EventSymbolChanged,
		NewSymbol: cfg.Symbol,
	}}

	roles := make(types.RoleSet)
	grant := func(role types.Role, addrs []string) {
		for _, addr := range addrs {
			roles.Grant(role, addr)
			events = append(events, &types.LedgerEvent{
				Height:   height,
				Sequence: nextSeq(),
				Kind:     types.EventRoleGranted,
				Role:     role,
				Grantee:  addr,
			})
		}
	}
	grant(types.RoleAdmin, cfg.Roles.Admin)
	grant(types.RoleMinter, cfg.Roles.Minter)
	grant(types.RoleApprover, cfg.Roles.Approver)

	accounts := make(map[string]*types.Account)
	for _, addr := range cfg.Allowlist {
		accounts[addr] = &types.Account{
			Address:     addr,
			BaseBalance: uint256.NewInt(0),
			Allowlisted: true,
		}
		events = append(events, &types.LedgerEvent{
			Height:   height,
			Sequence: nextSeq(),
			Kind:     types.EventAllowlistUpdated,
			Account:  addr,
			Approved: true,
		})
	}

	for _, mint := range cfg.Mints {
		amount, err := utils.StringToUint256(mint.Amount)
		if err != nil {
			return fmt.Errorf("invalid genesis mint amount %q: %w", mint.Amount, err)
		}
		account, ok := accounts[mint.To]
		if !ok {
			// config validation guarantees mint recipients are allowlisted
			return fmt.Errorf("genesis mint recipient %s is not allowlisted", mint.To)
		}
		account.BaseBalance = new(uint256.Int).Add(account.BaseBalance, amount)
		events = append(events, &types.LedgerEvent{
			Height:   height,
			Sequence: nextSeq(),
			Kind:     types.EventTransfer,
			From:     types.ZeroAddress,
			To:       mint.To,
			Amount:   amount,
		})
	}

	meta := &store.LedgerMeta{
		LedgerID:      cfg.ID,
		Symbol:        cfg.Symbol,
		Multiplier:    1,
		GenesisHeight: height,
		CurrentHeight: height,
		Roles:         roles,
	}

	touched := make([]*types.Account, 0, len(accounts))
	for _, account := range accounts {
		touched = append(touched, account)
	}

	err = l.txManager.WithBatch(func(batch db.DatabaseBatch) error {
		if err := l.stores.Accounts.StoreToBatch(batch, touched...); err != nil {
			return err
		}
		if err := l.stores.Meta.PutToBatch(batch, meta); err != nil {
			return err
		}
		return l.stores.Events.AppendToBatch(batch, events...)
	})
	if err != nil {
		return fmt.Errorf("could not commit genesis: %w", err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Initialized ledger %s at genesis height %d with %d events",
		cfg.ID, height, len(events)))
	return nil
}
