package ledger

import (
	"fmt"
	"math"
	"sync"

	"github.com/holiman/uint256"

	"capledger/db"
	ledgererr "capledger/errors"
	"capledger/logx"
	"capledger/store"
	"capledger/types"
)

// Ledger is the gated state machine. It owns authoritative current state
// (base balances, allowlist, roles, multiplier, symbol), validates and
// applies operations, and appends the corresponding events to the log.
//
// There is exactly one logical writer: Submit serializes operations under a
// mutex, and each accepted operation commits its state mutation and event
// append in a single database batch.
type Ledger struct {
	mu        sync.Mutex
	stores    *store.Stores
	txManager *db.DBTxManager
}

// NewLedger wires a ledger over its stores. The stores must share one
// provider, otherwise batches cannot commit atomically.
func NewLedger(stores *store.Stores) *Ledger {
	return &Ledger{
		stores:    stores,
		txManager: db.NewDBTxManager(stores.Provider()),
	}
}

// Submit validates and applies one operation. Exactly one outcome: the
// emitted event on acceptance, or a coded rejection with no state change and
// no event. Each accepted operation commits at the next height with
// sequence 0; multi-event heights only occur at genesis.
func (l *Ledger) Submit(op Operation) (*types.LedgerEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	meta, err := l.stores.Meta.Get()
	if err != nil {
		return nil, fmt.Errorf("could not load ledger meta: %w", err)
	}
	if meta == nil {
		return nil, ledgererr.NewError(ledgererr.ErrCodeLedgerNotFound, "ledger is not initialized")
	}

	if op.Caller() == "" {
		return nil, ledgererr.NewError(ledgererr.ErrCodeInvalidAddress, "caller address cannot be empty")
	}

	next := meta.Clone()
	next.CurrentHeight = meta.CurrentHeight + 1
	ev := &types.LedgerEvent{Height: next.CurrentHeight, Sequence: 0}

	var touched []*types.Account
	switch o := op.(type) {
	case Transfer:
		touched, err = l.applyTransfer(meta, ev, o)
	case Mint:
		touched, err = l.applyMint(meta, ev, o)
	case SetAllowlist:
		touched, err = l.applySetAllowlist(meta, ev, o)
	case ExecuteSplit:
		err = l.applyExecuteSplit(meta, next, ev, o)
	case ChangeSymbol:
		err = l.applyChangeSymbol(meta, next, ev, o)
	case GrantRole:
		err = l.applyGrantRole(meta, next, ev, o)
	case RevokeRole:
		err = l.applyRevokeRole(meta, next, ev, o)
	default:
		err = ledgererr.NewErrorf(ledgererr.ErrCodeInvalidRequest, "unsupported operation %T", op)
	}
	if err != nil {
		logx.Warn("LEDGER", fmt.Sprintf("Rejected %T: %v", op, err))
		return nil, err
	}

	err = l.txManager.WithBatch(func(batch db.DatabaseBatch) error {
		if len(touched) > 0 {
			if err := l.stores.Accounts.StoreToBatch(batch, touched...); err != nil {
				return err
			}
		}
		if err := l.stores.Meta.PutToBatch(batch, next); err != nil {
			return err
		}
		return l.stores.Events.AppendToBatch(batch, ev)
	})
	if err != nil {
		return nil, err
	}

	logx.Info("LEDGER", fmt.Sprintf("Applied %T at height %d", op, ev.Height))
	return ev, nil
}

func (l *Ledger) applyTransfer(meta *store.LedgerMeta, ev *types.LedgerEvent, op Transfer) ([]*types.Account, error) {
	if op.From == types.ZeroAddress {
		return nil, ledgererr.NewError(ledgererr.ErrCodeInvalidAddress, "cannot transfer from the zero address")
	}
	if op.To == "" || op.To == types.ZeroAddress {
		return nil, ledgererr.NewError(ledgererr.ErrCodeInvalidAddress, "recipient address is invalid")
	}

	from, err := l.loadAccount(op.From)
	if err != nil {
		return nil, err
	}
	var to *types.Account
	if op.To == op.From {
		to = from
	} else {
		to, err = l.loadAccount(op.To)
		if err != nil {
			return nil, err
		}
	}

	if !from.Allowlisted {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeNotAllowlisted, "sender %s is not allowlisted", op.From)
	}
	if !to.Allowlisted {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeNotAllowlisted, "recipient %s is not allowlisted", op.To)
	}
	if op.Amount == nil || op.Amount.IsZero() {
		return nil, ledgererr.NewError(ledgererr.ErrCodeInvalidAmount, "transfer amount must be positive")
	}

	// Displayed units convert to base units by floor division. A displayed
	// amount that truncates to zero would record a zero-effect transfer, so
	// it is rejected outright.
	base := new(uint256.Int).Div(op.Amount, uint256.NewInt(meta.Multiplier))
	if base.IsZero() {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeAmountTruncated,
			"displayed amount %s truncates to zero base units at multiplier %d", op.Amount.Dec(), meta.Multiplier)
	}
	if from.BaseBalance.Lt(base) {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeInsufficientFunds,
			"sender %s holds %s base units, needs %s", op.From, from.BaseBalance.Dec(), base.Dec())
	}

	from.BaseBalance = new(uint256.Int).Sub(from.BaseBalance, base)
	to.BaseBalance = new(uint256.Int).Add(to.BaseBalance, base)

	ev.Kind = types.EventTransfer
	ev.From = op.From
	ev.To = op.To
	ev.Amount = base

	if to == from {
		return []*types.Account{from}, nil
	}
	return []*types.Account{from, to}, nil
}

func (l *Ledger) applyMint(meta *store.LedgerMeta, ev *types.LedgerEvent, op Mint) ([]*types.Account, error) {
	if !meta.Roles.Has(types.RoleMinter, op.Minter) {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeMissingRole, "caller %s does not hold role %s", op.Minter, types.RoleMinter)
	}
	if op.To == "" || op.To == types.ZeroAddress {
		return nil, ledgererr.NewError(ledgererr.ErrCodeInvalidAddress, "mint recipient address is invalid")
	}

	to, err := l.loadAccount(op.To)
	if err != nil {
		return nil, err
	}
	if !to.Allowlisted {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeNotAllowlisted, "mint recipient %s is not allowlisted", op.To)
	}
	if op.Amount == nil || op.Amount.IsZero() {
		return nil, ledgererr.NewError(ledgererr.ErrCodeInvalidAmount, "mint amount must be positive")
	}

	to.BaseBalance = new(uint256.Int).Add(to.BaseBalance, op.Amount)

	ev.Kind = types.EventTransfer
	ev.From = types.ZeroAddress
	ev.To = op.To
	ev.Amount = new(uint256.Int).Set(op.Amount)
	return []*types.Account{to}, nil
}

func (l *Ledger) applySetAllowlist(meta *store.LedgerMeta, ev *types.LedgerEvent, op SetAllowlist) ([]*types.Account, error) {
	if !meta.Roles.Has(types.RoleApprover, op.Approver) {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeMissingRole, "caller %s does not hold role %s", op.Approver, types.RoleApprover)
	}
	if op.Account == "" || op.Account == types.ZeroAddress {
		return nil, ledgererr.NewError(ledgererr.ErrCodeInvalidAddress, "allowlist account address is invalid")
	}

	account, err := l.loadAccount(op.Account)
	if err != nil {
		return nil, err
	}
	account.Allowlisted = op.Approved

	ev.Kind = types.EventAllowlistUpdated
	ev.Account = op.Account
	ev.Approved = op.Approved
	return []*types.Account{account}, nil
}

func (l *Ledger) applyExecuteSplit(meta, next *store.LedgerMeta, ev *types.LedgerEvent, op ExecuteSplit) error {
	if !meta.Roles.Has(types.RoleAdmin, op.Admin) {
		return ledgererr.NewErrorf(ledgererr.ErrCodeMissingRole, "caller %s does not hold role %s", op.Admin, types.RoleAdmin)
	}
	if op.Factor == 0 {
		return ledgererr.NewError(ledgererr.ErrCodeInvalidSplitFactor, "split factor must be positive")
	}
	if meta.Multiplier > math.MaxUint64/op.Factor {
		return ledgererr.NewErrorf(ledgererr.ErrCodeInvalidSplitFactor,
			"split factor %d overflows multiplier %d", op.Factor, meta.Multiplier)
	}

	// The multiplier compounds: always the product of every executed split.
	next.Multiplier = meta.Multiplier * op.Factor

	ev.Kind = types.EventSplitExecuted
	ev.Factor = op.Factor
	ev.Multiplier = next.Multiplier
	return nil
}

func (l *Ledger) applyChangeSymbol(meta, next *store.LedgerMeta, ev *types.LedgerEvent, op ChangeSymbol) error {
	if !meta.Roles.Has(types.RoleAdmin, op.Admin) {
		return ledgererr.NewErrorf(ledgererr.ErrCodeMissingRole, "caller %s does not hold role %s", op.Admin, types.RoleAdmin)
	}
	if op.Symbol == "" {
		return ledgererr.NewError(ledgererr.ErrCodeEmptySymbol, "symbol cannot be empty")
	}

	next.Symbol = op.Symbol

	ev.Kind = types.EventSymbolChanged
	ev.OldSymbol = meta.Symbol
	ev.NewSymbol = op.Symbol
	return nil
}

func (l *Ledger) applyGrantRole(meta, next *store.LedgerMeta, ev *types.LedgerEvent, op GrantRole) error {
	if !meta.Roles.Has(types.RoleAdmin, op.Admin) {
		return ledgererr.NewErrorf(ledgererr.ErrCodeMissingRole, "caller %s does not hold role %s", op.Admin, types.RoleAdmin)
	}
	if !types.ValidRole(op.Role) {
		return ledgererr.NewErrorf(ledgererr.ErrCodeInvalidRole, "unknown role %q", op.Role)
	}
	if op.Grantee == "" || op.Grantee == types.ZeroAddress {
		return ledgererr.NewError(ledgererr.ErrCodeInvalidAddress, "grantee address is invalid")
	}

	next.Roles.Grant(op.Role, op.Grantee)

	ev.Kind = types.EventRoleGranted
	ev.Role = op.Role
	ev.Grantee = op.Grantee
	return nil
}

func (l *Ledger) applyRevokeRole(meta, next *store.LedgerMeta, ev *types.LedgerEvent, op RevokeRole) error {
	if !meta.Roles.Has(types.RoleAdmin, op.Admin) {
		return ledgererr.NewErrorf(ledgererr.ErrCodeMissingRole, "caller %s does not hold role %s", op.Admin, types.RoleAdmin)
	}
	if !types.ValidRole(op.Role) {
		return ledgererr.NewErrorf(ledgererr.ErrCodeInvalidRole, "unknown role %q", op.Role)
	}
	if op.Grantee == "" || op.Grantee == types.ZeroAddress {
		return ledgererr.NewError(ledgererr.ErrCodeInvalidAddress, "grantee address is invalid")
	}

	next.Roles.Revoke(op.Role, op.Grantee)

	ev.Kind = types.EventRoleRevoked
	ev.Role = op.Role
	ev.Grantee = op.Grantee
	return nil
}

// loadAccount returns a mutable copy of the stored account, or a fresh empty
// one for a never-seen address.
func (l *Ledger) loadAccount(addr string) (*types.Account, error) {
	account, err := l.stores.Accounts.GetByAddr(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &types.Account{Address: addr, BaseBalance: uint256.NewInt(0)}, nil
	}
	if account.BaseBalance == nil {
		account.BaseBalance = uint256.NewInt(0)
	}
	return account, nil
}

// Meta returns the current ledger metadata, or a not-found error before
// genesis initialization.
func (l *Ledger) Meta() (*store.LedgerMeta, error) {
	meta, err := l.stores.Meta.Get()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, ledgererr.NewError(ledgererr.ErrCodeLedgerNotFound, "ledger is not initialized")
	}
	return meta, nil
}

// GetAccount returns the stored account for addr (nil if never seen).
func (l *Ledger) GetAccount(addr string) (*types.Account, error) {
	return l.stores.Accounts.GetByAddr(addr)
}

// GetAllAccounts returns every stored account ordered by address.
func (l *Ledger) GetAllAccounts() ([]*types.Account, error) {
	return l.stores.Accounts.GetAll()
}

// DisplayedBalance returns addr's balance in displayed units: base balance
// times the current multiplier. Displayed balances are always derived, never
// stored.
func (l *Ledger) DisplayedBalance(addr string) (*uint256.Int, error) {
	meta, err := l.Meta()
	if err != nil {
		return nil, err
	}
	account, err := l.stores.Accounts.GetByAddr(addr)
	if err != nil {
		return nil, err
	}
	if account == nil || account.BaseBalance == nil {
		return uint256.NewInt(0), nil
	}
	return new(uint256.Int).Mul(account.BaseBalance, uint256.NewInt(meta.Multiplier)), nil
}

// Stores exposes the underlying stores for read-side collaborators.
func (l *Ledger) Stores() *store.Stores {
	return l.stores
}
