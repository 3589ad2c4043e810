package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"capledger/config"
	ledgererr "capledger/errors"
	"capledger/db"
	"capledger/replay"
	"capledger/store"
	"capledger/types"
)

func newTestLedger(t *testing.T) (*Ledger, *store.Stores) {
	t.Helper()
	return newTestLedgerOn(t, db.NewMemoryProvider())
}

func newTestLedgerOn(t *testing.T, provider db.IterableProvider) (*Ledger, *store.Stores) {
	t.Helper()

	stores, err := store.NewStores(provider)
	if err != nil {
		t.Fatalf("failed to create stores: %v", err)
	}

	ld := NewLedger(stores)
	cfg := &config.GenesisConfig{
		ID:            "test-ledger",
		Symbol:        "GATED",
		GenesisHeight: 1,
		Roles: config.RolesConfig{
			Admin:    []string{"alice"},
			Minter:   []string{"alice"},
			Approver: []string{"alice"},
		},
		Allowlist: []string{"alice", "bob"},
		Mints: []config.GenesisMint{
			{To: "alice", Amount: "1000"},
			{To: "bob", Amount: "500"},
		},
	}
	if err := ld.InitGenesis(cfg); err != nil {
		t.Fatalf("failed to init genesis: %v", err)
	}
	return ld, stores
}

func baseBalance(t *testing.T, ld *Ledger, addr string) *uint256.Int {
	t.Helper()
	account, err := ld.GetAccount(addr)
	if err != nil {
		t.Fatalf("failed to get account %s: %v", addr, err)
	}
	if account == nil {
		return uint256.NewInt(0)
	}
	return account.BaseBalance
}

func expectCode(t *testing.T, err error, code ledgererr.LedgerErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := ledgererr.CodeOf(err); got != code {
		t.Errorf("expected code %s, got %s (%v)", code, got, err)
	}
}

func TestGenesisState(t *testing.T) {
	ld, _ := newTestLedger(t)

	meta, err := ld.Meta()
	if err != nil {
		t.Fatalf("failed to get meta: %v", err)
	}
	if meta.Symbol != "GATED" {
		t.Errorf("expected symbol GATED, got %s", meta.Symbol)
	}
	if meta.Multiplier != 1 {
		t.Errorf("expected multiplier 1, got %d", meta.Multiplier)
	}
	if meta.GenesisHeight != 1 || meta.CurrentHeight != 1 {
		t.Errorf("expected genesis and current height 1, got %d and %d", meta.GenesisHeight, meta.CurrentHeight)
	}
	if !meta.Roles.Has(types.RoleAdmin, "alice") {
		t.Error("expected alice to hold admin role")
	}
	if meta.Roles.Has(types.RoleAdmin, "bob") {
		t.Error("expected bob not to hold admin role")
	}

	if got := baseBalance(t, ld, "alice"); !got.Eq(uint256.NewInt(1000)) {
		t.Errorf("expected alice balance 1000, got %s", got.Dec())
	}
	if got := baseBalance(t, ld, "bob"); !got.Eq(uint256.NewInt(500)) {
		t.Errorf("expected bob balance 500, got %s", got.Dec())
	}
}

func TestInitGenesisTwice(t *testing.T) {
	ld, _ := newTestLedger(t)
	err := ld.InitGenesis(&config.GenesisConfig{ID: "x", Symbol: "X", Roles: config.RolesConfig{Admin: []string{"a"}}})
	if err != ErrAlreadyInitialized {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	ld, _ := newTestLedger(t)

	ev, err := ld.Submit(Transfer{From: "alice", To: "bob", Amount: uint256.NewInt(100)})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if ev.Kind != types.EventTransfer {
		t.Errorf("expected Transfer event, got %s", ev.Kind)
	}
	if !ev.Amount.Eq(uint256.NewInt(100)) {
		t.Errorf("expected base amount 100, got %s", ev.Amount.Dec())
	}
	if ev.Height != 2 {
		t.Errorf("expected event at height 2, got %d", ev.Height)
	}

	if got := baseBalance(t, ld, "alice"); !got.Eq(uint256.NewInt(900)) {
		t.Errorf("expected alice balance 900, got %s", got.Dec())
	}
	if got := baseBalance(t, ld, "bob"); !got.Eq(uint256.NewInt(600)) {
		t.Errorf("expected bob balance 600, got %s", got.Dec())
	}
}

func TestTransferRejections(t *testing.T) {
	ld, stores := newTestLedger(t)

	headBefore, err := stores.Events.Head()
	if err != nil {
		t.Fatalf("failed to read head: %v", err)
	}

	cases := []struct {
		name string
		op   Operation
		code ledgererr.LedgerErrorCode
	}{
		{"recipient not allowlisted", Transfer{From: "alice", To: "carol", Amount: uint256.NewInt(10)}, ledgererr.ErrCodeNotAllowlisted},
		{"sender not allowlisted", Transfer{From: "carol", To: "bob", Amount: uint256.NewInt(10)}, ledgererr.ErrCodeNotAllowlisted},
		{"zero amount", Transfer{From: "alice", To: "bob", Amount: uint256.NewInt(0)}, ledgererr.ErrCodeInvalidAmount},
		{"nil amount", Transfer{From: "alice", To: "bob"}, ledgererr.ErrCodeInvalidAmount},
		{"insufficient funds", Transfer{From: "bob", To: "alice", Amount: uint256.NewInt(501)}, ledgererr.ErrCodeInsufficientFunds},
		{"zero address recipient", Transfer{From: "alice", To: types.ZeroAddress, Amount: uint256.NewInt(10)}, ledgererr.ErrCodeInvalidAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ld.Submit(tc.op)
			expectCode(t, err, tc.code)
		})
	}

	// rejections must not move balances or append events
	if got := baseBalance(t, ld, "alice"); !got.Eq(uint256.NewInt(1000)) {
		t.Errorf("alice balance changed on rejected ops: %s", got.Dec())
	}
	headAfter, err := stores.Events.Head()
	if err != nil {
		t.Fatalf("failed to read head: %v", err)
	}
	if headAfter.Height != headBefore.Height || headAfter.Sequence != headBefore.Sequence {
		t.Errorf("rejected operations appended events: head moved from (%d,%d) to (%d,%d)",
			headBefore.Height, headBefore.Sequence, headAfter.Height, headAfter.Sequence)
	}
}

func TestTransferTruncationToZero(t *testing.T) {
	ld, _ := newTestLedger(t)

	if _, err := ld.Submit(ExecuteSplit{Admin: "alice", Factor: 5}); err != nil {
		t.Fatalf("split failed: %v", err)
	}

	// displayed 3 at multiplier 5 floors to zero base units
	_, err := ld.Submit(Transfer{From: "alice", To: "bob", Amount: uint256.NewInt(3)})
	expectCode(t, err, ledgererr.ErrCodeAmountTruncated)

	if got := baseBalance(t, ld, "alice"); !got.Eq(uint256.NewInt(1000)) {
		t.Errorf("expected alice balance unchanged at 1000, got %s", got.Dec())
	}

	// displayed 5 moves exactly one base unit
	ev, err := ld.Submit(Transfer{From: "alice", To: "bob", Amount: uint256.NewInt(5)})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !ev.Amount.Eq(uint256.NewInt(1)) {
		t.Errorf("expected base amount 1, got %s", ev.Amount.Dec())
	}
}

func TestMint(t *testing.T) {
	ld, _ := newTestLedger(t)

	ev, err := ld.Submit(Mint{Minter: "alice", To: "bob", Amount: uint256.NewInt(250)})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if ev.From != types.ZeroAddress {
		t.Errorf("expected mint recorded from zero address, got %s", ev.From)
	}
	if got := baseBalance(t, ld, "bob"); !got.Eq(uint256.NewInt(750)) {
		t.Errorf("expected bob balance 750, got %s", got.Dec())
	}

	_, err = ld.Submit(Mint{Minter: "bob", To: "bob", Amount: uint256.NewInt(1)})
	expectCode(t, err, ledgererr.ErrCodeMissingRole)

	_, err = ld.Submit(SetAllowlist{Approver: "alice", Account: "carol", Approved: false})
	if err != nil {
		t.Fatalf("setallowlist failed: %v", err)
	}
	_, err = ld.Submit(Mint{Minter: "alice", To: "carol", Amount: uint256.NewInt(1)})
	expectCode(t, err, ledgererr.ErrCodeNotAllowlisted)
}

func TestSplitCompounds(t *testing.T) {
	ld, _ := newTestLedger(t)

	if _, err := ld.Submit(ExecuteSplit{Admin: "alice", Factor: 7}); err != nil {
		t.Fatalf("split failed: %v", err)
	}
	displayed, err := ld.DisplayedBalance("alice")
	if err != nil {
		t.Fatalf("failed to get displayed balance: %v", err)
	}
	if !displayed.Eq(uint256.NewInt(7000)) {
		t.Errorf("expected displayed balance 7000, got %s", displayed.Dec())
	}

	ev, err := ld.Submit(ExecuteSplit{Admin: "alice", Factor: 3})
	if err != nil {
		t.Fatalf("second split failed: %v", err)
	}
	if ev.Multiplier != 21 {
		t.Errorf("expected compounded multiplier 21, got %d", ev.Multiplier)
	}
	displayed, err = ld.DisplayedBalance("alice")
	if err != nil {
		t.Fatalf("failed to get displayed balance: %v", err)
	}
	if !displayed.Eq(uint256.NewInt(21000)) {
		t.Errorf("expected displayed balance 21000, got %s", displayed.Dec())
	}

	_, err = ld.Submit(ExecuteSplit{Admin: "alice", Factor: 0})
	expectCode(t, err, ledgererr.ErrCodeInvalidSplitFactor)

	_, err = ld.Submit(ExecuteSplit{Admin: "bob", Factor: 2})
	expectCode(t, err, ledgererr.ErrCodeMissingRole)
}

func TestChangeSymbol(t *testing.T) {
	ld, _ := newTestLedger(t)

	ev, err := ld.Submit(ChangeSymbol{Admin: "alice", Symbol: "SPLIT"})
	if err != nil {
		t.Fatalf("changesymbol failed: %v", err)
	}
	if ev.OldSymbol != "GATED" || ev.NewSymbol != "SPLIT" {
		t.Errorf("expected GATED -> SPLIT, got %s -> %s", ev.OldSymbol, ev.NewSymbol)
	}

	meta, err := ld.Meta()
	if err != nil {
		t.Fatalf("failed to get meta: %v", err)
	}
	if meta.Symbol != "SPLIT" {
		t.Errorf("expected symbol SPLIT, got %s", meta.Symbol)
	}

	_, err = ld.Submit(ChangeSymbol{Admin: "alice", Symbol: ""})
	expectCode(t, err, ledgererr.ErrCodeEmptySymbol)

	_, err = ld.Submit(ChangeSymbol{Admin: "bob", Symbol: "NOPE"})
	expectCode(t, err, ledgererr.ErrCodeMissingRole)
}

func TestRoleAdministration(t *testing.T) {
	ld, _ := newTestLedger(t)

	if _, err := ld.Submit(GrantRole{Admin: "alice", Role: types.RoleApprover, Grantee: "bob"}); err != nil {
		t.Fatalf("grantrole failed: %v", err)
	}
	if _, err := ld.Submit(SetAllowlist{Approver: "bob", Account: "carol", Approved: true}); err != nil {
		t.Fatalf("setallowlist by new approver failed: %v", err)
	}

	if _, err := ld.Submit(RevokeRole{Admin: "alice", Role: types.RoleApprover, Grantee: "bob"}); err != nil {
		t.Fatalf("revokerole failed: %v", err)
	}
	_, err := ld.Submit(SetAllowlist{Approver: "bob", Account: "carol", Approved: false})
	expectCode(t, err, ledgererr.ErrCodeMissingRole)

	_, err = ld.Submit(GrantRole{Admin: "alice", Role: types.Role("owner"), Grantee: "bob"})
	expectCode(t, err, ledgererr.ErrCodeInvalidRole)

	_, err = ld.Submit(GrantRole{Admin: "bob", Role: types.RoleMinter, Grantee: "bob"})
	expectCode(t, err, ledgererr.ErrCodeMissingRole)
}

// TestReplayMatchesLiveState folds the full event log from genesis and checks
// it reproduces the live base balances, multiplier and symbol exactly.
func TestReplayMatchesLiveState(t *testing.T) {
	ld, stores := newTestLedger(t)

	ops := []Operation{
		Transfer{From: "alice", To: "bob", Amount: uint256.NewInt(100)},
		Mint{Minter: "alice", To: "alice", Amount: uint256.NewInt(42)},
		ExecuteSplit{Admin: "alice", Factor: 2},
		Transfer{From: "bob", To: "alice", Amount: uint256.NewInt(50)},
		ChangeSymbol{Admin: "alice", Symbol: "SPL"},
		SetAllowlist{Approver: "alice", Account: "carol", Approved: true},
		Mint{Minter: "alice", To: "carol", Amount: uint256.NewInt(9)},
	}
	for i, op := range ops {
		if _, err := ld.Submit(op); err != nil {
			t.Fatalf("op %d (%T) failed: %v", i, op, err)
		}
	}

	events, err := stores.Events.Query(store.EventFilter{FromHeight: store.HeightEarliest, ToHeight: store.HeightLatest})
	if err != nil {
		t.Fatalf("failed to query events: %v", err)
	}

	balances, err := replay.Balances(context.Background(), events, replay.HeightCurrent)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	accounts, err := ld.GetAllAccounts()
	if err != nil {
		t.Fatalf("failed to get accounts: %v", err)
	}
	live := make(map[string]*uint256.Int)
	for _, account := range accounts {
		if !account.BaseBalance.IsZero() {
			live[account.Address] = account.BaseBalance
		}
	}

	if len(balances) != len(live) {
		t.Fatalf("replay found %d holders, live state has %d", len(balances), len(live))
	}
	for addr, want := range live {
		got, ok := balances[addr]
		if !ok {
			t.Errorf("replay missing holder %s", addr)
			continue
		}
		if !got.Eq(want) {
			t.Errorf("holder %s: replay %s, live %s", addr, got.Dec(), want.Dec())
		}
	}

	meta, err := ld.Meta()
	if err != nil {
		t.Fatalf("failed to get meta: %v", err)
	}
	multiplier, err := replay.MultiplierAt(events, replay.HeightCurrent)
	if err != nil {
		t.Fatalf("multiplier replay failed: %v", err)
	}
	if multiplier != meta.Multiplier {
		t.Errorf("replayed multiplier %d, live %d", multiplier, meta.Multiplier)
	}
	symbol, err := replay.SymbolAt(events, replay.HeightCurrent)
	if err != nil {
		t.Fatalf("symbol replay failed: %v", err)
	}
	if symbol != meta.Symbol {
		t.Errorf("replayed symbol %s, live %s", symbol, meta.Symbol)
	}
}

func TestUninitializedLedger(t *testing.T) {
	stores, err := store.NewStores(db.NewMemoryProvider())
	if err != nil {
		t.Fatalf("failed to create stores: %v", err)
	}
	ld := NewLedger(stores)

	_, err = ld.Submit(Transfer{From: "a", To: "b", Amount: uint256.NewInt(1)})
	expectCode(t, err, ledgererr.ErrCodeLedgerNotFound)
}

// faultyProvider fails the next failWrites batch commits.
type faultyProvider struct {
	*db.MemoryProvider
	failWrites int
}

func (p *faultyProvider) Batch() db.DatabaseBatch {
	return &faultyBatch{DatabaseBatch: p.MemoryProvider.Batch(), provider: p}
}

type faultyBatch struct {
	db.DatabaseBatch
	provider *faultyProvider
}

func (b *faultyBatch) Write() error {
	if b.provider.failWrites > 0 {
		b.provider.failWrites--
		return errors.New("injected write failure")
	}
	return b.DatabaseBatch.Write()
}

// TestSubmitRecoversAfterFailedCommit checks that a failed batch commit leaves
// no trace: no balance change, no head movement, and the next valid operation
// is accepted at the same height the failed one targeted.
func TestSubmitRecoversAfterFailedCommit(t *testing.T) {
	provider := &faultyProvider{MemoryProvider: db.NewMemoryProvider()}
	ld, stores := newTestLedgerOn(t, provider)

	provider.failWrites = 1
	_, err := ld.Submit(Transfer{From: "alice", To: "bob", Amount: uint256.NewInt(100)})
	if err == nil {
		t.Fatal("expected the injected commit failure")
	}

	if !baseBalance(t, ld, "alice").Eq(uint256.NewInt(1000)) {
		t.Errorf("failed commit changed alice's balance to %s", baseBalance(t, ld, "alice").Dec())
	}
	head, err := stores.Events.Head()
	if err != nil {
		t.Fatalf("failed to get head: %v", err)
	}
	if head == nil || head.Height != 1 {
		t.Fatalf("failed commit moved the log head: %v", head)
	}

	ev, err := ld.Submit(Transfer{From: "alice", To: "bob", Amount: uint256.NewInt(100)})
	if err != nil {
		t.Fatalf("submit after failed commit was rejected: %v", err)
	}
	if ev.Height != 2 {
		t.Errorf("expected the retry at height 2, got %d", ev.Height)
	}
	if !baseBalance(t, ld, "alice").Eq(uint256.NewInt(900)) {
		t.Errorf("expected alice 900 after retry, got %s", baseBalance(t, ld, "alice").Dec())
	}
}
