package replay

import (
	"context"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/holiman/uint256"

	ledgererr "capledger/errors"
	"capledger/types"
)

func mint(height, seq uint64, to string, amount uint64) *types.LedgerEvent {
	return &types.LedgerEvent{
		Height:   height,
		Sequence: seq,
		Kind:     types.EventTransfer,
		From:     types.ZeroAddress,
		To:       to,
		Amount:   uint256.NewInt(amount),
	}
}

func transfer(height, seq uint64, from, to string, amount uint64) *types.LedgerEvent {
	return &types.LedgerEvent{
		Height:   height,
		Sequence: seq,
		Kind:     types.EventTransfer,
		From:     from,
		To:       to,
		Amount:   uint256.NewInt(amount),
	}
}

func split(height, seq, factor uint64) *types.LedgerEvent {
	return &types.LedgerEvent{
		Height:   height,
		Sequence: seq,
		Kind:     types.EventSplitExecuted,
		Factor:   factor,
	}
}

func TestBalancesFold(t *testing.T) {
	events := []*types.LedgerEvent{
		mint(1, 0, "alice", 1000),
		mint(1, 1, "bob", 500),
		transfer(2, 0, "alice", "bob", 100),
		transfer(3, 0, "bob", "carol", 600),
	}

	balances, err := Balances(context.Background(), events, HeightCurrent)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 holders, got %d", len(balances))
	}
	if !balances["alice"].Eq(uint256.NewInt(900)) {
		t.Errorf("expected alice 900, got %s", balances["alice"].Dec())
	}
	// bob holds 500 + 100 - 600 = 0 and must be dropped
	if _, ok := balances["bob"]; ok {
		t.Error("expected bob dropped at exactly zero balance")
	}
	if !balances["carol"].Eq(uint256.NewInt(600)) {
		t.Errorf("expected carol 600, got %s", balances["carol"].Dec())
	}
}

func TestBalancesHeightBound(t *testing.T) {
	events := []*types.LedgerEvent{
		mint(1, 0, "alice", 1000),
		transfer(2, 0, "alice", "bob", 100),
		transfer(5, 0, "alice", "bob", 100),
	}

	balances, err := Balances(context.Background(), events, 2)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !balances["alice"].Eq(uint256.NewInt(900)) {
		t.Errorf("expected alice 900 at height 2, got %s", balances["alice"].Dec())
	}
	if !balances["bob"].Eq(uint256.NewInt(100)) {
		t.Errorf("expected bob 100 at height 2, got %s", balances["bob"].Dec())
	}
}

func TestBalancesEmptyLog(t *testing.T) {
	balances, err := Balances(context.Background(), nil, HeightCurrent)
	if err != nil {
		t.Fatalf("replay of empty log failed: %v", err)
	}
	if len(balances) != 0 {
		t.Errorf("expected no holders, got %d", len(balances))
	}
}

func TestBalancesIdempotent(t *testing.T) {
	events := []*types.LedgerEvent{
		mint(1, 0, "alice", 1000),
		transfer(2, 0, "alice", "bob", 123),
	}

	first, err := Balances(context.Background(), events, HeightCurrent)
	if err != nil {
		t.Fatalf("first replay failed: %v", err)
	}
	second, err := Balances(context.Background(), events, HeightCurrent)
	if err != nil {
		t.Fatalf("second replay failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("replays disagree on holder count: %d vs %d", len(first), len(second))
	}
	for addr, balance := range first {
		if !second[addr].Eq(balance) {
			t.Errorf("replays disagree for %s: %s vs %s", addr, balance.Dec(), second[addr].Dec())
		}
	}
}

func TestBalancesCorruption(t *testing.T) {
	cases := []struct {
		name   string
		events []*types.LedgerEvent
	}{
		{"out of order heights", []*types.LedgerEvent{
			mint(2, 0, "alice", 10),
			mint(1, 0, "bob", 10),
		}},
		{"duplicate position", []*types.LedgerEvent{
			mint(1, 0, "alice", 10),
			mint(1, 0, "bob", 10),
		}},
		{"out of order sequence", []*types.LedgerEvent{
			mint(1, 1, "alice", 10),
			mint(1, 0, "bob", 10),
		}},
		{"overdraw", []*types.LedgerEvent{
			mint(1, 0, "alice", 10),
			transfer(2, 0, "alice", "bob", 11),
		}},
		{"spend from unseen account", []*types.LedgerEvent{
			transfer(1, 0, "ghost", "bob", 1),
		}},
		{"unknown kind", []*types.LedgerEvent{
			{Height: 1, Sequence: 0, Kind: types.EventKind("Burn")},
		}},
		{"transfer without amount", []*types.LedgerEvent{
			{Height: 1, Sequence: 0, Kind: types.EventTransfer, From: types.ZeroAddress, To: "alice"},
		}},
		{"transfer without sender", []*types.LedgerEvent{
			{Height: 1, Sequence: 0, Kind: types.EventTransfer, To: "alice", Amount: uint256.NewInt(1)},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Balances(context.Background(), tc.events, HeightCurrent)
			if err == nil {
				t.Fatal("expected corruption error, got nil")
			}
			if !ledgererr.IsCorruption(err) {
				t.Errorf("expected corruption error, got %v", err)
			}
		})
	}
}

func TestBalancesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Balances(ctx, []*types.LedgerEvent{mint(1, 0, "alice", 1)}, HeightCurrent)
	if err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestMultiplierAt(t *testing.T) {
	events := []*types.LedgerEvent{
		mint(1, 0, "alice", 1000),
		split(3, 0, 7),
		split(5, 0, 3),
	}

	cases := []struct {
		height uint64
		want   uint64
	}{
		{1, 1},
		{2, 1},
		{3, 7},
		{4, 7},
		{5, 21},
		{HeightCurrent, 21},
	}
	prev := uint64(0)
	for _, tc := range cases {
		got, err := MultiplierAt(events, tc.height)
		if err != nil {
			t.Fatalf("MultiplierAt(%d) failed: %v", tc.height, err)
		}
		if got != tc.want {
			t.Errorf("MultiplierAt(%d) = %d, want %d", tc.height, got, tc.want)
		}
		if got < prev {
			t.Errorf("multiplier decreased from %d to %d at height %d", prev, got, tc.height)
		}
		prev = got
	}
}

func TestMultiplierAtRecordedMismatch(t *testing.T) {
	events := []*types.LedgerEvent{
		{Height: 1, Sequence: 0, Kind: types.EventSplitExecuted, Factor: 2, Multiplier: 5},
	}
	_, err := MultiplierAt(events, HeightCurrent)
	if !ledgererr.IsCorruption(err) {
		t.Errorf("expected corruption error on recorded multiplier mismatch, got %v", err)
	}
}

func TestSymbolAt(t *testing.T) {
	events := []*types.LedgerEvent{
		{Height: 1, Sequence: 0, Kind: types.EventSymbolChanged, NewSymbol: "GATED"},
		{Height: 4, Sequence: 0, Kind: types.EventSymbolChanged, OldSymbol: "GATED", NewSymbol: "SPL"},
	}

	symbol, err := SymbolAt(events, 3)
	if err != nil {
		t.Fatalf("SymbolAt failed: %v", err)
	}
	if symbol != "GATED" {
		t.Errorf("expected GATED at height 3, got %s", symbol)
	}

	symbol, err = SymbolAt(events, HeightCurrent)
	if err != nil {
		t.Fatalf("SymbolAt failed: %v", err)
	}
	if symbol != "SPL" {
		t.Errorf("expected SPL at current height, got %s", symbol)
	}
}

// TestConservationRandomized folds a randomized operation sequence and checks
// that the sum of all base balances always equals the total ever minted.
func TestConservationRandomized(t *testing.T) {
	fuzzer := fuzz.NewWithSeed(42)
	addrs := []string{"a", "b", "c", "d"}

	var events []*types.LedgerEvent
	held := make(map[string]uint64)
	totalMinted := uint64(0)
	height := uint64(0)

	for i := 0; i < 500; i++ {
		height++
		var pick struct {
			Op     uint8
			FromIx uint8
			ToIx   uint8
			Amount uint16
		}
		fuzzer.Fuzz(&pick)

		from := addrs[int(pick.FromIx)%len(addrs)]
		to := addrs[int(pick.ToIx)%len(addrs)]
		amount := uint64(pick.Amount) + 1

		if pick.Op%3 == 0 || held[from] == 0 {
			events = append(events, mint(height, 0, to, amount))
			held[to] += amount
			totalMinted += amount
			continue
		}
		if amount > held[from] {
			amount = held[from]
		}
		events = append(events, transfer(height, 0, from, to, amount))
		held[from] -= amount
		held[to] += amount
	}

	balances, err := Balances(context.Background(), events, HeightCurrent)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	sum := uint256.NewInt(0)
	for _, balance := range balances {
		sum = new(uint256.Int).Add(sum, balance)
	}
	if !sum.Eq(uint256.NewInt(totalMinted)) {
		t.Errorf("base supply not conserved: replayed sum %s, minted %d", sum.Dec(), totalMinted)
	}
}
