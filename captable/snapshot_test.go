package captable

import (
	"context"
	"testing"

	"capledger/config"
	"capledger/db"
	ledgererr "capledger/errors"
	"capledger/ledger"
	"capledger/replay"
	"capledger/store"
)

func newTestAssembler(t *testing.T) (*Assembler, *ledger.Ledger) {
	t.Helper()

	stores, err := store.NewStores(db.NewMemoryProvider())
	if err != nil {
		t.Fatalf("failed to create stores: %v", err)
	}

	ld := ledger.NewLedger(stores)
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

	assembler, err := NewAssembler(stores.Events, stores.Meta)
	if err != nil {
		t.Fatalf("failed to create assembler: %v", err)
	}
	return assembler, ld
}

func TestSnapshotCurrent(t *testing.T) {
	assembler, _ := newTestAssembler(t)

	snapshot, err := assembler.GetCapTable(context.Background(), replay.HeightCurrent)
	if err != nil {
		t.Fatalf("failed to assemble snapshot: %v", err)
	}
	if snapshot.LedgerID != "test-ledger" {
		t.Errorf("expected ledger id test-ledger, got %s", snapshot.LedgerID)
	}
	if snapshot.Height != 1 {
		t.Errorf("expected height 1, got %d", snapshot.Height)
	}
	if snapshot.Symbol != "GATED" {
		t.Errorf("expected symbol GATED, got %s", snapshot.Symbol)
	}
	if snapshot.Multiplier != 1 {
		t.Errorf("expected multiplier 1, got %d", snapshot.Multiplier)
	}
	if snapshot.TotalSupply.Dec() != "1500" {
		t.Errorf("expected total supply 1500, got %s", snapshot.TotalSupply.Dec())
	}
	if len(snapshot.Holders) != 2 {
		t.Fatalf("expected 2 holders, got %d", len(snapshot.Holders))
	}
	if snapshot.Holders[0].Address != "alice" || snapshot.Holders[0].Percentage != "66.666666" {
		t.Errorf("unexpected top holder: %+v", snapshot.Holders[0])
	}
	if snapshot.Holders[1].Address != "bob" || snapshot.Holders[1].Percentage != "33.333333" {
		t.Errorf("unexpected second holder: %+v", snapshot.Holders[1])
	}
	if snapshot.RoundingNote == "" {
		t.Error("expected a rounding note for the truncated residual")
	}
}

func TestSnapshotHistoricalMultiplier(t *testing.T) {
	assembler, ld := newTestAssembler(t)

	if _, err := ld.Submit(ledger.ExecuteSplit{Admin: "alice", Factor: 3}); err != nil {
		t.Fatalf("failed to execute split: %v", err)
	}

	before, err := assembler.GetCapTable(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to assemble pre-split snapshot: %v", err)
	}
	if before.Multiplier != 1 {
		t.Errorf("expected pre-split multiplier 1, got %d", before.Multiplier)
	}
	if before.TotalSupply.Dec() != "1500" {
		t.Errorf("expected pre-split supply 1500, got %s", before.TotalSupply.Dec())
	}

	after, err := assembler.GetCapTable(context.Background(), replay.HeightCurrent)
	if err != nil {
		t.Fatalf("failed to assemble post-split snapshot: %v", err)
	}
	if after.Height != 2 {
		t.Errorf("expected height 2, got %d", after.Height)
	}
	if after.Multiplier != 3 {
		t.Errorf("expected post-split multiplier 3, got %d", after.Multiplier)
	}
	if after.TotalSupply.Dec() != "4500" {
		t.Errorf("expected post-split supply 4500, got %s", after.TotalSupply.Dec())
	}
	// displayed balances scale but ownership does not
	if after.Holders[0].Percentage != before.Holders[0].Percentage {
		t.Errorf("split changed ownership: %s vs %s", after.Holders[0].Percentage, before.Holders[0].Percentage)
	}
}

func TestSnapshotHeightOutOfRange(t *testing.T) {
	assembler, _ := newTestAssembler(t)

	_, err := assembler.GetCapTable(context.Background(), 0)
	if ledgererr.CodeOf(err) != ledgererr.ErrCodeHeightOutOfRange {
		t.Errorf("expected height_out_of_range below genesis, got %v", err)
	}

	_, err = assembler.GetCapTable(context.Background(), 100)
	if ledgererr.CodeOf(err) != ledgererr.ErrCodeHeightOutOfRange {
		t.Errorf("expected height_out_of_range above current, got %v", err)
	}
}

func TestSnapshotEmptyLog(t *testing.T) {
	stores, err := store.NewStores(db.NewMemoryProvider())
	if err != nil {
		t.Fatalf("failed to create stores: %v", err)
	}
	assembler, err := NewAssembler(stores.Events, stores.Meta)
	if err != nil {
		t.Fatalf("failed to create assembler: %v", err)
	}

	_, err = assembler.GetCapTable(context.Background(), replay.HeightCurrent)
	if ledgererr.CodeOf(err) != ledgererr.ErrCodeGenesisUnknown {
		t.Errorf("expected genesis_unknown for empty log, got %v", err)
	}
}

func TestSnapshotCaching(t *testing.T) {
	assembler, _ := newTestAssembler(t)

	first, err := assembler.GetCapTable(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to assemble snapshot: %v", err)
	}
	second, err := assembler.GetCapTable(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to assemble cached snapshot: %v", err)
	}
	if first != second {
		t.Error("expected the cached snapshot on the second lookup")
	}

	assembler.InvalidateAbove(0)
	third, err := assembler.GetCapTable(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to reassemble snapshot: %v", err)
	}
	if third == first {
		t.Error("expected a fresh snapshot after invalidation")
	}
}
