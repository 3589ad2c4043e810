package captable

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	ledgererr "capledger/errors"
	"capledger/interfaces"
	"capledger/logx"
	"capledger/replay"
	"capledger/store"
	"capledger/types"
)

const defaultCacheSize = 128

// Assembler composes the event feed, the replay engine and the calculator
// into cap-table snapshots. It holds no authoritative state: every snapshot
// is reproducible from the log, so the per-height cache is safe to discard
// at any time and is never consulted as truth.
type Assembler struct {
	feed  interfaces.EventFeed
	meta  store.MetaStore
	cache *lru.Cache[uint64, *types.CapTableSnapshot]
}

// NewAssembler wires an assembler over the event feed and metadata store.
func NewAssembler(feed interfaces.EventFeed, meta store.MetaStore) (*Assembler, error) {
	cache, err := lru.New[uint64, *types.CapTableSnapshot](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		feed:  feed,
		meta:  meta,
		cache: cache,
	}, nil
}

// GetCapTable returns the ownership snapshot at the given height. Pass
// replay.HeightCurrent for the current height; any explicit height must
// satisfy genesisHeight <= height <= currentHeight.
func (a *Assembler) GetCapTable(ctx context.Context, height uint64) (*types.CapTableSnapshot, error) {
	ledgerID, genesis, current, err := a.bounds()
	if err != nil {
		return nil, err
	}

	target := height
	if target == replay.HeightCurrent {
		target = current
	} else if target < genesis || target > current {
		return nil, ledgererr.NewErrorf(ledgererr.ErrCodeHeightOutOfRange,
			"height %d outside [%d, %d]", target, genesis, current)
	}

	if cached, ok := a.cache.Get(target); ok {
		return cached, nil
	}

	events, err := a.feed.Query(store.EventFilter{
		FromHeight: store.HeightEarliest,
		ToHeight:   target,
	})
	if err != nil {
		return nil, err
	}

	balances, err := replay.Balances(ctx, events, target)
	if err != nil {
		return nil, err
	}
	multiplier, err := replay.MultiplierAt(events, target)
	if err != nil {
		return nil, err
	}
	symbol, err := replay.SymbolAt(events, target)
	if err != nil {
		return nil, err
	}

	holders, totalSupply, roundingNote := BuildHolders(balances, multiplier)

	snapshot := &types.CapTableSnapshot{
		LedgerID:     ledgerID,
		Height:       target,
		Timestamp:    time.Now().UTC(),
		Symbol:       symbol,
		Multiplier:   multiplier,
		TotalSupply:  totalSupply,
		Holders:      holders,
		RoundingNote: roundingNote,
	}

	a.cache.Add(target, snapshot)
	logx.Debug("CAPTABLE", fmt.Sprintf("Assembled snapshot at height %d: %d holders, supply %s",
		target, len(holders), totalSupply.Dec()))
	return snapshot, nil
}

// bounds resolves the ledger id and the valid height range. The genesis
// height registered at initialization is the primary source; the first event
// ever observed is the fallback when metadata is absent.
func (a *Assembler) bounds() (ledgerID string, genesis, current uint64, err error) {
	meta, err := a.meta.Get()
	if err != nil {
		return "", 0, 0, err
	}
	if meta != nil {
		return meta.LedgerID, meta.GenesisHeight, meta.CurrentHeight, nil
	}

	first, err := a.feed.FirstEvent()
	if err != nil {
		return "", 0, 0, err
	}
	if first == nil {
		return "", 0, 0, ledgererr.NewError(ledgererr.ErrCodeGenesisUnknown,
			"no metadata and no events: genesis height cannot be determined")
	}
	head, err := a.feed.Head()
	if err != nil {
		return "", 0, 0, err
	}
	return "", first.Height, head.Height, nil
}

// InvalidateAbove drops cached snapshots at heights above the given height.
// Callers tracking an external finality window use this after a reorg
// discards previously delivered events.
func (a *Assembler) InvalidateAbove(height uint64) {
	for _, key := range a.cache.Keys() {
		if key > height {
			a.cache.Remove(key)
		}
	}
}
