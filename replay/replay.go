// Package replay reconstructs ledger state at arbitrary historical points by
// folding the ordered event log. Every function here is pure and re-entrant:
// accumulators are local, inputs are never mutated, and any number of replays
// for different heights may run in parallel.
//
// Full replay from genesis is always correct. Anything cached on top of it
// (see captable's snapshot cache) is an optimization, never authoritative.
package replay

import (
	"context"

	"github.com/holiman/uint256"

	ledgererr "capledger/errors"
	"capledger/types"
)

// HeightCurrent replays with no upper bound ("current").
const HeightCurrent uint64 = ^uint64(0)

// checkEvery bounds how many events are folded between context checks.
const checkEvery = 4096

// Balances folds the log up to and including height and returns the base
// balances. Accounts whose resulting balance is exactly zero are dropped:
// zero balances are not holders.
//
// Transfer events subtract from From and add to To, skipping the zero
// address on either side (mints carry the zero address as From). Any
// ordering or shape violation aborts the whole replay with a corruption
// error; a log that breaks its invariants once cannot be trusted after the
// breakage.
func Balances(ctx context.Context, events []*types.LedgerEvent, height uint64) (map[string]*uint256.Int, error) {
	balances := make(map[string]*uint256.Int)

	var prev *types.LedgerEvent
	for i, ev := range events {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				// partial accumulator state is local and simply discarded
				return nil, err
			}
		}

		if ev.Height > height {
			continue
		}
		if err := checkOrder(prev, ev); err != nil {
			return nil, err
		}
		prev = ev

		if ev.Kind != types.EventTransfer {
			if !types.ValidEventKind(ev.Kind) {
				return nil, ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
					"unknown event kind %q at (%d,%d)", ev.Kind, ev.Height, ev.Sequence)
			}
			continue
		}

		if ev.Amount == nil || ev.From == "" || ev.To == "" {
			return nil, ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
				"malformed transfer event at (%d,%d)", ev.Height, ev.Sequence)
		}

		if ev.From != types.ZeroAddress {
			balance := balances[ev.From]
			if balance == nil || balance.Lt(ev.Amount) {
				return nil, ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
					"transfer at (%d,%d) overdraws %s", ev.Height, ev.Sequence, ev.From)
			}
			balances[ev.From] = new(uint256.Int).Sub(balance, ev.Amount)
		}
		if ev.To != types.ZeroAddress {
			balance := balances[ev.To]
			if balance == nil {
				balance = uint256.NewInt(0)
			}
			balances[ev.To] = new(uint256.Int).Add(balance, ev.Amount)
		}
	}

	for addr, balance := range balances {
		if balance.IsZero() {
			delete(balances, addr)
		}
	}
	return balances, nil
}

// MultiplierAt returns the split multiplier effective at height: the product
// of every SplitExecuted factor with event height <= height. A snapshot at a
// past height reflects the split history as of that height, never the
// present-day multiplier.
func MultiplierAt(events []*types.LedgerEvent, height uint64) (uint64, error) {
	multiplier := uint64(1)

	var prev *types.LedgerEvent
	for _, ev := range events {
		if ev.Height > height {
			continue
		}
		if err := checkOrder(prev, ev); err != nil {
			return 0, err
		}
		prev = ev

		if ev.Kind != types.EventSplitExecuted {
			continue
		}
		if ev.Factor == 0 {
			return 0, ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
				"split event at (%d,%d) has zero factor", ev.Height, ev.Sequence)
		}
		multiplier *= ev.Factor
		if ev.Multiplier != 0 && ev.Multiplier != multiplier {
			return 0, ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
				"split event at (%d,%d) records multiplier %d, fold yields %d",
				ev.Height, ev.Sequence, ev.Multiplier, multiplier)
		}
	}
	return multiplier, nil
}

// SymbolAt returns the symbol effective at height: the NewSymbol of the last
// SymbolChanged event with event height <= height. Empty when no symbol was
// ever set in range.
func SymbolAt(events []*types.LedgerEvent, height uint64) (string, error) {
	symbol := ""

	var prev *types.LedgerEvent
	for _, ev := range events {
		if ev.Height > height {
			continue
		}
		if err := checkOrder(prev, ev); err != nil {
			return "", err
		}
		prev = ev

		if ev.Kind == types.EventSymbolChanged {
			symbol = ev.NewSymbol
		}
	}
	return symbol, nil
}

func checkOrder(prev, ev *types.LedgerEvent) error {
	if prev != nil && ev.Compare(prev) <= 0 {
		return ledgererr.NewErrorf(ledgererr.ErrCodeCorruptedLog,
			"event (%d,%d) out of order after (%d,%d)",
			ev.Height, ev.Sequence, prev.Height, prev.Sequence)
	}
	return nil
}
