// Package captable derives ownership snapshots from replayed base balances.
// All arithmetic is integer-exact: displayed balances are base times the
// effective multiplier, percentages are fixed-point with six fractional
// digits, floor-truncated per holder.
package captable

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"capledger/config"
	"capledger/types"
)

// percentScaled computes floor(balance * 100 * scale / total) without
// leaving integer arithmetic. total must be non-zero.
func percentScaled(balance, total *uint256.Int) uint64 {
	numerator := new(uint256.Int).Mul(balance, uint256.NewInt(100*config.PercentScale))
	return new(uint256.Int).Div(numerator, total).Uint64()
}

// FormatPercent renders a scaled percentage as a decimal string with exactly
// config.PercentPrecision fractional digits.
func FormatPercent(scaled uint64) string {
	return fmt.Sprintf("%d.%0*d", scaled/config.PercentScale, config.PercentPrecision, scaled%config.PercentScale)
}

// BuildHolders converts replayed base balances into the displayed holder
// list: balances are multiplied by the effective multiplier, percentages are
// floor-truncated, and holders are ordered by balance descending then
// address. The returned note reports any truncation residual; the remainder
// is never redistributed.
//
// A zero total supply yields an empty holder list, not a division error.
func BuildHolders(balances map[string]*uint256.Int, multiplier uint64) (holders []types.Holder, totalSupply *uint256.Int, roundingNote string) {
	mult := uint256.NewInt(multiplier)

	totalSupply = uint256.NewInt(0)
	displayed := make(map[string]*uint256.Int, len(balances))
	for addr, base := range balances {
		d := new(uint256.Int).Mul(base, mult)
		displayed[addr] = d
		totalSupply = new(uint256.Int).Add(totalSupply, d)
	}

	holders = make([]types.Holder, 0, len(displayed))
	if totalSupply.IsZero() {
		return holders, totalSupply, ""
	}

	var scaledSum uint64
	for addr, balance := range displayed {
		scaled := percentScaled(balance, totalSupply)
		scaledSum += scaled
		holders = append(holders, types.Holder{
			Address:       addr,
			Balance:       balance,
			Percentage:    FormatPercent(scaled),
			PercentScaled: scaled,
		})
	}

	sort.Slice(holders, func(i, j int) bool {
		if c := holders[i].Balance.Cmp(holders[j].Balance); c != 0 {
			return c > 0
		}
		return holders[i].Address < holders[j].Address
	})

	if residual := 100*config.PercentScale - scaledSum; residual != 0 {
		roundingNote = fmt.Sprintf("percentages are floor-truncated and sum to %s%%; residual %s%% is not redistributed",
			FormatPercent(scaledSum), FormatPercent(residual))
	}
	return holders, totalSupply, roundingNote
}
