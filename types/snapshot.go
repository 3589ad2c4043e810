package types

import (
	"time"

	"github.com/holiman/uint256"
)

// Holder is one non-zero entry of a cap table. Balance is in displayed
// units; Percentage is a fixed-point decimal string with exactly six
// fractional digits, floor-truncated from PercentScaled.
type Holder struct {
	Address       string       `json:"address"`
	Balance       *uint256.Int `json:"balance"`
	Percentage    string       `json:"percentage"`
	PercentScaled uint64       `json:"percent_scaled"`
}

// CapTableSnapshot is a disposable, point-in-time ownership view derived
// entirely from the event log. It is never authoritative: any cached copy
// may be discarded and recomputed from the log at will.
type CapTableSnapshot struct {
	LedgerID    string       `json:"ledger_id"`
	Height      uint64       `json:"height"`
	Timestamp   time.Time    `json:"timestamp"`
	Symbol      string       `json:"symbol"`
	Multiplier  uint64       `json:"multiplier"`
	TotalSupply *uint256.Int `json:"total_supply"`
	Holders     []Holder     `json:"holders"`

	// RoundingNote is set when the per-holder floor truncation leaves a
	// non-zero residual; the remainder is reported, never redistributed.
	RoundingNote string `json:"rounding_note,omitempty"`
}
