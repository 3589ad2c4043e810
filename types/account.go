package types

import (
	"github.com/holiman/uint256"
)

// ZeroAddress is the designated null account. Mints are recorded as transfers
// from this address; it never holds a balance and is never a snapshot holder.
const ZeroAddress = "0x0"

// Account holds the stored, pre-split state for a single address. Balance is
// always in base units; displayed balances are derived, never persisted.
type Account struct {
	Address     string       `json:"address"`
	BaseBalance *uint256.Int `json:"base_balance"`
	Allowlisted bool         `json:"allowlisted"`
}

// IsEmpty reports whether the account carries no state at all. An empty
// account is indistinguishable from a never-seen one and may be elided
// from storage.
func (a *Account) IsEmpty() bool {
	return (a.BaseBalance == nil || a.BaseBalance.IsZero()) && !a.Allowlisted
}
