package types

import (
	"github.com/holiman/uint256"
)

// EventKind is an enum-like string type for ledger events.
type EventKind string

const (
	EventTransfer         EventKind = "Transfer"
	EventAllowlistUpdated EventKind = "AllowlistUpdated"
	EventSplitExecuted    EventKind = "SplitExecuted"
	EventSymbolChanged    EventKind = "SymbolChanged"
	EventRoleGranted      EventKind = "RoleGranted"
	EventRoleRevoked      EventKind = "RoleRevoked"
)

// ValidEventKind reports whether k is one of the known event kinds.
func ValidEventKind(k EventKind) bool {
	switch k {
	case EventTransfer, EventAllowlistUpdated, EventSplitExecuted,
		EventSymbolChanged, EventRoleGranted, EventRoleRevoked:
		return true
	}
	return false
}

// LedgerEvent is one immutable entry of the append-only log. Events are
// totally ordered by (Height, Sequence); once appended an event is never
// mutated or removed. Amounts are always base units; a mint is a Transfer
// whose From is ZeroAddress.
//
// The payload fields are kind-specific; unused ones stay at their zero value
// and are elided from the wire form.
type LedgerEvent struct {
	Height   uint64    `json:"height"`
	Sequence uint64    `json:"sequence"`
	Kind     EventKind `json:"kind"`

	// Transfer
	From   string       `json:"from,omitempty"`
	To     string       `json:"to,omitempty"`
	Amount *uint256.Int `json:"amount,omitempty"`

	// AllowlistUpdated
	Account  string `json:"account,omitempty"`
	Approved bool   `json:"approved,omitempty"`

	// SplitExecuted: Factor is the applied split factor, Multiplier the
	// cumulative product after applying it.
	Factor     uint64 `json:"factor,omitempty"`
	Multiplier uint64 `json:"multiplier,omitempty"`

	// SymbolChanged
	OldSymbol string `json:"old_symbol,omitempty"`
	NewSymbol string `json:"new_symbol,omitempty"`

	// RoleGranted / RoleRevoked
	Role    Role   `json:"role,omitempty"`
	Grantee string `json:"grantee,omitempty"`
}

// Compare orders events by (height, sequence). It returns a negative value
// when e precedes other, zero when they share a position.
func (e *LedgerEvent) Compare(other *LedgerEvent) int {
	if e.Height != other.Height {
		if e.Height < other.Height {
			return -1
		}
		return 1
	}
	if e.Sequence != other.Sequence {
		if e.Sequence < other.Sequence {
			return -1
		}
		return 1
	}
	return 0
}
