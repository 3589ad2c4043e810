package ledger

import (
	"github.com/holiman/uint256"

	"capledger/types"
)

// Operation is one proposed ledger mutation. Every operation is atomic:
// Submit either applies it fully and appends its event, or rejects it with
// no observable side effect.
type Operation interface {
	// Caller returns the principal attempting the operation. Authentication
	// of the caller is the transport's concern; gating is ours.
	Caller() string
}

// Transfer moves tokens between two allowlisted accounts. Amount is in
// displayed units; it is floor-divided by the current multiplier and rejected
// when it truncates to zero base units.
type Transfer struct {
	From   string
	To     string
	Amount *uint256.Int
}

func (op Transfer) Caller() string { return op.From }

// Mint credits base units to an allowlisted account. Requires the minter
// role; recorded as a transfer from the zero address.
type Mint struct {
	Minter string
	To     string
	Amount *uint256.Int
}

func (op Mint) Caller() string { return op.Minter }

// SetAllowlist flips an account's allowlist membership. Requires the
// approver role.
type SetAllowlist struct {
	Approver string
	Account  string
	Approved bool
}

func (op SetAllowlist) Caller() string { return op.Approver }

// ExecuteSplit multiplies the cumulative multiplier by Factor. Requires the
// admin role. The multiplier compounds and never resets.
type ExecuteSplit struct {
	Admin  string
	Factor uint64
}

func (op ExecuteSplit) Caller() string { return op.Admin }

// ChangeSymbol replaces the ledger symbol. Requires the admin role; the new
// symbol must be non-empty.
type ChangeSymbol struct {
	Admin  string
	Symbol string
}

func (op ChangeSymbol) Caller() string { return op.Admin }

// GrantRole adds a principal to a role. Requires the admin role.
type GrantRole struct {
	Admin   string
	Role    types.Role
	Grantee string
}

func (op GrantRole) Caller() string { return op.Admin }

// RevokeRole removes a principal from a role. Requires the admin role.
type RevokeRole struct {
	Admin   string
	Role    types.Role
	Grantee string
}

func (op RevokeRole) Caller() string { return op.Admin }
