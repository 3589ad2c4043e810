package types

// Role is a named capability checked before each gated mutation.
type Role string

const (
	// RoleAdmin may execute splits, change the symbol and administer roles.
	RoleAdmin Role = "admin"
	// RoleMinter may mint new base units to allowlisted accounts.
	RoleMinter Role = "minter"
	// RoleApprover may add and remove accounts from the allowlist.
	RoleApprover Role = "approver"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleMinter, RoleApprover:
		return true
	}
	return false
}

// RoleSet maps each role to the set of principals holding it.
type RoleSet map[Role]map[string]bool

// Has is the pure permission predicate: it reports whether addr holds role.
// All mutation gating goes through this single function.
func (rs RoleSet) Has(role Role, addr string) bool {
	members, ok := rs[role]
	if !ok {
		return false
	}
	return members[addr]
}

// Grant adds addr to role, allocating the member set on first use.
func (rs RoleSet) Grant(role Role, addr string) {
	if rs[role] == nil {
		rs[role] = make(map[string]bool)
	}
	rs[role][addr] = true
}

// Revoke removes addr from role.
func (rs RoleSet) Revoke(role Role, addr string) {
	if rs[role] != nil {
		delete(rs[role], addr)
	}
}

// Clone returns a deep copy of the role set.
func (rs RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(rs))
	for role, members := range rs {
		cp := make(map[string]bool, len(members))
		for addr, ok := range members {
			cp[addr] = ok
		}
		out[role] = cp
	}
	return out
}
