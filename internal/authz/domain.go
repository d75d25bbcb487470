package authz

import (
	"time"

	"github.com/google/uuid"
)

// RoleScope distinguishes where a role template may be assigned.
type RoleScope string

const (
	// RoleScopeSystem templates attach directly to users.
	RoleScopeSystem RoleScope = "system"
	// RoleScopeAccount templates attach to account memberships.
	RoleScopeAccount RoleScope = "account"
)

// Valid reports whether the role scope is recognised.
func (s RoleScope) Valid() bool {
	return s == RoleScopeSystem || s == RoleScopeAccount
}

// RoleTemplate is a named, reusable bundle of permission tuples.
// InheritAll marks the super-admin escape hatch: the template matches
// every resource and action regardless of its tuple list.
type RoleTemplate struct {
	ID          uuid.UUID
	Name        string
	Description string
	Scope       RoleScope
	InheritAll  bool
	Tuples      []Tuple
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MembershipGrant is the joined read model of one account membership:
// the account it anchors to and every role template assigned through it.
type MembershipGrant struct {
	MembershipID uuid.UUID
	AccountID    uuid.UUID
	Templates    []RoleTemplate
}

// Grants is everything the resolver needs, pre-loaded: the user's system
// role templates, all membership grants, and the target account's parent
// chain ordered target first, root last. Resolution itself is a pure
// computation over this snapshot.
type Grants struct {
	System      []RoleTemplate
	Memberships []MembershipGrant
	Ancestors   []uuid.UUID
}
