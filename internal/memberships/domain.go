// Package memberships manages the join entities that attach users to
// accounts and role templates to both memberships and users.
package memberships

import (
	"time"

	"github.com/google/uuid"
)

// Membership binds one user to one account. A user holds at most one
// membership per account.
type Membership struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	AccountID uuid.UUID `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleAssignment binds a role template to a membership.
type RoleAssignment struct {
	MembershipID uuid.UUID `json:"membership_id"`
	TemplateID   uuid.UUID `json:"template_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// SystemAssignment binds a role template directly to a user, bypassing
// any account.
type SystemAssignment struct {
	UserID     uuid.UUID `json:"user_id"`
	TemplateID uuid.UUID `json:"template_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// MemberView is the listing shape for an account's members.
type MemberView struct {
	Membership
	TemplateIDs []uuid.UUID `json:"template_ids"`
}
