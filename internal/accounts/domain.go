// Package accounts manages tenant accounts. Accounts form a tree: each has
// at most one parent, assigned once at creation, so the hierarchy never
// cycles.
package accounts

import (
	"time"

	"github.com/google/uuid"
)

// Account is one tenant.
type Account struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
