// Package roles manages role templates: named permission bundles assigned
// to users system-wide or through account memberships.
package roles

import (
	"time"

	"github.com/google/uuid"

	"github.com/tempus-hq/tempus/internal/authz"
)

// Template is the managed form of a role template. Templates are immutable
// at use time: the resolver reads whatever tuples the template carries at
// the moment of resolution, so edits take effect for all holders at once.
type Template struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Scope       authz.RoleScope `json:"scope"`
	InheritAll  bool            `json:"inherit_all"`
	Tuples      []authz.Tuple   `json:"tuples"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
