package authz

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed reads for the resolver.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// SystemGrants returns every role template attached to the user through a
// system assignment, tuples included.
func (r *Repository) SystemGrants(ctx context.Context, userID uuid.UUID) ([]RoleTemplate, error) {
	const query = `
		SELECT rt.id, rt.name, rt.description, rt.scope, rt.inherit_all,
		       tt.resource, tt.action, tt.scope
		FROM system_role_assignments sra
		JOIN role_templates rt ON rt.id = sra.template_id
		LEFT JOIN role_template_tuples tt ON tt.template_id = rt.id
		WHERE sra.user_id = $1
		ORDER BY rt.id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []RoleTemplate
	var current *RoleTemplate
	for rows.Next() {
		var (
			tpl      RoleTemplate
			resource *string
			action   *string
			scope    *string
		)
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.Scope, &tpl.InheritAll, &resource, &action, &scope); err != nil {
			return nil, err
		}
		if current == nil || current.ID != tpl.ID {
			templates = append(templates, tpl)
			current = &templates[len(templates)-1]
		}
		if resource != nil && action != nil && scope != nil {
			current.Tuples = append(current.Tuples, Tuple{Resource: *resource, Action: *action, Scope: Scope(*scope)})
		}
	}
	return templates, rows.Err()
}

// MembershipGrants returns all of the user's memberships joined with their
// assigned role templates and tuples, grouped per membership.
func (r *Repository) MembershipGrants(ctx context.Context, userID uuid.UUID) ([]MembershipGrant, error) {
	const query = `
		SELECT m.id, m.account_id,
		       rt.id, rt.name, rt.description, rt.scope, rt.inherit_all,
		       tt.resource, tt.action, tt.scope
		FROM memberships m
		LEFT JOIN membership_role_assignments mra ON mra.membership_id = m.id
		LEFT JOIN role_templates rt ON rt.id = mra.template_id
		LEFT JOIN role_template_tuples tt ON tt.template_id = rt.id
		WHERE m.user_id = $1
		ORDER BY m.id, rt.id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []MembershipGrant
	var grant *MembershipGrant
	var tpl *RoleTemplate
	for rows.Next() {
		var (
			membershipID uuid.UUID
			accountID    uuid.UUID
			templateID   *uuid.UUID
			name         *string
			description  *string
			roleScope    *string
			inheritAll   *bool
			resource     *string
			action       *string
			tupleScope   *string
		)
		if err := rows.Scan(&membershipID, &accountID, &templateID, &name, &description, &roleScope, &inheritAll, &resource, &action, &tupleScope); err != nil {
			return nil, err
		}
		if grant == nil || grant.MembershipID != membershipID {
			grants = append(grants, MembershipGrant{MembershipID: membershipID, AccountID: accountID})
			grant = &grants[len(grants)-1]
			tpl = nil
		}
		if templateID == nil {
			continue
		}
		if tpl == nil || tpl.ID != *templateID {
			grant.Templates = append(grant.Templates, RoleTemplate{
				ID:          *templateID,
				Name:        *name,
				Description: *description,
				Scope:       RoleScope(*roleScope),
				InheritAll:  *inheritAll,
			})
			tpl = &grant.Templates[len(grant.Templates)-1]
		}
		if resource != nil && action != nil && tupleScope != nil {
			tpl.Tuples = append(tpl.Tuples, Tuple{Resource: *resource, Action: *action, Scope: Scope(*tupleScope)})
		}
	}
	return grants, rows.Err()
}

// AncestorChain walks the account tree upward with a single recursive
// query. The depth guard mirrors the resolver's visited set: parent links
// never cycle by construction, but a corrupted row must not hang the query.
func (r *Repository) AncestorChain(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	const query = `
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, 0 AS depth FROM accounts WHERE id = $1
			UNION ALL
			SELECT a.id, a.parent_id, c.depth + 1
			FROM accounts a
			JOIN chain c ON a.id = c.parent_id
			WHERE c.depth < 32
		)
		SELECT id FROM chain ORDER BY depth`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chain []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		chain = append(chain, id)
	}
	return chain, rows.Err()
}
