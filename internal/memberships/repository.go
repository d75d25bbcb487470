package memberships

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempus-hq/tempus/internal/platform/db"
	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for memberships and
// role assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateMembership inserts a membership together with its initial role
// assignments in one transaction, so a concurrent permission check never
// observes the membership without its roles.
func (r *Repository) CreateMembership(ctx context.Context, userID, accountID uuid.UUID, templateIDs []uuid.UUID) (Membership, error) {
	m := Membership{ID: uuid.New(), UserID: userID, AccountID: accountID, CreatedAt: time.Now().UTC()}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO memberships (id, user_id, account_id, created_at) VALUES ($1, $2, $3, $4)`,
			m.ID, m.UserID, m.AccountID, m.CreatedAt)
		if err != nil {
			return classifyPgError(err, "user is already a member of this account")
		}
		for _, templateID := range templateIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO membership_role_assignments (membership_id, template_id, created_at)
				 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				m.ID, templateID, m.CreatedAt)
			if err != nil {
				return classifyPgError(err, "role already assigned")
			}
		}
		return nil
	})
	if err != nil {
		return Membership{}, err
	}
	return m, nil
}

// GetMembership fetches a membership by ID.
func (r *Repository) GetMembership(ctx context.Context, id uuid.UUID) (Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, account_id, created_at FROM memberships WHERE id = $1`, id).
		Scan(&m.ID, &m.UserID, &m.AccountID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, fmt.Errorf("%w: membership", httpx.ErrNotFound)
		}
		return Membership{}, err
	}
	return m, nil
}

// DeleteMembership removes a membership; assignments cascade.
func (r *Repository) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: membership", httpx.ErrNotFound)
	}
	return nil
}

// ListByAccount returns the account's members with their template IDs.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]MemberView, error) {
	const query = `
		SELECT m.id, m.user_id, m.account_id, m.created_at, mra.template_id
		FROM memberships m
		LEFT JOIN membership_role_assignments mra ON mra.membership_id = m.id
		WHERE m.account_id = $1
		ORDER BY m.created_at, m.id`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []MemberView
	var current *MemberView
	for rows.Next() {
		var (
			m          Membership
			templateID *uuid.UUID
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.AccountID, &m.CreatedAt, &templateID); err != nil {
			return nil, err
		}
		if current == nil || current.ID != m.ID {
			members = append(members, MemberView{Membership: m})
			current = &members[len(members)-1]
		}
		if templateID != nil {
			current.TemplateIDs = append(current.TemplateIDs, *templateID)
		}
	}
	return members, rows.Err()
}

// AssignRole attaches a template to a membership. Assigning twice is a
// no-op.
func (r *Repository) AssignRole(ctx context.Context, membershipID, templateID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO membership_role_assignments (membership_id, template_id, created_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		membershipID, templateID, time.Now().UTC())
	return classifyPgError(err, "role already assigned")
}

// RevokeRole detaches a template from a membership.
func (r *Repository) RevokeRole(ctx context.Context, membershipID, templateID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM membership_role_assignments WHERE membership_id = $1 AND template_id = $2`,
		membershipID, templateID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role assignment", httpx.ErrNotFound)
	}
	return nil
}

// AssignSystemRole attaches a template directly to a user.
func (r *Repository) AssignSystemRole(ctx context.Context, userID, templateID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO system_role_assignments (user_id, template_id, created_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		userID, templateID, time.Now().UTC())
	return classifyPgError(err, "system role already assigned")
}

// RevokeSystemRole detaches a system template from a user.
func (r *Repository) RevokeSystemRole(ctx context.Context, userID, templateID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM system_role_assignments WHERE user_id = $1 AND template_id = $2`,
		userID, templateID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: system role assignment", httpx.ErrNotFound)
	}
	return nil
}

// ListSystemAssignments returns a user's direct template assignments.
func (r *Repository) ListSystemAssignments(ctx context.Context, userID uuid.UUID) ([]SystemAssignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, template_id, created_at FROM system_role_assignments WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []SystemAssignment
	for rows.Next() {
		var a SystemAssignment
		if err := rows.Scan(&a.UserID, &a.TemplateID, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// TemplateHolders returns every user holding the template, whether through
// a system assignment or a membership. Used by invalidation fan-out.
func (r *Repository) TemplateHolders(ctx context.Context, templateID uuid.UUID) ([]uuid.UUID, error) {
	const query = `
		SELECT user_id FROM system_role_assignments WHERE template_id = $1
		UNION
		SELECT m.user_id
		FROM membership_role_assignments mra
		JOIN memberships m ON m.id = mra.membership_id
		WHERE mra.template_id = $1`
	rows, err := r.pool.Query(ctx, query, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holders []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		holders = append(holders, id)
	}
	return holders, rows.Err()
}

func classifyPgError(err error, duplicateDetail string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", httpx.ErrDuplicate, duplicateDetail)
		case "23503":
			return fmt.Errorf("%w: referenced record missing", httpx.ErrNotFound)
		}
	}
	return err
}
