package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempus-hq/tempus/internal/authz"
	"github.com/tempus-hq/tempus/internal/platform/db"
	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for role templates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const templateColumns = "id, name, description, scope, inherit_all, created_at, updated_at"

// ListTemplates returns every template ordered by name, tuples included.
func (r *Repository) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM role_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Scope, &t.InheritAll, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		index[t.ID] = len(templates)
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tupleRows, err := r.pool.Query(ctx, `SELECT template_id, resource, action, scope FROM role_template_tuples`)
	if err != nil {
		return nil, err
	}
	defer tupleRows.Close()
	for tupleRows.Next() {
		var (
			templateID uuid.UUID
			tuple      authz.Tuple
		)
		if err := tupleRows.Scan(&templateID, &tuple.Resource, &tuple.Action, &tuple.Scope); err != nil {
			return nil, err
		}
		if i, ok := index[templateID]; ok {
			templates[i].Tuples = append(templates[i].Tuples, tuple)
		}
	}
	return templates, tupleRows.Err()
}

// GetTemplate fetches one template with its tuples.
func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM role_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.Scope, &t.InheritAll, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, fmt.Errorf("%w: role template", httpx.ErrNotFound)
		}
		return Template{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT resource, action, scope FROM role_template_tuples WHERE template_id = $1`, id)
	if err != nil {
		return Template{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tuple authz.Tuple
		if err := rows.Scan(&tuple.Resource, &tuple.Action, &tuple.Scope); err != nil {
			return Template{}, err
		}
		t.Tuples = append(t.Tuples, tuple)
	}
	return t, rows.Err()
}

// CreateTemplate inserts a template and its tuples in one transaction.
func (r *Repository) CreateTemplate(ctx context.Context, t Template) (Template, error) {
	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO role_templates (id, name, description, scope, inherit_all, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.Name, t.Description, t.Scope, t.InheritAll, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return classifyPgError(err, "role template name already exists")
		}
		return insertTuples(ctx, tx, t.ID, t.Tuples)
	})
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

// UpdateTemplate replaces a template's fields and tuple set atomically.
func (r *Repository) UpdateTemplate(ctx context.Context, t Template) (Template, error) {
	t.UpdatedAt = time.Now().UTC()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE role_templates SET name = $2, description = $3, inherit_all = $4, updated_at = $5 WHERE id = $1`,
			t.ID, t.Name, t.Description, t.InheritAll, t.UpdatedAt)
		if err != nil {
			return classifyPgError(err, "role template name already exists")
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: role template", httpx.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_template_tuples WHERE template_id = $1`, t.ID); err != nil {
			return err
		}
		return insertTuples(ctx, tx, t.ID, t.Tuples)
	})
	if err != nil {
		return Template{}, err
	}
	return r.GetTemplate(ctx, t.ID)
}

// DeleteTemplate removes a template unless any assignment still references
// it. The usage count and the delete share one transaction so a concurrent
// grant cannot slip between them.
func (r *Repository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var refs int
		err := tx.QueryRow(ctx,
			`SELECT (SELECT COUNT(*) FROM system_role_assignments WHERE template_id = $1)
			      + (SELECT COUNT(*) FROM membership_role_assignments WHERE template_id = $1)`, id).
			Scan(&refs)
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: role template is assigned to %d holder(s); revoke assignments first", httpx.ErrInUse, refs)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM role_templates WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: role template", httpx.ErrNotFound)
		}
		return nil
	})
}

// EnsurePermission upserts one catalog entry into the permissions
// reference table. Used by the catalog sync job.
func (r *Repository) EnsurePermission(ctx context.Context, resource, action, label string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permissions (resource, action, label)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (resource, action) DO UPDATE SET label = EXCLUDED.label`,
		resource, action, label)
	return err
}

func insertTuples(ctx context.Context, tx pgx.Tx, templateID uuid.UUID, tuples []authz.Tuple) error {
	for _, tuple := range tuples {
		_, err := tx.Exec(ctx,
			`INSERT INTO role_template_tuples (template_id, resource, action, scope)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT DO NOTHING`,
			templateID, tuple.Resource, tuple.Action, tuple.Scope)
		if err != nil {
			return err
		}
	}
	return nil
}

func classifyPgError(err error, duplicateDetail string) error {
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
