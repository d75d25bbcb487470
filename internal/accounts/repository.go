package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = "id, name, parent_id, created_at, updated_at"

// Create inserts a new account under the optional parent.
func (r *Repository) Create(ctx context.Context, name string, parentID *uuid.UUID) (Account, error) {
	account := Account{ID: uuid.New(), Name: name, ParentID: parentID}
	now := time.Now().UTC()
	account.CreatedAt, account.UpdatedAt = now, now
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, name, parent_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Name, account.ParentID, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Account{}, fmt.Errorf("%w: parent account", httpx.ErrNotFound)
		}
		return Account{}, err
	}
	return account, nil
}

// Get fetches an account by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.ParentID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: account", httpx.ErrNotFound)
		}
		return Account{}, err
	}
	return a, nil
}

// List returns all accounts ordered by name.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// Subtree returns the account and every descendant, breadth ordered.
func (r *Repository) Subtree(ctx context.Context, id uuid.UUID) ([]Account, error) {
	const query = `
		WITH RECURSIVE tree AS (
			SELECT id, name, parent_id, created_at, updated_at, 0 AS depth
			FROM accounts WHERE id = $1
			UNION ALL
			SELECT a.id, a.name, a.parent_id, a.created_at, a.updated_at, t.depth + 1
			FROM accounts a
			JOIN tree t ON a.parent_id = t.id
			WHERE t.depth < 32
		)
		SELECT id, name, parent_id, created_at, updated_at FROM tree ORDER BY depth, name`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// Delete removes an account. Accounts with children or memberships are
// protected by foreign keys and surface as in-use conflicts.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: account has children or members", httpx.ErrInUse)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account", httpx.ErrNotFound)
	}
	return nil
}

func scanAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.ParentID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
