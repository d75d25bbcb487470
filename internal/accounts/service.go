package accounts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	Create(ctx context.Context, name string, parentID *uuid.UUID) (Account, error)
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Subtree(ctx context.Context, id uuid.UUID) ([]Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service handles account business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new account, optionally nested under a parent.
func (s *Service) Create(ctx context.Context, name string, parentID *uuid.UUID) (Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, fmt.Errorf("%w: account name required", httpx.ErrValidation)
	}
	return s.repo.Create(ctx, name, parentID)
}

// Get fetches an account.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// Subtree returns the account and all of its descendants.
func (s *Service) Subtree(ctx context.Context, id uuid.UUID) ([]Account, error) {
	return s.repo.Subtree(ctx, id)
}

// Delete removes an account without children or members.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
