package roles

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/google/uuid"

	"github.com/tempus-hq/tempus/internal/authz"
	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// RepositoryPort defines data access methods for role templates.
type RepositoryPort interface {
	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (Template, error)
	CreateTemplate(ctx context.Context, t Template) (Template, error)
	UpdateTemplate(ctx context.Context, t Template) (Template, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

// Enqueuer schedules invalidation fan-out after template mutations.
type Enqueuer interface {
	EnqueueTemplateChanged(ctx context.Context, templateID uuid.UUID) error
}

// Service orchestrates role template management.
type Service struct {
	repo     RepositoryPort
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewService builds a Service instance. enqueuer may be nil when no worker
// is deployed; holders then rely on snapshot TTL expiry.
func NewService(repo RepositoryPort, enqueuer Enqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, enqueuer: enqueuer, logger: logger}
}

// List returns all templates.
func (s *Service) List(ctx context.Context) ([]Template, error) {
	return s.repo.ListTemplates(ctx)
}

// Get fetches one template.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

// Create validates and stores a new template.
func (s *Service) Create(ctx context.Context, in TemplateInput) (Template, error) {
	t, err := templateFromInput(in)
	if err != nil {
		return Template{}, err
	}
	return s.repo.CreateTemplate(ctx, t)
}

// Update replaces a template's definition. Every holder sees the new tuple
// set on their next resolution; cached snapshots are invalidated through
// the fan-out job.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in TemplateInput) (Template, error) {
	t, err := templateFromInput(in)
	if err != nil {
		return Template{}, err
	}
	t.ID = id
	updated, err := s.repo.UpdateTemplate(ctx, t)
	if err != nil {
		return Template{}, err
	}
	s.fanOut(ctx, id)
	return updated, nil
}

// Delete removes an unreferenced template. A template still held by any
// assignment is rejected with the in-use reason from the repository.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteTemplate(ctx, id)
}

func (s *Service) fanOut(ctx context.Context, templateID uuid.UUID) {
	if s.enqueuer == nil {
		return
	}
	if err := s.enqueuer.EnqueueTemplateChanged(ctx, templateID); err != nil && s.logger != nil {
		s.logger.Error("enqueue template changed", slog.Any("error", err))
	}
}

func templateFromInput(in TemplateInput) (Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Template{}, fmt.Errorf("%w: template name required", httpx.ErrValidation)
	}
	scope := authz.RoleScope(in.Scope)
	if !scope.Valid() {
		return Template{}, fmt.Errorf("%w: invalid template scope %q", httpx.ErrValidation, in.Scope)
	}
	tuples := in.tuples()
	for _, tuple := range tuples {
		if err := validateTuple(tuple); err != nil {
			return Template{}, err
		}
	}
	return Template{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Scope:       scope,
		InheritAll:  in.InheritAll,
		Tuples:      tuples,
	}, nil
}

// validateTuple admits catalog pairs plus wildcard positions; anything else
// is a malformed grant, not a deniable permission.
func validateTuple(t authz.Tuple) error {
	if !t.Scope.Valid() {
		return fmt.Errorf("%w: invalid tuple scope %q", httpx.ErrValidation, t.Scope)
	}
	switch {
	case t.Resource == authz.Wildcard && t.Action == authz.Wildcard:
		return nil
	case t.Resource == authz.Wildcard:
		return fmt.Errorf("%w: wildcard resource requires wildcard action", httpx.ErrValidation)
	case t.Action == authz.Wildcard:
		if !authz.KnownResource(t.Resource) {
			return fmt.Errorf("%w: unknown resource %q", httpx.ErrValidation, t.Resource)
		}
		return nil
	default:
		if !authz.KnownAction(t.Resource, t.Action) {
			return fmt.Errorf("%w: unknown permission %s:%s", httpx.ErrValidation, t.Resource, t.Action)
		}
		return nil
	}
}
