package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// ErrStoreUnavailable wraps data-store failures during resolution. A check
// that cannot determine its answer surfaces this error instead of false so
// callers can tell an outage from a denial.
var ErrStoreUnavailable = errors.New("authz: store unavailable")

// Store exposes the joined read shapes the resolver consumes.
type Store interface {
	// SystemGrants returns the user's system role templates with tuples.
	SystemGrants(ctx context.Context, userID uuid.UUID) ([]RoleTemplate, error)
	// MembershipGrants returns all memberships with templates and tuples.
	MembershipGrants(ctx context.Context, userID uuid.UUID) ([]MembershipGrant, error)
	// AncestorChain returns the account's parent chain, target first, root
	// last. Unknown accounts yield an empty chain, not an error.
	AncestorChain(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
}

// Service answers permission checks against the store, optionally through
// the snapshot cache. It never writes; checks are safe to run concurrently.
type Service struct {
	store     Store
	snapshots *Snapshots
	logger    *slog.Logger
}

// NewService constructs the authorization service. snapshots may be nil to
// resolve against the store on every call.
func NewService(store Store, snapshots *Snapshots, logger *slog.Logger) *Service {
	return &Service{store: store, snapshots: snapshots, logger: logger}
}

// Resolve computes the effective permission set for a user, scoped to an
// account when accountID is not uuid.Nil.
func (s *Service) Resolve(ctx context.Context, userID, accountID uuid.UUID) (Set, error) {
	if userID == uuid.Nil {
		return Set{}, fmt.Errorf("%w: user id required", httpx.ErrValidation)
	}
	loader := func(ctx context.Context) (Set, error) {
		return s.resolve(ctx, userID, accountID)
	}
	if s.snapshots == nil {
		return loader(ctx)
	}
	set, err := s.snapshots.Fetch(ctx, userID, accountID, loader)
	if err != nil && !errors.Is(err, ErrStoreUnavailable) && !errors.Is(err, httpx.ErrValidation) {
		// Cache trouble is not an authorization outage; fall back to the store.
		if s.logger != nil {
			s.logger.Warn("authz snapshot fetch", slog.Any("error", err))
		}
		return loader(ctx)
	}
	return set, err
}

// HasPermission reports whether the user may perform action on resource,
// within the given account when accountID is not uuid.Nil. Unknown users
// and accounts deny; malformed input and store failures error.
func (s *Service) HasPermission(ctx context.Context, userID uuid.UUID, resource, action string, accountID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, fmt.Errorf("%w: user id required", httpx.ErrValidation)
	}
	if resource == "" || action == "" {
		return false, fmt.Errorf("%w: resource and action required", httpx.ErrValidation)
	}
	if !KnownAction(resource, action) {
		return false, fmt.Errorf("%w: unknown permission %s:%s", httpx.ErrValidation, resource, action)
	}
	set, err := s.Resolve(ctx, userID, accountID)
	if err != nil {
		return false, err
	}
	return set.Allows(resource, action), nil
}

// Invalidate orphans the user's cached snapshots. Called on any role
// assignment mutation affecting the user and on re-authentication.
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Invalidate(ctx, userID)
}

func (s *Service) resolve(ctx context.Context, userID, accountID uuid.UUID) (Set, error) {
	system, err := s.store.SystemGrants(ctx, userID)
	if err != nil {
		return Set{}, fmt.Errorf("%w: system grants: %v", ErrStoreUnavailable, err)
	}
	g := Grants{System: system}
	for _, tpl := range system {
		if tpl.InheritAll {
			return UniversalSet(), nil
		}
	}
	if accountID != uuid.Nil {
		g.Memberships, err = s.store.MembershipGrants(ctx, userID)
		if err != nil {
			return Set{}, fmt.Errorf("%w: membership grants: %v", ErrStoreUnavailable, err)
		}
		g.Ancestors, err = s.store.AncestorChain(ctx, accountID)
		if err != nil {
			return Set{}, fmt.Errorf("%w: ancestor chain: %v", ErrStoreUnavailable, err)
		}
	}
	return ResolveGrants(g, accountID), nil
}
