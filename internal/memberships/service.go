package memberships

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/google/uuid"

	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

// RepositoryPort defines data access methods for memberships.
type RepositoryPort interface {
	CreateMembership(ctx context.Context, userID, accountID uuid.UUID, templateIDs []uuid.UUID) (Membership, error)
	GetMembership(ctx context.Context, id uuid.UUID) (Membership, error)
	DeleteMembership(ctx context.Context, id uuid.UUID) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]MemberView, error)
	AssignRole(ctx context.Context, membershipID, templateID uuid.UUID) error
	RevokeRole(ctx context.Context, membershipID, templateID uuid.UUID) error
	AssignSystemRole(ctx context.Context, userID, templateID uuid.UUID) error
	RevokeSystemRole(ctx context.Context, userID, templateID uuid.UUID) error
	ListSystemAssignments(ctx context.Context, userID uuid.UUID) ([]SystemAssignment, error)
}

// Invalidator drops cached permission snapshots after a grant change.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Enqueuer schedules a background snapshot invalidation. Used as the
// durable fallback when the in-process invalidation fails.
type Enqueuer interface {
	EnqueueInvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// Service orchestrates membership and role assignment mutations. Every
// mutation invalidates the affected user's snapshots so the next check
// resolves fresh grants.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	enqueuer    Enqueuer
	logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator, enqueuer Enqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, enqueuer: enqueuer, logger: logger}
}

// Enroll creates a membership with optional initial roles.
func (s *Service) Enroll(ctx context.Context, userID, accountID uuid.UUID, templateIDs []uuid.UUID) (Membership, error) {
	if userID == uuid.Nil || accountID == uuid.Nil {
		return Membership{}, fmt.Errorf("%w: user and account ids required", httpx.ErrValidation)
	}
	m, err := s.repo.CreateMembership(ctx, userID, accountID, templateIDs)
	if err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx, userID)
	return m, nil
}

// Withdraw removes a membership and its role assignments.
func (s *Service) Withdraw(ctx context.Context, membershipID uuid.UUID) error {
	m, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMembership(ctx, membershipID); err != nil {
		return err
	}
	s.invalidate(ctx, m.UserID)
	return nil
}

// ListMembers returns the account's members.
func (s *Service) ListMembers(ctx context.Context, accountID uuid.UUID) ([]MemberView, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// GrantRole attaches a template to a membership.
func (s *Service) GrantRole(ctx context.Context, membershipID, templateID uuid.UUID) error {
	m, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, membershipID, templateID); err != nil {
		return err
	}
	s.invalidate(ctx, m.UserID)
	return nil
}

// RevokeRole detaches a template from a membership.
func (s *Service) RevokeRole(ctx context.Context, membershipID, templateID uuid.UUID) error {
	m, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return err
	}
	if err := s.repo.RevokeRole(ctx, membershipID, templateID); err != nil {
		return err
	}
	s.invalidate(ctx, m.UserID)
	return nil
}

// GrantSystemRole attaches a template directly to a user.
func (s *Service) GrantSystemRole(ctx context.Context, userID, templateID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("%w: user id required", httpx.ErrValidation)
	}
	if err := s.repo.AssignSystemRole(ctx, userID, templateID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RevokeSystemRole removes a user's direct template assignment. Revoking
// the last inherit-all assignment strips universal access on the very next
// resolution.
func (s *Service) RevokeSystemRole(ctx context.Context, userID, templateID uuid.UUID) error {
	if err := s.repo.RevokeSystemRole(ctx, userID, templateID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// ListSystemRoles returns the user's direct assignments.
func (s *Service) ListSystemRoles(ctx context.Context, userID uuid.UUID) ([]SystemAssignment, error) {
	return s.repo.ListSystemAssignments(ctx, userID)
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	err := s.invalidator.Invalidate(ctx, userID)
	if err == nil {
		return
	}
	if s.logger != nil {
		s.logger.Error("invalidate snapshots", slog.String("user", userID.String()), slog.Any("error", err))
	}
	if s.enqueuer == nil {
		return
	}
	// The grant change is already committed; hand the bump to the worker so
	// a stale snapshot cannot outlive a transient cache failure.
	if err := s.enqueuer.EnqueueInvalidateUser(ctx, userID); err != nil && s.logger != nil {
		s.logger.Error("enqueue invalidation", slog.String("user", userID.String()), slog.Any("error", err))
	}
}
