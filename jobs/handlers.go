package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tempus-hq/tempus/internal/authz"
)

// Invalidator drops a user's cached permission snapshots.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// HolderLister resolves which users currently hold a role template.
type HolderLister interface {
	TemplateHolders(ctx context.Context, templateID uuid.UUID) ([]uuid.UUID, error)
}

// PermissionUpserter writes one catalog entry into the permissions table.
type PermissionUpserter interface {
	EnsurePermission(ctx context.Context, resource, action, label string) error
}

// NewInvalidateUserHandler processes TaskInvalidateUser tasks.
func NewInvalidateUserHandler(inv Invalidator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InvalidateUserPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := inv.Invalidate(ctx, payload.UserID); err != nil {
			return fmt.Errorf("invalidate user %s: %w", payload.UserID, err)
		}
		logger.Info("snapshots invalidated", slog.String("user_id", payload.UserID.String()))
		return nil
	}
}

// NewTemplateChangedHandler processes TaskTemplateChanged tasks by fanning
// invalidation out to every holder of the template. Holders who fail keep
// the task retryable so no stale snapshot survives.
func NewTemplateChangedHandler(holders HolderLister, inv Invalidator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload TemplateChangedPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		users, err := holders.TemplateHolders(ctx, payload.TemplateID)
		if err != nil {
			return fmt.Errorf("list template holders: %w", err)
		}
		var failed int
		for _, userID := range users {
			if err := inv.Invalidate(ctx, userID); err != nil {
				logger.Warn("invalidate holder",
					slog.String("user_id", userID.String()),
					slog.Any("error", err))
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("template %s: %d of %d invalidations failed", payload.TemplateID, failed, len(users))
		}
		logger.Info("template fan-out complete",
			slog.String("template_id", payload.TemplateID.String()),
			slog.Int("holders", len(users)))
		return nil
	}
}

// NewCatalogSyncHandler processes TaskCatalogSync tasks. Runs on a cron so
// a freshly deployed binary's catalog lands in the database without a
// migration step.
func NewCatalogSyncHandler(store PermissionUpserter, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		entries := authz.Catalog()
		for _, entry := range entries {
			if err := store.EnsurePermission(ctx, entry.Resource, entry.Action, entry.Label); err != nil {
				return fmt.Errorf("ensure permission %s:%s: %w", entry.Resource, entry.Action, err)
			}
		}
		logger.Info("catalog synced", slog.Int("entries", len(entries)))
		return nil
	}
}
