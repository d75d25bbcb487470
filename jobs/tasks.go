package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvalidateUser drops cached permission snapshots for one user.
	TaskInvalidateUser = "authz:invalidate_user"
	// TaskTemplateChanged fans invalidation out to every holder of a
	// role template after its tuples change.
	TaskTemplateChanged = "authz:template_changed"
	// TaskCatalogSync reconciles the permissions table with the
	// compiled-in catalog.
	TaskCatalogSync = "authz:catalog_sync"
)

// InvalidateUserPayload identifies the user whose snapshots are stale.
type InvalidateUserPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// TemplateChangedPayload identifies the mutated role template.
type TemplateChangedPayload struct {
	TemplateID uuid.UUID `json:"template_id"`
}

// NewInvalidateUserTask constructs an Asynq task.
func NewInvalidateUserTask(payload InvalidateUserPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvalidateUser, data), nil
}

// NewTemplateChangedTask constructs an Asynq task.
func NewTemplateChangedTask(payload TemplateChangedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTemplateChanged, data), nil
}

// NewCatalogSyncTask constructs an Asynq task. The payload is empty; the
// catalog is compiled in.
func NewCatalogSyncTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogSync, nil)
}
