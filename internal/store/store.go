package store

import (
	"context"
	"errors"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/search"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with an existing task code.
var ErrConflict = errors.New("conflict")

// TaskPatch holds the fields a bulk update may change. Nil fields are left alone.
type TaskPatch struct {
	Status   *models.TaskStatus
	Priority *models.TaskPriority
	Label    *models.TaskLabel
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.Label == nil
}

// Store defines the persistence interface for tasks.
type Store interface {
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, idOrCode string) (*models.Task, error)
	ListTasks(ctx context.Context, params search.Params) (models.TaskPage, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	BulkUpdateTasks(ctx context.Context, ids []string, patch TaskPatch) (int64, error)
	BulkDeleteTasks(ctx context.Context, ids []string) (int64, error)
	CountTasksBy(ctx context.Context, field string) (map[string]int, error)
	TaskTitleExists(ctx context.Context, title string) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
