package query

import (
	"context"
	"time"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/search"
)

// SampleSource serves a fixed two-task page regardless of the parameters.
// It stands in for the store when tasks.source is "sample".
type SampleSource struct{}

func (SampleSource) ListTasks(ctx context.Context, _ search.Params) (models.TaskPage, error) {
	if err := ctx.Err(); err != nil {
		return models.TaskPage{}, err
	}
	return SamplePage(), nil
}

// SamplePage returns a fresh copy of the fixture.
func SamplePage() models.TaskPage {
	updated := time.Date(2024, 4, 26, 8, 30, 0, 0, time.Local)
	return models.TaskPage{
		Data: []*models.Task{
			{
				ID:        "1",
				Code:      models.StringPtr("T1"),
				Title:     models.StringPtr("Task 1"),
				Status:    models.TaskStatusTodo,
				Priority:  models.TaskPriorityLow,
				Label:     models.TaskLabelBug,
				CreatedAt: time.Date(2024, 4, 26, 10, 0, 0, 0, time.Local),
			},
			{
				ID:        "2",
				Code:      models.StringPtr("T2"),
				Title:     models.StringPtr("Task 2"),
				Status:    models.TaskStatusInProgress,
				Priority:  models.TaskPriorityMedium,
				Label:     models.TaskLabelFeature,
				CreatedAt: time.Date(2024, 4, 25, 12, 0, 0, 0, time.Local),
				UpdatedAt: &updated,
			},
		},
		PageCount: 1,
	}
}
