// Package query fetches task pages for the list views.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/search"
)

// Source lists tasks for a set of search parameters.
type Source interface {
	ListTasks(ctx context.Context, params search.Params) (models.TaskPage, error)
}

const (
	SourceStore  = "store"
	SourceSample = "sample"
)

// GetTasks starts fetching a page of tasks and returns without waiting.
// The settled value is logged at debug level.
func GetTasks(ctx context.Context, src Source, params search.Params) *Deferred[models.TaskPage] {
	return Go(ctx, func(ctx context.Context) (models.TaskPage, error) {
		start := time.Now()
		page, err := src.ListTasks(ctx, params)
		if err != nil {
			slog.Debug("task fetch failed", "error", err, "elapsed", time.Since(start))
			return models.TaskPage{}, fmt.Errorf("get tasks: %w", err)
		}
		slog.Debug("tasks resolved",
			"data", page.Data,
			"rows", len(page.Data),
			"page_count", page.PageCount,
			"params", params.Values().Encode(),
			"elapsed", time.Since(start),
		)
		return page, nil
	})
}
