package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/query"
	"github.com/joescharf/tasks/internal/search"
	"github.com/joescharf/tasks/internal/store"
)

// gatedSource answers with the sample page once release is closed.
type gatedSource struct{ release chan struct{} }

func (g gatedSource) ListTasks(ctx context.Context, p search.Params) (models.TaskPage, error) {
	select {
	case <-g.release:
		return query.SamplePage(), nil
	case <-ctx.Done():
		return models.TaskPage{}, ctx.Err()
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newRouter(t *testing.T, opts Options) http.Handler {
	t.Helper()
	h, err := NewHandler(opts)
	require.NoError(t, err)
	router, err := h.Router()
	require.NoError(t, err)
	return router
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewHandler_RequiresSource(t *testing.T) {
	_, err := NewHandler(Options{})
	assert.Error(t, err)
}

func TestIndex_SampleSource(t *testing.T) {
	router := newRouter(t, Options{Source: query.SampleSource{}})

	w := get(t, router, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Contains(t, body, `class="shell gap-2"`)
	assert.Contains(t, body, "date-range-picker")
	assert.Contains(t, body, "ml-auto w-56 sm:w-60")
	assert.Contains(t, body, "Task 1")
	assert.Contains(t, body, "Task 2")
	assert.Contains(t, body, "In Progress")
	assert.Contains(t, body, "April 26, 2024")
	assert.Contains(t, body, "Page 1 of 1")
	assert.Contains(t, body, "</html>")
}

func TestIndex_TasksPath(t *testing.T) {
	router := newRouter(t, Options{Source: query.SampleSource{}})
	w := get(t, router, "/tasks?sort=title.asc")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/tasks?sort=title.desc"`)
}

func TestIndex_ShowsSkeletonWhilePending(t *testing.T) {
	src := gatedSource{release: make(chan struct{})}
	router := newRouter(t, Options{Source: src})

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(src.release)
	}()

	w := get(t, router, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, w.Flushed)

	body := w.Body.String()
	fallback := strings.Index(body, `id="tasks-fallback"`)
	table := strings.Index(body, `id="tasks-table"`)
	require.NotEqual(t, -1, fallback, "skeleton should be rendered")
	require.NotEqual(t, -1, table, "table should be streamed")
	assert.Less(t, fallback, table)
	assert.Contains(t, body, "data-table-skeleton shrink-zero")
	// 5 skeleton headers, 10x5 skeleton cells, then the 5 real column headers.
	assert.Equal(t, 60, strings.Count(body, `style="width: `))
	assert.Contains(t, body, "width: 40rem")
	assert.Equal(t, 1, strings.Count(body, "skeleton-search"))
	assert.Equal(t, 2, strings.Count(body, "skeleton-filter"))
	assert.Contains(t, body, "Task 1")
}

func TestIndex_FetchTimeout(t *testing.T) {
	src := gatedSource{release: make(chan struct{})}
	router := newRouter(t, Options{Source: src, FetchTimeout: 20 * time.Millisecond})

	w := get(t, router, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to load tasks")
	assert.NotContains(t, w.Body.String(), "Task 1")
}

func TestIndex_InvalidParams(t *testing.T) {
	router := newRouter(t, Options{Source: query.SampleSource{}})

	w := get(t, router, "/?page=0&status=blocked")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Invalid search parameters")
	assert.Contains(t, body, "invalid page")
	assert.Contains(t, body, "invalid status")
	assert.NotContains(t, body, "Task 1")
}

func TestIndex_FeatureFlags(t *testing.T) {
	router := newRouter(t, Options{Source: query.SampleSource{}})

	w := get(t, router, "/")
	body := w.Body.String()
	assert.NotContains(t, body, `name="operator"`)
	assert.NotContains(t, body, "floating-bar")

	w = get(t, router, "/?flags=advancedFilter.floatingBar")
	body = w.Body.String()
	assert.Contains(t, body, `name="operator"`)
	assert.Contains(t, body, "floating-bar")
	assert.Contains(t, body, `name="ids" value="1"`)
	assert.Contains(t, body, `data-flags="advancedFilter floatingBar"`)
}

func TestIndex_ConfiguredFlagsCanBeDisabled(t *testing.T) {
	router := newRouter(t, Options{Source: query.SampleSource{}, Flags: Flags{FloatingBar: true}})

	assert.Contains(t, get(t, router, "/").Body.String(), "floating-bar")
	assert.NotContains(t, get(t, router, "/?flags=").Body.String(), "floating-bar")
}

func TestIndex_StoreSourcePagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, s.CreateTask(ctx, &models.Task{
			Title:     models.StringPtr("Seeded task"),
			Status:    models.TaskStatusTodo,
			Priority:  models.TaskPriorityHigh,
			Label:     models.TaskLabelFeature,
			CreatedAt: time.Date(2024, 4, 1, 9, 0, 0, 0, time.Local).Add(time.Duration(i) * time.Hour),
		}))
	}

	router := newRouter(t, Options{Source: s, Store: s})

	w := get(t, router, "/?page=2")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Page 2 of 3")
	assert.Equal(t, 10, strings.Count(body, "<tr data-id="))
	assert.Contains(t, body, `href="/?page=3"`)
	assert.Contains(t, body, `href="/?page=1"`)
	assert.Contains(t, body, "Todo (25)")

	w = get(t, router, "/?status=done")
	body = w.Body.String()
	assert.Contains(t, body, "No results.")
	assert.Contains(t, body, "Page 1 of 1")
	assert.Contains(t, body, "Reset")
}

func TestDateRangePicker_PreservesParams(t *testing.T) {
	router := newRouter(t, Options{Source: query.SampleSource{}})

	w := get(t, router, "/?page=3&sort=title.asc&from=2024-04-01&to=2024-04-30")
	body := w.Body.String()
	assert.Contains(t, body, `<input type="hidden" name="sort" value="title.asc">`)
	assert.NotContains(t, body, `<input type="hidden" name="page"`)
	assert.Contains(t, body, `name="from" value="2024-04-01"`)
	assert.Contains(t, body, `name="to" value="2024-04-30"`)
	assert.Contains(t, body, `href="/?sort=title.asc">Clear`)
}

func TestBulk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := &models.Task{Title: models.StringPtr("Bulk me")}
	require.NoError(t, s.CreateTask(ctx, task))

	router := newRouter(t, Options{Source: s, Store: s})

	form := url.Values{"ids": {task.ID}, "action": {"status:done"}, "return": {"/?status=todo"}}
	req := httptest.NewRequest("POST", "/tasks/bulk", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/?status=todo", w.Header().Get("Location"))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, got.Status)

	form = url.Values{"ids": {task.ID}, "action": {"delete"}, "return": {"//evil.example"}}
	req = httptest.NewRequest("POST", "/tasks/bulk", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "/", w.Header().Get("Location"))

	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBulk_ReadOnlySource(t *testing.T) {
	router := newRouter(t, Options{Source: query.SampleSource{}})
	req := httptest.NewRequest("POST", "/tasks/bulk", strings.NewReader("ids=1&action=delete"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestApplyBulk_UnknownAction(t *testing.T) {
	s := newTestStore(t)
	_, err := applyBulk(context.Background(), s, []string{"x"}, "archive")
	assert.Error(t, err)
	_, err = applyBulk(context.Background(), s, []string{"x"}, "status:blocked")
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	router := newRouter(t, Options{Source: query.SampleSource{}})
	w := get(t, router, "/static/app.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ".shell")
}

func TestSkeletonProps_Cells(t *testing.T) {
	s := SkeletonProps{ColumnCount: 3, CellWidths: []string{"4rem"}}
	assert.Equal(t, []string{"4rem", "auto", "auto"}, s.Cells())
	assert.Len(t, TasksSkeleton.Rows(), 10)
}

func TestParseFlags(t *testing.T) {
	f := ParseFlags([]string{"floatingBar", "bogus"})
	assert.Equal(t, Flags{FloatingBar: true}, f)
	assert.Equal(t, []string{"floatingBar"}, f.Names())
}
