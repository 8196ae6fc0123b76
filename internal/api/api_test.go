package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/query"
	"github.com/joescharf/tasks/internal/store"
)

func setupTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	return NewServer(s, nil), s
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListTasks_Empty(t *testing.T) {
	srv, _ := setupTestServer(t)
	w := do(t, srv.Router(), "GET", "/api/v1/tasks", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"pageCount":0}`, w.Body.String())
}

func TestListTasks_InvalidParams(t *testing.T) {
	srv, _ := setupTestServer(t)
	w := do(t, srv.Router(), "GET", "/api/v1/tasks?per_page=500", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "per_page")
}

func TestListTasks_SampleSource(t *testing.T) {
	_, s := setupTestServer(t)
	srv := NewServer(s, query.SampleSource{})

	w := do(t, srv.Router(), "GET", "/api/v1/tasks?page=7", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page models.TaskPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.PageCount)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Task 1", page.Data[0].TitleOrEmpty())
}

func TestTaskCRUD_API(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	// Create
	w := do(t, router, "POST", "/api/v1/tasks", `{"title":"Ship it","priority":"high","label":"feature"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Ship it", created.TitleOrEmpty())
	assert.Equal(t, models.TaskStatusTodo, created.Status)
	assert.Equal(t, models.TaskPriorityHigh, created.Priority)
	assert.Equal(t, "TASK-0001", created.CodeOrEmpty())

	// Get by code
	w = do(t, router, "GET", "/api/v1/tasks/TASK-0001", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Update
	w = do(t, router, "PUT", "/api/v1/tasks/"+created.ID, `{"status":"done"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, models.TaskStatusDone, updated.Status)
	assert.Equal(t, "Ship it", updated.TitleOrEmpty())
	assert.NotNil(t, updated.UpdatedAt)

	// List
	w = do(t, router, "GET", "/api/v1/tasks?status=done", "")
	var page models.TaskPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.PageCount)

	// Delete
	w = do(t, router, "DELETE", "/api/v1/tasks/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, "GET", "/api/v1/tasks/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTask_Validation(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "POST", "/api/v1/tasks", `{"status":"blocked"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", "/api/v1/tasks", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateUpdate_DuplicateCode(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	w := do(t, router, "POST", "/api/v1/tasks", `{"code":"T1","title":"First"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, "POST", "/api/v1/tasks", `{"code":"T1","title":"Again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "conflict")

	w = do(t, router, "POST", "/api/v1/tasks", `{"code":"T2","title":"Second"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, router, "PUT", "/api/v1/tasks/T2", `{"code":"T1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateDelete_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t)
	router := srv.Router()

	assert.Equal(t, http.StatusNotFound, do(t, router, "PUT", "/api/v1/tasks/nope", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, "DELETE", "/api/v1/tasks/nope", "").Code)
}

func TestBulkEndpoints(t *testing.T) {
	srv, s := setupTestServer(t)
	router := srv.Router()
	ctx := context.Background()

	a := &models.Task{Title: models.StringPtr("a")}
	b := &models.Task{Title: models.StringPtr("b")}
	require.NoError(t, s.CreateTask(ctx, a))
	require.NoError(t, s.CreateTask(ctx, b))

	body, _ := json.Marshal(map[string]any{"ids": []string{a.ID, b.ID}, "priority": "high"})
	w := do(t, router, "POST", "/api/v1/tasks/bulk-update", string(body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":2}`, w.Body.String())

	w = do(t, router, "POST", "/api/v1/tasks/bulk-update", `{"ids":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "POST", "/api/v1/tasks/bulk-update", `{"ids":["x"],"status":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, "GET", "/api/v1/tasks/facets", "")
	require.Equal(t, http.StatusOK, w.Code)
	var facets map[string]map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &facets))
	assert.Equal(t, 2, facets["priority"]["high"])

	body, _ = json.Marshal(map[string]any{"ids": []string{a.ID}})
	w = do(t, router, "POST", "/api/v1/tasks/bulk-delete", string(body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":1}`, w.Body.String())

	w = do(t, router, "POST", "/api/v1/tasks/bulk-delete", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t)
	w := do(t, srv.Router(), "OPTIONS", "/api/v1/tasks", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogRequests_PassesThrough(t *testing.T) {
	h := LogRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := do(t, h, "GET", "/", "")
	assert.Equal(t, http.StatusTeapot, w.Code)
}
