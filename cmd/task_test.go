package cmd

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/search"
)

// resetTaskFlags restores the flag variables to their registered defaults.
func resetTaskFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		listPage, listPerPage = 1, search.DefaultPerPage
		listSort, listTitle, listStatus, listPriority, listLabel = "", "", "", "", ""
		listOperator, listFrom, listTo = "", "", ""
		taskTitle, taskStatus, taskPriority, taskLabel = "", "", "", ""
		addStatus, addPriority, addLabel = "todo", "low", "bug"
	}
	reset()
	t.Cleanup(reset)
}

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	ui.Out = &buf
	return &buf
}

func TestListValues_OmitsDefaults(t *testing.T) {
	resetTaskFlags(t)
	assert.Empty(t, listValues())

	listPage = 2
	listStatus = "todo.done"
	listFrom = "2024-04-01"
	v := listValues()
	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "todo.done", v.Get("status"))
	assert.Equal(t, "2024-04-01", v.Get("from"))
	assert.False(t, v.Has("per_page"))
}

func TestTaskAddAndList(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)
	ctx := context.Background()

	require.NoError(t, taskAddRun(ctx, "Write the release notes"))
	addLabel = "documentation"
	require.NoError(t, taskAddRun(ctx, "Document the API"))

	out := captureOut(t)
	require.NoError(t, taskListRun(ctx))
	assert.Contains(t, out.String(), "Write the release notes")
	assert.Contains(t, out.String(), "TASK-0002")
	assert.Contains(t, out.String(), "Page 1 of 1")

	out.Reset()
	listLabel = "documentation"
	require.NoError(t, taskListRun(ctx))
	assert.Contains(t, out.String(), "Document the API")
	assert.NotContains(t, out.String(), "Write the release notes")
}

func TestTaskList_Pagination(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)
	ctx := context.Background()

	for i := range 12 {
		require.NoError(t, taskAddRun(ctx, fmt.Sprintf("Task %02d", i)))
	}

	out := captureOut(t)
	listPage = 2
	require.NoError(t, taskListRun(ctx))
	assert.Contains(t, out.String(), "Page 2 of 2")
}

func TestTaskList_Empty(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)

	out := captureOut(t)
	require.NoError(t, taskListRun(context.Background()))
	assert.Contains(t, out.String(), "No results.")
}

func TestTaskList_InvalidParams(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)

	listStatus = "blocked"
	listOperator = "xor"
	err := taskListRun(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
	assert.Contains(t, err.Error(), "operator")
}

func TestTaskList_SampleSource(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)
	viper.Set("tasks.source", "sample")

	out := captureOut(t)
	require.NoError(t, taskListRun(context.Background()))
	assert.Contains(t, out.String(), "Task 1")
	assert.Contains(t, out.String(), "Task 2")
	assert.Contains(t, out.String(), "Page 1 of 1")
}

func TestTaskSource_Unknown(t *testing.T) {
	testEnv(t)
	viper.Set("tasks.source", "remote")

	s, err := getStore()
	require.NoError(t, err)
	_, err = taskSource(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tasks.source")
}

func TestTaskAdd_InvalidEnum(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)

	addPriority = "urgent"
	err := taskAddRun(context.Background(), "Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid priority")
}

func TestTaskUpdateShowDelete(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)
	ctx := context.Background()

	require.NoError(t, taskAddRun(ctx, "Fix login"))

	err := taskUpdateRun(ctx, "TASK-0001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no updates specified")

	taskStatus = "in-progress"
	require.NoError(t, taskUpdateRun(ctx, "TASK-0001"))

	s, err := getStore()
	require.NoError(t, err)
	got, err := s.GetTask(ctx, "TASK-0001")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, got.Status)
	assert.NotNil(t, got.UpdatedAt)

	out := captureOut(t)
	require.NoError(t, taskShowRun(ctx, "TASK-0001"))
	assert.Contains(t, out.String(), "Fix login")
	assert.Contains(t, out.String(), "Updated:")
	assert.Contains(t, out.String(), got.ID)

	require.NoError(t, taskDeleteRun(ctx, got.ID))
	err = taskShowRun(ctx, "TASK-0001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task not found")
}

func TestTaskDelete_DryRun(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)
	ctx := context.Background()
	require.NoError(t, taskAddRun(ctx, "Keep me"))

	dryRun = true
	ui.DryRun = true
	t.Cleanup(func() { dryRun = false })

	require.NoError(t, taskDeleteRun(ctx, "TASK-0001"))

	s, err := getStore()
	require.NoError(t, err)
	_, err = s.GetTask(ctx, "TASK-0001")
	assert.NoError(t, err)
}
