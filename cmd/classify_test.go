package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tasks/internal/models"
)

func TestClassifyTaskLabel(t *testing.T) {
	tests := []struct {
		title    string
		expected models.TaskLabel
	}{
		// Bug keywords
		{"Fix login bug", models.TaskLabelBug},
		{"fix broken authentication", models.TaskLabelBug},
		{"Crash on startup", models.TaskLabelBug},
		{"Error handling in API", models.TaskLabelBug},
		{"Login fails intermittently", models.TaskLabelBug},
		{"Upload not working", models.TaskLabelBug},
		{"Issue with dashboard loading", models.TaskLabelBug},

		// Documentation keywords
		{"Document the export API", models.TaskLabelDocumentation},
		{"Update README install steps", models.TaskLabelDocumentation},
		{"Fix typo in docs", models.TaskLabelDocumentation},

		// Enhancement keywords
		{"Refactor database layer", models.TaskLabelEnhancement},
		{"Improve search performance", models.TaskLabelEnhancement},
		{"Clean up test fixtures", models.TaskLabelEnhancement},

		// Feature (default)
		{"Add dark mode", models.TaskLabelFeature},
		{"Implement user profiles", models.TaskLabelFeature},
		{"Support CSV export", models.TaskLabelFeature},

		// "fix" at end of string
		{"Minor cosmetic button fix", models.TaskLabelBug},

		// Bug takes precedence over enhancement
		{"Fix the migration script", models.TaskLabelBug},
		{"Fix cleanup task", models.TaskLabelBug},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyTaskLabel(tt.title))
		})
	}
}

func TestClassifyTaskPriority(t *testing.T) {
	tests := []struct {
		title    string
		expected models.TaskPriority
	}{
		// High priority
		{"Critical: database corruption", models.TaskPriorityHigh},
		{"Urgent fix needed for auth", models.TaskPriorityHigh},
		{"Blocker for release", models.TaskPriorityHigh},
		{"App crash on login", models.TaskPriorityHigh},
		{"Security vulnerability in API", models.TaskPriorityHigh},
		{"P1: degraded performance", models.TaskPriorityHigh},

		// Low priority
		{"Minor UI alignment issue", models.TaskPriorityLow},
		{"Nice to have: dark mode toggle animation", models.TaskPriorityLow},
		{"Trivial typo in tooltip", models.TaskPriorityLow},
		{"Clean up old log files", models.TaskPriorityLow},

		// Medium (default)
		{"Add user profiles", models.TaskPriorityMedium},
		{"Update documentation", models.TaskPriorityMedium},

		// High takes precedence over low
		{"Critical cleanup needed", models.TaskPriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyTaskPriority(tt.title))
		})
	}
}

func TestClassify_FallsBackToKeywords(t *testing.T) {
	testEnv(t)

	task := &models.Task{Title: models.StringPtr("Critical crash on save")}
	c, err := classify(context.Background(), nil, task)
	require.NoError(t, err)
	assert.Equal(t, models.TaskLabelBug, c.Label)
	assert.Equal(t, models.TaskPriorityHigh, c.Priority)

	_, err = classify(context.Background(), nil, &models.Task{})
	assert.Error(t, err)
}

func TestClassifyRun_Apply(t *testing.T) {
	testEnv(t)
	resetTaskFlags(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	ctx := context.Background()

	addLabel = "feature"
	require.NoError(t, taskAddRun(ctx, "Improve startup time"))

	classifyApply = true
	t.Cleanup(func() { classifyApply = false })
	require.NoError(t, classifyRun(ctx, "TASK-0001"))

	s, err := getStore()
	require.NoError(t, err)
	got, err := s.GetTask(ctx, "TASK-0001")
	require.NoError(t, err)
	assert.Equal(t, models.TaskLabelEnhancement, got.Label)
	assert.Equal(t, models.TaskPriorityMedium, got.Priority)
}
