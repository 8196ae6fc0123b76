package search

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/tasks/internal/models"
)

func TestParse_Defaults(t *testing.T) {
	p, err := Parse(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, Sort{Column: "createdAt", Desc: true}, p.Sort)
	assert.Equal(t, OperatorAnd, p.Operator)
	assert.False(t, p.HasFilters())
	assert.Equal(t, 0, p.Offset())
}

func TestParse_AllFields(t *testing.T) {
	q, err := url.ParseQuery("page=3&per_page=20&sort=title.asc&title=+login+&status=todo.in-progress&priority=high&label=bug.feature&operator=or&from=2024-04-01&to=2024-04-30")
	require.NoError(t, err)

	p, err := Parse(q)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, Sort{Column: "title"}, p.Sort)
	assert.Equal(t, "login", p.Title)
	assert.Equal(t, []models.TaskStatus{models.TaskStatusTodo, models.TaskStatusInProgress}, p.Statuses)
	assert.Equal(t, []models.TaskPriority{models.TaskPriorityHigh}, p.Priorities)
	assert.Equal(t, []models.TaskLabel{models.TaskLabelBug, models.TaskLabelFeature}, p.Labels)
	assert.Equal(t, OperatorOr, p.Operator)
	require.NotNil(t, p.From)
	require.NotNil(t, p.To)
	assert.Equal(t, "2024-04-01", p.From.Format(DateLayout))
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local), *p.ToTime())
	assert.True(t, p.HasFilters())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"page zero", "page=0", "page"},
		{"page text", "page=abc", "page"},
		{"page past max", "page=9223372036854775807", "page"},
		{"page overflowing int", "page=99999999999999999999", "page"},
		{"per_page too big", "per_page=101", "per_page"},
		{"sort no direction", "sort=title", "sort"},
		{"sort unknown column", "sort=owner.asc", "sort"},
		{"sort bad direction", "sort=title.up", "sort"},
		{"unknown status", "status=todo.blocked", "status"},
		{"unknown priority", "priority=urgent", "priority"},
		{"unknown label", "label=chore", "label"},
		{"bad operator", "operator=xor", "operator"},
		{"bad from", "from=04/01/2024", "from"},
		{"reversed range", "from=2024-05-01&to=2024-04-01", "to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			p, err := Parse(q)
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, Default(), p)
		})
	}
}

func TestParse_MaxPage(t *testing.T) {
	q := url.Values{"page": {strconv.Itoa(MaxPage)}, "per_page": {"100"}}
	p, err := Parse(q)
	require.NoError(t, err)
	assert.Equal(t, MaxPage, p.Page)
	assert.Equal(t, (MaxPage-1)*100, p.Offset())
	assert.Positive(t, p.Offset())
}

func TestOffset_Saturates(t *testing.T) {
	p := Default()
	p.Page = math.MaxInt
	p.PerPage = 20
	assert.Equal(t, math.MaxInt, p.Offset())

	p.Page = 0
	assert.Equal(t, 0, p.Offset())
}

func TestParse_ReportsEveryField(t *testing.T) {
	q, _ := url.ParseQuery("page=-1&per_page=0")
	_, err := Parse(q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page")
	assert.Contains(t, err.Error(), "per_page")
}

func TestParse_RepeatedListKeys(t *testing.T) {
	q, _ := url.ParseQuery("status=todo&status=done&priority=&label=bug")
	p, err := Parse(q)
	require.NoError(t, err)
	assert.Equal(t, []models.TaskStatus{models.TaskStatusTodo, models.TaskStatusDone}, p.Statuses)
	assert.Empty(t, p.Priorities)
	assert.Equal(t, []models.TaskLabel{models.TaskLabelBug}, p.Labels)
}

func TestValues_RoundTrip(t *testing.T) {
	q, _ := url.ParseQuery("page=2&sort=priority.desc&status=done&operator=or&from=2024-04-25")
	p, err := Parse(q)
	require.NoError(t, err)

	again, err := Parse(p.Values())
	require.NoError(t, err)
	assert.Equal(t, p.Values().Encode(), again.Values().Encode())
	assert.Equal(t, "from=2024-04-25&operator=or&page=2&sort=priority.desc&status=done", p.Values().Encode())
}

func TestValues_OmitsDefaults(t *testing.T) {
	assert.Empty(t, Default().Values())
}

func TestWith(t *testing.T) {
	p := Default()
	p.Page = 4
	p.Title = "docs"

	assert.Equal(t, "page=5&title=docs", p.With("page", "5"))
	assert.Equal(t, "sort=title.asc&title=docs", p.With("sort", "title.asc"))
	assert.Equal(t, "", p.With("title", ""))
}

func TestToggleSort(t *testing.T) {
	p := Default()
	assert.Equal(t, Sort{Column: "createdAt"}, p.ToggleSort("createdAt"))
	assert.Equal(t, Sort{Column: "title"}, p.ToggleSort("title"))

	p.Sort = Sort{Column: "title"}
	assert.Equal(t, Sort{Column: "title", Desc: true}, p.ToggleSort("title"))
}
