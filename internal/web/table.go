package web

import (
	"slices"
	"strconv"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/search"
)

// CreatedLayout formats dates in the table.
const CreatedLayout = "January 2, 2006"

var statusLabels = map[models.TaskStatus]string{
	models.TaskStatusTodo:       "Todo",
	models.TaskStatusInProgress: "In Progress",
	models.TaskStatusDone:       "Done",
	models.TaskStatusCanceled:   "Canceled",
}

var priorityLabels = map[models.TaskPriority]string{
	models.TaskPriorityLow:    "Low",
	models.TaskPriorityMedium: "Medium",
	models.TaskPriorityHigh:   "High",
}

type columnDef struct {
	key   string
	label string
}

var taskColumns = []columnDef{
	{"code", "Task"},
	{"title", "Title"},
	{"status", "Status"},
	{"priority", "Priority"},
	{"createdAt", "Created At"},
}

type columnView struct {
	Key   string
	Label string
	Width string
	Href  string
	Dir   string
}

type rowView struct {
	ID        string
	Code      string
	Title     string
	Label     string
	Status    string
	StatusKey string
	Priority  string
	CreatedAt string
	UpdatedAt string
}

type optionView struct {
	Value    string
	Label    string
	Selected bool
	Count    int
	HasCount bool
	Href     string
}

// tableView is everything the tasks_table template renders.
type tableView struct {
	Flags           Flags
	Columns         []columnView
	Rows            []rowView
	ColSpan         int
	Title           string
	StatusOptions   []optionView
	PriorityOptions []optionView
	OperatorOptions []optionView
	PerPageOptions  []optionView
	ToolbarHidden   []hiddenField
	Filtered        bool
	ResetHref       string
	Page            int
	PageCount       int
	FirstHref       string
	PrevHref        string
	NextHref        string
	LastHref        string
	ReturnURL       string
	BulkActions     []optionView
	Error           string
}

// facets holds per-value row counts for the filter options.
type facets struct {
	status   map[string]int
	priority map[string]int
}

func newTableView(l linker, p search.Params, page models.TaskPage, f facets, fetchErr error) tableView {
	v := tableView{
		Flags:     l.flags,
		Title:     p.Title,
		Filtered:  p.HasFilters(),
		ResetHref: l.href(resetQuery(p)),
		Page:      p.Page,
		PageCount: max(page.PageCount, 1),
		ReturnURL: l.href(p.Values().Encode()),
	}
	if fetchErr != nil {
		v.Error = fetchErr.Error()
	}

	skip := []string{"title", "status", "priority"}
	if l.flags.AdvancedFilter {
		skip = append(skip, "operator")
	}
	v.ToolbarHidden = l.hiddenFields(p, skip...)

	cells := TasksSkeleton.Cells()
	for i, c := range taskColumns {
		col := columnView{Key: c.key, Label: c.label, Width: cells[i]}
		if p.Sort.Column == c.key {
			col.Dir = "asc"
			if p.Sort.Desc {
				col.Dir = "desc"
			}
		}
		col.Href = l.with(p, "sort", p.ToggleSort(c.key).String())
		v.Columns = append(v.Columns, col)
	}
	v.ColSpan = len(v.Columns)
	if l.flags.FloatingBar {
		v.ColSpan++
	}

	for _, t := range page.Data {
		row := rowView{
			ID:        t.ID,
			Code:      t.CodeOrEmpty(),
			Title:     t.TitleOrEmpty(),
			Label:     string(t.Label),
			Status:    statusLabels[t.Status],
			StatusKey: string(t.Status),
			Priority:  priorityLabels[t.Priority],
			CreatedAt: t.CreatedAt.Local().Format(CreatedLayout),
		}
		if t.UpdatedAt != nil {
			row.UpdatedAt = t.UpdatedAt.Local().Format(CreatedLayout)
		}
		v.Rows = append(v.Rows, row)
	}

	for _, s := range models.AllTaskStatuses {
		n, ok := f.status[string(s)]
		v.StatusOptions = append(v.StatusOptions, optionView{
			Value: string(s), Label: statusLabels[s], Selected: slices.Contains(p.Statuses, s),
			Count: n, HasCount: ok,
		})
	}
	for _, pr := range models.AllTaskPriorities {
		n, ok := f.priority[string(pr)]
		v.PriorityOptions = append(v.PriorityOptions, optionView{
			Value: string(pr), Label: priorityLabels[pr], Selected: slices.Contains(p.Priorities, pr),
			Count: n, HasCount: ok,
		})
	}
	for _, op := range []search.Operator{search.OperatorAnd, search.OperatorOr} {
		v.OperatorOptions = append(v.OperatorOptions, optionView{
			Value: string(op), Label: string(op), Selected: p.Operator == op,
		})
	}
	for _, n := range search.PerPageOptions {
		v.PerPageOptions = append(v.PerPageOptions, optionView{
			Value: strconv.Itoa(n), Label: strconv.Itoa(n), Selected: p.PerPage == n,
			Href: l.with(p, "per_page", strconv.Itoa(n)),
		})
	}

	if p.Page > 1 {
		v.FirstHref = l.with(p, "page", "1")
		v.PrevHref = l.with(p, "page", strconv.Itoa(min(p.Page-1, v.PageCount)))
	}
	if p.Page < v.PageCount {
		v.NextHref = l.with(p, "page", strconv.Itoa(p.Page+1))
		v.LastHref = l.with(p, "page", strconv.Itoa(v.PageCount))
	}

	if l.flags.FloatingBar {
		for _, s := range models.AllTaskStatuses {
			v.BulkActions = append(v.BulkActions, optionView{Value: "status:" + string(s), Label: "Mark " + statusLabels[s]})
		}
		for _, pr := range models.AllTaskPriorities {
			v.BulkActions = append(v.BulkActions, optionView{Value: "priority:" + string(pr), Label: "Priority " + priorityLabels[pr]})
		}
		v.BulkActions = append(v.BulkActions, optionView{Value: "delete", Label: "Delete"})
	}

	return v
}

// resetQuery clears the toolbar filters but keeps sorting, page size and dates.
func resetQuery(p search.Params) string {
	p.Title = ""
	p.Statuses = nil
	p.Priorities = nil
	p.Labels = nil
	p.Operator = search.OperatorAnd
	return p.With("page", "")
}
