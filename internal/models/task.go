package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCanceled   TaskStatus = "canceled"
)

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// TaskLabel represents the kind of work a task tracks.
type TaskLabel string

const (
	TaskLabelBug           TaskLabel = "bug"
	TaskLabelFeature       TaskLabel = "feature"
	TaskLabelEnhancement   TaskLabel = "enhancement"
	TaskLabelDocumentation TaskLabel = "documentation"
)

// AllTaskStatuses lists statuses in display order.
var AllTaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCanceled}

// AllTaskPriorities lists priorities in display order.
var AllTaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh}

// AllTaskLabels lists labels in display order.
var AllTaskLabels = []TaskLabel{TaskLabelBug, TaskLabelFeature, TaskLabelEnhancement, TaskLabelDocumentation}

func (s TaskStatus) Valid() bool {
	for _, v := range AllTaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (p TaskPriority) Valid() bool {
	for _, v := range AllTaskPriorities {
		if p == v {
			return true
		}
	}
	return false
}

func (l TaskLabel) Valid() bool {
	for _, v := range AllTaskLabels {
		if l == v {
			return true
		}
	}
	return false
}

// ParseTaskStatus converts a string to a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q (want todo, in-progress, done, canceled)", s)
	}
	return st, nil
}

// ParseTaskPriority converts a string to a TaskPriority.
func ParseTaskPriority(s string) (TaskPriority, error) {
	p := TaskPriority(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q (want low, medium, high)", s)
	}
	return p, nil
}

// ParseTaskLabel converts a string to a TaskLabel.
func ParseTaskLabel(s string) (TaskLabel, error) {
	l := TaskLabel(s)
	if !l.Valid() {
		return "", fmt.Errorf("invalid label %q (want bug, feature, enhancement, documentation)", s)
	}
	return l, nil
}

// Task is a unit of work shown in the task table.
type Task struct {
	ID        string       `json:"id"`
	Code      *string      `json:"code"`
	Title     *string      `json:"title"`
	Status    TaskStatus   `json:"status"`
	Priority  TaskPriority `json:"priority"`
	Label     TaskLabel    `json:"label"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt *time.Time   `json:"updatedAt"`
}

// TitleOrEmpty returns the title, or "" when unset.
func (t *Task) TitleOrEmpty() string {
	if t.Title == nil {
		return ""
	}
	return *t.Title
}

// CodeOrEmpty returns the short code, or "" when unset.
func (t *Task) CodeOrEmpty() string {
	if t.Code == nil {
		return ""
	}
	return *t.Code
}

// Validate checks enum membership of status, priority and label.
func (t *Task) Validate() error {
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if !t.Label.Valid() {
		return fmt.Errorf("invalid label %q", t.Label)
	}
	return nil
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Data      []*Task `json:"data"`
	PageCount int     `json:"pageCount"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
