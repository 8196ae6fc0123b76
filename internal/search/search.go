// Package search parses and re-encodes the query-string state of the task
// table: pagination, sorting, column filters and the created-at date range.
package search

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/tasks/internal/models"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100

	// MaxPage keeps (page-1)*per_page within an int for every page size.
	MaxPage = math.MaxInt / MaxPerPage

	// DateLayout is the format of the from/to parameters.
	DateLayout = "2006-01-02"
)

// SortColumns are the columns the table can be ordered by.
var SortColumns = []string{"code", "title", "status", "priority", "label", "createdAt"}

// PerPageOptions are the page sizes offered by the pagination control.
var PerPageOptions = []int{10, 20, 30, 40, 50}

// Operator controls how column filters combine.
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
)

// Sort is an ordering on one column.
type Sort struct {
	Column string
	Desc   bool
}

func (s Sort) String() string {
	dir := "asc"
	if s.Desc {
		dir = "desc"
	}
	return s.Column + "." + dir
}

// DefaultSort orders newest first.
var DefaultSort = Sort{Column: "createdAt", Desc: true}

// Params is the validated search state of a task listing.
type Params struct {
	Page       int
	PerPage    int
	Sort       Sort
	Title      string
	Statuses   []models.TaskStatus
	Priorities []models.TaskPriority
	Labels     []models.TaskLabel
	Operator   Operator
	From       *time.Time
	To         *time.Time
}

// Default returns the parameters of an empty query string.
func Default() Params {
	return Params{
		Page:     DefaultPage,
		PerPage:  DefaultPerPage,
		Sort:     DefaultSort,
		Operator: OperatorAnd,
	}
}

// ValidationError reports one rejected parameter.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Parse validates query-string values. Unknown keys are ignored. All invalid
// fields are reported together.
func Parse(values url.Values) (Params, error) {
	p := Default()
	var errs []error
	fail := func(field, value, reason string) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Reason: reason})
	}

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPage {
			fail("page", v, fmt.Sprintf("must be an integer between 1 and %d", MaxPage))
		} else {
			p.Page = n
		}
	}

	if v := strings.TrimSpace(values.Get("per_page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPerPage {
			fail("per_page", v, fmt.Sprintf("must be between 1 and %d", MaxPerPage))
		} else {
			p.PerPage = n
		}
	}

	if v := strings.TrimSpace(values.Get("sort")); v != "" {
		s, err := parseSort(v)
		if err != nil {
			fail("sort", v, err.Error())
		} else {
			p.Sort = s
		}
	}

	p.Title = strings.TrimSpace(values.Get("title"))

	if v := listValue(values, "status"); v != "" {
		for _, part := range splitList(v) {
			st, err := models.ParseTaskStatus(part)
			if err != nil {
				fail("status", part, "unknown status")
				continue
			}
			p.Statuses = append(p.Statuses, st)
		}
	}

	if v := listValue(values, "priority"); v != "" {
		for _, part := range splitList(v) {
			pr, err := models.ParseTaskPriority(part)
			if err != nil {
				fail("priority", part, "unknown priority")
				continue
			}
			p.Priorities = append(p.Priorities, pr)
		}
	}

	if v := listValue(values, "label"); v != "" {
		for _, part := range splitList(v) {
			l, err := models.ParseTaskLabel(part)
			if err != nil {
				fail("label", part, "unknown label")
				continue
			}
			p.Labels = append(p.Labels, l)
		}
	}

	if v := strings.TrimSpace(values.Get("operator")); v != "" {
		switch Operator(v) {
		case OperatorAnd, OperatorOr:
			p.Operator = Operator(v)
		default:
			fail("operator", v, "must be and or or")
		}
	}

	if v := strings.TrimSpace(values.Get("from")); v != "" {
		t, err := time.ParseInLocation(DateLayout, v, time.Local)
		if err != nil {
			fail("from", v, "must be a YYYY-MM-DD date")
		} else {
			p.From = &t
		}
	}

	if v := strings.TrimSpace(values.Get("to")); v != "" {
		t, err := time.ParseInLocation(DateLayout, v, time.Local)
		if err != nil {
			fail("to", v, "must be a YYYY-MM-DD date")
		} else {
			p.To = &t
		}
	}

	if p.From != nil && p.To != nil && p.From.After(*p.To) {
		fail("to", values.Get("to"), "must not be before from")
	}

	if len(errs) > 0 {
		return Default(), errors.Join(errs...)
	}
	return p, nil
}

func parseSort(v string) (Sort, error) {
	col, dir, ok := strings.Cut(v, ".")
	if !ok {
		return Sort{}, errors.New("want <column>.<asc|desc>")
	}
	valid := false
	for _, c := range SortColumns {
		if c == col {
			valid = true
			break
		}
	}
	if !valid {
		return Sort{}, fmt.Errorf("unknown column %q", col)
	}
	switch dir {
	case "asc":
		return Sort{Column: col}, nil
	case "desc":
		return Sort{Column: col, Desc: true}, nil
	default:
		return Sort{}, fmt.Errorf("unknown direction %q", dir)
	}
}

// listValue merges repeated keys (from multi-selects) into one dot list.
func listValue(values url.Values, key string) string {
	return strings.Join(values[key], ".")
}

// splitList splits a dot-separated filter value, dropping empty parts.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ".") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Offset returns the number of rows before the current page. Pages too far
// out to count saturate at math.MaxInt, which selects no rows.
func (p Params) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}

// HasFilters reports whether any column filter or date bound is set.
func (p Params) HasFilters() bool {
	return p.Title != "" || len(p.Statuses) > 0 || len(p.Priorities) > 0 || len(p.Labels) > 0 ||
		p.From != nil || p.To != nil
}

// ToTime returns the exclusive upper bound of the date range: the start of
// the day after To.
func (p Params) ToTime() *time.Time {
	if p.To == nil {
		return nil
	}
	end := p.To.AddDate(0, 0, 1)
	return &end
}

// Values encodes the parameters back into a query string, omitting defaults.
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.Page != DefaultPage {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage != DefaultPerPage {
		v.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if p.Sort != DefaultSort {
		v.Set("sort", p.Sort.String())
	}
	if p.Title != "" {
		v.Set("title", p.Title)
	}
	if len(p.Statuses) > 0 {
		v.Set("status", joinList(p.Statuses))
	}
	if len(p.Priorities) > 0 {
		v.Set("priority", joinList(p.Priorities))
	}
	if len(p.Labels) > 0 {
		v.Set("label", joinList(p.Labels))
	}
	if p.Operator != OperatorAnd {
		v.Set("operator", string(p.Operator))
	}
	if p.From != nil {
		v.Set("from", p.From.Format(DateLayout))
	}
	if p.To != nil {
		v.Set("to", p.To.Format(DateLayout))
	}
	return v
}

// With returns the encoded query string with key overridden. An empty value
// removes the key. Changing anything other than the page resets to page 1.
func (p Params) With(key, value string) string {
	v := p.Values()
	if key != "page" {
		v.Del("page")
	}
	if value == "" {
		v.Del(key)
	} else {
		v.Set(key, value)
	}
	return v.Encode()
}

// ToggleSort returns the sort that a click on column's header produces.
func (p Params) ToggleSort(column string) Sort {
	if p.Sort.Column == column {
		return Sort{Column: column, Desc: !p.Sort.Desc}
	}
	return Sort{Column: column}
}

func joinList[T ~string](items []T) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = string(it)
	}
	return strings.Join(parts, ".")
}
