package web

import (
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/joescharf/tasks/internal/search"
)

// Feature flag names understood by the table provider.
const (
	FlagAdvancedFilter = "advancedFilter"
	FlagFloatingBar    = "floatingBar"
)

// Flags toggles optional parts of the task table.
type Flags struct {
	AdvancedFilter bool
	FloatingBar    bool
}

// ParseFlags enables every known flag in names. Unknown names are ignored.
func ParseFlags(names []string) Flags {
	var f Flags
	for _, n := range names {
		switch strings.TrimSpace(n) {
		case FlagAdvancedFilter:
			f.AdvancedFilter = true
		case FlagFloatingBar:
			f.FloatingBar = true
		}
	}
	return f
}

// Names returns the enabled flags in a stable order.
func (f Flags) Names() []string {
	var out []string
	if f.AdvancedFilter {
		out = append(out, FlagAdvancedFilter)
	}
	if f.FloatingBar {
		out = append(out, FlagFloatingBar)
	}
	return out
}

func (f Flags) encode() string {
	return strings.Join(f.Names(), ".")
}

func (f Flags) toggle(name string) Flags {
	switch name {
	case FlagAdvancedFilter:
		f.AdvancedFilter = !f.AdvancedFilter
	case FlagFloatingBar:
		f.FloatingBar = !f.FloatingBar
	}
	return f
}

// linker builds page links that keep the feature flags of the request.
type linker struct {
	base  string
	flags Flags
	// explicit is set when the request carried a flags parameter.
	explicit bool
}

func (l linker) href(query string) string {
	if l.explicit {
		v, _ := url.ParseQuery(query)
		v.Set("flags", l.flags.encode())
		query = v.Encode()
	}
	if query == "" {
		return l.base
	}
	return l.base + "?" + query
}

// with links to the current listing with one parameter changed.
func (l linker) with(p search.Params, key, value string) string {
	return l.href(p.With(key, value))
}

type hiddenField struct {
	Name  string
	Value string
}

// hiddenFields carries params through a GET form, skipping the keys the form
// edits itself. The page is always dropped so a new filter starts at page 1.
func (l linker) hiddenFields(p search.Params, skip ...string) []hiddenField {
	v := p.Values()
	v.Del("page")
	for _, k := range skip {
		v.Del(k)
	}
	if l.explicit {
		v.Set("flags", l.flags.encode())
	}

	var out []hiddenField
	for _, k := range slices.Sorted(maps.Keys(v)) {
		out = append(out, hiddenField{Name: k, Value: v.Get(k)})
	}
	return out
}

type flagView struct {
	Name string
	On   bool
	Href string
}

// providerView renders the feature flag toggles above the table.
type providerView struct {
	Flags   Flags
	Toggles []flagView
}

func newProviderView(l linker, p search.Params) providerView {
	pv := providerView{Flags: l.flags}
	for _, name := range []string{FlagAdvancedFilter, FlagFloatingBar} {
		toggled := linker{base: l.base, flags: l.flags.toggle(name), explicit: true}
		pv.Toggles = append(pv.Toggles, flagView{
			Name: name,
			On:   name == FlagAdvancedFilter && l.flags.AdvancedFilter || name == FlagFloatingBar && l.flags.FloatingBar,
			Href: toggled.href(p.Values().Encode()),
		})
	}
	return pv
}

// DateRangePickerProps configures the created-at range filter.
type DateRangePickerProps struct {
	TriggerSize  string
	TriggerClass string
	Align        string
	From         string
	To           string
	Hidden       []hiddenField
	ClearHref    string
}

func newDateRangePicker(l linker, p search.Params) DateRangePickerProps {
	props := DateRangePickerProps{
		TriggerSize:  "sm",
		TriggerClass: "ml-auto w-56 sm:w-60",
		Align:        "end",
		Hidden:       l.hiddenFields(p, "from", "to"),
	}
	if p.From != nil {
		props.From = p.From.Format(search.DateLayout)
	}
	if p.To != nil {
		props.To = p.To.Format(search.DateLayout)
	}
	if p.From != nil || p.To != nil {
		cleared := p
		cleared.From, cleared.To = nil, nil
		props.ClearHref = l.with(cleared, "page", "")
	}
	return props
}

// SkeletonProps shapes the placeholder shown while tasks load.
type SkeletonProps struct {
	ColumnCount           int
	SearchableColumnCount int
	FilterableColumnCount int
	RowCount              int
	CellWidths            []string
	ShrinkZero            bool
}

// TasksSkeleton is the placeholder for the five-column task table.
var TasksSkeleton = SkeletonProps{
	ColumnCount:           5,
	SearchableColumnCount: 1,
	FilterableColumnCount: 2,
	RowCount:              10,
	CellWidths:            []string{"10rem", "40rem", "12rem", "12rem", "8rem"},
	ShrinkZero:            true,
}

// Cells returns one width per column; missing widths are "auto".
func (s SkeletonProps) Cells() []string {
	out := make([]string, s.ColumnCount)
	for i := range out {
		out[i] = "auto"
		if i < len(s.CellWidths) {
			out[i] = s.CellWidths[i]
		}
	}
	return out
}

func (s SkeletonProps) Rows() []int       { return make([]int, s.RowCount) }
func (s SkeletonProps) Searchable() []int { return make([]int, s.SearchableColumnCount) }
func (s SkeletonProps) Filterable() []int { return make([]int, s.FilterableColumnCount) }
