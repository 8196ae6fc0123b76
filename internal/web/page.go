// Package web renders the server-side task list page.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/query"
	"github.com/joescharf/tasks/internal/search"
	"github.com/joescharf/tasks/internal/store"
	"github.com/joescharf/tasks/internal/ui"
)

// DefaultFetchTimeout bounds how long the page waits for the task query.
const DefaultFetchTimeout = 10 * time.Second

// Options configures a Handler.
type Options struct {
	// Source answers the task query. Required.
	Source query.Source
	// Store enables bulk actions and facet counts; nil makes the page read-only.
	Store store.Store
	// Flags are enabled when the request carries no flags parameter.
	Flags        Flags
	FetchTimeout time.Duration
	Title        string
}

// Handler serves the task list page.
type Handler struct {
	opts Options
	tmpl *template.Template
}

// NewHandler parses the embedded templates and returns the page handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Source == nil {
		return nil, errors.New("web: task source is required")
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Title == "" {
		opts.Title = "Tasks"
	}
	tmpl, err := ui.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{opts: opts, tmpl: tmpl}, nil
}

// Router returns the page routes and the embedded static assets.
func (h *Handler) Router() (http.Handler, error) {
	static, err := ui.StaticHandler()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static", static))
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /tasks", h.index)
	mux.HandleFunc("POST /tasks/bulk", h.bulk)
	return mux, nil
}

type pageView struct {
	Title    string
	Provider providerView
	Picker   DateRangePickerProps
	Skeleton SkeletonProps
	Deferred bool
}

type errorView struct {
	Title     string
	Errors    []string
	ResetHref string
}

func (h *Handler) linker(r *http.Request) linker {
	l := linker{base: r.URL.Path, flags: h.opts.Flags}
	if q := r.URL.Query(); q.Has("flags") {
		l.explicit = true
		l.flags = ParseFlags(strings.Split(q.Get("flags"), "."))
	}
	return l
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	l := h.linker(r)

	params, err := search.Parse(r.URL.Query())
	if err != nil {
		h.renderInvalid(w, l, err)
		return
	}

	ctx := r.Context()
	fetchCtx, cancel := context.WithTimeout(ctx, h.opts.FetchTimeout)
	defer cancel()
	tasks := query.GetTasks(fetchCtx, h.opts.Source, params)

	// Give fast sources a moment so the page renders without a placeholder.
	select {
	case <-tasks.Done():
	case <-time.After(5 * time.Millisecond):
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	view := pageView{
		Title:    h.opts.Title,
		Provider: newProviderView(l, params),
		Picker:   newDateRangePicker(l, params),
		Skeleton: TasksSkeleton,
		Deferred: !tasks.Settled(),
	}
	if err := h.tmpl.ExecuteTemplate(w, "page_start", view); err != nil {
		slog.Error("render page", "error", err)
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	page, fetchErr := tasks.Await(fetchCtx)
	if fetchErr != nil {
		slog.Warn("task fetch failed", "error", fetchErr, "query", r.URL.RawQuery)
	}

	table := newTableView(l, params, page, h.facets(ctx), fetchErr)
	name := "tasks_table"
	if view.Deferred {
		name = "resolve"
	}
	if err := h.tmpl.ExecuteTemplate(w, name, table); err != nil {
		slog.Error("render tasks table", "error", err)
		return
	}
	if err := h.tmpl.ExecuteTemplate(w, "page_end", nil); err != nil {
		slog.Error("render page", "error", err)
	}
}

func (h *Handler) renderInvalid(w http.ResponseWriter, l linker, err error) {
	view := errorView{
		Title:     h.opts.Title,
		Errors:    strings.Split(err.Error(), "\n"),
		ResetHref: l.href(""),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	if err := h.tmpl.ExecuteTemplate(w, "error_page", view); err != nil {
		slog.Error("render error page", "error", err)
	}
}

// facets loads per-value counts for the filter options. Failures only hide the counts.
func (h *Handler) facets(ctx context.Context) facets {
	var f facets
	if h.opts.Store == nil {
		return f
	}
	var err error
	if f.status, err = h.opts.Store.CountTasksBy(ctx, "status"); err != nil {
		slog.Debug("status facet counts", "error", err)
	}
	if f.priority, err = h.opts.Store.CountTasksBy(ctx, "priority"); err != nil {
		slog.Debug("priority facet counts", "error", err)
	}
	return f
}

// bulk applies a floating bar action to the selected rows and redirects back.
func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	if h.opts.Store == nil {
		http.Error(w, "task source is read-only", http.StatusNotImplemented)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	ids := r.PostForm["ids"]
	action := r.PostForm.Get("action")
	ret := r.PostForm.Get("return")
	if !strings.HasPrefix(ret, "/") || strings.HasPrefix(ret, "//") {
		ret = "/"
	}

	n, err := applyBulk(r.Context(), h.opts.Store, ids, action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Info("bulk action applied", "action", action, "rows", n)
	http.Redirect(w, r, ret, http.StatusSeeOther)
}

// applyBulk runs one of "status:<s>", "priority:<p>", "label:<l>" or "delete".
func applyBulk(ctx context.Context, s store.Store, ids []string, action string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if action == "delete" {
		return s.BulkDeleteTasks(ctx, ids)
	}

	field, value, ok := strings.Cut(action, ":")
	if !ok {
		return 0, fmt.Errorf("unknown action %q", action)
	}
	var patch store.TaskPatch
	switch field {
	case "status":
		st, err := models.ParseTaskStatus(value)
		if err != nil {
			return 0, err
		}
		patch.Status = &st
	case "priority":
		pr, err := models.ParseTaskPriority(value)
		if err != nil {
			return 0, err
		}
		patch.Priority = &pr
	case "label":
		lb, err := models.ParseTaskLabel(value)
		if err != nil {
			return 0, err
		}
		patch.Label = &lb
	default:
		return 0, fmt.Errorf("unknown action %q", action)
	}
	return s.BulkUpdateTasks(ctx, ids, patch)
}
