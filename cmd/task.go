package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/output"
	"github.com/joescharf/tasks/internal/query"
	"github.com/joescharf/tasks/internal/search"
	"github.com/joescharf/tasks/internal/store"
)

var (
	listPage     int
	listPerPage  int
	listSort     string
	listTitle    string
	listStatus   string
	listPriority string
	listLabel    string
	listOperator string
	listFrom     string
	listTo       string

	taskTitle    string
	taskStatus   string
	taskPriority string
	taskLabel    string

	addStatus   string
	addPriority string
	addLabel    string
)

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List tasks with the same search parameters as the web page.

List filters take dot-separated values, e.g. --status todo.in-progress.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun(cmd.Context())
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskAddRun(cmd.Context(), args[0])
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id-or-code>",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskShowRun(cmd.Context(), args[0])
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id-or-code>",
	Short: "Update a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskUpdateRun(cmd.Context(), args[0])
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete <id-or-code>",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskDeleteRun(cmd.Context(), args[0])
	},
}

// addListFlags registers the search flags on a listing command.
func addListFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&listPage, "page", 1, "Page number")
	f.IntVar(&listPerPage, "per-page", search.DefaultPerPage, "Rows per page (1-100)")
	f.StringVar(&listSort, "sort", "", "Sort as <column>.<asc|desc> (default createdAt.desc)")
	f.StringVar(&listTitle, "title", "", "Filter by title substring")
	f.StringVar(&listStatus, "status", "", "Filter by status: todo, in-progress, done, canceled")
	f.StringVar(&listPriority, "priority", "", "Filter by priority: low, medium, high")
	f.StringVar(&listLabel, "label", "", "Filter by label: bug, feature, enhancement, documentation")
	f.StringVar(&listOperator, "operator", "", "Combine column filters with and|or")
	f.StringVar(&listFrom, "from", "", "Created on or after (YYYY-MM-DD)")
	f.StringVar(&listTo, "to", "", "Created on or before (YYYY-MM-DD)")
}

func init() {
	addListFlags(taskListCmd)

	taskAddCmd.Flags().StringVar(&addStatus, "status", string(models.TaskStatusTodo), "Status")
	taskAddCmd.Flags().StringVar(&addPriority, "priority", string(models.TaskPriorityLow), "Priority")
	taskAddCmd.Flags().StringVar(&addLabel, "label", string(models.TaskLabelBug), "Label")

	taskUpdateCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "New status")
	taskUpdateCmd.Flags().StringVar(&taskPriority, "priority", "", "New priority")
	taskUpdateCmd.Flags().StringVar(&taskLabel, "label", "", "New label")

	rootCmd.AddCommand(taskListCmd)
	rootCmd.AddCommand(taskAddCmd)
	rootCmd.AddCommand(taskShowCmd)
	rootCmd.AddCommand(taskUpdateCmd)
	rootCmd.AddCommand(taskDeleteCmd)
}

// listValues converts the list flags to query-string form so they go through
// the same validation as the web page.
func listValues() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	if listPage != 1 {
		set("page", strconv.Itoa(listPage))
	}
	if listPerPage != search.DefaultPerPage {
		set("per_page", strconv.Itoa(listPerPage))
	}
	set("sort", listSort)
	set("title", listTitle)
	set("status", listStatus)
	set("priority", listPriority)
	set("label", listLabel)
	set("operator", listOperator)
	set("from", listFrom)
	set("to", listTo)
	return v
}

func taskListRun(ctx context.Context) error {
	params, err := search.Parse(listValues())
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	src, err := taskSource(s)
	if err != nil {
		return err
	}

	page, err := query.GetTasks(ctx, src, params).Await(ctx)
	if err != nil {
		return err
	}

	if len(page.Data) == 0 {
		ui.Info("No results.")
		return nil
	}

	table := ui.Table([]string{"Task", "Title", "Label", "Status", "Priority", "Created At"})
	for _, t := range page.Data {
		_ = table.Append([]string{
			t.CodeOrEmpty(),
			t.TitleOrEmpty(),
			string(t.Label),
			output.StatusColor(string(t.Status)),
			output.PriorityColor(string(t.Priority)),
			t.CreatedAt.Local().Format(time.DateOnly),
		})
	}
	_ = table.Render()

	ui.PageFooter(params.Page, page.PageCount)
	return nil
}

func taskAddRun(ctx context.Context, title string) error {
	t := &models.Task{
		Title:    models.StringPtr(title),
		Status:   models.TaskStatus(addStatus),
		Priority: models.TaskPriority(addPriority),
		Label:    models.TaskLabel(addLabel),
	}
	if err := t.Validate(); err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add task: %s [%s/%s/%s]", title, t.Status, t.Priority, t.Label)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	if err := s.CreateTask(ctx, t); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	ui.Success("Created task %s: %s", output.Cyan(t.CodeOrEmpty()), title)
	return nil
}

func taskShowRun(ctx context.Context, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	t, err := findTask(ctx, s, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(t.CodeOrEmpty()), t.TitleOrEmpty())
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(t.Status)))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(string(t.Priority)))
	fmt.Fprintf(ui.Out, "  Label:      %s\n", t.Label)
	fmt.Fprintf(ui.Out, "  Created:    %s\n", t.CreatedAt.Local().Format(time.RFC3339))
	if t.UpdatedAt != nil {
		fmt.Fprintf(ui.Out, "  Updated:    %s\n", t.UpdatedAt.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", t.ID)
	return nil
}

func taskUpdateRun(ctx context.Context, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	t, err := findTask(ctx, s, ref)
	if err != nil {
		return err
	}

	changed := false
	if taskTitle != "" {
		t.Title = models.StringPtr(taskTitle)
		changed = true
	}
	if taskStatus != "" {
		t.Status = models.TaskStatus(taskStatus)
		changed = true
	}
	if taskPriority != "" {
		t.Priority = models.TaskPriority(taskPriority)
		changed = true
	}
	if taskLabel != "" {
		t.Label = models.TaskLabel(taskLabel)
		changed = true
	}
	if !changed {
		return fmt.Errorf("no updates specified (use --title, --status, --priority, or --label)")
	}
	if err := t.Validate(); err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would update task %s", t.CodeOrEmpty())
		return nil
	}

	if err := s.UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	ui.Success("Updated task %s", output.Cyan(t.CodeOrEmpty()))
	return nil
}

func taskDeleteRun(ctx context.Context, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	t, err := findTask(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete task %s: %s", t.CodeOrEmpty(), t.TitleOrEmpty())
		return nil
	}

	if err := s.DeleteTask(ctx, t.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	ui.Success("Deleted task %s", output.Cyan(t.CodeOrEmpty()))
	return nil
}

// findTask looks a task up by ULID or code, with a friendlier not-found error.
func findTask(ctx context.Context, s store.Store, ref string) (*models.Task, error) {
	t, err := s.GetTask(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("task not found: %s", ref)
	}
	return t, err
}
