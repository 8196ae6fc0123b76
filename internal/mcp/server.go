package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/query"
	"github.com/joescharf/tasks/internal/search"
	"github.com/joescharf/tasks/internal/store"
)

// Server wraps the task store and exposes it as MCP tools.
type Server struct {
	store   store.Store
	source  query.Source
	version string
}

// NewServer creates the MCP server wrapper. Listings go through src, which
// defaults to the store.
func NewServer(s store.Store, src query.Source, version string) *Server {
	if src == nil {
		src = s
	}
	return &Server{store: s, source: src, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("tasks", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listTasksTool())
	srv.AddTool(s.getTaskTool())
	srv.AddTool(s.createTaskTool())
	srv.AddTool(s.updateTaskTool())
	srv.AddTool(s.deleteTaskTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// tasks_list
func (s *Server) listTasksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tasks_list",
		mcp.WithDescription("List tasks one page at a time. Returns JSON {data, pageCount}. List filters take dot-separated values, e.g. status \"todo.in-progress\"."),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		mcp.WithNumber("per_page", mcp.Description("Rows per page (1-100, default 10)")),
		mcp.WithString("sort", mcp.Description("<column>.<asc|desc>; columns: code, title, status, priority, label, createdAt")),
		mcp.WithString("title", mcp.Description("Substring match on the title")),
		mcp.WithString("status", mcp.Description("Statuses: todo, in-progress, done, canceled")),
		mcp.WithString("priority", mcp.Description("Priorities: low, medium, high")),
		mcp.WithString("label", mcp.Description("Labels: bug, feature, enhancement, documentation")),
		mcp.WithString("operator", mcp.Description("How column filters combine: and (default) or or")),
		mcp.WithString("from", mcp.Description("Created on or after, YYYY-MM-DD")),
		mcp.WithString("to", mcp.Description("Created on or before, YYYY-MM-DD")),
	)
	return tool, s.handleListTasks
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	values := url.Values{}
	for _, key := range []string{"sort", "title", "status", "priority", "label", "operator", "from", "to"} {
		if v := request.GetString(key, ""); v != "" {
			values.Set(key, v)
		}
	}
	for _, key := range []string{"page", "per_page"} {
		if n := request.GetInt(key, 0); n != 0 {
			values.Set(key, strconv.Itoa(n))
		}
	}

	params, err := search.Parse(values)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page, err := query.GetTasks(ctx, s.source, params).Await(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}
	return jsonResult(page)
}

// tasks_get
func (s *Server) getTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tasks_get",
		mcp.WithDescription("Get one task by ID or short code (e.g. TASK-0001)."),
		mcp.WithString("task", mcp.Required(), mcp.Description("Task ID or code")),
	)
	return tool, s.handleGetTask
}

func (s *Server) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.store.GetTask(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(task)
}

// tasks_create
func (s *Server) createTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tasks_create",
		mcp.WithDescription("Create a task. Returns the created task as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("status", mcp.Description("todo (default), in-progress, done, canceled")),
		mcp.WithString("priority", mcp.Description("low (default), medium, high")),
		mcp.WithString("label", mcp.Description("bug (default), feature, enhancement, documentation")),
	)
	return tool, s.handleCreateTask
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	task := &models.Task{Title: models.StringPtr(title)}
	if err := applyEnums(task, request); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
	}
	return jsonResult(task)
}

// tasks_update
func (s *Server) updateTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tasks_update",
		mcp.WithDescription("Update a task's title, status, priority or label. Only provided fields change."),
		mcp.WithString("task", mcp.Required(), mcp.Description("Task ID or code")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("status", mcp.Description("New status")),
		mcp.WithString("priority", mcp.Description("New priority")),
		mcp.WithString("label", mcp.Description("New label")),
	)
	return tool, s.handleUpdateTask
}

func (s *Server) handleUpdateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.store.GetTask(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	before := *task
	if title := request.GetString("title", ""); title != "" {
		task.Title = models.StringPtr(title)
	}
	if err := applyEnums(task, request); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if task.TitleOrEmpty() == before.TitleOrEmpty() && task.Status == before.Status &&
		task.Priority == before.Priority && task.Label == before.Label {
		return mcp.NewToolResultError("no updates specified (set title, status, priority or label)"), nil
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update task: %v", err)), nil
	}
	return jsonResult(task)
}

// tasks_delete
func (s *Server) deleteTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("tasks_delete",
		mcp.WithDescription("Delete a task by ID or code."),
		mcp.WithString("task", mcp.Required(), mcp.Description("Task ID or code")),
	)
	return tool, s.handleDeleteTask
}

func (s *Server) handleDeleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, err := s.store.GetTask(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("task not found: %s", ref)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.DeleteTask(ctx, task.ID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete task: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %s", task.CodeOrEmpty())), nil
}

// applyEnums copies status, priority and label arguments onto t when present.
func applyEnums(t *models.Task, request mcp.CallToolRequest) error {
	if v := request.GetString("status", ""); v != "" {
		st, err := models.ParseTaskStatus(v)
		if err != nil {
			return err
		}
		t.Status = st
	}
	if v := request.GetString("priority", ""); v != "" {
		pr, err := models.ParseTaskPriority(v)
		if err != nil {
			return err
		}
		t.Priority = pr
	}
	if v := request.GetString("label", ""); v != "" {
		lb, err := models.ParseTaskLabel(v)
		if err != nil {
			return err
		}
		t.Label = lb
	}
	return nil
}
