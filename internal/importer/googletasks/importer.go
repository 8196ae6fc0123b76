// Package googletasks imports tasks from a Google Tasks list into the store.
package googletasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gtasks "google.golang.org/api/tasks/v1"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/store"
)

const (
	// DefaultListID is the special ID for the user's default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks requested per page.
	PageSize = 100

	// APITimeout bounds each API call.
	APITimeout = 5 * time.Second

	tasksScope = "https://www.googleapis.com/auth/tasks"
)

// Client lists tasks through the Google Tasks API.
type Client struct {
	svc *gtasks.Service
}

// OAuthConfig loads the OAuth client JSON downloaded from the Google Cloud console.
func OAuthConfig(oauthClientPath string) (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(oauthClientPath)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	cfg, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth client: %w", err)
	}
	return cfg, nil
}

// LoadToken reads a token previously written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes an OAuth token with mode 0600.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// New creates a client from the OAuth client JSON and a saved token.
func New(ctx context.Context, oauthClientPath, tokenPath string) (*Client, error) {
	cfg, err := OAuthConfig(oauthClientPath)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}
	return NewWithHTTPClient(ctx, cfg.Client(ctx, tok))
}

// NewWithHTTPClient creates a client using an already authorized HTTP client.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gtasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Fetch returns every visible task of a list, converted to the local model.
// Deleted and hidden tasks are skipped.
func (c *Client) Fetch(ctx context.Context, listID string) ([]*models.Task, error) {
	if listID == "" {
		listID = DefaultListID
	}

	var out []*models.Task
	pageToken := ""
	for {
		page, err := c.listPage(ctx, listID, pageToken)
		if err != nil {
			return nil, wrapError(err)
		}
		for _, item := range page.Items {
			if item.Deleted || item.Hidden {
				continue
			}
			out = append(out, convert(item))
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) listPage(ctx context.Context, listID, pageToken string) (*gtasks.Tasks, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	call := c.svc.Tasks.List(listID).ShowCompleted(true).MaxResults(PageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func convert(item *gtasks.Task) *models.Task {
	t := &models.Task{
		Title:    models.StringPtr(strings.TrimSpace(item.Title)),
		Status:   models.TaskStatusTodo,
		Priority: models.TaskPriorityMedium,
		Label:    models.TaskLabelFeature,
	}
	if item.Status == "completed" {
		t.Status = models.TaskStatusDone
	}
	if ts, err := time.Parse(time.RFC3339, item.Updated); err == nil {
		t.CreatedAt = ts
	}
	return t
}

// Result summarizes an import run.
type Result struct {
	Imported int
	Skipped  int
}

// Import inserts tasks into the store. Tasks whose title already exists are
// skipped unless allowDuplicates is set.
func Import(ctx context.Context, s store.Store, items []*models.Task, allowDuplicates bool) (Result, error) {
	var res Result
	for _, t := range items {
		if !allowDuplicates && t.Title != nil {
			exists, err := s.TaskTitleExists(ctx, *t.Title)
			if err != nil {
				return res, fmt.Errorf("check title: %w", err)
			}
			if exists {
				res.Skipped++
				continue
			}
		}
		if err := s.CreateTask(ctx, t); err != nil {
			return res, fmt.Errorf("create task %q: %w", t.TitleOrEmpty(), err)
		}
		res.Imported++
	}
	return res, nil
}

func wrapError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"):
		return fmt.Errorf("google tasks: request timed out")
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return fmt.Errorf("google tasks: token expired or revoked (run: tasks import google login)")
	case strings.Contains(msg, "404"):
		return fmt.Errorf("google tasks: list not found")
	}
	return fmt.Errorf("google tasks: %w", err)
}
