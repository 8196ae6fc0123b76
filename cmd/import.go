package cmd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"github.com/joescharf/tasks/internal/importer/googletasks"
	"github.com/joescharf/tasks/internal/models"
)

const (
	oauthCallbackTimeout = 5 * time.Minute
	tokenExchangeTimeout = 30 * time.Second
	oauthStartPort       = 8085
	oauthMaxPortAttempts = 5
)

var (
	importListID          string
	importAllowDuplicates bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tasks from other sources",
}

var importGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Import tasks from a Google Tasks list",
	Long: `Import tasks from a Google Tasks list.

Requires an OAuth client JSON (google.oauth_client) and a token created by
'tasks import google login'. Completed tasks are imported as done, all
others as todo. Tasks whose title already exists are skipped unless
--allow-duplicates is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return importGoogleRun(cmd.Context())
	},
}

var importGoogleLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize access to Google Tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return importGoogleLoginRun(cmd.Context())
	},
}

var importMarkdownCmd = &cobra.Command{
	Use:   "markdown <file>",
	Short: "Import tasks from a markdown list",
	Long: `Import tasks from numbered or bulleted items in a markdown file.

Labels and priorities are inferred from each title with the same keyword
heuristics as 'tasks classify'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return importMarkdownRun(cmd.Context(), args[0])
	},
}

func init() {
	importGoogleCmd.Flags().StringVar(&importListID, "list", googletasks.DefaultListID, "Google Tasks list ID")
	importGoogleCmd.Flags().BoolVar(&importAllowDuplicates, "allow-duplicates", false, "Import tasks whose title already exists")
	importMarkdownCmd.Flags().BoolVar(&importAllowDuplicates, "allow-duplicates", false, "Import tasks whose title already exists")

	importGoogleCmd.AddCommand(importGoogleLoginCmd)
	importCmd.AddCommand(importGoogleCmd)
	importCmd.AddCommand(importMarkdownCmd)
	rootCmd.AddCommand(importCmd)
}

func importGoogleRun(ctx context.Context) error {
	client, err := googletasks.New(ctx, viper.GetString("google.oauth_client"), viper.GetString("google.token"))
	if err != nil {
		return fmt.Errorf("%w (run: tasks import google login)", err)
	}

	items, err := client.Fetch(ctx, importListID)
	if err != nil {
		return err
	}
	ui.VerboseLog("Fetched %d tasks from list %s", len(items), importListID)

	return importTasks(ctx, items)
}

// importTasks stores items, or lists them under --dry-run.
func importTasks(ctx context.Context, items []*models.Task) error {
	if len(items) == 0 {
		ui.Info("Nothing to import.")
		return nil
	}

	if dryRun {
		for _, t := range items {
			ui.DryRunMsg("Would import: %s [%s/%s/%s]", t.TitleOrEmpty(), t.Status, t.Priority, t.Label)
		}
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	res, err := googletasks.Import(ctx, s, items, importAllowDuplicates)
	if err != nil {
		return err
	}
	ui.Success("Imported %d tasks (%d skipped as duplicates)", res.Imported, res.Skipped)
	return nil
}

func importGoogleLoginRun(ctx context.Context) error {
	cfg, err := googletasks.OAuthConfig(viper.GetString("google.oauth_client"))
	if err != nil {
		return err
	}

	port, listener, err := findAvailablePort()
	if err != nil {
		return fmt.Errorf("could not bind to local port for OAuth callback: %w", err)
	}
	defer listener.Close()

	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", port)
	state := rand.Text()
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintln(ui.ErrOut, "Open this URL in your browser:")
	fmt.Fprintln(ui.ErrOut, authURL)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	server := &http.Server{Handler: oauthCallbackHandler(state, codeCh, errCh), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			trySend(errCh, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-time.After(oauthCallbackTimeout):
		return errors.New("oauth callback timed out")
	case <-ctx.Done():
		return ctx.Err()
	}

	exchangeCtx, cancelExchange := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancelExchange()
	tok, err := cfg.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("exchange code for token: %w", err)
	}

	tokenPath := viper.GetString("google.token")
	if err := googletasks.SaveToken(tokenPath, tok); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	ui.Success("Saved Google token to %s", tokenPath)
	return nil
}

// oauthCallbackHandler accepts the first redirect carrying the expected state.
// Later or forged callbacks are answered but never block the handler.
func oauthCallbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			trySend(errCh, errors.New("oauth state mismatch"))
			return
		}
		if msg := q.Get("error"); msg != "" {
			http.Error(w, "Authorization denied", http.StatusBadRequest)
			trySend(errCh, fmt.Errorf("authorization denied: %s", msg))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "No code in callback", http.StatusBadRequest)
			trySend(errCh, errors.New("no code in callback"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You may close this window.</p></body></html>")
		trySend(codeCh, code)
	})
	return mux
}

// trySend delivers v unless the buffered channel is already full.
func trySend[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// findAvailablePort tries to find an available port starting from oauthStartPort.
func findAvailablePort() (int, net.Listener, error) {
	var lastErr error
	for i := range oauthMaxPortAttempts {
		port := oauthStartPort + i
		listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			return port, listener, nil
		}
		lastErr = err
	}
	return 0, nil, lastErr
}

func importMarkdownRun(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("file is empty: %s", file)
	}
	return importTasks(ctx, parseMarkdownTasks(content))
}

// parseSubItemNumber checks if a line starts with a sub-item number like "1.1" or "2.3."
// Returns the title text and true if it's a sub-item, or empty and false otherwise.
func parseSubItemNumber(line string) (title string, ok bool) {
	// Pattern: digits.digits[.] space text (e.g., "1.1 text" or "1.1. text")
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != '.' {
		return "", false
	}
	i++
	start := i
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == start {
		return "", false // regular "1. text" item
	}
	if i < len(line) && line[i] == '.' {
		i++
	}
	if i >= len(line) || line[i] != ' ' {
		return "", false
	}
	title = strings.TrimSpace(line[i:])
	if title == "" {
		return "", false
	}
	return title, true
}

// parseMarkdownTasks extracts numbered, sub-numbered and bulleted items.
// Checked boxes ("- [x] ...") become done tasks.
func parseMarkdownTasks(content string) []*models.Task {
	var out []*models.Task
	add := func(title string, status models.TaskStatus) {
		out = append(out, &models.Task{
			Title:    models.StringPtr(title),
			Status:   status,
			Priority: classifyTaskPriority(title),
			Label:    classifyTaskLabel(title),
		})
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if title, ok := parseSubItemNumber(line); ok {
			add(title, models.TaskStatusTodo)
			continue
		}

		title := ""
		// Numbered: "1. text", "12. text"
		for i, c := range line {
			if c == '.' && i > 0 && i < 4 {
				title = strings.TrimSpace(line[i+1:])
				break
			}
			if c < '0' || c > '9' {
				break
			}
		}
		// Bulleted: "- text", "* text"
		if title == "" && (strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")) {
			title = strings.TrimSpace(line[2:])
		}
		if title == "" {
			continue
		}

		status := models.TaskStatusTodo
		switch {
		case strings.HasPrefix(title, "[x] "), strings.HasPrefix(title, "[X] "):
			status = models.TaskStatusDone
			title = strings.TrimSpace(title[4:])
		case strings.HasPrefix(title, "[ ] "):
			title = strings.TrimSpace(title[4:])
		}
		if title != "" {
			add(title, status)
		}
	}
	return out
}
