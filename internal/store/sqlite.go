package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/tasks/internal/models"
	"github.com/joescharf/tasks/internal/search"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes access from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const taskColumns = `id, code, title, status, priority, label, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var code, title sql.NullString
	var status, priority, label string
	var updatedAt sql.NullTime

	if err := row.Scan(&t.ID, &code, &title, &status, &priority, &label, &t.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}

	if code.Valid {
		t.Code = &code.String
	}
	if title.Valid {
		t.Title = &title.String
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	t.Label = models.TaskLabel(label)
	if updatedAt.Valid {
		ut := updatedAt.Time
		t.UpdatedAt = &ut
	}
	return t, nil
}

// CreateTask inserts a task. Empty ID and Code are assigned; a zero CreatedAt
// is set to now.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *models.Task) error {
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.TaskPriorityLow
	}
	if t.Label == "" {
		t.Label = models.TaskLabelBug
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if t.ID == "" {
		t.ID = newULID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM tasks").Scan(&seq); err != nil {
		return fmt.Errorf("next task sequence: %w", err)
	}
	if t.Code == nil {
		code := fmt.Sprintf("TASK-%04d", seq)
		t.Code = &code
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (id, seq, code, title, status, priority, label, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, seq, t.Code, t.Title, string(t.Status), string(t.Priority), string(t.Label), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", conflictErr(err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// conflictErr maps a UNIQUE constraint violation to ErrConflict.
func conflictErr(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%w: %s", ErrConflict, se.Error())
	}
	return err
}

// GetTask looks a task up by ULID or short code.
func (s *SQLiteStore) GetTask(ctx context.Context, idOrCode string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? OR code = ? LIMIT 1", idOrCode, idOrCode)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", idOrCode, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

var sortExprs = map[string]string{
	"code":      "seq",
	"title":     "title COLLATE NOCASE",
	"status":    "CASE status WHEN 'todo' THEN 0 WHEN 'in-progress' THEN 1 WHEN 'done' THEN 2 WHEN 'canceled' THEN 3 ELSE 4 END",
	"priority":  "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 ELSE 3 END",
	"label":     "label",
	"createdAt": "created_at",
}

// whereClause builds the filter for a listing. Column filters combine with
// the params operator; title and date range always narrow the result.
func whereClause(p search.Params) (string, []any) {
	var columnConds []string
	var args []any

	addIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		columnConds = append(columnConds, column+" IN ("+placeholders(len(values))+")")
		for _, v := range values {
			args = append(args, v)
		}
	}
	addIn("status", toStrings(p.Statuses))
	addIn("priority", toStrings(p.Priorities))
	addIn("label", toStrings(p.Labels))

	var conds []string
	if len(columnConds) > 0 {
		joiner := " AND "
		if p.Operator == search.OperatorOr {
			joiner = " OR "
		}
		conds = append(conds, "("+strings.Join(columnConds, joiner)+")")
	}
	if p.Title != "" {
		conds = append(conds, "title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(p.Title)+"%")
	}
	if p.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, p.From.UTC())
	}
	if end := p.ToTime(); end != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, end.UTC())
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListTasks returns one page of tasks matching params along with the page count.
func (s *SQLiteStore) ListTasks(ctx context.Context, p search.Params) (models.TaskPage, error) {
	where, args := whereClause(p)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&total); err != nil {
		return models.TaskPage{}, fmt.Errorf("count tasks: %w", err)
	}

	order, ok := sortExprs[p.Sort.Column]
	if !ok {
		order = sortExprs[search.DefaultSort.Column]
	}
	dir := "ASC"
	if p.Sort.Desc {
		dir = "DESC"
	}

	perPage := p.PerPage
	if perPage < 1 {
		perPage = search.DefaultPerPage
	}
	offset := p.Offset()
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + taskColumns + " FROM tasks" + where +
		fmt.Sprintf(" ORDER BY %s %s, seq %s LIMIT ? OFFSET ?", order, dir, dir)
	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, offset)...)
	if err != nil {
		return models.TaskPage{}, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := models.TaskPage{Data: []*models.Task{}}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return models.TaskPage{}, fmt.Errorf("scan task: %w", err)
		}
		page.Data = append(page.Data, t)
	}
	if err := rows.Err(); err != nil {
		return models.TaskPage{}, err
	}

	page.PageCount = (total + perPage - 1) / perPage
	return page, nil
}

// UpdateTask writes every mutable field and stamps UpdatedAt.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t *models.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	now := time.Now().UTC()
	t.UpdatedAt = &now

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET code=?, title=?, status=?, priority=?, label=?, updated_at=? WHERE id=?`,
		t.Code, t.Title, string(t.Status), string(t.Priority), string(t.Label), now, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", conflictErr(err))
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) BulkUpdateTasks(ctx context.Context, ids []string, patch TaskPatch) (int64, error) {
	if len(ids) == 0 || patch.Empty() {
		return 0, nil
	}

	var sets []string
	var args []any
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return 0, fmt.Errorf("invalid status %q", *patch.Status)
		}
		sets = append(sets, "status=?")
		args = append(args, string(*patch.Status))
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return 0, fmt.Errorf("invalid priority %q", *patch.Priority)
		}
		sets = append(sets, "priority=?")
		args = append(args, string(*patch.Priority))
	}
	if patch.Label != nil {
		if !patch.Label.Valid() {
			return 0, fmt.Errorf("invalid label %q", *patch.Label)
		}
		sets = append(sets, "label=?")
		args = append(args, string(*patch.Label))
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id IN (%s)", strings.Join(sets, ", "), placeholders(len(ids)))
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("bulk update tasks: %w", err)
	}
	n, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) BulkDeleteTasks(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM tasks WHERE id IN (%s)", placeholders(len(ids))), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk delete tasks: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// CountTasksBy returns row counts grouped by status, priority or label.
func (s *SQLiteStore) CountTasksBy(ctx context.Context, field string) (map[string]int, error) {
	switch field {
	case "status", "priority", "label":
	default:
		return nil, fmt.Errorf("cannot count tasks by %q", field)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM tasks GROUP BY %s", field, field))
	if err != nil {
		return nil, fmt.Errorf("count tasks by %s: %w", field, err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// TaskTitleExists reports whether any task has exactly this title.
func (s *SQLiteStore) TaskTitleExists(ctx context.Context, title string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks WHERE title = ?", title).Scan(&n); err != nil {
		return false, fmt.Errorf("check task title: %w", err)
	}
	return n > 0, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toStrings[T ~string](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = string(it)
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
