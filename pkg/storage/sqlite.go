package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"warden-hq/taskwarden/pkg/task"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence.
// Suitable for single-instance deployments where task history and limit
// configuration must survive restarts.
//
// The backend uses WAL journaling for concurrent read performance and runs
// a periodic checkpoint to bound WAL growth.
type SQLiteBackend struct {
	db              *sql.DB
	checkpointEvery time.Duration
	done            chan struct{}
	closeOnce       sync.Once
	mu              sync.RWMutex

	saveTaskStmt     *sql.Stmt
	getTaskStmt      *sql.Stmt
	listTasksStmt    *sql.Stmt
	saveLimitsStmt   *sql.Stmt
	loadLimitsStmt   *sql.Stmt
	saveCountersStmt *sql.Stmt
	loadCountersStmt *sql.Stmt
	cleanupStmt      *sql.Stmt
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes.
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom settings.
func NewSQLiteBackendWithConfig(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:              db,
		checkpointEvery: cfg.CheckpointInterval,
		done:            make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		priority INTEGER NOT NULL,
		status TEXT NOT NULL,
		instructions TEXT NOT NULL,
		capabilities TEXT,
		estimated_tokens INTEGER NOT NULL,
		actual_tokens INTEGER,
		duration_ms INTEGER,
		result TEXT,
		error TEXT,
		created_at INTEGER NOT NULL,
		started_at INTEGER,
		completed_at INTEGER,
		created_by TEXT,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

	CREATE TABLE IF NOT EXISTS rate_limits (
		category TEXT PRIMARY KEY,
		tokens_per_minute INTEGER NOT NULL,
		tokens_per_hour INTEGER NOT NULL,
		tokens_per_day INTEGER NOT NULL,
		requests_per_minute INTEGER NOT NULL,
		requests_per_hour INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rate_limit_counters (
		category TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.saveTaskStmt, err = s.db.Prepare(`
		INSERT INTO tasks (id, name, category, priority, status, instructions,
			capabilities, estimated_tokens, actual_tokens, duration_ms, result,
			error, created_at, started_at, completed_at, created_by, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			actual_tokens = excluded.actual_tokens,
			duration_ms = excluded.duration_ms,
			result = excluded.result,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save task statement: %w", err)
	}

	s.getTaskStmt, err = s.db.Prepare(`
		SELECT id, name, category, priority, status, instructions, capabilities,
			estimated_tokens, actual_tokens, duration_ms, result, error,
			created_at, started_at, completed_at, created_by, metadata
		FROM tasks WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get task statement: %w", err)
	}

	s.listTasksStmt, err = s.db.Prepare(`
		SELECT id, name, category, priority, status, instructions, capabilities,
			estimated_tokens, actual_tokens, duration_ms, result, error,
			created_at, started_at, completed_at, created_by, metadata
		FROM tasks
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at DESC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list tasks statement: %w", err)
	}

	s.saveLimitsStmt, err = s.db.Prepare(`
		INSERT INTO rate_limits (category, tokens_per_minute, tokens_per_hour,
			tokens_per_day, requests_per_minute, requests_per_hour, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (category) DO UPDATE SET
			tokens_per_minute = excluded.tokens_per_minute,
			tokens_per_hour = excluded.tokens_per_hour,
			tokens_per_day = excluded.tokens_per_day,
			requests_per_minute = excluded.requests_per_minute,
			requests_per_hour = excluded.requests_per_hour,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save limits statement: %w", err)
	}

	s.loadLimitsStmt, err = s.db.Prepare(`
		SELECT category, tokens_per_minute, tokens_per_hour, tokens_per_day,
			requests_per_minute, requests_per_hour
		FROM rate_limits
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load limits statement: %w", err)
	}

	s.saveCountersStmt, err = s.db.Prepare(`
		INSERT INTO rate_limit_counters (category, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (category) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare save counters statement: %w", err)
	}

	s.loadCountersStmt, err = s.db.Prepare(`
		SELECT category, state FROM rate_limit_counters
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare load counters statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM tasks
		WHERE created_at < ? AND status IN ('completed', 'failed')
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// SaveTask inserts or updates a task record.
func (s *SQLiteBackend) SaveTask(ctx context.Context, t *task.Task) error {
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if t.ID == "" {
		return fmt.Errorf("task id cannot be empty")
	}

	capsJSON, err := json.Marshal(t.Capabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal capabilities: %w", err)
	}
	metaJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.saveTaskStmt.ExecContext(ctx,
		t.ID, t.Name, string(t.Category), int(t.Priority), string(t.Status),
		t.Instructions, string(capsJSON), t.EstimatedTokens, t.ActualTokens,
		t.Duration.Milliseconds(), t.Result, t.Error,
		t.CreatedAt.Unix(), unixOrZero(t.StartedAt), unixOrZero(t.CompletedAt),
		t.CreatedBy, string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	return nil
}

// GetTask retrieves a task by id.
func (s *SQLiteBackend) GetTask(ctx context.Context, id string) (*task.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("task id cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanTask(s.getTaskStmt.QueryRowContext(ctx, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return t, nil
}

// ListTasks returns tasks created within [from, to), newest first.
func (s *SQLiteBackend) ListTasks(ctx context.Context, from, to time.Time) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.listTasksStmt.QueryContext(ctx, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// SaveLimits upserts the ceiling configuration for a category.
func (s *SQLiteBackend) SaveLimits(ctx context.Context, category task.Category, limits LimitConfig) error {
	if category == "" {
		return fmt.Errorf("category cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.saveLimitsStmt.ExecContext(ctx,
		string(category),
		limits.TokensPerMinute, limits.TokensPerHour, limits.TokensPerDay,
		limits.RequestsPerMinute, limits.RequestsPerHour,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save limits: %w", err)
	}

	return nil
}

// LoadLimits returns all persisted ceiling configurations.
func (s *SQLiteBackend) LoadLimits(ctx context.Context) (map[task.Category]LimitConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.loadLimitsStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load limits: %w", err)
	}
	defer rows.Close()

	out := make(map[task.Category]LimitConfig)
	for rows.Next() {
		var category string
		var cfg LimitConfig
		if err := rows.Scan(&category, &cfg.TokensPerMinute, &cfg.TokensPerHour,
			&cfg.TokensPerDay, &cfg.RequestsPerMinute, &cfg.RequestsPerHour); err != nil {
			return nil, fmt.Errorf("failed to scan limits row: %w", err)
		}
		out[task.Category(category)] = cfg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// SaveCounters upserts the live counter state for a category.
// The state is stored as JSON, mirroring how limit snapshots serialize.
func (s *SQLiteBackend) SaveCounters(ctx context.Context, category task.Category, state CounterState) error {
	if category == "" {
		return fmt.Errorf("category cannot be empty")
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal counter state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.saveCountersStmt.ExecContext(ctx, string(category), string(stateJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save counters: %w", err)
	}

	return nil
}

// LoadCounters returns all persisted counter states.
func (s *SQLiteBackend) LoadCounters(ctx context.Context) (map[task.Category]CounterState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.loadCountersStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}
	defer rows.Close()

	out := make(map[task.Category]CounterState)
	for rows.Next() {
		var category, stateJSON string
		if err := rows.Scan(&category, &stateJSON); err != nil {
			return nil, fmt.Errorf("failed to scan counters row: %w", err)
		}

		var state CounterState
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal counter state: %w", err)
		}
		out[task.Category(category)] = state
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// Cleanup removes terminal task records older than the given time.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Close releases resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{
			s.saveTaskStmt, s.getTaskStmt, s.listTasksStmt,
			s.saveLimitsStmt, s.loadLimitsStmt,
			s.saveCountersStmt, s.loadCountersStmt, s.cleanupStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row into a Task.
func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t           task.Task
		category    string
		priority    int
		status      string
		capsJSON    sql.NullString
		durationMS  sql.NullInt64
		result      sql.NullString
		taskErr     sql.NullString
		createdAt   int64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
		createdBy   sql.NullString
		metaJSON    sql.NullString
	)

	err := row.Scan(&t.ID, &t.Name, &category, &priority, &status,
		&t.Instructions, &capsJSON, &t.EstimatedTokens, &t.ActualTokens,
		&durationMS, &result, &taskErr, &createdAt, &startedAt, &completedAt,
		&createdBy, &metaJSON)
	if err != nil {
		return nil, err
	}

	t.Category = task.Category(category)
	t.Priority = task.Priority(priority)
	t.Status = task.Status(status)
	t.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	t.Result = result.String
	t.Error = taskErr.String
	t.CreatedAt = time.Unix(createdAt, 0)
	t.CreatedBy = createdBy.String
	if startedAt.Int64 > 0 {
		t.StartedAt = time.Unix(startedAt.Int64, 0)
	}
	if completedAt.Int64 > 0 {
		t.CompletedAt = time.Unix(completedAt.Int64, 0)
	}
	if capsJSON.String != "" {
		if err := json.Unmarshal([]byte(capsJSON.String), &t.Capabilities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal capabilities: %w", err)
		}
	}
	if metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &t, nil
}

// unixOrZero converts a timestamp to unix seconds, with zero for the zero time.
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
