package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"warden-hq/taskwarden/pkg/task"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// schema creates the usage-event table.
const schema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	tokens INTEGER NOT NULL,
	category TEXT NOT NULL,
	operation TEXT,
	cost REAL NOT NULL,
	timestamp INTEGER NOT NULL,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_usage_events_timestamp ON usage_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_events_category ON usage_events(category);
`

// SQLiteStore implements Store using SQLite for persistence.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex

	appendStmt *sql.Stmt
	queryStmt  *sql.Stmt
	pruneStmt  *sql.Stmt

	closeOnce sync.Once
}

// NewSQLiteStore opens (or creates) a usage-event store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.appendStmt, err = s.db.Prepare(`
		INSERT INTO usage_events (id, service, tokens, category, operation, cost, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append statement: %w", err)
	}

	s.queryStmt, err = s.db.Prepare(`
		SELECT id, service, tokens, category, operation, cost, timestamp, metadata
		FROM usage_events
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare query statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`
		DELETE FROM usage_events WHERE timestamp < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	return nil
}

// Append durably records one event.
func (s *SQLiteStore) Append(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" {
		return fmt.Errorf("event id cannot be empty")
	}

	metaJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.appendStmt.ExecContext(ctx,
		event.ID, event.Service, event.Tokens, string(event.Category),
		event.Operation, event.Cost, event.Timestamp.UnixMilli(), string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// QueryRange returns events with timestamps in [from, to), oldest first.
func (s *SQLiteStore) QueryRange(ctx context.Context, from, to time.Time) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryStmt.QueryContext(ctx, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e         Event
			category  string
			operation sql.NullString
			ts        int64
			metaJSON  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Service, &e.Tokens, &category,
			&operation, &e.Cost, &ts, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		e.Category = task.Category(category)
		e.Operation = operation.String
		e.Timestamp = time.UnixMilli(ts)
		if metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

// Prune deletes events older than the given time.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.pruneStmt.ExecContext(ctx, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Close releases resources held by the store.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.appendStmt, s.queryStmt, s.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		if s.db != nil {
			closeErr = s.db.Close()
		}
	})

	return closeErr
}
