package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

// Dialect identifies the SQL flavor a SQLStore speaks. Dialects differ in
// placeholder style, DDL column types, insert/upsert statements and row
// locking.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore is a durable Store backed by a SQL database. Rows are
// JSON-serialized for status/history/artifacts/metadata, matching the
// wire shapes in package a2a directly rather than normalizing into
// further tables.
//
// UpdateTaskStatus, AppendArtifact and CancelTask read-modify-write a
// single row, so each runs inside its own sql.Tx with a dialect-specific
// row lock (postgres/mysql use SELECT ... FOR UPDATE; sqlite has no
// equivalent and relies on the in-process per-task mutex below plus its
// own single-writer locking). The mutex is a defense-in-depth match for
// the common single-process deployment, mirroring MemoryStore's
// per-task taskEntry.mu.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect

	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

// NewSQLStore wraps an already-open *sql.DB. Callers are responsible for
// driver registration (lib/pq, go-sql-driver/mysql, mattn/go-sqlite3) and
// for running Migrate before first use.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, keys: make(map[string]*sync.Mutex)}
}

// lockTask acquires the in-process mutex for id, creating it on first
// use, and returns a function that releases it.
func (s *SQLStore) lockTask(id string) func() {
	s.keysMu.Lock()
	m, ok := s.keys[id]
	if !ok {
		m = &sync.Mutex{}
		s.keys[id] = m
	}
	s.keysMu.Unlock()

	m.Lock()
	return m.Unlock
}

// Migrate creates the tasks and push_notifications tables if they do not
// already exist. Safe to call on every startup.
func (s *SQLStore) Migrate(ctx context.Context) error {
	var ddl string
	switch s.dialect {
	case DialectPostgres:
		ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	context_id TEXT NOT NULL,
	status JSONB NOT NULL,
	history JSONB NOT NULL,
	artifacts JSONB NOT NULL,
	metadata JSONB,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS push_notifications (
	task_id TEXT PRIMARY KEY REFERENCES tasks(id),
	config JSONB NOT NULL
);`
	case DialectMySQL:
		ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id VARCHAR(255) PRIMARY KEY,
	context_id VARCHAR(255) NOT NULL,
	status JSON NOT NULL,
	history JSON NOT NULL,
	artifacts JSON NOT NULL,
	metadata JSON,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS push_notifications (
	task_id VARCHAR(255) PRIMARY KEY,
	config JSON NOT NULL
);`
	default: // sqlite
		ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	context_id TEXT NOT NULL,
	status TEXT NOT NULL,
	history TEXT NOT NULL,
	artifacts TEXT NOT NULL,
	metadata TEXT,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS push_notifications (
	task_id TEXT PRIMARY KEY,
	config TEXT NOT NULL
);`
	}
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) CreateTask(ctx context.Context, id, contextID string) (*a2a.Task, error) {
	t := a2a.NewTask(id, contextID)
	row, err := taskToRow(t)
	if err != nil {
		return nil, err
	}

	var q string
	switch s.dialect {
	case DialectPostgres:
		q = `INSERT INTO tasks (id, context_id, status, history, artifacts, metadata, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO NOTHING`
	case DialectMySQL:
		q = `INSERT IGNORE INTO tasks (id, context_id, status, history, artifacts, metadata, updated_at)
			VALUES (?,?,?,?,?,?,?)`
	default:
		q = `INSERT OR IGNORE INTO tasks (id, context_id, status, history, artifacts, metadata, updated_at)
			VALUES (?,?,?,?,?,?,?)`
	}

	res, err := s.db.ExecContext(ctx, q, row.id, row.contextID, row.status, row.history, row.artifacts, row.metadata, row.updatedAt)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrTaskExists
	}
	return t, nil
}

func (s *SQLStore) GetTask(ctx context.Context, id string, historyLength *int) (*a2a.Task, error) {
	q := fmt.Sprintf(`SELECT id, context_id, status, history, artifacts, metadata, updated_at FROM tasks WHERE id = %s`, s.placeholder(1))
	var row taskRow
	err := s.db.QueryRowContext(ctx, q, id).Scan(&row.id, &row.contextID, &row.status, &row.history, &row.artifacts, &row.metadata, &row.updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	t, err := rowToTask(row)
	if err != nil {
		return nil, err
	}
	applyHistoryLength(t, historyLength)
	return t, nil
}

func (s *SQLStore) UpdateTaskStatus(ctx context.Context, id string, state a2a.TaskState, statusMessage *a2a.Message) (*a2a.Task, error) {
	defer s.lockTask(id)()

	var t *a2a.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = s.getTaskForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		t.Status = a2a.TaskStatus{State: state, Timestamp: &now}
		if statusMessage != nil {
			t.Status.Message = statusMessage
			t.History = append(t.History, *statusMessage)
		}
		return s.saveTaskTx(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLStore) AppendArtifact(ctx context.Context, id string, artifact a2a.Artifact) (*a2a.Task, error) {
	defer s.lockTask(id)()

	var t *a2a.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = s.getTaskForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		found := false
		for i := range t.Artifacts {
			if t.Artifacts[i].ArtifactID == artifact.ArtifactID {
				t.Artifacts[i] = artifact
				found = true
				break
			}
		}
		if !found {
			t.Artifacts = append(t.Artifacts, artifact)
		}
		return s.saveTaskTx(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLStore) CancelTask(ctx context.Context, id string) (*a2a.Task, error) {
	defer s.lockTask(id)()

	var t *a2a.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = s.getTaskForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.Status.State != a2a.TaskStateWorking {
			return ErrTaskNotCancelable
		}

		now := time.Now().UTC()
		synth := a2a.Message{
			Role:      a2a.MessageRoleAgent,
			MessageID: fmt.Sprintf("%s-canceled", id),
			TaskID:    id,
			ContextID: t.ContextID,
			Kind:      "message",
			Parts: []a2a.Part{{
				Type: a2a.PartTypeText,
				Text: fmt.Sprintf("Task %s canceled.", id),
			}},
		}
		t.Status = a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: &now, Message: &synth}
		t.History = append(t.History, synth)
		return s.saveTaskTx(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLStore) TaskExists(ctx context.Context, id string) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM tasks WHERE id = %s`, s.placeholder(1))
	var x int
	err := s.db.QueryRowContext(ctx, q, id).Scan(&x)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLStore) SetPushNotification(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	if ok, err := s.TaskExists(ctx, cfg.TaskID); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	} else if !ok {
		return a2a.TaskPushNotificationConfig{}, ErrTaskNotFound
	}

	data, err := json.Marshal(cfg.PushNotificationConfig)
	if err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}

	var q string
	switch s.dialect {
	case DialectPostgres:
		q = `INSERT INTO push_notifications (task_id, config) VALUES ($1,$2)
			ON CONFLICT (task_id) DO UPDATE SET config = EXCLUDED.config`
	case DialectMySQL:
		q = `INSERT INTO push_notifications (task_id, config) VALUES (?,?)
			ON DUPLICATE KEY UPDATE config = VALUES(config)`
	default:
		q = `INSERT INTO push_notifications (task_id, config) VALUES (?,?)
			ON CONFLICT (task_id) DO UPDATE SET config = excluded.config`
	}
	if _, err := s.db.ExecContext(ctx, q, cfg.TaskID, data); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return cfg, nil
}

func (s *SQLStore) GetPushNotification(ctx context.Context, taskID string) (a2a.TaskPushNotificationConfig, error) {
	q := fmt.Sprintf(`SELECT config FROM push_notifications WHERE task_id = %s`, s.placeholder(1))
	var data []byte
	err := s.db.QueryRowContext(ctx, q, taskID).Scan(&data)
	if err == sql.ErrNoRows {
		return a2a.TaskPushNotificationConfig{}, ErrPushNotConfigured
	}
	if err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	var cfg a2a.PushNotificationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return a2a.TaskPushNotificationConfig{TaskID: taskID, PushNotificationConfig: cfg}, nil
}

func (s *SQLStore) RemovePushNotification(ctx context.Context, taskID string) error {
	q := fmt.Sprintf(`DELETE FROM push_notifications WHERE task_id = %s`, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, q, taskID)
	return err
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error fn returns (including a sentinel like
// ErrTaskNotCancelable, so a failed precondition never leaves a tx open).
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// forUpdateClause returns the row-lock suffix for dialects that support
// one. sqlite (mattn driver) has no SELECT ... FOR UPDATE; correctness
// there rests on the in-process per-task mutex instead.
func (s *SQLStore) forUpdateClause() string {
	switch s.dialect {
	case DialectPostgres, DialectMySQL:
		return " FOR UPDATE"
	default:
		return ""
	}
}

func (s *SQLStore) getTaskForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*a2a.Task, error) {
	q := fmt.Sprintf(`SELECT id, context_id, status, history, artifacts, metadata, updated_at FROM tasks WHERE id = %s%s`,
		s.placeholder(1), s.forUpdateClause())
	var row taskRow
	err := tx.QueryRowContext(ctx, q, id).Scan(&row.id, &row.contextID, &row.status, &row.history, &row.artifacts, &row.metadata, &row.updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToTask(row)
}

func (s *SQLStore) saveTaskTx(ctx context.Context, tx *sql.Tx, t *a2a.Task) error {
	row, err := taskToRow(t)
	if err != nil {
		return err
	}

	var q string
	switch s.dialect {
	case DialectPostgres:
		q = `UPDATE tasks SET status=$2, history=$3, artifacts=$4, metadata=$5, updated_at=$6 WHERE id=$1`
	default:
		q = `UPDATE tasks SET status=?, history=?, artifacts=?, metadata=?, updated_at=? WHERE id=?`
	}

	if s.dialect == DialectPostgres {
		_, err = tx.ExecContext(ctx, q, row.id, row.status, row.history, row.artifacts, row.metadata, row.updatedAt)
	} else {
		_, err = tx.ExecContext(ctx, q, row.status, row.history, row.artifacts, row.metadata, row.updatedAt, row.id)
	}
	return err
}

type taskRow struct {
	id        string
	contextID string
	status    []byte
	history   []byte
	artifacts []byte
	metadata  []byte
	updatedAt time.Time
}

func taskToRow(t *a2a.Task) (taskRow, error) {
	status, err := json.Marshal(t.Status)
	if err != nil {
		return taskRow{}, err
	}
	history, err := json.Marshal(t.History)
	if err != nil {
		return taskRow{}, err
	}
	artifacts, err := json.Marshal(t.Artifacts)
	if err != nil {
		return taskRow{}, err
	}
	var metadata []byte
	if t.Metadata != nil {
		metadata, err = json.Marshal(t.Metadata)
		if err != nil {
			return taskRow{}, err
		}
	}
	return taskRow{
		id:        t.ID,
		contextID: t.ContextID,
		status:    status,
		history:   history,
		artifacts: artifacts,
		metadata:  metadata,
		updatedAt: time.Now().UTC(),
	}, nil
}

func rowToTask(row taskRow) (*a2a.Task, error) {
	t := &a2a.Task{ID: row.id, ContextID: row.contextID, Kind: "task"}
	if err := json.Unmarshal(row.status, &t.Status); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.history, &t.History); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.artifacts, &t.Artifacts); err != nil {
		return nil, err
	}
	if len(row.metadata) > 0 {
		if err := json.Unmarshal(row.metadata, &t.Metadata); err != nil {
			return nil, err
		}
	}
	return t, nil
}
