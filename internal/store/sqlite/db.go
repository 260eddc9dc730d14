// Package sqlite implements the domain stores on SQLite for single-node
// deployments, local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflow_rules (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  tenant_id TEXT NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  conditions_json TEXT NOT NULL,
  approval_levels_json TEXT NOT NULL,
  priority INTEGER NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  skip_duplicate_signatures BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_rules_tenant ON workflow_rules (tenant_id, seq);

CREATE TABLE IF NOT EXISTS escalation_settings (
  tenant_id TEXT PRIMARY KEY,
  enabled BOOLEAN NOT NULL,
  escalation_timeout_hours INTEGER NOT NULL,
  max_escalation_levels INTEGER NOT NULL,
  auto_approve_after_max BOOLEAN NOT NULL,
  reminder_hours INTEGER NOT NULL,
  skip_absent_approvers BOOLEAN NOT NULL,
  skip_if_delegated BOOLEAN NOT NULL,
  updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS approvals (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  request_id TEXT NOT NULL,
  requester_id TEXT NOT NULL,
  requester_role TEXT NOT NULL DEFAULT '',
  leave_type_code TEXT NOT NULL DEFAULT '',
  department TEXT NOT NULL DEFAULT '',
  day_count TEXT NOT NULL DEFAULT '0',
  rule_id TEXT NOT NULL DEFAULT '',
  chain_json TEXT NOT NULL,
  skip_duplicate_signatures BOOLEAN NOT NULL DEFAULT 0,
  current_level_index INTEGER NOT NULL DEFAULT 0,
  escalation_count INTEGER NOT NULL DEFAULT 0,
  assigned_approver_id TEXT NOT NULL DEFAULT '',
  level_reassigned BOOLEAN NOT NULL DEFAULT 0,
  entered_at DATETIME NOT NULL,
  reminded_at DATETIME,
  status TEXT NOT NULL,
  decided_by TEXT NOT NULL DEFAULT '',
  decided_at DATETIME,
  last_error TEXT NOT NULL DEFAULT '',
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL,
  UNIQUE (tenant_id, request_id)
);
CREATE INDEX IF NOT EXISTS idx_approvals_pending ON approvals (tenant_id, status, entered_at);
CREATE INDEX IF NOT EXISTS idx_approvals_rule ON approvals (tenant_id, rule_id);

CREATE TABLE IF NOT EXISTS approval_events (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  tenant_id TEXT NOT NULL,
  approval_id TEXT NOT NULL REFERENCES approvals(id) ON DELETE CASCADE,
  type TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  level_index INTEGER NOT NULL,
  role TEXT NOT NULL DEFAULT '',
  from_approver TEXT NOT NULL DEFAULT '',
  to_approver TEXT NOT NULL DEFAULT '',
  note TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_approval_events_approval ON approval_events (approval_id, seq);

CREATE TABLE IF NOT EXISTS approvers (
  tenant_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL,
  department TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL,
  PRIMARY KEY (tenant_id, user_id, role)
);

CREATE TABLE IF NOT EXISTS delegations (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  delegator_id TEXT NOT NULL,
  delegate_id TEXT NOT NULL,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  revoked_at DATETIME,
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_delegations_delegator ON delegations (tenant_id, delegator_id);

CREATE TABLE IF NOT EXISTS absences (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_absences_user ON absences (tenant_id, user_id);

CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  read_at DATETIME,
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (tenant_id, user_id, created_at);

CREATE TABLE IF NOT EXISTS tenant_settings (
  tenant_id TEXT PRIMARY KEY,
  email_notifications_enabled BOOLEAN NOT NULL DEFAULT 0,
  email_from TEXT,
  updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  tenant_id TEXT NOT NULL,
  actor_user_id TEXT NOT NULL DEFAULT '',
  action TEXT NOT NULL,
  entity_type TEXT NOT NULL,
  entity_id TEXT NOT NULL DEFAULT '',
  before_json TEXT,
  after_json TEXT,
  request_id TEXT NOT NULL DEFAULT '',
  ip TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_tenant ON audit_events (tenant_id, seq);

CREATE TABLE IF NOT EXISTS job_runs (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  job_type TEXT NOT NULL,
  status TEXT NOT NULL,
  details_json TEXT,
  started_at DATETIME NOT NULL,
  completed_at DATETIME
);
`

// Open opens path, enables foreign keys and creates the schema. An
// in-memory database is pinned to one connection so every query sees the
// same data.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
		if path != ":memory:" {
			dsn += "&_journal_mode=WAL"
		}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// Stores bundles every SQLite store over one handle.
type Stores struct {
	DB            *sql.DB
	Workflow      *WorkflowStore
	Approvals     *ApprovalStore
	Escalation    *EscalationStore
	Directory     *DirectoryStore
	Notifications *NotificationStore
	Audit         *AuditStore
	Jobs          *JobRecorder
}

func NewStores(db *sql.DB) *Stores {
	return &Stores{
		DB:            db,
		Workflow:      NewWorkflowStore(db),
		Approvals:     NewApprovalStore(db),
		Escalation:    NewEscalationStore(db),
		Directory:     NewDirectoryStore(db),
		Notifications: NewNotificationStore(db),
		Audit:         NewAuditStore(db),
		Jobs:          NewJobRecorder(db),
	}
}

func newID() string {
	return uuid.NewString()
}

// utcNow is stored with a fixed zone so text comparisons order correctly.
func utcNow() time.Time {
	return time.Now().UTC()
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

// nullTime maps a nullable DATETIME column onto *time.Time.
func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
