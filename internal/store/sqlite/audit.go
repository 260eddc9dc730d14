package sqlite

import (
	"context"
	"database/sql"

	"leaveflow/internal/domain/audit"
)

// AuditStore implements audit.StoreAPI.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Insert(ctx context.Context, tenantID string, evt audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO audit_events (id, tenant_id, actor_user_id, action, entity_type, entity_id,
      before_json, after_json, request_id, ip, created_at)
    VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		newID(), tenantID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID,
		nullText(evt.Before), nullText(evt.After), evt.RequestID, evt.IP, utcNow())
	return err
}

func (s *AuditStore) Count(ctx context.Context, tenantID string, filter audit.Filter) (int, error) {
	query, args := auditQuery("SELECT COUNT(1)", tenantID, filter)
	var total int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&total)
	return total, err
}

func (s *AuditStore) List(ctx context.Context, tenantID string, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error) {
	cols := "id, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at"
	if includeDetails {
		cols += ", before_json, after_json"
	}
	query, args := auditQuery("SELECT "+cols, tenantID, filter)
	query += " ORDER BY seq DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var evt audit.Event
		var before, after sql.NullString
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &before, &after)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if before.Valid {
			evt.Before = []byte(before.String)
		}
		if after.Valid {
			evt.After = []byte(after.String)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func auditQuery(prefix, tenantID string, filter audit.Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE tenant_id = ?"
	args := []any{tenantID}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	if filter.ActorUser != "" {
		query += " AND actor_user_id = ?"
		args = append(args, filter.ActorUser)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, utc(filter.Since))
	}
	if !filter.Until.IsZero() {
		query += " AND created_at < ?"
		args = append(args, utc(filter.Until))
	}
	return query, args
}

func nullText(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
