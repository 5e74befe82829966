package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/warden/pkg/database"
)

// DBLogger appends audit entries to the audit_logs table
type DBLogger struct {
	db *database.DB
}

// NewDBLogger creates a new database-backed audit logger. The table is
// created by database migrations.
func NewDBLogger(db *database.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts the entry and sets its ID
func (l *DBLogger) Log(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_logs (
			user_id, action, resource_type, resource_id,
			details, outcome, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		nullInt64(entry.ActorID), string(entry.Action), string(entry.Resource), nullInt64(entry.ResourceID),
		entry.Detail, string(entry.Outcome), entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Query returns entries matching the filter, newest first
func (l *DBLogger) Query(ctx context.Context, filter Filter) ([]*Entry, error) {
	query := `
		SELECT
			a.id, a.user_id, COALESCE(u.username, ''), a.action, a.resource_type,
			a.resource_id, a.details, a.outcome, a.ip_address, a.user_agent, a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.ActorID != nil {
		query += fmt.Sprintf(" AND a.user_id = $%d", argCount)
		args = append(args, *filter.ActorID)
		argCount++
	}

	if filter.Action != "" {
		query += fmt.Sprintf(" AND a.action = $%d", argCount)
		args = append(args, string(filter.Action))
		argCount++
	}

	if filter.Resource != "" {
		query += fmt.Sprintf(" AND a.resource_type = $%d", argCount)
		args = append(args, string(filter.Resource))
		argCount++
	}

	if filter.ResourceID != nil {
		query += fmt.Sprintf(" AND a.resource_id = $%d", argCount)
		args = append(args, *filter.ResourceID)
		argCount++
	}

	if filter.Outcome != "" {
		query += fmt.Sprintf(" AND a.outcome = $%d", argCount)
		args = append(args, string(filter.Outcome))
		argCount++
	}

	if filter.Since != nil {
		query += fmt.Sprintf(" AND a.created_at >= $%d", argCount)
		args = append(args, filter.Since.UTC())
		argCount++
	}

	if filter.Until != nil {
		query += fmt.Sprintf(" AND a.created_at <= $%d", argCount)
		args = append(args, filter.Until.UTC())
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.normalizedLimit(), max(filter.Offset, 0))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			e          Entry
			actorID    sql.NullInt64
			resourceID sql.NullInt64
			action     string
			resource   string
			outcome    string
		)
		if err := rows.Scan(
			&e.ID, &actorID, &e.ActorUsername, &action, &resource,
			&resourceID, &e.Detail, &outcome, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.Action = Action(action)
		e.Resource = Resource(resource)
		e.Outcome = Outcome(outcome)
		if actorID.Valid {
			e.ActorID = Int64(actorID.Int64)
		}
		if resourceID.Valid {
			e.ResourceID = Int64(resourceID.Int64)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Close is a no-op; the store handle is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
