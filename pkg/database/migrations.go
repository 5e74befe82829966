package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration represents a forward-only schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// serialPlaceholder is replaced by the dialect's auto-increment primary key
const serialPlaceholder = "{{serial}}"

// GetMigrations returns all warden migrations in version order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id {{serial}},
					username VARCHAR(80) NOT NULL UNIQUE,
					email VARCHAR(120) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					role VARCHAR(20) NOT NULL DEFAULT 'viewer',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL,
					last_login_at TIMESTAMP
				);
			`,
		},
		{
			Version:     2,
			Description: "Create projects and project_members tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id {{serial}},
					name VARCHAR(200) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					url VARCHAR(500) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'active',
					created_by BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_projects_created_by ON projects(created_by);

				CREATE TABLE IF NOT EXISTS project_members (
					project_id BIGINT NOT NULL REFERENCES projects(id),
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					added_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					added_at TIMESTAMP NOT NULL,
					PRIMARY KEY (project_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_project_members_user_id ON project_members(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create vulnerability_scans and system_reports tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS vulnerability_scans (
					id {{serial}},
					project_id BIGINT NOT NULL REFERENCES projects(id),
					scan_data TEXT NOT NULL,
					target_url VARCHAR(500) NOT NULL DEFAULT '',
					status VARCHAR(20) NOT NULL DEFAULT 'completed',
					duration_seconds DOUBLE PRECISION,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_vulnerability_scans_project ON vulnerability_scans(project_id, created_at);

				CREATE TABLE IF NOT EXISTS system_reports (
					id {{serial}},
					project_id BIGINT NOT NULL REFERENCES projects(id),
					report_data TEXT NOT NULL,
					uploaded_by BIGINT NOT NULL REFERENCES users(id),
					report_date TIMESTAMP NOT NULL,
					filename VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_system_reports_project ON system_reports(project_id, created_at);
			`,
		},
		{
			Version:     4,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id {{serial}},
					user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					action VARCHAR(50) NOT NULL,
					resource_type VARCHAR(50) NOT NULL,
					resource_id BIGINT,
					details TEXT NOT NULL DEFAULT '',
					outcome VARCHAR(20) NOT NULL DEFAULT 'success',
					ip_address VARCHAR(45) NOT NULL DEFAULT '',
					user_agent VARCHAR(500) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs(created_at);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action);
			`,
		},
		{
			Version:     5,
			Description: "Create sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sessions (
					token_hash VARCHAR(64) PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL,
					expires_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
			`,
		},
	}
}

// render substitutes dialect-specific column types into a migration
func (d Dialect) render(ddl string) string {
	serial := "BIGSERIAL PRIMARY KEY"
	if d.IsSQLite() {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return strings.ReplaceAll(ddl, serialPlaceholder, serial)
}

// Migrate applies every pending migration and returns the versions it applied
func (db *DB) Migrate(ctx context.Context) ([]int, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var ran []int
	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, db.dialect.render(migration.SQL)); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}

			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
				migration.Version, migration.Description, time.Now().UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return ran, err
		}
		ran = append(ran, migration.Version)
	}

	return ran, nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		versions[version] = true
	}
	return versions, rows.Err()
}
