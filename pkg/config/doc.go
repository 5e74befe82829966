// Package config loads warden configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence (env wins).
//
// # Configuration Structure
//
// Server settings:
//
//	WARDEN_HOST="0.0.0.0"
//	WARDEN_PORT="8080"
//	WARDEN_HEALTH_PORT="9090"
//
// Store and sessions:
//
//	WARDEN_DB_DRIVER="postgres"  # postgres, sqlite, sqlite3
//	WARDEN_DB_DSN="postgres://localhost/warden?sslmode=disable"
//	WARDEN_SESSION_BACKEND="redis"  # sql, redis
//	WARDEN_REDIS_URL="redis://localhost:6379/0"
//
// Scanner and artifacts:
//
//	WARDEN_SCANNER_COMMAND="python3"
//	WARDEN_SCANNER_ARGS="bitrix24_vulnerability_scanner.py"
//	WARDEN_SCANNER_TIMEOUT="5m"
//	WARDEN_ARTIFACT_BACKEND="s3"  # filesystem, s3, none
//	WARDEN_S3_BUCKET="warden-artifacts"
//
// Bootstrap administrator (seeded only when the password is set):
//
//	WARDEN_ADMIN_USERNAME="admin"
//	WARDEN_ADMIN_PASSWORD="..."
//
// A YAML file named by WARDEN_CONFIG_FILE uses the same sections in
// snake_case. Secrets (admin password, S3 keys) are never read from the file.
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
