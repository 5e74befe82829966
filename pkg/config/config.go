package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/warden/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Sessions      SessionConfig       `yaml:"sessions"`
	Scanner       ScannerConfig       `yaml:"scanner"`
	Artifacts     ArtifactConfig      `yaml:"artifacts"`
	Audit         AuditConfig         `yaml:"audit"`
	Access        AccessConfig        `yaml:"access"`
	Bootstrap     BootstrapConfig     `yaml:"bootstrap"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	TrustProxy      bool          `yaml:"trust_proxy"` // take client addresses from X-Forwarded-For

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds store connection settings
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// SessionConfig selects where login sessions are kept
type SessionConfig struct {
	Backend  string        `yaml:"backend"` // sql or redis
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
}

// ScannerConfig describes the external vulnerability scanner
type ScannerConfig struct {
	Command    string        `yaml:"command"`
	Args       []string      `yaml:"args"`
	WorkDir    string        `yaml:"work_dir"`
	OutputGlob string        `yaml:"output_glob"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ArtifactConfig selects where scanner output files are archived
type ArtifactConfig struct {
	Backend        string `yaml:"backend"` // filesystem, s3 or none
	Root           string `yaml:"root"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Region       string `yaml:"s3_region"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Prefix       string `yaml:"s3_prefix"`
	S3AccessKey    string `yaml:"-"`
	S3SecretKey    string `yaml:"-"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

// AuditConfig configures the optional JSON-lines audit file next to the audit table
type AuditConfig struct {
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AccessConfig tunes the project gate and login throttling
type AccessConfig struct {
	MembershipCacheTTL  time.Duration `yaml:"membership_cache_ttl"` // 0 disables the cache
	MembershipCacheSize int           `yaml:"membership_cache_size"`
	LoginRateLimit      int           `yaml:"login_rate_limit"` // attempts per minute per client, 0 disables
	LoginBurst          int           `yaml:"login_burst"`
}

// BootstrapConfig seeds the first administrator. The password is only read
// from the environment.
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"-"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			HealthPort:      "9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    6 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  16 << 20,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "warden.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Sessions: SessionConfig{
			Backend: "sql",
			TTL:     12 * time.Hour,
		},
		Scanner: ScannerConfig{
			Command:    "python3",
			Args:       []string{"bitrix24_vulnerability_scanner.py"},
			WorkDir:    ".",
			OutputGlob: "bitrix24_scan_report_*.json",
			Timeout:    5 * time.Minute,
		},
		Artifacts: ArtifactConfig{
			Backend:  "filesystem",
			Root:     "reports",
			S3Region: "us-east-1",
			S3Prefix: "scans/",
		},
		Audit: AuditConfig{
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 90,
		},
		Access: AccessConfig{
			MembershipCacheSize: 1024,
			LoginRateLimit:      10,
			LoginBurst:          5,
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
			AdminEmail:    "admin@localhost",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "warden",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads defaults, overlays the YAML file named by WARDEN_CONFIG_FILE,
// then applies environment variables and validates the result
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv("WARDEN_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("WARDEN_HOST", s.Host)
	s.Port = getEnv("WARDEN_PORT", s.Port)
	s.HealthPort = getEnv("WARDEN_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("WARDEN_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WARDEN_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("WARDEN_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxUploadBytes = getEnvInt64("WARDEN_MAX_UPLOAD_BYTES", s.MaxUploadBytes)
	s.TrustProxy = getEnvBool("WARDEN_TRUST_PROXY", s.TrustProxy)

	d := &c.Database
	d.Driver = getEnv("WARDEN_DB_DRIVER", d.Driver)
	d.DSN = getEnv("WARDEN_DB_DSN", d.DSN)
	d.MaxOpenConns = getEnvInt("WARDEN_DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvInt("WARDEN_DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvDuration("WARDEN_DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)

	sess := &c.Sessions
	sess.Backend = getEnv("WARDEN_SESSION_BACKEND", sess.Backend)
	sess.TTL = getEnvDuration("WARDEN_SESSION_TTL", sess.TTL)
	sess.RedisURL = getEnv("WARDEN_REDIS_URL", sess.RedisURL)

	sc := &c.Scanner
	sc.Command = getEnv("WARDEN_SCANNER_COMMAND", sc.Command)
	if args := getEnv("WARDEN_SCANNER_ARGS", ""); args != "" {
		sc.Args = strings.Fields(args)
	}
	sc.WorkDir = getEnv("WARDEN_SCANNER_WORKDIR", sc.WorkDir)
	sc.OutputGlob = getEnv("WARDEN_SCANNER_OUTPUT_GLOB", sc.OutputGlob)
	sc.Timeout = getEnvDuration("WARDEN_SCANNER_TIMEOUT", sc.Timeout)

	a := &c.Artifacts
	a.Backend = getEnv("WARDEN_ARTIFACT_BACKEND", a.Backend)
	a.Root = getEnv("WARDEN_ARTIFACT_ROOT", a.Root)
	a.S3Bucket = getEnv("WARDEN_S3_BUCKET", a.S3Bucket)
	a.S3Region = getEnv("WARDEN_S3_REGION", a.S3Region)
	a.S3Endpoint = getEnv("WARDEN_S3_ENDPOINT", a.S3Endpoint)
	a.S3Prefix = getEnv("WARDEN_S3_PREFIX", a.S3Prefix)
	a.S3AccessKey = getEnv("WARDEN_S3_ACCESS_KEY", a.S3AccessKey)
	a.S3SecretKey = getEnv("WARDEN_S3_SECRET_KEY", a.S3SecretKey)
	a.S3UsePathStyle = getEnvBool("WARDEN_S3_USE_PATH_STYLE", a.S3UsePathStyle)

	au := &c.Audit
	au.FilePath = getEnv("WARDEN_AUDIT_FILE", au.FilePath)
	au.MaxSizeMB = getEnvInt("WARDEN_AUDIT_MAX_SIZE_MB", au.MaxSizeMB)
	au.MaxBackups = getEnvInt("WARDEN_AUDIT_MAX_BACKUPS", au.MaxBackups)
	au.MaxAgeDays = getEnvInt("WARDEN_AUDIT_MAX_AGE_DAYS", au.MaxAgeDays)

	ac := &c.Access
	ac.MembershipCacheTTL = getEnvDuration("WARDEN_MEMBERSHIP_CACHE_TTL", ac.MembershipCacheTTL)
	ac.MembershipCacheSize = getEnvInt("WARDEN_MEMBERSHIP_CACHE_SIZE", ac.MembershipCacheSize)
	ac.LoginRateLimit = getEnvInt("WARDEN_LOGIN_RATE_LIMIT", ac.LoginRateLimit)
	ac.LoginBurst = getEnvInt("WARDEN_LOGIN_BURST", ac.LoginBurst)

	b := &c.Bootstrap
	b.AdminUsername = getEnv("WARDEN_ADMIN_USERNAME", b.AdminUsername)
	b.AdminEmail = getEnv("WARDEN_ADMIN_EMAIL", b.AdminEmail)
	b.AdminPassword = getEnv("WARDEN_ADMIN_PASSWORD", b.AdminPassword)

	o := &c.Observability
	o.LogLevel = getEnv("WARDEN_LOG_LEVEL", o.LogLevel)
	o.LogFile = getEnv("WARDEN_LOG_FILE", o.LogFile)
	o.MetricsEnabled = getEnvBool("WARDEN_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("WARDEN_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("WARDEN_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("WARDEN_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("WARDEN_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("WARDEN_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("WARDEN_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres, sqlite or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	switch c.Sessions.Backend {
	case "sql":
	case "redis":
		if c.Sessions.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis sessions")
		}
	default:
		return fmt.Errorf("invalid session backend: %s (must be sql or redis)", c.Sessions.Backend)
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.Scanner.Command == "" {
		return fmt.Errorf("scanner command is required")
	}
	if c.Scanner.Timeout <= 0 {
		return fmt.Errorf("scanner timeout must be positive")
	}

	switch c.Artifacts.Backend {
	case "none":
	case "filesystem":
		if c.Artifacts.Root == "" {
			return fmt.Errorf("artifact root is required for filesystem artifacts")
		}
	case "s3":
		if c.Artifacts.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 artifacts")
		}
	default:
		return fmt.Errorf("invalid artifact backend: %s (must be filesystem, s3 or none)", c.Artifacts.Backend)
	}

	if c.Access.MembershipCacheTTL < 0 || c.Access.MembershipCacheSize < 0 {
		return fmt.Errorf("membership cache settings must not be negative")
	}
	if c.Access.LoginRateLimit < 0 || c.Access.LoginBurst < 0 {
		return fmt.Errorf("login rate limit settings must not be negative")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
