package pgscope

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/pgscope/pgscope/internal/errs"
)

// Environment variables read by LoadEnv. The connection descriptor wins over
// the discrete PGSCOPE_DB_* fields when both are set.
const (
	EnvConnString  = "POSTGRES_CONNECTION_STRING"
	EnvDatabaseURL = "DATABASE_URL"
	EnvDBUser      = "PGSCOPE_DB_USER"
	EnvDBPassword  = "PGSCOPE_DB_PASSWORD"
	EnvDBHost      = "PGSCOPE_DB_HOST"
	EnvDBPort      = "PGSCOPE_DB_PORT"
	EnvDBName      = "PGSCOPE_DB_NAME"
	EnvDBSSLMode   = "PGSCOPE_DB_SSLMODE"
	EnvServerHost  = "PGSCOPE_HOST"
	EnvServerPort  = "PGSCOPE_PORT"
	EnvLogLevel    = "PGSCOPE_LOG_LEVEL"
	EnvLogFormat   = "PGSCOPE_LOG_FORMAT"
	EnvLogOutput   = "PGSCOPE_LOG_OUTPUT"

	// EnvFile points the CLI at an alternate .env file. LoadEnv itself only
	// auto-loads ./.env; the CLI loads this file first when set.
	EnvFile = "PGSCOPE_ENV_FILE"
)

// Defaults applied to zero-valued configuration.
const (
	DefaultMinConns                = 5
	DefaultMaxConns                = 20
	DefaultStatementTimeoutSeconds = 60
	DefaultRowLimit                = 1000
)

// Config is the library-mode configuration consumed by NewPool and New.
type Config struct {
	Pool  PoolConfig  `json:"pool"`
	Query QueryConfig `json:"query"`
}

// PoolConfig holds connection pool sizing and session settings.
// Zero values take the package defaults.
type PoolConfig struct {
	MinConns                int    `json:"min_conns"`
	MaxConns                int    `json:"max_conns"`
	StatementTimeoutSeconds int    `json:"statement_timeout_seconds"`
	MaxConnLifetime         string `json:"max_conn_lifetime"`
	MaxConnIdleTime         string `json:"max_conn_idle_time"`
	HealthCheckPeriod       string `json:"health_check_period"`

	// ReadOnly sets default_transaction_read_only on every pooled session,
	// so the backend itself refuses writes regardless of the query gate.
	// The server always turns this on; the pool layer stays generic.
	ReadOnly bool `json:"read_only"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultRowLimit int `json:"default_row_limit"`
}

// ServerConfig embeds Config and adds the fields the CLI needs.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters. ConnString, when
// set, is used verbatim; otherwise a descriptor is composed from the
// discrete fields.
type ConnectionConfig struct {
	ConnString string `json:"-"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"-"`
	DBName     string `json:"dbname"`
	SSLMode    string `json:"sslmode"`
}

// ServerSettings holds HTTP bind settings for the MCP server.
type ServerSettings struct {
	Host               string `json:"host"`
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// LoadEnv assembles a ServerConfig from the process environment. A .env file
// in the working directory is honored when present; real environment
// variables win over .env entries. The returned config has the read-only
// session setting enabled.
func LoadEnv() (*ServerConfig, error) {
	_ = godotenv.Load()

	cfg := &ServerConfig{}
	cfg.Connection = ConnectionConfig{
		ConnString: firstEnv(EnvConnString, EnvDatabaseURL),
		Host:       envOr(EnvDBHost, "localhost"),
		User:       os.Getenv(EnvDBUser),
		Password:   os.Getenv(EnvDBPassword),
		DBName:     os.Getenv(EnvDBName),
		SSLMode:    os.Getenv(EnvDBSSLMode),
	}

	var err error
	if cfg.Connection.Port, err = envInt(EnvDBPort, 5432); err != nil {
		return nil, err
	}

	cfg.Server = ServerSettings{
		Host:               envOr(EnvServerHost, "0.0.0.0"),
		HealthCheckEnabled: true,
		HealthCheckPath:    "/health",
	}
	if cfg.Server.Port, err = envInt(EnvServerPort, 8000); err != nil {
		return nil, err
	}

	cfg.Logging = LoggingConfig{
		Level:  envOr(EnvLogLevel, "info"),
		Format: envOr(EnvLogFormat, "json"),
		Output: envOr(EnvLogOutput, "stdout"),
	}

	cfg.Pool.ReadOnly = true
	return cfg, nil
}

// BuildConnString returns the canonical connection descriptor: the directly
// supplied one when present, otherwise one composed from the discrete
// fields. Credentials are URL-escaped, so passwords with reserved
// characters survive composition.
func (c ConnectionConfig) BuildConnString() (string, error) {
	if c.ConnString != "" {
		return c.ConnString, nil
	}
	if c.DBName == "" {
		return "", errs.Newf(errs.KindConfiguration,
			"no database configured: set %s or %s", EnvConnString, EnvDBName)
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgresql",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + c.DBName,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String(), nil
}

var dsnPasswordRe = regexp.MustCompile(`password=\S+`)

// MaskDescriptor returns connString with any password replaced, for logs and
// doctor output. URL descriptors keep their structure; key=value descriptors
// get a coarse replacement.
func MaskDescriptor(connString string) string {
	if u, err := url.Parse(connString); err == nil && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		return u.String()
	}
	return dsnPasswordRe.ReplaceAllString(connString, "password=xxxxx")
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errs.Newf(errs.KindConfiguration, "%s must be an integer, got %q", key, v)
	}
	return n, nil
}
