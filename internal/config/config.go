package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Bolt        BoltConfig
	JWT         JWTConfig
	Auth        AuthConfig
	GenAI       GenAIConfig
	Live        LiveConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

// StoreConfig selects the task store. postgres pairs with Redis for sessions
// and the change feed; bolt keeps everything in one embedded file.
type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type BoltConfig struct {
	Path string
}

type JWTConfig struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
}

type AuthConfig struct {
	SessionTTL time.Duration
	BcryptCost int
}

// GenAIConfig points at the title suggestion flow. An empty URL disables suggestions.
type GenAIConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type LiveConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskboard"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getString("STORE_DRIVER", DriverPostgres)),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "taskboard"),
			User:            getString("DB_USER", "taskboard"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Bolt: BoltConfig{
			Path: getString("BOLTDB_PATH", "./data/taskboard.db"),
		},
		JWT: JWTConfig{
			Secret:    os.Getenv("JWT_SECRET"),
			Issuer:    getString("JWT_ISSUER", "taskboard"),
			AccessTTL: getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		},
		Auth: AuthConfig{
			SessionTTL: getDuration("SESSION_TTL", 7*24*time.Hour),
			BcryptCost: getInt("BCRYPT_COST", 12),
		},
		GenAI: GenAIConfig{
			URL:     os.Getenv("GENAI_FLOW_URL"),
			APIKey:  os.Getenv("GENAI_API_KEY"),
			Timeout: getDuration("GENAI_TIMEOUT", 0),
		},
		Live: LiveConfig{
			PingInterval: getDuration("LIVE_PING_INTERVAL", 30*time.Second),
			WriteTimeout: getDuration("LIVE_WRITE_TIMEOUT", 10*time.Second),
			ReadLimit:    int64(getInt("LIVE_READ_LIMIT", 64*1024)),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.DSN()
	}
	if cfg.JWT.Secret == "" && !cfg.IsProduction() {
		cfg.JWT.Secret = "dev-secret-change-me"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres, DriverBolt:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Store.Driver == DriverBolt && c.Bolt.Path == "" {
		errs = append(errs, errors.New("BOLTDB_PATH is required for the bolt driver"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DSN builds a postgres URL from the individual connection settings.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
