package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDashboardPassword is used when DASHBOARD_PASSWORD is unset.
const DefaultDashboardPassword = "admin123"

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Gate     GateConfig
	Cookie   CookieConfig
	Store    StoreConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
	DashboardDir   string
}

type GateConfig struct {
	Password            string
	PasswordFromDefault bool
	IdleTimeout         time.Duration
	SessionTTL          time.Duration
	CleanupInterval     time.Duration
	TimingDelayBaseMs   int
	TimingDelayRandomMs int
	SubmitsPerMinute    int
}

type CookieConfig struct {
	Secret    string
	Secure    bool
	Domain    string
	SameSite  string
	ClientTTL time.Duration
}

type StoreConfig struct {
	Driver string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	password, fromDefault := os.Getenv("DASHBOARD_PASSWORD"), false
	if password == "" {
		password, fromDefault = DefaultDashboardPassword, true
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "dashgate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 1)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			DashboardDir:   getEnv("DASHBOARD_DIR", ""),
		},
		Gate: GateConfig{
			Password:            password,
			PasswordFromDefault: fromDefault,
			IdleTimeout:         getEnvAsDuration("GATE_IDLE_TIMEOUT", 30*time.Minute),
			SessionTTL:          getEnvAsDuration("SESSION_TTL", 12*time.Hour),
			CleanupInterval:     getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
			TimingDelayBaseMs:   getEnvAsInt("TIMING_DELAY_BASE_MS", 250),
			TimingDelayRandomMs: getEnvAsInt("TIMING_DELAY_RANDOM_MS", 250),
			SubmitsPerMinute:    getEnvAsInt("SUBMIT_RATE_PER_MINUTE", 20),
		},
		Cookie: CookieConfig{
			Secret:    getEnv("COOKIE_SECRET", ""),
			Secure:    getEnvAsBool("COOKIE_SECURE", env == "production"),
			Domain:    getEnv("COOKIE_DOMAIN", ""),
			SameSite:  getEnv("COOKIE_SAMESITE", "lax"),
			ClientTTL: getEnvAsDuration("CLIENT_COOKIE_TTL", 365*24*time.Hour),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMemory)),
		},
	}

	switch cfg.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}

	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"GATE_IDLE_TIMEOUT", cfg.Gate.IdleTimeout},
		{"SESSION_TTL", cfg.Gate.SessionTTL},
		{"CLEANUP_INTERVAL", cfg.Gate.CleanupInterval},
		{"CLIENT_COOKIE_TTL", cfg.Cookie.ClientTTL},
	} {
		if d.value <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.key, d.value)
		}
	}

	if cfg.Cookie.Secret == "" {
		if env == "production" {
			return nil, fmt.Errorf("COOKIE_SECRET is required in production")
		}
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Cookie.Secret = secret
	}

	if err := validateCookieSecret(cfg.Cookie.Secret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateCookieSecret enforces a minimum length for the cookie signing key
func validateCookieSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("COOKIE_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}
	return nil
}

// randomSecret generates a per-process signing key; cookies issued with it
// stop verifying after a restart.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate cookie secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
