package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Store    StoreConfig
	Pin      PinConfig
	Auth     AuthConfig
	Notify   NotifyConfig
	Castle   CastleConfig
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

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type StoreConfig struct {
	Backend         string
	CleanupInterval time.Duration // memory and postgres; redis expires keys itself
}

type PinConfig struct {
	MaxFailedAttempts  int
	LockoutDuration    time.Duration
	LockoutMultiplier  float64 // <= 1 keeps the lockout fixed
	MaxLockoutDuration time.Duration
	EscalationWindow   time.Duration
	HashAlgorithm      string
	FailureBaseDelay   time.Duration
	FailureRandomDelay time.Duration
	VerifyRatePerMin   int

	RecoveryMaxAttempts     int
	RecoveryLockoutDuration time.Duration
}

type AuthConfig struct {
	ParentTokenSecret string
	ParentTokenExpiry time.Duration
	RecoveryKey       []byte
	RecoveryIssuer    string
	SyncServiceKey    string // shared secret the sync layer presents to enroll PINs

}

type NotifyConfig struct {
	EmailEnabled bool
	EmailFrom    string
	AWSRegion    string
	AMQPURL      string
	AMQPExchange string
}

type CastleConfig struct {
	GridSize    int
	TileSize    int
	CatalogPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: loadDatabaseConfig(),
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			Backend:         strings.ToLower(getEnv("KV_BACKEND", StoreMemory)),
			CleanupInterval: getEnvAsDuration("KV_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Pin: PinConfig{
			MaxFailedAttempts:  getEnvAsInt("PIN_MAX_FAILED_ATTEMPTS", 5),
			LockoutDuration:    getEnvAsDuration("PIN_LOCKOUT_DURATION", 5*time.Minute),
			LockoutMultiplier:  getEnvAsFloat("PIN_LOCKOUT_MULTIPLIER", 1),
			MaxLockoutDuration: getEnvAsDuration("PIN_MAX_LOCKOUT_DURATION", 1*time.Hour),
			EscalationWindow:   getEnvAsDuration("PIN_ESCALATION_WINDOW", 24*time.Hour),
			HashAlgorithm:      getEnv("PIN_HASH_ALGORITHM", "argon2id"),
			FailureBaseDelay:   getEnvAsDuration("PIN_FAILURE_DELAY", 250*time.Millisecond),
			FailureRandomDelay: getEnvAsDuration("PIN_FAILURE_JITTER", 250*time.Millisecond),
			VerifyRatePerMin:   getEnvAsInt("PIN_VERIFY_RATE_PER_MIN", 20),

			RecoveryMaxAttempts:     getEnvAsInt("RECOVERY_MAX_ATTEMPTS", 5),
			RecoveryLockoutDuration: getEnvAsDuration("RECOVERY_LOCKOUT_DURATION", 15*time.Minute),
		},
		Auth: AuthConfig{
			ParentTokenSecret: jwtSecret,
			ParentTokenExpiry: getEnvAsDuration("PARENT_TOKEN_EXPIRY", 10*time.Minute),
			RecoveryIssuer:    getEnv("RECOVERY_ISSUER", "QuestKeep"),
			SyncServiceKey:    getEnv("SYNC_SERVICE_KEY", ""),
		},
		Notify: NotifyConfig{
			EmailEnabled: getEnvAsBool("LOCKOUT_EMAIL_ENABLED", false),
			EmailFrom:    getEnv("EMAIL_FROM", "noreply@questkeep.app"),
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			AMQPURL:      getEnv("AMQP_URL", ""),
			AMQPExchange: getEnv("AMQP_EXCHANGE", "questkeep.events"),
		},
		Castle: CastleConfig{
			GridSize:    getEnvAsInt("CASTLE_GRID_SIZE", 10),
			TileSize:    getEnvAsInt("CASTLE_TILE_SIZE", 48),
			CatalogPath: getEnv("CASTLE_CATALOG_PATH", ""),
		},
	}

	switch cfg.Store.Backend {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("unsupported KV_BACKEND %q", cfg.Store.Backend)
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if key := cfg.Auth.SyncServiceKey; key != "" && len(key) < 32 {
		return nil, fmt.Errorf("SYNC_SERVICE_KEY must be at least 32 characters")
	}

	if raw := getEnv("RECOVERY_ENCRYPTION_KEY", ""); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("RECOVERY_ENCRYPTION_KEY must be 32 bytes, base64 encoded")
		}
		cfg.Auth.RecoveryKey = key
	}

	if err := cfg.Pin.validate(); err != nil {
		return nil, err
	}
	if cfg.Castle.GridSize < 1 {
		return nil, fmt.Errorf("CASTLE_GRID_SIZE must be positive")
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools such as migrations
// that must not depend on the service secrets.
func LoadDatabase() DatabaseConfig {
	_ = godotenv.Load()
	return loadDatabaseConfig()
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvAsInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", ""),
		Name:              getEnv("DB_NAME", "questkeep"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
		MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
	}
}

func (p *PinConfig) validate() error {
	if p.MaxFailedAttempts < 1 {
		return fmt.Errorf("PIN_MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if p.LockoutDuration <= 0 {
		return fmt.Errorf("PIN_LOCKOUT_DURATION must be positive")
	}
	if p.LockoutMultiplier > 1 && p.MaxLockoutDuration < p.LockoutDuration {
		return fmt.Errorf("PIN_MAX_LOCKOUT_DURATION must not be shorter than PIN_LOCKOUT_DURATION")
	}
	if p.RecoveryMaxAttempts < 1 {
		return fmt.Errorf("RECOVERY_MAX_ATTEMPTS must be at least 1")
	}
	if p.RecoveryLockoutDuration <= 0 {
		return fmt.Errorf("RECOVERY_LOCKOUT_DURATION must be positive")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
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

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return splitList(getEnv("ALLOWED_ORIGINS", ""))
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:8081", // Expo web
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:8081",
		"http://127.0.0.1:5173",
	}
}
