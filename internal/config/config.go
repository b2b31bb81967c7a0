package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Session  SessionConfig
	Redis    RedisConfig
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
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
	LoginRateLimit int // requests per minute per IP on the login endpoints
}

type AuthConfig struct {
	ValidFields         []string
	HashAlgorithm       string
	BcryptCost          int
	Argon2Memory        int
	Argon2Iterations    int
	Argon2Parallelism   int
	Silent              bool
	RememberLength      time.Duration
	LoginURL            string
	ErrorURL            string
	ResetPasswordURL    string
	ResendActivationURL string
	TicketSecret        string
	TicketTTL           time.Duration
	TimingDelayBaseMs   int
	TimingDelayRandomMs int
	CleanupInterval     time.Duration
}

type SessionConfig struct {
	Store        string // "memory" or "redis"
	TTL          time.Duration
	CookieName   string
	CookieDomain string
	CookieSecure bool
	SameSite     http.SameSite
}

type RedisConfig struct {
	URL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	ticketSecret := getEnv("TICKET_SECRET", "")
	if ticketSecret == "" {
		return nil, fmt.Errorf("TICKET_SECRET is required")
	}

	env := getEnv("ENV", "development")

	sameSite, err := parseSameSite(getEnv("SESSION_COOKIE_SAMESITE", "lax"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "warden"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
			LoginRateLimit: getEnvAsInt("LOGIN_RATE_LIMIT", 5),
		},
		Auth: AuthConfig{
			ValidFields:         getEnvAsList("AUTH_VALID_FIELDS", []string{"email", "username"}),
			HashAlgorithm:       getEnv("AUTH_HASH_ALGORITHM", "bcrypt"),
			BcryptCost:          getEnvAsInt("AUTH_BCRYPT_COST", 12),
			Argon2Memory:        getEnvAsInt("AUTH_ARGON2_MEMORY_KIB", 64*1024),
			Argon2Iterations:    getEnvAsInt("AUTH_ARGON2_ITERATIONS", 3),
			Argon2Parallelism:   getEnvAsInt("AUTH_ARGON2_PARALLELISM", 2),
			Silent:              getEnvAsBool("AUTH_SILENT", true),
			RememberLength:      getEnvAsDuration("AUTH_REMEMBER_LENGTH", 30*24*time.Hour),
			LoginURL:            getEnv("AUTH_LOGIN_URL", "/login"),
			ErrorURL:            getEnv("AUTH_ERROR_URL", "/error"),
			ResetPasswordURL:    getEnv("AUTH_RESET_PASSWORD_URL", "/reset-password"),
			ResendActivationURL: getEnv("AUTH_RESEND_ACTIVATION_URL", "/resend-activate-account"),
			TicketSecret:        ticketSecret,
			TicketTTL:           getEnvAsDuration("TICKET_TTL", 5*time.Minute),
			TimingDelayBaseMs:   getEnvAsInt("AUTH_TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs: getEnvAsInt("AUTH_TIMING_DELAY_RANDOM_MS", 50),
			CleanupInterval:     getEnvAsDuration("TOKEN_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Session: SessionConfig{
			Store:        strings.ToLower(getEnv("SESSION_STORE", "memory")),
			TTL:          getEnvAsDuration("SESSION_TTL", 2*time.Hour),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "warden_session"),
			CookieDomain: getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure: getEnvAsBool("SESSION_COOKIE_SECURE", env == "production"),
			SameSite:     sameSite,
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateTicketSecret(ticketSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loginFields are the account columns a login may be looked up by
var loginFields = map[string]bool{
	"email":    true,
	"username": true,
}

func (c *Config) validate() error {
	if len(c.Auth.ValidFields) == 0 {
		return fmt.Errorf("AUTH_VALID_FIELDS must name at least one field")
	}
	for _, field := range c.Auth.ValidFields {
		if !loginFields[field] {
			return fmt.Errorf("AUTH_VALID_FIELDS may only contain email and username (got %q)", field)
		}
	}

	if c.Auth.Argon2Parallelism < 1 || c.Auth.Argon2Parallelism > 255 {
		return fmt.Errorf("AUTH_ARGON2_PARALLELISM must be between 1 and 255 (got %d)", c.Auth.Argon2Parallelism)
	}
	if c.Auth.Argon2Iterations < 1 {
		return fmt.Errorf("AUTH_ARGON2_ITERATIONS must be at least 1 (got %d)", c.Auth.Argon2Iterations)
	}
	if c.Auth.Argon2Memory < 8*c.Auth.Argon2Parallelism || c.Auth.Argon2Memory > 4*1024*1024 {
		return fmt.Errorf("AUTH_ARGON2_MEMORY_KIB must be between %d and %d (got %d)",
			8*c.Auth.Argon2Parallelism, 4*1024*1024, c.Auth.Argon2Memory)
	}

	for name, d := range map[string]time.Duration{
		"TOKEN_CLEANUP_INTERVAL": c.Auth.CleanupInterval,
		"TICKET_TTL":             c.Auth.TicketTTL,
		"AUTH_REMEMBER_LENGTH":   c.Auth.RememberLength,
		"SESSION_TTL":            c.Session.TTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive (got %s)", name, d)
		}
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis (got %q)", c.Session.Store)
	}

	if c.Session.SameSite == http.SameSiteNoneMode && !c.Session.CookieSecure {
		return fmt.Errorf("SESSION_COOKIE_SAMESITE=none requires SESSION_COOKIE_SECURE")
	}

	return nil
}

// validateTicketSecret enforces minimum security standards for the login ticket secret
func validateTicketSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("TICKET_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("TICKET_SECRET cannot be a common weak value")
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

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}

	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid SESSION_COOKIE_SAMESITE %q", value)
	}
}
