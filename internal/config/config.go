package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TokenStoreFile  = "file"
	TokenStoreRedis = "redis"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int
	LogLevel                slog.Level
	LogFormat               string

	BackendURL        string
	BackendTimeout    time.Duration
	BackendMaxRetries int

	AdminRoles                []string
	SessionRevalidateInterval time.Duration

	TokenStore    string
	TokenFile     string
	TokenSealKey  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTokenKey string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 300),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		LogLevel:                getLevel("LOG_LEVEL", slog.LevelInfo),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "pretty")),

		BackendURL:        strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000/api/v1"), "/"),
		BackendTimeout:    getDuration("BACKEND_TIMEOUT", 15*time.Second),
		BackendMaxRetries: getInt("BACKEND_MAX_RETRIES", 2),

		AdminRoles:                splitCSV(getEnv("ADMIN_ROLES", "admin,super_admin")),
		SessionRevalidateInterval: getDuration("SESSION_REVALIDATE_INTERVAL", 5*time.Minute),

		TokenStore:    strings.ToLower(getEnv("TOKEN_STORE", TokenStoreFile)),
		TokenFile:     getEnv("TOKEN_FILE", "./state/session.json"),
		TokenSealKey:  strings.TrimSpace(os.Getenv("TOKEN_SEAL_KEY")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisTokenKey: getEnv("REDIS_TOKEN_KEY", "ride-console:token"),

		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 5)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 1)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.LogFormat != "" && c.LogFormat != "pretty" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be \"pretty\" or \"json\"")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	parsed, err := url.Parse(c.BackendURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL")
	}

	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}

	if c.BackendMaxRetries < 0 {
		return fmt.Errorf("BACKEND_MAX_RETRIES cannot be negative")
	}

	if len(c.AdminRoles) == 0 {
		return fmt.Errorf("ADMIN_ROLES cannot be empty")
	}

	if c.SessionRevalidateInterval < 0 {
		return fmt.Errorf("SESSION_REVALIDATE_INTERVAL cannot be negative")
	}

	switch c.TokenStore {
	case TokenStoreFile:
		if strings.TrimSpace(c.TokenFile) == "" {
			return fmt.Errorf("TOKEN_FILE cannot be empty")
		}
	case TokenStoreRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
		if strings.TrimSpace(c.RedisTokenKey) == "" {
			return fmt.Errorf("REDIS_TOKEN_KEY cannot be empty")
		}
	default:
		return fmt.Errorf("TOKEN_STORE must be %q or %q", TokenStoreFile, TokenStoreRedis)
	}

	if c.DatabaseURL != "" && (c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns) {
		return fmt.Errorf("DB_MAX_CONNS/DB_MIN_CONNS are inconsistent")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getLevel(key string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}

	return level
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
