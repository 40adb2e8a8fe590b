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

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	Port         string
	Backend      string
	MongoURI     string
	DBName       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Log   LogConfig
	Redis RedisConfig
	Authz AuthzConfig

	RequireActiveGrants bool
	AuditTimeout        time.Duration
	BootstrapAdminUser  string
}

type LogConfig struct {
	Level      string
	Format     string
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// RedisConfig is optional; an empty URL keeps invalidation in-process.
type RedisConfig struct {
	URL     string
	Channel string
}

type AuthzConfig struct {
	CacheTTL       time.Duration
	CacheSize      int
	ResolveTimeout time.Duration
	Enforce        bool
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Backend:      strings.ToLower(getEnv("STORE_BACKEND", BackendMongo)),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:       getEnv("DB_NAME", "rbac_db"),
		ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			FilePath:   getEnv("LOG_FILE_PATH", ""),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			Channel: getEnv("REDIS_CHANNEL", "rbac:invalidate"),
		},
		Authz: AuthzConfig{
			CacheTTL:       getEnvDuration("AUTHZ_CACHE_TTL", 30*time.Second),
			CacheSize:      getEnvInt("AUTHZ_CACHE_SIZE", 10000),
			ResolveTimeout: getEnvDuration("AUTHZ_RESOLVE_TIMEOUT", 5*time.Second),
			Enforce:        getEnvBool("AUTHZ_ENFORCE", false),
		},
		RequireActiveGrants: getEnvBool("REQUIRE_ACTIVE_GRANTS", false),
		AuditTimeout:        getEnvDuration("AUDIT_TIMEOUT", 3*time.Second),
		BootstrapAdminUser:  strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_USER", "")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, fmt.Errorf("MONGO_URI is required"))
		}
		if c.DBName == "" {
			errs = append(errs, fmt.Errorf("DB_NAME is required"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMongo, BackendMemory, c.Backend))
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("PORT is required"))
	}
	if c.Authz.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("AUTHZ_CACHE_TTL must not be negative"))
	}
	if c.Authz.CacheTTL > 0 && c.Authz.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("AUTHZ_CACHE_SIZE must be positive when caching is enabled"))
	}
	if c.Authz.ResolveTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AUTHZ_RESOLVE_TIMEOUT must be positive"))
	}
	if c.AuditTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_TIMEOUT must be positive"))
	}
	if c.Redis.URL != "" && c.Redis.Channel == "" {
		errs = append(errs, fmt.Errorf("REDIS_CHANNEL is required with REDIS_URL"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		// Try parsing as duration string? e.g. "10s"
		d, err := time.ParseDuration(valStr)
		if err == nil {
			return d
		}
		return fallback
	}
	return time.Duration(val) * time.Second
}
