package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Realtime sources.
const (
	RealtimeLocal    = "local"
	RealtimePostgres = "postgres"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	PublicURL        string        `mapstructure:"PUBLIC_URL"`
	AnonKey          string        `mapstructure:"ANON_KEY"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
	StorageBackend   string        `mapstructure:"STORAGE_BACKEND"`
	RealtimeSource   string        `mapstructure:"REALTIME_SOURCE"`
	LivenessInterval time.Duration `mapstructure:"LIVENESS_INTERVAL"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
}

// devJWTSecret signs development sessions when JWT_SECRET is unset.
const devJWTSecret = "portal-development-secret"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("PUBLIC_URL", "http://localhost:8000")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("STORAGE_BACKEND", StoragePostgres)
	v.SetDefault("REALTIME_SOURCE", RealtimeLocal)
	v.SetDefault("LIVENESS_INTERVAL", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "PUBLIC_URL",
		"ANON_KEY", "JWT_SECRET", "SESSION_TTL", "STORAGE_BACKEND", "REALTIME_SOURCE",
		"LIVENESS_INTERVAL", "CORS_ORIGINS",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	cfg.StorageBackend = strings.ToLower(cfg.StorageBackend)
	cfg.RealtimeSource = strings.ToLower(cfg.RealtimeSource)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.IsDev() && cfg.JWTSecret == "" {
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// the anonymous key and the session secret must be set.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AnonKey == "" {
			return fmt.Errorf("ANON_KEY is required when ENV=%q", c.Env)
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
		}
	}

	switch c.StorageBackend {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageBackend)
	}
	switch c.RealtimeSource {
	case RealtimeLocal, RealtimePostgres:
	default:
		return fmt.Errorf("REALTIME_SOURCE must be %q or %q, got %q", RealtimeLocal, RealtimePostgres, c.RealtimeSource)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return fmt.Errorf("PUBLIC_URL must be an http(s) URL, got %q", c.PublicURL)
	}
	return nil
}
