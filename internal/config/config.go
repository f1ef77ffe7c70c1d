package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/ulule/limiter/v3"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	EventStream       string        `mapstructure:"EVENT_STREAM"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	JWTTTL            time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimit         string        `mapstructure:"RATE_LIMIT"`
	AuthRateLimit     string        `mapstructure:"AUTH_RATE_LIMIT"`
	UploadBackend     string        `mapstructure:"UPLOAD_BACKEND"`
	UploadDir         string        `mapstructure:"UPLOAD_DIR"`
	UploadPublicBase  string        `mapstructure:"UPLOAD_PUBLIC_BASE"`
	MinioEndpoint     string        `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey    string        `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey    string        `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket       string        `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL       bool          `mapstructure:"MINIO_USE_SSL"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	LogFile           string        `mapstructure:"LOG_FILE"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AssignmentTimeout time.Duration `mapstructure:"ASSIGNMENT_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"REDIS_URL", "EVENT_STREAM", "JWT_SECRET", "JWT_TTL", "CORS_ORIGINS",
	"RATE_LIMIT", "AUTH_RATE_LIMIT", "UPLOAD_BACKEND", "UPLOAD_DIR", "UPLOAD_PUBLIC_BASE",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	"LOG_LEVEL", "LOG_FILE", "REQUEST_TIMEOUT", "ASSIGNMENT_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("EVENT_STREAM", "dispatch:events")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT", "100-S")
	v.SetDefault("AUTH_RATE_LIMIT", "10-M")
	v.SetDefault("UPLOAD_BACKEND", "local")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_PUBLIC_BASE", "/uploads")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("ASSIGNMENT_TIMEOUT", "0s")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 && c.IsProduction() {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}

	switch c.UploadBackend {
	case "local":
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required when UPLOAD_BACKEND is \"local\"")
		}
	case "minio":
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			return fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required when UPLOAD_BACKEND is \"minio\"")
		}
	default:
		return fmt.Errorf("UPLOAD_BACKEND must be \"local\" or \"minio\", got %q", c.UploadBackend)
	}

	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		return fmt.Errorf("RATE_LIMIT %q: %w", c.RateLimit, err)
	}
	if _, err := limiter.NewRateFromFormatted(c.AuthRateLimit); err != nil {
		return fmt.Errorf("AUTH_RATE_LIMIT %q: %w", c.AuthRateLimit, err)
	}

	if c.AssignmentTimeout < 0 {
		return fmt.Errorf("ASSIGNMENT_TIMEOUT must not be negative")
	}
	return nil
}
