// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading. Values come
// from environment variables, an optional inkpost.yaml in the working
// directory, and built-in development defaults, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Development defaults that must be overridden in production.
const (
	defaultDBPassword = "changeme"
	defaultJWTSecret  = "inkpost-dev-secret-change-me"
)

// Config holds all application configuration values.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache and credential ledger)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string
	ValkeyDB       int

	// Bearer credentials
	JWTSecret string
	TokenTTL  time.Duration

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitLogin     int // login attempts per IP per minute
	MaxUploadBytes     int64
	ListingCacheTTL    time.Duration

	// Media storage
	StorageDisk  string // "local" or "s3"
	MediaDir     string
	MediaBaseURL string

	// S3-compatible object storage
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"
}

// Load reads configuration, applying defaults for development where
// appropriate. Returns an error if critical values are missing in
// production mode.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("inkpost")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Host: v.GetString("app_host"),
		Port: v.GetString("app_port"),
		Env:  v.GetString("app_env"),

		DBHost:     v.GetString("postgres_host"),
		DBPort:     v.GetString("postgres_port"),
		DBUser:     v.GetString("postgres_user"),
		DBPassword: v.GetString("postgres_password"),
		DBName:     v.GetString("postgres_db"),

		ValkeyHost:     v.GetString("valkey_host"),
		ValkeyPort:     v.GetString("valkey_port"),
		ValkeyPassword: v.GetString("valkey_password"),
		ValkeyDB:       v.GetInt("valkey_db"),

		JWTSecret: v.GetString("jwt_secret"),
		TokenTTL:  v.GetDuration("token_ttl"),

		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		RateLimitLogin:     v.GetInt("rate_limit_login"),
		MaxUploadBytes:     v.GetInt64("max_upload_bytes"),
		ListingCacheTTL:    v.GetDuration("listing_cache_ttl"),

		StorageDisk:  v.GetString("storage_disk"),
		MediaDir:     v.GetString("media_dir"),
		MediaBaseURL: strings.TrimRight(v.GetString("media_base_url"), "/"),

		S3Endpoint:  v.GetString("s3_endpoint"),
		S3Region:    v.GetString("s3_region"),
		S3AccessKey: v.GetString("s3_access_key"),
		S3SecretKey: v.GetString("s3_secret_key"),
		S3Bucket:    v.GetString("s3_bucket"),
		S3PublicURL: strings.TrimRight(v.GetString("s3_public_url"), "/"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_host", "0.0.0.0")
	v.SetDefault("app_port", "8080")
	v.SetDefault("app_env", "development")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", "5432")
	v.SetDefault("postgres_user", "inkpost")
	v.SetDefault("postgres_password", defaultDBPassword)
	v.SetDefault("postgres_db", "inkpost")

	v.SetDefault("valkey_host", "localhost")
	v.SetDefault("valkey_port", "6379")
	v.SetDefault("valkey_password", "")
	v.SetDefault("valkey_db", 0)

	v.SetDefault("jwt_secret", defaultJWTSecret)
	v.SetDefault("token_ttl", "24h")

	v.SetDefault("cors_allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("rate_limit_login", 10)
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("listing_cache_ttl", "1m")

	v.SetDefault("storage_disk", "local")
	v.SetDefault("media_dir", "storage/media")
	v.SetDefault("media_base_url", "/media")

	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_bucket", "inkpost-media")
	v.SetDefault("s3_public_url", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

func (c *Config) validate() error {
	switch c.StorageDisk {
	case "local", "s3":
	default:
		return fmt.Errorf("STORAGE_DISK must be local or s3, got %q", c.StorageDisk)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.StorageDisk == "s3" && c.S3Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT must be set when STORAGE_DISK=s3")
	}

	if c.Env == "production" {
		if c.DBPassword == defaultDBPassword {
			return fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be set to at least 32 characters in production")
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
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
