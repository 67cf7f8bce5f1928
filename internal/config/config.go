package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve without a system zoneinfo

	"github.com/joho/godotenv"
)

// Storage backends for the state snapshots.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

var storageTypes = []string{StorageMemory, StorageFile, StorageSQLite, StoragePostgres}

type Config struct {
	App        AppConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Attendance AttendanceConfig
	Leave      LeaveConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
	// Timezone decides the calendar date of a clock event.
	Timezone       string
	AllowedOrigins []string
	SSEKeepalive   time.Duration
}

type StorageConfig struct {
	Type       string
	BasePath   string // file backend directory
	SQLitePath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type AttendanceConfig struct {
	StrictOverride       bool
	AutoCloseStale       bool
	StaleSessionInterval time.Duration
}

type LeaveConfig struct {
	EnforcePolicy bool
	PolicyFile    string // optional YAML seed, see LoadLeaveDefaults
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	keepalive, err := getEnvDuration("SSE_KEEPALIVE", 30*time.Second)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Timezone:       getEnv("APP_TIMEZONE", "UTC"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		SSEKeepalive:   keepalive,
	}

	config.Storage = StorageConfig{
		Type:       strings.ToLower(getEnv("STORAGE_TYPE", StorageFile)),
		BasePath:   getEnv("STORAGE_BASE_PATH", "./data"),
		SQLitePath: getEnv("SQLITE_PATH", "./data/ledger.db"),
	}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "hris_ledger"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Attendance configuration
	strict, err := getEnvBool("ATTENDANCE_STRICT_OVERRIDE", false)
	if err != nil {
		return nil, err
	}
	autoClose, err := getEnvBool("ATTENDANCE_AUTO_CLOSE_STALE", true)
	if err != nil {
		return nil, err
	}
	interval, err := getEnvDuration("ATTENDANCE_STALE_SESSION_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	config.Attendance = AttendanceConfig{
		StrictOverride:       strict,
		AutoCloseStale:       autoClose,
		StaleSessionInterval: interval,
	}

	// Leave configuration
	enforce, err := getEnvBool("LEAVE_ENFORCE_POLICY", true)
	if err != nil {
		return nil, err
	}

	config.Leave = LeaveConfig{
		EnforcePolicy: enforce,
		PolicyFile:    getEnv("LEAVE_POLICY_FILE", ""),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	valid := false
	for _, t := range storageTypes {
		if c.Storage.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unsupported STORAGE_TYPE %q (want one of %s)", c.Storage.Type, strings.Join(storageTypes, ", "))
	}

	if c.Storage.Type == StorageFile && c.Storage.BasePath == "" {
		return fmt.Errorf("STORAGE_BASE_PATH is required for file storage")
	}
	if c.Storage.Type == StorageSQLite && c.Storage.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for sqlite storage")
	}
	if c.Storage.Type == StoragePostgres && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required for postgres storage")
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	if c.Attendance.AutoCloseStale && c.Attendance.StaleSessionInterval <= 0 {
		return fmt.Errorf("ATTENDANCE_STALE_SESSION_INTERVAL must be positive")
	}
	return nil
}

// Location returns the configured time zone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
