// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // INPUT_TIME_ZONE must resolve in minimal images

	"github.com/joho/godotenv"

	"github.com/amirphl/Yata-no-Kagami/utils"
)

// Storage providers
const (
	StorageXLSX     = "xlsx"
	StoragePostgres = "postgres"
)

// AppConfig holds all configuration for the reconciliation service
type AppConfig struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Database  DatabaseConfig  `json:"database"`
	Cache     CacheConfig     `json:"cache"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
	JWT       JWTConfig       `json:"jwt"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	RateLimit       int           `json:"rate_limit"` // requests per minute
	AllowedOrigins  []string      `json:"allowed_origins"`
	RunTimeout      time.Duration `json:"run_timeout"`
}

// StorageConfig selects where the input tables and the master ledger live
type StorageConfig struct {
	Provider        string `json:"provider"` // xlsx, postgres
	WorkbookPath    string `json:"workbook_path"`
	AttendanceSheet string `json:"attendance_sheet"`
	PaymentsSheet   string `json:"payments_sheet"`
	RulesSheet      string `json:"rules_sheet"`
	DiscountsSheet  string `json:"discounts_sheet"`
	MasterSheet     string `json:"master_sheet"`
	AutoMigrate     bool   `json:"auto_migrate"`
	DateOrder       string `json:"date_order"` // mdy, dmy
	TimeZone        string `json:"time_zone"`
}

// Date orders for ambiguous numeric dates in the input tables
const (
	DateOrderMonthFirst = "mdy"
	DateOrderDayFirst   = "dmy"
)

// TimeParser builds the parser for attendance and payment timestamps
func (c StorageConfig) TimeParser() (utils.TimeParser, error) {
	loc := time.UTC
	if c.TimeZone != "" {
		var err error
		if loc, err = time.LoadLocation(c.TimeZone); err != nil {
			return utils.TimeParser{}, fmt.Errorf("invalid INPUT_TIME_ZONE %q: %w", c.TimeZone, err)
		}
	}
	return utils.TimeParser{Location: loc, PreferMonthFirst: c.DateOrder != DateOrderDayFirst}, nil
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

// CacheConfig configures redis. Without a URL the run lock is process local.
type CacheConfig struct {
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	LockKey     string        `json:"lock_key"`
	LockTTL     time.Duration `json:"lock_ttl"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
}

// Enabled reports whether bearer auth guards the reconciliation routes
func (c JWTConfig) Enabled() bool {
	return c.SecretKey != ""
}

type SchedulerConfig struct {
	Enabled      bool          `json:"enabled"`
	Interval     time.Duration `json:"interval"`
	LookbackDays int           `json:"lookback_days"`
}

// LoadConfig loads .env (if present) and builds the configuration from the environment
func LoadConfig() (*AppConfig, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 3*time.Minute),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1024*1024), // 1MB
			RateLimit:       getEnvInt("GLOBAL_RATE_LIMIT", 120),
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{}),
			RunTimeout:      getEnvDuration("RECONCILIATION_RUN_TIMEOUT", utils.DefaultRunTimeout),
		},
		Storage: StorageConfig{
			Provider:        strings.ToLower(getEnvString("STORAGE_PROVIDER", StorageXLSX)),
			WorkbookPath:    getEnvString("STORAGE_WORKBOOK_PATH", "data/reconciliation.xlsx"),
			AttendanceSheet: getEnvString("SHEET_ATTENDANCE", utils.DefaultAttendanceSheet),
			PaymentsSheet:   getEnvString("SHEET_PAYMENTS", utils.DefaultPaymentsSheet),
			RulesSheet:      getEnvString("SHEET_RULES", utils.DefaultRulesSheet),
			DiscountsSheet:  getEnvString("SHEET_DISCOUNTS", utils.DefaultDiscountsSheet),
			MasterSheet:     getEnvString("SHEET_MASTER", utils.DefaultMasterSheet),
			AutoMigrate:     getEnvBool("STORAGE_AUTO_MIGRATE", true),
			DateOrder:       strings.ToLower(getEnvString("INPUT_DATE_ORDER", DateOrderMonthFirst)),
			TimeZone:        getEnvString("INPUT_TIME_ZONE", "UTC"),
		},
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Cache: CacheConfig{
			RedisURL:    getEnvString("CACHE_REDIS_URL", ""),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			LockKey:     getEnvString("RUN_LOCK_KEY", utils.RunLockKey),
			LockTTL:     getEnvDuration("RUN_LOCK_TTL", utils.DefaultRunLockTTL),
			PingTimeout: getEnvDuration("CACHE_PING_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:      strings.ToLower(getEnvString("LOG_LEVEL", "info")),
			Format:     strings.ToLower(getEnvString("LOG_FORMAT", "json")),
			Output:     strings.ToLower(getEnvString("LOG_OUTPUT", "stdout")),
			FilePath:   getEnvString("LOG_FILE_PATH", "logs/reconciliation.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			Issuer:         getEnvString("JWT_ISSUER", "yata-no-kagami"),
			Audience:       getEnvString("JWT_AUDIENCE", "yata-no-kagami-api"),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", utils.AccessTokenTTL),
		},
		Scheduler: SchedulerConfig{
			Enabled:      getEnvBool("SCHEDULER_ENABLED", false),
			Interval:     getEnvDuration("SCHEDULER_INTERVAL", time.Hour),
			LookbackDays: getEnvInt("SCHEDULER_LOOKBACK_DAYS", 7),
		},
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads key/value pairs without overriding variables already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateConfig validates the configuration and reports every problem at once
func ValidateConfig(cfg *AppConfig) error {
	var errs []string

	// Server
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errs = append(errs, "SERVER_IDLE_TIMEOUT must be positive")
	}
	if cfg.Server.RunTimeout <= 0 {
		errs = append(errs, "RECONCILIATION_RUN_TIMEOUT must be positive")
	}

	// Storage
	switch cfg.Storage.Provider {
	case StorageXLSX:
		if cfg.Storage.WorkbookPath == "" {
			errs = append(errs, "STORAGE_WORKBOOK_PATH is required for the xlsx provider")
		}
	case StoragePostgres:
		if cfg.Database.Host == "" {
			errs = append(errs, "DB_HOST is required for the postgres provider")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errs = append(errs, "DB_NAME is required for the postgres provider")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "DB_USER is required for the postgres provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_PROVIDER must be one of: %v", []string{StorageXLSX, StoragePostgres}))
	}
	sheets := map[string]string{
		"SHEET_ATTENDANCE": cfg.Storage.AttendanceSheet,
		"SHEET_PAYMENTS":   cfg.Storage.PaymentsSheet,
		"SHEET_RULES":      cfg.Storage.RulesSheet,
		"SHEET_DISCOUNTS":  cfg.Storage.DiscountsSheet,
		"SHEET_MASTER":     cfg.Storage.MasterSheet,
	}
	switch cfg.Storage.DateOrder {
	case "", DateOrderMonthFirst, DateOrderDayFirst:
	default:
		errs = append(errs, "INPUT_DATE_ORDER must be one of: mdy, dmy")
	}
	if _, err := cfg.Storage.TimeParser(); err != nil {
		errs = append(errs, err.Error())
	}
	for _, key := range []string{"SHEET_ATTENDANCE", "SHEET_PAYMENTS", "SHEET_RULES", "SHEET_DISCOUNTS", "SHEET_MASTER"} {
		if strings.TrimSpace(sheets[key]) == "" {
			errs = append(errs, key+" must not be empty")
		}
	}

	// Cache
	if cfg.Cache.RedisURL != "" && cfg.Cache.LockTTL <= 0 {
		errs = append(errs, "RUN_LOCK_TTL must be positive when redis is configured")
	}

	// JWT is optional, but a configured secret must be usable
	if cfg.JWT.Enabled() {
		if len(cfg.JWT.SecretKey) < 32 {
			errs = append(errs, "JWT_SECRET_KEY must be at least 32 characters long")
		}
		if cfg.JWT.AccessTokenTTL <= 0 {
			errs = append(errs, "JWT_ACCESS_TOKEN_TTL must be positive")
		}
		if cfg.JWT.Issuer == "" {
			errs = append(errs, "JWT_ISSUER is required")
		}
		if cfg.JWT.Audience == "" {
			errs = append(errs, "JWT_AUDIENCE is required")
		}
	}

	// Logging
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	switch cfg.Logging.Output {
	case "", "stdout", "file", "both":
	default:
		errs = append(errs, "LOG_OUTPUT must be one of: stdout, file, both")
	}
	if (cfg.Logging.Output == "file" || cfg.Logging.Output == "both") && cfg.Logging.FilePath == "" {
		errs = append(errs, "LOG_FILE_PATH is required when logging to a file")
	}

	// Scheduler
	if cfg.Scheduler.Enabled {
		if cfg.Scheduler.Interval <= 0 {
			errs = append(errs, "SCHEDULER_INTERVAL must be positive")
		}
		if cfg.Scheduler.LookbackDays <= 0 {
			errs = append(errs, "SCHEDULER_LOOKBACK_DAYS must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
