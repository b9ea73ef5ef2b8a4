package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/Yata-no-Kagami/utils"
)

func noEnvFile(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func validConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
			RunTimeout:   time.Second,
		},
		Storage: StorageConfig{
			Provider:        StorageXLSX,
			WorkbookPath:    "book.xlsx",
			AttendanceSheet: "a",
			PaymentsSheet:   "p",
			RulesSheet:      "r",
			DiscountsSheet:  "d",
			MasterSheet:     "m",
		},
		Logging: LoggingConfig{Level: "info", Output: "stdout"},
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	noEnvFile(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, utils.DefaultRunTimeout, cfg.Server.RunTimeout)
	assert.Equal(t, StorageXLSX, cfg.Storage.Provider)
	assert.Equal(t, utils.DefaultMasterSheet, cfg.Storage.MasterSheet)
	assert.Equal(t, utils.RunLockKey, cfg.Cache.LockKey)
	assert.False(t, cfg.JWT.Enabled())
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, DateOrderMonthFirst, cfg.Storage.DateOrder)

	times, err := cfg.Storage.TimeParser()
	require.NoError(t, err)
	assert.True(t, times.PreferMonthFirst)
	assert.Equal(t, time.UTC, times.Location)
}

func TestStorageTimeParser(t *testing.T) {
	times, err := StorageConfig{DateOrder: DateOrderDayFirst, TimeZone: "Australia/Sydney"}.TimeParser()
	require.NoError(t, err)
	assert.False(t, times.PreferMonthFirst)
	assert.Equal(t, "Australia/Sydney", times.Location.String())

	got, ok := times.Parse("03/01/2024")
	require.True(t, ok)
	assert.Equal(t, time.January, got.Month())

	_, err = StorageConfig{TimeZone: "Mars/Olympus"}.TimeParser()
	assert.Error(t, err)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	noEnvFile(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_PROVIDER", "POSTGRES")
	t.Setenv("DB_NAME", "ledger")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SCHEDULER_INTERVAL", "15m")
	t.Setenv("SCHEDULER_LOOKBACK_DAYS", "3")
	t.Setenv("RUN_LOCK_TTL", "not-a-duration")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage.Provider)
	assert.Equal(t, "ledger", cfg.Database.Name)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 3, cfg.Scheduler.LookbackDays)
	assert.Equal(t, utils.DefaultRunLockTTL, cfg.Cache.LockTTL, "unparseable values fall back to the default")
}

func TestLoadConfigEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KAGAMI_TEST_SHEET=FromFile\nSHEET_RULES=FromFile\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("SHEET_RULES", "FromEnv")
	t.Cleanup(func() { _ = os.Unsetenv("KAGAMI_TEST_SHEET") })

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "FromFile", os.Getenv("KAGAMI_TEST_SHEET"))
	assert.Equal(t, "FromEnv", cfg.Storage.RulesSheet, "the environment wins over the file")
}

func TestLoadConfigInvalid(t *testing.T) {
	noEnvFile(t)
	t.Setenv("SERVER_PORT", "70000")
	t.Setenv("JWT_SECRET_KEY", "short")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(validConfig()))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"unknown provider", func(c *AppConfig) { c.Storage.Provider = "s3" }, "STORAGE_PROVIDER"},
		{"missing workbook", func(c *AppConfig) { c.Storage.WorkbookPath = "" }, "STORAGE_WORKBOOK_PATH"},
		{"postgres needs a database", func(c *AppConfig) { c.Storage.Provider = StoragePostgres }, "DB_HOST"},
		{"blank sheet", func(c *AppConfig) { c.Storage.MasterSheet = "  " }, "SHEET_MASTER"},
		{"unknown date order", func(c *AppConfig) { c.Storage.DateOrder = "ymd" }, "INPUT_DATE_ORDER"},
		{"unknown time zone", func(c *AppConfig) { c.Storage.TimeZone = "Mars/Olympus" }, "INPUT_TIME_ZONE"},
		{"redis without ttl", func(c *AppConfig) { c.Cache.RedisURL = "redis://localhost:6379" }, "RUN_LOCK_TTL"},
		{"jwt without issuer", func(c *AppConfig) {
			c.JWT = JWTConfig{SecretKey: strings.Repeat("k", 32), Audience: "a", AccessTokenTTL: time.Hour}
		}, "JWT_ISSUER"},
		{"bad log level", func(c *AppConfig) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log output", func(c *AppConfig) { c.Logging.Output = "syslog" }, "LOG_OUTPUT"},
		{"file output needs a path", func(c *AppConfig) { c.Logging.Output = "file" }, "LOG_FILE_PATH"},
		{"scheduler without lookback", func(c *AppConfig) {
			c.Scheduler = SchedulerConfig{Enabled: true, Interval: time.Hour}
		}, "SCHEDULER_LOOKBACK_DAYS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger, err = NewLogger(LoggingConfig{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = NewLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewLogger(LoggingConfig{Level: "info", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	LogError(logger, "config", "TestNewLoggerFileOutput", map[string]string{"k": "v"}, assert.AnError)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"module":"config"`)
	assert.Contains(t, string(data), assert.AnError.Error())
}
