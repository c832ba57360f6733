package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName      string `mapstructure:"app_name"`
	Env          string `mapstructure:"app_env"`
	LogLevel     string `mapstructure:"log_level"`
	ErrorLogFile string `mapstructure:"error_log_file"`

	SourceID               string        `mapstructure:"source_id"`
	SourceName             string        `mapstructure:"source_name"`
	SourceType             string        `mapstructure:"source_type"`
	SourceURL              string        `mapstructure:"source_url"`
	SourceTableSelector    string        `mapstructure:"source_table_selector"`
	SourceRowSelector      string        `mapstructure:"source_row_selector"`
	SourceRowLimit         int           `mapstructure:"source_row_limit"`
	SourceUserAgent        string        `mapstructure:"source_user_agent"`
	SourceConditionalFetch bool          `mapstructure:"source_conditional_fetch"`
	SourceRetryCount       int           `mapstructure:"source_retry_count"`
	SourceTimeoutSeconds   int64         `mapstructure:"source_timeout_seconds"`
	SourceTimeout          time.Duration `mapstructure:"-"`

	IdentityPolicy   string `mapstructure:"identity_policy"`
	DetectStrategy   string `mapstructure:"detect_strategy"`
	StateShape       string `mapstructure:"state_shape"`
	StateWindowSize  int    `mapstructure:"state_window_size"`
	StateRetention   int    `mapstructure:"state_retention_cap"`
	InitialBatchSize int    `mapstructure:"initial_batch_size"`
	ScanLimit        int    `mapstructure:"scan_limit"`
	TrackRemoved     bool   `mapstructure:"track_removed"`
	NotifyOnRemoval  bool   `mapstructure:"notify_on_removal"`

	StorageType string `mapstructure:"storage_type"`
	StatePath   string `mapstructure:"state_path"`
	BBoltPath   string `mapstructure:"bbolt_path"`
	SQLiteDSN   string `mapstructure:"sqlite_dsn"`

	NotifiersFile   string `mapstructure:"notifiers_file"`
	RenderLimit     int    `mapstructure:"render_limit"`
	TestingMode     bool   `mapstructure:"testing_mode"`
	MaintainerEmail string `mapstructure:"maintainer_email"`

	// Schedule is a cron spec; empty runs a single check and exits.
	Schedule string `mapstructure:"schedule"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "notice-watch")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("error_log_file", "./data/error.log")

	v.SetDefault("source_id", "rgccr")
	v.SetDefault("source_name", "RGCCR Notices")
	v.SetDefault("source_type", "html_table")
	v.SetDefault("source_url", "https://rgccr.gov.bd/notice_categories/notice/")
	v.SetDefault("source_table_selector", "table.table-striped")
	v.SetDefault("source_row_selector", "tbody tr")
	v.SetDefault("source_row_limit", 10)
	v.SetDefault("source_user_agent", "notice-watch/1.0")
	v.SetDefault("source_conditional_fetch", true)
	v.SetDefault("source_retry_count", 3)
	v.SetDefault("source_timeout_seconds", 10)

	v.SetDefault("identity_policy", "title")
	v.SetDefault("detect_strategy", "prefix")
	v.SetDefault("state_shape", "single")
	v.SetDefault("state_window_size", 10)
	v.SetDefault("state_retention_cap", 500)
	v.SetDefault("initial_batch_size", 0)
	v.SetDefault("scan_limit", 0)
	v.SetDefault("track_removed", false)
	v.SetDefault("notify_on_removal", false)

	v.SetDefault("storage_type", "file")
	v.SetDefault("state_path", "./data/latest_notice.json")
	v.SetDefault("bbolt_path", "./data/state.db")
	v.SetDefault("sqlite_dsn", "file:./data/state.sqlite")

	v.SetDefault("notifiers_file", "./configs/notifiers.yaml")
	v.SetDefault("render_limit", 5)
	v.SetDefault("testing_mode", false)
	v.SetDefault("maintainer_email", "")
	v.SetDefault("schedule", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.SourceURL) == "" {
		return nil, fmt.Errorf("source_url is required")
	}
	if cfg.SourceTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid source_timeout_seconds (must be positive seconds)")
	}
	cfg.SourceTimeout = time.Duration(cfg.SourceTimeoutSeconds) * time.Second

	if cfg.SourceRowLimit < 0 {
		return nil, fmt.Errorf("invalid source_row_limit (must not be negative)")
	}
	if cfg.SourceRetryCount < 0 {
		return nil, fmt.Errorf("invalid source_retry_count (must not be negative)")
	}
	if cfg.RenderLimit <= 0 {
		return nil, fmt.Errorf("invalid render_limit (must be positive)")
	}

	return &cfg, nil
}
