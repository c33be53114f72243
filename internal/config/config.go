package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Lever       LeverConfig       `yaml:"lever" mapstructure:"lever"`
	Snapshot    SnapshotConfig    `yaml:"snapshot" mapstructure:"snapshot"`
	Destination DestinationConfig `yaml:"destination" mapstructure:"destination"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Reconcile   ReconcileConfig   `yaml:"reconcile" mapstructure:"reconcile"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig     `yaml:"circuit" mapstructure:"circuit"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// LeverConfig configures the upstream ATS client.
type LeverConfig struct {
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	PostingID    string  `yaml:"posting_id" mapstructure:"posting_id"`
	PostingTitle string  `yaml:"posting_title" mapstructure:"posting_title"`
	PageSize     int     `yaml:"page_size" mapstructure:"page_size"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SnapshotConfig selects the snapshot backend.
type SnapshotConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "file", "sqlite" or "postgres"
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DestinationConfig selects and configures the destination table.
type DestinationConfig struct {
	Driver     string       `yaml:"driver" mapstructure:"driver"` // "sheets", "xlsx" or "notion"
	LayoutFile string       `yaml:"layout_file" mapstructure:"layout_file"`
	Sheets     SheetsConfig `yaml:"sheets" mapstructure:"sheets"`
	XLSX       XLSXConfig   `yaml:"xlsx" mapstructure:"xlsx"`
	Notion     NotionConfig `yaml:"notion" mapstructure:"notion"`
}

// SheetsConfig configures the Google Sheets destination.
type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	Worksheet       string `yaml:"worksheet" mapstructure:"worksheet"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// XLSXConfig configures the local workbook destination.
type XLSXConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Sheet string `yaml:"sheet" mapstructure:"sheet"`
}

// NotionConfig configures the Notion database destination.
type NotionConfig struct {
	Token        string  `yaml:"token" mapstructure:"token"`
	DatabaseID   string  `yaml:"database_id" mapstructure:"database_id"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// EnrichConfig tunes the enrichment pass.
type EnrichConfig struct {
	Concurrency     int `yaml:"concurrency" mapstructure:"concurrency"`
	CheckpointEvery int `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
}

// ReconcileConfig tunes destination writes.
type ReconcileConfig struct {
	ChunkSize    int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	RequireEmail bool   `yaml:"require_email" mapstructure:"require_email"`
	SyncStatus   string `yaml:"sync_status" mapstructure:"sync_status"`
}

// RetryConfig is the shared retry policy for outbound calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the circuit breaker around the upstream client.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// StoreConfig selects the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures post-run alerting.
type MonitoringConfig struct {
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	EnrichFailureThreshold float64 `yaml:"enrich_failure_threshold" mapstructure:"enrich_failure_threshold"`
	LookbackHours          int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TALENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("lever.base_url", "https://api.lever.co/v1")
	v.SetDefault("lever.page_size", 100)
	v.SetDefault("lever.rate_limit_rps", 8)
	v.SetDefault("lever.timeout_secs", 30)
	v.SetDefault("snapshot.driver", "file")
	v.SetDefault("snapshot.path", "candidates.json")
	v.SetDefault("destination.driver", "sheets")
	v.SetDefault("destination.sheets.worksheet", "Sheet1")
	v.SetDefault("destination.sheets.timeout_secs", 30)
	v.SetDefault("destination.xlsx.path", "candidates.xlsx")
	v.SetDefault("destination.xlsx.sheet", "Candidates")
	v.SetDefault("destination.notion.rate_limit_rps", 3)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.checkpoint_every", 25)
	v.SetDefault("reconcile.chunk_size", 200)
	v.SetDefault("reconcile.require_email", true)
	v.SetDefault("reconcile.sync_status", "new")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "talent-sync.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.enrich_failure_threshold", 0.25)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Keys without a default are registered so env-only values still unmarshal.
	for _, key := range []string{
		"lever.api_key", "lever.posting_id", "lever.posting_title",
		"snapshot.database_url", "destination.layout_file",
		"destination.sheets.credentials_file", "destination.sheets.spreadsheet_id",
		"destination.notion.token", "destination.notion.database_id",
		"monitoring.webhook_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Mode names the set of keys a command needs.
type Mode string

const (
	ModeFetch     Mode = "fetch"
	ModeEnrich    Mode = "enrich"
	ModeReconcile Mode = "reconcile"
	ModeSync      Mode = "sync"
	ModeSnapshot  Mode = "snapshot"
	ModeRuns      Mode = "runs"
	ModeServe     Mode = "serve"
)

// Validate checks that the keys required by mode are set and that tuning
// values are in range. Missing-key errors name the environment variable that
// supplies the value.
func (c *Config) Validate(mode Mode) error {
	var errs []string

	switch mode {
	case ModeFetch, ModeEnrich, ModeReconcile, ModeSync, ModeServe, ModeSnapshot:
		errs = append(errs, c.Snapshot.validate()...)
	case ModeRuns:
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == ModeFetch || mode == ModeEnrich || mode == ModeSync || mode == ModeServe {
		if c.Lever.APIKey == "" {
			errs = append(errs, missing("lever.api_key"))
		}
	}
	if mode == ModeFetch || mode == ModeSync || mode == ModeServe {
		if c.Lever.PostingID == "" && c.Lever.PostingTitle == "" {
			errs = append(errs, fmt.Sprintf("one of lever.posting_id or lever.posting_title is required (set %s or %s)",
				envName("lever.posting_id"), envName("lever.posting_title")))
		}
	}
	if mode == ModeReconcile || mode == ModeSync || mode == ModeServe {
		errs = append(errs, c.Destination.validate()...)
		if c.Reconcile.ChunkSize <= 0 {
			errs = append(errs, "reconcile.chunk_size must be > 0")
		}
	}
	if mode == ModeEnrich || mode == ModeSync || mode == ModeServe {
		if c.Enrich.Concurrency < 1 || c.Enrich.Concurrency > 64 {
			errs = append(errs, "enrich.concurrency must be between 1 and 64")
		}
	}
	if mode == ModeRuns || mode == ModeServe || mode == ModeSync {
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		} else if c.Store.DatabaseURL == "" {
			errs = append(errs, missing("store.database_url"))
		}
	}
	if mode == ModeServe && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}
	if t := c.Monitoring.EnrichFailureThreshold; t < 0 || t > 1 {
		errs = append(errs, "monitoring.enrich_failure_threshold must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s SnapshotConfig) validate() []string {
	switch s.Driver {
	case "file", "sqlite":
		if s.Path == "" {
			return []string{missing("snapshot.path")}
		}
	case "postgres":
		if s.DatabaseURL == "" {
			return []string{missing("snapshot.database_url")}
		}
	default:
		return []string{fmt.Sprintf("snapshot.driver must be file, sqlite or postgres, got %q", s.Driver)}
	}
	return nil
}

func (d DestinationConfig) validate() []string {
	var errs []string
	switch d.Driver {
	case "sheets":
		if d.Sheets.SpreadsheetID == "" {
			errs = append(errs, missing("destination.sheets.spreadsheet_id"))
		}
		if d.Sheets.CredentialsFile == "" {
			errs = append(errs, missing("destination.sheets.credentials_file"))
		}
		if strings.TrimSpace(d.Sheets.Worksheet) == "" {
			errs = append(errs, missing("destination.sheets.worksheet"))
		}
	case "xlsx":
		if d.XLSX.Path == "" {
			errs = append(errs, missing("destination.xlsx.path"))
		}
		if strings.TrimSpace(d.XLSX.Sheet) == "" {
			errs = append(errs, missing("destination.xlsx.sheet"))
		}
	case "notion":
		if d.Notion.Token == "" {
			errs = append(errs, missing("destination.notion.token"))
		}
		if d.Notion.DatabaseID == "" {
			errs = append(errs, missing("destination.notion.database_id"))
		}
	default:
		errs = append(errs, fmt.Sprintf("destination.driver must be sheets, xlsx or notion, got %q", d.Driver))
	}
	return errs
}

func missing(key string) string {
	return fmt.Sprintf("%s is required (set %s)", key, envName(key))
}

func envName(key string) string {
	return "TALENT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
