package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"trm-report/internal/charting"
	"trm-report/internal/document"
	"trm-report/internal/logging"
	"trm-report/internal/stats"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Source   SourceConfig   `mapstructure:"source"`
	Report   ReportConfig   `mapstructure:"report"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SourceConfig describes the open-data endpoint holding the TRM history.
type SourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PageSize       int           `mapstructure:"page_size"`
	Order          string        `mapstructure:"order"`
	Since          string        `mapstructure:"since"`
	MaxPages       int           `mapstructure:"max_pages"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ReportConfig governs the generated artifact.
type ReportConfig struct {
	Title          string `mapstructure:"title"`
	Format         string `mapstructure:"format"`
	FilePrefix     string `mapstructure:"file_prefix"`
	OutputDir      string `mapstructure:"output_dir"`
	LookbackPolicy string `mapstructure:"lookback_policy"`
}

// ChartConfig sets chart defaults.
type ChartConfig struct {
	Mode      string `mapstructure:"mode"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	MaxPoints int    `mapstructure:"max_points"`
}

// ServerConfig covers the interactive HTTP surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Metrics         bool          `mapstructure:"metrics"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the report log.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// NotifyConfig routes the post-report summary.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRMREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trmreport")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("source.base_url", "https://www.datos.gov.co/resource/ceyp-9c7c.json")
	v.SetDefault("source.page_size", 1000)
	v.SetDefault("source.order", "vigenciadesde DESC")
	v.SetDefault("source.since", "")
	v.SetDefault("source.max_pages", 0)
	v.SetDefault("source.request_timeout", "30s")
	v.SetDefault("source.user_agent", "trmreport/1.0")

	v.SetDefault("report.title", "TRM Report")
	v.SetDefault("report.format", "pdf")
	v.SetDefault("report.file_prefix", "TRM_Report")
	v.SetDefault("report.output_dir", ".")
	v.SetDefault("report.lookback_policy", "degrade")

	v.SetDefault("chart.mode", "line")
	v.SetDefault("chart.width", 1000)
	v.SetDefault("chart.height", 600)
	v.SetDefault("chart.max_points", 1500)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.metrics", true)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("notify.telegram.timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Source.PageSize <= 0 {
		return fmt.Errorf("source.page_size must be greater than zero")
	}
	if c.Source.MaxPages < 0 {
		return fmt.Errorf("source.max_pages cannot be negative")
	}
	if _, err := c.SinceDate(); err != nil {
		return err
	}
	if _, err := document.ParseFormat(c.Report.Format); err != nil {
		return fmt.Errorf("report.format: %w", err)
	}
	if _, err := stats.ParseLookbackPolicy(c.Report.LookbackPolicy); err != nil {
		return fmt.Errorf("report.lookback_policy: %w", err)
	}
	if _, err := charting.ParseMode(c.Chart.Mode); err != nil {
		return fmt.Errorf("chart.mode: %w", err)
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart.width and chart.height must be greater than zero")
	}
	if c.Chart.MaxPoints < 0 {
		return fmt.Errorf("chart.max_points cannot be negative")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// SinceDate parses source.since (YYYY-MM-DD); nil when unset.
func (c *Config) SinceDate() (*time.Time, error) {
	raw := strings.TrimSpace(c.Source.Since)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("source.since must be YYYY-MM-DD: %w", err)
	}
	return &t, nil
}

// ResolveFormat returns the CLI/query override or the configured default.
func (c *Config) ResolveFormat(override string) (document.Format, error) {
	if override != "" {
		return document.ParseFormat(override)
	}
	return document.ParseFormat(c.Report.Format)
}

// ResolveChartMode returns the CLI/query override or the configured default.
func (c *Config) ResolveChartMode(override string) (charting.Mode, error) {
	if override != "" {
		return charting.ParseMode(override)
	}
	return charting.ParseMode(c.Chart.Mode)
}
