package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Resolver     ResolverConfig     `mapstructure:"resolver"`
	History      HistoryConfig      `mapstructure:"history"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	OutputDir        string           `mapstructure:"output_dir"`
	Delay            time.Duration    `mapstructure:"delay"`
	ChunkSize        int              `mapstructure:"chunk_size"`
	FilenameStrategy FilenameStrategy `mapstructure:"filename_strategy"`
	FilenameTemplate string           `mapstructure:"filename_template"`
	Watermark        WatermarkMode    `mapstructure:"watermark"`
	MaxRetries       int              `mapstructure:"max_retries"`
	RetryDelay       time.Duration    `mapstructure:"retry_delay"`
}

// Options converts the download configuration into per-batch options
func (c DownloadConfig) Options() DownloadOptions {
	return DownloadOptions{
		OutputDirectory:  c.OutputDir,
		PerItemDelay:     c.Delay,
		ChunkSizeBytes:   c.ChunkSize,
		FilenameStrategy: c.FilenameStrategy,
		FilenameTemplate: c.FilenameTemplate,
		MaxRetries:       c.MaxRetries,
		RetryDelay:       c.RetryDelay,
	}
}

// ResolverConfig contains page scraping configuration
type ResolverConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	AcceptLanguage   string        `mapstructure:"accept_language"`
	ShortLinkTimeout time.Duration `mapstructure:"short_link_timeout"`
}

// HistoryConfig contains batch history configuration
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // categorized event logs (serve mode)
}

// DefaultUserAgent is a desktop browser UA; the page is not served without one
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Download: DownloadConfig{
			OutputDir:        ".",
			Delay:            1 * time.Second,
			ChunkSize:        1024,
			FilenameStrategy: FilenameByID,
			Watermark:        WatermarkRemove,
			MaxRetries:       0,
			RetryDelay:       5 * time.Second,
		},
		Resolver: ResolverConfig{
			UserAgent:        DefaultUserAgent,
			AcceptLanguage:   "en-US,en;q=0.5",
			ShortLinkTimeout: 10 * time.Second,
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.tiktock/history.db",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
			LogsDir:    "$HOME/.tiktock/logs",
		},
	}
}
