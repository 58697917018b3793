package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yourusername/tiktock-go/internal/domain"
)

// EnvPrefix prefixes environment overrides, e.g. TIKTOCK_DOWNLOAD_CHUNK_SIZE
const EnvPrefix = "TIKTOCK"

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// A missing .env is fine; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.tiktock")
		v.AddConfigPath("/etc/tiktock")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every known key so AutomaticEnv applies without a config file
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port",
		"download.output_dir", "download.delay", "download.chunk_size",
		"download.filename_strategy", "download.filename_template", "download.watermark",
		"download.max_retries", "download.retry_delay",
		"resolver.user_agent", "resolver.accept_language", "resolver.short_link_timeout",
		"history.enabled", "history.database_path",
		"notification.enabled", "notification.method",
		"logging.level", "logging.format", "logging.output_path", "logging.logs_dir",
	} {
		v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.OutputDir = expandPath(config.Download.OutputDir)
	config.History.DatabasePath = expandPath(config.History.DatabasePath)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	d := config.Download
	if d.OutputDir == "" {
		return fmt.Errorf("download output directory not configured")
	}
	if d.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1")
	}
	if d.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if !domain.ValidateFilenameStrategy(d.FilenameStrategy) {
		return fmt.Errorf("invalid filename strategy: %s", d.FilenameStrategy)
	}
	if d.FilenameStrategy == domain.FilenameByTemplate && d.FilenameTemplate == "" {
		return fmt.Errorf("filename template required for template strategy")
	}
	if !domain.ValidateWatermarkMode(d.Watermark) {
		return fmt.Errorf("invalid watermark mode: %s", d.Watermark)
	}

	if config.History.Enabled && config.History.DatabasePath == "" {
		return fmt.Errorf("history database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file using the same keys LoadConfig reads
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server.host", config.Server.Host)
	v.Set("server.port", config.Server.Port)

	v.Set("download.output_dir", config.Download.OutputDir)
	v.Set("download.delay", config.Download.Delay.String())
	v.Set("download.chunk_size", config.Download.ChunkSize)
	v.Set("download.filename_strategy", string(config.Download.FilenameStrategy))
	v.Set("download.filename_template", config.Download.FilenameTemplate)
	v.Set("download.watermark", string(config.Download.Watermark))
	v.Set("download.max_retries", config.Download.MaxRetries)
	v.Set("download.retry_delay", config.Download.RetryDelay.String())

	v.Set("resolver.user_agent", config.Resolver.UserAgent)
	v.Set("resolver.accept_language", config.Resolver.AcceptLanguage)
	v.Set("resolver.short_link_timeout", config.Resolver.ShortLinkTimeout.String())

	v.Set("history.enabled", config.History.Enabled)
	v.Set("history.database_path", config.History.DatabasePath)

	v.Set("notification.enabled", config.Notification.Enabled)
	v.Set("notification.method", config.Notification.Method)

	v.Set("logging.level", config.Logging.Level)
	v.Set("logging.format", config.Logging.Format)
	v.Set("logging.output_path", config.Logging.OutputPath)
	v.Set("logging.logs_dir", config.Logging.LogsDir)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
