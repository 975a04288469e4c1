// Package config provides configuration management for the sysmlsql CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	Database    string       `koanf:"database"`
	Verbose     int          `koanf:"verbose"`
	LogFormat   string       `koanf:"log_format"`
	Output      string       `koanf:"output"`
	MetricsFile string       `koanf:"metrics_file"`
	Import      ImportConfig `koanf:"import"`
	Tuning      TuningConfig `koanf:"tuning"`
	API         APIConfig    `koanf:"api"`
	Fetch       FetchConfig  `koanf:"fetch"`
}

// ImportConfig holds defaults for import-json and fetch.
type ImportConfig struct {
	DisableForeignKeyChecks bool `koanf:"disable_foreign_key_checks"`
	Vacuum                  bool `koanf:"vacuum"`
}

// TuningConfig holds the pragmas applied around a bulk import.
type TuningConfig struct {
	PageSize     int    `koanf:"page_size"`
	CacheSizeKiB int    `koanf:"cache_size_kib"`
	Synchronous  string `koanf:"synchronous"`
}

// APIConfig holds the SysML v2 API connection settings.
type APIConfig struct {
	BaseURL           string `koanf:"base_url"`
	Username          string `koanf:"username"`
	Password          string `koanf:"password"`
	AllowInvalidCerts bool   `koanf:"allow_invalid_certs"`
	PageSize          int    `koanf:"page_size"`
}

// FetchConfig tunes the fetch pipeline.
type FetchConfig struct {
	ChannelCapacity int           `koanf:"channel_capacity"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	ReportInterval  time.Duration `koanf:"report_interval"`
}

// Default configuration values
const (
	DefaultDatabase        = "sysml.db"
	DefaultLogFormat       = "text"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultChannelCapacity = 32
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultReportInterval  = 5 * time.Second
	DefaultPageSize        = 4096
	DefaultCacheSizeKiB    = 256 * 1024
	DefaultSynchronous     = "OFF"
)

// Default returns a Config holding the default values, as if no file,
// environment or flag had been given.
func Default() *Config {
	return &Config{
		Database:  DefaultDatabase,
		LogFormat: DefaultLogFormat,
		Output:    DefaultOutput,
		Tuning: TuningConfig{
			PageSize:     DefaultPageSize,
			CacheSizeKiB: DefaultCacheSizeKiB,
			Synchronous:  DefaultSynchronous,
		},
		Fetch: FetchConfig{
			ChannelCapacity: DefaultChannelCapacity,
			PollInterval:    DefaultPollInterval,
			ReportInterval:  DefaultReportInterval,
		},
	}
}
