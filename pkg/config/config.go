// Package config loads defectscope run configuration from a YAML file and
// DEFECTSCOPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrMissingKey       = errors.New("project key is required")
	ErrInvalidUpper     = errors.New("upper bound must not be negative")
	ErrInvalidExtension = errors.New("tracked extension must start with a dot")
	ErrInvalidLogLevel  = errors.New("unknown log level")
	ErrInvalidLogFormat = errors.New("unknown log format")
	ErrInvalidPageSize  = errors.New("jira page size must be positive")
	ErrInvalidSince     = errors.New("since must be a YYYY-MM-DD date")
)

// Default configuration values.
const (
	defaultExtension = ".java"
	defaultJiraURL   = "https://issues.apache.org/jira"
	defaultPageSize  = 1000
	defaultTimeout   = time.Minute
	defaultCSV       = "dataset.csv"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	envPrefix        = "DEFECTSCOPE"
)

// Config holds all configuration for a defectscope run.
type Config struct {
	Project   ProjectConfig   `mapstructure:"project"`
	Jira      JiraConfig      `mapstructure:"jira"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ProjectConfig identifies the analysed project.
type ProjectConfig struct {
	// Key is the issue-tracker project key and the ticket prefix in commit messages.
	Key        string `mapstructure:"key"`
	Repository string `mapstructure:"repository"`
	// Snapshot, when set, replaces live issue-tracker retrieval.
	Snapshot   string `mapstructure:"snapshot"`
}

// JiraConfig configures the issue-tracker client.
type JiraConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig tunes the history walk.
type AnalysisConfig struct {
	Extension    string   `mapstructure:"extension"`
	Languages    []string `mapstructure:"languages"`
	SkipVendor   bool     `mapstructure:"skip_vendor"`
	SkipPrefixes []string `mapstructure:"skip_prefixes"`

	// UpperBound is the walk-forward release boundary; 0 means half the releases.
	UpperBound    int    `mapstructure:"upper_bound"`
	NewestFirst   bool   `mapstructure:"newest_first"`
	FirstParent   bool   `mapstructure:"first_parent"`
	DetectRenames bool   `mapstructure:"detect_renames"`
	Since         string `mapstructure:"since"`
}

// OutputConfig selects exporters. Empty paths disable an exporter.
type OutputConfig struct {
	CSV      string `mapstructure:"csv"`
	Compress bool   `mapstructure:"compress"`
	SQLite   string `mapstructure:"sqlite"`
	Chart    string `mapstructure:"chart"`
	Summary  bool   `mapstructure:"summary"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// LoadConfig loads configuration from file and environment variables. A
// missing default config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("defectscope")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.config/defectscope")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("project.key", "")
	viperCfg.SetDefault("project.repository", ".")
	viperCfg.SetDefault("project.snapshot", "")

	viperCfg.SetDefault("jira.base_url", defaultJiraURL)
	viperCfg.SetDefault("jira.page_size", defaultPageSize)
	viperCfg.SetDefault("jira.timeout", defaultTimeout)

	viperCfg.SetDefault("analysis.extension", defaultExtension)
	viperCfg.SetDefault("analysis.languages", []string{})
	viperCfg.SetDefault("analysis.skip_vendor", false)
	viperCfg.SetDefault("analysis.skip_prefixes", []string{})
	viperCfg.SetDefault("analysis.upper_bound", 0)
	viperCfg.SetDefault("analysis.newest_first", false)
	viperCfg.SetDefault("analysis.first_parent", false)
	viperCfg.SetDefault("analysis.detect_renames", true)
	viperCfg.SetDefault("analysis.since", "")

	viperCfg.SetDefault("output.csv", defaultCSV)
	viperCfg.SetDefault("output.compress", false)
	viperCfg.SetDefault("output.sqlite", "")
	viperCfg.SetDefault("output.chart", "")
	viperCfg.SetDefault("output.summary", true)

	viperCfg.SetDefault("logging.level", defaultLogLevel)
	viperCfg.SetDefault("logging.format", defaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate checks the configuration before a run. The project key is only
// required by commands that talk to the tracker or match commits.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Project.Key) == "" {
		return ErrMissingKey
	}

	if c.Analysis.UpperBound < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUpper, c.Analysis.UpperBound)
	}

	if c.Analysis.Extension != "" && !strings.HasPrefix(c.Analysis.Extension, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, c.Analysis.Extension)
	}

	if c.Jira.PageSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, c.Jira.PageSize)
	}

	_, err := c.Analysis.SinceTime()
	if err != nil {
		return err
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// SinceTime parses Analysis.Since. An empty value yields the zero time.
func (a AnalysisConfig) SinceTime() (time.Time, error) {
	if a.Since == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.DateOnly, a.Since)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSince, a.Since)
	}

	return t, nil
}
