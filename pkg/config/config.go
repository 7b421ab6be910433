// Package config loads the static settings of a report run.
//
// Sources, lowest precedence first: embedded defaults, config.yaml in the
// working directory, then EOX_* environment variables. A .env file in the
// working directory is loaded into the environment first and never
// overrides variables that are already set.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/eox-report/pkg/batch"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// EnvPrefix is prepended to every setting name to form its environment variable.
const EnvPrefix = "EOX"

// Config is constructed once at startup and passed to every stage.
type Config struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`

	// CSVFile is the input table; the output lands next to it.
	CSVFile      string `mapstructure:"csv_file"`
	SerialColumn string `mapstructure:"serial_column"`

	TokenURL string `mapstructure:"token_url"`
	APIURL   string `mapstructure:"api_url"`

	BatchSize   int           `mapstructure:"batch_size"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// MetricsFile, when set, receives a Prometheus textfile snapshot at the end of the run.
	MetricsFile string `mapstructure:"metrics_file"`
}

// ConfigError lists every problem found while validating a Config.
type ConfigError struct {
	Missing  []string
	Problems []string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required setting(s): "+strings.Join(e.Missing, ", "))
	}
	parts = append(parts, e.Problems...)
	return "config: " + strings.Join(parts, "; ")
}

// Load reads configuration from dir (the working directory for the CLI).
func Load(dir string) (*Config, error) {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read embedded defaults: %w", err)
	}

	yamlFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlFile); err == nil {
		v.SetConfigFile(yamlFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", yamlFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.CSVFile = strings.TrimSpace(cfg.CSVFile)

	return &cfg, nil
}

// Validate fails with a *ConfigError when a required setting is blank or a
// value is out of range. It reports all problems at once.
func (c *Config) Validate() error {
	cerr := &ConfigError{}

	required := []struct {
		env   string
		value string
	}{
		{"EOX_CLIENT_ID", c.ClientID},
		{"EOX_CLIENT_SECRET", c.ClientSecret},
		{"EOX_CSV_FILE", c.CSVFile},
		{"EOX_SERIAL_COLUMN", c.SerialColumn},
		{"EOX_TOKEN_URL", c.TokenURL},
		{"EOX_API_URL", c.APIURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			cerr.Missing = append(cerr.Missing, r.env)
		}
	}

	if c.BatchSize < 1 || c.BatchSize > batch.MaxBatchSize {
		cerr.Problems = append(cerr.Problems,
			fmt.Sprintf("batch_size must be between 1 and %d (got %d)", batch.MaxBatchSize, c.BatchSize))
	}
	if c.HTTPTimeout <= 0 {
		cerr.Problems = append(cerr.Problems,
			fmt.Sprintf("http_timeout must be positive (got %s)", c.HTTPTimeout))
	}

	if len(cerr.Missing) > 0 || len(cerr.Problems) > 0 {
		return cerr
	}
	return nil
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var cerr *ConfigError
	return errors.As(err, &cerr)
}
