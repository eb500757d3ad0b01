// Package config loads the settings shared by the devdata jobs from a YAML
// file, DEVDATA_* environment variables and command-line flags, in that
// order of precedence (flags win).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of a run.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Pace    PaceConfig    `yaml:"pace"`
	Redis   RedisConfig   `yaml:"redis"`
	UNDP    UNDPConfig    `yaml:"undp"`
	SDG     SDGConfig     `yaml:"sdg"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// OutputConfig selects where artifacts are written.
type OutputConfig struct {
	// Dir is the output directory (fs driver) or key prefix (s3 driver).
	// Empty means the job's default.
	Dir    string   `yaml:"dir"`
	Driver string   `yaml:"driver"` // fs|memory|s3
	S3     S3Config `yaml:"s3"`
}

// S3Config configures the s3 storage driver. Credentials come from the
// default AWS chain.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// FetchConfig configures the resilient fetch.
type FetchConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	Jitter            float64       `yaml:"jitter"`
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	Verbose           bool          `yaml:"verbose"`
}

// PaceConfig spaces out successive requests. Zero disables pacing.
type PaceConfig struct {
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// RedisConfig enables the shared response cache when Addr is set.
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	DB            int           `yaml:"db"`
	TTL           time.Duration `yaml:"ttl"`
	MaxEntryBytes int           `yaml:"max_entry_bytes"`
}

// UNDPConfig configures the project and results jobs.
type UNDPConfig struct {
	BaseURL       string `yaml:"base_url"`
	ResumeUnit    string `yaml:"resume_unit_id"`
	ResumeProject string `yaml:"resume_project_id"`
}

// SDGConfig configures the SDG job.
type SDGConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Goals       []string `yaml:"goals"`
	Countries   []int    `yaml:"countries"`
	IgnoreDims  []string `yaml:"ignore_dims"`
	IgnoreCodes []string `yaml:"ignore_codes"`
	// RegistryFile replaces the built-in dimension registry when set.
	RegistryFile string `yaml:"registry_file"`
	M49File      string `yaml:"m49_file"`
	ForceList    bool   `yaml:"force_series_list"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
	// File receives a JSON copy of every log line when set.
	File string `yaml:"file"`
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
	Listen   string `yaml:"listen"`
}

// DefaultCountries are Kazakhstan, the OECD members and Central Asia (M49).
var DefaultCountries = []int{
	398, 36, 40, 56, 124, 152, 203, 208, 233, 246, 250, 276, 300,
	348, 352, 372, 376, 380, 392, 410, 428, 440, 442, 484, 528, 554,
	578, 616, 620, 703, 705, 724, 752, 756, 792, 826, 840, 417, 762,
	795, 860,
}

// Default returns a safe default configuration.
func Default() Config {
	return Config{
		Output: OutputConfig{Driver: "fs"},
		Fetch: FetchConfig{
			MaxAttempts:       3,
			RetryDelay:        10 * time.Second,
			BackoffMultiplier: 1.0,
			Timeout:           60 * time.Second,
			UserAgent:         "devdata-fetch/0.1.0",
		},
		Redis: RedisConfig{
			TTL:           24 * time.Hour,
			MaxEntryBytes: 4 << 20,
		},
		UNDP: UNDPConfig{
			BaseURL: "https://api.open.undp.org/api",
		},
		SDG: SDGConfig{
			BaseURL:    "https://unstats.un.org/SDGAPI/v1/sdg",
			Countries:  append([]int(nil), DefaultCountries...),
			IgnoreDims: []string{"Reporting Type"},
			M49File:    "M49-ISO.txt",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any)
// and the DEVDATA_* environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DEVDATA_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("DEVDATA_OUTPUT_DIR", &c.Output.Dir)
	str("DEVDATA_STORAGE_DRIVER", &c.Output.Driver)
	str("DEVDATA_S3_BUCKET", &c.Output.S3.Bucket)
	str("DEVDATA_S3_REGION", &c.Output.S3.Region)
	str("DEVDATA_S3_ENDPOINT", &c.Output.S3.Endpoint)
	boolean("DEVDATA_S3_PATH_STYLE", &c.Output.S3.PathStyle)

	integer("DEVDATA_MAX_ATTEMPTS", &c.Fetch.MaxAttempts)
	duration("DEVDATA_RETRY_DELAY", &c.Fetch.RetryDelay)
	duration("DEVDATA_TIMEOUT", &c.Fetch.Timeout)
	str("DEVDATA_USER_AGENT", &c.Fetch.UserAgent)

	str("DEVDATA_REDIS_ADDR", &c.Redis.Addr)
	integer("DEVDATA_REDIS_DB", &c.Redis.DB)

	str("DEVDATA_UNDP_BASE_URL", &c.UNDP.BaseURL)
	str("DEVDATA_SDG_BASE_URL", &c.SDG.BaseURL)
	if v := getenv("DEVDATA_SDG_GOALS"); v != "" {
		c.SDG.Goals = splitList(v)
	}

	str("DEVDATA_LOG_LEVEL", &c.Log.Level)
	boolean("DEVDATA_LOG_PRETTY", &c.Log.Pretty)
	str("DEVDATA_LOG_FILE", &c.Log.File)
	str("DEVDATA_METRICS_TEXTFILE", &c.Metrics.Textfile)
	str("DEVDATA_METRICS_LISTEN", &c.Metrics.Listen)

	return errors.Join(errs...)
}

// Validate reports every invalid field by its dotted YAML path.
func (c Config) Validate() error {
	var errs []error
	bad := func(path, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
	}

	switch c.Output.Driver {
	case "", "fs", "memory":
	case "s3":
		if c.Output.S3.Bucket == "" {
			bad("output.s3.bucket", "required for the s3 driver")
		}
	default:
		bad("output.driver", "unknown driver %q", c.Output.Driver)
	}

	if c.Fetch.MaxAttempts < 1 {
		bad("fetch.max_attempts", "must be >= 1 (got %d)", c.Fetch.MaxAttempts)
	}
	if c.Fetch.RetryDelay < 0 {
		bad("fetch.retry_delay", "must not be negative")
	}
	if c.Fetch.BackoffMultiplier != 0 && c.Fetch.BackoffMultiplier < 1 {
		bad("fetch.backoff_multiplier", "must be >= 1 (got %g)", c.Fetch.BackoffMultiplier)
	}
	if c.Fetch.Jitter < 0 || c.Fetch.Jitter >= 1 {
		bad("fetch.jitter", "must be in [0, 1) (got %g)", c.Fetch.Jitter)
	}
	if c.Fetch.UserAgent == "" {
		bad("fetch.user_agent", "required")
	}
	if c.Pace.MinDelay < 0 || c.Pace.MaxDelay < 0 {
		bad("pace", "delays must not be negative")
	}
	if c.Pace.MaxDelay > 0 && c.Pace.MaxDelay < c.Pace.MinDelay {
		bad("pace.max_delay", "must be >= pace.min_delay")
	}
	if c.UNDP.BaseURL == "" {
		bad("undp.base_url", "required")
	}
	if c.UNDP.ResumeProject != "" && c.UNDP.ResumeUnit == "" {
		bad("undp.resume_project_id", "requires undp.resume_unit_id")
	}
	if c.SDG.BaseURL == "" {
		bad("sdg.base_url", "required")
	}
	if len(c.SDG.Countries) == 0 {
		bad("sdg.countries", "at least one country is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		bad("log.level", "unknown level %q", c.Log.Level)
	}

	return errors.Join(errs...)
}

// UNDPOutputDir returns the configured output directory, or the dated
// default "UNDP Projects YYYY-MM-DD".
func (c Config) UNDPOutputDir(now time.Time) string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return "UNDP Projects " + now.Format("2006-01-02")
}

// SDGOutputDir returns the configured output directory, or the working
// directory.
func (c Config) SDGOutputDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return "."
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
