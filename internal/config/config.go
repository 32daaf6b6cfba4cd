// Package config loads the draftloop CLI configuration.
//
// Values are resolved in order: built-in defaults, the YAML config file, the
// credential file, then the process environment. Validation runs last and
// reports every problem at once.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v2"

	"github.com/dshills/draftloop/graph/model"
	"github.com/dshills/draftloop/graph/tool"
	"github.com/dshills/draftloop/pipeline"
)

const (
	DefaultConfigFile = "draftloop.yaml"
	DefaultEnvFile    = "config.env"

	EnvProvider        = "DRAFTLOOP_PROVIDER"
	EnvModel           = "DRAFTLOOP_MODEL"
	EnvRevisionCeiling = "DRAFTLOOP_REVISION_CEILING"
	EnvFinalize        = "DRAFTLOOP_FINALIZE"
	EnvParallel        = "DRAFTLOOP_PARALLEL"
	EnvLocation        = "DRAFTLOOP_LOCATION"
	EnvTargetLanguage  = "DRAFTLOOP_TARGET_LANGUAGE"
	EnvTrace           = "DRAFTLOOP_TRACE"
	EnvAuditDriver     = "DRAFTLOOP_AUDIT_DRIVER"
	EnvAuditDSN        = "DRAFTLOOP_AUDIT_DSN"
	EnvMetricsAddr     = "DRAFTLOOP_METRICS_ADDR"
	EnvLogLevel        = "DRAFTLOOP_LOG_LEVEL"
	EnvLogFormat       = "DRAFTLOOP_LOG_FORMAT"

	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvGoogleKey    = "GOOGLE_API_KEY"
)

// Provider names.
const (
	ProviderMock      = "mock"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// Audit drivers.
const (
	AuditNone   = ""
	AuditMemory = "memory"
	AuditSQLite = "sqlite"
	AuditMySQL  = "mysql"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid config")

// Config is the root configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Trace    TraceConfig    `yaml:"trace"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ProviderConfig selects the language model behind every stage.
type ProviderConfig struct {
	Name   string `yaml:"name"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"api_key"`

	// MaxAttempts and BaseDelay configure retries of transient failures.
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
}

// PipelineConfig shapes the graph. Pointer fields distinguish "unset" from
// a meaningful zero.
type PipelineConfig struct {
	RevisionCeiling *int  `yaml:"revision_ceiling"`
	Finalize        *bool `yaml:"finalize"`

	// Parallel bounds how many topics run at once.
	Parallel int `yaml:"parallel"`
}

type EnrichConfig struct {
	Location       string `yaml:"location"`
	TargetLanguage string `yaml:"target_language"`
	SummaryWords   int    `yaml:"summary_words"`
}

// TraceConfig toggles the event sinks.
type TraceConfig struct {
	Enabled bool `yaml:"enabled"`
	JSON    bool `yaml:"json"`
	OTel    bool `yaml:"otel"`
}

// AuditConfig selects where transition events are persisted.
type AuditConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configPath and envPath, applies environment overrides and
// validates the result. Missing files are skipped when they are the default
// paths and reported otherwise.
func Load(configPath, envPath string) (*Config, error) {
	cfg := &Config{}

	if configPath == "" {
		configPath = DefaultConfigFile
	}
	if err := cfg.readFile(configPath, configPath == DefaultConfigFile); err != nil {
		return nil, err
	}

	if envPath == "" {
		envPath = DefaultEnvFile
	}
	if err := loadEnvFile(envPath, envPath == DefaultEnvFile); err != nil {
		return nil, err
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data and finalizes it without touching the filesystem.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadEnvFile copies credentials from path into the environment. Variables
// already set in the environment win.
func loadEnvFile(path string, optional bool) error {
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) finalize() error {
	if err := c.loadEnv(); err != nil {
		return err
	}
	c.loadDefaults()
	return c.validate()
}

func (c *Config) loadDefaults() {
	defaults := pipeline.DefaultConfig()

	if c.Provider.Name == "" {
		c.Provider.Name = ProviderMock
	}
	if c.Provider.MaxAttempts == 0 {
		c.Provider.MaxAttempts = model.DefaultRetryPolicy().MaxAttempts
	}
	if c.Provider.BaseDelay == "" {
		c.Provider.BaseDelay = model.DefaultRetryPolicy().BaseDelay.String()
	}
	if c.Pipeline.RevisionCeiling == nil {
		c.Pipeline.RevisionCeiling = &defaults.RevisionCeiling
	}
	if c.Pipeline.Finalize == nil {
		c.Pipeline.Finalize = &defaults.Finalize
	}
	if c.Pipeline.Parallel == 0 {
		c.Pipeline.Parallel = 4
	}
	if c.Enrich.Location == "" {
		c.Enrich.Location = tool.DefaultLocation
	}
	if c.Enrich.TargetLanguage == "" {
		c.Enrich.TargetLanguage = tool.DefaultTargetLanguage
	}
	if c.Enrich.SummaryWords == 0 {
		c.Enrich.SummaryWords = tool.DefaultSummaryWords
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) loadEnv() error {
	setString := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setString(EnvProvider, &c.Provider.Name)
	setString(EnvModel, &c.Provider.Model)
	setString(EnvLocation, &c.Enrich.Location)
	setString(EnvTargetLanguage, &c.Enrich.TargetLanguage)
	setString(EnvAuditDriver, &c.Audit.Driver)
	setString(EnvAuditDSN, &c.Audit.DSN)
	setString(EnvMetricsAddr, &c.Metrics.Addr)
	setString(EnvLogLevel, &c.Log.Level)
	setString(EnvLogFormat, &c.Log.Format)

	if c.Provider.APIKey == "" {
		if key := os.Getenv(providerKeyEnv(c.Provider.Name)); key != "" {
			c.Provider.APIKey = key
		}
	}

	var errs []error
	if v := os.Getenv(EnvRevisionCeiling); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvRevisionCeiling, err))
		} else {
			c.Pipeline.RevisionCeiling = &n
		}
	}
	if v := os.Getenv(EnvFinalize); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvFinalize, err))
		} else {
			c.Pipeline.Finalize = &b
		}
	}
	if v := os.Getenv(EnvParallel); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvParallel, err))
		} else {
			c.Pipeline.Parallel = n
		}
	}
	if v := os.Getenv(EnvTrace); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvTrace, err))
		} else {
			c.Trace.Enabled = b
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func providerKeyEnv(name string) string {
	switch name {
	case ProviderAnthropic:
		return EnvAnthropicKey
	case ProviderOpenAI:
		return EnvOpenAIKey
	case ProviderGoogle:
		return EnvGoogleKey
	}
	return ""
}

func (c *Config) validate() error {
	var errs []error

	switch c.Provider.Name {
	case ProviderMock:
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
		if c.Provider.APIKey == "" {
			errs = append(errs, fmt.Errorf("provider %s requires an API key (set %s)", c.Provider.Name, providerKeyEnv(c.Provider.Name)))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider.Name))
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("provider retry: %w", err))
	}
	if _, err := time.ParseDuration(c.Provider.BaseDelay); err != nil {
		errs = append(errs, fmt.Errorf("invalid provider.base_delay: %w", err))
	}

	if err := c.PipelineConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.Parallel < 1 {
		errs = append(errs, fmt.Errorf("pipeline.parallel must be >= 1, got %d", c.Pipeline.Parallel))
	}

	switch c.Audit.Driver {
	case AuditNone, AuditMemory:
	case AuditSQLite, AuditMySQL:
		if c.Audit.DSN == "" {
			errs = append(errs, fmt.Errorf("audit driver %s requires a dsn", c.Audit.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audit driver %q", c.Audit.Driver))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// PipelineConfig converts the pipeline and enrich sections.
func (c *Config) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	if c.Pipeline.RevisionCeiling != nil {
		cfg.RevisionCeiling = *c.Pipeline.RevisionCeiling
	}
	if c.Pipeline.Finalize != nil {
		cfg.Finalize = *c.Pipeline.Finalize
	}
	cfg.Location = c.Enrich.Location
	cfg.TargetLanguage = c.Enrich.TargetLanguage
	cfg.SummaryWords = c.Enrich.SummaryWords
	return cfg
}

// RetryPolicy converts the provider retry settings. An unparsable
// BaseDelay yields zero, which validate reports separately.
func (c *Config) RetryPolicy() model.RetryPolicy {
	policy := model.DefaultRetryPolicy()
	policy.MaxAttempts = c.Provider.MaxAttempts
	policy.BaseDelay, _ = time.ParseDuration(c.Provider.BaseDelay)
	if policy.MaxDelay > 0 && policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	return policy
}
