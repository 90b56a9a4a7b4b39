package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/avezina/deepscout/internal/research"
)

// Load reads the YAML configuration file at path, applies DEEPSCOUT_*
// environment overrides and defaults, and returns a validated [Config].
// A missing file is not an error — the environment alone can carry a full
// configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		cfg := &Config{}
		return finish(cfg)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return finish(cfg)
}

// LoadFromReader decodes a YAML config from r, applies environment overrides
// and defaults, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays DEEPSCOUT_* environment variables onto cfg. String
// values replace; numeric values are parsed and replace. OPENAI_API_KEY is
// accepted as a fallback credential source.
func ApplyEnv(cfg *Config) error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
			return
		}
		*dst = n
	}
	setFloat := func(key string, dst *float64) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s=%q is not a number", key, v))
			return
		}
		*dst = f
	}

	setString("DEEPSCOUT_API_KEY", &cfg.Research.APIKey)
	if cfg.Research.APIKey == "" {
		setString("OPENAI_API_KEY", &cfg.Research.APIKey)
	}
	setString("DEEPSCOUT_BASE_URL", &cfg.Research.BaseURL)
	setInt("DEEPSCOUT_TIMEOUT_SECONDS", &cfg.Research.TimeoutSeconds)
	setInt("DEEPSCOUT_MAX_RETRIES", &cfg.Research.MaxRetries)
	setString("DEEPSCOUT_MODEL_HIGH", &cfg.Research.ModelHigh)
	setString("DEEPSCOUT_MODEL_MEDIUM", &cfg.Research.ModelMedium)
	setFloat("DEEPSCOUT_COST_PER_1K_HIGH", &cfg.Research.CostPer1KHigh)
	setFloat("DEEPSCOUT_COST_PER_1K_MEDIUM", &cfg.Research.CostPer1KMedium)

	if v := os.Getenv("DEEPSCOUT_TRANSPORT"); v != "" {
		cfg.Server.Transport = Transport(v)
	}
	setString("DEEPSCOUT_LISTEN_ADDR", &cfg.Server.ListenAddr)
	if v := os.Getenv("DEEPSCOUT_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}

	setInt("DEEPSCOUT_HOURLY_REQUESTS", &cfg.RateLimit.HourlyRequests)
	setFloat("DEEPSCOUT_DAILY_COST_CAP_USD", &cfg.RateLimit.DailyCostCapUSD)
	setInt("DEEPSCOUT_DAILY_REQUESTS_HIGH", &cfg.RateLimit.DailyRequestsHigh)
	setInt("DEEPSCOUT_DAILY_REQUESTS_MEDIUM", &cfg.RateLimit.DailyRequestsMedium)

	setString("DEEPSCOUT_DEFAULT_ACCURACY", &cfg.Defaults.AccuracyLevel)
	setInt("DEEPSCOUT_DEFAULT_MAX_TOKENS", &cfg.Defaults.MaxTokens)
	if v := os.Getenv("DEEPSCOUT_DEFAULT_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: DEEPSCOUT_DEFAULT_TEMPERATURE=%q is not a number", v))
		} else {
			cfg.Defaults.Temperature = &f
		}
	}
	setString("DEEPSCOUT_DEFAULT_FORMAT", &cfg.Defaults.ResponseFormat)

	return errors.Join(errs...)
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportStdio
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Research.TimeoutSeconds == 0 {
		cfg.Research.TimeoutSeconds = 600
	}
	if cfg.Research.MaxRetries == 0 {
		cfg.Research.MaxRetries = 3
	}
	if cfg.RateLimit.HourlyRequests == 0 {
		cfg.RateLimit.HourlyRequests = 10
	}
	if cfg.RateLimit.DailyCostCapUSD == 0 {
		cfg.RateLimit.DailyCostCapUSD = 25
	}
	if cfg.RateLimit.DailyRequestsHigh == 0 {
		cfg.RateLimit.DailyRequestsHigh = 20
	}
	if cfg.RateLimit.DailyRequestsMedium == 0 {
		cfg.RateLimit.DailyRequestsMedium = 50
	}
	if cfg.RateLimit.SweepIntervalSeconds == 0 {
		cfg.RateLimit.SweepIntervalSeconds = 60
	}
	if cfg.Defaults.AccuracyLevel == "" {
		cfg.Defaults.AccuracyLevel = string(research.AccuracyMedium)
	}
	if cfg.Defaults.MaxTokens == 0 {
		cfg.Defaults.MaxTokens = 4000
	}
	if cfg.Defaults.Temperature == nil {
		t := 0.3
		cfg.Defaults.Temperature = &t
	}
	if cfg.Defaults.ResponseFormat == "" {
		cfg.Defaults.ResponseFormat = string(research.FormatComprehensive)
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found, so operators can fix
// everything in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: stdio, streamable-http", cfg.Server.Transport))
	}
	if cfg.Server.Transport == TransportStreamableHTTP && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required when transport is streamable-http"))
	}
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Research.APIKey == "" {
		errs = append(errs, errors.New("research.api_key is required (or set DEEPSCOUT_API_KEY)"))
	}
	if cfg.Research.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("research.timeout_seconds %d must be positive", cfg.Research.TimeoutSeconds))
	}
	if cfg.Research.MaxRetries < 0 || cfg.Research.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("research.max_retries %d is out of range [0, 10]", cfg.Research.MaxRetries))
	}
	if cfg.Research.CostPer1KHigh < 0 || cfg.Research.CostPer1KMedium < 0 {
		errs = append(errs, errors.New("research cost_per_1k values must not be negative"))
	}

	if cfg.RateLimit.HourlyRequests <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.hourly_requests %d must be positive", cfg.RateLimit.HourlyRequests))
	}
	if cfg.RateLimit.DailyCostCapUSD <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.daily_cost_cap_usd %.2f must be positive", cfg.RateLimit.DailyCostCapUSD))
	}
	if cfg.RateLimit.DailyRequestsHigh <= 0 || cfg.RateLimit.DailyRequestsMedium <= 0 {
		errs = append(errs, errors.New("rate_limit daily request caps must be positive"))
	}
	if cfg.RateLimit.SweepIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.sweep_interval_seconds %d must be positive", cfg.RateLimit.SweepIntervalSeconds))
	}

	if lvl := research.AccuracyLevel(cfg.Defaults.AccuracyLevel); !lvl.IsValid() {
		errs = append(errs, fmt.Errorf("defaults.accuracy_level %q is invalid; valid values: high, medium", cfg.Defaults.AccuracyLevel))
	}
	if cfg.Defaults.MaxTokens < 500 || cfg.Defaults.MaxTokens > 8000 {
		errs = append(errs, fmt.Errorf("defaults.max_tokens %d is out of range [500, 8000]", cfg.Defaults.MaxTokens))
	}
	if cfg.Defaults.Temperature != nil {
		if t := *cfg.Defaults.Temperature; t < 0 || t > 1 {
			errs = append(errs, fmt.Errorf("defaults.temperature %.2f is out of range [0.0, 1.0]", t))
		}
	}
	if f := research.Format(cfg.Defaults.ResponseFormat); !f.IsValid() {
		errs = append(errs, fmt.Errorf("defaults.response_format %q is invalid; valid values: comprehensive, summary, bullet_points", cfg.Defaults.ResponseFormat))
	}

	return errors.Join(errs...)
}
