// Package config provides the configuration schema and loader for the
// deepscout MCP server. Configuration is loaded once at startup from an
// optional YAML file plus DEEPSCOUT_* environment overrides, validated
// eagerly, and passed into component constructors — business logic never
// reads the environment.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Transport selects how the MCP server is exposed.
type Transport string

const (
	// TransportStdio serves MCP over the process stdio pipes.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP serves MCP over streamable HTTP, alongside
	// /metrics and /healthz.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// Config is the root configuration structure. Load it with [Load] or
// [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Research  ResearchConfig  `yaml:"research"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ServerConfig holds transport and logging settings.
type ServerConfig struct {
	// Transport selects stdio or streamable-http. Default: stdio.
	Transport Transport `yaml:"transport"`

	// ListenAddr is the TCP address for streamable-http mode (e.g. ":8080").
	// Required when Transport is streamable-http.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// ResearchConfig configures the downstream research API client.
type ResearchConfig struct {
	// APIKey authenticates against the research API. Required.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint. Leave empty for the default.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds is the per-request HTTP timeout. Default: 600.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxRetries bounds transport-level retries. Default: 3.
	MaxRetries int `yaml:"max_retries"`

	// ModelHigh and ModelMedium name the downstream models per accuracy
	// level. Empty values use the client's built-in defaults.
	ModelHigh   string `yaml:"model_high"`
	ModelMedium string `yaml:"model_medium"`

	// CostPer1KHigh and CostPer1KMedium are the per-1K-token prices used
	// for cost estimation, in USD.
	CostPer1KHigh   float64 `yaml:"cost_per_1k_high"`
	CostPer1KMedium float64 `yaml:"cost_per_1k_medium"`
}

// RateLimitConfig holds the advisory per-client limits.
type RateLimitConfig struct {
	// HourlyRequests caps requests per client per hour. Default: 10.
	HourlyRequests int `yaml:"hourly_requests"`

	// DailyCostCapUSD caps projected per-client daily spend. Default: 25.
	DailyCostCapUSD float64 `yaml:"daily_cost_cap_usd"`

	// DailyRequestsHigh and DailyRequestsMedium cap per-level daily counts.
	// Defaults: 20 and 50.
	DailyRequestsHigh   int `yaml:"daily_requests_high"`
	DailyRequestsMedium int `yaml:"daily_requests_medium"`

	// SweepIntervalSeconds is the purge period. Default: 60.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// DefaultsConfig supplies fallback values for optional request fields.
type DefaultsConfig struct {
	// AccuracyLevel is used when the caller omits one. Default: medium.
	AccuracyLevel string `yaml:"accuracy_level"`

	// MaxTokens is the default output budget. Default: 4000.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is the default sampling temperature. A nil value means
	// 0.3; an explicit 0.0 is respected.
	Temperature *float64 `yaml:"temperature"`

	// ResponseFormat is the default presentation style. Default:
	// comprehensive.
	ResponseFormat string `yaml:"response_format"`
}
