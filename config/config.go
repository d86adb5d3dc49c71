// Package config defines environment-driven configuration for batchrelay.
package config

import "time"

// MaxBatchSize is the service-imposed upper bound on requests per batch.
const MaxBatchSize = 10000

// AppConfig is the main application configuration struct that composes
// domain-specific configuration.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library; CLI flags override the loaded values
// where a flag exists for the same setting.
type AppConfig struct {
	// API configuration for the external batch service.
	API APIConfig `envPrefix:"ANTHROPIC_"`

	// Runner configuration for the orchestrator pass.
	Runner RunnerConfig

	// Metrics configuration for the StatsD emitter.
	Metrics MetricsConfig
}

// MetricsConfig configures best-effort StatsD metric emission.
type MetricsConfig struct {
	// Address is the UDP host:port of the StatsD endpoint. Empty disables
	// emission.
	Address string `env:"METRICS_ADDRESS"`

	// Prefix is prepended to every metric name.
	Prefix string `env:"METRICS_PREFIX" envDefault:"batchrelay"`
}

// APIConfig configures the external message-batch service client.
type APIConfig struct {
	// APIKey authenticates requests to the batch service. Required for any
	// non-dry run.
	APIKey string `env:"API_KEY"`

	// BaseURL is the service endpoint root.
	BaseURL string `env:"BASE_URL" envDefault:"https://api.anthropic.com"`

	// Version is the API version header sent with every request.
	Version string `env:"VERSION" envDefault:"2023-06-01"`

	// Timeout bounds each HTTP call to the service.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"120s"`

	// RetryCount is the number of transport-level retries per call.
	RetryCount int `env:"RETRY_COUNT" envDefault:"3"`

	// RequestsPerMinute paces calls to the service. Zero disables pacing.
	RequestsPerMinute int `env:"REQUESTS_PER_MINUTE" envDefault:"0"`
}

// Sanitize applies guardrails to API configuration values.
func (a *APIConfig) Sanitize() {
	if a.Timeout <= 0 {
		a.Timeout = 120 * time.Second
	}
	if a.RetryCount < 0 {
		a.RetryCount = 0
	}
	if a.RequestsPerMinute < 0 {
		a.RequestsPerMinute = 0
	}
}

// RunnerConfig contains orchestrator pass configuration.
type RunnerConfig struct {
	// BatchSize is the maximum number of requests per submitted batch.
	BatchSize int `env:"BATCH_SIZE" envDefault:"10000"`

	// Sleep is the fixed delay between batches within a pass.
	Sleep time.Duration `env:"BATCH_SLEEP" envDefault:"0s"`

	// ContinueOnError keeps the pass going when a batch-level call fails.
	ContinueOnError bool `env:"CONTINUE_ON_ERROR" envDefault:"true"`

	// ValidateInput enables JSON-Schema validation of work item payloads.
	ValidateInput bool `env:"VALIDATE_INPUT" envDefault:"false"`
}

// Sanitize applies guardrails to runner configuration values.
func (r *RunnerConfig) Sanitize() {
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > MaxBatchSize {
		r.BatchSize = MaxBatchSize
	}
	if r.Sleep < 0 {
		r.Sleep = 0
	}
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.API.Sanitize()
	c.Runner.Sanitize()
}
