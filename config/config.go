package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/querycache/booking"
	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
	"github.com/jonwraymond/querycache/resilience"
)

// Config is the environment-driven configuration.
type Config struct {
	StaleAfter           time.Duration `env:"QUERYCACHE_STALE_AFTER"            envDefault:"10m"`
	EvictAfter           time.Duration `env:"QUERYCACHE_EVICT_AFTER"            envDefault:"15m"`
	ErrorBackoff         time.Duration `env:"QUERYCACHE_ERROR_BACKOFF"          envDefault:"1s"`
	ErrorBackoffMax      time.Duration `env:"QUERYCACHE_ERROR_BACKOFF_MAX"      envDefault:"30s"`
	MaxConcurrentFetches int           `env:"QUERYCACHE_MAX_CONCURRENT_FETCHES" envDefault:"16"`
	FetchTimeout         time.Duration `env:"QUERYCACHE_FETCH_TIMEOUT"`
	FetchRetries         int           `env:"QUERYCACHE_FETCH_RETRIES"          envDefault:"0"`
	RefetchOnMount       bool          `env:"QUERYCACHE_REFETCH_ON_MOUNT"       envDefault:"false"`
	RefetchOnFocus       bool          `env:"QUERYCACHE_REFETCH_ON_FOCUS"       envDefault:"false"`
	RefetchOnReconnect   bool          `env:"QUERYCACHE_REFETCH_ON_RECONNECT"   envDefault:"false"`

	APIURL         string        `env:"BOOKING_API_URL"`
	APITimeout     time.Duration `env:"BOOKING_API_TIMEOUT"     envDefault:"10s"`
	CredentialPath string        `env:"BOOKING_CREDENTIAL_PATH"`

	BreakerFailures int           `env:"BOOKING_BREAKER_FAILURES" envDefault:"5"`
	BreakerReset    time.Duration `env:"BOOKING_BREAKER_RESET"    envDefault:"30s"`

	ServiceName     string  `env:"QUERYCACHE_SERVICE_NAME"     envDefault:"querycache"`
	TracingExporter string  `env:"QUERYCACHE_TRACING_EXPORTER" envDefault:"none"`
	TraceSamplePct  float64 `env:"QUERYCACHE_TRACE_SAMPLE_PCT" envDefault:"1.0"`
	MetricsExporter string  `env:"QUERYCACHE_METRICS_EXPORTER" envDefault:"none"`
	LogLevel        string  `env:"QUERYCACHE_LOG_LEVEL"        envDefault:"info"`
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom is Load over the given variables instead of the process
// environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with every variable unset.
func Default() Config {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks the cache settings.
func (c Config) Validate() error {
	for _, d := range []time.Duration{c.StaleAfter, c.EvictAfter, c.ErrorBackoff, c.ErrorBackoffMax, c.FetchTimeout, c.APITimeout, c.BreakerReset} {
		if d < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidDuration, d)
		}
	}
	if c.EvictAfter < c.StaleAfter {
		return fmt.Errorf("%w: %s < %s", ErrEvictBeforeStale, c.EvictAfter, c.StaleAfter)
	}
	if c.ErrorBackoffMax < c.ErrorBackoff {
		return fmt.Errorf("%w: %s < %s", ErrInvalidBackoff, c.ErrorBackoffMax, c.ErrorBackoff)
	}
	if c.MaxConcurrentFetches < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.MaxConcurrentFetches)
	}
	if c.FetchRetries < 0 || c.BreakerFailures < 0 {
		return fmt.Errorf("%w: retries %d, breaker failures %d", ErrInvalidCount, c.FetchRetries, c.BreakerFailures)
	}
	obs := c.Observe()
	return obs.Validate()
}

// Policy returns the store lifetime policy.
func (c Config) Policy() cache.Policy {
	return cache.Policy{StaleAfter: c.StaleAfter, EvictAfter: c.EvictAfter}
}

// QueryDefaults returns the trigger defaults. With mount refetch off,
// observers only fetch keys that hold no data yet.
func (c Config) QueryDefaults() query.Defaults {
	mount := query.MountIfMissing
	if c.RefetchOnMount {
		mount = query.MountIfStale
	}
	backoff := resilience.DefaultBackoff()
	backoff.Initial = c.ErrorBackoff
	backoff.Max = c.ErrorBackoffMax
	if c.ErrorBackoff == 0 {
		backoff.Strategy = resilience.BackoffNone
	}
	return query.Defaults{
		OnMount:      mount,
		OnFocus:      c.RefetchOnFocus,
		OnReconnect:  c.RefetchOnReconnect,
		ErrorBackoff: backoff,
	}
}

// QueryOptions returns the client options implied by the configuration.
func (c Config) QueryOptions() []query.Option {
	opts := []query.Option{query.WithDefaults(c.QueryDefaults())}
	if c.MaxConcurrentFetches > 0 {
		opts = append(opts, query.WithMaxConcurrentFetches(c.MaxConcurrentFetches))
	}
	if c.FetchTimeout > 0 {
		opts = append(opts, query.WithFetchTimeout(c.FetchTimeout))
	}
	if c.FetchRetries > 0 {
		opts = append(opts, query.WithFetchRetry(resilience.RetryConfig{
			MaxAttempts: c.FetchRetries + 1,
			Backoff: resilience.Backoff{
				Strategy:   resilience.BackoffExponential,
				Initial:    200 * time.Millisecond,
				Max:        c.ErrorBackoffMax,
				Multiplier: 2,
				Jitter:     true,
			},
			RetryIf: booking.Transient,
		}))
	}
	return opts
}

// MutationExecutor returns the resilience policy for remote mutation calls.
// Repeated outages open a circuit so later mutations roll back at once
// instead of waiting on a dead server.
func (c Config) MutationExecutor() *resilience.Executor {
	if c.BreakerFailures == 0 {
		return resilience.NewExecutor()
	}
	return resilience.NewExecutor(resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  c.BreakerFailures,
		ResetTimeout: c.BreakerReset,
		IsFailure:    booking.Transient,
	})))
}

// Observe returns the telemetry configuration.
func (c Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Global:      true,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingExporter != "" && c.TracingExporter != "none",
			Exporter:  c.TracingExporter,
			SamplePct: c.TraceSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsExporter != "" && c.MetricsExporter != "none",
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}

// HTTP returns the booking server client configuration.
func (c Config) HTTP(auth booking.Authorizer) (booking.HTTPConfig, error) {
	if c.APIURL == "" {
		return booking.HTTPConfig{}, ErrMissingAPIURL
	}
	return booking.HTTPConfig{BaseURL: c.APIURL, Timeout: c.APITimeout, Authorizer: auth}, nil
}
