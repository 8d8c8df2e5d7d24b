// Package config holds the environment-driven configuration for cv-analyzer.
package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Postgres, Redis and result cache configuration
//   - http.go: HTTP server configuration
//   - services.go: Service modes, queue, worker, context and reaper configuration
//   - gemini.go: Generation and embedding configuration
//   - observability.go: Metrics configuration
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Postgres    DBConfig    `envPrefix:"DB_"`
	Redis       RedisConfig `envPrefix:"REDIS_"`
	ResultCache ResultCacheConfig

	HTTP    HTTPConfig
	Storage StorageConfig

	// Services is a comma-separated list of roles to run (http, worker, reaper).
	Services string `env:"SERVICES" envDefault:"http,worker"`

	Queue   QueueConfig
	Worker  WorkerConfig
	Context ContextConfig
	Reaper  ReaperConfig
	Gemini  GeminiConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Storage.Sanitize()
	c.ResultCache.Sanitize()
	c.Queue.Sanitize()
	c.Worker.Sanitize()
	c.Context.Sanitize()
	c.Reaper.Sanitize()
	c.Gemini.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsWorkerEnabled returns true if the evaluation worker is enabled.
func (c *AppConfig) IsWorkerEnabled() bool { return c.serviceEnabled(ServiceModeWorker) }

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }
