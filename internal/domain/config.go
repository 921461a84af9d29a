package domain

import "time"

// Config holds the complete Sentinel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backing-store availability
	Tier Tier `json:"tier"`

	// Engine holds the decision-engine constants
	Engine EngineConfig `json:"engine"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Summarizer SummarizerConfig `json:"summarizer"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// EngineConfig holds the probabilistic-core constants. Treat the
// correlation and Platt constants as placeholder defaults, not validated
// fits.
type EngineConfig struct {
	IncidentTTL         time.Duration `json:"incidentTtl"`
	PriorLogit          float64       `json:"priorLogit"`
	MeanLogit           float64       `json:"meanLogit"`
	Temperature         float64       `json:"temperature"`
	OddsCap             float64       `json:"oddsCap"`
	PosCap              float64       `json:"posCap"`
	NegCap              float64       `json:"negCap"`
	AlertThresholdLogit float64       `json:"alertThresholdLogit"`
	Profile             CostProfile   `json:"profile"`
	TopQuestions        int           `json:"topQuestions"`

	// Events arriving within this window of the incident's last event on
	// the same camera are counted as suppressed duplicates.
	DuplicateWindow time.Duration `json:"duplicateWindow"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// SummarizerConfig holds the LLM sidecar settings. When disabled or
// unreachable the engine always falls back to the templated summary.
type SummarizerConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseUrl"`
	Timeout int    `json:"timeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// DefaultEngineConfig returns the stock decision-engine constants.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		IncidentTTL:         180 * time.Second,
		PriorLogit:          -2.0,
		MeanLogit:           0.0,
		Temperature:         1.4,
		OddsCap:             3.0,
		PosCap:              1.6,
		NegCap:              3.0,
		AlertThresholdLogit: -1.7346, // logit(0.15)
		Profile:             ProfileBalanced,
		TopQuestions:        5,
		DuplicateWindow:     2 * time.Second,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:   TierCommunity,
		Engine: DefaultEngineConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./sentinel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Summarizer: SummarizerConfig{
			Enabled: false,
			BaseURL: "http://127.0.0.1:8765",
			Timeout: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "sentinel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "sentinel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
