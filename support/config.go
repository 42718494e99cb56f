package support

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Journal string

const (
	MemoryJournal        Journal = "memory"
	DynamoJournal        Journal = "dynamodb"
	LocalDynamoJournal   Journal = "dynamodb-local"
	JetStreamJournal     Journal = "jetstream"
	DefaultListenAddress         = ":9080"
	DefaultStream                = "wee-counter"
)

type Tracing string

const (
	NoTracing        Tracing = "none"
	ConsoleTracing   Tracing = "console"
	HoneycombTracing Tracing = "honeycomb"
	JaegerTracing    Tracing = "jaeger"
)

type Config struct {
	Listen  string        `yaml:"listen"`
	Journal Journal       `yaml:"journal"`
	Dynamo  DynamoConfig  `yaml:"dynamodb"`
	Nats    NatsConfig    `yaml:"nats"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Tracing TracingConfig `yaml:"tracing"`
	Limit   LimitConfig   `yaml:"limit"`
}

type DynamoConfig struct {
	Table string `yaml:"table"`
}

type NatsConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// FetchConfig selects the count API. Without a URL the mock API is used.
type FetchConfig struct {
	URL   string        `yaml:"url"`
	Delay time.Duration `yaml:"delay"`
}

// TracingConfig selects the span exporter. Endpoint applies to jaeger, Team
// and Dataset to honeycomb.
type TracingConfig struct {
	Exporter Tracing `yaml:"exporter"`
	Endpoint string  `yaml:"endpoint"`
	Team     string  `yaml:"team"`
	Dataset  string  `yaml:"dataset"`
}

// LimitConfig bounds accepted commands per second. Zero disables limiting.
type LimitConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

func DefaultConfig() Config {
	return Config{
		Listen:  DefaultListenAddress,
		Journal: MemoryJournal,
		Nats:    NatsConfig{URL: "nats://127.0.0.1:4222", Stream: DefaultStream},
		Fetch:   FetchConfig{Delay: 500 * time.Millisecond},
		Tracing: TracingConfig{Exporter: NoTracing, Dataset: "wee-counter"},
		Limit:   LimitConfig{Burst: 1},
	}
}

// LoadConfig reads path over the defaults, when given, then applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "failed to read config %s", path)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func ApplyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("COUNTER_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("COUNTER_JOURNAL"); v != "" {
		cfg.Journal = Journal(v)
	}
	if v := os.Getenv("DYNAMODB_EVENTS_TABLE_NAME"); v != "" {
		cfg.Dynamo.Table = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Nats.URL = v
	}
	if v := os.Getenv("COUNTER_FETCH_URL"); v != "" {
		cfg.Fetch.URL = v
	}
	if v := os.Getenv("COUNTER_FETCH_DELAY"); v != "" {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "invalid COUNTER_FETCH_DELAY")
		}
		cfg.Fetch.Delay = delay
	}
	if v := os.Getenv("COUNTER_TRACING"); v != "" {
		cfg.Tracing.Exporter = Tracing(v)
	}
	if v := os.Getenv("HONEYCOMB_API_KEY"); v != "" {
		cfg.Tracing.Team = v
	}
	if v := os.Getenv("HONEYCOMB_DATASET"); v != "" {
		cfg.Tracing.Dataset = v
	}
	if v := os.Getenv("COUNTER_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "invalid COUNTER_RATE_LIMIT")
		}
		cfg.Limit.Rate = limit
	}

	return nil
}

func (cfg Config) Validate() error {
	switch cfg.Journal {
	case MemoryJournal, LocalDynamoJournal, JetStreamJournal:
	case DynamoJournal:
		if cfg.Dynamo.Table == "" {
			return errors.New("dynamodb journal requires a table name")
		}
	default:
		return errors.Errorf("unknown journal %q", cfg.Journal)
	}

	switch cfg.Tracing.Exporter {
	case NoTracing, ConsoleTracing, JaegerTracing:
	case HoneycombTracing:
		if cfg.Tracing.Team == "" {
			return errors.New("honeycomb tracing requires a team key")
		}
	default:
		return errors.Errorf("unknown tracing exporter %q", cfg.Tracing.Exporter)
	}

	if cfg.Limit.Rate < 0 || cfg.Limit.Burst < 0 {
		return errors.New("rate limit must not be negative")
	}

	return nil
}
