// Package config loads the offerbench HCL configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/source/uitdatabank"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// Config is the top-level offerbench configuration.
type Config struct {
	// LogLevel is one of trace, debug, info, warn or error.
	LogLevel string `hcl:"log_level,optional"`

	Engine        *Engine        `hcl:"engine,block"`
	Elasticsearch *Elasticsearch `hcl:"elasticsearch,block"`
	Bleve         *Bleve         `hcl:"bleve,block"`
	Source        *Source        `hcl:"source,block"`
	Indices       *Indices       `hcl:"indices,block"`
	Search        *Search        `hcl:"search,block"`
	Metrics       *Metrics       `hcl:"metrics,block"`
}

// Engine selects the search engine.
type Engine struct {
	// Provider is "elasticsearch" or "bleve".
	Provider string `hcl:"provider,optional"`

	// ReadyTimeout bounds the wait for the engine to answer at startup.
	ReadyTimeout string `hcl:"ready_timeout,optional"`
}

// Elasticsearch configures the Elasticsearch adapter.
type Elasticsearch struct {
	URL            string `hcl:"url,optional"`
	Username       string `hcl:"username,optional"`
	Password       string `hcl:"password,optional"`
	RequestTimeout string `hcl:"request_timeout,optional"`
}

// Bleve configures the embedded engine. An empty index_path keeps indexes in
// memory.
type Bleve struct {
	IndexPath string `hcl:"index_path,optional"`
}

// Source configures the UiTdatabank client.
type Source struct {
	BaseURL string            `hcl:"base_url,optional"`
	APIKey  string            `hcl:"api_key,optional"`
	Timeout string            `hcl:"timeout,optional"`
	Params  map[string]string `hcl:"params,optional"`
}

// Indices names the engine indexes.
type Indices struct {
	Combined string `hcl:"combined,optional"`
	Events   string `hcl:"events,optional"`
	Places   string `hcl:"places,optional"`
}

// Search configures query execution.
type Search struct {
	Timeout string `hcl:"timeout,optional"`
}

// Metrics configures the Prometheus endpoint. It is disabled when Addr is
// empty.
type Metrics struct {
	Addr string `hcl:"addr,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	names := strategy.DefaultIndexNames()
	return &Config{
		LogLevel: "info",
		Engine: &Engine{
			Provider:     string(search.ProviderTypeElasticsearch),
			ReadyTimeout: "30s",
		},
		Elasticsearch: &Elasticsearch{
			URL:            "http://localhost:9200",
			RequestTimeout: "10s",
		},
		Bleve: &Bleve{},
		Source: &Source{
			BaseURL: uitdatabank.DefaultBaseURL,
			Timeout: uitdatabank.DefaultTimeout.String(),
		},
		Indices: &Indices{
			Combined: names.Combined,
			Events:   names.Events,
			Places:   names.Places,
		},
		Search:  &Search{Timeout: search.DefaultTimeout.String()},
		Metrics: &Metrics{},
	}
}

// Load reads the configuration file at path, fills in defaults, applies
// OFFERBENCH_* environment overrides and validates the result. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file: %w", err)
		}
	}

	cfg.setDefaults()
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults fills every unset value from Default.
func (c *Config) setDefaults() {
	d := Default()

	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}

	if c.Engine == nil {
		c.Engine = d.Engine
	}
	if c.Engine.Provider == "" {
		c.Engine.Provider = d.Engine.Provider
	}
	if c.Engine.ReadyTimeout == "" {
		c.Engine.ReadyTimeout = d.Engine.ReadyTimeout
	}

	if c.Elasticsearch == nil {
		c.Elasticsearch = d.Elasticsearch
	}
	if c.Elasticsearch.URL == "" {
		c.Elasticsearch.URL = d.Elasticsearch.URL
	}
	if c.Elasticsearch.RequestTimeout == "" {
		c.Elasticsearch.RequestTimeout = d.Elasticsearch.RequestTimeout
	}

	if c.Bleve == nil {
		c.Bleve = d.Bleve
	}

	if c.Source == nil {
		c.Source = d.Source
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = d.Source.BaseURL
	}
	if c.Source.Timeout == "" {
		c.Source.Timeout = d.Source.Timeout
	}

	if c.Indices == nil {
		c.Indices = d.Indices
	}
	if c.Indices.Combined == "" {
		c.Indices.Combined = d.Indices.Combined
	}
	if c.Indices.Events == "" {
		c.Indices.Events = d.Indices.Events
	}
	if c.Indices.Places == "" {
		c.Indices.Places = d.Indices.Places
	}

	if c.Search == nil {
		c.Search = d.Search
	}
	if c.Search.Timeout == "" {
		c.Search.Timeout = d.Search.Timeout
	}

	if c.Metrics == nil {
		c.Metrics = d.Metrics
	}
}

// applyEnv overrides values from the environment. Env wins over the file.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		name   string
		target *string
	}{
		{"OFFERBENCH_LOG_LEVEL", &c.LogLevel},
		{"OFFERBENCH_ENGINE", &c.Engine.Provider},
		{"OFFERBENCH_ELASTICSEARCH_URL", &c.Elasticsearch.URL},
		{"OFFERBENCH_ELASTICSEARCH_USERNAME", &c.Elasticsearch.Username},
		{"OFFERBENCH_ELASTICSEARCH_PASSWORD", &c.Elasticsearch.Password},
		{"OFFERBENCH_BLEVE_INDEX_PATH", &c.Bleve.IndexPath},
		{"OFFERBENCH_SOURCE_URL", &c.Source.BaseURL},
		{"OFFERBENCH_API_KEY", &c.Source.APIKey},
		{"OFFERBENCH_SEARCH_TIMEOUT", &c.Search.Timeout},
		{"OFFERBENCH_METRICS_ADDR", &c.Metrics.Addr},
	}

	for _, o := range overrides {
		if val, ok := lookup(o.name); ok && val != "" {
			*o.target = val
		}
	}
}

// Validate checks a loaded configuration.
func (c *Config) Validate() error {
	return validation.Errors{
		"log_level": validation.Validate(strings.ToLower(c.LogLevel),
			validation.In("trace", "debug", "info", "warn", "error"),
		),
		"engine": validation.ValidateStruct(c.Engine,
			validation.Field(&c.Engine.Provider, validation.Required, validation.In(
				string(search.ProviderTypeElasticsearch),
				string(search.ProviderTypeBleve),
			)),
			validation.Field(&c.Engine.ReadyTimeout, validation.By(isDuration)),
		),
		"elasticsearch": c.validateElasticsearch(),
		"source": validation.ValidateStruct(c.Source,
			validation.Field(&c.Source.BaseURL, validation.Required),
			validation.Field(&c.Source.Timeout, validation.By(isDuration)),
		),
		"indices": validation.ValidateStruct(c.Indices,
			validation.Field(&c.Indices.Combined, validation.Required),
			validation.Field(&c.Indices.Events, validation.Required,
				validation.NotIn(c.Indices.Combined).Error("must differ from combined"),
			),
			validation.Field(&c.Indices.Places, validation.Required,
				validation.NotIn(c.Indices.Combined).Error("must differ from combined"),
				validation.NotIn(c.Indices.Events).Error("must differ from events"),
			),
		),
		"search": validation.ValidateStruct(c.Search,
			validation.Field(&c.Search.Timeout, validation.By(isDuration)),
		),
	}.Filter()
}

func (c *Config) validateElasticsearch() error {
	if c.Engine.Provider != string(search.ProviderTypeElasticsearch) {
		return nil
	}
	return validation.ValidateStruct(c.Elasticsearch,
		validation.Field(&c.Elasticsearch.URL, validation.Required),
		validation.Field(&c.Elasticsearch.RequestTimeout, validation.By(isDuration)),
	)
}

// IndexNames returns the configured index names.
func (c *Config) IndexNames() strategy.IndexNames {
	return strategy.IndexNames{
		Combined: c.Indices.Combined,
		Events:   c.Indices.Events,
		Places:   c.Indices.Places,
	}
}

// Duration parses a validated duration value. Empty yields zero.
func Duration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func isDuration(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a duration such as 5s or 500ms")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// Example configuration file:
//
// log_level = "info"
//
// engine {
//   provider      = "elasticsearch"
//   ready_timeout = "30s"
// }
//
// elasticsearch {
//   url             = "http://localhost:9200"
//   request_timeout = "10s"
// }
//
// bleve {
//   index_path = "./data/bleve"
// }
//
// source {
//   base_url = "https://io.uitdatabank.be/"
//   api_key  = "..."
//   timeout  = "5s"
//   params = {
//     workflowStatus = "READY_FOR_VALIDATION,APPROVED"
//   }
// }
//
// indices {
//   combined = "offers"
//   events   = "events"
//   places   = "places"
// }
//
// search {
//   timeout = "10s"
// }
//
// metrics {
//   addr = ":9102"
// }
