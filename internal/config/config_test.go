package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "offerbench.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"OFFERBENCH_LOG_LEVEL",
		"OFFERBENCH_ENGINE",
		"OFFERBENCH_ELASTICSEARCH_URL",
		"OFFERBENCH_ELASTICSEARCH_USERNAME",
		"OFFERBENCH_ELASTICSEARCH_PASSWORD",
		"OFFERBENCH_BLEVE_INDEX_PATH",
		"OFFERBENCH_SOURCE_URL",
		"OFFERBENCH_API_KEY",
		"OFFERBENCH_SEARCH_TIMEOUT",
		"OFFERBENCH_METRICS_ADDR",
	} {
		t.Setenv(name, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("no file uses defaults", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "elasticsearch", cfg.Engine.Provider)
		assert.Equal(t, "http://localhost:9200", cfg.Elasticsearch.URL)
		assert.Equal(t, "https://io.uitdatabank.be/", cfg.Source.BaseURL)
		assert.Equal(t, 5*time.Second, Duration(cfg.Source.Timeout))
		assert.Equal(t, 10*time.Second, Duration(cfg.Search.Timeout))
		assert.Equal(t, "offers", cfg.IndexNames().Combined)
		assert.Equal(t, "events", cfg.IndexNames().Events)
		assert.Equal(t, "places", cfg.IndexNames().Places)
		assert.Empty(t, cfg.Metrics.Addr)
	})

	t.Run("file values", func(t *testing.T) {
		clearEnv(t)

		path := createTempFile(t, `
log_level = "debug"

engine {
  provider = "bleve"
}

bleve {
  index_path = "/var/lib/offerbench"
}

source {
  api_key = "secret"
  params = {
    workflowStatus = "APPROVED"
  }
}

indices {
  combined = "all-offers"
}

search {
  timeout = "2s"
}
`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "bleve", cfg.Engine.Provider)
		assert.Equal(t, "/var/lib/offerbench", cfg.Bleve.IndexPath)
		assert.Equal(t, "secret", cfg.Source.APIKey)
		assert.Equal(t, "https://io.uitdatabank.be/", cfg.Source.BaseURL)
		assert.Equal(t, map[string]string{"workflowStatus": "APPROVED"}, cfg.Source.Params)
		assert.Equal(t, "all-offers", cfg.Indices.Combined)
		assert.Equal(t, "events", cfg.Indices.Events)
		assert.Equal(t, 2*time.Second, Duration(cfg.Search.Timeout))
	})

	t.Run("environment overrides file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OFFERBENCH_API_KEY", "from-env")
		t.Setenv("OFFERBENCH_ELASTICSEARCH_URL", "http://es:9200")
		t.Setenv("OFFERBENCH_METRICS_ADDR", ":9102")

		path := createTempFile(t, `
source {
  api_key = "from-file"
}
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Source.APIKey)
		assert.Equal(t, "http://es:9200", cfg.Elasticsearch.URL)
		assert.Equal(t, ":9102", cfg.Metrics.Addr)
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := Load("/nonexistent/offerbench.hcl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration file not found")
	})

	t.Run("invalid hcl", func(t *testing.T) {
		path := createTempFile(t, `engine {`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse configuration file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Engine.Provider = "algolia" },
			wantErr: "engine",
		},
		{
			name:    "bad search timeout",
			mutate:  func(c *Config) { c.Search.Timeout = "soon" },
			wantErr: "search",
		},
		{
			name:    "negative source timeout",
			mutate:  func(c *Config) { c.Source.Timeout = "-1s" },
			wantErr: "source",
		},
		{
			name:    "missing index name",
			mutate:  func(c *Config) { c.Indices.Places = "" },
			wantErr: "indices",
		},
		{
			name:    "events and places share an index",
			mutate:  func(c *Config) { c.Indices.Places = c.Indices.Events },
			wantErr: "must differ from events",
		},
		{
			name:    "type index equals combined",
			mutate:  func(c *Config) { c.Indices.Events = c.Indices.Combined },
			wantErr: "must differ from combined",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "log_level",
		},
		{
			name: "elasticsearch url not needed for bleve",
			mutate: func(c *Config) {
				c.Engine.Provider = "bleve"
				c.Elasticsearch.URL = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv_IgnoresEmpty(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(func(name string) (string, bool) {
		if name == "OFFERBENCH_ENGINE" {
			return "", true
		}
		return "", false
	})
	assert.Equal(t, "elasticsearch", cfg.Engine.Provider)
}
