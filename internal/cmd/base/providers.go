package base

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/cultuurnet/offerbench/internal/config"
	"github.com/cultuurnet/offerbench/pkg/search"
	bleveadapter "github.com/cultuurnet/offerbench/pkg/search/adapters/bleve"
	esadapter "github.com/cultuurnet/offerbench/pkg/search/adapters/elasticsearch"
	"github.com/cultuurnet/offerbench/pkg/source/uitdatabank"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// SearchEngine creates the search engine named by the configuration. For
// Elasticsearch it waits until the cluster answers, bounded by
// engine.ready_timeout. The returned close function is never nil.
func SearchEngine(ctx context.Context, cfg *config.Config, logger hclog.Logger) (search.Engine, func() error, error) {
	noop := func() error { return nil }

	switch search.ProviderType(cfg.Engine.Provider) {
	case search.ProviderTypeElasticsearch:
		adapter, err := esadapter.NewAdapter(&esadapter.Config{
			URL:            cfg.Elasticsearch.URL,
			Username:       cfg.Elasticsearch.Username,
			Password:       cfg.Elasticsearch.Password,
			RequestTimeout: config.Duration(cfg.Elasticsearch.RequestTimeout),
			Logger:         logger,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize elasticsearch adapter: %w", err)
		}

		if wait := config.Duration(cfg.Engine.ReadyTimeout); wait > 0 {
			if err := adapter.WaitReady(ctx, wait); err != nil {
				return nil, noop, err
			}
		}

		logger.Info("initialized search engine", "provider", "elasticsearch", "url", cfg.Elasticsearch.URL)
		return adapter, noop, nil

	case search.ProviderTypeBleve:
		adapter, err := bleveadapter.NewAdapter(&bleveadapter.Config{
			IndexPath: cfg.Bleve.IndexPath,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to initialize bleve adapter: %w", err)
		}

		if cfg.Bleve.IndexPath == "" {
			logger.Warn("bleve index_path is empty, indexes only live for this process")
		}

		logger.Info("initialized search engine", "provider", "bleve", "path", cfg.Bleve.IndexPath)
		return adapter, closer(adapter), nil

	default:
		return nil, noop, fmt.Errorf("unsupported search provider: %s (supported: elasticsearch, bleve)", cfg.Engine.Provider)
	}
}

// Source creates the UiTdatabank client.
func Source(cfg *config.Config, logger hclog.Logger) (*uitdatabank.Client, error) {
	client, err := uitdatabank.New(uitdatabank.Config{
		BaseURL: cfg.Source.BaseURL,
		APIKey:  cfg.Source.APIKey,
		Timeout: config.Duration(cfg.Source.Timeout),
		Params:  cfg.Source.Params,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize uitdatabank client: %w", err)
	}
	return client, nil
}

func closer(c io.Closer) func() error {
	return c.Close
}

// Executor creates a search executor on top of the configured engine.
func Executor(ctx context.Context, cfg *config.Config, logger hclog.Logger) (*search.Executor, func() error, error) {
	engine, closeFn, err := SearchEngine(ctx, cfg, logger)
	if err != nil {
		return nil, closeFn, err
	}

	executor, err := search.NewExecutor(search.ExecutorConfig{
		Engine:   engine,
		Strategy: strategy.New(cfg.IndexNames()),
		Timeout:  config.Duration(cfg.Search.Timeout),
		Logger:   logger,
	})
	if err != nil {
		_ = closeFn()
		return nil, func() error { return nil }, err
	}

	return executor, closeFn, nil
}
