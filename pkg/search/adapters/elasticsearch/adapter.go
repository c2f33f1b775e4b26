// Package elasticsearch implements the search engine boundary on top of an
// Elasticsearch cluster.
package elasticsearch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/olivere/elastic/v7"

	offersearch "github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// Adapter implements search.Engine for Elasticsearch.
type Adapter struct {
	client *elastic.Client
	url    string
	logger hclog.Logger
}

// Config contains Elasticsearch configuration.
type Config struct {
	URL      string
	Username string
	Password string

	// RequestTimeout bounds every HTTP request made by the client. Zero means
	// no client-side bound; callers still pass contexts with deadlines.
	RequestTimeout time.Duration

	Logger hclog.Logger
}

// NewAdapter creates a new Elasticsearch adapter. It does not contact the
// cluster; use WaitReady for that.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("elasticsearch url required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
		elastic.SetHttpClient(&http.Client{Timeout: cfg.RequestTimeout}),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &Adapter{
		client: client,
		url:    cfg.URL,
		logger: logger.Named("elasticsearch"),
	}, nil
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return string(offersearch.ProviderTypeElasticsearch)
}

// Healthy pings the cluster once.
func (a *Adapter) Healthy(ctx context.Context) error {
	_, code, err := a.client.Ping(a.url).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", offersearch.ErrBackendUnavailable, err)
	}
	if code >= http.StatusBadRequest {
		return fmt.Errorf("%w: ping returned status %d", offersearch.ErrBackendUnavailable, code)
	}
	return nil
}

// WaitReady pings the cluster with exponential backoff until it answers or
// maxWait elapses. It is only used at start-up, never around imports or
// searches.
func (a *Adapter) WaitReady(ctx context.Context, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = maxWait

	return backoff.RetryNotify(
		func() error { return a.Healthy(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			a.logger.Warn("elasticsearch not ready", "error", err, "retry_in", next)
		},
	)
}

// Index adds or replaces a document.
func (a *Adapter) Index(ctx context.Context, index, id string, doc map[string]any) error {
	_, err := a.client.Index().
		Index(index).
		Id(id).
		BodyJson(doc).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to index %s/%s: %w", index, id, err)
	}
	return nil
}

// Refresh makes recent writes to the given indices visible to search.
func (a *Adapter) Refresh(ctx context.Context, indices ...string) error {
	if _, err := a.client.Refresh(indices...).Do(ctx); err != nil {
		return fmt.Errorf("failed to refresh %v: %w", indices, err)
	}
	return nil
}

// Search runs the boolean query against the target. A union target is sent
// as one multi-index search.
func (a *Adapter) Search(ctx context.Context, target strategy.Target, q *offersearch.Query) (*offersearch.RawResponse, error) {
	size := q.Size
	if size <= 0 {
		size = offersearch.MaxResults
	}

	res, err := a.client.Search(target...).
		Query(buildQuery(q)).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed on %s: %w", target.String(), err)
	}

	resp := &offersearch.RawResponse{
		Total: res.TotalHits(),
		Took:  time.Duration(res.TookInMillis) * time.Millisecond,
	}

	if res.Hits == nil {
		return resp, nil
	}

	resp.Hits = make([]offersearch.RawHit, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		raw := offersearch.RawHit{
			Index:  hit.Index,
			ID:     hit.Id,
			Source: hit.Source,
		}
		if hit.Score != nil {
			raw.Score = *hit.Score
		}
		resp.Hits = append(resp.Hits, raw)
	}

	return resp, nil
}

// buildQuery converts the boolean query into the Elasticsearch DSL.
func buildQuery(q *offersearch.Query) *elastic.BoolQuery {
	bq := elastic.NewBoolQuery()
	for _, c := range q.Must {
		bq = bq.Must(elastic.NewQueryStringQuery(c.Query))
	}
	for _, c := range q.Filter {
		bq = bq.Filter(elastic.NewTermQuery(c.Field, c.Value))
	}
	return bq
}
