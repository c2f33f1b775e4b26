package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// DefaultTimeout bounds a single engine search.
const DefaultTimeout = 10 * time.Second

// Request is a user search.
type Request struct {
	Text   string
	Filter *offer.Type
	Layout strategy.Layout
}

// Hit is a normalized search hit.
type Hit struct {
	Score  float64
	ID     string
	Index  string
	Source *offer.Offer
}

// Result is an ordered list of hits. An empty result is not an error.
type Result struct {
	Target strategy.Target
	Hits   []Hit
	Total  int64
	Took   time.Duration
}

// Empty reports whether the search matched nothing.
func (r *Result) Empty() bool {
	return len(r.Hits) == 0
}

// Searcher runs a search for a layout. Both the executor and the benchmark's
// external process mode implement it.
type Searcher interface {
	Search(ctx context.Context, req Request) (*Result, error)
}

// ExecutorConfig holds the dependencies of an Executor.
type ExecutorConfig struct {
	Engine   Engine
	Strategy *strategy.Strategy
	Timeout  time.Duration
	Logger   hclog.Logger
}

// Executor builds queries, sends them to the engine and normalizes responses.
type Executor struct {
	engine   Engine
	strategy *strategy.Strategy
	builder  *Builder
	timeout  time.Duration
	logger   hclog.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("search engine is required")
	}
	if cfg.Strategy == nil {
		cfg.Strategy = strategy.New(strategy.DefaultIndexNames())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &Executor{
		engine:   cfg.Engine,
		strategy: cfg.Strategy,
		builder:  NewBuilder(cfg.Strategy),
		timeout:  cfg.Timeout,
		logger:   cfg.Logger.Named("search"),
	}, nil
}

// Search implements Searcher.
func (e *Executor) Search(ctx context.Context, req Request) (*Result, error) {
	return e.Execute(ctx, req)
}

// Execute runs req against the engine.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	target, q, err := e.builder.Build(req.Layout, req.Text, req.Filter)
	if err != nil {
		return nil, err
	}

	if e.logger.IsTrace() {
		if body, err := json.Marshal(q.DSL()); err == nil {
			e.logger.Trace("search request", "target", target.String(), "body", string(body))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.engine.Search(ctx, target, q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", e.timeout, err)
		}
		return nil, &Error{
			Op:  "Search",
			Err: fmt.Errorf("%w: %w", ErrQueryFailed, err),
			Msg: target.String(),
		}
	}

	result := &Result{
		Target: target,
		Hits:   make([]Hit, 0, len(raw.Hits)),
		Total:  raw.Total,
		Took:   raw.Took,
	}

	for _, h := range raw.Hits {
		result.Hits = append(result.Hits, Hit{
			Score:  h.Score,
			ID:     h.ID,
			Index:  h.Index,
			Source: e.decodeSource(h),
		})
	}

	e.logger.Debug("search completed",
		"layout", req.Layout.String(),
		"target", target.String(),
		"hits", len(result.Hits),
		"took", result.Took,
	)

	return result, nil
}

// decodeSource turns a hit body into an Offer. Bodies that do not decode are
// kept as opaque fields so a single odd document does not fail the search.
func (e *Executor) decodeSource(h RawHit) *offer.Offer {
	var doc map[string]any
	if len(h.Source) > 0 {
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			e.logger.Warn("hit source is not a JSON object", "index", h.Index, "id", h.ID, "error", err)
		}
	}

	o, err := offer.FromDocument(doc)
	if err != nil {
		o = &offer.Offer{Extra: doc}
	}
	o.ID = h.ID

	if o.Type == "" {
		if t, ok := e.strategy.TypeOfIndex(h.Index); ok {
			o.Type = t
		}
	}

	return o
}
