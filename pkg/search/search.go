// Package search builds layout-aware queries, runs them against a search
// engine and normalizes the hits.
package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// ProviderType identifies a search engine implementation.
type ProviderType string

const (
	ProviderTypeElasticsearch ProviderType = "elasticsearch"
	ProviderTypeBleve         ProviderType = "bleve"
)

// Engine is the search engine boundary. Index is an idempotent upsert keyed by
// id. Search must treat a multi-index target as one logical read and return
// hits ordered by relevance score, highest first.
type Engine interface {
	Name() string
	Index(ctx context.Context, index, id string, doc map[string]any) error
	Search(ctx context.Context, target strategy.Target, query *Query) (*RawResponse, error)
}

// MatchClause is a free-text clause. Its syntax and analysis are whatever the
// engine's native query string does.
type MatchClause struct {
	Query string
}

// TermClause matches a field value exactly.
type TermClause struct {
	Field string
	Value string
}

// Query is a boolean query: every Must clause is scored, every Filter clause
// restricts without scoring.
type Query struct {
	Must   []MatchClause
	Filter []TermClause
	Size   int
}

// DSL renders the query as an Elasticsearch request body. It is used for
// debug logging and as the reference shape for engine adapters.
func (q *Query) DSL() map[string]any {
	must := make([]any, 0, len(q.Must))
	for _, c := range q.Must {
		must = append(must, map[string]any{
			"query_string": map[string]any{"query": c.Query},
		})
	}

	filter := make([]any, 0, len(q.Filter))
	for _, c := range q.Filter {
		filter = append(filter, map[string]any{
			"term": map[string]any{c.Field: c.Value},
		})
	}

	return map[string]any{
		"size": q.Size,
		"query": map[string]any{
			"bool": map[string]any{
				"must":   must,
				"filter": filter,
			},
		},
	}
}

// RawHit is a single engine hit before normalization.
type RawHit struct {
	Index  string
	ID     string
	Score  float64
	Source json.RawMessage
}

// RawResponse is what an engine returns for a search.
type RawResponse struct {
	Hits  []RawHit
	Total int64
	Took  time.Duration
}
