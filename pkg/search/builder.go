package search

import (
	"fmt"
	"strings"

	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// MaxResults is the number of hits requested per query.
const MaxResults = 10000

// Builder turns a free-text query into a target and a boolean query for a
// layout.
type Builder struct {
	strategy *strategy.Strategy
	size     int
}

// NewBuilder creates a Builder that resolves indices with s.
func NewBuilder(s *strategy.Strategy) *Builder {
	return &Builder{strategy: s, size: MaxResults}
}

// Build resolves the read target and builds the query. A type filter becomes
// a term clause only under the Single layout; under Multi the target already
// holds only that type.
func (b *Builder) Build(layout strategy.Layout, text string, filter *offer.Type) (strategy.Target, *Query, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, &Error{Op: "Build", Err: ErrInvalidQuery, Msg: "query text is empty"}
	}

	target, err := b.strategy.ResolveRead(layout, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("error resolving read target: %w", err)
	}

	q := &Query{
		Must:   []MatchClause{{Query: text}},
		Filter: []TermClause{},
		Size:   b.size,
	}

	if filter != nil && layout == strategy.Single {
		q.Filter = append(q.Filter, TermClause{
			Field: strategy.TypeField,
			Value: string(*filter),
		})
	}

	return target, q, nil
}
