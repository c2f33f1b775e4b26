package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	offersearch "github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// sourceField holds the original JSON body. It is stored but not indexed.
const sourceField = "_source"

// ErrIndexNotFound is returned when a search targets an index that was never
// written to.
var ErrIndexNotFound = errors.New("index not found")

// Adapter implements search.Engine for Bleve (embedded full-text search).
// Each engine index is a separate Bleve index, created on first write.
type Adapter struct {
	mu      sync.Mutex
	path    string
	indexes map[string]bleve.Index
}

// Config contains Bleve configuration.
type Config struct {
	// IndexPath is the directory holding one <name>.bleve directory per index.
	// When empty, indexes are kept in memory.
	IndexPath string
}

// NewAdapter creates a new Bleve search adapter.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if cfg.IndexPath != "" {
		if err := os.MkdirAll(cfg.IndexPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	return &Adapter{
		path:    cfg.IndexPath,
		indexes: make(map[string]bleve.Index),
	}, nil
}

// createOfferMapping creates the index mapping shared by all offer indexes.
// Fields not listed here are mapped dynamically.
func createOfferMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	sourceFieldMapping := bleve.NewTextFieldMapping()
	sourceFieldMapping.Index = false
	sourceFieldMapping.Store = true
	sourceFieldMapping.IncludeInAll = false
	sourceFieldMapping.IncludeTermVectors = false

	offerMapping := bleve.NewDocumentMapping()
	offerMapping.AddFieldMappingsAt(strategy.TypeField, keywordFieldMapping)
	offerMapping.AddFieldMappingsAt(sourceField, sourceFieldMapping)

	indexMapping.AddDocumentMapping("_default", offerMapping)

	return indexMapping
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return string(offersearch.ProviderTypeBleve)
}

// Healthy checks that every open index answers.
func (a *Adapter) Healthy(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name, idx := range a.indexes {
		if _, err := idx.DocCount(); err != nil {
			return fmt.Errorf("index %s unhealthy: %w", name, err)
		}
	}
	return nil
}

// Index adds or replaces a document.
func (a *Adapter) Index(ctx context.Context, index, id string, doc map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx, err := a.open(index, true)
	if err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}

	stored := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored[sourceField] = string(body)

	return idx.Index(id, stored)
}

// Search runs the query against every index in the target. Hits of a union
// are merged by score, highest first.
func (a *Adapter) Search(ctx context.Context, target strategy.Target, q *offersearch.Query) (*offersearch.RawResponse, error) {
	startTime := time.Now()

	bq, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	size := q.Size
	if size <= 0 {
		size = offersearch.MaxResults
	}

	resp := &offersearch.RawResponse{}

	for _, name := range target {
		idx, err := a.open(name, false)
		if err != nil {
			return nil, err
		}

		req := bleve.NewSearchRequestOptions(bq, size, 0, false)
		req.Fields = []string{sourceField}

		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("search failed on %s: %w", name, err)
		}

		resp.Total += int64(res.Total)
		for _, hit := range res.Hits {
			raw := offersearch.RawHit{
				Index: name,
				ID:    hit.ID,
				Score: hit.Score,
			}
			if body, ok := hit.Fields[sourceField].(string); ok {
				raw.Source = json.RawMessage(body)
			}
			resp.Hits = append(resp.Hits, raw)
		}
	}

	if target.IsUnion() {
		sort.SliceStable(resp.Hits, func(i, j int) bool {
			return resp.Hits[i].Score > resp.Hits[j].Score
		})
		if len(resp.Hits) > size {
			resp.Hits = resp.Hits[:size]
		}
	}

	resp.Took = time.Since(startTime)
	return resp, nil
}

// Count returns the number of documents in an index.
func (a *Adapter) Count(index string) (uint64, error) {
	idx, err := a.open(index, false)
	if err != nil {
		return 0, err
	}
	return idx.DocCount()
}

// Close closes all Bleve indexes.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for name, idx := range a.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s index: %w", name, err))
		}
	}
	a.indexes = make(map[string]bleve.Index)

	return errors.Join(errs...)
}

// open returns an open index, opening it from disk or creating it when
// create is set.
func (a *Adapter) open(name string, create bool) (bleve.Index, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if idx, ok := a.indexes[name]; ok {
		return idx, nil
	}

	var (
		idx bleve.Index
		err error
	)

	switch {
	case a.path == "" && create:
		idx, err = bleve.NewMemOnly(createOfferMapping())
	case a.path == "":
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	default:
		indexPath := filepath.Join(a.path, name+".bleve")
		idx, err = bleve.Open(indexPath)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			if !create {
				return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
			}
			idx, err = bleve.New(indexPath, createOfferMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", name, err)
	}

	a.indexes[name] = idx
	return idx, nil
}

// buildQuery converts the boolean query into a Bleve query.
func buildQuery(q *offersearch.Query) (query.Query, error) {
	if len(q.Must) == 0 {
		return nil, &offersearch.Error{Op: "Search", Err: offersearch.ErrInvalidQuery, Msg: "no match clause"}
	}

	clauses := make([]query.Query, 0, len(q.Must)+len(q.Filter))
	for _, c := range q.Must {
		clauses = append(clauses, bleve.NewQueryStringQuery(c.Query))
	}
	for _, c := range q.Filter {
		term := bleve.NewTermQuery(c.Value)
		term.SetField(c.Field)
		clauses = append(clauses, term)
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return bleve.NewConjunctionQuery(clauses...), nil
}
