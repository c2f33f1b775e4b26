// Package mock provides a recording search engine for tests.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// IndexCall is a recorded Index call.
type IndexCall struct {
	Index string
	ID    string
	Doc   map[string]any
}

// SearchCall is a recorded Search call.
type SearchCall struct {
	Target strategy.Target
	Query  *search.Query
}

// Engine records every call and answers searches with a canned response.
// Documents written with Index are kept so that Get can inspect them.
type Engine struct {
	mu sync.Mutex

	name        string
	indexErrors map[string]error
	searchErr   error
	response    *search.RawResponse
	delay       time.Duration

	IndexCalls  []IndexCall
	SearchCalls []SearchCall
	docs        map[string]map[string]map[string]any
}

// NewEngine creates a new mock engine.
func NewEngine() *Engine {
	return &Engine{
		name:        "mock",
		indexErrors: make(map[string]error),
		response:    &search.RawResponse{},
		docs:        make(map[string]map[string]map[string]any),
	}
}

// WithIndexError makes Index fail for the document with the given id.
func (e *Engine) WithIndexError(id string, err error) *Engine {
	e.indexErrors[id] = err
	return e
}

// WithSearchError makes every Search fail.
func (e *Engine) WithSearchError(err error) *Engine {
	e.searchErr = err
	return e
}

// WithResponse sets the response returned by Search.
func (e *Engine) WithResponse(resp *search.RawResponse) *Engine {
	e.response = resp
	return e
}

// WithDelay makes Search wait before answering, honoring the context.
func (e *Engine) WithDelay(d time.Duration) *Engine {
	e.delay = d
	return e
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return e.name
}

// Index records the write and stores the document.
func (e *Engine) Index(ctx context.Context, index, id string, doc map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.IndexCalls = append(e.IndexCalls, IndexCall{Index: index, ID: id, Doc: doc})

	if err, ok := e.indexErrors[id]; ok {
		return err
	}

	if e.docs[index] == nil {
		e.docs[index] = make(map[string]map[string]any)
	}
	e.docs[index][id] = doc
	return nil
}

// Search records the call and returns the canned response.
func (e *Engine) Search(ctx context.Context, target strategy.Target, query *search.Query) (*search.RawResponse, error) {
	e.mu.Lock()
	e.SearchCalls = append(e.SearchCalls, SearchCall{Target: target, Query: query})
	delay, searchErr, resp := e.delay, e.searchErr, e.response
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if searchErr != nil {
		return nil, searchErr
	}
	return resp, nil
}

// Get returns a stored document.
func (e *Engine) Get(index, id string) (map[string]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, ok := e.docs[index][id]
	return doc, ok
}

// Count returns the number of documents stored in index.
func (e *Engine) Count(index string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.docs[index])
}

// Hit builds a raw hit with a JSON-encoded body.
func Hit(index, id string, score float64, doc map[string]any) search.RawHit {
	body, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("mock: encoding hit body: %v", err))
	}
	return search.RawHit{Index: index, ID: id, Score: score, Source: body}
}
