// Package importer copies offers from a source into the search engine under
// a chosen index layout.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/source"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// PageSize is the number of member references requested per listing page.
const PageSize = 2000

// Refresher is implemented by engines that buffer writes until a refresh.
type Refresher interface {
	Refresh(ctx context.Context, indices ...string) error
}

// Recorder receives per-document outcomes. The metrics package implements it.
type Recorder interface {
	DocumentIndexed(layout strategy.Layout, t offer.Type)
	DocumentFailed(layout strategy.Layout, t offer.Type, stage string)
}

// Config holds the dependencies of an Importer.
type Config struct {
	Source   source.Source
	Engine   search.Engine
	Strategy *strategy.Strategy
	Logger   hclog.Logger

	// PageSize overrides the listing page size. Leave zero outside of tests.
	PageSize int

	// Pages is the number of consecutive listing pages read per type.
	// Zero means one.
	Pages int

	// OnProgress is called after every member reference is handled.
	OnProgress func(t offer.Type, done, total int)

	Recorder Recorder
}

// Importer runs the fetch, transform and write pipeline. It is strictly
// sequential: every network round trip completes before the next starts.
type Importer struct {
	source     source.Source
	engine     search.Engine
	strategy   *strategy.Strategy
	logger     hclog.Logger
	pageSize   int
	pages      int
	onProgress func(t offer.Type, done, total int)
	recorder   Recorder
}

// Report summarizes an import of one offer type.
type Report struct {
	RunID      string
	Layout     strategy.Layout
	Type       offer.Type
	Index      string
	Offsets    []int
	References int
	Indexed    int

	// FetchFailures and WriteFailures are documents that were skipped.
	FetchFailures int
	WriteFailures int

	// Errors collects every per-document failure.
	Errors *multierror.Error

	Duration time.Duration
}

// Skipped returns the number of documents that were not written.
func (r *Report) Skipped() int {
	return r.FetchFailures + r.WriteFailures
}

// New creates a new Importer.
func New(cfg Config) (*Importer, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("search engine is required")
	}
	if cfg.Strategy == nil {
		cfg.Strategy = strategy.New(strategy.DefaultIndexNames())
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = PageSize
	}
	if cfg.Pages <= 0 {
		cfg.Pages = 1
	}

	return &Importer{
		source:     cfg.Source,
		engine:     cfg.Engine,
		strategy:   cfg.Strategy,
		logger:     cfg.Logger.Named("importer"),
		pageSize:   cfg.PageSize,
		pages:      cfg.Pages,
		onProgress: cfg.OnProgress,
		recorder:   cfg.Recorder,
	}, nil
}

// Import reads listing pages of type t starting at startPage and writes every
// document to the index the layout resolves. A listing failure aborts the
// import of t and is returned together with the partial report; document
// failures are logged, counted and skipped.
func (i *Importer) Import(ctx context.Context, layout strategy.Layout, t offer.Type, startPage int) (*Report, error) {
	if startPage < 0 {
		return nil, fmt.Errorf("start page must not be negative, got %d", startPage)
	}

	index, transform, err := i.strategy.ResolveWrite(layout, t)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:  uuid.NewString(),
		Layout: layout,
		Type:   t,
		Index:  index,
	}
	startTime := time.Now()
	defer func() { report.Duration = time.Since(startTime) }()

	logger := i.logger.With("run_id", report.RunID, "layout", layout.String(), "type", t.String(), "index", index)
	logger.Info("starting import", "start_page", startPage, "pages", i.pages, "page_size", i.pageSize)

	for page := startPage; page < startPage+i.pages; page++ {
		offset := page * i.pageSize
		report.Offsets = append(report.Offsets, offset)

		refs, err := i.source.FetchPage(ctx, t, offset, i.pageSize)
		if err != nil {
			logger.Error("failed to load listing page", "offset", offset, "error", err)
			return report, fmt.Errorf("error fetching %s listing at offset %d: %w", t, offset, err)
		}
		report.References += len(refs)

		for n, ref := range refs {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			i.importOne(ctx, logger, report, layout, t, index, transform, ref)

			if i.onProgress != nil {
				i.onProgress(t, n+1, len(refs))
			}
		}

		if len(refs) < i.pageSize {
			break
		}
	}

	if r, ok := i.engine.(Refresher); ok && report.Indexed > 0 {
		if err := r.Refresh(ctx, index); err != nil {
			logger.Warn("failed to refresh index", "error", err)
		}
	}

	logger.Info("import finished",
		"references", report.References,
		"indexed", report.Indexed,
		"fetch_failures", report.FetchFailures,
		"write_failures", report.WriteFailures,
	)

	return report, nil
}

// ImportAll imports events, then places. A failure of one type does not stop
// the other; all errors are returned together.
func (i *Importer) ImportAll(ctx context.Context, layout strategy.Layout, startPage int) ([]*Report, error) {
	var (
		reports []*Report
		result  *multierror.Error
	)

	for _, t := range offer.Types {
		report, err := i.Import(ctx, layout, t, startPage)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s import: %w", t, err))
			if ctx.Err() != nil {
				break
			}
		}
	}

	return reports, result.ErrorOrNil()
}

func (i *Importer) importOne(
	ctx context.Context,
	logger hclog.Logger,
	report *Report,
	layout strategy.Layout,
	t offer.Type,
	index string,
	transform strategy.Transform,
	ref string,
) {
	doc, err := i.source.FetchOne(ctx, ref)
	if err != nil {
		logger.Error("error fetching document", "ref", ref, "error", err)
		report.FetchFailures++
		report.Errors = multierror.Append(report.Errors, err)
		i.recordFailure(layout, t, "fetch")
		return
	}

	o, err := offer.FromDocument(doc)
	if err != nil {
		logger.Error("error decoding document", "ref", ref, "error", err)
		report.FetchFailures++
		report.Errors = multierror.Append(report.Errors, fmt.Errorf("%w: %s: %w", source.ErrFetchFailed, ref, err))
		i.recordFailure(layout, t, "decode")
		return
	}

	if err := i.engine.Index(ctx, index, o.ID, transform(doc)); err != nil {
		logger.Error("search engine error", "id", o.ID, "error", err)
		report.WriteFailures++
		report.Errors = multierror.Append(report.Errors, &search.Error{
			Op:  "Index",
			Err: fmt.Errorf("%w: %w", search.ErrIndexingFailed, err),
			Msg: index + "/" + o.ID,
		})
		i.recordFailure(layout, t, "write")
		return
	}

	report.Indexed++
	if i.recorder != nil {
		i.recorder.DocumentIndexed(layout, t)
	}
}

func (i *Importer) recordFailure(layout strategy.Layout, t offer.Type, stage string) {
	if i.recorder != nil {
		i.recorder.DocumentFailed(layout, t, stage)
	}
}
