package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/search/adapters/mock"
	"github.com/cultuurnet/offerbench/pkg/source"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

type pageCall struct {
	Type  offer.Type
	Start int
	Limit int
}

// fakeSource serves listing pages built from a fixed number of documents per
// type.
type fakeSource struct {
	total     map[offer.Type]int
	pageErr   map[offer.Type]error
	failRefs  map[string]bool
	bodies    map[string]map[string]any
	pageCalls []pageCall
	oneCalls  []string
}

func newFakeSource(events, places int) *fakeSource {
	return &fakeSource{
		total:    map[offer.Type]int{offer.Event: events, offer.Place: places},
		pageErr:  map[offer.Type]error{},
		failRefs: map[string]bool{},
		bodies:   map[string]map[string]any{},
	}
}

func ref(t offer.Type, n int) string {
	return fmt.Sprintf("https://io.uitdatabank.be/%s/%s-%d", t, t, n)
}

func (f *fakeSource) FetchPage(ctx context.Context, t offer.Type, start, limit int) ([]string, error) {
	f.pageCalls = append(f.pageCalls, pageCall{Type: t, Start: start, Limit: limit})
	if err := f.pageErr[t]; err != nil {
		return nil, err
	}

	var refs []string
	for n := start; n < start+limit && n < f.total[t]; n++ {
		refs = append(refs, ref(t, n))
	}
	return refs, nil
}

func (f *fakeSource) FetchOne(ctx context.Context, r string) (map[string]any, error) {
	f.oneCalls = append(f.oneCalls, r)
	if f.failRefs[r] {
		return nil, fmt.Errorf("%w: %s: timeout", source.ErrFetchFailed, r)
	}
	if body, ok := f.bodies[r]; ok {
		return body, nil
	}
	return map[string]any{
		"@id":   r,
		"@type": "Thing",
		"name":  map[string]any{"nl": "Offer " + r},
	}, nil
}

type recorder struct {
	indexed int
	failed  map[string]int
}

func (r *recorder) DocumentIndexed(layout strategy.Layout, t offer.Type) { r.indexed++ }
func (r *recorder) DocumentFailed(layout strategy.Layout, t offer.Type, stage string) {
	if r.failed == nil {
		r.failed = map[string]int{}
	}
	r.failed[stage]++
}

func newImporter(t *testing.T, src source.Source, engine search.Engine, mutate func(*Config)) *Importer {
	t.Helper()

	cfg := Config{
		Source: src,
		Engine: engine,
		Logger: hclog.NewNullLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	imp, err := New(cfg)
	require.NoError(t, err)
	return imp
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{Engine: mock.NewEngine()})
	assert.ErrorContains(t, err, "source is required")

	_, err = New(Config{Source: newFakeSource(0, 0)})
	assert.ErrorContains(t, err, "search engine is required")
}

func TestImport_MultiEventSecondPage(t *testing.T) {
	src := newFakeSource(2003, 0)
	engine := mock.NewEngine()
	imp := newImporter(t, src, engine, nil)

	report, err := imp.Import(context.Background(), strategy.Multi, offer.Event, 1)
	require.NoError(t, err)

	require.Len(t, src.pageCalls, 1)
	assert.Equal(t, pageCall{Type: offer.Event, Start: 2000, Limit: 2000}, src.pageCalls[0])

	assert.Equal(t, 3, report.References)
	assert.Equal(t, 3, report.Indexed)
	assert.Equal(t, "events", report.Index)
	assert.Equal(t, []int{2000}, report.Offsets)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, engine.IndexCalls, 3)
	for n, call := range engine.IndexCalls {
		assert.Equal(t, "events", call.Index)
		assert.Equal(t, fmt.Sprintf("event-%d", 2000+n), call.ID)
		assert.NotContains(t, call.Doc, "type")
		assert.Equal(t, ref(offer.Event, 2000+n), call.Doc["@id"])
		assert.Equal(t, "Thing", call.Doc["@type"])
	}
}

func TestImport_SingleInjectsType(t *testing.T) {
	src := newFakeSource(0, 2)
	engine := mock.NewEngine()
	imp := newImporter(t, src, engine, nil)

	report, err := imp.Import(context.Background(), strategy.Single, offer.Place, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, []int{0}, report.Offsets)

	for _, call := range engine.IndexCalls {
		assert.Equal(t, "offers", call.Index)
		assert.Equal(t, "place", call.Doc["type"])
	}
}

func TestImport_IndexesNameAsFetched(t *testing.T) {
	cases := []struct {
		name   string
		layout strategy.Layout
		index  string
		raw    any
	}{
		{"null translation multi", strategy.Multi, "events", map[string]any{"nl": "x", "fr": nil}},
		{"null translation single", strategy.Single, "offers", map[string]any{"nl": "x", "fr": nil}},
		{"plain string", strategy.Multi, "events", "plain"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := newFakeSource(1, 0)
			src.bodies[ref(offer.Event, 0)] = map[string]any{
				"@id":  ref(offer.Event, 0),
				"name": tc.raw,
			}
			engine := mock.NewEngine()
			imp := newImporter(t, src, engine, nil)

			report, err := imp.Import(context.Background(), tc.layout, offer.Event, 0)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Indexed)
			assert.Zero(t, report.FetchFailures)

			doc, ok := engine.Get(tc.index, "event-0")
			require.True(t, ok)
			assert.Equal(t, tc.raw, doc["name"])
		})
	}
}

func TestImport_ReimportOverwrites(t *testing.T) {
	src := newFakeSource(5, 0)
	engine := mock.NewEngine()
	imp := newImporter(t, src, engine, nil)

	_, err := imp.Import(context.Background(), strategy.Multi, offer.Event, 0)
	require.NoError(t, err)
	_, err = imp.Import(context.Background(), strategy.Multi, offer.Event, 0)
	require.NoError(t, err)

	assert.Len(t, engine.IndexCalls, 10)
	assert.Equal(t, 5, engine.Count("events"))
}

func TestImport_OffsetsIncreaseByPageSize(t *testing.T) {
	src := newFakeSource(25, 0)
	engine := mock.NewEngine()
	imp := newImporter(t, src, engine, func(cfg *Config) {
		cfg.PageSize = 10
		cfg.Pages = 5
	})

	report, err := imp.Import(context.Background(), strategy.Multi, offer.Event, 0)
	require.NoError(t, err)

	// The third page is short, so the run stops there.
	assert.Equal(t, []int{0, 10, 20}, report.Offsets)
	seen := map[int]bool{}
	for n, call := range src.pageCalls {
		assert.False(t, seen[call.Start], "offset %d repeated", call.Start)
		seen[call.Start] = true
		if n > 0 {
			assert.Equal(t, src.pageCalls[n-1].Start+10, call.Start)
		}
	}
	assert.Equal(t, 25, report.Indexed)
}

func TestImport_ListingFailureAborts(t *testing.T) {
	src := newFakeSource(10, 0)
	src.pageErr[offer.Event] = fmt.Errorf("%w: connection reset", source.ErrFetchFailed)
	engine := mock.NewEngine()
	imp := newImporter(t, src, engine, nil)

	report, err := imp.Import(context.Background(), strategy.Multi, offer.Event, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrFetchFailed)
	require.NotNil(t, report)
	assert.Zero(t, report.References)
	assert.Empty(t, src.oneCalls)
	assert.Empty(t, engine.IndexCalls)
}

func TestImport_DocumentFetchFailureIsSkipped(t *testing.T) {
	src := newFakeSource(4, 0)
	src.failRefs[ref(offer.Event, 1)] = true
	engine := mock.NewEngine()
	rec := &recorder{}
	imp := newImporter(t, src, engine, func(cfg *Config) { cfg.Recorder = rec })

	report, err := imp.Import(context.Background(), strategy.Multi, offer.Event, 0)
	require.NoError(t, err)

	assert.Equal(t, 4, report.References)
	assert.Equal(t, 3, report.Indexed)
	assert.Equal(t, 1, report.FetchFailures)
	assert.Equal(t, 1, report.Skipped())
	require.NotNil(t, report.Errors)
	assert.Len(t, report.Errors.Errors, 1)
	assert.ErrorIs(t, report.Errors.Errors[0], source.ErrFetchFailed)

	assert.Len(t, src.oneCalls, 4)
	assert.Equal(t, 3, rec.indexed)
	assert.Equal(t, 1, rec.failed["fetch"])
}

func TestImport_WriteFailureDoesNotAbort(t *testing.T) {
	src := newFakeSource(3, 0)
	engine := mock.NewEngine().WithIndexError("event-0", errors.New("mapper_parsing_exception"))
	imp := newImporter(t, src, engine, nil)

	report, err := imp.Import(context.Background(), strategy.Single, offer.Event, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 1, report.WriteFailures)
	require.Len(t, report.Errors.Errors, 1)
	assert.ErrorIs(t, report.Errors.Errors[0], search.ErrIndexingFailed)
	assert.Len(t, engine.IndexCalls, 3)
}

func TestImport_ProgressCallback(t *testing.T) {
	src := newFakeSource(3, 0)
	var progress [][2]int
	imp := newImporter(t, src, mock.NewEngine(), func(cfg *Config) {
		cfg.OnProgress = func(_ offer.Type, done, total int) {
			progress = append(progress, [2]int{done, total})
		}
	})

	_, err := imp.Import(context.Background(), strategy.Multi, offer.Event, 0)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
}

func TestImport_InvalidArguments(t *testing.T) {
	src := newFakeSource(1, 1)
	imp := newImporter(t, src, mock.NewEngine(), nil)

	_, err := imp.Import(context.Background(), strategy.Layout(0), offer.Event, 0)
	assert.ErrorIs(t, err, strategy.ErrInvalidLayout)

	_, err = imp.Import(context.Background(), strategy.Multi, offer.Type("organizer"), 0)
	assert.ErrorIs(t, err, offer.ErrInvalidType)

	_, err = imp.Import(context.Background(), strategy.Multi, offer.Event, -1)
	assert.Error(t, err)

	assert.Empty(t, src.pageCalls)
}

func TestImport_Cancelled(t *testing.T) {
	src := newFakeSource(5, 0)
	imp := newImporter(t, src, mock.NewEngine(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := imp.Import(ctx, strategy.Multi, offer.Event, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.oneCalls)
}

func TestImportAll_ContinuesAfterTypeFailure(t *testing.T) {
	src := newFakeSource(2, 2)
	src.pageErr[offer.Event] = fmt.Errorf("%w: 503", source.ErrFetchFailed)
	engine := mock.NewEngine()
	imp := newImporter(t, src, engine, nil)

	reports, err := imp.ImportAll(context.Background(), strategy.Multi, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrFetchFailed)
	assert.Contains(t, err.Error(), "event import")

	require.Len(t, reports, 2)
	assert.Equal(t, offer.Event, reports[0].Type)
	assert.Equal(t, offer.Place, reports[1].Type)
	assert.Equal(t, 2, reports[1].Indexed)
	assert.Equal(t, 2, engine.Count("places"))
}

type refreshingEngine struct {
	*mock.Engine
	refreshed []string
}

func (r *refreshingEngine) Refresh(ctx context.Context, indices ...string) error {
	r.refreshed = append(r.refreshed, indices...)
	return nil
}

func TestImport_RefreshesEngine(t *testing.T) {
	engine := &refreshingEngine{Engine: mock.NewEngine()}
	imp := newImporter(t, newFakeSource(1, 0), engine, nil)

	_, err := imp.Import(context.Background(), strategy.Single, offer.Event, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"offers"}, engine.refreshed)
}
