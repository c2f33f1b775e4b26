// Package benchmark measures search latency of the index layouts against
// each other.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// DefaultIterations is the number of searches per layout when none is given.
const DefaultIterations = 1000

// ErrTooFewIterations is returned when a run would have no measured samples.
var ErrTooFewIterations = errors.New("at least 2 iterations are required")

// Mode describes how a search is issued during a run.
type Mode string

const (
	// ModeInProcess calls the search executor directly.
	ModeInProcess Mode = "in-process"

	// ModeExternal starts a fresh search process per iteration, so every
	// sample includes process start-up and client construction.
	ModeExternal Mode = "external"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeInProcess, ModeExternal:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid benchmark mode %q (supported: %s, %s)", s, ModeInProcess, ModeExternal)
	}
}

// Observer receives every measured search, including the warm-up.
type Observer interface {
	ObserveSearch(layout strategy.Layout, elapsed time.Duration, err error)
}

// Config holds the dependencies of a Harness.
type Config struct {
	Searcher search.Searcher
	Mode     Mode
	Logger   hclog.Logger
	Observer Observer

	// Rand picks the vocabulary words. A time-seeded source is used when nil.
	Rand *rand.Rand

	// Now is the clock used for timing. Defaults to time.Now.
	Now func() time.Time

	// OnStart and OnFinish are called around every layout run.
	OnStart  func(layout strategy.Layout, iterations int)
	OnFinish func(run *Run)
}

// Harness runs timed searches against one searcher.
type Harness struct {
	searcher search.Searcher
	mode     Mode
	logger   hclog.Logger
	observer Observer
	rand     *rand.Rand
	now      func() time.Time
	onStart  func(layout strategy.Layout, iterations int)
	onFinish func(run *Run)
}

// Run is the outcome of benchmarking one layout.
type Run struct {
	ID         string
	Layout     strategy.Layout
	Mode       Mode
	Filter     *offer.Type
	Iterations int

	// Warmup is the elapsed time of the first search, which is excluded from
	// Total and Average.
	Warmup time.Duration

	Samples  []time.Duration
	Total    time.Duration
	Average  time.Duration
	Failures int
}

// Summary renders the totals the way the benchmark command prints them.
func (r *Run) Summary() string {
	return fmt.Sprintf("→ total: %ss, avg: %ss",
		formatSeconds(r.Total, 3), formatSeconds(r.Average, 5))
}

// NewHarness creates a new Harness.
func NewHarness(cfg Config) (*Harness, error) {
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeInProcess
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		cfg.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Harness{
		searcher: cfg.Searcher,
		mode:     cfg.Mode,
		logger:   cfg.Logger.Named("benchmark"),
		observer: cfg.Observer,
		rand:     cfg.Rand,
		now:      cfg.Now,
		onStart:  cfg.OnStart,
		onFinish: cfg.OnFinish,
	}, nil
}

// Run issues iterations searches for random vocabulary words under layout.
// The first search warms up caches and connections and is not measured, so
// the average is taken over iterations-1 samples. A failed search still
// counts as a sample.
func (h *Harness) Run(ctx context.Context, layout strategy.Layout, iterations int, filter *offer.Type) (*Run, error) {
	if iterations < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrTooFewIterations, iterations)
	}
	if _, err := strategy.ParseLayout(layout.String()); err != nil {
		return nil, err
	}
	if filter != nil {
		if _, err := offer.ParseType(string(*filter)); err != nil {
			return nil, err
		}
	}

	run := &Run{
		ID:         uuid.NewString(),
		Layout:     layout,
		Mode:       h.mode,
		Filter:     filter,
		Iterations: iterations,
		Samples:    make([]time.Duration, 0, iterations-1),
	}

	logger := h.logger.With("run_id", run.ID, "layout", layout.String(), "mode", string(h.mode))
	logger.Info("starting benchmark", "iterations", iterations)
	if h.onStart != nil {
		h.onStart(layout, iterations)
	}

	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		word := pick(h.rand)
		start := h.now()
		_, err := h.searcher.Search(ctx, search.Request{
			Text:   word,
			Filter: filter,
			Layout: layout,
		})
		elapsed := h.now().Sub(start)

		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if h.observer != nil {
			h.observer.ObserveSearch(layout, elapsed, err)
		}

		if i == 0 {
			run.Warmup = elapsed
			if err != nil {
				logger.Warn("warm-up search failed", "query", word, "error", err)
			}
			continue
		}

		if err != nil {
			run.Failures++
			logger.Warn("search failed", "iteration", i, "query", word, "error", err)
		}

		run.Samples = append(run.Samples, elapsed)
		run.Total += elapsed
	}

	run.Average = run.Total / time.Duration(len(run.Samples))

	logger.Info("benchmark finished",
		"total", run.Total,
		"average", run.Average,
		"failures", run.Failures,
	)
	if h.onFinish != nil {
		h.onFinish(run)
	}

	return run, nil
}

// RunAll benchmarks every layout in order, single first.
func (h *Harness) RunAll(ctx context.Context, iterations int, filter *offer.Type) ([]*Run, error) {
	runs := make([]*Run, 0, len(strategy.Layouts))
	for _, layout := range strategy.Layouts {
		run, err := h.Run(ctx, layout, iterations, filter)
		if err != nil {
			return runs, fmt.Errorf("error benchmarking %s layout: %w", layout, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// formatSeconds rounds d to the given number of decimals and drops trailing
// zeros.
func formatSeconds(d time.Duration, decimals int) string {
	p := math.Pow(10, float64(decimals))
	s := math.Round(d.Seconds()*p) / p
	return strconv.FormatFloat(s, 'f', -1, 64)
}
