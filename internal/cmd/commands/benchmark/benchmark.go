package benchmark

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/mitchellh/cli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/cultuurnet/offerbench/internal/cmd/base"
	"github.com/cultuurnet/offerbench/internal/config"
	"github.com/cultuurnet/offerbench/internal/metrics"
	bench "github.com/cultuurnet/offerbench/pkg/benchmark"
	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

type Command struct {
	*base.Command

	// NewSearcher overrides searcher construction in tests.
	NewSearcher func(cfg *config.Config, mode bench.Mode) (search.Searcher, func() error, error)

	// Fs is where reports are written. Defaults to the OS filesystem.
	Fs afero.Fs

	flagIterations int
	flagFilter     string
	flagMode       string
	flagOutput     string
	flagFormat     string
}

func (c *Command) Synopsis() string {
	return "Benchmark single vs multi index search"
}

func (c *Command) Help() string {
	return `Usage: offerbench benchmark [options]

  Runs the given number of searches for random cultural terms under the
  single layout, then the multi layout, and prints the total and average
  latency of each. The first search of every layout is a warm-up and is not
  measured.

  In "external" mode every search starts a new "offerbench search" process,
  so the numbers include process start-up. "in-process" mode measures the
  search call alone.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("benchmark", flag.ContinueOnError))
	c.AddConfigFlag(f)

	f.IntVar(
		&c.flagIterations, "iterations", bench.DefaultIterations,
		"Number of searches per layout",
	)
	f.StringVar(
		&c.flagFilter, "filter", "",
		"Filter on type: event or place",
	)
	f.StringVar(
		&c.flagMode, "mode", string(bench.ModeInProcess),
		"How searches are issued: in-process or external",
	)
	f.StringVar(
		&c.flagOutput, "output", "",
		"Write a report to this file",
	)
	f.StringVar(
		&c.flagFormat, "format", "",
		"Report format: json or yaml (default from the -output extension)",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli.RunResultHelp
		}
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if f.NArg() > 0 {
		c.UI.Error("benchmark takes no arguments")
		return 1
	}

	if c.flagIterations < 2 {
		c.UI.Error(fmt.Sprintf("%v, got %d", bench.ErrTooFewIterations, c.flagIterations))
		return 1
	}

	var filter *offer.Type
	if c.flagFilter != "" {
		t, err := offer.ParseType(c.flagFilter)
		if err != nil {
			c.UI.Error(`Invalid filter. Use "event" or "place".`)
			return 1
		}
		filter = &t
	}

	mode, err := bench.ParseMode(c.flagMode)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	var format bench.Format
	if c.flagOutput != "" {
		format = bench.FormatFromPath(c.flagOutput)
		if c.flagFormat != "" {
			if format, err = bench.ParseFormat(c.flagFormat); err != nil {
				c.UI.Error(err.Error())
				return 1
			}
		}
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
		return 1
	}

	ctx, cancel := c.Context()
	defer cancel()

	newSearcher := c.NewSearcher
	if newSearcher == nil {
		newSearcher = func(cfg *config.Config, mode bench.Mode) (search.Searcher, func() error, error) {
			noop := func() error { return nil }
			if mode == bench.ModeExternal {
				var flags []string
				if path := c.ConfigPath(); path != "" {
					flags = append(flags, "-config", path)
				}
				s, err := bench.NewExecSearcher(bench.ExecConfig{
					Flags:  flags,
					Logger: c.Log,
				})
				if err != nil {
					return nil, noop, err
				}
				return s, noop, nil
			}

			executor, closeFn, err := base.Executor(ctx, cfg, c.Log)
			if err != nil {
				return nil, closeFn, err
			}
			return executor, closeFn, nil
		}
	}

	searcher, closeFn, err := newSearcher(cfg, mode)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing search: %v", err))
		return 1
	}
	defer func() {
		if err := closeFn(); err != nil {
			c.Log.Warn("error closing search engine", "error", err)
		}
	}()

	var observer bench.Observer
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		observer = metrics.New(reg)
		metrics.Serve(ctx, cfg.Metrics.Addr, reg, c.Log)
	}

	harness, err := bench.NewHarness(bench.Config{
		Searcher: searcher,
		Mode:     mode,
		Logger:   c.Log,
		Observer: observer,
		OnStart: func(layout strategy.Layout, iterations int) {
			c.UI.Info(fmt.Sprintf("Benchmarking strategy: %s (%d iterations)", layout, iterations))
		},
		OnFinish: func(run *bench.Run) {
			c.UI.Output(run.Summary())
			if run.Failures > 0 {
				c.UI.Warn(fmt.Sprintf("%d of %d measured searches failed", run.Failures, len(run.Samples)))
			}
		},
	})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error creating benchmark: %v", err))
		return 1
	}

	if filter != nil {
		c.UI.Info(fmt.Sprintf("Applying filter: %s", filter))
	}

	runs, err := harness.RunAll(ctx, c.flagIterations, filter)
	if err != nil {
		c.UI.Error(fmt.Sprintf("Benchmark failed: %v", err))
		return 1
	}

	if c.flagOutput != "" {
		w := bench.NewReportWriter(c.Fs)
		if err := w.Write(c.flagOutput, format, bench.NewReport(time.Now(), runs)); err != nil {
			c.UI.Error(err.Error())
			return 1
		}
		c.UI.Info(fmt.Sprintf("Report written to %s", c.flagOutput))
	}

	return 0
}
