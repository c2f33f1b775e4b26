package importcmd

import (
	"errors"
	"flag"
	"fmt"

	"github.com/mitchellh/cli"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cultuurnet/offerbench/internal/cmd/base"
	"github.com/cultuurnet/offerbench/internal/config"
	"github.com/cultuurnet/offerbench/internal/metrics"
	"github.com/cultuurnet/offerbench/pkg/importer"
	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/source"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

// progressEvery is how often, in documents, progress is printed.
const progressEvery = 100

type Command struct {
	*base.Command

	// NewDeps overrides source and engine construction in tests.
	NewDeps func(cfg *config.Config) (source.Source, search.Engine, func() error, error)

	flagStart int
	flagPages int
	flagType  string
}

func (c *Command) Synopsis() string {
	return "Import events and places from UiTdatabank into the search engine"
}

func (c *Command) Help() string {
	return `Usage: offerbench import [options] <single|multi>

  Reads listing pages of events and places from UiTdatabank, fetches every
  document and writes it to the search engine. With "single" all offers go to
  one index with an injected "type" field; with "multi" events and places get
  their own index.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("import", flag.ContinueOnError))
	c.AddConfigFlag(f)

	f.IntVar(
		&c.flagStart, "start", 0,
		"Listing page to start at; the offset is start x 2000",
	)
	f.IntVar(
		&c.flagPages, "pages", 1,
		"Number of consecutive listing pages to import per type",
	)
	f.StringVar(
		&c.flagType, "type", "",
		"Only import this offer type (event or place)",
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

	args = f.Args()
	if len(args) != 1 {
		c.UI.Error("expected exactly one argument: <single|multi>")
		return 1
	}

	layout, err := strategy.ParseLayout(args[0])
	if err != nil {
		c.UI.Error(`Invalid strategy. Use "single" or "multi".`)
		return 1
	}

	if c.flagStart < 0 {
		c.UI.Error("start must not be negative")
		return 1
	}
	if c.flagPages < 1 {
		c.UI.Error("pages must be at least 1")
		return 1
	}

	types := offer.Types
	if c.flagType != "" {
		t, err := offer.ParseType(c.flagType)
		if err != nil {
			c.UI.Error(`Invalid type. Use "event" or "place".`)
			return 1
		}
		types = []offer.Type{t}
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
		return 1
	}

	ctx, cancel := c.Context()
	defer cancel()

	newDeps := c.NewDeps
	if newDeps == nil {
		newDeps = func(cfg *config.Config) (source.Source, search.Engine, func() error, error) {
			src, err := base.Source(cfg, c.Log)
			if err != nil {
				return nil, nil, func() error { return nil }, err
			}
			engine, closeFn, err := base.SearchEngine(ctx, cfg, c.Log)
			if err != nil {
				return nil, nil, closeFn, err
			}
			return src, engine, closeFn, nil
		}
	}

	src, engine, closeFn, err := newDeps(cfg)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing import: %v", err))
		return 1
	}
	defer func() {
		if err := closeFn(); err != nil {
			c.Log.Warn("error closing search engine", "error", err)
		}
	}()

	var recorder importer.Recorder
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		recorder = metrics.New(reg)
		metrics.Serve(ctx, cfg.Metrics.Addr, reg, c.Log)
	}

	imp, err := importer.New(importer.Config{
		Source:     src,
		Engine:     engine,
		Strategy:   strategy.New(cfg.IndexNames()),
		Logger:     c.Log,
		Pages:      c.flagPages,
		OnProgress: c.progress,
		Recorder:   recorder,
	})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error creating importer: %v", err))
		return 1
	}

	c.UI.Info(fmt.Sprintf("Using strategy: %s", layout))

	var reports []*importer.Report
	if len(types) == 1 {
		c.UI.Info(fmt.Sprintf("Starting import of %ss from UiTdatabank...", types[0]))
		var report *importer.Report
		report, err = imp.Import(ctx, layout, types[0], c.flagStart)
		if report != nil {
			reports = append(reports, report)
		}
	} else {
		c.UI.Info("Starting import of events and places from UiTdatabank...")
		reports, err = imp.ImportAll(ctx, layout, c.flagStart)
	}

	for _, report := range reports {
		c.UI.Output(fmt.Sprintf("Imported %d of %d %ss into %s (%d skipped)",
			report.Indexed, report.References, report.Type, report.Index, report.Skipped()))
	}

	if err != nil {
		c.UI.Error(fmt.Sprintf("Import failed: %v", err))
		return 1
	}
	return 0
}

func (c *Command) progress(t offer.Type, done, total int) {
	if done%progressEvery == 0 || done == total {
		width := len(fmt.Sprint(total))
		c.UI.Info(fmt.Sprintf("  %s %*d/%d", t, width, done, total))
	}
}
