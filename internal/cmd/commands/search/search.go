package search

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/cultuurnet/offerbench/internal/cmd/base"
	"github.com/cultuurnet/offerbench/internal/config"
	"github.com/cultuurnet/offerbench/pkg/offer"
	offersearch "github.com/cultuurnet/offerbench/pkg/search"
	"github.com/cultuurnet/offerbench/pkg/strategy"
)

type Command struct {
	*base.Command

	// NewSearcher overrides searcher construction in tests.
	NewSearcher func(cfg *config.Config) (offersearch.Searcher, func() error, error)
}

func (c *Command) Synopsis() string {
	return "Search offers using a single or multi index layout"
}

func (c *Command) Help() string {
	return `Usage: offerbench search [options] <single|multi> <query> [event|place]

  Runs a query_string search against the offer indexes and prints every
  hit as "- name (id) [index]".` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("search", flag.ContinueOnError))
	c.AddConfigFlag(f)
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
	if len(args) < 2 || len(args) > 3 {
		c.UI.Error("expected <single|multi> <query> [event|place]")
		return 1
	}

	layout, err := strategy.ParseLayout(args[0])
	if err != nil {
		c.UI.Error(`Invalid strategy. Use "single" or "multi".`)
		return 1
	}

	text := strings.TrimSpace(args[1])
	if text == "" {
		c.UI.Error("query must not be empty")
		return 1
	}

	var filter *offer.Type
	if len(args) == 3 {
		t, err := offer.ParseType(args[2])
		if err != nil {
			c.UI.Error(`Invalid type. Use "event" or "place".`)
			return 1
		}
		filter = &t
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
		return 1
	}

	// Searches do not wait for the engine; an unreachable engine fails the query.
	cfg.Engine.ReadyTimeout = "0s"

	ctx, cancel := c.Context()
	defer cancel()

	newSearcher := c.NewSearcher
	if newSearcher == nil {
		newSearcher = func(cfg *config.Config) (offersearch.Searcher, func() error, error) {
			executor, closeFn, err := base.Executor(ctx, cfg, c.Log)
			if err != nil {
				return nil, closeFn, err
			}
			return executor, closeFn, nil
		}
	}

	searcher, closeFn, err := newSearcher(cfg)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing search: %v", err))
		return 1
	}
	defer func() {
		if err := closeFn(); err != nil {
			c.Log.Warn("error closing search engine", "error", err)
		}
	}()

	c.UI.Info(fmt.Sprintf("Searching with strategy: %s", layout))
	c.UI.Info(fmt.Sprintf("Query: %s", text))
	if filter != nil {
		c.UI.Info(fmt.Sprintf("Filtering on type: %s", filter))
	}

	result, err := searcher.Search(ctx, offersearch.Request{
		Text:   text,
		Filter: filter,
		Layout: layout,
	})
	if err != nil {
		c.UI.Error(fmt.Sprintf("Search failed: %v", err))
		c.Log.Error("search failed", "error", err)
		return 1
	}

	if result.Empty() {
		c.UI.Output("No results found.")
		return 0
	}

	c.UI.Output(fmt.Sprintf("%d results found.", len(result.Hits)))
	for _, hit := range result.Hits {
		name := "[no title]"
		if hit.Source != nil {
			name = hit.Source.DisplayName()
		}
		c.UI.Output(fmt.Sprintf("- %s (%s) [%s]", name, hit.ID, hit.Index))
	}

	return 0
}
