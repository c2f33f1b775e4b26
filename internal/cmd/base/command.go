// Package base contains the shared plumbing of offerbench subcommands.
package base

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/cultuurnet/offerbench/internal/config"
)

// Command is embedded by every subcommand.
type Command struct {
	UI  cli.Ui
	Log hclog.Logger

	flagConfig string
}

// NewCommand creates a new Command.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		UI:  ui,
		Log: log,
	}
}

// AddConfigFlag registers the -config flag on f.
func (c *Command) AddConfigFlag(f *FlagSet) {
	f.StringVar(
		&c.flagConfig, "config", "",
		"[OFFERBENCH_CONFIG] Path to an HCL configuration file",
	)
}

// LoadConfig loads the configuration named by -config or OFFERBENCH_CONFIG
// and applies its log level.
func (c *Command) LoadConfig() (*config.Config, error) {
	path := c.flagConfig
	if val, ok := os.LookupEnv("OFFERBENCH_CONFIG"); ok && path == "" {
		path = val
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	c.Log.SetLevel(hclog.LevelFromString(strings.ToLower(cfg.LogLevel)))

	return cfg, nil
}

// ConfigPath returns the configuration path given on the command line.
func (c *Command) ConfigPath() string {
	return c.flagConfig
}

// Context returns a context that is cancelled on SIGINT or SIGTERM.
func (c *Command) Context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			c.Log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
