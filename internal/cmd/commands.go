package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/cultuurnet/offerbench/internal/cmd/base"
	"github.com/cultuurnet/offerbench/internal/cmd/commands/benchmark"
	"github.com/cultuurnet/offerbench/internal/cmd/commands/importcmd"
	"github.com/cultuurnet/offerbench/internal/cmd/commands/search"
	"github.com/cultuurnet/offerbench/internal/cmd/commands/version"
)

// Commands is the mapping of all available offerbench commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := base.NewCommand(log, ui)

	Commands = map[string]cli.CommandFactory{
		"benchmark": func() (cli.Command, error) {
			return &benchmark.Command{Command: b}, nil
		},
		"import": func() (cli.Command, error) {
			return &importcmd.Command{Command: b}, nil
		},
		"search": func() (cli.Command, error) {
			return &search.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
