package version

import (
	"github.com/cultuurnet/offerbench/internal/cmd/base"
	"github.com/cultuurnet/offerbench/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: offerbench version`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.String())
	return 0
}
