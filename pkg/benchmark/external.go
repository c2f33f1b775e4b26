package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/cultuurnet/offerbench/pkg/search"
)

// Runner runs a command to completion and returns its standard error.
type Runner func(ctx context.Context, name string, args ...string) (stderr []byte, err error)

// ExecConfig configures an ExecSearcher.
type ExecConfig struct {
	// Binary is the executable that provides the search subcommand. Defaults
	// to the running executable.
	Binary string

	// Flags are passed to the search subcommand ahead of its arguments,
	// e.g. a -config flag.
	Flags []string

	Runner Runner
	Logger hclog.Logger
}

// ExecSearcher searches by running
// "<binary> search [flags] -- <layout> <query> [type]"
// as a child process. Its output is discarded; only the exit status counts.
type ExecSearcher struct {
	binary string
	flags  []string
	run    Runner
	logger hclog.Logger
}

var _ search.Searcher = (*ExecSearcher)(nil)

// NewExecSearcher creates a new ExecSearcher.
func NewExecSearcher(cfg ExecConfig) (*ExecSearcher, error) {
	if cfg.Binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("error locating own executable: %w", err)
		}
		cfg.Binary = exe
	}
	if cfg.Runner == nil {
		cfg.Runner = runCommand
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &ExecSearcher{
		binary: cfg.Binary,
		flags:  cfg.Flags,
		run:    cfg.Runner,
		logger: cfg.Logger.Named("exec"),
	}, nil
}

// CommandArgs returns the arguments passed to the binary for req.
func (s *ExecSearcher) CommandArgs(req search.Request) []string {
	args := make([]string, 0, len(s.flags)+5)
	args = append(args, "search")
	args = append(args, s.flags...)
	args = append(args, "--", req.Layout.String(), req.Text)
	if req.Filter != nil {
		args = append(args, req.Filter.String())
	}
	return args
}

// Search runs one search process. The returned result carries no hits.
func (s *ExecSearcher) Search(ctx context.Context, req search.Request) (*search.Result, error) {
	args := s.CommandArgs(req)
	s.logger.Trace("running search process", "binary", s.binary, "args", args)

	stderr, err := s.run(ctx, s.binary, args...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		return nil, &search.Error{
			Op:  "Search",
			Err: fmt.Errorf("%w: %w", search.ErrQueryFailed, err),
			Msg: msg,
		}
	}

	return &search.Result{}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.Bytes(), err
}
