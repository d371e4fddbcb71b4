package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Options wires the CLI to its process environment. Zero fields fall back
// to the real process.
type Options struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Env     map[string]string
	WorkDir string
}

// exitError carries the exit code a failure should produce.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: ExitUsage, err: err} }

func usagef(format string, a ...any) error { return usageError(fmt.Errorf(format, a...)) }

// ExitCode maps an error returned by the command tree to a process exit
// code (0 ok, 1 error, 2 usage).
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

// Run executes the command line and returns the exit code.
func Run(ctx context.Context, args []string, opt Options) int {
	app := newApp(opt)
	defer app.close()

	cmd := NewRootCmd(app)
	cmd.SetArgs(args)
	cmd.SetIn(app.stdin)
	cmd.SetOut(app.stdout)
	cmd.SetErr(app.stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		app.fail(err.Error())
	}
	return ExitCode(err)
}

func withDefaults(opt Options) Options {
	if opt.Stdin == nil {
		opt.Stdin = os.Stdin
	}
	if opt.Stdout == nil {
		opt.Stdout = os.Stdout
	}
	if opt.Stderr == nil {
		opt.Stderr = os.Stderr
	}
	return opt
}
