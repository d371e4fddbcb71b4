// Package cli is the cobra command tree: the interactive TUI when run bare,
// plus scriptable list and auth commands sharing the same controller.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/tadalive/internal/config"
	"github.com/Makepad-fr/tadalive/internal/docstore/jsonstore"
	"github.com/Makepad-fr/tadalive/internal/docstore/sqlitestore"
	"github.com/Makepad-fr/tadalive/internal/identity"
	"github.com/Makepad-fr/tadalive/internal/listview"
	"github.com/Makepad-fr/tadalive/internal/logging"
	"github.com/Makepad-fr/tadalive/internal/tui"
	"github.com/Makepad-fr/tadalive/internal/ui"
)

// SQLiteFileName is the database file inside the data directory.
const SQLiteFileName = "tada.db"

// App holds flag values and the services resolved from them.
type App struct {
	ConfigPath string
	Backend    string
	DataDir    string
	Theme      string
	LogLevel   string
	Color      bool
	NoColor    bool

	stdin   *bufio.Reader
	stdout  io.Writer
	stderr  io.Writer
	env     map[string]string
	workDir string

	cfg     config.Config
	logger  *slog.Logger
	closers []io.Closer
}

// store is a document service that must be closed.
type store interface {
	listview.Collection
	Close() error
}

func newApp(opt Options) *App {
	opt = withDefaults(opt)
	env := opt.Env
	if env == nil {
		env = config.EnvMap()
	}
	return &App{
		stdin:   bufio.NewReader(opt.Stdin),
		stdout:  opt.Stdout,
		stderr:  opt.Stderr,
		env:     env,
		workDir: opt.WorkDir,
		logger:  logging.Discard(),
	}
}

func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todo",
		Short:         "A live to-do list (TUI + CLI)",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          usageArgs(cobra.NoArgs),
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  todo

  # Scriptable commands
  todo auth login ada@example.com
  todo add Buy milk
  todo ls --group
  todo done 1
  todo watch
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTUI(cmd.Context())
		},
	}

	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		// The TUI owns the terminal; its logs go to the log file or nowhere.
		return app.setup(c == c.Root())
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.ConfigPath, "config", "", "Path to a config file (HuJSON)")
	pf.StringVar(&app.Backend, "backend", "", "Storage backend (sqlite|json)")
	pf.StringVar(&app.DataDir, "data-dir", "", "Directory holding the data file")
	pf.StringVar(&app.Theme, "theme", "", "Color theme (classic|neon|mono)")
	pf.BoolVar(&app.Color, "color", false, "Force colors even when output is not a terminal")
	pf.BoolVar(&app.NoColor, "no-color", false, "Disable colors (wins over --color and is implied by NO_COLOR)")
	pf.StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error|off)")

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newDoneCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newAuthCmd(app))

	return cmd
}

func (a *App) setup(interactive bool) error {
	cfg, err := config.Load(config.LoadInput{
		WorkDir:    a.workDir,
		ConfigPath: a.ConfigPath,
		Env:        a.env,
		Overrides: config.Overrides{
			Backend:  a.Backend,
			DataDir:  a.DataDir,
			Theme:    a.Theme,
			LogLevel: a.LogLevel,
		},
	})
	if err != nil {
		if errors.Is(err, config.ErrConfigInvalid) || errors.Is(err, config.ErrConfigFileNotFound) {
			return usageError(err)
		}
		return err
	}
	a.cfg = cfg

	ui.SetTheme(cfg.Theme)
	_, noColorEnv := a.env["NO_COLOR"]
	ui.SetColorForcing(a.Color, a.NoColor || noColorEnv)

	var fallback io.Writer = a.stderr
	if interactive {
		fallback = nil
	}
	logger, closer, err := logging.Open(cfg.LogFile, fallback, cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	a.logger.Debug("config loaded",
		"backend", cfg.Backend, "data_dir", cfg.DataDir,
		"global", cfg.Sources.Global, "project", cfg.Sources.Project, "explicit", cfg.Sources.Explicit)
	return nil
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

// openStore opens the configured backend. It is closed with the app.
func (a *App) openStore(ctx context.Context) (store, error) {
	var (
		s   store
		err error
	)
	switch a.cfg.Backend {
	case config.BackendJSON:
		s, err = jsonstore.Open(filepath.Join(a.cfg.DataDir, jsonstore.DataFileName),
			jsonstore.Options{PollInterval: a.cfg.Poll, Logger: a.logger})
	default:
		s, err = sqlitestore.Open(ctx, filepath.Join(a.cfg.DataDir, SQLiteFileName),
			sqlitestore.Options{PollInterval: a.cfg.Poll, Logger: a.logger})
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Backend, err)
	}
	a.closers = append(a.closers, s)
	return s, nil
}

func (a *App) identity() *identity.Local {
	return identity.NewLocal(a.cfg.AuthDir, identity.WithGetenv(func(k string) string { return a.env[k] }))
}

// ensureAuth returns the active session or a not-signed-in error.
func (a *App) ensureAuth(ctx context.Context, auth *identity.Local) (*identity.TokenInfo, error) {
	ti, err := auth.Current(ctx)
	if err != nil {
		return nil, err
	}
	if ti == nil {
		return nil, fmt.Errorf("%w (run `todo auth login <email>`)", identity.ErrNotSignedIn)
	}
	return ti, nil
}

func (a *App) runTUI(ctx context.Context) error {
	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	return tui.Run(ctx, tui.Deps{
		Docs:       docs,
		Auth:       a.identity(),
		Collection: a.cfg.Collection,
		Logger:     a.logger,
	})
}

func (a *App) ok(msg string)   { ui.OK(a.stdout, msg) }
func (a *App) fail(msg string) { ui.Fail(a.stderr, msg) }

// readLine prompts on stderr and reads one line from stdin.
func (a *App) readLine(prompt string) (string, error) {
	fmt.Fprint(a.stderr, prompt)
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", usagef("expected input for %q", strings.TrimSpace(prompt))
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
