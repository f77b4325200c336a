package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/specialistvlad/femloop/internal/execfind"
	"github.com/specialistvlad/femloop/internal/gradient"
	"github.com/specialistvlad/femloop/internal/journal"
	"github.com/specialistvlad/femloop/internal/model"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/progress"
	"github.com/specialistvlad/femloop/internal/solver"
	"github.com/specialistvlad/femloop/internal/supervisor"
)

// Option customizes the App built by New.
type Option func(*options)

type options struct {
	launcher supervisor.Launcher
	environ  []string
}

// WithLauncher replaces the process launcher, mainly for tests.
func WithLauncher(l supervisor.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithEnviron replaces the environment searched for a solver installation.
func WithEnviron(environ []string) Option {
	return func(o *options) { o.environ = environ }
}

// App encapsulates the session's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *config.Model
	session  *solver.Session
	journal  journal.Store
	socket   *progress.Socket
	reporter progress.Reporter
	gradient *gradient.Engine

	serverMu   sync.Mutex
	httpServer *http.Server
	closeOnce  sync.Once
}

// New is the constructor for the application. It loads the configuration
// through loader, applies the overrides in cfg and builds every component.
// The solver itself is not started until the first solve.
func New(ctx context.Context, outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	o := options{environ: os.Environ()}
	for _, opt := range opts {
		opt(&o)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	cfgModel, err := loader.Load(ctx, cfg.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(cfg, cfgModel)
	logger.Debug("Configuration loaded and translated into unified model.")

	if cfgModel.Run.Executable == "" {
		exe, err := execfind.Find(o.environ)
		if err != nil {
			return nil, err
		}
		logger.Info("Solver executable discovered.", "executable", exe)
		cfgModel.Run.Executable = exe
	}

	m, err := model.New(cfgModel.Script.Main, cfgModel.Script.ExtraFiles, cfgModel.Script.Location)
	if err != nil {
		return nil, err
	}

	store, err := openJournal(ctx, cfgModel.Journal)
	if err != nil {
		return nil, err
	}

	var supOpts []supervisor.Option
	if o.launcher != nil {
		supOpts = append(supOpts, supervisor.WithLauncher(o.launcher))
	}
	sup := supervisor.New(cfgModel.Run, supOpts...)
	session := solver.NewSession(sup, m, solver.WithJournal(store))

	a := &App{
		outW:    outW,
		logger:  logger,
		config:  cfgModel,
		session: session,
		journal: store,
	}

	reporters := []progress.Reporter{progress.Log{}}
	if cfgModel.Progress.URL != "" {
		sock, err := progress.DialSocket(ctx, progress.SocketOptions{
			URL:                cfgModel.Progress.URL,
			Namespace:          cfgModel.Progress.Namespace,
			Event:              cfgModel.Progress.Event,
			InsecureSkipVerify: cfgModel.Progress.InsecureSkipVerify,
		})
		if err != nil {
			logger.Warn("Progress endpoint unavailable, continuing without it.", "url", cfgModel.Progress.URL, "error", err)
		} else {
			a.socket = sock
			reporters = append(reporters, sock)
		}
	}
	a.reporter = progress.Multi(reporters...)
	a.gradient = gradient.New(session, gradient.WithReporter(a.reporter))

	logger.Debug("Application assembled.", "session", session.ID(), "model", m.String())
	return a, nil
}

func applyOverrides(cfg *Config, m *config.Model) {
	if cfg.Executable != "" {
		m.Run.Executable = cfg.Executable
	}
	if cfg.RunDir != "" {
		m.Run.RunDir = cfg.RunDir
	}
	if cfg.StatusPort > 0 {
		m.Status.Port = cfg.StatusPort
	}
	if cfg.JournalPath != "" {
		m.Journal.Path = cfg.JournalPath
	}
	if cfg.ProgressURL != "" {
		m.Progress.URL = cfg.ProgressURL
	}
}

func openJournal(ctx context.Context, cfg config.JournalConfig) (journal.Store, error) {
	if cfg.Path == "" {
		return journal.NewMemory(), nil
	}
	store, err := journal.Open(ctx, cfg.Path)
	if err != nil {
		return nil, config.Errorf("journal.path", "%w", err)
	}
	ctxlog.FromContext(ctx).Debug("Journal opened.", "path", cfg.Path)
	return store, nil
}

// Context returns ctx carrying the application's logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Config returns the loaded configuration model.
func (a *App) Config() *config.Model {
	return a.config
}

// Session returns the solve session.
func (a *App) Session() *solver.Session {
	return a.session
}

// Journal returns the run journal.
func (a *App) Journal() journal.Store {
	return a.journal
}

// Inputs returns the configured parameters with overrides applied on top.
// Overridden names keep their configured position; new names are appended.
func (a *App) Inputs(overrides *params.Set) *params.Set {
	in := a.config.Parameters.Clone()
	if overrides != nil {
		overrides.Range(func(name string, v params.Value) bool {
			in.Put(name, v)
			return true
		})
	}
	return in
}

// Solve runs the model once and exports the configured history series.
func (a *App) Solve(ctx context.Context, in *params.Set) (*solver.Result, error) {
	ctx = a.Context(ctx)
	started := time.Now()
	res, err := a.session.Solve(ctx, in, solver.WithHistory(a.config.History...))
	if err != nil {
		return nil, err
	}
	a.reporter.Report(ctx, progress.Event{Operation: "solve", Completed: 1, Total: 1, Elapsed: time.Since(started)})
	return res, nil
}

// GradientOverrides replace the configured gradient settings when set.
type GradientOverrides struct {
	Method  string
	Step    float64
	OnlyFor []string
	NotFor  []string
}

// Gradient evaluates finite-difference derivatives at in.
func (a *App) Gradient(ctx context.Context, in *params.Set, ov GradientOverrides) (*gradient.Result, error) {
	g := a.config.Gradient
	if ov.Method != "" {
		g.Method = ov.Method
	}
	if ov.Step != 0 {
		g.Step = ov.Step
	}
	if len(ov.OnlyFor) > 0 {
		g.OnlyFor = ov.OnlyFor
	}
	if len(ov.NotFor) > 0 {
		g.NotFor = ov.NotFor
	}

	method, err := gradient.ParseMethod(g.Method)
	if err != nil {
		return nil, err
	}
	return a.gradient.Compute(a.Context(ctx), gradient.Request{
		Base:    in,
		Step:    g.Step,
		Method:  method,
		OnlyFor: g.OnlyFor,
		NotFor:  g.NotFor,
	})
}

// Stop kills the solver, whether this process launched it or not.
func (a *App) Stop(ctx context.Context) error {
	return a.session.Close(a.Context(ctx))
}

// Close releases the application's resources. With stopSolver set the
// solver is killed too; otherwise it keeps running for the next invocation.
func (a *App) Close(ctx context.Context, stopSolver bool) error {
	ctx = a.Context(ctx)
	var errs []error
	a.closeOnce.Do(func() {
		if stopSolver {
			errs = append(errs, a.Stop(ctx))
		}
		errs = append(errs, a.closeStatusServer(ctx))
		if a.socket != nil {
			errs = append(errs, a.socket.Close())
		}
		errs = append(errs, a.journal.Close())
		a.logger.Debug("Application closed.", "solver_stopped", stopSolver)
	})
	return errors.Join(errs...)
}
