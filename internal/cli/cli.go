package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/specialistvlad/femloop/internal/app"
	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/hcl_adapter"
	"golang.org/x/sync/errgroup"
)

// EnvPrefix prefixes the environment variables that back every flag, e.g.
// FEMLOOP_LOG_LEVEL for --log-level.
const EnvPrefix = "FEMLOOP"

// Exit codes.
const (
	ExitFailure = 1
	ExitUsage   = 2
	ExitConfig  = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.Code
	case config.IsConfigurationError(err):
		return ExitConfig
	default:
		return ExitFailure
	}
}

// runner carries what every subcommand needs to build an App.
type runner struct {
	outW    io.Writer
	errW    io.Writer
	v       *viper.Viper
	appOpts []app.Option
}

// NewRootCommand builds the femloop command tree. Results go to outW, logs
// to errW. appOpts are passed to every App the commands build.
func NewRootCommand(outW, errW io.Writer, appOpts ...app.Option) *cobra.Command {
	r := &runner{outW: outW, errW: errW, v: viper.New(), appOpts: appOpts}

	root := &cobra.Command{
		Use:   "femloop",
		Short: "Drive a long-lived finite-element solver through file handshakes",
		Long: `femloop starts an APDL-scripted solver in batch mode, hands it input
parameters, runs the model and collects the outputs. On top of single solves
it evaluates finite-difference gradients of every output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)

	pf := root.PersistentFlags()
	pf.StringSliceP("config", "c", nil, "Session .hcl file or folder, repeatable; later files override earlier ones.")
	pf.String("log-level", "info", "Logging level: debug, info, warn or error.")
	pf.String("log-format", "text", "Log output format: text or json.")
	pf.String("executable", "", "Solver executable; overrides the session file and discovery.")
	pf.String("run-dir", "", "Run directory; overrides the session file.")
	pf.Int("status-port", 0, "Port for the status HTTP server. 0 keeps the session file setting.")
	pf.String("journal", "", "Sqlite journal path; overrides the session file.")
	pf.String("progress-url", "", "socket.io endpoint for progress events; overrides the session file.")
	pf.Bool("keep", false, "Leave the solver running after the command for the next invocation.")

	r.v.SetEnvPrefix(EnvPrefix)
	r.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	r.v.AutomaticEnv()
	if err := r.v.BindPFlags(pf); err != nil {
		panic(fmt.Errorf("binding persistent flags: %w", err))
	}

	root.AddCommand(
		r.solveCommand(),
		r.gradCommand(),
		r.stopCommand(),
		r.statusCommand(),
	)
	return root
}

// appConfig reads the layered flag and environment settings.
func (r *runner) appConfig() (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		ConfigPaths: r.v.GetStringSlice("config"),
		LogLevel:    strings.ToLower(r.v.GetString("log-level")),
		LogFormat:   strings.ToLower(r.v.GetString("log-format")),
		Executable:  r.v.GetString("executable"),
		RunDir:      r.v.GetString("run-dir"),
		StatusPort:  r.v.GetInt("status-port"),
		JournalPath: r.v.GetString("journal"),
		ProgressURL: r.v.GetString("progress-url"),
	})
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	return cfg, nil
}

// withApp builds the App, runs job beside the status server and closes the
// App afterwards, stopping the solver unless leaveRunning is set. The server
// stops when job returns; a failing server cancels job. A panic in either
// goroutine becomes an error, so the App is still closed.
func (r *runner) withApp(cmd *cobra.Command, leaveRunning bool, job func(ctx context.Context, a *app.App) error) error {
	cfg, err := r.appConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, r.errW, cfg, hcl_adapter.NewLoader(), r.appOpts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(recovered(func() error {
		return a.ServeStatus(serverCtx)
	}))
	g.Go(recovered(func() error {
		defer stopServer()
		return job(a.Context(gctx), a)
	}))
	jobErr := g.Wait()

	closeErr := a.Close(context.WithoutCancel(ctx), !leaveRunning)
	return errors.Join(jobErr, closeErr)
}

// recovered turns a panic in fn into its error.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}
