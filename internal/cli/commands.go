package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/specialistvlad/femloop/internal/app"
	"github.com/specialistvlad/femloop/internal/params"
)

// inputFlags are shared by the commands that solve.
type inputFlags struct {
	paramsFile string
	set        []string
	out        string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.paramsFile, "params", "p", "", "YAML file of NAME: value input overrides.")
	cmd.Flags().StringArrayVarP(&f.set, "set", "s", nil, "Input override NAME=VALUE, repeatable; applied after --params.")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the result to this YAML file.")
}

// overrides merges --params and --set, in that order.
func (f *inputFlags) overrides() (*params.Set, error) {
	set := params.New()
	if f.paramsFile != "" {
		fromFile, err := ReadParamsFile(f.paramsFile)
		if err != nil {
			return nil, err
		}
		set = fromFile
	}
	for _, kv := range f.set {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &ExitError{Code: ExitUsage, Message: fmt.Sprintf("invalid --set %q, want NAME=VALUE", kv)}
		}
		set.Put(name, params.ParseValue(strings.TrimSpace(value)))
	}
	return set, nil
}

func (r *runner) solveCommand() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run the model once and print its outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := in.overrides()
			if err != nil {
				return err
			}
			return r.withApp(cmd, r.v.GetBool("keep"), func(ctx context.Context, a *app.App) error {
				res, err := a.Solve(ctx, a.Inputs(overrides))
				if err != nil {
					return err
				}
				fmt.Fprintln(r.outW, RenderSolve(res))
				if in.out != "" {
					return WriteSolveFile(in.out, res)
				}
				return nil
			})
		},
	}
	in.register(cmd)
	return cmd
}

func (r *runner) gradCommand() *cobra.Command {
	var (
		in inputFlags
		ov app.GradientOverrides
	)
	cmd := &cobra.Command{
		Use:   "grad",
		Short: "Evaluate finite-difference derivatives of every output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := in.overrides()
			if err != nil {
				return err
			}
			return r.withApp(cmd, r.v.GetBool("keep"), func(ctx context.Context, a *app.App) error {
				res, err := a.Gradient(ctx, a.Inputs(overrides), ov)
				if err != nil {
					return err
				}
				fmt.Fprintln(r.outW, RenderGradient(res))
				if in.out != "" {
					return WriteGradientFile(in.out, res)
				}
				return nil
			})
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&ov.Method, "method", "m", "", "Difference scheme: forward, backward or central.")
	cmd.Flags().Float64Var(&ov.Step, "step", 0, "Relative step dh; 0 keeps the session file setting.")
	cmd.Flags().StringSliceVar(&ov.OnlyFor, "only-for", nil, "Vary only these inputs.")
	cmd.Flags().StringSliceVar(&ov.NotFor, "not-for", nil, "Never vary these inputs.")
	return cmd
}

func (r *runner) stopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running solver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *app.App) error {
				if err := a.Stop(ctx); err != nil {
					return err
				}
				fmt.Fprintln(r.outW, "solver stopped")
				return nil
			})
		},
	}
}

func (r *runner) statusCommand() *cobra.Command {
	var runs int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the solver runs and the recent journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, true, func(ctx context.Context, a *app.App) error {
				st, err := a.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(r.outW, RenderStatus(st))
				if runs <= 0 {
					return nil
				}
				views, err := a.Recent(ctx, runs)
				if err != nil {
					return err
				}
				fmt.Fprintln(r.outW, RenderRuns(views))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&runs, "runs", "n", 10, "Number of journal entries to list; 0 lists none.")
	return cmd
}
