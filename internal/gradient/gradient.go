// Package gradient computes finite-difference derivatives of every output
// parameter with respect to selected inputs, one solve at a time.
//
// For an input of value x the step is h = dh*x, with x replaced by 1 when it
// is zero so the step never degenerates:
//
//	forward   f'(x) = (f(x+h) - f(x)) / h
//	backward  f'(x) = (f(x) - f(x-h)) / h
//	central   f'(x) = (f(x+h/2) - f(x-h/2)) / h
//
// Forward and backward share one base solve, whose outputs are kept in the
// result. Central needs no base solve but two solves per input.
package gradient

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/progress"
	"github.com/specialistvlad/femloop/internal/solver"
)

// DefaultStep is the relative step used when a request sets none.
const DefaultStep = 0.05

// ErrUnknownMethod is wrapped in the ConfigurationError for an unsupported
// method name.
var ErrUnknownMethod = errors.New("unknown gradient method")

// Method is a finite-difference scheme.
type Method string

const (
	Forward  Method = "forward"
	Backward Method = "backward"
	Central  Method = "central"
)

// ParseMethod validates a method name. The empty name selects Forward.
func ParseMethod(name string) (Method, error) {
	switch m := Method(name); m {
	case "":
		return Forward, nil
	case Forward, Backward, Central:
		return m, nil
	default:
		return "", config.Errorf("gradient.method", "%w %q", ErrUnknownMethod, name)
	}
}

// Solver runs one solve. *solver.Session implements it.
type Solver interface {
	Solve(ctx context.Context, in *params.Set, opts ...solver.SolveOption) (*solver.Result, error)
}

// Key addresses one derivative: d Output / d Input.
type Key struct {
	Output string
	Input  string
}

// Request describes one gradient computation.
type Request struct {
	// Base is the point the gradient is evaluated at.
	Base *params.Set
	// Step is the relative step dh. The zero value selects DefaultStep, the
	// same way the grad command's --step 0 keeps the configured step; the
	// session file rejects an explicit zero. NaN and infinite steps are a
	// ConfigurationError.
	Step   float64
	Method Method
	// OnlyFor restricts the varied inputs when non-empty.
	OnlyFor []string
	// NotFor removes inputs from the varied set.
	NotFor []string
}

// Result holds the derivatives of one computation.
type Result struct {
	Method Method
	Step   float64
	// Base holds the outputs at the base point. Nil for Central.
	Base        *params.Set
	Derivatives map[Key]float64
	// Inputs are the varied names, in base order.
	Inputs []string
	// Outputs are the differentiated names, in solver order.
	Outputs []string
	Solves  int
	Elapsed time.Duration
}

// Get returns d output / d input.
func (r *Result) Get(output, input string) (float64, bool) {
	d, ok := r.Derivatives[Key{Output: params.Fold(output), Input: params.Fold(input)}]
	return d, ok
}

// Option configures an Engine.
type Option func(*Engine)

// WithReporter publishes progress after every varied input.
func WithReporter(r progress.Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// Engine computes gradients through a Solver.
type Engine struct {
	solver   Solver
	reporter progress.Reporter
}

// New returns an Engine solving through s.
func New(s Solver, opts ...Option) *Engine {
	e := &Engine{solver: s, reporter: progress.Discard}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Varied returns the names of base to vary: restricted to onlyFor when it
// is non-empty, minus notFor. Names are compared case-insensitively.
func Varied(base *params.Set, onlyFor, notFor []string) []string {
	only := foldSet(onlyFor)
	not := foldSet(notFor)
	var out []string
	for _, name := range base.Names() {
		if len(only) > 0 && !only[name] {
			continue
		}
		if not[name] {
			continue
		}
		out = append(out, name)
	}
	return out
}

// StepSize returns dh*x, with x taken as 1 when it is zero.
func StepSize(x, dh float64) float64 {
	if x == 0 {
		x = 1
	}
	return dh * x
}

// Compute runs the request. Solves are issued strictly one after another.
func (e *Engine) Compute(ctx context.Context, req Request) (*Result, error) {
	method, err := ParseMethod(string(req.Method))
	if err != nil {
		return nil, err
	}
	if math.IsNaN(req.Step) || math.IsInf(req.Step, 0) {
		return nil, config.Errorf("gradient.step", "step must be a finite number, got %v", req.Step)
	}
	dh := req.Step
	if dh == 0 {
		dh = DefaultStep
	}
	if method == Backward {
		dh = -dh
	}

	logger := ctxlog.FromContext(ctx).With("method", string(method))
	started := time.Now()
	res := &Result{
		Method:      method,
		Step:        req.Step,
		Derivatives: map[Key]float64{},
	}
	if res.Step == 0 {
		res.Step = DefaultStep
	}

	for _, name := range Varied(req.Base, req.OnlyFor, req.NotFor) {
		v, _ := req.Base.Get(name)
		if !v.IsNumeric() {
			logger.Warn("Skipping non-numeric input.", "input", name, "value", v.String())
			continue
		}
		res.Inputs = append(res.Inputs, name)
	}
	logger.Info("Evaluating gradient.", "dh", res.Step, "inputs", res.Inputs)

	var base *params.Set
	if method != Central {
		logger.Info("Solving base point.")
		out, err := e.solve(ctx, req.Base, res)
		if err != nil {
			return nil, err
		}
		base = out
		res.Base = out
	}

	for i, name := range res.Inputs {
		v, _ := req.Base.Get(name)
		x, _ := v.Float64()
		h := StepSize(x, dh)

		logger.Info("Solving for input.", "input", name)
		if method == Central {
			minor, err := e.solve(ctx, shifted(req.Base, name, v, -h/2), res)
			if err != nil {
				return nil, err
			}
			major, err := e.solve(ctx, shifted(req.Base, name, v, h/2), res)
			if err != nil {
				return nil, err
			}
			differentiate(res, name, minor, major, h)
		} else {
			this, err := e.solve(ctx, shifted(req.Base, name, v, h), res)
			if err != nil {
				return nil, err
			}
			differentiate(res, name, base, this, h)
		}

		e.reporter.Report(ctx, progress.Event{
			Operation: "gradient",
			Item:      name,
			Completed: i + 1,
			Total:     len(res.Inputs),
			Elapsed:   time.Since(started),
		})
	}

	res.Elapsed = time.Since(started)
	logger.Info("Gradient evaluated.", "solves", res.Solves, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func (e *Engine) solve(ctx context.Context, in *params.Set, res *Result) (*params.Set, error) {
	r, err := e.solver.Solve(ctx, in)
	if err != nil {
		return nil, err
	}
	res.Solves++
	return r.Outputs, nil
}

// differentiate stores (hi - lo)/h for every output numeric in both sets.
func differentiate(res *Result, input string, lo, hi *params.Set, h float64) {
	hi.Range(func(name string, hv params.Value) bool {
		lv, ok := lo.Get(name)
		if !ok {
			return true
		}
		a, okA := lv.Float64()
		b, okB := hv.Float64()
		if !okA || !okB {
			return true
		}
		if !slices.Contains(res.Outputs, name) {
			res.Outputs = append(res.Outputs, name)
		}
		res.Derivatives[Key{Output: name, Input: input}] = (b - a) / h
		return true
	})
}

func shifted(base *params.Set, name string, v params.Value, d float64) *params.Set {
	in := base.Clone()
	in.Put(name, v.Add(d))
	return in
}

func foldSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[params.Fold(n)] = true
	}
	return out
}
