package hcl_adapter

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// evalContext exposes the process environment as `env.NAME`, so a file can
// point at an installation without hard-coding it.
func evalContext() *hcl.EvalContext {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"env": env}}
}

func (l *Loader) translateSolver(b *SolverBlock, run *config.RunConfiguration) error {
	setString(&run.Executable, b.Executable)
	setString(&run.RunDir, b.RunDir)
	setString(&run.JobName, b.JobName)
	if b.Processors != nil {
		run.Processors = *b.Processors
	}
	if b.ExtraFlags != nil {
		run.ExtraFlags = append([]string(nil), (*b.ExtraFlags)...)
	}
	if b.OverrideLock != nil {
		run.OverrideLock = *b.OverrideLock
	}

	durations := []struct {
		field string
		src   *string
		dst   *time.Duration
	}{
		{"solver.poll_interval", b.PollInterval, &run.PollInterval},
		{"solver.monitor_wait", b.MonitorWait, &run.MonitorWait},
		{"solver.start_timeout", b.StartTimeout, &run.StartTimeout},
		{"solver.start_sleep", b.StartSleep, &run.StartSleep},
		{"solver.kill_interval", b.KillInterval, &run.KillInterval},
		{"solver.done_timeout", b.DoneTimeout, &run.DoneTimeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return config.Errorf(d.field, "invalid duration %q: %w", *d.src, err)
		}
		if v < 0 {
			return config.Errorf(d.field, "duration %q must not be negative", *d.src)
		}
		*d.dst = v
	}
	return nil
}

func (l *Loader) translateModel(b *ModelBlock, script *config.ScriptConfig) {
	setString(&script.Main, b.Main)
	setString(&script.Location, b.Location)
	if b.ExtraFiles != nil {
		script.ExtraFiles = append([]string(nil), (*b.ExtraFiles)...)
	}
}

func (l *Loader) translateGradient(b *GradientBlock, g *config.GradientConfig) error {
	setString(&g.Method, b.Method)
	if b.Step != nil {
		if *b.Step == 0 {
			return config.Errorf("gradient.step", "step must not be zero")
		}
		g.Step = *b.Step
	}
	if b.OnlyFor != nil {
		g.OnlyFor = append([]string(nil), (*b.OnlyFor)...)
	}
	if b.NotFor != nil {
		g.NotFor = append([]string(nil), (*b.NotFor)...)
	}
	return nil
}

func (l *Loader) translateProgress(b *ProgressBlock, p *config.ProgressConfig) {
	p.URL = b.URL
	setString(&p.Namespace, b.Namespace)
	setString(&p.Event, b.Event)
	if b.InsecureSkipVerify != nil {
		p.InsecureSkipVerify = *b.InsecureSkipVerify
	}
}

// translateParameters evaluates every attribute of the block into set, in
// source order.
func (l *Loader) translateParameters(ctx context.Context, b *ParametersBlock, evalCtx *hcl.EvalContext, set *params.Set) error {
	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return fmt.Errorf("invalid parameters block: %w", diags)
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	for _, attr := range ordered {
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return fmt.Errorf("parameter %s: %w", attr.Name, diags)
		}
		v, err := ctyToValue(val)
		if err != nil {
			return config.Errorf("parameters."+attr.Name, "%w", err)
		}
		set.Put(attr.Name, v)
	}
	ctxlog.FromContext(ctx).Debug("Parameters decoded.", "count", len(ordered))
	return nil
}

// ctyToValue converts a primitive cty value into a parameter value.
func ctyToValue(val cty.Value) (params.Value, error) {
	if val.IsNull() || !val.IsKnown() {
		return params.Value{}, fmt.Errorf("value must be known and not null")
	}
	switch val.Type() {
	case cty.Number:
		var f big.Float
		if err := gocty.FromCtyValue(val, &f); err != nil {
			return params.Value{}, err
		}
		n, _ := f.Float64()
		return params.Number(n), nil
	case cty.String:
		return params.ParseValue(val.AsString()), nil
	case cty.Bool:
		if val.True() {
			return params.Int(1), nil
		}
		return params.Int(0), nil
	default:
		return params.Value{}, fmt.Errorf("unsupported type %s, want number, string or bool", val.Type().FriendlyName())
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
