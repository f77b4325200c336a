package gradient

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/progress"
	"github.com/specialistvlad/femloop/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadratic solves OUT = B^2 + 3*H and reports a text MAT output.
type quadratic struct {
	calls []*params.Set
	fail  int
}

func (q *quadratic) Solve(_ context.Context, in *params.Set, _ ...solver.SolveOption) (*solver.Result, error) {
	q.calls = append(q.calls, in.Clone())
	if q.fail > 0 && len(q.calls) == q.fail {
		return nil, errors.New("solver crashed")
	}
	get := func(name string) float64 {
		v, _ := in.Get(name)
		f, _ := v.Float64()
		return f
	}
	out := in.Clone()
	out.Put("OUT", params.Number(get("B")*get("B")+3*get("H")))
	out.Put("MAT", params.Text("steel"))
	return &solver.Result{Outputs: out}, nil
}

func base() *params.Set {
	in := params.New()
	in.Put("B", params.Int(2))
	in.Put("H", params.Int(0))
	in.Put("NAME", params.Text("beam"))
	return in
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, Forward, m)

	m, err = ParseMethod("central")
	require.NoError(t, err)
	assert.Equal(t, Central, m)

	_, err = ParseMethod("sideways")
	require.ErrorIs(t, err, ErrUnknownMethod)
	assert.True(t, config.IsConfigurationError(err))
}

func TestVaried(t *testing.T) {
	set := params.New()
	for _, n := range []string{"B", "H", "L"} {
		set.Put(n, params.Int(1))
	}

	assert.Equal(t, []string{"B", "H", "L"}, Varied(set, nil, nil))
	assert.Equal(t, []string{"H"}, Varied(set, []string{"h"}, nil))
	assert.Equal(t, []string{"B", "L"}, Varied(set, nil, []string{"h"}))
	assert.Equal(t, []string{"L"}, Varied(set, []string{"h", "L"}, []string{"H"}))
	assert.Empty(t, Varied(set, []string{"X"}, nil))
}

func TestStepSize_ZeroGuard(t *testing.T) {
	assert.Equal(t, 0.1, StepSize(2, 0.05))
	assert.Equal(t, 0.05, StepSize(0, 0.05))
	assert.Equal(t, -0.05, StepSize(0, -0.05))
}

func TestCompute_Forward(t *testing.T) {
	// --- Arrange ---
	q := &quadratic{}
	var events []progress.Event
	engine := New(q, WithReporter(progress.ReporterFunc(func(_ context.Context, ev progress.Event) {
		events = append(events, ev)
	})))

	// --- Act ---
	res, err := engine.Compute(context.Background(), Request{Base: base(), Step: 0.05, Method: Forward})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "H"}, res.Inputs, "text inputs are not varied")
	assert.Equal(t, 3, res.Solves)
	require.Len(t, q.calls, 3)

	// B: h = 0.1, (2.1^2 - 4) / 0.1 = 4.1
	d, ok := res.Get("out", "b")
	require.True(t, ok)
	assert.InDelta(t, 4.1, d, 1e-9)
	// H: zero guard gives h = 0.05, slope 3.
	d, ok = res.Get("OUT", "H")
	require.True(t, ok)
	assert.InDelta(t, 3.0, d, 1e-9)

	_, ok = res.Get("MAT", "B")
	assert.False(t, ok, "text outputs are skipped")

	h, _ := q.calls[2].Get("H")
	assert.Equal(t, "0.05", h.String())

	require.NotNil(t, res.Base)
	out, _ := res.Base.Get("OUT")
	assert.Equal(t, "4", out.String())

	require.Len(t, events, 2)
	assert.Equal(t, progress.Event{Operation: "gradient", Item: "H", Completed: 2, Total: 2, Elapsed: events[1].Elapsed}, events[1])
}

func TestCompute_Backward(t *testing.T) {
	q := &quadratic{}

	res, err := New(q).Compute(context.Background(), Request{Base: base(), Step: 0.05, Method: Backward, OnlyFor: []string{"B"}})

	require.NoError(t, err)
	// (4 - 1.9^2) / 0.1 = 3.9
	d, ok := res.Get("OUT", "B")
	require.True(t, ok)
	assert.InDelta(t, 3.9, d, 1e-9)
	b, _ := q.calls[1].Get("B")
	assert.Equal(t, "1.9", b.String())
	assert.NotNil(t, res.Base)
}

func TestCompute_Central(t *testing.T) {
	q := &quadratic{}

	res, err := New(q).Compute(context.Background(), Request{Base: base(), Step: 0.05, Method: Central, NotFor: []string{"h"}})

	require.NoError(t, err)
	assert.Nil(t, res.Base, "central needs no base solve")
	assert.Equal(t, 2, res.Solves)
	lo, _ := q.calls[0].Get("B")
	hi, _ := q.calls[1].Get("B")
	assert.Equal(t, "1.95", lo.String())
	assert.Equal(t, "2.05", hi.String())
	// Central differences are exact for a quadratic: 2*B = 4.
	d, ok := res.Get("OUT", "B")
	require.True(t, ok)
	assert.InDelta(t, 4.0, d, 1e-9)
	// The input itself is an output of the solver: dB/dB = 1.
	d, ok = res.Get("B", "B")
	require.True(t, ok)
	assert.InDelta(t, 1.0, d, 1e-9)
}

func TestCompute_DefaultStep(t *testing.T) {
	res, err := New(&quadratic{}).Compute(context.Background(), Request{Base: base(), OnlyFor: []string{"B"}})

	require.NoError(t, err)
	assert.Equal(t, Forward, res.Method)
	assert.Equal(t, DefaultStep, res.Step)
}

func TestCompute_NonFiniteStepSolvesNothing(t *testing.T) {
	for _, step := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		q := &quadratic{}

		_, err := New(q).Compute(context.Background(), Request{Base: base(), Step: step})

		require.Error(t, err)
		assert.True(t, config.IsConfigurationError(err))
		assert.Empty(t, q.calls)
	}
}

func TestCompute_UnknownMethodSolvesNothing(t *testing.T) {
	q := &quadratic{}

	_, err := New(q).Compute(context.Background(), Request{Base: base(), Method: "upwind"})

	require.ErrorIs(t, err, ErrUnknownMethod)
	assert.Empty(t, q.calls)
}

func TestCompute_SolveErrorStops(t *testing.T) {
	q := &quadratic{fail: 2}

	_, err := New(q).Compute(context.Background(), Request{Base: base()})

	require.Error(t, err)
	assert.Len(t, q.calls, 2, "no further solves after a failure")
}
