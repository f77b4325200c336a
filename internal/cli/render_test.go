package cli

import (
	"testing"
	"time"

	"github.com/specialistvlad/femloop/internal/app"
	"github.com/specialistvlad/femloop/internal/gradient"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/solver"
	"github.com/stretchr/testify/assert"
)

func TestRenderSolve_ShowsOutputsAndWarnings(t *testing.T) {
	in := params.New()
	in.Put("B", params.Number(4))
	out := params.New()
	out.Put("B", params.Number(5))
	out.Put("OUT", params.Number(11.5))

	got := RenderSolve(&solver.Result{Outputs: out, Mismatches: params.Validate(in, out), Run: 2})

	assert.Contains(t, got, "Run 2 finished")
	assert.Contains(t, got, "OUT")
	assert.Contains(t, got, "11.5")
	assert.Contains(t, got, "warning:")
}

func TestRenderGradient_MissingCell(t *testing.T) {
	res := &gradient.Result{
		Method:      gradient.Forward,
		Step:        0.05,
		Inputs:      []string{"B", "H"},
		Outputs:     []string{"OUT"},
		Derivatives: map[gradient.Key]float64{{Output: "OUT", Input: "B"}: 2},
		Solves:      3,
	}

	got := RenderGradient(res)

	assert.Contains(t, got, "forward differences, dh=0.05, 3 solves")
	assert.Contains(t, got, "d output / d input")
	assert.Contains(t, got, "-")
}

func TestRenderRuns(t *testing.T) {
	assert.Equal(t, "no runs recorded", RenderRuns(nil))

	got := RenderRuns([]app.RunView{{ID: "0123456789abcdef", Run: 4, Job: "file", Started: time.Now(), ElapsedMs: 1500}})

	assert.Contains(t, got, "01234567")
	assert.NotContains(t, got, "89abcdef")
	assert.Contains(t, got, "1.5s")
}
