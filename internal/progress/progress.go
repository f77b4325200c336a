// Package progress publishes how far a multi-solve computation has come.
package progress

import (
	"context"
	"time"

	"github.com/specialistvlad/femloop/internal/ctxlog"
)

// Event reports that one more unit of work finished.
type Event struct {
	// Operation names the computation, e.g. "gradient".
	Operation string `json:"operation"`
	// Item is the unit that just finished, e.g. the input name varied.
	Item      string        `json:"item"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Fraction returns Completed/Total, or 0 when Total is unknown.
func (e Event) Fraction() float64 {
	if e.Total <= 0 {
		return 0
	}
	return float64(e.Completed) / float64(e.Total)
}

// Reporter receives progress events. Implementations must not block for
// long; a failure to publish is never fatal to the computation.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, ev Event)

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Log reports through the context's logger.
type Log struct{}

// Report implements Reporter.
func (Log) Report(ctx context.Context, ev Event) {
	ctxlog.FromContext(ctx).Info("Progress.",
		"operation", ev.Operation,
		"item", ev.Item,
		"completed", ev.Completed,
		"total", ev.Total,
		"elapsed", ev.Elapsed.Round(time.Millisecond),
	)
}

// Multi fans every event out to all reporters in order. Nil entries are
// skipped.
func Multi(reporters ...Reporter) Reporter {
	out := make(multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multi []Reporter

func (m multi) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		r.Report(ctx, ev)
	}
}

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(context.Context, Event) {})
