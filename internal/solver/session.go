// Package solver orchestrates one solve cycle against the external solver:
// start it if needed, hand over the inputs, run the model, wait for the
// monitor to report done and collect the outputs.
//
// A Session serializes its solves. When a wait for done fails because of a
// timeout, the death of the process or cancellation, the session stops the
// solver so the next Solve starts from a clean process instead of racing a
// run that may still be in flight.
package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/specialistvlad/femloop/internal/control"
	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/specialistvlad/femloop/internal/history"
	"github.com/specialistvlad/femloop/internal/journal"
	"github.com/specialistvlad/femloop/internal/model"
	"github.com/specialistvlad/femloop/internal/monitor"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/supervisor"
)

// ErrNoOutput is returned when a run completed but left no output file.
var ErrNoOutput = errors.New("solver: run completed without an output file")

// killAttempts bounds how many kill intervals a recovery stop may take
// before the process is terminated outright.
const killAttempts = 10

// Result is the outcome of one solve.
type Result struct {
	// Outputs holds every parameter the solver saved, inputs included.
	Outputs *params.Set
	// History is empty unless series were requested.
	History    *history.Table
	Mismatches []params.Mismatch
	// Run is the monitor's run counter after this solve.
	Run     int
	Elapsed time.Duration
}

type solveOptions struct {
	series []int
}

// SolveOption tunes a single Solve.
type SolveOption func(*solveOptions)

// WithHistory requests export of the given time-history variables.
func WithHistory(series ...int) SolveOption {
	return func(o *solveOptions) { o.series = append(o.series, series...) }
}

// Option configures a Session.
type Option func(*Session)

// WithJournal records every solve cycle in store.
func WithJournal(store journal.Store) Option {
	return func(s *Session) { s.journal = store }
}

// Session drives solves against one solver instance.
type Session struct {
	id       string
	sup      *supervisor.Supervisor
	model    *model.Model
	preparer *model.Preparer
	journal  journal.Store

	// mu serializes Solve and Close.
	mu sync.Mutex

	stateMu sync.RWMutex
	state   State
	run     RunState
	lastErr error
}

// NewSession returns an idle session running m through sup.
func NewSession(sup *supervisor.Supervisor, m *model.Model, opts ...Option) *Session {
	s := &Session{
		id:       journal.NewID(),
		sup:      sup,
		model:    m,
		preparer: model.NewPreparer(sup.Config().RunDir),
		run:      RunState{JobName: sup.JobName()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID identifies the session in the journal.
func (s *Session) ID() string {
	return s.id
}

// Supervisor returns the process supervisor.
func (s *Session) Supervisor() *supervisor.Supervisor {
	return s.sup
}

// State returns the current state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// RunState returns a copy of the mutable session state.
func (s *Session) RunState() RunState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return RunState{JobName: s.run.JobName, LastInput: s.run.LastInput.Clone()}
}

// LastError returns the error that put the session in StateFailed.
func (s *Session) LastError() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastErr
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Solve runs the model once with in as input. At most one solve is in
// flight; concurrent callers wait their turn.
func (s *Session) Solve(ctx context.Context, in *params.Set, opts ...SolveOption) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var o solveOptions
	for _, opt := range opts {
		opt(&o)
	}

	started := time.Now()
	res, err := s.solve(ctx, in, o)
	elapsed := time.Since(started)

	s.stateMu.Lock()
	s.run.JobName = s.sup.JobName()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
	} else {
		s.state = StateIdle
		s.lastErr = nil
		s.run.LastInput = in.Clone()
		res.Elapsed = elapsed
	}
	s.stateMu.Unlock()

	s.record(ctx, in, res, started, elapsed, err)
	return res, err
}

func (s *Session) solve(ctx context.Context, in *params.Set, o solveOptions) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("session", s.id)
	cfg := s.sup.Config()
	runDir := cfg.RunDir

	s.setState(StateStarting)
	if err := s.sup.Start(ctx); err != nil {
		return nil, err
	}

	s.setState(StateRunning)
	if err := params.WriteFile(filepath.Join(runDir, monitor.InputFile), in); err != nil {
		return nil, fmt.Errorf("solver: write inputs: %w", err)
	}
	outPath := filepath.Join(runDir, monitor.OutputFile)
	if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("solver: remove previous outputs: %w", err)
	}
	if _, err := s.preparer.Prepare(ctx, s.model, in.Names()); err != nil {
		return nil, err
	}
	if err := history.WriteRequest(filepath.Join(runDir, monitor.HistoryRequestFile), o.series); err != nil {
		return nil, err
	}

	mailbox := control.NewFileMailbox(s.sup.Channel(), cfg.PollInterval,
		control.WithTimeout(cfg.DoneTimeout),
		control.WithExitSignal(s.sup.Exited()),
	)
	if err := mailbox.Send(ctx, control.CommandRun); err != nil {
		return nil, err
	}
	logger.Info("Solve started.", "inputs", in.Len())

	state, err := mailbox.AwaitDone(ctx)
	if err != nil {
		s.recover(ctx, err)
		return nil, fmt.Errorf("solver: waiting for run: %w", err)
	}

	s.setState(StateCollecting)
	out, err := params.ReadFile(outPath)
	if errors.Is(err, params.ErrNoData) {
		return nil, ErrNoOutput
	}
	if err != nil {
		return nil, err
	}

	mismatches := params.Validate(in, out)
	for _, m := range mismatches {
		logger.Warn("Input parameter not reproduced by the model.", "mismatch", m.String())
	}

	table := history.NewTable()
	if len(o.series) > 0 {
		if table, err = history.ReadFile(filepath.Join(runDir, monitor.HistoryOutputFile)); err != nil {
			return nil, err
		}
	}

	logger.Info("Solve finished.", "run", state.Runs, "outputs", out.Len())
	return &Result{Outputs: out, History: table, Mismatches: mismatches, Run: state.Runs}, nil
}

// recover stops the solver after a failed wait so no stale run can complete
// into the next solve. The stop outlives ctx but is bounded.
func (s *Session) recover(ctx context.Context, cause error) {
	logger := ctxlog.FromContext(ctx)
	logger.Error("Solve did not complete, stopping solver.", "error", cause)

	timeout := time.Duration(killAttempts) * s.sup.Config().KillInterval
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.sup.Kill(killCtx); err != nil {
		logger.Error("Could not stop solver after a failed solve.", "error", err)
	}
}

func (s *Session) record(ctx context.Context, in *params.Set, res *Result, started time.Time, elapsed time.Duration, solveErr error) {
	if s.journal == nil {
		return
	}
	rec := journal.Record{
		Session: s.id,
		Job:     s.sup.JobName(),
		Inputs:  in,
		Started: started,
		Elapsed: elapsed,
	}
	if res != nil {
		rec.Run = res.Run
		rec.Outputs = res.Outputs
		rec.Mismatches = len(res.Mismatches)
	}
	if solveErr != nil {
		rec.Error = solveErr.Error()
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		ctxlog.FromContext(ctx).Error("Could not record solve in journal.", "error", err)
	}
}

// Close stops the solver. It is safe to call on every exit path, more than
// once, and after a failed solve.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctxlog.FromContext(ctx).Debug("Closing solver session.", "session", s.id)
	if err := s.sup.Kill(ctx); err != nil {
		return fmt.Errorf("solver: close: %w", err)
	}
	s.setState(StateIdle)
	return nil
}
