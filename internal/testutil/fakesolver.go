package testutil

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/femloop/internal/control"
	"github.com/specialistvlad/femloop/internal/history"
	"github.com/specialistvlad/femloop/internal/lockfile"
	"github.com/specialistvlad/femloop/internal/monitor"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/supervisor"
)

// FakeSolver is a supervisor.Launcher that emulates the solver and its
// monitor script in-process. It holds <job>.lock while alive and serves the
// control record exactly like the generated script does.
type FakeSolver struct {
	// Compute returns the outputs for one run. The inputs are echoed to the
	// output file as well, the way the solver saves every parameter.
	Compute func(in *params.Set) *params.Set
	// History returns the values of one time-history variable.
	History func(id int) []float64
	// Interval is the monitor's poll interval. Defaults to 5ms.
	Interval time.Duration
	// NoLock never takes the lock file, so the start never completes.
	NoLock bool
	// DieOnRun exits as soon as a run command is acknowledged.
	DieOnRun bool
	// Hang acknowledges run commands but never reports done.
	Hang bool
	// Echo overrides echoed inputs; the output file gets these values instead.
	Echo func(in *params.Set) *params.Set

	launches atomic.Int32
	runs     atomic.Int32

	mu       sync.Mutex
	commands []supervisor.Command
	inputs   []*params.Set
}

// Launches returns how many times the solver was started.
func (f *FakeSolver) Launches() int {
	return int(f.launches.Load())
}

// Runs returns how many runs completed across all launches.
func (f *FakeSolver) Runs() int {
	return int(f.runs.Load())
}

// Commands returns every command line the solver was launched with.
func (f *FakeSolver) Commands() []supervisor.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]supervisor.Command(nil), f.commands...)
}

// Inputs returns the input set of every run, in order.
func (f *FakeSolver) Inputs() []*params.Set {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*params.Set(nil), f.inputs...)
}

// Launch implements supervisor.Launcher.
func (f *FakeSolver) Launch(_ context.Context, cmd supervisor.Command) (supervisor.Process, error) {
	job, dir := flagValue(cmd.Args, "-j"), flagValue(cmd.Args, "-dir")
	if job == "" || dir == "" {
		return nil, fmt.Errorf("fake solver: missing -j or -dir in %v", cmd.Args)
	}
	f.launches.Add(1)
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	p := &fakeProcess{
		pid:    int(f.launches.Load()),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	var lock *lockfile.Lock
	if !f.NoLock {
		var err error
		if lock, err = lockfile.Acquire(lockfile.Path(dir, job)); err != nil {
			return nil, err
		}
	}

	go func() {
		defer close(p.exited)
		defer lock.Release()
		f.loop(dir, p.stop)
	}()
	return p, nil
}

func (f *FakeSolver) loop(dir string, stop <-chan struct{}) {
	interval := f.Interval
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	ch := control.NewChannel(dir)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s, err := ch.Read()
		if err != nil {
			continue
		}
		if s.Kill {
			_ = ch.Remove()
			return
		}
		if !s.Go {
			continue
		}
		if err := ch.Store(control.State{Runs: s.Runs}); err != nil {
			return
		}
		if f.DieOnRun {
			return
		}
		if err := f.run(dir); err != nil {
			return
		}
		if f.Hang {
			continue
		}
		f.runs.Add(1)
		if err := ch.Store(control.State{Done: true, Runs: s.Runs + 1}); err != nil {
			return
		}
	}
}

func (f *FakeSolver) run(dir string) error {
	in, err := params.ReadFile(filepath.Join(dir, monitor.InputFile))
	if errors.Is(err, params.ErrNoData) {
		in = params.New()
	} else if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, monitor.LauncherFile)); err != nil {
		return err
	}
	f.mu.Lock()
	f.inputs = append(f.inputs, in.Clone())
	f.mu.Unlock()

	out := in.Clone()
	if f.Echo != nil {
		out = f.Echo(in)
	}
	if f.Compute != nil {
		f.Compute(in).Range(func(name string, v params.Value) bool {
			out.Put(name, v)
			return true
		})
	}
	if err := writeSaved(filepath.Join(dir, monitor.OutputFile), out); err != nil {
		return err
	}
	return f.exportHistory(dir)
}

// writeSaved writes set in the solver's own parameter dump form.
func writeSaved(path string, set *params.Set) error {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	fmt.Fprintln(w, "/NOPR")
	set.Range(func(name string, v params.Value) bool {
		if v.IsNumeric() {
			fmt.Fprintf(w, "*SET,%-8s, %s\n", name, v)
		} else {
			fmt.Fprintf(w, "*SET,%-8s,'%s'\n", name, v)
		}
		return true
	})
	fmt.Fprintln(w, "/GOPR")
	if err := w.Flush(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (f *FakeSolver) exportHistory(dir string) error {
	reqPath := filepath.Join(dir, monitor.HistoryRequestFile)
	raw, err := os.ReadFile(reqPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	ids, err := history.ParseRequest(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	table := history.NewTable()
	for _, id := range ids {
		var values []float64
		if f.History != nil {
			values = f.History(id)
		}
		table.Set(id, values)
	}
	var buf bytes.Buffer
	if err := history.Format(&buf, table); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, monitor.HistoryOutputFile), buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Remove(reqPath)
}

func flagValue(args []string, name string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == name {
			return args[i+1]
		}
	}
	return ""
}

type fakeProcess struct {
	pid    int
	once   sync.Once
	stop   chan struct{}
	exited chan struct{}
}

func (p *fakeProcess) Pid() int                { return p.pid }
func (p *fakeProcess) Exited() <-chan struct{} { return p.exited }

func (p *fakeProcess) Terminate() error {
	p.once.Do(func() { close(p.stop) })
	<-p.exited
	return nil
}
