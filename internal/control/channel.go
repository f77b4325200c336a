// Package control implements the driver side of the control-file handshake
// with the monitor script running inside the solver.
//
// The record is a flat file of KEY=VALUE lines shared by two writers. The
// driver only ever writes go and kill; the monitor only ever writes done and
// runs. Nothing locks the file, so correctness rests on that discipline and
// on the driver never issuing a new command before it has observed done.
package control

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/femloop/internal/params"
)

// FileName is the control record's name inside the run directory.
const FileName = "control.femloop"

// Keys of the control record. The monitor script reads them as parameters.
const (
	KeyGo   = "FEMLOOP_GO"
	KeyDone = "FEMLOOP_DONE"
	KeyKill = "FEMLOOP_KILL"
	KeyRuns = "FEMLOOP_RUNS"
)

// ErrConflictingCommand is returned when go and kill are asserted together.
var ErrConflictingCommand = errors.New("control: go and kill cannot be issued in the same write")

// State is the shared control record.
type State struct {
	Go   bool
	Done bool
	Kill bool
	Runs int
}

// Channel reads and rewrites the control record in a run directory.
type Channel struct {
	path string
}

// NewChannel returns a Channel for runDir.
func NewChannel(runDir string) *Channel {
	return &Channel{path: filepath.Join(runDir, FileName)}
}

// Path returns the control record's location.
func (c *Channel) Path() string {
	return c.path
}

// Read parses the record. An absent file yields the all-zero State.
func (c *Channel) Read() (State, error) {
	set, err := params.ReadFile(c.path)
	if errors.Is(err, params.ErrNoData) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("control: read record: %w", err)
	}
	return State{
		Go:   flag(set, KeyGo),
		Done: flag(set, KeyDone),
		Kill: flag(set, KeyKill),
		Runs: counter(set, KeyRuns),
	}, nil
}

// Write issues a driver command: it reads the current record, overwrites go
// and kill, forces done to false and rewrites the whole record.
func (c *Channel) Write(goFlag, kill bool) (State, error) {
	if goFlag && kill {
		return State{}, ErrConflictingCommand
	}
	s, err := c.Read()
	if err != nil {
		return State{}, err
	}
	s.Go = goFlag
	s.Kill = kill
	s.Done = false
	if err := c.Store(s); err != nil {
		return State{}, err
	}
	return s, nil
}

// Store replaces the record with s. Fields are never written partially: the
// new content goes to a temporary file that is renamed over the record.
func (c *Channel) Store(s State) error {
	set := params.New()
	set.Put(KeyGo, boolValue(s.Go))
	set.Put(KeyDone, boolValue(s.Done))
	set.Put(KeyKill, boolValue(s.Kill))
	set.Put(KeyRuns, params.Int(int64(s.Runs)))

	tmp := c.path + ".tmp"
	if err := params.WriteFile(tmp, set); err != nil {
		return fmt.Errorf("control: write record: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("control: replace record: %w", err)
	}
	return nil
}

// Remove deletes the record. A missing record is not an error.
func (c *Channel) Remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("control: remove record: %w", err)
	}
	return nil
}

// Exists reports whether the record is present on disk.
func (c *Channel) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

func flag(set *params.Set, key string) bool {
	v, ok := set.Get(key)
	if !ok {
		return false
	}
	f, ok := v.Float64()
	return ok && f != 0
}

func counter(set *params.Set, key string) int {
	v, ok := set.Get(key)
	if !ok {
		return 0
	}
	f, ok := v.Float64()
	if !ok || f < 0 {
		return 0
	}
	return int(f)
}

func boolValue(b bool) params.Value {
	if b {
		return params.Int(1)
	}
	return params.Int(0)
}
