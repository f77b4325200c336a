package supervisor

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// terminateGrace is how long Terminate waits after the polite signal before
// killing the process group outright.
const terminateGrace = 2 * time.Second

// Command is a fully resolved solver invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
}

// String renders the command line for logs.
func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Path, c.Args)
}

// Process is a solver instance started by a Launcher.
type Process interface {
	// Pid returns the operating-system process id, or 0 when there is none.
	Pid() int
	// Exited is closed once the process has exited and been reaped.
	Exited() <-chan struct{}
	// Terminate stops the process without going through the control record.
	Terminate() error
}

// Launcher starts the solver. The supervisor never depends on how.
type Launcher interface {
	Launch(ctx context.Context, cmd Command) (Process, error)
}

// ExecLauncher starts the solver as a detached child in its own process
// group. The child outlives the context passed to Launch.
type ExecLauncher struct {
	// Stdout and Stderr receive the solver's console output. Nil discards it;
	// the solver writes its own log through the -o flag.
	Stdout io.Writer
	Stderr io.Writer
}

// Launch implements Launcher.
func (l *ExecLauncher) Launch(_ context.Context, c Command) (Process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: launch %s: %w", c.Path, err)
	}

	p := &execProcess{cmd: cmd, exited: make(chan struct{})}
	// Single waiter: nothing else may call cmd.Wait.
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.exited)
	}()
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	exited chan struct{}

	mu  sync.Mutex
	err error
}

func (p *execProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Exited() <-chan struct{} {
	return p.exited
}

// Err returns the wait error once the process has exited.
func (p *execProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *execProcess) Terminate() error {
	select {
	case <-p.exited:
		return nil
	default:
	}

	interruptProcessGroup(p.cmd)
	timer := time.NewTimer(terminateGrace)
	defer timer.Stop()
	select {
	case <-p.exited:
		return nil
	case <-timer.C:
	}

	killProcessGroup(p.cmd)
	<-p.exited
	return nil
}
