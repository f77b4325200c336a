package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/femloop/internal/ctxlog"
)

var (
	// ErrDoneTimeout is returned when the solver does not report done within
	// the configured bound.
	ErrDoneTimeout = errors.New("control: timed out waiting for the solver to finish")
	// ErrProcessExited is returned when the solver process exits while the
	// driver is waiting for done.
	ErrProcessExited = errors.New("control: solver process exited while a run was in flight")
)

// Command is an instruction handed to the monitor loop.
type Command int

const (
	// CommandRun asks the monitor to execute one solve.
	CommandRun Command = iota + 1
	// CommandStop asks the monitor to delete the record and leave its loop.
	CommandStop
)

// String returns the command's name.
func (c Command) String() string {
	switch c {
	case CommandRun:
		return "run"
	case CommandStop:
		return "stop"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Mailbox is the single-slot command channel between driver and solver. It
// hides how commands travel and how completion is observed, so callers do
// not depend on the polling mechanics.
type Mailbox interface {
	// Send issues cmd. It does not wait for the solver to act on it.
	Send(ctx context.Context, cmd Command) error
	// AwaitDone blocks until the solver reports the last run as done.
	AwaitDone(ctx context.Context) (State, error)
}

// FileMailbox implements Mailbox on top of a Channel by polling the record
// at a fixed interval.
type FileMailbox struct {
	channel  *Channel
	interval time.Duration
	timeout  time.Duration
	died     <-chan struct{}
}

// MailboxOption configures a FileMailbox.
type MailboxOption func(*FileMailbox)

// WithTimeout bounds AwaitDone. Zero, the default, waits without bound.
func WithTimeout(d time.Duration) MailboxOption {
	return func(m *FileMailbox) { m.timeout = d }
}

// WithExitSignal makes AwaitDone fail with ErrProcessExited once died is
// closed.
func WithExitSignal(died <-chan struct{}) MailboxOption {
	return func(m *FileMailbox) { m.died = died }
}

// NewFileMailbox returns a mailbox polling channel every interval.
func NewFileMailbox(channel *Channel, interval time.Duration, opts ...MailboxOption) *FileMailbox {
	if interval <= 0 {
		interval = time.Second
	}
	m := &FileMailbox{channel: channel, interval: interval}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send writes the record for cmd.
func (m *FileMailbox) Send(ctx context.Context, cmd Command) error {
	var err error
	switch cmd {
	case CommandRun:
		_, err = m.channel.Write(true, false)
	case CommandStop:
		_, err = m.channel.Write(false, true)
	default:
		return fmt.Errorf("control: unknown command %s", cmd)
	}
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Command sent.", "command", cmd.String())
	return nil
}

// AwaitDone polls the record until done is set, the optional timeout
// expires, the process dies or ctx is cancelled.
func (m *FileMailbox) AwaitDone(ctx context.Context) (State, error) {
	var deadline <-chan time.Time
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return State{}, ctx.Err()
		case <-deadline:
			return State{}, fmt.Errorf("%w after %s", ErrDoneTimeout, m.timeout)
		case <-m.died:
			// The monitor may have finished right before exiting.
			if s, err := m.channel.Read(); err == nil && s.Done {
				return s, nil
			}
			return State{}, ErrProcessExited
		case <-ticker.C:
			s, err := m.channel.Read()
			if err != nil {
				return State{}, err
			}
			if s.Done {
				return s, nil
			}
		}
	}
}
