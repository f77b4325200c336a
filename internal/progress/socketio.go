package progress

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is the socket.io event name progress is emitted under.
const DefaultEvent = "femloop:progress"

// connectTimeout bounds the initial handshake.
const connectTimeout = 15 * time.Second

// SocketOptions describe the socket.io endpoint.
type SocketOptions struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
}

// Socket emits progress events to a socket.io server.
type Socket struct {
	io    *socket.Socket
	event string
}

// DialSocket connects to opts.URL over the websocket transport and returns
// once the connection is established.
func DialSocket(ctx context.Context, opts SocketOptions) (*Socket, error) {
	logger := ctxlog.FromContext(ctx).With("reporter", "socketio", "url", opts.URL)
	logger.Debug("Connecting progress reporter...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("progress: failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("progress: URL %q needs a scheme and a host", opts.URL)
	}

	sockOpts := socket.DefaultOptions()
	sockOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	io.Once(types.EventName("connect"), func(...any) {
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()
	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("progress: socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("progress: context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("progress: timed out after %s waiting for socket.io connection", connectTimeout)
	}

	event := opts.Event
	if event == "" {
		event = DefaultEvent
	}
	logger.Info("Progress reporter connected.", "sid", io.Id(), "event", event)
	return &Socket{io: io, event: event}, nil
}

// Report implements Reporter. Events are dropped while disconnected.
func (s *Socket) Report(ctx context.Context, ev Event) {
	if !s.io.Connected() {
		ctxlog.FromContext(ctx).Debug("Progress event dropped, socket disconnected.", "item", ev.Item)
		return
	}
	s.io.Emit(s.event, map[string]any{
		"operation": ev.Operation,
		"item":      ev.Item,
		"completed": ev.Completed,
		"total":     ev.Total,
		"fraction":  ev.Fraction(),
		"elapsed":   ev.Elapsed.Seconds(),
	})
}

// Close disconnects from the server.
func (s *Socket) Close() error {
	s.io.Disconnect()
	return nil
}
