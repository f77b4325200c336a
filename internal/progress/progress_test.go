package progress

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Fraction(t *testing.T) {
	assert.Equal(t, 0.5, Event{Completed: 1, Total: 2}.Fraction())
	assert.Zero(t, Event{Completed: 1}.Fraction())
}

func TestMulti_FansOutInOrder(t *testing.T) {
	var got []string
	rec := func(tag string) Reporter {
		return ReporterFunc(func(_ context.Context, ev Event) {
			got = append(got, tag+":"+ev.Item)
		})
	}

	Multi(rec("a"), nil, rec("b")).Report(context.Background(), Event{Item: "B"})

	assert.Equal(t, []string{"a:B", "b:B"}, got)
}

func TestLog_Report(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	Log{}.Report(ctx, Event{Operation: "gradient", Item: "H", Completed: 2, Total: 3, Elapsed: time.Second})

	out := buf.String()
	assert.Contains(t, out, "msg=Progress.")
	assert.Contains(t, out, "item=H")
	assert.Contains(t, out, "completed=2")
	assert.Contains(t, out, "total=3")
}

func TestDialSocket_InvalidURL(t *testing.T) {
	_, err := DialSocket(context.Background(), SocketOptions{URL: "not a url"})
	require.Error(t, err)
}

func TestDialSocket_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DialSocket(ctx, SocketOptions{URL: "http://127.0.0.1:1/socket.io/"})

	require.Error(t, err)
}
