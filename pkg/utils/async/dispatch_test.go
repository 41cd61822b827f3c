package async_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/annodb/pkg/utils/async"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/gt"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordHandler forwards every record to a channel as "message key=value..."
type recordHandler struct {
	records chan string
	attrs   []slog.Attr
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(r.Message)
	emit := func(a slog.Attr) bool {
		sb.WriteString(" " + a.Key + "=" + a.Value.String())
		return true
	}
	for _, a := range h.attrs {
		emit(a)
	}
	r.Attrs(emit)
	h.records <- sb.String()
	return nil
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordHandler{records: h.records, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *recordHandler) WithGroup(string) slog.Handler { return h }

func loggingContext() (context.Context, chan string) {
	records := make(chan string, 4)
	logger := slog.New(&recordHandler{records: records})
	return ctxlog.With(context.Background(), logger), records
}

func nextRecord(t *testing.T, records chan string) string {
	t.Helper()
	select {
	case r := <-records:
		return r
	case <-time.After(time.Second):
		t.Fatal("no log record within timeout")
		return ""
	}
}

func TestDispatch_Failures(t *testing.T) {
	testCases := map[string]struct {
		handler func(ctx context.Context) error
		want    []string
	}{
		"notifier error": {
			handler: func(ctx context.Context) error { return errors.New("slack returned 500") },
			want:    []string{"error in async handler", "slack returned 500"},
		},
		"panic": {
			handler: func(ctx context.Context) error { panic("nil plan") },
			want:    []string{"panic in async handler", "nil plan", "goroutine", "dispatch_test.go"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			ctx, records := loggingContext()
			async.Dispatch(ctx, tc.handler)

			record := nextRecord(t, records)
			for _, w := range tc.want {
				gt.True(t, strings.Contains(record, w))
			}
		})
	}
}

func TestDispatch_DetachedContext(t *testing.T) {
	ctx, records := loggingContext()
	ctx, cancel := context.WithCancel(ctx)

	done := make(chan error, 1)
	async.Dispatch(ctx, func(hctx context.Context) error {
		cancel()
		ctxlog.From(hctx).Info("notified")
		done <- hctx.Err()
		return nil
	})

	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("handler did not run within timeout")
	}
	// the logger of the original context is carried over
	gt.Value(t, nextRecord(t, records)).Equal("notified")
}

func TestDispatch_ReportsToSentry(t *testing.T) {
	events := make(chan *sentry.Event, 2)
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			events <- event
			return nil
		},
	})
	gt.NoError(t, err).Required()
	t.Cleanup(client.Close)

	ctx := sentry.SetHubOnContext(context.Background(), sentry.NewHub(client, sentry.NewScope()))

	waitEvent := func(t *testing.T) *sentry.Event {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(time.Second):
			t.Fatal("event was not reported within timeout")
			return nil
		}
	}

	t.Run("error", func(t *testing.T) {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return errors.New("notify failed")
		})
		gt.True(t, hasException(waitEvent(t), "notify failed"))
	})

	t.Run("panic", func(t *testing.T) {
		async.Dispatch(ctx, func(ctx context.Context) error {
			panic("boom")
		})
		gt.True(t, hasException(waitEvent(t), "boom"))
	})
}

func hasException(ev *sentry.Event, text string) bool {
	for _, ex := range ev.Exception {
		if strings.Contains(ex.Value, text) {
			return true
		}
	}
	return false
}
