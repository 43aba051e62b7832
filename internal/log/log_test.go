package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentLedger, Output: &buf})
	l.Info("hello", FieldUserID, "u1")
	out := buf.String()
	if !strings.Contains(out, `"component":"ledger"`) || !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("unexpected output %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentAMQP).Debug("dbg")
	if !strings.Contains(buf.String(), `"component":"amqp"`) {
		t.Fatalf("component not switched: %s", buf.String())
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}))

	req := httptest.NewRequest("GET", "/api/bills?x=1", nil)
	sl.LogHTTPEnd(context.Background(), req, 503, 12, "10.0.0.1")
	if !strings.Contains(buf.String(), `"level":"ERROR"`) || !strings.Contains(buf.String(), `"status_code":503`) {
		t.Fatalf("unexpected http log %s", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("bad"), ComponentHTTP, "create", nil)
	if !strings.Contains(buf.String(), `"error":"bad"`) {
		t.Fatalf("unexpected error log %s", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected fallback logger")
	}
}
