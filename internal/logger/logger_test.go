package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSlogBridge_ContextFieldsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Component: "test"}, &buf)
	l := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSessionID(ctx, "sess-9")
	ctx = WithStage(ctx, "parking")

	l.With("radius", 0.5).WithGroup("fetch").InfoContext(ctx, "stage done",
		"count", 3, "err", errors.New("boom"))

	var got map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":         "stage done",
		"level":       "info",
		"component":   "test",
		"request_id":  "req-1",
		"session_id":  "sess-9",
		"stage":       "parking",
		"fetch.count": float64(3),
		"fetch.err":   "boom",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %q=%v want %v (line=%s)", k, got[k], v, buf.String())
		}
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	l := NewSlog(&zl)

	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Fatalf("warn should be emitted")
	}
	Build(Config{Level: "info"}, &buf)
}
