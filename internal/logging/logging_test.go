package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/digest"
)

// syncBuffer is a bytes.Buffer safe for the async dispatcher.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls buf until it contains substr.
func waitFor(t *testing.T, buf *syncBuffer, substr string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, line := range strings.Split(buf.String(), "\n") {
			if strings.Contains(line, substr) {
				return line
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timeout waiting for log line containing %q; got:\n%s", substr, buf.String())
	return ""
}

func TestBridge(t *testing.T) {
	buf := &syncBuffer{}
	stop := Bridge(New(buf, slog.LevelDebug))
	defer stop()

	capitan.Emit(context.Background(), digest.StageFailed,
		digest.RunIDKey.Field("bridge-run"),
		digest.StageKey.Field(digest.StageSummary),
		digest.ErrorKey.Field("HTTPError: 500"),
		digest.ErrorTypeKey.Field(digest.ErrorTypeTransport),
		digest.DurationMsKey.Field(12),
	)

	line := waitFor(t, buf, "bridge-run")
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("Log line is not JSON: %v", err)
	}
	if record["msg"] != string(digest.StageFailed) {
		t.Errorf("Expected msg %s, got %v", digest.StageFailed, record["msg"])
	}
	if record["level"] != "ERROR" {
		t.Errorf("Expected ERROR, got %v", record["level"])
	}
	if record["stage"] != digest.StageSummary {
		t.Errorf("Expected stage field, got %v", record["stage"])
	}
	if record["error_type"] != digest.ErrorTypeTransport {
		t.Errorf("Expected error_type field, got %v", record["error_type"])
	}
	if record["duration_ms"] != float64(12) {
		t.Errorf("Expected duration_ms 12, got %v", record["duration_ms"])
	}
}

func TestBridge_RespectsLevel(t *testing.T) {
	buf := &syncBuffer{}
	stop := Bridge(New(buf, slog.LevelInfo))
	defer stop()

	ctx := context.Background()
	capitan.Emit(ctx, digest.RunStarted, digest.RunIDKey.Field("level-run-started"))
	capitan.Emit(ctx, digest.RunCompleted, digest.RunIDKey.Field("level-run-done"))

	waitFor(t, buf, "level-run-done")
	if strings.Contains(buf.String(), "level-run-started") {
		t.Error("Debug events should be dropped at info level")
	}
}

func TestBridge_FullRun(t *testing.T) {
	buf := &syncBuffer{}
	stop := Bridge(New(buf, slog.LevelDebug))
	defer stop()

	result, err := digest.NewThreeStage(digest.NewEchoProvider()).
		Summarize(context.Background(), digest.NewRequest("secret document body", "brief"))
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	waitFor(t, buf, `"msg":"digest.run.completed","run_id":"`+result.RunID)
	if strings.Contains(buf.String(), "secret document body") {
		t.Error("Document text must not be logged")
	}
}

func TestLevel(t *testing.T) {
	tests := map[capitan.Signal]slog.Level{
		digest.RunStarted:            slog.LevelDebug,
		digest.RunCompleted:          slog.LevelInfo,
		digest.RunFailed:             slog.LevelError,
		digest.ValidationFailed:      slog.LevelWarn,
		digest.ProviderCallFailed:    slog.LevelError,
		digest.ProviderCallCompleted: slog.LevelInfo,
	}
	for signal, want := range tests {
		if got := Level(signal); got != want {
			t.Errorf("Level(%s) = %v, want %v", signal, got, want)
		}
	}
}
