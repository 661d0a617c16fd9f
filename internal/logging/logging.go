// Package logging bridges digest events to slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/digest"
)

// New returns a JSON logger writing to w at level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

type extractor func(e *capitan.Event) (slog.Attr, bool)

func attr[T any](name string, from func(*capitan.Event) (T, bool)) extractor {
	return func(e *capitan.Event) (slog.Attr, bool) {
		v, ok := from(e)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.Any(name, v), true
	}
}

// Event fields copied onto log records. Payload text is never on events.
var extractors = []extractor{
	attr("run_id", digest.RunIDKey.From),
	attr("variant", digest.VariantKey.From),
	attr("stage", digest.StageKey.From),
	attr("style", digest.StyleKey.From),
	attr("status", digest.StatusKey.From),
	attr("temperature", digest.TemperatureKey.From),
	attr("provider", digest.ProviderKey.From),
	attr("model", digest.ModelKey.From),
	attr("input_length", digest.InputLengthKey.From),
	attr("output_length", digest.OutputLengthKey.From),
	attr("prompt_tokens", digest.PromptTokensKey.From),
	attr("completion_tokens", digest.CompletionTokensKey.From),
	attr("total_tokens", digest.TotalTokensKey.From),
	attr("duration_ms", digest.DurationMsKey.From),
	attr("http_status", digest.HTTPStatusCodeKey.From),
	attr("error", digest.ErrorKey.From),
	attr("error_type", digest.ErrorTypeKey.From),
}

// Level picks the record level for a signal.
func Level(signal capitan.Signal) slog.Level {
	name := string(signal)
	switch {
	case signal == digest.ValidationFailed:
		return slog.LevelWarn
	case strings.HasSuffix(name, ".failed"):
		return slog.LevelError
	case strings.HasSuffix(name, ".started"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Bridge logs every digest event to logger until the returned func is called.
func Bridge(logger *slog.Logger) func() {
	observer := capitan.Observe(func(ctx context.Context, e *capitan.Event) {
		signal := e.Signal()
		if !strings.HasPrefix(string(signal), "digest.") {
			return
		}
		level := Level(signal)
		if !logger.Enabled(ctx, level) {
			return
		}
		attrs := make([]slog.Attr, 0, len(extractors))
		for _, extract := range extractors {
			if a, ok := extract(e); ok {
				attrs = append(attrs, a)
			}
		}
		logger.LogAttrs(ctx, level, string(signal), attrs...)
	})
	return func() { observer.Close() }
}
