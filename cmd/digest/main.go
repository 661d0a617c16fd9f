// Command digest summarizes documents from the command line or over HTTP.
//
//	digest serve
//	digest run [-style brief] [-variant chain] [-file notes.txt]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/zoobzio/digest"
	"github.com/zoobzio/digest/internal/config"
	"github.com/zoobzio/digest/internal/logging"
	"github.com/zoobzio/digest/internal/metrics"
	"github.com/zoobzio/digest/internal/server"
)

const usage = `usage:
  digest serve
  digest run [-style brief|detailed|bullet_points] [-variant single|chain] [-file path]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		if hint := digest.Hint(err); hint != "" {
			fmt.Fprintln(stderr, hint)
		}
		return 1
	}

	logger := logging.New(stderr, cfg.LogLevel)
	slog.SetDefault(logger)
	closeBridge := logging.Bridge(logger)
	defer closeBridge()

	provider, err := cfg.Provider()
	if err != nil {
		fmt.Fprintf(stderr, "provider error: %v\n", err)
		return 1
	}

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, provider)
	case "run":
		return summarize(ctx, cfg, provider, args[1:], stdin, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
}

func serve(ctx context.Context, cfg *config.Config, provider digest.Provider) int {
	collector := metrics.New()
	defer collector.Close()

	srv := server.New(server.Config{
		Provider:       provider,
		Variant:        cfg.Variant,
		Options:        cfg.Options(),
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        collector.Handler(),
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr, "variant", cfg.Variant, "model", cfg.Model)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("error starting server", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down server", "error", err)
		return 1
	}
	slog.Info("server stopped")
	return 0
}

func summarize(ctx context.Context, cfg *config.Config, provider digest.Provider, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		flagStyle   string
		flagVariant string
		flagFile    string
	)
	fs.StringVar(&flagStyle, "style", string(digest.StyleBrief), "summary style: brief, detailed or bullet_points")
	fs.StringVar(&flagVariant, "variant", string(cfg.Variant), "pipeline variant: single or chain")
	fs.StringVar(&flagFile, "file", "", "plain UTF-8 text file to summarize; stdin when empty")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	variant, err := digest.ParseVariant(flagVariant)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	text, err := readInput(flagFile, stdin)
	if err != nil {
		printFailure(stderr, err, err.Error())
		return 1
	}

	summarizer, err := digest.New(variant, provider, cfg.Options()...)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	result, err := summarizer.Summarize(ctx, digest.NewRequest(text, flagStyle))
	if err != nil {
		printFailure(stderr, err, describe(err))
		return 1
	}
	fmt.Fprintln(stdout, result.Output)
	if result.Status == digest.StatusFailed {
		return 1
	}
	return 0
}

func readInput(path string, stdin io.Reader) (string, error) {
	name := path
	var r io.Reader = stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", &digest.FileReadError{Name: name, Err: err}
		}
		defer f.Close()
		r = f
	} else {
		name = "stdin"
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", &digest.FileReadError{Name: name, Err: err}
	}
	if !utf8.Valid(raw) {
		return "", &digest.FileReadError{Name: name, Err: errors.New("content is not valid UTF-8")}
	}
	return string(raw), nil
}

// describe keeps rejected input readable and describes provider failures
// the way the single-stage output does.
func describe(err error) string {
	var stageErr *digest.StageError
	if errors.As(err, &stageErr) {
		return digest.Describe(err)
	}
	return err.Error()
}

func printFailure(w io.Writer, err error, message string) {
	fmt.Fprintln(w, message)
	var stageErr *digest.StageError
	if errors.As(err, &stageErr) {
		fmt.Fprintf(w, "stage: %s\n", stageErr.Stage)
	}
	if hint := digest.Hint(err); hint != "" {
		fmt.Fprintln(w, hint)
	}
}
