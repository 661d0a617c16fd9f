// Package server exposes the summarizer over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/zoobzio/digest"
)

// MaxUploadBytes caps the size of an uploaded document.
const MaxUploadBytes = 5 << 20

// Config wires a Server.
type Config struct {
	Provider       digest.Provider
	Variant        digest.Variant  // used when a request names none
	Options        []digest.Option // applied to every pipeline
	AllowedOrigins []string
	Metrics        http.Handler // served on /metrics when set
}

// Server holds the HTTP handlers. Pipelines are built per request.
type Server struct {
	provider       digest.Provider
	variant        digest.Variant
	options        []digest.Option
	allowedOrigins []string
	metrics        http.Handler
}

// New creates a Server.
func New(cfg Config) *Server {
	variant := cfg.Variant
	if variant == "" {
		variant = digest.VariantChain
	}
	return &Server{
		provider:       cfg.Provider,
		variant:        variant,
		options:        cfg.Options,
		allowedOrigins: cfg.AllowedOrigins,
		metrics:        cfg.Metrics,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	if len(s.allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: s.allowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type"},
		}))
	}

	v1 := r.Group("/v1")
	v1.POST("/summarize", s.Summarize)
	v1.POST("/summarize/upload", s.Upload)
	v1.GET("/styles", s.GetStyles)
	v1.GET("/schema", s.GetSchema)

	r.GET("/health", s.GetHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

// Summarize handles POST /v1/summarize.
func (s *Server) Summarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Hint:  "Send JSON with a text field.",
		})
		return
	}
	s.run(c, req.Variant, digest.NewRequest(req.Text, req.Style))
}

// Upload handles POST /v1/summarize/upload with a multipart "file" field.
func (s *Server) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.reject(c, &digest.ValidationError{Reason: "no file uploaded"})
		return
	}

	f, err := header.Open()
	if err != nil {
		s.reject(c, &digest.FileReadError{Name: header.Filename, Err: err})
		return
	}
	defer f.Close()

	text, err := readUpload(header.Filename, f)
	if err != nil {
		s.reject(c, err)
		return
	}
	s.run(c, c.PostForm("variant"), digest.NewRequest(text, c.PostForm("style")))
}

// readUpload reads a plain UTF-8 document.
func readUpload(name string, r io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", &digest.FileReadError{Name: name, Err: err}
	}
	if len(raw) > MaxUploadBytes {
		return "", &digest.FileReadError{Name: name, Err: fmt.Errorf("file exceeds %d bytes", MaxUploadBytes)}
	}
	if !utf8.Valid(raw) {
		return "", &digest.FileReadError{Name: name, Err: errors.New("content is not valid UTF-8")}
	}
	return string(raw), nil
}

func (s *Server) run(c *gin.Context, variantName string, req digest.Request) {
	variant := s.variant
	if variantName != "" {
		v, err := digest.ParseVariant(variantName)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Hint: "Use variant single or chain."})
			return
		}
		variant = v
	}

	summarizer, err := digest.New(variant, s.provider, s.options...)
	if err != nil {
		slog.Error("error building pipeline", "variant", variant, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "pipeline unavailable"})
		return
	}

	result, err := summarizer.Summarize(c.Request.Context(), req)
	if err != nil {
		var stageErr *digest.StageError
		if errors.As(err, &stageErr) {
			resp := ErrorResponse{Error: digest.Describe(err), Hint: digest.Hint(err), Stage: stageErr.Stage}
			if result != nil {
				resp.RunID = result.RunID
			}
			slog.Error("summarization failed", "variant", variant, "stage", stageErr.Stage, "error", err)
			c.JSON(http.StatusBadGateway, resp)
			return
		}
		s.reject(c, err)
		return
	}

	c.JSON(http.StatusOK, SummarizeResponse{
		RunID:   result.RunID,
		Variant: string(result.Variant),
		Output:  result.Output,
		Status:  string(result.Status),
		Stages:  stagesOf(result),
	})
}

// reject answers errors raised before any provider call.
func (s *Server) reject(c *gin.Context, err error) {
	var validation *digest.ValidationError
	var file *digest.FileReadError
	if errors.As(err, &validation) || errors.As(err, &file) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Hint: digest.Hint(err)})
		return
	}
	slog.Error("unexpected summarization error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: digest.Describe(err), Hint: digest.Hint(err)})
}

// stagesOf lists the stages the run entered, in order.
func stagesOf(result *digest.Result) []string {
	stages := make([]string, 0, len(result.Transitions))
	for _, t := range result.Transitions {
		if t.To == digest.StatusRunning {
			stages = append(stages, t.Stage)
		}
	}
	return stages
}

// GetStyles handles GET /v1/styles.
func (s *Server) GetStyles(c *gin.Context) {
	styles := make([]StyleResponse, 0, len(digest.Styles()))
	for _, style := range digest.Styles() {
		styles = append(styles, StyleResponse{Name: string(style), Instruction: style.Instruction()})
	}
	c.JSON(http.StatusOK, gin.H{
		"styles":   styles,
		"fallback": StyleResponse{Name: string(digest.StyleDefault), Instruction: digest.StyleDefault.Instruction()},
	})
}

// GetSchema handles GET /v1/schema.
func (s *Server) GetSchema(c *gin.Context) {
	c.Data(http.StatusOK, "application/schema+json", []byte(digest.Schema[SummarizeRequest]()))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": s.provider.Name(), "variant": s.variant})
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
