package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"github.com/zoobzio/digest"
)

func newTestRouter(provider digest.Provider, opts ...digest.Option) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(Config{
		Provider:       provider,
		Options:        opts,
		AllowedOrigins: []string{"http://localhost:3000"},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("digest_runs_total 0\n"))
		}),
	}).Router()
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func postFile(r http.Handler, name string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		part, _ := mw.CreateFormFile("file", name)
		_, _ = part.Write(content)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/summarize/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)
	return w
}

func TestSummarize_Chain(t *testing.T) {
	r := newTestRouter(digest.NewEchoProvider())

	w := postJSON(r, "/v1/summarize", SummarizeRequest{Text: "hello world", Style: "brief"})
	assert.Equal(t, http.StatusOK, w.Code)

	var res SummarizeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, "chain", res.Variant)
	assert.Equal(t, "completed", res.Status)
	assert.Equal(t, []string{digest.StageInput, digest.StageSummary, digest.StageOutput}, res.Stages)
	assert.Equal(t, true, res.RunID != "")
	assert.Equal(t, true, strings.HasPrefix(res.Output, "Format this summary nicely for display:"))
}

func TestSummarize_Single(t *testing.T) {
	r := newTestRouter(digest.NewMockProviderWithResponse("short summary"))

	w := postJSON(r, "/v1/summarize", SummarizeRequest{Text: "hello", Variant: "single"})
	assert.Equal(t, http.StatusOK, w.Code)

	var res SummarizeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, "short summary", res.Output)
	assert.Equal(t, []string{digest.StageSummarizeText}, res.Stages)
}

func TestSummarize_SingleFailureIsOutput(t *testing.T) {
	r := newTestRouter(digest.NewMockProviderWithError(&digest.TransportError{StatusCode: 429, Body: "rate limited"}))

	w := postJSON(r, "/v1/summarize", SummarizeRequest{Text: "hello", Variant: "single"})
	assert.Equal(t, http.StatusOK, w.Code)

	var res SummarizeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, "failed", res.Status)
	assert.Equal(t, true, strings.Contains(res.Output, "rate limited"))
}

func TestSummarize_ChainFailure(t *testing.T) {
	r := newTestRouter(digest.NewMockProviderWithError(&digest.TransportError{StatusCode: 401, Body: "invalid api key"}))

	w := postJSON(r, "/v1/summarize", SummarizeRequest{Text: "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var res ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, digest.StageInput, res.Stage)
	assert.Equal(t, "Check your input or API key.", res.Hint)
	assert.Equal(t, true, strings.Contains(res.Error, "invalid api key"))
	assert.Equal(t, true, res.RunID != "")
}

func TestSummarize_EmptyText(t *testing.T) {
	provider := digest.NewMockProvider()
	r := newTestRouter(provider)

	w := postJSON(r, "/v1/summarize", SummarizeRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, "Please enter or upload some text first.", res.Hint)
	assert.Equal(t, 0, provider.CallCount())
}

func TestSummarize_BadRequests(t *testing.T) {
	r := newTestRouter(digest.NewMockProvider())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/summarize", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/v1/summarize", SummarizeRequest{Text: "hello", Variant: "parallel"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload(t *testing.T) {
	r := newTestRouter(digest.NewEchoProvider())

	w := postFile(r, "notes.txt", []byte("uploaded text"), map[string]string{"style": "detailed", "variant": "single"})
	assert.Equal(t, http.StatusOK, w.Code)

	var res SummarizeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, "Provide a detailed summary:\n\nuploaded text", res.Output)
}

func TestUpload_InvalidUTF8(t *testing.T) {
	provider := digest.NewMockProvider()
	r := newTestRouter(provider)

	w := postFile(r, "binary.txt", []byte{0xff, 0xfe, 0x00, 0x81}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var res ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, "Upload a plain UTF-8 .txt file or paste the text instead.", res.Hint)
	assert.Equal(t, true, strings.Contains(res.Error, "binary.txt"))
	assert.Equal(t, 0, provider.CallCount())
}

func TestUpload_MissingFile(t *testing.T) {
	r := newTestRouter(digest.NewMockProvider())

	w := postFile(r, "", nil, map[string]string{"style": "brief"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStyles(t *testing.T) {
	r := newTestRouter(digest.NewMockProvider())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/styles", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Styles   []StyleResponse `json:"styles"`
		Fallback StyleResponse   `json:"fallback"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	assert.Equal(t, 3, len(res.Styles))
	assert.Equal(t, "brief", res.Styles[0].Name)
	assert.Equal(t, "Summarize:", res.Fallback.Instruction)
}

func TestGetSchema(t *testing.T) {
	r := newTestRouter(digest.NewMockProvider())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/schema", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var schema map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &schema)

	props, _ := schema["properties"].(map[string]any)
	assert.Equal(t, 3, len(props))
	assert.Equal(t, []any{"text"}, schema["required"])

	style, _ := props["style"].(map[string]any)
	assert.Equal(t, []any{"brief", "detailed", "bullet_points"}, style["enum"])
	variant, _ := props["variant"].(map[string]any)
	assert.Equal(t, []any{"single", "chain"}, variant["enum"])
}

func TestGetHealthAndMetrics(t *testing.T) {
	r := newTestRouter(digest.NewMockProvider())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, strings.Contains(w.Body.String(), `"status":"ok"`))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, strings.Contains(w.Body.String(), "digest_runs_total"))
}

func TestCORS(t *testing.T) {
	r := newTestRouter(digest.NewMockProvider())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/v1/summarize", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
