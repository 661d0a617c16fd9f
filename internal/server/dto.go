package server

// SummarizeRequest is the body of POST /v1/summarize.
type SummarizeRequest struct {
	Text    string `json:"text" desc:"Document text to summarize"`
	Style   string `json:"style,omitempty" desc:"Summary style; unknown values use the default instruction" enum:"brief|detailed|bullet_points"`
	Variant string `json:"variant,omitempty" desc:"Pipeline shape; empty uses the server default" enum:"single|chain"`
}

// SummarizeResponse is returned when a run produced output.
type SummarizeResponse struct {
	RunID   string   `json:"run_id"`
	Variant string   `json:"variant"`
	Output  string   `json:"output"`
	Status  string   `json:"status"`
	Stages  []string `json:"stages"`
}

// ErrorResponse is returned for rejected input and failed chains.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
	Stage string `json:"stage,omitempty"`
	RunID string `json:"run_id,omitempty"`
}

// StyleResponse describes one selectable style.
type StyleResponse struct {
	Name        string `json:"name"`
	Instruction string `json:"instruction"`
}
