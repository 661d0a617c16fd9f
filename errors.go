package digest

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrMissingCredential is returned when no API key is configured.
	ErrMissingCredential = errors.New("missing API credential")
	// ErrMissingField is returned when a template references an unset field.
	ErrMissingField = errors.New("missing pipeline field")
	// ErrFieldAlreadySet is returned when a pipeline field is written twice.
	ErrFieldAlreadySet = errors.New("pipeline field already set")
	// ErrNoResponse is returned when the provider returns no choices.
	ErrNoResponse = errors.New("no response choices returned")
	// ErrTerminal is returned when a finished run is asked to transition.
	ErrTerminal = errors.New("run already finished")
)

// ValidationError reports a submission rejected before any service call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "please enter or upload some text: " + e.Reason
}

// FileReadError reports uploaded content that could not be decoded as text.
type FileReadError struct {
	Name string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("error reading file %q: %v", e.Name, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// TransportError reports a non-2xx response. Body is kept verbatim.
type TransportError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *TransportError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("HTTPError: %s\n\nResponse: %s", status, e.Body)
}

// UnexpectedError wraps any other failure during a completion call.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("Unexpected error: %v", e.Err)
	}
	return fmt.Sprintf("Unexpected error: %s: %v", e.Op, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// StageError names the pipeline stage whose call failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Describe returns the text shown in place of a summary when a call fails.
// It strips pipeline wrapping down to the transport or unexpected cause.
func Describe(err error) string {
	var transport *TransportError
	if errors.As(err, &transport) {
		return transport.Error()
	}
	var unexpected *UnexpectedError
	if errors.As(err, &unexpected) {
		return unexpected.Error()
	}
	var stage *StageError
	if errors.As(err, &stage) {
		return (&UnexpectedError{Err: stage.Err}).Error()
	}
	return (&UnexpectedError{Err: err}).Error()
}

// Hint returns a short remediation hint for err.
func Hint(err error) string {
	var validation *ValidationError
	var file *FileReadError
	var transport *TransportError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "Please enter or upload some text first."
	case errors.As(err, &file):
		return "Upload a plain UTF-8 .txt file or paste the text instead."
	case errors.Is(err, ErrMissingCredential):
		return "Set GROQ_API_KEY in the environment or a .env file."
	case errors.As(err, &transport):
		if transport.StatusCode == 401 || transport.StatusCode == 403 {
			return "Check your input or API key."
		}
		return "Try a shorter input or check your API connection."
	default:
		return "Try a shorter input or check your API connection."
	}
}
