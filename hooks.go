package digest

import (
	"errors"

	"github.com/zoobzio/capitan"
)

// Signals for hook events.
const (
	RunStarted            = capitan.Signal("digest.run.started")
	RunCompleted          = capitan.Signal("digest.run.completed")
	RunFailed             = capitan.Signal("digest.run.failed")
	ValidationFailed      = capitan.Signal("digest.validation.failed")
	StageStarted          = capitan.Signal("digest.stage.started")
	StageCompleted        = capitan.Signal("digest.stage.completed")
	StageFailed           = capitan.Signal("digest.stage.failed")
	ProviderCallStarted   = capitan.Signal("digest.provider.call.started")
	ProviderCallCompleted = capitan.Signal("digest.provider.call.completed")
	ProviderCallFailed    = capitan.Signal("digest.provider.call.failed")
)

// Keys for hook event fields.
var (
	// Run identification.
	RunIDKey       = capitan.NewStringKey("digest.run.id")
	VariantKey     = capitan.NewStringKey("digest.variant")
	StageKey       = capitan.NewStringKey("digest.stage")
	StyleKey       = capitan.NewStringKey("digest.style")
	StatusKey      = capitan.NewStringKey("digest.status")
	TemperatureKey = capitan.NewFloat64Key("digest.temperature")

	// Payload sizes; the text itself is not put on events.
	InputLengthKey  = capitan.NewIntKey("digest.input.length")
	OutputLengthKey = capitan.NewIntKey("digest.output.length")

	// Error information.
	ErrorKey     = capitan.NewStringKey("digest.error")
	ErrorTypeKey = capitan.NewStringKey("digest.error.type")

	// Provider information.
	ProviderKey = capitan.NewStringKey("digest.provider")
	ModelKey    = capitan.NewStringKey("digest.model")

	// Provider metrics.
	PromptTokensKey     = capitan.NewIntKey("digest.tokens.prompt")
	CompletionTokensKey = capitan.NewIntKey("digest.tokens.completion")
	TotalTokensKey      = capitan.NewIntKey("digest.tokens.total")
	DurationMsKey       = capitan.NewIntKey("digest.duration.ms")

	// HTTP metadata.
	HTTPStatusCodeKey = capitan.NewIntKey("digest.http.status.code")
)

// Error type labels carried by ErrorTypeKey.
const (
	ErrorTypeValidation = "validation"
	ErrorTypeTransport  = "transport"
	ErrorTypeUnexpected = "unexpected"
)

// ErrorType classifies err for hook fields and metric labels.
func ErrorType(err error) string {
	var validation *ValidationError
	var transport *TransportError
	switch {
	case errors.As(err, &validation):
		return ErrorTypeValidation
	case errors.As(err, &transport):
		return ErrorTypeTransport
	default:
		return ErrorTypeUnexpected
	}
}
