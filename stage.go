package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Stage names.
const (
	StageSummarizeText = "summarize_text"
	StageInput         = "input"
	StageSummary       = "summary"
	StageOutput        = "output"

	// StagePipeline names failures raised before any stage started.
	StagePipeline = "pipeline"
)

// PromptFunc builds a stage prompt from the fields written so far.
type PromptFunc func(state *State) (string, error)

// Stage is one unit of a pipeline: one prompt, one completion call, one
// output field.
type Stage struct {
	Name   string
	Output string
	Prompt PromptFunc

	// Transcript records the prompt and reply in the run session.
	Transcript bool
}

// TemplateStage builds a stage whose prompt is rendered from tmpl.
func TemplateStage(tmpl Template, output string) Stage {
	return Stage{
		Name:       tmpl.Name,
		Output:     output,
		Prompt:     tmpl.Render,
		Transcript: true,
	}
}

// stylePrompt builds the single-stage prompt from raw_text and style.
func stylePrompt(state *State) (string, error) {
	text, ok := state.Get(FieldRawText)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, FieldRawText)
	}
	style, _ := state.Get(FieldStyle)
	return BuildPrompt(ParseStyle(style), text), nil
}

// Processor adapts the stage to a pipz processor so stages chain in a sequence.
func (s Stage) Processor(provider Provider) pipz.Chainable[*Run] {
	return pipz.Apply("llm-call", func(ctx context.Context, run *Run) (*Run, error) {
		if _, err := s.Execute(ctx, provider, run); err != nil {
			return run, err
		}
		return run, nil
	})
}

// Execute runs the stage against run and returns the reply.
// Any failure moves the run to StatusFailed and is returned as a *StageError.
func (s Stage) Execute(ctx context.Context, provider Provider, run *Run) (string, error) {
	if err := run.Enter(s.Name); err != nil {
		return "", err
	}

	capitan.Emit(ctx, StageStarted,
		RunIDKey.Field(run.ID),
		VariantKey.Field(string(run.Variant)),
		StageKey.Field(s.Name),
		ProviderKey.Field(provider.Name()),
		TemperatureKey.Field(float64(run.Temperature)),
	)
	start := time.Now()

	prompt, err := s.Prompt(run.State)
	if err != nil {
		return "", s.fail(ctx, run, provider, &UnexpectedError{Op: "render prompt", Err: err}, start)
	}

	resp, err := provider.Call(ctx, []Message{{Role: RoleUser, Content: prompt}}, run.Temperature)
	if err != nil {
		return "", s.fail(ctx, run, provider, classify(err), start)
	}
	if resp == nil {
		return "", s.fail(ctx, run, provider, &UnexpectedError{Op: "read reply", Err: ErrNoResponse}, start)
	}

	if err := run.State.Set(s.Output, resp.Content); err != nil {
		return "", s.fail(ctx, run, provider, &UnexpectedError{Op: "store reply", Err: err}, start)
	}
	run.Session.AddUsage(resp.Usage)
	if s.Transcript {
		run.Session.Append(RoleUser, prompt)
		run.Session.Append(RoleAssistant, resp.Content)
	}

	capitan.Emit(ctx, StageCompleted,
		RunIDKey.Field(run.ID),
		VariantKey.Field(string(run.Variant)),
		StageKey.Field(s.Name),
		ProviderKey.Field(provider.Name()),
		OutputLengthKey.Field(len(resp.Content)),
		TotalTokensKey.Field(resp.Usage.Total),
		DurationMsKey.Field(int(time.Since(start).Milliseconds())),
	)
	return resp.Content, nil
}

func (s Stage) fail(ctx context.Context, run *Run, provider Provider, err error, start time.Time) error {
	stageErr := &StageError{Stage: s.Name, Err: err}
	_ = run.Fail(stageErr)

	capitan.Emit(ctx, StageFailed,
		RunIDKey.Field(run.ID),
		VariantKey.Field(string(run.Variant)),
		StageKey.Field(s.Name),
		ProviderKey.Field(provider.Name()),
		ErrorKey.Field(err.Error()),
		ErrorTypeKey.Field(ErrorType(err)),
		DurationMsKey.Field(int(time.Since(start).Milliseconds())),
	)
	return stageErr
}

// classify keeps transport and unexpected errors as they are and wraps
// anything else so every stage failure has a known class.
func classify(err error) error {
	var transport *TransportError
	var unexpected *UnexpectedError
	if errors.As(err, &transport) || errors.As(err, &unexpected) {
		return err
	}
	return &UnexpectedError{Op: "completion call", Err: err}
}
