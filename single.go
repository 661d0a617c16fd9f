package digest

import (
	"context"
	"time"

	"github.com/zoobzio/pipz"
)

// SingleStage summarizes with exactly one completion call per submission.
//
// By default a failed call does not surface as an error: its description
// becomes the output text and is appended to the session as the assistant
// reply, so callers always have something to render. Result.Err and
// Result.Status still report the failure. WithStrictErrors disables this.
type SingleStage struct {
	provider Provider
	stage    Stage
	pipeline pipz.Chainable[*Run]
	settings settings
}

// NewSingleStage builds a single-stage pipeline. It is cheap and holds no
// per-run state, so building one per request is fine.
func NewSingleStage(provider Provider, opts ...Option) *SingleStage {
	st := newSettings(opts)
	stage := Stage{
		Name:   StageSummarizeText,
		Output: FieldOutput,
		Prompt: stylePrompt,
	}
	return &SingleStage{
		provider: provider,
		stage:    stage,
		pipeline: st.wrap(stage.Processor(provider)),
		settings: st,
	}
}

// Stages returns the pipeline's only stage.
func (s *SingleStage) Stages() []Stage {
	return []Stage{s.stage}
}

// GetPipeline returns the underlying pipeline for composition.
func (s *SingleStage) GetPipeline() pipz.Chainable[*Run] {
	return s.pipeline
}

// Summarize runs the pipeline for req.
// Only invalid input is returned as an error unless strict errors are enabled.
func (s *SingleStage) Summarize(ctx context.Context, req Request) (*Result, error) {
	run, err := begin(ctx, VariantSingle, req, s.settings, s.provider)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	if _, err := s.pipeline.Process(ctx, run); err != nil {
		failure := failRun(ctx, run, err, started)
		if s.settings.strict {
			return run.result(""), failure
		}
		text := Describe(failure)
		// The stage wrote nothing on failure, so the field is still free.
		_ = run.State.Set(FieldOutput, text)
		run.Session.Append(RoleAssistant, text)
		return run.result(text), nil
	}

	reply, _ := run.State.Get(FieldOutput)
	run.Session.Append(RoleAssistant, reply)
	completeRun(ctx, run, reply, started)
	return run.result(reply), nil
}
