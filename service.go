package digest

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/capitan"
)

// begin validates req and opens a run. Invalid requests never reach the provider.
func begin(ctx context.Context, variant Variant, req Request, st settings, provider Provider) (*Run, error) {
	if err := req.Validate(); err != nil {
		capitan.Emit(ctx, ValidationFailed,
			VariantKey.Field(string(variant)),
			StyleKey.Field(string(req.Style)),
			ErrorKey.Field(err.Error()),
			ErrorTypeKey.Field(ErrorTypeValidation),
		)
		return nil, err
	}

	run := newRun(variant, req, st.temperature)
	capitan.Emit(ctx, RunStarted,
		RunIDKey.Field(run.ID),
		VariantKey.Field(string(variant)),
		StyleKey.Field(string(req.Style)),
		ProviderKey.Field(provider.Name()),
		TemperatureKey.Field(float64(run.Temperature)),
		InputLengthKey.Field(len(req.Text)),
	)
	return run, nil
}

// failRun closes run as failed and returns the failure as a *StageError.
// Errors raised outside a stage (timeouts, rate limits, an open breaker) are
// attributed to the stage that was running, or StagePipeline before any.
func failRun(ctx context.Context, run *Run, err error, started time.Time) *StageError {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stage := run.Stage()
		if stage == "" {
			stage = StagePipeline
		}
		stageErr = &StageError{Stage: stage, Err: &UnexpectedError{Op: "pipeline", Err: err}}
	}
	// A stage may have failed the run already.
	_ = run.Fail(stageErr)

	capitan.Emit(ctx, RunFailed,
		RunIDKey.Field(run.ID),
		VariantKey.Field(string(run.Variant)),
		StageKey.Field(stageErr.Stage),
		StatusKey.Field(string(run.Status())),
		ErrorKey.Field(stageErr.Err.Error()),
		ErrorTypeKey.Field(ErrorType(stageErr.Err)),
		DurationMsKey.Field(int(time.Since(started).Milliseconds())),
	)
	return stageErr
}

// completeRun closes run as completed.
func completeRun(ctx context.Context, run *Run, output string, started time.Time) {
	_ = run.Complete()

	usage := run.Session.Usage()
	capitan.Emit(ctx, RunCompleted,
		RunIDKey.Field(run.ID),
		VariantKey.Field(string(run.Variant)),
		StatusKey.Field(string(run.Status())),
		OutputLengthKey.Field(len(output)),
		PromptTokensKey.Field(usage.Prompt),
		CompletionTokensKey.Field(usage.Completion),
		TotalTokensKey.Field(usage.Total),
		DurationMsKey.Field(int(time.Since(started).Milliseconds())),
	)
}
