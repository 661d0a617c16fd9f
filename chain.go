package digest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/pipz"
)

// ThreeStage summarizes through a fixed chain: input formatting, summary,
// output formatting. Each stage makes one completion call and feeds its
// reply to the next stage through the run state.
//
// The first failing stage aborts the chain; the failure is returned as a
// *StageError and no later stage runs.
type ThreeStage struct {
	provider Provider
	stages   []Stage
	pipeline pipz.Chainable[*Run]
	settings settings
}

// NewThreeStage builds the three-stage pipeline.
func NewThreeStage(provider Provider, opts ...Option) *ThreeStage {
	st := newSettings(opts)
	stages := []Stage{
		TemplateStage(InputTemplate, FieldCleanedText),
		TemplateStage(SummaryTemplate, FieldSummary),
		TemplateStage(OutputTemplate, FieldFinalOutput),
	}

	processors := make([]pipz.Chainable[*Run], len(stages))
	for i, stage := range stages {
		processors[i] = stage.Processor(provider)
	}
	sequence := pipz.NewSequence("three-stage", processors...)

	return &ThreeStage{
		provider: provider,
		stages:   stages,
		pipeline: st.wrap(sequence),
		settings: st,
	}
}

// Stages returns the stages in execution order.
func (t *ThreeStage) Stages() []Stage {
	out := make([]Stage, len(t.stages))
	copy(out, t.stages)
	return out
}

// GetPipeline returns the underlying pipeline for composition.
func (t *ThreeStage) GetPipeline() pipz.Chainable[*Run] {
	return t.pipeline
}

// Summarize runs all three stages for req and returns final_output.
func (t *ThreeStage) Summarize(ctx context.Context, req Request) (*Result, error) {
	run, err := begin(ctx, VariantChain, req, t.settings, t.provider)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	if _, err := t.pipeline.Process(ctx, run); err != nil {
		failure := failRun(ctx, run, err, started)
		return run.result(""), failure
	}

	output, _ := run.State.Get(FieldFinalOutput)
	completeRun(ctx, run, output, started)
	return run.result(output), nil
}

// RunStage executes a single named stage against the given fields.
// Stages only read the state, so feeding one stage's reply to the next by
// hand gives the same prompt as the chain would.
func (t *ThreeStage) RunStage(ctx context.Context, name string, fields map[string]string) (string, error) {
	for _, stage := range t.stages {
		if stage.Name != name {
			continue
		}
		run := &Run{
			ID:          uuid.New().String(),
			Variant:     VariantChain,
			Temperature: t.settings.temperature,
			State:       NewState(),
			Session:     NewSession(),
			status:      StatusIdle,
		}
		for _, key := range slices.Sorted(maps.Keys(fields)) {
			if err := run.State.Set(key, fields[key]); err != nil {
				return "", err
			}
		}
		return stage.Execute(ctx, t.provider, run)
	}
	return "", fmt.Errorf("unknown stage %q", name)
}
