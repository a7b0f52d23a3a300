package pipeline

import "context"

// GenerationRequest carries everything the content generator needs for one
// stage: project identity, the stage's prompt preamble, and the committed
// outputs of every predecessor stage.
type GenerationRequest struct {
	ProjectID   string
	ProjectName string
	Stage       Stage
	Preamble    string
	Inputs      []StageInput
}

// StageInput is one committed predecessor artifact fed forward as context.
type StageInput struct {
	Stage   Stage
	Name    string
	Content string
}

// ContentGenerator produces candidate artifact content for one stage. It
// stands in for any LLM-backed service; implementations may be slow, may
// fail, and may produce structurally invalid output. The pipeline owns
// retry, validation, and persistence.
//
// Errors: a *GenerationTimeoutError is retried up to the run's attempt
// bound; a *GenerationRejectedError halts the stage for this run. Any other
// error is treated as retriable transport failure.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GeneratorFunc adapts a plain function to the ContentGenerator interface.
type GeneratorFunc func(ctx context.Context, req GenerationRequest) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	return f(ctx, req)
}
