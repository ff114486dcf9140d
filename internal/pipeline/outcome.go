package pipeline

import (
	"context"
	"errors"

	"fastscribe/internal/models"
	"fastscribe/internal/segment"
	"fastscribe/internal/worker"
)

// Outcome classifies the error a run ended with
func Outcome(err error) models.RunOutcome {
	if err == nil {
		return models.RunOutcome{Kind: models.OutcomeSuccess}
	}

	if errors.Is(err, worker.ErrCancelled) || errors.Is(err, context.Canceled) {
		return models.RunOutcome{Kind: models.OutcomeCancelled, Err: err}
	}

	var segErr *segment.SegmentationError
	if errors.As(err, &segErr) {
		return models.RunOutcome{Kind: models.OutcomeSegmentationFailure, Segment: segErr.Index, Err: segErr.Err}
	}

	var infErr *worker.InferenceError
	if errors.As(err, &infErr) {
		return models.RunOutcome{Kind: models.OutcomeInferenceFailure, Segment: infErr.Index, Err: infErr.Err}
	}

	return models.RunOutcome{Kind: models.OutcomeInferenceFailure, Err: err}
}
