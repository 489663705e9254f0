package execution

import (
	"context"
	"time"

	"goldref/internal/domain"
	"goldref/internal/result"
)

// Executor runs one case and returns what it captured
type Executor interface {
	RunCase(ctx context.Context, c domain.Case) (*Capture, error)
}

// Capture is the output of one successful run
type Capture struct {
	Result     *result.Result
	Partial    []domain.PartialCapture
	Completion State
	Waited     time.Duration
}
