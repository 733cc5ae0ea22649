package pipeline

import (
	"context"
	"time"

	"github.com/reelsmith/reelsmith/internal/media"
)

// Outcome tags how a stage ended.
type Outcome int

const (
	Ok Outcome = iota
	SoftFail
	HardFail
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case SoftFail:
		return "soft_fail"
	case HardFail:
		return "hard_fail"
	}
	return "unknown"
}

// StageResult is what the fold sees for every stage. On Ok, Artifact is
// the stage output (possibly the unchanged input); on SoftFail it is the
// prior artifact; on HardFail it is empty.
type StageResult struct {
	Outcome  Outcome
	Artifact string
	Err      error
}

// Policy decides what a stage error means for the run.
type Policy int

const (
	Hard Policy = iota
	Soft
)

type stageFunc func(ctx context.Context, r *run, in string) (string, error)

type stage struct {
	name    string
	policy  Policy
	percent int // reached when the stage ends, whatever the outcome
	message string
	fn      stageFunc
}

// exec runs one stage under the per-stage timeout. A cancelled parent
// context is always a hard failure, even for soft stages.
func (s stage) exec(ctx context.Context, r *run, in string, timeout time.Duration) StageResult {
	stageCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := s.fn(stageCtx, r, in)
	switch {
	case err == nil:
		return StageResult{Outcome: Ok, Artifact: out}
	case s.policy == Soft && ctx.Err() == nil:
		return StageResult{Outcome: SoftFail, Artifact: in, Err: &media.SoftStageFailure{Stage: s.name, Err: err}}
	default:
		return StageResult{Outcome: HardFail, Err: err}
	}
}
