package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// DeadlockError means the dependency graph cannot make progress: a cycle,
// a reference to an unknown job, a duplicate job ID, or a dependency on a
// job that permanently failed. It is fatal to the whole run.
type DeadlockError struct {
	Stuck  []int // job IDs that can never start
	Reason string
}

func (e *DeadlockError) Error() string {
	ids := make([]string, len(e.Stuck))
	for i, id := range e.Stuck {
		ids[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("scheduler deadlock: %s (stuck jobs: %s)", e.Reason, strings.Join(ids, ", "))
}

func newDeadlockError(reason string, stuck map[int]bool) *DeadlockError {
	ids := make([]int, 0, len(stuck))
	for id := range stuck {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return &DeadlockError{Stuck: ids, Reason: reason}
}

// GenerationError wraps a transport or provider failure from the
// generator. It is job-local: retried up to MaxRetries, then recorded as
// a failed result without aborting the run.
type GenerationError struct {
	JobID   int
	Attempt int
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for job %d (attempt %d): %v", e.JobID, e.Attempt, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ScoringError wraps a failure from the scorer. The scheduler treats it
// as a zero quality score and takes the normal revision-retry path.
type ScoringError struct {
	JobID int
	Err   error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring failed for job %d: %v", e.JobID, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }
