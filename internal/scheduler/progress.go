package scheduler

import "time"

// ProgressSnapshot is a point-in-time view of a run, emitted to the
// OnProgress observer after every admission, completion, and failure.
type ProgressSnapshot struct {
	Queued    int
	Active    int
	Completed int
	Failed    int

	// Statuses maps every job ID to its current lifecycle state.
	Statuses map[int]Status

	// EstimatedRemaining is queued count times the running mean duration
	// of completed jobs, seeded with DefaultJobEstimate before the first
	// completion.
	EstimatedRemaining time.Duration
}

// durationAverage keeps a running mean of completed job durations for
// the ETA estimate.
type durationAverage struct {
	total time.Duration
	count int
}

func (a *durationAverage) add(d time.Duration) {
	a.total += d
	a.count++
}

func (a *durationAverage) mean(fallback time.Duration) time.Duration {
	if a.count == 0 {
		return fallback
	}
	return a.total / time.Duration(a.count)
}

// emitProgress invokes the observer with a fresh snapshot. Observer
// panics are recovered and logged so a misbehaving callback can never
// abort the run.
func (s *Scheduler) emitProgress(snap ProgressSnapshot) {
	if s.cfg.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("progress observer panicked", "panic", r)
		}
	}()
	s.cfg.OnProgress(snap)
}
