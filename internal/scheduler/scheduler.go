package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Scheduler runs chapter jobs with bounded concurrency, dependency
// gating, and quality-threshold retries. A single control goroutine owns
// all run state; job goroutines report through a completion channel and
// never touch shared state, so no locking is needed.
type Scheduler struct {
	gen    Generator
	scorer Scorer
	cfg    Config
	logger *slog.Logger
}

// New creates a scheduler. Zero Config fields take documented defaults.
func New(gen Generator, scorer Scorer, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		gen:    gen,
		scorer: scorer,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "scheduler"),
	}
}

// Run executes the job set and returns a report once every job has
// reached a terminal state. Job-local failures are recorded in the
// report; only a structural impossibility (*DeadlockError) or caller
// cancellation aborts the run.
func (s *Scheduler) Run(ctx context.Context, jobs []Job, sharedContext string) (*RunReport, error) {
	if err := checkFeasible(jobs); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := newRunState(jobs)
	// Buffered so job goroutines can always deliver, even if the run is
	// torn down before their result is read.
	done := make(chan Result, len(jobs))
	start := time.Now()

	s.logger.Info("run started",
		"jobs", len(jobs),
		"max_concurrency", s.cfg.MaxConcurrency,
		"quality_threshold", *s.cfg.QualityThreshold,
	)

	for len(st.pending) > 0 || len(st.inFlight) > 0 {
		// Admit ready jobs up to the concurrency cap.
		for len(st.inFlight) < s.cfg.MaxConcurrency {
			job, ok := st.selectNext()
			if !ok {
				break
			}
			st.inFlight[job.ID] = true
			st.statuses[job.ID] = StatusActive
			// Context is assembled here, in the control loop, so job
			// goroutines never read the completed map.
			contextText := st.buildContext(sharedContext, job)
			go s.runJob(ctx, job, contextText, done)
			s.logger.Debug("job admitted", "job_id", job.ID, "in_flight", len(st.inFlight))
			s.emitProgress(st.snapshot(s.cfg.DefaultJobEstimate))
		}

		if len(st.inFlight) == 0 {
			if len(st.pending) > 0 {
				// Nothing running and nothing admissible: the remaining
				// jobs depend on permanently failed work.
				stuck := make(map[int]bool, len(st.pending))
				for _, j := range st.pending {
					stuck[j.ID] = true
				}
				return nil, newDeadlockError("dependencies permanently failed", stuck)
			}
			break
		}

		select {
		case res := <-done:
			st.handleResult(res)
			if res.Succeeded {
				s.logger.Info("job completed",
					"job_id", res.JobID,
					"attempts", res.Attempts,
					"quality", res.QualityScore,
					"low_quality", res.LowQuality,
					"elapsed", res.Elapsed,
				)
			} else {
				s.logger.Warn("job failed",
					"job_id", res.JobID,
					"attempts", res.Attempts,
					"error", res.ErrorMessage,
				)
			}
			s.emitProgress(st.snapshot(s.cfg.DefaultJobEstimate))
		case <-ctx.Done():
			return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
		}
	}

	report := st.report(time.Since(start))
	s.logger.Info("run finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"mean_quality", report.MeanQuality,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// runState is owned exclusively by the control loop in Run.
type runState struct {
	pending   []Job
	inFlight  map[int]bool
	completed map[int]*Draft
	statuses  map[int]Status
	results   []Result
	avg       durationAverage
	nFailed   int
}

func newRunState(jobs []Job) *runState {
	st := &runState{
		pending:   make([]Job, len(jobs)),
		inFlight:  make(map[int]bool),
		completed: make(map[int]*Draft),
		statuses:  make(map[int]Status, len(jobs)),
	}
	copy(st.pending, jobs)
	for _, j := range jobs {
		st.statuses[j.ID] = StatusQueued
	}
	return st
}

// selectNext pops the best admissible pending job: all dependencies
// completed, then fewest unmet dependencies, higher priority, lower
// complexity, lower ID. Returns false when nothing is admissible.
func (st *runState) selectNext() (Job, bool) {
	best := -1
	for i, j := range st.pending {
		if !st.ready(j) {
			continue
		}
		if best == -1 || st.prefer(j, st.pending[best]) {
			best = i
		}
	}
	if best == -1 {
		return Job{}, false
	}
	job := st.pending[best]
	st.pending = append(st.pending[:best], st.pending[best+1:]...)
	return job, true
}

func (st *runState) ready(j Job) bool {
	for _, dep := range j.DependsOn {
		if _, ok := st.completed[dep]; !ok {
			return false
		}
	}
	return true
}

func (st *runState) unmetDeps(j Job) int {
	n := 0
	for _, dep := range j.DependsOn {
		if _, ok := st.completed[dep]; !ok {
			n++
		}
	}
	return n
}

func (st *runState) prefer(a, b Job) bool {
	if ua, ub := st.unmetDeps(a), st.unmetDeps(b); ua != ub {
		return ua < ub
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Complexity != b.Complexity {
		return a.Complexity < b.Complexity
	}
	return a.ID < b.ID
}

// buildContext concatenates the shared story context with summaries of
// completed chapters numbered below this job, in chapter order.
func (st *runState) buildContext(shared string, job Job) string {
	ids := make([]int, 0, len(st.completed))
	for id := range st.completed {
		if id < job.ID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString(shared)
	for _, id := range ids {
		d := st.completed[id]
		summary := d.Summary
		if summary == "" {
			summary = d.Content
		}
		fmt.Fprintf(&b, "\n\nChapter %d (%s): %s", id, d.Title, summary)
	}
	return b.String()
}

func (st *runState) handleResult(res Result) {
	delete(st.inFlight, res.JobID)
	st.results = append(st.results, res)
	if res.Succeeded {
		st.statuses[res.JobID] = StatusCompleted
		st.completed[res.JobID] = res.Draft
		st.avg.add(res.Elapsed)
	} else {
		st.statuses[res.JobID] = StatusFailed
		st.nFailed++
	}
}

func (st *runState) snapshot(defaultEstimate time.Duration) ProgressSnapshot {
	statuses := make(map[int]Status, len(st.statuses))
	for id, status := range st.statuses {
		statuses[id] = status
	}
	queued := len(st.pending)
	return ProgressSnapshot{
		Queued:             queued,
		Active:             len(st.inFlight),
		Completed:          len(st.completed),
		Failed:             st.nFailed,
		Statuses:           statuses,
		EstimatedRemaining: time.Duration(queued) * st.avg.mean(defaultEstimate),
	}
}

func (st *runState) report(elapsed time.Duration) *RunReport {
	report := &RunReport{
		Results: st.results,
		Elapsed: elapsed,
	}

	ids := make([]int, 0, len(st.completed))
	for id := range st.completed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		report.Drafts = append(report.Drafts, st.completed[id])
	}

	var qualitySum float64
	for _, res := range st.results {
		if res.Succeeded {
			report.Succeeded++
			qualitySum += res.QualityScore
		} else {
			report.Failed++
		}
	}
	if report.Succeeded > 0 {
		report.MeanQuality = qualitySum / float64(report.Succeeded)
	}
	return report
}
