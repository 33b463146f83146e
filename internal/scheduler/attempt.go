package scheduler

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// runJob executes the attempt loop for one job and delivers exactly one
// Result on done. It runs in its own goroutine and communicates with the
// control loop only through that channel.
func (s *Scheduler) runJob(ctx context.Context, job Job, contextText string, done chan<- Result) {
	start := time.Now()
	maxAttempts := *s.cfg.MaxRetries + 1

	var (
		best      *Draft
		bestScore float64
		allHints  []string
		revision  string
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		draft, err := s.generateAttempt(ctx, job, contextText+revision)
		if err != nil {
			genErr := &GenerationError{JobID: job.ID, Attempt: attempt, Err: err}
			s.logger.Warn("generation attempt failed",
				"job_id", job.ID, "attempt", attempt, "error", err)

			// Run-level cancellation is not worth retrying.
			if ctx.Err() == nil && attempt < maxAttempts {
				s.sleepBeforeRetry(ctx, attempt)
				continue
			}
			done <- Result{
				JobID:        job.ID,
				ErrorMessage: genErr.Error(),
				Attempts:     attempt,
				Elapsed:      time.Since(start),
			}
			return
		}

		score, hints := s.scoreAttempt(ctx, job, draft)
		if score >= *s.cfg.QualityThreshold {
			done <- Result{
				JobID:        job.ID,
				Succeeded:    true,
				Draft:        draft,
				Attempts:     attempt,
				QualityScore: score,
				Elapsed:      time.Since(start),
			}
			return
		}

		if best == nil || score > bestScore {
			best, bestScore = draft, score
		}
		if attempt < maxAttempts {
			// Hints accumulate so each revision sees every earlier
			// attempt's improvement notes, not just the last round's.
			allHints = append(allHints, hints...)
			revision = revisionNote(allHints)
			s.logger.Debug("quality below threshold, revising",
				"job_id", job.ID, "attempt", attempt, "score", score)
			continue
		}

		// Retries exhausted below threshold: accept the best draft so
		// downstream chapters still get context, flagged for the caller.
		done <- Result{
			JobID:        job.ID,
			Succeeded:    true,
			LowQuality:   true,
			Draft:        best,
			Attempts:     attempt,
			QualityScore: bestScore,
			Elapsed:      time.Since(start),
		}
		return
	}
}

// generateAttempt calls the generator with the per-attempt timeout
// applied, so a hung provider call surfaces as an ordinary retryable
// error.
func (s *Scheduler) generateAttempt(ctx context.Context, job Job, contextText string) (*Draft, error) {
	if s.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
	}
	return s.gen.Generate(ctx, job, contextText)
}

// scoreAttempt scores a draft. A scorer failure counts as a zero score
// and feeds the normal revision path.
func (s *Scheduler) scoreAttempt(ctx context.Context, job Job, draft *Draft) (float64, []string) {
	score, err := s.scorer.Score(ctx, draft)
	if err != nil {
		scErr := &ScoringError{JobID: job.ID, Err: err}
		s.logger.Warn("scoring failed, treating as zero score",
			"job_id", job.ID, "error", scErr)
		return 0, nil
	}
	return score.Value, score.Hints
}

func (s *Scheduler) sleepBeforeRetry(ctx context.Context, attempt int) {
	delay := s.cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(s.cfg.RetryDelay)))
	delay += jitter
	if delay > 30*time.Second {
		delay = 30*time.Second + jitter
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func revisionNote(hints []string) string {
	if len(hints) == 0 {
		return "\n\nRevise the chapter to improve its overall quality."
	}
	return "\n\nRevise the chapter to address: " + strings.Join(hints, "; ")
}
