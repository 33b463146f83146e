package scheduler

import "time"

// Result is the terminal outcome of one job's attempt sequence.
type Result struct {
	JobID        int
	Succeeded    bool
	LowQuality   bool // accepted best effort below the quality threshold
	Draft        *Draft
	ErrorMessage string
	Attempts     int
	QualityScore float64 // 0 if no scorable draft was ever produced
	Elapsed      time.Duration
}

// RunReport aggregates one run. Results are in completion order; Drafts
// holds accepted payloads ordered by job ID. A partially successful
// report is a normal outcome, so callers check Succeeded per result.
type RunReport struct {
	Results     []Result
	Drafts      []*Draft
	Elapsed     time.Duration
	MeanQuality float64
	Succeeded   int
	Failed      int
}
