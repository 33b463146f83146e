package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	threshold := 0.7
	retries := 2
	return Config{
		MaxConcurrency:     3,
		QualityThreshold:   &threshold,
		MaxRetries:         &retries,
		RetryDelay:         time.Millisecond,
		DefaultJobEstimate: time.Second,
	}
}

func passingScorer() *MockScorer {
	return &MockScorer{FixedScore: 0.9}
}

func TestRunCompletesAllJobs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs := []Job{
		{ID: 1, Title: "Opening"},
		{ID: 2, Title: "Middle", DependsOn: []int{1}},
		{ID: 3, Title: "Ending", DependsOn: []int{2}},
	}

	s := New(NewMockGenerator(), passingScorer(), testConfig())
	report, err := s.Run(ctx, jobs, "a story about tides")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(report.Results))
	}
	if report.Succeeded != 3 || report.Failed != 0 {
		t.Errorf("Succeeded = %d, Failed = %d, want 3 and 0", report.Succeeded, report.Failed)
	}
	if len(report.Drafts) != 3 {
		t.Fatalf("len(Drafts) = %d, want 3", len(report.Drafts))
	}
	for i, d := range report.Drafts {
		if d.JobID != i+1 {
			t.Errorf("Drafts[%d].JobID = %d, want %d", i, d.JobID, i+1)
		}
	}
}

func TestDependencySafety(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// A diamond plus a tail, with latencies arranged so independent jobs
	// finish out of ID order.
	jobs := []Job{
		{ID: 1, Title: "root"},
		{ID: 2, Title: "left", DependsOn: []int{1}},
		{ID: 3, Title: "right", DependsOn: []int{1}},
		{ID: 4, Title: "join", DependsOn: []int{2, 3}},
		{ID: 5, Title: "tail", DependsOn: []int{4}},
	}

	gen := NewMockGenerator()
	gen.LatencyFor = map[int]time.Duration{
		2: 40 * time.Millisecond,
		3: 5 * time.Millisecond,
	}

	s := New(gen, passingScorer(), testConfig())
	report, err := s.Run(ctx, jobs, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Completion order must respect the dependency graph.
	pos := make(map[int]int)
	for i, res := range report.Results {
		pos[res.JobID] = i
	}
	for _, j := range jobs {
		for _, dep := range j.DependsOn {
			if pos[dep] >= pos[j.ID] {
				t.Errorf("job %d completed at %d before dependency %d at %d",
					j.ID, pos[j.ID], dep, pos[dep])
			}
		}
	}
}

// countingGenerator tracks the high-water mark of concurrent Generate
// calls.
type countingGenerator struct {
	inner   *MockGenerator
	current atomic.Int64
	max     atomic.Int64
}

func (g *countingGenerator) Generate(ctx context.Context, job Job, contextText string) (*Draft, error) {
	cur := g.current.Add(1)
	for {
		prev := g.max.Load()
		if cur <= prev || g.max.CompareAndSwap(prev, cur) {
			break
		}
	}
	defer g.current.Add(-1)
	return g.inner.Generate(ctx, job, contextText)
}

func TestConcurrencyBound(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs := make([]Job, 0, 10)
	for i := 1; i <= 10; i++ {
		jobs = append(jobs, Job{ID: i, Title: "ch"})
	}

	gen := &countingGenerator{inner: NewMockGenerator()}
	gen.inner.Latency = 10 * time.Millisecond

	cfg := testConfig()
	cfg.MaxConcurrency = 2
	s := New(gen, passingScorer(), cfg)
	if _, err := s.Run(ctx, jobs, ""); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if max := gen.max.Load(); max > 2 {
		t.Errorf("max concurrent generations = %d, want <= 2", max)
	}
}

func TestDeadlockDetectedOnCycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobs := []Job{
		{ID: 1, DependsOn: []int{2}},
		{ID: 2, DependsOn: []int{1}},
	}

	gen := NewMockGenerator()
	s := New(gen, passingScorer(), testConfig())
	_, err := s.Run(ctx, jobs, "")

	var dl *DeadlockError
	if !errors.As(err, &dl) {
		t.Fatalf("Run() error = %v, want *DeadlockError", err)
	}
	if len(dl.Stuck) != 2 {
		t.Errorf("Stuck = %v, want both cycle members", dl.Stuck)
	}
	if gen.Calls() != 0 {
		t.Errorf("generator called %d times before feasibility check, want 0", gen.Calls())
	}
}

func TestDeadlockWhenDependencyFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs := []Job{
		{ID: 1, Title: "doomed"},
		{ID: 2, Title: "blocked", DependsOn: []int{1}},
	}

	gen := NewMockGenerator()
	gen.FailFor = map[int]bool{1: true}

	s := New(gen, passingScorer(), testConfig())
	_, err := s.Run(ctx, jobs, "")

	var dl *DeadlockError
	if !errors.As(err, &dl) {
		t.Fatalf("Run() error = %v, want *DeadlockError", err)
	}
	if len(dl.Stuck) != 1 || dl.Stuck[0] != 2 {
		t.Errorf("Stuck = %v, want [2]", dl.Stuck)
	}
}

func TestRetryUntilThreshold(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scorer := &MockScorer{
		Scores: []float64{0.3, 0.5, 0.9},
		Hints:  []string{"deepen the protagonist's motivation"},
	}

	s := New(NewMockGenerator(), scorer, testConfig())
	report, err := s.Run(ctx, []Job{{ID: 1, Title: "ch"}}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := report.Results[0]
	if !res.Succeeded || res.LowQuality {
		t.Errorf("Succeeded = %v, LowQuality = %v, want true and false", res.Succeeded, res.LowQuality)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if res.QualityScore != 0.9 {
		t.Errorf("QualityScore = %v, want 0.9", res.QualityScore)
	}
}

func TestRetryExhaustionAcceptsBestEffort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scorer := &MockScorer{FixedScore: 0.1}

	s := New(NewMockGenerator(), scorer, testConfig())
	report, err := s.Run(ctx, []Job{{ID: 1, Title: "ch"}}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := report.Results[0]
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if !res.Succeeded {
		t.Error("Succeeded = false, want best-effort acceptance")
	}
	if !res.LowQuality {
		t.Error("LowQuality = false, want flagged")
	}
	if res.QualityScore != 0.1 {
		t.Errorf("QualityScore = %v, want 0.1", res.QualityScore)
	}
	if res.Draft == nil {
		t.Error("Draft = nil, want best attempt retained")
	}
}

func TestRevisionHintsAccumulate(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scorer := &MockScorer{
		Scores: []float64{0.3, 0.5, 0.9},
		HintsPerCall: [][]string{
			{"raise the stakes"},
			{"cut the flashback"},
		},
	}

	gen := NewMockGenerator()
	s := New(gen, scorer, testConfig())
	if _, err := s.Run(ctx, []Job{{ID: 1, Title: "ch"}}, "premise"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	contexts := gen.ContextsFor(1)
	if len(contexts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(contexts))
	}
	if strings.Contains(contexts[0], "raise the stakes") {
		t.Error("first attempt saw hints before any review")
	}
	if !strings.Contains(contexts[1], "raise the stakes") {
		t.Errorf("second attempt missing first round's hints: %q", contexts[1])
	}
	// The final revision carries every earlier round's notes.
	for _, hint := range []string{"raise the stakes", "cut the flashback"} {
		if !strings.Contains(contexts[2], hint) {
			t.Errorf("third attempt missing hint %q: %q", hint, contexts[2])
		}
	}
}

func TestZeroRetriesMakesSingleAttempt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := testConfig()
	retries := 0
	cfg.MaxRetries = &retries

	gen := NewMockGenerator()
	scorer := &MockScorer{FixedScore: 0.1}
	s := New(gen, scorer, cfg)
	report, err := s.Run(ctx, []Job{{ID: 1, Title: "ch"}}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := report.Results[0]
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want exactly 1", res.Attempts)
	}
	if gen.CallsFor(1) != 1 {
		t.Errorf("generator called %d times, want 1", gen.CallsFor(1))
	}
	if !res.Succeeded || !res.LowQuality {
		t.Errorf("Succeeded = %v, LowQuality = %v, want best-effort acceptance", res.Succeeded, res.LowQuality)
	}
}

func TestZeroThresholdAcceptsEveryDraft(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := testConfig()
	threshold := 0.0
	cfg.QualityThreshold = &threshold

	scorer := &MockScorer{FixedScore: 0}
	s := New(NewMockGenerator(), scorer, cfg)
	report, err := s.Run(ctx, []Job{{ID: 1, Title: "ch"}}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := report.Results[0]
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want first attempt accepted", res.Attempts)
	}
	if !res.Succeeded || res.LowQuality {
		t.Errorf("Succeeded = %v, LowQuality = %v, want clean acceptance", res.Succeeded, res.LowQuality)
	}
}

func TestNilConfigFieldsTakeDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if *cfg.QualityThreshold != DefaultQualityThreshold {
		t.Errorf("QualityThreshold = %v, want %v", *cfg.QualityThreshold, DefaultQualityThreshold)
	}
	if *cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", *cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.MaxConcurrency != DefaultMaxConcurrency {
		t.Errorf("MaxConcurrency = %d, want %d", cfg.MaxConcurrency, DefaultMaxConcurrency)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs := []Job{
		{ID: 1, Title: "a"},
		{ID: 2, Title: "b"},
		{ID: 3, Title: "c"},
	}

	gen := NewMockGenerator()
	gen.FailFor = map[int]bool{2: true}

	s := New(gen, passingScorer(), testConfig())
	report, err := s.Run(ctx, jobs, "")
	if err != nil {
		t.Fatalf("Run() error = %v, want partial report", err)
	}

	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("Succeeded = %d, Failed = %d, want 2 and 1", report.Succeeded, report.Failed)
	}
	for _, res := range report.Results {
		if res.JobID == 2 {
			if res.Succeeded {
				t.Error("job 2 Succeeded = true, want false")
			}
			if res.ErrorMessage == "" {
				t.Error("job 2 ErrorMessage empty, want generation error")
			}
			if res.Attempts != 3 {
				t.Errorf("job 2 Attempts = %d, want 3", res.Attempts)
			}
		}
	}
}

func TestProgressMonotonic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs := []Job{
		{ID: 1}, {ID: 2}, {ID: 3},
		{ID: 4, DependsOn: []int{1, 2}},
	}

	gen := NewMockGenerator()
	gen.FailFor = map[int]bool{3: true}

	var mu sync.Mutex
	var snaps []ProgressSnapshot

	cfg := testConfig()
	cfg.OnProgress = func(snap ProgressSnapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	}

	s := New(gen, passingScorer(), cfg)
	if _, err := s.Run(ctx, jobs, ""); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(snaps) == 0 {
		t.Fatal("no progress snapshots emitted")
	}
	prev := -1
	for i, snap := range snaps {
		if snap.Completed < prev {
			t.Errorf("snapshot %d: Completed = %d, decreased from %d", i, snap.Completed, prev)
		}
		prev = snap.Completed
	}
	last := snaps[len(snaps)-1]
	if last.Completed != 3 {
		t.Errorf("final Completed = %d, want 3", last.Completed)
	}
	if last.Failed != 1 {
		t.Errorf("final Failed = %d, want 1", last.Failed)
	}
	if last.Statuses[3] != StatusFailed {
		t.Errorf("Statuses[3] = %q, want %q", last.Statuses[3], StatusFailed)
	}
}

func TestDeterministicOutcomeAcrossRuns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	jobs := []Job{
		{ID: 1}, {ID: 2}, {ID: 3},
		{ID: 4, DependsOn: []int{2}},
		{ID: 5, DependsOn: []int{1, 3}},
	}
	latency := map[int]time.Duration{
		1: 15 * time.Millisecond,
		2: 5 * time.Millisecond,
		3: 25 * time.Millisecond,
		4: 10 * time.Millisecond,
		5: 5 * time.Millisecond,
	}

	run := func() *RunReport {
		gen := NewMockGenerator()
		gen.Latency = 0
		gen.LatencyFor = latency
		s := New(gen, passingScorer(), testConfig())
		report, err := s.Run(ctx, jobs, "")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return report
	}

	a, b := run(), run()

	byID := func(r *RunReport) map[int]Result {
		m := make(map[int]Result)
		for _, res := range r.Results {
			m[res.JobID] = res
		}
		return m
	}
	ra, rb := byID(a), byID(b)
	for id, res := range ra {
		other := rb[id]
		if res.Succeeded != other.Succeeded || res.QualityScore != other.QualityScore {
			t.Errorf("job %d differs across runs: %+v vs %+v", id, res, other)
		}
	}
	if len(a.Drafts) != len(b.Drafts) {
		t.Fatalf("draft counts differ: %d vs %d", len(a.Drafts), len(b.Drafts))
	}
	for i := range a.Drafts {
		if a.Drafts[i].JobID != b.Drafts[i].JobID {
			t.Errorf("Drafts[%d] job IDs differ: %d vs %d", i, a.Drafts[i].JobID, b.Drafts[i].JobID)
		}
	}
}

func TestObserverPanicIsolated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.OnProgress = func(ProgressSnapshot) {
		panic("observer misbehaved")
	}

	s := New(NewMockGenerator(), passingScorer(), cfg)
	report, err := s.Run(ctx, []Job{{ID: 1}, {ID: 2}}, "")
	if err != nil {
		t.Fatalf("Run() error = %v, want observer panic swallowed", err)
	}
	if report.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", report.Succeeded)
	}
}

// hangingGenerator blocks until the attempt context is cancelled on the
// first call, then succeeds.
type hangingGenerator struct {
	calls atomic.Int64
}

func (g *hangingGenerator) Generate(ctx context.Context, job Job, contextText string) (*Draft, error) {
	if g.calls.Add(1) == 1 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &Draft{JobID: job.ID, Title: job.Title, Content: "ok", Summary: "ok"}, nil
}

func TestAttemptTimeoutConvertsToRetry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.AttemptTimeout = 20 * time.Millisecond

	s := New(&hangingGenerator{}, passingScorer(), cfg)
	report, err := s.Run(ctx, []Job{{ID: 1, Title: "slow"}}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := report.Results[0]
	if !res.Succeeded {
		t.Errorf("Succeeded = false, want retry after timeout to succeed")
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
}

func TestAdmissionOrdering(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs := []Job{
		{ID: 1, Priority: PriorityLow, Complexity: 0.2},
		{ID: 2, Priority: PriorityHigh, Complexity: 0.8},
		{ID: 3, Priority: PriorityHigh, Complexity: 0.3},
		{ID: 4, Priority: PriorityNormal, Complexity: 0.1},
	}

	gen := NewMockGenerator()
	cfg := testConfig()
	cfg.MaxConcurrency = 1
	s := New(gen, passingScorer(), cfg)
	if _, err := s.Run(ctx, jobs, ""); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []int{3, 2, 4, 1}
	got := gen.StartOrder()
	if len(got) != len(want) {
		t.Fatalf("len(StartOrder) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StartOrder[%d] = %d, want %d (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestDependencyContextIncludesEarlierChapters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	contexts := make(map[int]string)

	gen := &contextRecordingGenerator{inner: NewMockGenerator(), record: func(id int, text string) {
		mu.Lock()
		contexts[id] = text
		mu.Unlock()
	}}

	jobs := []Job{
		{ID: 1, Title: "start"},
		{ID: 2, Title: "end", DependsOn: []int{1}},
	}

	s := New(gen, passingScorer(), testConfig())
	if _, err := s.Run(ctx, jobs, "shared premise"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := contexts[1]; got != "shared premise" {
		t.Errorf("job 1 context = %q, want shared premise only", got)
	}
	got := contexts[2]
	if !strings.Contains(got, "shared premise") || !strings.Contains(got, "summary of chapter 1") {
		t.Errorf("job 2 context = %q, want shared premise plus chapter 1 summary", got)
	}
}

type contextRecordingGenerator struct {
	inner  *MockGenerator
	record func(id int, text string)
}

func (g *contextRecordingGenerator) Generate(ctx context.Context, job Job, contextText string) (*Draft, error) {
	g.record(job.ID, contextText)
	return g.inner.Generate(ctx, job, contextText)
}

func TestGenerationErrorRetried(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gen := NewMockGenerator()
	gen.FailUntil = 1

	s := New(gen, passingScorer(), testConfig())
	report, err := s.Run(ctx, []Job{{ID: 1, Title: "flaky"}}, "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	res := report.Results[0]
	if !res.Succeeded {
		t.Errorf("Succeeded = false, want retry to recover")
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
}
