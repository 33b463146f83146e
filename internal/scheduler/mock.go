package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockGenerator is a Generator for testing.
type MockGenerator struct {
	// Configurable behavior
	Latency    time.Duration
	LatencyFor map[int]time.Duration // per-job override
	FailFor    map[int]bool          // jobs that always fail
	FailUntil  int                   // fail the first N calls per job (0 = never)
	Err        error                 // error returned on failure

	// State
	calls    atomic.Int64
	mu       sync.Mutex
	perJob   map[int]int
	admitted []int
	contexts map[int][]string
}

// NewMockGenerator creates a mock generator with a small fixed latency.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Latency: 5 * time.Millisecond,
		Err:     errors.New("mock generation failure"),
	}
}

func (g *MockGenerator) Generate(ctx context.Context, job Job, contextText string) (*Draft, error) {
	g.calls.Add(1)
	g.mu.Lock()
	if g.perJob == nil {
		g.perJob = make(map[int]int)
	}
	g.perJob[job.ID]++
	call := g.perJob[job.ID]
	g.admitted = append(g.admitted, job.ID)
	if g.contexts == nil {
		g.contexts = make(map[int][]string)
	}
	g.contexts[job.ID] = append(g.contexts[job.ID], contextText)
	g.mu.Unlock()

	latency := g.Latency
	if d, ok := g.LatencyFor[job.ID]; ok {
		latency = d
	}
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if g.FailFor[job.ID] {
		return nil, g.Err
	}
	if g.FailUntil > 0 && call <= g.FailUntil {
		return nil, g.Err
	}

	return &Draft{
		JobID:   job.ID,
		Title:   job.Title,
		Content: fmt.Sprintf("draft for chapter %d", job.ID),
		Summary: fmt.Sprintf("summary of chapter %d", job.ID),
	}, nil
}

// Calls returns the total number of Generate invocations.
func (g *MockGenerator) Calls() int {
	return int(g.calls.Load())
}

// CallsFor returns how many times a job was generated.
func (g *MockGenerator) CallsFor(jobID int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.perJob[jobID]
}

// ContextsFor returns the context text passed to each attempt of a job.
func (g *MockGenerator) ContextsFor(jobID int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.contexts[jobID]))
	copy(out, g.contexts[jobID])
	return out
}

// StartOrder returns job IDs in the order their first attempts started.
func (g *MockGenerator) StartOrder() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int, len(g.admitted))
	copy(out, g.admitted)
	return out
}

// MockScorer is a Scorer for testing.
type MockScorer struct {
	// FixedScore is returned when Scores is empty.
	FixedScore float64
	// Scores is consumed per call in order; the last value repeats.
	Scores []float64
	// Hints are attached to every score.
	Hints []string
	// HintsPerCall overrides Hints per call in order; calls past the
	// end get no hints.
	HintsPerCall [][]string
	// Err, when set, makes every call fail.
	Err error

	calls atomic.Int64
}

func (m *MockScorer) Score(ctx context.Context, draft *Draft) (*Score, error) {
	n := int(m.calls.Add(1))
	if m.Err != nil {
		return nil, m.Err
	}
	value := m.FixedScore
	if len(m.Scores) > 0 {
		idx := n - 1
		if idx >= len(m.Scores) {
			idx = len(m.Scores) - 1
		}
		value = m.Scores[idx]
	}
	hints := m.Hints
	if m.HintsPerCall != nil {
		hints = nil
		if n-1 < len(m.HintsPerCall) {
			hints = m.HintsPerCall[n-1]
		}
	}
	return &Score{Value: value, Hints: hints}, nil
}

// Calls returns the total number of Score invocations.
func (m *MockScorer) Calls() int {
	return int(m.calls.Load())
}
