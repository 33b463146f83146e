package scheduler

import (
	"errors"
	"testing"
)

func TestCheckFeasibleValidGraph(t *testing.T) {
	jobs := []Job{
		{ID: 1},
		{ID: 2, DependsOn: []int{1}},
		{ID: 3, DependsOn: []int{1}},
		{ID: 4, DependsOn: []int{2, 3}},
	}
	if err := checkFeasible(jobs); err != nil {
		t.Errorf("checkFeasible() = %v, want nil", err)
	}
}

func TestCheckFeasibleEmpty(t *testing.T) {
	if err := checkFeasible(nil); err != nil {
		t.Errorf("checkFeasible(nil) = %v, want nil", err)
	}
}

func TestCheckFeasibleDuplicateID(t *testing.T) {
	jobs := []Job{{ID: 1}, {ID: 1}}
	var dl *DeadlockError
	if err := checkFeasible(jobs); !errors.As(err, &dl) {
		t.Fatalf("checkFeasible() = %v, want *DeadlockError", err)
	}
}

func TestCheckFeasibleUnknownDependency(t *testing.T) {
	jobs := []Job{{ID: 1, DependsOn: []int{99}}}
	var dl *DeadlockError
	err := checkFeasible(jobs)
	if !errors.As(err, &dl) {
		t.Fatalf("checkFeasible() = %v, want *DeadlockError", err)
	}
	if len(dl.Stuck) != 1 || dl.Stuck[0] != 1 {
		t.Errorf("Stuck = %v, want [1]", dl.Stuck)
	}
}

func TestCheckFeasibleSelfDependency(t *testing.T) {
	jobs := []Job{{ID: 1, DependsOn: []int{1}}}
	var dl *DeadlockError
	if err := checkFeasible(jobs); !errors.As(err, &dl) {
		t.Fatalf("checkFeasible() = %v, want *DeadlockError", err)
	}
}

func TestCheckFeasibleCycle(t *testing.T) {
	jobs := []Job{
		{ID: 1, DependsOn: []int{3}},
		{ID: 2, DependsOn: []int{1}},
		{ID: 3, DependsOn: []int{2}},
		{ID: 4},
	}
	var dl *DeadlockError
	err := checkFeasible(jobs)
	if !errors.As(err, &dl) {
		t.Fatalf("checkFeasible() = %v, want *DeadlockError", err)
	}
	if len(dl.Stuck) != 3 {
		t.Errorf("Stuck = %v, want the three cycle members", dl.Stuck)
	}
}
