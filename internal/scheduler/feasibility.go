package scheduler

// CheckFeasible validates a job set without running it. Callers can use it
// to reject an impossible dependency graph before committing to a run.
func CheckFeasible(jobs []Job) error {
	return checkFeasible(jobs)
}

// checkFeasible validates the job set before any generation starts.
// It rejects duplicate IDs, references to unknown jobs, and dependency
// cycles using Kahn's algorithm. Returns nil when a topological order
// exists.
func checkFeasible(jobs []Job) error {
	byID := make(map[int]Job, len(jobs))
	for _, j := range jobs {
		if _, dup := byID[j.ID]; dup {
			return &DeadlockError{Stuck: []int{j.ID}, Reason: "duplicate job ID"}
		}
		byID[j.ID] = j
	}

	for _, j := range jobs {
		for _, dep := range j.DependsOn {
			if _, ok := byID[dep]; !ok {
				return &DeadlockError{Stuck: []int{j.ID}, Reason: "dependency on unknown job"}
			}
			if dep == j.ID {
				return &DeadlockError{Stuck: []int{j.ID}, Reason: "job depends on itself"}
			}
		}
	}

	// Kahn's algorithm: repeatedly remove jobs with no unmet deps. Any
	// remainder is part of (or downstream of) a cycle.
	indegree := make(map[int]int, len(jobs))
	dependents := make(map[int][]int, len(jobs))
	for _, j := range jobs {
		indegree[j.ID] = len(j.DependsOn)
		for _, dep := range j.DependsOn {
			dependents[dep] = append(dependents[dep], j.ID)
		}
	}

	ready := make([]int, 0, len(jobs))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	removed := 0
	for len(ready) > 0 {
		id := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		removed++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if removed < len(jobs) {
		stuck := make(map[int]bool)
		for id, deg := range indegree {
			if deg > 0 {
				stuck[id] = true
			}
		}
		return newDeadlockError("dependency cycle", stuck)
	}
	return nil
}
