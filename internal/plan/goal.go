package plan

import (
	"fmt"
	"sort"
)

type JobStatus int

const (
	StatusPending JobStatus = iota
	StatusClaimed
	StatusInProgress
	StatusDone
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusClaimed:
		return "claimed"
	case StatusInProgress:
		return "in_progress"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// maxJobAttempts bounds how often a failed job goes back to the pool before
// it is marked failed for good.
const maxJobAttempts = 3

type jobState struct {
	status   JobStatus
	worker   string
	reason   string
	attempts int
}

// Goal is one planned objective and the runtime state of its job graph.
// It is not safe for concurrent use; the orchestrator actor owns it.
type Goal struct {
	ID       string
	Item     string
	Quantity int

	jobs   map[string]Job
	state  map[string]*jobState
	levels [][]string // job ids grouped by dependency depth, level 0 first
}

func newGoal(id, item string, qty int, jobs []Job) *Goal {
	g := &Goal{
		ID:       id,
		Item:     item,
		Quantity: qty,
		jobs:     make(map[string]Job, len(jobs)),
		state:    make(map[string]*jobState, len(jobs)),
	}
	maxLevel := 0
	for _, j := range jobs {
		g.jobs[j.ID()] = j
		g.state[j.ID()] = &jobState{}
		if j.Level() > maxLevel {
			maxLevel = j.Level()
		}
	}
	g.levels = make([][]string, maxLevel+1)
	for _, j := range jobs {
		g.levels[j.Level()] = append(g.levels[j.Level()], j.ID())
	}
	for _, ids := range g.levels {
		sort.Strings(ids)
	}
	return g
}

// ready reports whether every dependency of the job is done.
func (g *Goal) ready(j Job) bool {
	for _, dep := range j.DependsOn() {
		if st, ok := g.state[dep]; !ok || st.status != StatusDone {
			return false
		}
	}
	return true
}

// ReadyJobs returns the pending jobs whose dependencies are satisfied and
// that the given worker can run, deepest level first so raw materials flow
// before the crafts that need them.
func (g *Goal) ReadyJobs(p WorkerProfile) []Job {
	var out []Job
	for lvl := len(g.levels) - 1; lvl >= 0; lvl-- {
		for _, id := range g.levels[lvl] {
			j := g.jobs[id]
			if g.state[id].status != StatusPending {
				continue
			}
			if !j.Matches(p) || !g.ready(j) {
				continue
			}
			out = append(out, j)
		}
	}
	return out
}

// Claim marks a pending job as owned by a worker.
func (g *Goal) Claim(jobID, worker string) error {
	st, ok := g.state[jobID]
	if !ok {
		return fmt.Errorf("goal %s: unknown job %s", g.ID, jobID)
	}
	if st.status != StatusPending {
		return fmt.Errorf("goal %s: job %s is %s", g.ID, jobID, st.status)
	}
	st.status = StatusClaimed
	st.worker = worker
	return nil
}

// Start marks a claimed job as actually being worked.
func (g *Goal) Start(jobID string) error {
	st, ok := g.state[jobID]
	if !ok {
		return fmt.Errorf("goal %s: unknown job %s", g.ID, jobID)
	}
	if st.status != StatusClaimed {
		return fmt.Errorf("goal %s: job %s is %s, not claimed", g.ID, jobID, st.status)
	}
	st.status = StatusInProgress
	return nil
}

// Complete marks a claimed or in-progress job done.
func (g *Goal) Complete(jobID string) error {
	st, ok := g.state[jobID]
	if !ok {
		return fmt.Errorf("goal %s: unknown job %s", g.ID, jobID)
	}
	if st.status != StatusClaimed && st.status != StatusInProgress {
		return fmt.Errorf("goal %s: job %s is %s, not owned", g.ID, jobID, st.status)
	}
	st.status = StatusDone
	return nil
}

// Fail puts the job back in the pool so any worker may retry it. After
// maxJobAttempts failures the job is failed for good; its dependents then
// never become ready and the goal reports itself stalled.
func (g *Goal) Fail(jobID, reason string) error {
	st, ok := g.state[jobID]
	if !ok {
		return fmt.Errorf("goal %s: unknown job %s", g.ID, jobID)
	}
	st.attempts++
	st.reason = reason
	st.worker = ""
	if st.attempts >= maxJobAttempts {
		st.status = StatusFailed
	} else {
		st.status = StatusPending
	}
	return nil
}

// Release puts a claimed job back to pending without counting an attempt,
// for workers that shut down mid-job.
func (g *Goal) Release(jobID string) error {
	st, ok := g.state[jobID]
	if !ok {
		return fmt.Errorf("goal %s: unknown job %s", g.ID, jobID)
	}
	if st.status == StatusClaimed || st.status == StatusInProgress {
		st.status = StatusPending
		st.worker = ""
	}
	return nil
}

// Done reports whether every job completed.
func (g *Goal) Done() bool {
	for _, st := range g.state {
		if st.status != StatusDone {
			return false
		}
	}
	return true
}

// Stalled reports whether a permanently failed job blocks completion.
func (g *Goal) Stalled() bool {
	for _, st := range g.state {
		if st.status == StatusFailed {
			return true
		}
	}
	return false
}

// JobFailure describes one permanently failed job for status queries.
type JobFailure struct {
	JobID    string
	Describe string
	Reason   string
}

// Status summarises the goal's progress.
type Status struct {
	GoalID     string
	Item       string
	Quantity   int
	Total      int
	Pending    int
	Claimed    int
	InProgress int
	Done       int
	Failed     int
	Failures   []JobFailure
}

func (g *Goal) Status() Status {
	s := Status{GoalID: g.ID, Item: g.Item, Quantity: g.Quantity, Total: len(g.jobs)}
	ids := make([]string, 0, len(g.state))
	for id := range g.state {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		switch st := g.state[id]; st.status {
		case StatusPending:
			s.Pending++
		case StatusClaimed:
			s.Claimed++
		case StatusInProgress:
			s.InProgress++
		case StatusDone:
			s.Done++
		case StatusFailed:
			s.Failed++
			s.Failures = append(s.Failures, JobFailure{
				JobID:    id,
				Describe: g.jobs[id].Describe(),
				Reason:   st.reason,
			})
		}
	}
	return s
}
