package plan

import (
	"context"
	"fmt"
	"log"
	"time"

	"botcrew.ai/internal/actor"
	"botcrew.ai/internal/world"
)

// Messages understood by the orchestrator actor.
type (
	CreatePlan struct {
		Item     string
		Quantity int
	}
	CreatePlanResult struct {
		GoalID string
		Jobs   int
	}

	// RequestJob asks for the next ready job the worker can run. The job
	// is claimed for the worker before the reply goes out, so two workers
	// can never hold the same job.
	RequestJob struct {
		Profile WorkerProfile
	}
	JobOffer struct {
		GoalID string
		Job    Job // nil when nothing is ready for this worker
	}

	// StartJob flips a claimed job to in-progress when the worker begins
	// executing it.
	StartJob struct {
		GoalID string
		JobID  string
	}
	CompleteJob struct {
		GoalID string
		JobID  string
	}
	FailJob struct {
		GoalID string
		JobID  string
		Reason string
	}
	// ReleaseJob returns a claimed job to the pool.
	ReleaseJob struct {
		GoalID string
		JobID  string
	}

	QueryStatus struct {
		GoalID string // empty for all goals
	}
	StatusReport struct {
		Goals []Status
	}
)

// Recorder receives plan lifecycle events. The history index implements it;
// a nil recorder disables recording.
type Recorder interface {
	PlanCreated(goalID, item string, quantity, jobs int)
	JobEvent(goalID, jobID, event, worker, detail string)
}

// Orchestrator is the actor behavior that owns all goals and their job
// state.
type Orchestrator struct {
	world *world.Snapshot
	log   *log.Logger
	rec   Recorder

	goals map[string]*Goal
	order []string
}

func NewOrchestrator(w *world.Snapshot, rec Recorder, logger *log.Logger) *Orchestrator {
	return &Orchestrator{world: w, log: logger, rec: rec, goals: map[string]*Goal{}}
}

func (o *Orchestrator) OnStart(ctx context.Context) error { return nil }
func (o *Orchestrator) OnStop()                           {}

func (o *Orchestrator) Receive(ctx context.Context, msg any) (any, error) {
	switch m := msg.(type) {
	case CreatePlan:
		return o.create(m)
	case RequestJob:
		return o.offer(m.Profile), nil
	case StartJob:
		return nil, o.start(m)
	case CompleteJob:
		return nil, o.complete(m)
	case FailJob:
		return nil, o.fail(m)
	case ReleaseJob:
		return nil, o.release(m)
	case QueryStatus:
		return o.status(m.GoalID)
	default:
		return nil, fmt.Errorf("orchestrator: unknown message %T", msg)
	}
}

func (o *Orchestrator) create(m CreatePlan) (any, error) {
	g, err := Build(o.world, m.Item, m.Quantity)
	if err != nil {
		return nil, err
	}
	o.goals[g.ID] = g
	o.order = append(o.order, g.ID)
	o.log.Printf("planned %s x%d: %d jobs in %d levels", m.Item, m.Quantity, len(g.jobs), len(g.levels))
	if o.rec != nil {
		o.rec.PlanCreated(g.ID, m.Item, m.Quantity, len(g.jobs))
	}
	return CreatePlanResult{GoalID: g.ID, Jobs: len(g.jobs)}, nil
}

// offer walks goals in creation order and claims the first ready job the
// worker matches.
func (o *Orchestrator) offer(p WorkerProfile) JobOffer {
	for _, id := range o.order {
		g := o.goals[id]
		if g.Done() {
			continue
		}
		for _, j := range g.ReadyJobs(p) {
			if err := g.Claim(j.ID(), p.Name); err != nil {
				continue
			}
			o.log.Printf("job %s -> %s (%s)", j.ID(), p.Name, j.Describe())
			if o.rec != nil {
				o.rec.JobEvent(g.ID, j.ID(), "claimed", p.Name, j.Describe())
			}
			return JobOffer{GoalID: g.ID, Job: j}
		}
	}
	return JobOffer{}
}

func (o *Orchestrator) start(m StartJob) error {
	g, ok := o.goals[m.GoalID]
	if !ok {
		return fmt.Errorf("orchestrator: unknown goal %s", m.GoalID)
	}
	if err := g.Start(m.JobID); err != nil {
		return err
	}
	if o.rec != nil {
		o.rec.JobEvent(g.ID, m.JobID, "started", "", "")
	}
	return nil
}

func (o *Orchestrator) complete(m CompleteJob) error {
	g, ok := o.goals[m.GoalID]
	if !ok {
		return fmt.Errorf("orchestrator: unknown goal %s", m.GoalID)
	}
	if err := g.Complete(m.JobID); err != nil {
		return err
	}
	if o.rec != nil {
		o.rec.JobEvent(g.ID, m.JobID, "done", "", "")
	}
	if g.Done() {
		o.log.Printf("goal %s complete: %s x%d banked", g.ID, g.Item, g.Quantity)
		o.retire(g.ID)
	}
	return nil
}

// retire drops a finished goal so status reports and the offer walk only
// cover live work. The history index keeps the full record.
func (o *Orchestrator) retire(id string) {
	delete(o.goals, id)
	for i, gid := range o.order {
		if gid == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *Orchestrator) fail(m FailJob) error {
	g, ok := o.goals[m.GoalID]
	if !ok {
		return fmt.Errorf("orchestrator: unknown goal %s", m.GoalID)
	}
	if err := g.Fail(m.JobID, m.Reason); err != nil {
		return err
	}
	o.log.Printf("job %s failed: %s", m.JobID, m.Reason)
	if g.Stalled() {
		o.log.Printf("goal %s stalled: %s x%d cannot complete", g.ID, g.Item, g.Quantity)
	}
	if o.rec != nil {
		o.rec.JobEvent(g.ID, m.JobID, "failed", "", m.Reason)
	}
	return nil
}

func (o *Orchestrator) release(m ReleaseJob) error {
	g, ok := o.goals[m.GoalID]
	if !ok {
		return fmt.Errorf("orchestrator: unknown goal %s", m.GoalID)
	}
	if err := g.Release(m.JobID); err != nil {
		return err
	}
	if o.rec != nil {
		o.rec.JobEvent(g.ID, m.JobID, "released", "", "")
	}
	return nil
}

func (o *Orchestrator) status(goalID string) (StatusReport, error) {
	if goalID != "" {
		g, ok := o.goals[goalID]
		if !ok {
			return StatusReport{}, fmt.Errorf("orchestrator: unknown goal %s", goalID)
		}
		return StatusReport{Goals: []Status{g.Status()}}, nil
	}
	rep := StatusReport{}
	for _, id := range o.order {
		rep.Goals = append(rep.Goals, o.goals[id].Status())
	}
	return rep, nil
}

// Handle is the typed client side of the orchestrator actor.
type Handle struct {
	a       *actor.Actor
	timeout time.Duration
}

func NewHandle(a *actor.Actor, timeout time.Duration) *Handle {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handle{a: a, timeout: timeout}
}

func (h *Handle) CreatePlan(ctx context.Context, item string, qty int) (CreatePlanResult, error) {
	v, err := h.a.Ask(ctx, CreatePlan{Item: item, Quantity: qty}, h.timeout)
	if err != nil {
		return CreatePlanResult{}, err
	}
	res, ok := v.(CreatePlanResult)
	if !ok {
		return CreatePlanResult{}, fmt.Errorf("orchestrator: unexpected reply %T", v)
	}
	return res, nil
}

func (h *Handle) NextJob(ctx context.Context, p WorkerProfile) (JobOffer, error) {
	v, err := h.a.Ask(ctx, RequestJob{Profile: p}, h.timeout)
	if err != nil {
		return JobOffer{}, err
	}
	offer, ok := v.(JobOffer)
	if !ok {
		return JobOffer{}, fmt.Errorf("orchestrator: unexpected reply %T", v)
	}
	return offer, nil
}

func (h *Handle) Start(ctx context.Context, goalID, jobID string) error {
	_, err := h.a.Ask(ctx, StartJob{GoalID: goalID, JobID: jobID}, h.timeout)
	return err
}

func (h *Handle) Complete(ctx context.Context, goalID, jobID string) error {
	_, err := h.a.Ask(ctx, CompleteJob{GoalID: goalID, JobID: jobID}, h.timeout)
	return err
}

func (h *Handle) Fail(ctx context.Context, goalID, jobID, reason string) error {
	_, err := h.a.Ask(ctx, FailJob{GoalID: goalID, JobID: jobID, Reason: reason}, h.timeout)
	return err
}

func (h *Handle) Release(ctx context.Context, goalID, jobID string) error {
	_, err := h.a.Ask(ctx, ReleaseJob{GoalID: goalID, JobID: jobID}, h.timeout)
	return err
}

func (h *Handle) Status(ctx context.Context, goalID string) (StatusReport, error) {
	v, err := h.a.Ask(ctx, QueryStatus{GoalID: goalID}, h.timeout)
	if err != nil {
		return StatusReport{}, err
	}
	rep, ok := v.(StatusReport)
	if !ok {
		return StatusReport{}, fmt.Errorf("orchestrator: unexpected reply %T", v)
	}
	return rep, nil
}
