package plan

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"botcrew.ai/internal/actor"
	"botcrew.ai/internal/game"
)

type recordedEvent struct {
	goalID, jobID, event, worker string
}

type fakeRecorder struct {
	plans  int
	events []recordedEvent
}

func (r *fakeRecorder) PlanCreated(goalID, item string, quantity, jobs int) { r.plans++ }

func (r *fakeRecorder) JobEvent(goalID, jobID, event, worker, detail string) {
	r.events = append(r.events, recordedEvent{goalID, jobID, event, worker})
}

func startOrchestrator(t *testing.T, rec Recorder) *Handle {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	a := actor.New("orchestrator", NewOrchestrator(planWorld(), rec, logger), 64, logger)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(a.Stop)
	return NewHandle(a, 2*time.Second)
}

func gathererProfile(name string) WorkerProfile {
	return WorkerProfile{Name: name, Role: game.RoleGatherer, Level: 10, Skills: map[game.Skill]int{game.SkillWoodcutting: 10}}
}

func crafterProfile(name string) WorkerProfile {
	return WorkerProfile{Name: name, Role: game.RoleCrafter, Level: 10, Skills: map[game.Skill]int{game.SkillWoodcutting: 10}}
}

func TestOrchestrator_ClaimsAreExclusive(t *testing.T) {
	h := startOrchestrator(t, nil)
	ctx := context.Background()

	// 25 planks need 100 wood: five gather fragments.
	if _, err := h.CreatePlan(ctx, "ash_plank", 25); err != nil {
		t.Fatalf("create: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		offer, err := h.NextJob(ctx, gathererProfile("g"))
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if offer.Job == nil {
			t.Fatalf("offer %d came back empty", i)
		}
		if seen[offer.Job.ID()] {
			t.Fatalf("job %s offered twice", offer.Job.ID())
		}
		seen[offer.Job.ID()] = true
	}
	// All fragments are claimed; the pool is dry for gatherers.
	offer, err := h.NextJob(ctx, gathererProfile("g2"))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if offer.Job != nil {
		t.Fatalf("expected no job, got %s", offer.Job.Describe())
	}
}

func TestOrchestrator_CompleteUnlocksTheNextLevel(t *testing.T) {
	rec := &fakeRecorder{}
	h := startOrchestrator(t, rec)
	ctx := context.Background()

	created, err := h.CreatePlan(ctx, "ash_plank", 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	offer, err := h.NextJob(ctx, gathererProfile("g"))
	if err != nil || offer.Job == nil {
		t.Fatalf("gather offer: %v %+v", err, offer)
	}
	// Craft stays gated while the gather is in flight.
	if c, err := h.NextJob(ctx, crafterProfile("c")); err != nil || c.Job != nil {
		t.Fatalf("craft offered early: %v %+v", err, c)
	}
	if err := h.Complete(ctx, offer.GoalID, offer.Job.ID()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rep, err := h.Status(ctx, created.GoalID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	s := rep.Goals[0]
	if s.Done != 1 || s.Pending != 1 || s.Failed != 0 {
		t.Fatalf("status = %+v", s)
	}

	c, err := h.NextJob(ctx, crafterProfile("c"))
	if err != nil || c.Job == nil {
		t.Fatalf("craft not unlocked: %v %+v", err, c)
	}
	if err := h.Complete(ctx, c.GoalID, c.Job.ID()); err != nil {
		t.Fatalf("complete craft: %v", err)
	}
	if rec.plans != 1 || len(rec.events) != 4 {
		t.Fatalf("recorder: plans=%d events=%v", rec.plans, rec.events)
	}
}

func TestOrchestrator_CompletedGoalIsRetired(t *testing.T) {
	h := startOrchestrator(t, nil)
	ctx := context.Background()

	created, err := h.CreatePlan(ctx, "ash_plank", 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	profiles := []WorkerProfile{gathererProfile("g"), crafterProfile("c")}
	for drained := false; !drained; {
		drained = true
		for _, p := range profiles {
			offer, err := h.NextJob(ctx, p)
			if err != nil {
				t.Fatalf("next: %v", err)
			}
			if offer.Job == nil {
				continue
			}
			drained = false
			if err := h.Complete(ctx, offer.GoalID, offer.Job.ID()); err != nil {
				t.Fatalf("complete: %v", err)
			}
		}
	}

	// The finished goal is gone from live state; the history index keeps
	// the record.
	if _, err := h.Status(ctx, created.GoalID); err == nil {
		t.Fatalf("retired goal still reachable")
	}
	rep, err := h.Status(ctx, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(rep.Goals) != 0 {
		t.Fatalf("live goals = %+v, want none", rep.Goals)
	}

	// New plans keep working after retirement.
	if _, err := h.CreatePlan(ctx, "ash_plank", 5); err != nil {
		t.Fatalf("create after retire: %v", err)
	}
	if offer, err := h.NextJob(ctx, gathererProfile("g")); err != nil || offer.Job == nil {
		t.Fatalf("fresh goal not offered: %v %+v", err, offer)
	}
}

func TestOrchestrator_FailedJobIsRetriedThenFailsForGood(t *testing.T) {
	h := startOrchestrator(t, nil)
	ctx := context.Background()

	created, err := h.CreatePlan(ctx, "ash_plank", 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var jobID string
	// The first failures re-pend the job, so it keeps coming back.
	for attempt := 0; attempt < 3; attempt++ {
		offer, err := h.NextJob(ctx, gathererProfile("g"))
		if err != nil || offer.Job == nil {
			t.Fatalf("attempt %d: offer %v %+v", attempt, err, offer)
		}
		if jobID == "" {
			jobID = offer.Job.ID()
		} else if offer.Job.ID() != jobID {
			t.Fatalf("different job reoffered: %s vs %s", offer.Job.ID(), jobID)
		}
		if err := h.Fail(ctx, offer.GoalID, jobID, "resource exhausted"); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}

	// Third failure is final.
	if offer, err := h.NextJob(ctx, gathererProfile("g")); err != nil || offer.Job != nil {
		t.Fatalf("exhausted job still offered: %v %+v", err, offer)
	}
	rep, err := h.Status(ctx, created.GoalID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	s := rep.Goals[0]
	if s.Failed != 1 || len(s.Failures) != 1 || s.Failures[0].Reason != "resource exhausted" {
		t.Fatalf("status = %+v", s)
	}
	// Dependents of a failed job never become ready.
	if c, err := h.NextJob(ctx, crafterProfile("c")); err != nil || c.Job != nil {
		t.Fatalf("craft must stay blocked: %v %+v", err, c)
	}
}

func TestOrchestrator_ReleaseReturnsJobToThePool(t *testing.T) {
	h := startOrchestrator(t, nil)
	ctx := context.Background()

	if _, err := h.CreatePlan(ctx, "ash_plank", 5); err != nil {
		t.Fatalf("create: %v", err)
	}
	offer, err := h.NextJob(ctx, gathererProfile("g"))
	if err != nil || offer.Job == nil {
		t.Fatalf("offer: %v %+v", err, offer)
	}
	if err := h.Release(ctx, offer.GoalID, offer.Job.ID()); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := h.NextJob(ctx, gathererProfile("g2"))
	if err != nil || again.Job == nil {
		t.Fatalf("released job not reoffered: %v %+v", err, again)
	}
	if again.Job.ID() != offer.Job.ID() {
		t.Fatalf("different job came back: %s vs %s", again.Job.ID(), offer.Job.ID())
	}
}

func TestOrchestrator_StatusForUnknownGoalFails(t *testing.T) {
	h := startOrchestrator(t, nil)
	if _, err := h.Status(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error")
	}
}
