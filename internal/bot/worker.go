// Package bot runs one worker per game character: a loop that claims jobs
// from the orchestrator, executes their tasks one action at a time, and
// applies the error taxonomy to decide whether to retry, recover, discard,
// or stop.
package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"botcrew.ai/internal/game"
	"botcrew.ai/internal/plan"
	"botcrew.ai/internal/task"
	"botcrew.ai/internal/world"
)

// Planner is the slice of the orchestrator handle the worker uses.
// *plan.Handle implements it.
type Planner interface {
	NextJob(ctx context.Context, p plan.WorkerProfile) (plan.JobOffer, error)
	Start(ctx context.Context, goalID, jobID string) error
	Complete(ctx context.Context, goalID, jobID string) error
	Fail(ctx context.Context, goalID, jobID, reason string) error
	Release(ctx context.Context, goalID, jobID string) error
}

var _ Planner = (*plan.Handle)(nil)

// Config wires one worker. Name, Role and Client are required.
type Config struct {
	Name    string
	Role    game.Role
	Client  game.Client
	World   *world.Snapshot
	Vault   task.Vault
	Planner Planner    // nil disables job claiming
	Sink    StatusSink // nil disables publication
	Logger  *log.Logger

	// PollInterval is the idle wait when there is nothing to do.
	PollInterval time.Duration
	// MaxRetries bounds consecutive retriable failures of one step before
	// the worker gives up for good.
	MaxRetries int
}

type claimedJob struct {
	goalID string
	id     string
}

// Worker owns one character. Run is the only goroutine touching its state;
// Enqueue hands tasks over through a channel.
type Worker struct {
	cfg  Config
	log  *log.Logger
	sink StatusSink

	char    game.Character
	queue   []task.Task
	current task.Task
	job     *claimedJob
	retries int
	last    BotStatus
	sent    bool

	tasks chan task.Task
}

func New(cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "["+cfg.Name+"] ", log.LstdFlags|log.Lmicroseconds)
	}
	sink := cfg.Sink
	if sink == nil {
		sink = nopSink{}
	}
	return &Worker{cfg: cfg, log: cfg.Logger, sink: sink, tasks: make(chan task.Task, 16)}
}

func (w *Worker) Name() string { return w.cfg.Name }

// Enqueue hands the worker a task to run after its current work. Safe from
// any goroutine.
func (w *Worker) Enqueue(t task.Task) {
	w.tasks <- t
}

// Run drives the worker until the context is cancelled or a fatal error
// stops it. A claimed job is released on cancellation and failed on a fatal
// stop.
func (w *Worker) Run(ctx context.Context) error {
	ch, err := w.cfg.Client.GetCharacter(ctx, w.cfg.Name)
	if err != nil {
		return fmt.Errorf("worker %s: load character: %w", w.cfg.Name, err)
	}
	w.char = ch
	w.log.Printf("up: level %d at (%d,%d), role %s", ch.Level, ch.Pos.X, ch.Pos.Y, w.cfg.Role)

	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return ctx.Err()
		default:
		}
		if err := w.waitReady(ctx); err != nil {
			w.shutdown()
			return err
		}
		w.drainTasks()

		if w.current == nil && !w.nextWork(ctx) {
			w.publish("idle", nil)
			if err := w.sleep(ctx, w.cfg.PollInterval); err != nil {
				w.shutdown()
				return err
			}
			continue
		}

		if fatal := w.step(ctx); fatal != nil {
			w.publish("stopped", nil)
			return fatal
		}
	}
}

// waitReady blocks until the character is off cooldown.
func (w *Worker) waitReady(ctx context.Context) error {
	d := w.char.ReadyIn(time.Now())
	if d <= 0 {
		return nil
	}
	return w.sleep(ctx, d)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (w *Worker) drainTasks() {
	for {
		select {
		case t := <-w.tasks:
			w.queue = append(w.queue, t)
		default:
			return
		}
	}
}

// nextWork pops the queue, then asks the orchestrator, then falls back to
// the role's idle behavior. Reports whether there is now a current task.
func (w *Worker) nextWork(ctx context.Context) bool {
	if len(w.queue) > 0 {
		w.current = w.queue[0]
		w.queue = w.queue[1:]
		w.retries = 0
		return true
	}
	if w.claimJob(ctx) {
		return true
	}
	return w.idleWork()
}

func (w *Worker) claimJob(ctx context.Context) bool {
	if w.cfg.Planner == nil {
		return false
	}
	offer, err := w.cfg.Planner.NextJob(ctx, w.profile())
	if err != nil {
		w.log.Printf("job request failed: %v", err)
		return false
	}
	if offer.Job == nil {
		return false
	}
	tasks, err := offer.Job.Tasks(w.cfg.World)
	if err != nil {
		w.log.Printf("job %s unusable: %v", offer.Job.ID(), err)
		_ = w.cfg.Planner.Fail(ctx, offer.GoalID, offer.Job.ID(), err.Error())
		return false
	}
	if len(tasks) == 0 {
		_ = w.cfg.Planner.Complete(ctx, offer.GoalID, offer.Job.ID())
		return false
	}
	if err := w.cfg.Planner.Start(ctx, offer.GoalID, offer.Job.ID()); err != nil {
		w.log.Printf("job %s start rejected: %v", offer.Job.ID(), err)
		return false
	}
	w.job = &claimedJob{goalID: offer.GoalID, id: offer.Job.ID()}
	w.queue = append(w.queue, tasks[1:]...)
	w.current = tasks[0]
	w.retries = 0
	w.log.Printf("claimed job %s: %s", offer.Job.ID(), offer.Job.Describe())
	return true
}

// idleWork keeps gatherers and fighters productive between jobs.
func (w *Worker) idleWork() bool {
	if w.cfg.World == nil {
		return false
	}
	switch w.cfg.Role {
	case game.RoleGatherer:
		skill, level := w.bestGatherSkill()
		r, ok := w.cfg.World.HighestGatherable(skill, level)
		if !ok || len(r.Drops) == 0 {
			return false
		}
		w.current = &task.GatherUntilDrop{Resource: r.Code, Drop: r.Drops[0].Code, Target: 20}
		w.queue = append(w.queue, &task.Deposit{})
	case game.RoleFighter:
		m, ok := w.cfg.World.StrongestMonster(w.char.Level)
		if !ok {
			return false
		}
		w.current = &task.Fight{Monster: m.Code, Target: 5}
		w.queue = append(w.queue, &task.Deposit{Gold: true})
	default:
		return false
	}
	w.retries = 0
	w.log.Printf("idle work: %s", w.current.Description())
	return true
}

func (w *Worker) bestGatherSkill() (game.Skill, int) {
	best := game.SkillMining
	bestLvl := 0
	for _, s := range []game.Skill{game.SkillMining, game.SkillWoodcutting, game.SkillFishing} {
		if lvl := w.char.SkillLevel(s); lvl > bestLvl {
			best, bestLvl = s, lvl
		}
	}
	return best, bestLvl
}

func (w *Worker) profile() plan.WorkerProfile {
	return plan.WorkerProfile{
		Name:   w.cfg.Name,
		Role:   w.cfg.Role,
		Level:  w.char.Level,
		Skills: w.char.SkillLevels,
	}
}

// step executes one task action and applies the error taxonomy. A non-nil
// return stops the worker.
func (w *Worker) step(ctx context.Context) error {
	res := w.execute(ctx)
	for _, l := range res.Logs {
		w.log.Printf("%s %s", l.Level, l.Message)
		w.sink.BotLog(w.cfg.Name, l.Level, l.Message)
	}
	if res.Character != nil {
		w.char = *res.Character
	}

	if res.Err != nil {
		return w.handleFailure(ctx, res.Err)
	}

	w.retries = 0
	if res.Done {
		w.current = nil
		if len(w.queue) == 0 && w.job != nil {
			if err := w.cfg.Planner.Complete(ctx, w.job.goalID, w.job.id); err != nil {
				w.log.Printf("complete job %s: %v", w.job.id, err)
			}
			w.job = nil
		}
	}
	w.publish("working", w.current)
	return nil
}

// execute runs one Execute call, converting a panic into a task failure so
// the loop survives.
func (w *Worker) execute(ctx context.Context) (res task.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = task.Result{Err: fmt.Errorf("task panic: %v", r)}
		}
	}()
	tc := &task.Context{
		Character: w.char,
		Client:    w.cfg.Client,
		World:     w.cfg.World,
		Vault:     w.cfg.Vault,
	}
	return w.current.Execute(ctx, tc)
}

func (w *Worker) handleFailure(ctx context.Context, err error) error {
	switch game.ClassOf(err) {
	case game.ClassFatal:
		w.log.Printf("fatal: %v", err)
		w.releaseHeld(ctx, w.current)
		w.failJob(ctx, err.Error())
		return fmt.Errorf("worker %s: %w", w.cfg.Name, err)

	case game.ClassRecoverable:
		if w.recoverTask(err) {
			return nil
		}
		// No recovery applies; fall through to discarding the task.
		w.log.Printf("unrecoverable in practice: %v", err)
		w.discard(ctx, err)
		return nil

	case game.ClassRetriable:
		w.retries++
		if w.retries > w.cfg.MaxRetries {
			w.log.Printf("retry budget exhausted: %v", err)
			w.releaseHeld(ctx, w.current)
			w.failJob(ctx, err.Error())
			return fmt.Errorf("worker %s: %d retries: %w", w.cfg.Name, w.retries-1, err)
		}
		w.log.Printf("retrying (%d/%d): %v", w.retries, w.cfg.MaxRetries, err)
		return nil

	default:
		w.discard(ctx, err)
		return nil
	}
}

// recoverTask pauses the current task and queues corrective work ahead of
// it. On a full inventory the worker first crafts raw materials down into
// their only product when a recipe allows it, then deposits everything.
func (w *Worker) recoverTask(err error) bool {
	if game.CodeOf(err) != game.CodeInventoryFull {
		return false
	}
	var recovery []task.Task
	if item, crafts, ok := w.craftDown(); ok {
		recovery = append(recovery, &task.Craft{Item: item, Quantity: crafts})
	}
	recovery = append(recovery, &task.Deposit{})

	w.log.Printf("inventory full, recovering with %d corrective tasks", len(recovery))
	w.queue = append(append(recovery, w.current), w.queue...)
	w.current = nil
	w.retries = 0
	return true
}

// craftDown looks for the most held raw material whose only consuming
// recipe this character can run.
func (w *Worker) craftDown() (string, int, bool) {
	if w.cfg.World == nil {
		return "", 0, false
	}
	bestQty := 0
	bestCode := ""
	for _, s := range w.char.Inventory {
		if s.Quantity > bestQty {
			bestQty, bestCode = s.Quantity, s.Code
		}
	}
	if bestCode == "" {
		return "", 0, false
	}
	it, ok := w.cfg.World.SingleRecipeConsumer(bestCode)
	if !ok {
		return "", 0, false
	}
	if w.char.SkillLevel(it.Craft.Skill) < it.Craft.Level {
		return "", 0, false
	}
	crafts := bestQty / it.Craft.Requirements[0].Quantity
	if crafts <= 0 {
		return "", 0, false
	}
	return it.Code, crafts, true
}

func (w *Worker) discard(ctx context.Context, err error) {
	w.log.Printf("discarding task %s: %v", w.current.Description(), err)
	w.releaseHeld(ctx, w.current)
	w.current = nil
	w.retries = 0
	w.failJob(ctx, err.Error())
}

// releaseHeld returns reservations held by dropped tasks to the vault.
func (w *Worker) releaseHeld(ctx context.Context, tasks ...task.Task) {
	if w.cfg.Vault == nil {
		return
	}
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if h, ok := t.(task.ReservationHolder); ok {
			h.ReleaseReservations(ctx, w.cfg.Vault)
		}
	}
}

// failJob reports the current job failed and clears the queue that belonged
// to it.
func (w *Worker) failJob(ctx context.Context, reason string) {
	if w.job == nil {
		return
	}
	if err := w.cfg.Planner.Fail(ctx, w.job.goalID, w.job.id, reason); err != nil {
		w.log.Printf("fail job %s: %v", w.job.id, err)
	}
	w.job = nil
	w.releaseHeld(ctx, w.queue...)
	w.queue = nil
}

// shutdown releases a claimed job so another worker can pick it up, along
// with any reservations held by dropped tasks. The run context is already
// cancelled here, so the cleanup gets its own.
func (w *Worker) shutdown() {
	rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.releaseHeld(rctx, w.current)
	w.releaseHeld(rctx, w.queue...)
	w.current = nil
	w.queue = nil
	if w.job != nil {
		if err := w.cfg.Planner.Release(rctx, w.job.goalID, w.job.id); err != nil {
			w.log.Printf("release job %s: %v", w.job.id, err)
		}
		w.job = nil
	}
	w.publish("stopped", nil)
}

// publish sends status to the sink, skipping duplicates.
func (w *Worker) publish(state string, cur task.Task) {
	s := BotStatus{
		Name:  w.cfg.Name,
		Role:  string(w.cfg.Role),
		State: state,
		Queue: len(w.queue),
		HP:    w.char.HP,
		MaxHP: w.char.MaxHP,
		Gold:  w.char.Gold,
		X:     w.char.Pos.X,
		Y:     w.char.Pos.Y,
	}
	if cur != nil {
		s.Task = cur.Description()
		s.Progress = cur.Progress()
	}
	if w.sent && s == w.last {
		return
	}
	w.last = s
	w.sent = true
	w.sink.BotChanged(s)
}
