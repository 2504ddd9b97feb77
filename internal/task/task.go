// Package task contains the resumable task state machines workers execute.
// A task advances one externally visible action per Execute call and
// returns; the worker loop owns pacing, cooldown checks and cancellation.
package task

import (
	"context"
	"fmt"

	"botcrew.ai/internal/bank"
	"botcrew.ai/internal/game"
	"botcrew.ai/internal/world"
)

// Vault is the slice of the bank ledger tasks need. *bank.Handle implements
// it; tests substitute an in-memory fake.
type Vault interface {
	Check(ctx context.Context, code string, qty int) (bank.CheckResult, error)
	Reserve(ctx context.Context, code string, qty int, holder string) (string, error)
	Release(ctx context.Context, reservationID string) error
	Commit(ctx context.Context, reservationID string, actual int) error
	DepositItems(items []game.ItemQuantity) error
	DepositGold(qty int) error
}

// Context carries everything a task step may touch. Character is the
// worker's current snapshot; tasks never mutate it, they return a fresh one
// in the Result.
type Context struct {
	Character game.Character
	Client    game.Client
	World     *world.Snapshot
	Vault     Vault
}

type LogLine struct {
	Level   string // "INFO", "WARN", "ERROR"
	Message string
}

// Result of one Execute step.
type Result struct {
	Done      bool
	Err       error
	Character *game.Character // non-nil when the step refreshed the snapshot
	Logs      []LogLine
}

// Task is a resumable unit of work owned by exactly one worker.
type Task interface {
	// Execute performs at most one externally visible action and returns.
	Execute(ctx context.Context, tc *Context) Result
	// Progress is a short human-readable position within the task.
	Progress() string
	// Description names the task for logs and the dashboard.
	Description() string
}

// ReservationHolder is implemented by tasks that can hold live vault
// reservations between steps. The worker calls it when it drops such a task
// before completion, so a reservation never outlives its task.
type ReservationHolder interface {
	ReleaseReservations(ctx context.Context, v Vault)
}

func info(format string, args ...any) LogLine  { return logf("INFO", format, args...) }
func warn(format string, args ...any) LogLine  { return logf("WARN", format, args...) }
func errlg(format string, args ...any) LogLine { return logf("ERROR", format, args...) }

func logf(level, format string, args ...any) LogLine {
	return LogLine{Level: level, Message: fmt.Sprintf(format, args...)}
}

func step(res game.ActionResult, lines ...LogLine) Result {
	ch := res.Character
	return Result{Character: &ch, Logs: lines}
}

func finished(res game.ActionResult, lines ...LogLine) Result {
	ch := res.Character
	return Result{Done: true, Character: &ch, Logs: lines}
}

func doneNow(lines ...LogLine) Result {
	return Result{Done: true, Logs: lines}
}

func fail(err error, lines ...LogLine) Result {
	return Result{Err: err, Logs: lines}
}

// failAction reports a failed game call with a level matching its class.
func failAction(what string, err error) Result {
	level := "ERROR"
	switch game.ClassOf(err) {
	case game.ClassRecoverable, game.ClassRetriable:
		level = "WARN"
	}
	return Result{Err: err, Logs: []LogLine{logf(level, "%s failed: %v", what, err)}}
}

// moveTo issues a move step when the character is not already on pos.
// ok is false when no move was needed.
func moveTo(ctx context.Context, tc *Context, pos game.Position, label string) (Result, bool) {
	if tc.Character.Pos == pos {
		return Result{}, false
	}
	res, err := tc.Client.Move(ctx, tc.Character.Name, pos.X, pos.Y)
	if err != nil {
		return failAction("move to "+label, err), true
	}
	return step(res, info("moving to %s at (%d, %d)", label, pos.X, pos.Y)), true
}
