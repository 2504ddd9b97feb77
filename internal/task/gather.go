package task

import (
	"context"
	"fmt"

	"botcrew.ai/internal/bank"
	"botcrew.ai/internal/game"
)

// Gather works a resource tile until it has been harvested Target times.
type Gather struct {
	Resource string
	Target   int
	Gathered int
}

func (t *Gather) Execute(ctx context.Context, tc *Context) Result {
	pos, ok := tc.World.Location(t.Resource)
	if !ok {
		err := game.NewError(game.CodeResourceNotFound, "resource %q has no map tile", t.Resource)
		return fail(err, errlg("%v", err))
	}
	if res, moved := moveTo(ctx, tc, pos, t.Resource); moved {
		return res
	}

	res, err := tc.Client.Gather(ctx, tc.Character.Name)
	if err != nil {
		return failAction("gather", err)
	}
	t.Gathered++

	line := info("gathered %s (%d/%d)", dropsString(res.Detail.Drops), t.Gathered, t.Target)
	if t.Gathered >= t.Target {
		return finished(res, line, info("gathering complete at %s", t.Resource))
	}
	return step(res, line)
}

func (t *Gather) Progress() string { return fmt.Sprintf("%d/%d", t.Gathered, t.Target) }

func (t *Gather) Description() string {
	return fmt.Sprintf("Gather %s x%d", t.Resource, t.Target)
}

// GatherUntilDrop works a resource until a cumulative quantity of one named
// drop has been collected. Before the first action it prunes the target
// against items already held in the inventory and free in the bank, possibly
// completing without acting at all.
type GatherUntilDrop struct {
	Resource  string
	Drop      string
	Target    int
	Collected int

	pruned bool
}

func (t *GatherUntilDrop) Execute(ctx context.Context, tc *Context) Result {
	if !t.pruned {
		t.pruned = true
		if res, done := pruneDropTarget(ctx, tc, t.Drop, &t.Target); done {
			return res
		}
	}

	pos, ok := tc.World.Location(t.Resource)
	if !ok {
		err := game.NewError(game.CodeResourceNotFound, "resource %q has no map tile", t.Resource)
		return fail(err, errlg("%v", err))
	}
	if res, moved := moveTo(ctx, tc, pos, t.Resource); moved {
		return res
	}

	res, err := tc.Client.Gather(ctx, tc.Character.Name)
	if err != nil {
		return failAction("gather", err)
	}
	t.Collected += tallyDrop(res.Detail.Drops, t.Drop)

	line := info("gathered %s (%s: %d/%d)", dropsString(res.Detail.Drops), t.Drop, t.Collected, t.Target)
	if t.Collected >= t.Target {
		return finished(res, line, info("collected %d %s", t.Collected, t.Drop))
	}
	return step(res, line)
}

func (t *GatherUntilDrop) Progress() string {
	return fmt.Sprintf("%d/%d %s", t.Collected, t.Target, t.Drop)
}

func (t *GatherUntilDrop) Description() string {
	return fmt.Sprintf("Gather until %s x%d", t.Drop, t.Target)
}

// pruneDropTarget shrinks *target by holdings already on hand (inventory
// plus unreserved bank stock). done is true when nothing remains to collect.
func pruneDropTarget(ctx context.Context, tc *Context, drop string, target *int) (Result, bool) {
	have := tc.Character.CountInInventory(drop)
	if tc.Vault != nil {
		if c, err := tc.Vault.Check(ctx, drop, 0); err == nil {
			have += c.Free
		}
		// A failed check only skips the prune; gathering a little extra
		// is harmless.
	}
	if have <= 0 {
		return Result{}, false
	}
	if have >= *target {
		return doneNow(info("already holding %d %s, nothing to collect", have, drop)), true
	}
	remaining := *target - have
	res := Result{Logs: []LogLine{info("holding %d %s, %d left to collect", have, drop, remaining)}}
	*target = remaining
	return res, true
}

func tallyDrop(drops []game.Drop, code string) int {
	n := 0
	for _, d := range drops {
		if d.Code == code {
			n += d.Quantity
		}
	}
	return n
}

func dropsString(drops []game.Drop) string {
	if len(drops) == 0 {
		return "nothing"
	}
	s := ""
	for i, d := range drops {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s x%d", d.Code, d.Quantity)
	}
	return s
}

var _ Vault = (*bank.Handle)(nil)
