package task

import (
	"context"
	"fmt"

	"botcrew.ai/internal/game"
)

// Fight kills a monster Target times, resting back to full HP before each
// engagement.
type Fight struct {
	Monster string
	Target  int
	Kills   int
}

func (t *Fight) Execute(ctx context.Context, tc *Context) Result {
	res, fought := engageMonster(ctx, tc, t.Monster)
	if fought == nil {
		return res
	}
	if fought.Detail.Result == "win" {
		t.Kills++
	}
	line := info("fight %s: %s (%d/%d)", t.Monster, fightSummary(fought), t.Kills, t.Target)
	if t.Kills >= t.Target {
		return finished(*fought, line)
	}
	return step(*fought, line)
}

func (t *Fight) Progress() string { return fmt.Sprintf("%d/%d", t.Kills, t.Target) }

func (t *Fight) Description() string {
	return fmt.Sprintf("Fight %s x%d", t.Monster, t.Target)
}

// FightUntilDrop farms a monster until a cumulative quantity of one named
// drop has been collected, with the same holdings prune as GatherUntilDrop.
type FightUntilDrop struct {
	Monster   string
	Drop      string
	Target    int
	Collected int

	pruned bool
}

func (t *FightUntilDrop) Execute(ctx context.Context, tc *Context) Result {
	if !t.pruned {
		t.pruned = true
		if res, done := pruneDropTarget(ctx, tc, t.Drop, &t.Target); done {
			return res
		}
	}

	res, fought := engageMonster(ctx, tc, t.Monster)
	if fought == nil {
		return res
	}
	t.Collected += tallyDrop(fought.Detail.Drops, t.Drop)

	line := info("fight %s: %s (%s: %d/%d)", t.Monster, fightSummary(fought), t.Drop, t.Collected, t.Target)
	if t.Collected >= t.Target {
		return finished(*fought, line, info("collected %d %s", t.Collected, t.Drop))
	}
	return step(*fought, line)
}

func (t *FightUntilDrop) Progress() string {
	return fmt.Sprintf("%d/%d %s", t.Collected, t.Target, t.Drop)
}

func (t *FightUntilDrop) Description() string {
	return fmt.Sprintf("Fight %s until %s x%d", t.Monster, t.Drop, t.Target)
}

// engageMonster performs the next step toward one fight: move to the monster
// tile, rest when hurt, then fight. The *ActionResult is non-nil only when
// the step was the fight itself; otherwise the Result is the step outcome.
func engageMonster(ctx context.Context, tc *Context, monster string) (Result, *game.ActionResult) {
	pos, ok := tc.World.Location(monster)
	if !ok {
		err := game.NewError(game.CodeMonsterNotFound, "monster %q has no map tile", monster)
		return fail(err, errlg("%v", err)), nil
	}
	if res, moved := moveTo(ctx, tc, pos, monster); moved {
		return res, nil
	}
	if tc.Character.HP < tc.Character.MaxHP {
		res, err := tc.Client.Rest(ctx, tc.Character.Name)
		if err != nil {
			return failAction("rest", err), nil
		}
		return step(res, info("rested to %d/%d hp", res.Character.HP, res.Character.MaxHP)), nil
	}

	res, err := tc.Client.Fight(ctx, tc.Character.Name)
	if err != nil {
		return failAction("fight "+monster, err), nil
	}
	return Result{}, &res
}

func fightSummary(res *game.ActionResult) string {
	return fmt.Sprintf("%s, +%d xp, drops %s", res.Detail.Result, res.Detail.XP, dropsString(res.Detail.Drops))
}
