package plan

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"botcrew.ai/internal/game"
	"botcrew.ai/internal/world"
)

// maxBatch caps the quantity of a single gather or fight job so several
// workers can split the haul.
const maxBatch = 20

// Build expands "have qty of item banked" into a leveled job graph. Level 0
// holds the goal item, level k+1 the materials of level k. Quantities for
// the same material at the same level are aggregated before jobs are cut.
func Build(w *world.Snapshot, item string, qty int) (*Goal, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("plan: quantity must be positive, got %d", qty)
	}

	levels, err := levelNeeds(w, item, qty)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	// producers[item] holds the job ids cut for the item one level deeper;
	// it is rebuilt per level, which is exactly the scope a craft's
	// dependencies come from.
	producers := map[string][]string{}

	for lvl := len(levels) - 1; lvl >= 0; lvl-- {
		next := map[string][]string{}
		for _, code := range sortedKeys(levels[lvl]) {
			need := levels[lvl][code]
			it, known := w.Item(code)
			if known && it.Craft != nil {
				var deps []string
				for _, req := range it.Craft.Requirements {
					deps = append(deps, producers[req.Code]...)
				}
				j := &CraftJob{
					jobBase:    jobBase{id: uuid.NewString(), level: lvl, deps: deps},
					Item:       code,
					Quantity:   need,
					Skill:      it.Craft.Skill,
					SkillLevel: it.Craft.Level,
				}
				jobs = append(jobs, j)
				next[code] = []string{j.ID()}
				continue
			}
			leaf, err := leafJobs(w, code, need, lvl)
			if err != nil {
				return nil, err
			}
			for _, j := range leaf {
				jobs = append(jobs, j)
				next[code] = append(next[code], j.ID())
			}
		}
		producers = next
	}

	return newGoal(uuid.NewString(), item, qty, jobs), nil
}

// levelNeeds walks the recipe graph breadth-first. levels[0] is the goal
// item; each deeper level aggregates the materials its parents consume,
// scaled by whole recipe executions.
func levelNeeds(w *world.Snapshot, item string, qty int) ([]map[string]int, error) {
	if _, ok := w.Item(item); !ok {
		if _, ok := w.ResourceForDrop(item); !ok {
			if _, ok := w.MonsterForDrop(item); !ok {
				return nil, game.NewError(game.CodeItemNotFound, "plan: unknown item %q", item)
			}
		}
	}

	levels := []map[string]int{{item: qty}}
	// More levels than distinct items means the recipe graph loops.
	itemCount, _, _, _ := w.Counts()
	for {
		cur := levels[len(levels)-1]
		next := map[string]int{}
		for code, need := range cur {
			it, ok := w.Item(code)
			if !ok || it.Craft == nil {
				continue
			}
			yield := it.Craft.RecipeYield()
			crafts := (need + yield - 1) / yield
			for _, req := range it.Craft.Requirements {
				next[req.Code] += req.Quantity * crafts
			}
		}
		if len(next) == 0 {
			return levels, nil
		}
		levels = append(levels, next)
		if len(levels) > itemCount+1 {
			return nil, fmt.Errorf("plan: recipe graph for %q does not terminate", item)
		}
	}
}

// leafJobs cuts gather or fight jobs for a raw material, fragmented into
// batches of at most maxBatch.
func leafJobs(w *world.Snapshot, code string, need, lvl int) ([]Job, error) {
	if r, ok := w.ResourceForDrop(code); ok {
		var jobs []Job
		for _, batch := range batches(need) {
			jobs = append(jobs, &GatherJob{
				jobBase:    jobBase{id: uuid.NewString(), level: lvl},
				Item:       code,
				Quantity:   batch,
				Resource:   r.Code,
				Skill:      r.Skill,
				SkillLevel: r.Level,
			})
		}
		return jobs, nil
	}
	if m, ok := w.MonsterForDrop(code); ok {
		var jobs []Job
		for _, batch := range batches(need) {
			jobs = append(jobs, &FightJob{
				jobBase:      jobBase{id: uuid.NewString(), level: lvl},
				Item:         code,
				Quantity:     batch,
				Monster:      m.Code,
				MonsterLevel: m.Level,
			})
		}
		return jobs, nil
	}
	return nil, game.NewError(game.CodeItemNotFound, "plan: no source for %q", code)
}

func batches(total int) []int {
	var out []int
	for total > 0 {
		b := total
		if b > maxBatch {
			b = maxBatch
		}
		out = append(out, b)
		total -= b
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
