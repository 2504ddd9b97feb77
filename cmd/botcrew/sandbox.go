package main

import (
	"math/rand"
	"time"

	"botcrew.ai/internal/config"
	"botcrew.ai/internal/game"
	"botcrew.ai/internal/game/gametest"
	"botcrew.ai/internal/world"
)

var sandboxSkills = []game.Skill{
	game.SkillMining,
	game.SkillWoodcutting,
	game.SkillFishing,
	game.SkillWeaponcrafting,
	game.SkillGearcrafting,
	game.SkillJewelrycrafting,
	game.SkillCooking,
	game.SkillAlchemy,
}

// newSandboxClient stands in for the real game API: a gametest client
// seeded from the world snapshot, with position-aware gather and fight
// outcomes so the crew can run end to end without a server.
func newSandboxClient(w *world.Snapshot, workers []config.WorkerSpec, cooldown time.Duration, seed int64) *gametest.Client {
	c := gametest.NewClient()
	c.Cooldown = cooldown

	for _, it := range w.Items() {
		if it.Craft == nil {
			continue
		}
		yield := it.Craft.Quantity
		if yield <= 0 {
			yield = 1
		}
		c.Recipes[it.Code] = gametest.Recipe{
			Yield:        yield,
			Requirements: it.Craft.Requirements,
		}
	}

	// The hooks run under the client lock, so one rng is safe.
	rng := rand.New(rand.NewSource(seed))
	roll := func(drops []world.DropEntry) []game.Drop {
		var out []game.Drop
		for _, d := range drops {
			if d.Rate <= 1 || rng.Intn(d.Rate) == 0 {
				out = append(out, game.Drop{Code: d.Code, Quantity: 1})
			}
		}
		return out
	}
	c.GatherAt = func(pos game.Position) []game.Drop {
		t, ok := w.ContentAt(pos)
		if !ok || t.ContentType != "resource" {
			return nil
		}
		res, ok := w.Resource(t.ContentCode)
		if !ok {
			return nil
		}
		return roll(res.Drops)
	}
	c.FightAt = func(pos game.Position) (string, []game.Drop) {
		t, ok := w.ContentAt(pos)
		if !ok || t.ContentType != "monster" {
			return "win", nil
		}
		m, ok := w.Monster(t.ContentCode)
		if !ok {
			return "win", nil
		}
		if rng.Intn(8) == 0 {
			return "lose", nil
		}
		return "win", roll(m.Drops)
	}

	start := game.Position{}
	if pos, ok := w.BankLocation(); ok {
		start = pos
	}
	for _, spec := range workers {
		skills := make(map[game.Skill]int, len(sandboxSkills))
		for _, s := range sandboxSkills {
			skills[s] = 10
		}
		c.PutCharacter(game.Character{
			Name:         spec.Name,
			Level:        10,
			Pos:          start,
			HP:           120,
			MaxHP:        120,
			InventoryMax: 100,
			SkillLevels:  skills,
		})
	}
	c.SetBank(game.BankState{})
	return c
}
