package task

import (
	"context"
	"fmt"
	"testing"

	"botcrew.ai/internal/bank"
	"botcrew.ai/internal/game"
	"botcrew.ai/internal/game/gametest"
	"botcrew.ai/internal/world"
)

// fakeVault is a synchronous in-memory stand-in for the bank ledger.
type fakeVault struct {
	stock        map[string]int
	reserved     map[string]int
	next         int
	reservations map[string]game.ItemQuantity
	deposits     []game.ItemQuantity
	gold         int
	reserveErr   map[string]error // per item code
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		stock:        map[string]int{},
		reserved:     map[string]int{},
		reservations: map[string]game.ItemQuantity{},
		reserveErr:   map[string]error{},
	}
}

func (v *fakeVault) Check(ctx context.Context, code string, qty int) (bank.CheckResult, error) {
	free := v.stock[code] - v.reserved[code]
	return bank.CheckResult{
		Available: free >= qty,
		Total:     v.stock[code],
		Reserved:  v.reserved[code],
		Free:      free,
		Requested: qty,
	}, nil
}

func (v *fakeVault) Reserve(ctx context.Context, code string, qty int, holder string) (string, error) {
	if err := v.reserveErr[code]; err != nil {
		return "", err
	}
	if v.stock[code]-v.reserved[code] < qty {
		return "", fmt.Errorf("short on %s", code)
	}
	v.reserved[code] += qty
	v.next++
	id := fmt.Sprintf("r%d", v.next)
	v.reservations[id] = game.ItemQuantity{Code: code, Quantity: qty}
	return id, nil
}

func (v *fakeVault) Release(ctx context.Context, id string) error {
	r, ok := v.reservations[id]
	if !ok {
		return fmt.Errorf("unknown reservation %s", id)
	}
	delete(v.reservations, id)
	v.reserved[r.Code] -= r.Quantity
	return nil
}

func (v *fakeVault) Commit(ctx context.Context, id string, actual int) error {
	r, ok := v.reservations[id]
	if !ok {
		return fmt.Errorf("unknown reservation %s", id)
	}
	delete(v.reservations, id)
	v.reserved[r.Code] -= r.Quantity
	v.stock[r.Code] -= actual
	return nil
}

func (v *fakeVault) DepositItems(items []game.ItemQuantity) error {
	for _, it := range items {
		v.stock[it.Code] += it.Quantity
		v.deposits = append(v.deposits, it)
	}
	return nil
}

func (v *fakeVault) DepositGold(qty int) error {
	v.gold += qty
	return nil
}

func (v *fakeVault) live() int { return len(v.reservations) }

// testWorld has an ash tree at (1,1), a chicken at (2,2), a woodcutting
// workshop at (3,0) and the bank at (4,1).
func testWorld() *world.Snapshot {
	items := []world.Item{
		{Code: "ash_wood", Name: "Ash Wood", Type: "resource"},
		{Code: "feather", Name: "Feather", Type: "resource"},
		{Code: "ash_plank", Name: "Ash Plank", Type: "resource", Craft: &world.Recipe{
			Skill:        game.SkillWoodcutting,
			Quantity:     1,
			Requirements: []game.ItemQuantity{{Code: "ash_wood", Quantity: 4}},
		}},
		{Code: "wooden_staff", Name: "Wooden Staff", Type: "weapon", Craft: &world.Recipe{
			Skill:        game.SkillWeaponcrafting,
			Quantity:     1,
			Requirements: []game.ItemQuantity{{Code: "ash_plank", Quantity: 2}, {Code: "feather", Quantity: 1}},
		}},
	}
	resources := []world.Resource{
		{Code: "ash_tree", Skill: game.SkillWoodcutting, Level: 1, Drops: []world.DropEntry{{Code: "ash_wood", Rate: 1}}},
	}
	monsters := []world.Monster{
		{Code: "chicken", Level: 1, Drops: []world.DropEntry{{Code: "feather", Rate: 2}}},
	}
	tiles := []world.Tile{
		{X: 1, Y: 1, ContentType: "resource", ContentCode: "ash_tree"},
		{X: 2, Y: 2, ContentType: "monster", ContentCode: "chicken"},
		{X: 3, Y: 0, ContentType: "workshop", ContentCode: "woodcutting"},
		{X: 4, Y: 1, ContentType: "bank", ContentCode: "bank"},
	}
	return world.New(items, resources, monsters, tiles)
}

func testCharacter() game.Character {
	return game.Character{
		Name:         "alice",
		Level:        5,
		HP:           100,
		MaxHP:        100,
		InventoryMax: 100,
		SkillLevels:  map[game.Skill]int{game.SkillWoodcutting: 5},
	}
}

func newTestContext(client *gametest.Client, v Vault) *Context {
	ch := testCharacter()
	client.PutCharacter(ch)
	return &Context{Character: ch, Client: client, World: testWorld(), Vault: v}
}

// drive runs Execute until Done, an error, or maxSteps, applying the
// returned snapshot the way the worker loop does.
func drive(t *testing.T, tk Task, tc *Context, maxSteps int) Result {
	t.Helper()
	var last Result
	for i := 0; i < maxSteps; i++ {
		last = tk.Execute(context.Background(), tc)
		if last.Character != nil {
			tc.Character = *last.Character
		}
		if last.Done || last.Err != nil {
			return last
		}
	}
	t.Fatalf("task %s did not finish in %d steps (progress %s)", tk.Description(), maxSteps, tk.Progress())
	return last
}
