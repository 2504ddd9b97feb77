package task

import (
	"context"
	"fmt"

	"botcrew.ai/internal/game"
	"botcrew.ai/internal/world"
)

// Craft crafts an item from materials already in the inventory. With Recycle
// set, the produced items are recycled afterwards; that trades the output
// away for extra crafting xp.
type Craft struct {
	Item     string
	Quantity int
	Recycle  bool

	Crafted  int
	recycled bool
}

func (t *Craft) Execute(ctx context.Context, tc *Context) Result {
	recipe, res := lookupRecipe(tc, t.Item)
	if recipe == nil {
		return res
	}

	if t.Crafted < t.Quantity {
		if res, moved := moveToWorkshop(ctx, tc, recipe.Skill); moved {
			return res
		}
		res, err := tc.Client.Craft(ctx, tc.Character.Name, t.Item, t.Quantity)
		if err != nil {
			return failAction("craft "+t.Item, err)
		}
		t.Crafted = t.Quantity
		line := info("crafted %s x%d, +%d xp", t.Item, t.Quantity, res.Detail.XP)
		if !t.Recycle {
			return finished(res, line)
		}
		return step(res, line)
	}

	if t.Recycle && !t.recycled {
		res, err := tc.Client.Recycle(ctx, tc.Character.Name, t.Item, t.Crafted)
		if err != nil {
			return failAction("recycle "+t.Item, err)
		}
		t.recycled = true
		return finished(res, info("recycled %s x%d", t.Item, t.Crafted))
	}
	return doneNow()
}

func (t *Craft) Progress() string { return fmt.Sprintf("%d/%d", t.Crafted, t.Quantity) }

func (t *Craft) Description() string {
	if t.Recycle {
		return fmt.Sprintf("Craft and recycle %s x%d", t.Item, t.Quantity)
	}
	return fmt.Sprintf("Craft %s x%d", t.Item, t.Quantity)
}

type craftPhase int

const (
	craftCheckExisting craftPhase = iota
	craftReserve
	craftWithdraw
	craftBatches
	craftDeposit
)

type reservationRef struct {
	id   string
	code string
	qty  int
}

// CraftWithMaterials is the full crafting pipeline: verify the bank does not
// already hold the output, reserve the materials, withdraw them, craft in
// inventory-sized batches at the workshop, and deposit everything back.
// Reservations are released on every failure path and committed with the
// actually withdrawn quantities on success.
type CraftWithMaterials struct {
	Item     string
	Quantity int

	Produced     int
	phase        craftPhase
	crafts       int // whole recipe executions still owed
	reservations []reservationRef
}

func (t *CraftWithMaterials) Execute(ctx context.Context, tc *Context) Result {
	recipe, res := lookupRecipe(tc, t.Item)
	if recipe == nil {
		return res
	}

	switch t.phase {
	case craftCheckExisting:
		return t.checkExisting(ctx, tc, recipe)
	case craftReserve:
		return t.reserveMaterials(ctx, tc, recipe)
	case craftWithdraw:
		return t.withdrawMaterials(ctx, tc)
	case craftBatches:
		return t.craftBatch(ctx, tc, recipe)
	default:
		return t.depositOutput(ctx, tc)
	}
}

func (t *CraftWithMaterials) checkExisting(ctx context.Context, tc *Context, recipe *world.Recipe) Result {
	have := tc.Character.CountInInventory(t.Item)
	if tc.Vault != nil {
		if c, err := tc.Vault.Check(ctx, t.Item, 0); err == nil {
			have += c.Free
		}
	}
	if have >= t.Quantity {
		return doneNow(info("%d %s already on hand, skipping craft", have, t.Item))
	}
	remaining := t.Quantity - have
	t.crafts = (remaining + recipe.RecipeYield() - 1) / recipe.RecipeYield()
	t.phase = craftReserve
	return Result{Logs: []LogLine{info("crafting %s: %d runs of the recipe needed", t.Item, t.crafts)}}
}

func (t *CraftWithMaterials) reserveMaterials(ctx context.Context, tc *Context, recipe *world.Recipe) Result {
	for _, req := range recipe.Requirements {
		need := req.Quantity * t.crafts
		id, err := tc.Vault.Reserve(ctx, req.Code, need, tc.Character.Name)
		if err != nil {
			t.releaseAll(ctx, tc)
			return fail(
				game.NewError(game.CodeReservationFailed, "reserve %d %s: %v", need, req.Code, err),
				warn("materials for %s not available: %v", t.Item, err),
			)
		}
		t.reservations = append(t.reservations, reservationRef{id: id, code: req.Code, qty: need})
	}
	t.phase = craftWithdraw
	return Result{Logs: []LogLine{info("reserved materials for %s x%d", t.Item, t.Quantity)}}
}

func (t *CraftWithMaterials) withdrawMaterials(ctx context.Context, tc *Context) Result {
	if res, moved := moveToBank(ctx, tc); moved {
		return res
	}

	want := make([]game.ItemQuantity, 0, len(t.reservations))
	for _, r := range t.reservations {
		want = append(want, game.ItemQuantity{Code: r.code, Quantity: r.qty})
	}
	res, err := tc.Client.WithdrawItems(ctx, tc.Character.Name, want)
	if err != nil {
		// A retriable failure repeats this step, so the reservation must
		// stay. Anything else frees the stock, and the phase rewinds so a
		// resumed task re-plans from actual holdings instead of
		// withdrawing against reservations it no longer has.
		if game.ClassOf(err) != game.ClassRetriable {
			t.releaseAll(ctx, tc)
			t.phase = craftCheckExisting
		}
		return failAction("withdraw materials for "+t.Item, err)
	}

	// The ledger is debited by what the game actually handed over, which
	// may be less than reserved if someone raced us at the counter.
	actual := map[string]int{}
	for _, it := range res.Transferred {
		actual[it.Code] += it.Quantity
	}
	for _, r := range t.reservations {
		if err := tc.Vault.Commit(ctx, r.id, actual[r.code]); err != nil {
			return fail(err, errlg("commit reservation for %s: %v", r.code, err))
		}
	}
	t.reservations = nil
	t.phase = craftBatches
	return step(res, info("withdrew materials for %s", t.Item))
}

func (t *CraftWithMaterials) craftBatch(ctx context.Context, tc *Context, recipe *world.Recipe) Result {
	if res, moved := moveToWorkshop(ctx, tc, recipe.Skill); moved {
		return res
	}

	n := t.crafts
	for _, req := range recipe.Requirements {
		if req.Quantity <= 0 {
			continue
		}
		if possible := tc.Character.CountInInventory(req.Code) / req.Quantity; possible < n {
			n = possible
		}
	}
	// Output needs somewhere to land before the materials are consumed.
	if possible := tc.Character.InventoryFree() / recipe.RecipeYield(); possible < n {
		n = possible
	}
	if n <= 0 {
		t.phase = craftDeposit
		if t.crafts > 0 {
			return Result{Logs: []LogLine{warn("materials ran out with %d runs of %s left", t.crafts, t.Item)}}
		}
		return Result{}
	}

	res, err := tc.Client.Craft(ctx, tc.Character.Name, t.Item, n)
	if err != nil {
		return failAction("craft "+t.Item, err)
	}
	t.crafts -= n
	t.Produced += n * recipe.RecipeYield()
	line := info("crafted %s x%d, +%d xp (%d produced)", t.Item, n*recipe.RecipeYield(), res.Detail.XP, t.Produced)
	if t.crafts <= 0 {
		t.phase = craftDeposit
	}
	return step(res, line)
}

func (t *CraftWithMaterials) depositOutput(ctx context.Context, tc *Context) Result {
	if res, moved := moveToBank(ctx, tc); moved {
		return res
	}
	if len(tc.Character.Inventory) == 0 {
		return doneNow(info("craft %s complete, nothing to deposit", t.Item))
	}

	all := make([]game.ItemQuantity, 0, len(tc.Character.Inventory))
	for _, s := range tc.Character.Inventory {
		all = append(all, game.ItemQuantity{Code: s.Code, Quantity: s.Quantity})
	}
	res, err := tc.Client.DepositItems(ctx, tc.Character.Name, all)
	if err != nil {
		return failAction("deposit crafted "+t.Item, err)
	}
	if tc.Vault != nil && len(res.Transferred) > 0 {
		if err := tc.Vault.DepositItems(res.Transferred); err != nil {
			return fail(err, errlg("record deposit: %v", err))
		}
	}
	return finished(res, info("deposited %s", itemsString(res.Transferred)))
}

func (t *CraftWithMaterials) releaseAll(ctx context.Context, tc *Context) {
	t.ReleaseReservations(ctx, tc.Vault)
}

// ReleaseReservations drops every reservation still held.
func (t *CraftWithMaterials) ReleaseReservations(ctx context.Context, v Vault) {
	for _, r := range t.reservations {
		// Best effort; an unknown id here means it was already consumed.
		_ = v.Release(ctx, r.id)
	}
	t.reservations = nil
}

func (t *CraftWithMaterials) Progress() string {
	return fmt.Sprintf("%d/%d", t.Produced, t.Quantity)
}

func (t *CraftWithMaterials) Description() string {
	return fmt.Sprintf("Craft %s x%d from bank materials", t.Item, t.Quantity)
}

// lookupRecipe resolves the recipe for an item code, failing fatally when the
// item is unknown or not craftable. recipe is nil exactly when the Result is
// the failure to return.
func lookupRecipe(tc *Context, item string) (*world.Recipe, Result) {
	it, ok := tc.World.Item(item)
	if !ok || it.Craft == nil {
		err := game.NewError(game.CodeItemNotFound, "item %q has no recipe", item)
		return nil, fail(err, errlg("%v", err))
	}
	return it.Craft, Result{}
}

func moveToWorkshop(ctx context.Context, tc *Context, skill game.Skill) (Result, bool) {
	pos, ok := tc.World.WorkshopLocation(skill)
	if !ok {
		err := game.NewError(game.CodeWorkshopNotFound, "no %s workshop on the map", skill)
		return fail(err, errlg("%v", err)), true
	}
	return moveTo(ctx, tc, pos, string(skill)+" workshop")
}

func moveToBank(ctx context.Context, tc *Context) (Result, bool) {
	pos, ok := tc.World.BankLocation()
	if !ok {
		err := game.NewError(game.CodeMapContentNotFound, "no bank on the map")
		return fail(err, errlg("%v", err)), true
	}
	return moveTo(ctx, tc, pos, "bank")
}

func itemsString(items []game.ItemQuantity) string {
	if len(items) == 0 {
		return "nothing"
	}
	s := ""
	for i, it := range items {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s x%d", it.Code, it.Quantity)
	}
	return s
}
