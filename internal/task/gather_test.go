package task

import (
	"context"
	"testing"

	"botcrew.ai/internal/game"
	"botcrew.ai/internal/game/gametest"
)

func TestGather_MovesThenGathers(t *testing.T) {
	client := gametest.NewClient()
	client.GatherDrops = []game.Drop{{Code: "ash_wood", Quantity: 1}}
	tc := newTestContext(client, nil)

	tk := &Gather{Resource: "ash_tree", Target: 3}
	res := drive(t, tk, tc, 10)
	if !res.Done {
		t.Fatalf("expected done, got %+v", res)
	}
	want := []string{"move", "gather", "gather", "gather"}
	got := client.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
	if tc.Character.CountInInventory("ash_wood") != 3 {
		t.Fatalf("inventory = %v", tc.Character.Inventory)
	}
}

func TestGather_MissingTileIsFatal(t *testing.T) {
	tc := newTestContext(gametest.NewClient(), nil)
	tk := &Gather{Resource: "gold_vein", Target: 1}
	res := tk.Execute(context.Background(), tc)
	if res.Err == nil || game.ClassOf(res.Err) != game.ClassFatal {
		t.Fatalf("expected fatal error, got %+v", res)
	}
}

func TestGather_InventoryFullSurfacesRecoverable(t *testing.T) {
	client := gametest.NewClient()
	client.GatherDrops = []game.Drop{{Code: "ash_wood", Quantity: 1}}
	client.FailNext("gather", game.NewError(game.CodeInventoryFull, "inventory full"))
	tc := newTestContext(client, nil)

	tk := &Gather{Resource: "ash_tree", Target: 2}
	// Move first, then the failing gather.
	res := tk.Execute(context.Background(), tc)
	if res.Err != nil {
		t.Fatalf("move step failed: %v", res.Err)
	}
	tc.Character = *res.Character
	res = tk.Execute(context.Background(), tc)
	if game.ClassOf(res.Err) != game.ClassRecoverable {
		t.Fatalf("expected recoverable, got %v", res.Err)
	}
	if tk.Gathered != 0 {
		t.Fatalf("failed gather must not count")
	}

	// The task resumes where it stopped once the condition is cleared.
	res = drive(t, tk, tc, 10)
	if !res.Done || tk.Gathered != 2 {
		t.Fatalf("resume failed: done=%v gathered=%d", res.Done, tk.Gathered)
	}
}

func TestGatherUntilDrop_CountsOnlyTheWantedDrop(t *testing.T) {
	client := gametest.NewClient()
	client.GatherDrops = []game.Drop{{Code: "ash_wood", Quantity: 2}, {Code: "sap", Quantity: 1}}
	tc := newTestContext(client, nil)

	tk := &GatherUntilDrop{Resource: "ash_tree", Drop: "ash_wood", Target: 5}
	res := drive(t, tk, tc, 10)
	if !res.Done || tk.Collected != 6 {
		t.Fatalf("done=%v collected=%d", res.Done, tk.Collected)
	}
}

func TestGatherUntilDrop_PrunedByHoldings(t *testing.T) {
	v := newFakeVault()
	v.stock["ash_wood"] = 4
	client := gametest.NewClient()
	tc := newTestContext(client, v)
	ch := tc.Character
	ch.Inventory = []game.InventorySlot{{Code: "ash_wood", Quantity: 2}}
	tc.Character = ch
	client.PutCharacter(ch)

	// 2 in inventory + 4 free in bank cover the target outright.
	tk := &GatherUntilDrop{Resource: "ash_tree", Drop: "ash_wood", Target: 6}
	res := tk.Execute(context.Background(), tc)
	if !res.Done {
		t.Fatalf("expected prune to finish the task, got %+v", res)
	}
	if len(client.Calls()) != 0 {
		t.Fatalf("no game calls expected, got %v", client.Calls())
	}
}

func TestGatherUntilDrop_PruneShrinksTarget(t *testing.T) {
	v := newFakeVault()
	v.stock["ash_wood"] = 4
	client := gametest.NewClient()
	client.GatherDrops = []game.Drop{{Code: "ash_wood", Quantity: 1}}
	tc := newTestContext(client, v)

	tk := &GatherUntilDrop{Resource: "ash_tree", Drop: "ash_wood", Target: 6}
	res := drive(t, tk, tc, 10)
	if !res.Done || tk.Collected != 2 {
		t.Fatalf("want 2 gathered after prune, got done=%v collected=%d", res.Done, tk.Collected)
	}
}
