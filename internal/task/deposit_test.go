package task

import (
	"context"
	"testing"

	"botcrew.ai/internal/game"
	"botcrew.ai/internal/game/gametest"
)

func TestDeposit_WholeInventoryAndGold(t *testing.T) {
	client := gametest.NewClient()
	v := newFakeVault()
	tc := newTestContext(client, v)
	ch := tc.Character
	ch.Inventory = []game.InventorySlot{
		{Code: "ash_wood", Quantity: 9},
		{Code: "feather", Quantity: 2},
	}
	ch.Gold = 30
	tc.Character = ch
	client.PutCharacter(ch)

	tk := &Deposit{Gold: true}
	res := drive(t, tk, tc, 10)
	if !res.Done {
		t.Fatalf("not done: %+v", res)
	}
	if tc.Character.InventoryUsed() != 0 || tc.Character.Gold != 0 {
		t.Fatalf("not emptied: inv=%v gold=%d", tc.Character.Inventory, tc.Character.Gold)
	}
	if v.stock["ash_wood"] != 9 || v.stock["feather"] != 2 || v.gold != 30 {
		t.Fatalf("ledger not updated: %+v gold=%d", v.stock, v.gold)
	}
	want := []string{"move", "deposit_items", "deposit_gold"}
	got := client.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestDeposit_NamedItemsOnly(t *testing.T) {
	client := gametest.NewClient()
	v := newFakeVault()
	tc := newTestContext(client, v)
	ch := tc.Character
	ch.Pos = game.Position{X: 4, Y: 1} // already at the bank
	ch.Inventory = []game.InventorySlot{
		{Code: "ash_wood", Quantity: 9},
		{Code: "feather", Quantity: 2},
	}
	tc.Character = ch
	client.PutCharacter(ch)

	tk := &Deposit{Items: []game.ItemQuantity{{Code: "ash_wood", Quantity: 5}}}
	res := drive(t, tk, tc, 10)
	if !res.Done {
		t.Fatalf("not done: %+v", res)
	}
	if tc.Character.CountInInventory("ash_wood") != 4 || tc.Character.CountInInventory("feather") != 2 {
		t.Fatalf("wrong items moved: %v", tc.Character.Inventory)
	}
	if v.stock["ash_wood"] != 5 || v.stock["feather"] != 0 {
		t.Fatalf("ledger: %+v", v.stock)
	}
}

func TestDeposit_EmptyInventoryFinishesQuietly(t *testing.T) {
	client := gametest.NewClient()
	tc := newTestContext(client, newFakeVault())
	tc.Character.Pos = game.Position{X: 4, Y: 1}
	client.PutCharacter(tc.Character)

	tk := &Deposit{}
	res := tk.Execute(context.Background(), tc)
	if !res.Done || res.Err != nil {
		t.Fatalf("expected quiet completion, got %+v", res)
	}
	if len(client.Calls()) != 0 {
		t.Fatalf("no game calls expected, got %v", client.Calls())
	}
}
