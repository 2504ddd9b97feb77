package task

import (
	"context"
	"testing"

	"botcrew.ai/internal/game"
	"botcrew.ai/internal/game/gametest"
)

func TestFight_MovesRestsAndCountsWins(t *testing.T) {
	client := gametest.NewClient()
	tc := newTestContext(client, nil)
	ch := tc.Character
	ch.HP = 40 // hurt; must rest before the first swing
	tc.Character = ch
	client.PutCharacter(ch)

	tk := &Fight{Monster: "chicken", Target: 2}
	res := drive(t, tk, tc, 10)
	if !res.Done || tk.Kills != 2 {
		t.Fatalf("done=%v kills=%d", res.Done, tk.Kills)
	}
	want := []string{"move", "rest", "fight", "fight"}
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

func TestFight_LossDoesNotCount(t *testing.T) {
	client := gametest.NewClient()
	client.FightOutcome = "lose"
	tc := newTestContext(client, nil)

	tk := &Fight{Monster: "chicken", Target: 1}
	tc.Character.Pos = game.Position{X: 2, Y: 2}
	client.PutCharacter(tc.Character)

	res := tk.Execute(context.Background(), tc)
	if res.Done || res.Err != nil || tk.Kills != 0 {
		t.Fatalf("loss must not count a kill: %+v kills=%d", res, tk.Kills)
	}
	// The losing fight left us at 1 hp; the next step must be a rest.
	tc.Character = *res.Character
	res = tk.Execute(context.Background(), tc)
	if res.Err != nil {
		t.Fatalf("rest step: %v", res.Err)
	}
	calls := client.Calls()
	if calls[len(calls)-1] != "rest" {
		t.Fatalf("expected rest after loss, calls = %v", calls)
	}
}

func TestFight_UnknownMonsterIsFatal(t *testing.T) {
	tc := newTestContext(gametest.NewClient(), nil)
	tk := &Fight{Monster: "dragon", Target: 1}
	res := tk.Execute(context.Background(), tc)
	if game.ClassOf(res.Err) != game.ClassFatal {
		t.Fatalf("expected fatal, got %v", res.Err)
	}
}

func TestFightUntilDrop_CollectsAcrossWins(t *testing.T) {
	client := gametest.NewClient()
	client.FightDrops = []game.Drop{{Code: "feather", Quantity: 1}}
	tc := newTestContext(client, nil)

	tk := &FightUntilDrop{Monster: "chicken", Drop: "feather", Target: 3}
	res := drive(t, tk, tc, 10)
	if !res.Done || tk.Collected != 3 {
		t.Fatalf("done=%v collected=%d", res.Done, tk.Collected)
	}
}

func TestFightUntilDrop_PrunedByHoldings(t *testing.T) {
	v := newFakeVault()
	v.stock["feather"] = 5
	client := gametest.NewClient()
	tc := newTestContext(client, v)

	tk := &FightUntilDrop{Monster: "chicken", Drop: "feather", Target: 4}
	res := tk.Execute(context.Background(), tc)
	if !res.Done {
		t.Fatalf("expected prune to finish the task, got %+v", res)
	}
	if len(client.Calls()) != 0 {
		t.Fatalf("no game calls expected, got %v", client.Calls())
	}
}
