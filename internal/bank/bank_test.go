package bank

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"botcrew.ai/internal/actor"
	"botcrew.ai/internal/game"
	"botcrew.ai/internal/game/gametest"
)

func startLedger(t *testing.T, state game.BankState) (*actor.Actor, *Handle) {
	t.Helper()
	client := gametest.NewClient()
	client.SetBank(state)
	logger := log.New(io.Discard, "", 0)
	a := actor.New("bank", NewLedger(client, logger), 128, logger)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start bank: %v", err)
	}
	t.Cleanup(a.Stop)
	return a, NewHandle(a, 2*time.Second)
}

func TestLedger_ReserveRespectsFreeQuantity(t *testing.T) {
	_, h := startLedger(t, game.BankState{Items: []game.ItemQuantity{{Code: "ash_wood", Quantity: 5}}})
	ctx := context.Background()

	id, err := h.Reserve(ctx, "ash_wood", 5, "alice")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// All five are earmarked; another worker sees nothing free.
	c, err := h.Check(ctx, "ash_wood", 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if c.Free != 0 || c.Total != 5 || c.Reserved != 5 || c.Available {
		t.Fatalf("unexpected check after reserve: %+v", c)
	}

	if _, err := h.Reserve(ctx, "ash_wood", 1, "bob"); err == nil {
		t.Fatalf("expected shortfall")
	} else {
		var sf *ShortfallError
		if !errors.As(err, &sf) {
			t.Fatalf("expected ShortfallError, got %v", err)
		}
	}

	// Releasing frees the full quantity again.
	if err := h.Release(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	c, err = h.Check(ctx, "ash_wood", 5)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if c.Free != 5 || !c.Available {
		t.Fatalf("release leaked: %+v", c)
	}
}

func TestLedger_ReleaseThenReserveSucceedsAgain(t *testing.T) {
	_, h := startLedger(t, game.BankState{Items: []game.ItemQuantity{{Code: "iron_ore", Quantity: 10}}})
	ctx := context.Background()

	id, err := h.Reserve(ctx, "iron_ore", 10, "alice")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := h.Release(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := h.Reserve(ctx, "iron_ore", 10, "bob"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	// A reservation id is consumed exactly once.
	if err := h.Release(ctx, id); err == nil {
		t.Fatalf("expected unknown reservation on double release")
	}
}

func TestLedger_CommitUsesActualQuantity(t *testing.T) {
	a, h := startLedger(t, game.BankState{Items: []game.ItemQuantity{{Code: "ash_wood", Quantity: 20}}})
	ctx := context.Background()

	id, err := h.Reserve(ctx, "ash_wood", 10, "alice")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// The game only handed over 7.
	if err := h.Commit(ctx, id, 7); err != nil {
		t.Fatalf("commit: %v", err)
	}

	c, err := h.Check(ctx, "ash_wood", 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if c.Total != 13 || c.Reserved != 0 || c.Free != 13 {
		t.Fatalf("commit should reduce balance by actual: %+v", c)
	}

	if err := h.Commit(ctx, id, 7); err == nil {
		t.Fatalf("expected unknown reservation on double commit")
	}
	var unknown *UnknownReservationError
	v, askErr := a.Ask(ctx, Commit{ReservationID: "nope", ActualQuantity: 1}, time.Second)
	if askErr == nil || !errors.As(askErr, &unknown) {
		t.Fatalf("expected UnknownReservationError, got %v %v", v, askErr)
	}
}

func TestLedger_GoldSharesTheReservationTable(t *testing.T) {
	_, h := startLedger(t, game.BankState{Gold: 100})
	ctx := context.Background()

	id, err := h.Reserve(ctx, GoldCode, 60, "alice")
	if err != nil {
		t.Fatalf("reserve gold: %v", err)
	}
	if _, err := h.Reserve(ctx, GoldCode, 50, "bob"); err == nil {
		t.Fatalf("expected gold shortfall")
	}
	if err := h.Commit(ctx, id, 60); err != nil {
		t.Fatalf("commit gold: %v", err)
	}
	c, err := h.Check(ctx, GoldCode, 40)
	if err != nil {
		t.Fatalf("check gold: %v", err)
	}
	if c.Total != 40 || !c.Available {
		t.Fatalf("unexpected gold state: %+v", c)
	}
}

func TestLedger_DepositsSkipReservations(t *testing.T) {
	a, h := startLedger(t, game.BankState{})
	ctx := context.Background()

	if err := h.DepositItems([]game.ItemQuantity{{Code: "feather", Quantity: 3}}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := h.DepositGold(25); err != nil {
		t.Fatalf("deposit gold: %v", err)
	}

	// Deposits are tells; synchronize on a follow-up ask.
	c, err := h.Check(ctx, "feather", 3)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if c.Total != 3 || !c.Available {
		t.Fatalf("deposit not applied: %+v", c)
	}
	v, err := a.Ask(ctx, Info{}, time.Second)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info := v.(InfoResult); info.Gold != 25 {
		t.Fatalf("gold deposit not applied: %+v", info)
	}
}

func TestLedger_RefreshKeepsLiveReservations(t *testing.T) {
	client := gametest.NewClient()
	client.SetBank(game.BankState{Items: []game.ItemQuantity{{Code: "ash_wood", Quantity: 10}}})
	logger := log.New(io.Discard, "", 0)
	a := actor.New("bank", NewLedger(client, logger), 128, logger)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop()
	h := NewHandle(a, time.Second)
	ctx := context.Background()

	if _, err := h.Reserve(ctx, "ash_wood", 4, "alice"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Someone else deposited out of band; authoritative total is now 12.
	client.SetBank(game.BankState{Items: []game.ItemQuantity{{Code: "ash_wood", Quantity: 12}}})
	if _, err := a.Ask(ctx, Refresh{}, time.Second); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	c, err := h.Check(ctx, "ash_wood", 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if c.Total != 12 || c.Reserved != 4 || c.Free != 8 {
		t.Fatalf("refresh must keep reservations: %+v", c)
	}
}

func TestLedger_NoOverdraftUnderConcurrentReserves(t *testing.T) {
	const balance = 100
	_, h := startLedger(t, game.BankState{Items: []game.ItemQuantity{{Code: "coal", Quantity: balance}}})
	ctx := context.Background()

	const workers = 8
	const attempts = 40
	var wg sync.WaitGroup
	granted := make(chan int, workers*attempts)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < attempts; i++ {
				qty := 1 + (i+w)%5
				if _, err := h.Reserve(ctx, "coal", qty, "w"); err == nil {
					granted <- qty
				}
			}
		}(w)
	}
	wg.Wait()
	close(granted)

	total := 0
	for q := range granted {
		total += q
	}
	if total > balance {
		t.Fatalf("overdraft: granted %d of %d", total, balance)
	}
	c, err := h.Check(ctx, "coal", 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if c.Reserved != total {
		t.Fatalf("ledger reserved %d, grants sum to %d", c.Reserved, total)
	}
	if c.Reserved > c.Total {
		t.Fatalf("reserved %d exceeds balance %d", c.Reserved, c.Total)
	}
}
