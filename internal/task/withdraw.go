package task

import (
	"context"
	"fmt"

	"botcrew.ai/internal/bank"
	"botcrew.ai/internal/game"
)

// Withdraw takes items out of the bank under a reservation so no other
// worker can claim the same stock between the check and the counter visit.
// The reservation is committed with the actually withdrawn quantity and
// released on every failure path.
type Withdraw struct {
	Item     string
	Quantity int

	Withdrawn     int
	reservationID string
}

func (t *Withdraw) Execute(ctx context.Context, tc *Context) Result {
	if t.reservationID == "" {
		id, err := tc.Vault.Reserve(ctx, t.Item, t.Quantity, tc.Character.Name)
		if err != nil {
			return fail(
				game.NewError(game.CodeReservationFailed, "reserve %d %s: %v", t.Quantity, t.Item, err),
				warn("bank cannot cover %d %s: %v", t.Quantity, t.Item, err),
			)
		}
		t.reservationID = id
		return Result{Logs: []LogLine{info("reserved %d %s", t.Quantity, t.Item)}}
	}

	if res, moved := moveToBank(ctx, tc); moved {
		if res.Err != nil {
			t.release(ctx, tc)
		}
		return res
	}

	res, err := tc.Client.WithdrawItems(ctx, tc.Character.Name, []game.ItemQuantity{{Code: t.Item, Quantity: t.Quantity}})
	if err != nil {
		if game.ClassOf(err) != game.ClassRetriable {
			t.release(ctx, tc)
		}
		return failAction("withdraw "+t.Item, err)
	}
	actual := 0
	for _, it := range res.Transferred {
		if it.Code == t.Item {
			actual += it.Quantity
		}
	}
	if err := tc.Vault.Commit(ctx, t.reservationID, actual); err != nil {
		return fail(err, errlg("commit withdrawal of %s: %v", t.Item, err))
	}
	t.reservationID = ""
	t.Withdrawn = actual
	return finished(res, info("withdrew %s x%d", t.Item, actual))
}

func (t *Withdraw) release(ctx context.Context, tc *Context) {
	t.ReleaseReservations(ctx, tc.Vault)
}

// ReleaseReservations drops the held reservation, if any.
func (t *Withdraw) ReleaseReservations(ctx context.Context, v Vault) {
	if t.reservationID == "" {
		return
	}
	_ = v.Release(ctx, t.reservationID)
	t.reservationID = ""
}

func (t *Withdraw) Progress() string {
	return fmt.Sprintf("%d/%d", t.Withdrawn, t.Quantity)
}

func (t *Withdraw) Description() string {
	return fmt.Sprintf("Withdraw %s x%d", t.Item, t.Quantity)
}

// WithdrawGold takes gold out of the bank. Gold shares the reservation table
// with items under bank.GoldCode.
type WithdrawGold struct {
	Quantity int

	Withdrawn     int
	reservationID string
}

func (t *WithdrawGold) Execute(ctx context.Context, tc *Context) Result {
	if t.reservationID == "" {
		id, err := tc.Vault.Reserve(ctx, bank.GoldCode, t.Quantity, tc.Character.Name)
		if err != nil {
			return fail(
				game.NewError(game.CodeReservationFailed, "reserve %d gold: %v", t.Quantity, err),
				warn("bank cannot cover %d gold: %v", t.Quantity, err),
			)
		}
		t.reservationID = id
		return Result{Logs: []LogLine{info("reserved %d gold", t.Quantity)}}
	}

	if res, moved := moveToBank(ctx, tc); moved {
		if res.Err != nil {
			_ = tc.Vault.Release(ctx, t.reservationID)
			t.reservationID = ""
		}
		return res
	}

	res, err := tc.Client.WithdrawGold(ctx, tc.Character.Name, t.Quantity)
	if err != nil {
		if game.ClassOf(err) != game.ClassRetriable {
			_ = tc.Vault.Release(ctx, t.reservationID)
			t.reservationID = ""
		}
		return failAction("withdraw gold", err)
	}
	if err := tc.Vault.Commit(ctx, t.reservationID, t.Quantity); err != nil {
		return fail(err, errlg("commit gold withdrawal: %v", err))
	}
	t.reservationID = ""
	t.Withdrawn = t.Quantity
	return finished(res, info("withdrew %d gold", t.Quantity))
}

// ReleaseReservations drops the held gold reservation, if any.
func (t *WithdrawGold) ReleaseReservations(ctx context.Context, v Vault) {
	if t.reservationID == "" {
		return
	}
	_ = v.Release(ctx, t.reservationID)
	t.reservationID = ""
}

func (t *WithdrawGold) Progress() string {
	return fmt.Sprintf("%d/%d", t.Withdrawn, t.Quantity)
}

func (t *WithdrawGold) Description() string {
	return fmt.Sprintf("Withdraw %d gold", t.Quantity)
}
