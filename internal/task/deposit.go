package task

import (
	"context"
	"fmt"

	"botcrew.ai/internal/game"
)

// Deposit moves items from the inventory into the bank and records them with
// the ledger. An empty Items slice means the whole inventory. With Gold set,
// carried gold is banked in a second step.
type Deposit struct {
	Items []game.ItemQuantity
	Gold  bool

	itemsDone bool
}

func (t *Deposit) Execute(ctx context.Context, tc *Context) Result {
	if res, moved := moveToBank(ctx, tc); moved {
		return res
	}

	if !t.itemsDone {
		t.itemsDone = true
		items := t.Items
		if len(items) == 0 {
			items = make([]game.ItemQuantity, 0, len(tc.Character.Inventory))
			for _, s := range tc.Character.Inventory {
				items = append(items, game.ItemQuantity{Code: s.Code, Quantity: s.Quantity})
			}
		}
		if len(items) > 0 {
			res, err := tc.Client.DepositItems(ctx, tc.Character.Name, items)
			if err != nil {
				return failAction("deposit items", err)
			}
			if tc.Vault != nil && len(res.Transferred) > 0 {
				if err := tc.Vault.DepositItems(res.Transferred); err != nil {
					return fail(err, errlg("record deposit: %v", err))
				}
			}
			line := info("deposited %s", itemsString(res.Transferred))
			if !t.Gold {
				return finished(res, line)
			}
			return step(res, line)
		}
		if !t.Gold {
			return doneNow(info("nothing to deposit"))
		}
	}

	if tc.Character.Gold <= 0 {
		return doneNow(info("no gold to deposit"))
	}
	amount := tc.Character.Gold
	res, err := tc.Client.DepositGold(ctx, tc.Character.Name, amount)
	if err != nil {
		return failAction("deposit gold", err)
	}
	if tc.Vault != nil {
		if err := tc.Vault.DepositGold(amount); err != nil {
			return fail(err, errlg("record gold deposit: %v", err))
		}
	}
	return finished(res, info("deposited %d gold", amount))
}

func (t *Deposit) Progress() string {
	if t.itemsDone {
		return "gold"
	}
	return "items"
}

func (t *Deposit) Description() string {
	switch {
	case len(t.Items) == 0 && t.Gold:
		return "Deposit everything"
	case len(t.Items) == 0:
		return "Deposit inventory"
	default:
		return fmt.Sprintf("Deposit %s", itemsString(t.Items))
	}
}
