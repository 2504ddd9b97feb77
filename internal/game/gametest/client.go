// Package gametest provides a scripted in-memory implementation of
// game.Client for tests. It is a double, not a simulator: drops, fight
// outcomes and recipes are whatever the test configures.
package gametest

import (
	"context"
	"sync"
	"time"

	"botcrew.ai/internal/game"
)

// Recipe configures what Craft consumes and yields for one item code.
type Recipe struct {
	Yield        int
	Requirements []game.ItemQuantity
}

// Client implements game.Client against in-memory state. Safe for use from
// multiple goroutines.
type Client struct {
	mu sync.Mutex

	chars map[string]game.Character
	bank  game.BankState

	// Scripted behavior.
	GatherDrops  []game.Drop       // granted per Gather call
	FightDrops   []game.Drop       // granted per winning Fight call
	FightOutcome string            // "win" (default) or "lose"
	Recipes      map[string]Recipe // consulted by Craft
	Cooldown     time.Duration     // applied to the character after actions

	// Position-aware overrides. When set they replace the flat drop lists,
	// which lets the sandbox serve different tiles from one client. Hooks
	// run under the client lock and must not call back into it.
	GatherAt func(pos game.Position) []game.Drop
	FightAt  func(pos game.Position) (outcome string, drops []game.Drop)

	failures map[string][]error // op name -> queued errors, consumed FIFO
	calls    []string
}

var _ game.Client = (*Client)(nil)

func NewClient() *Client {
	return &Client{
		chars:    map[string]game.Character{},
		Recipes:  map[string]Recipe{},
		failures: map[string][]error{},
	}
}

// PutCharacter installs or replaces a character snapshot.
func (c *Client) PutCharacter(ch game.Character) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chars[ch.Name] = ch
}

// SetBank replaces the vault state GetBank reports.
func (c *Client) SetBank(state game.BankState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bank = state
}

// FailNext queues an error for the next call of op ("gather", "move", ...).
// Multiple queued errors are consumed in order.
func (c *Client) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = append(c.failures[op], err)
}

// Calls returns the ordered op log.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *Client) record(op string) error {
	c.calls = append(c.calls, op)
	if q := c.failures[op]; len(q) > 0 {
		err := q[0]
		c.failures[op] = q[1:]
		return err
	}
	return nil
}

func (c *Client) character(name string) game.Character {
	ch := c.chars[name]
	return ch
}

func (c *Client) touch(ch *game.Character) {
	if c.Cooldown > 0 {
		ch.CooldownUntil = time.Now().Add(c.Cooldown)
	}
	c.chars[ch.Name] = *ch
}

func addToInventory(ch *game.Character, code string, qty int) {
	for i := range ch.Inventory {
		if ch.Inventory[i].Code == code {
			ch.Inventory[i].Quantity += qty
			return
		}
	}
	ch.Inventory = append(ch.Inventory, game.InventorySlot{Code: code, Quantity: qty})
}

func removeFromInventory(ch *game.Character, code string, qty int) int {
	removed := 0
	for i := range ch.Inventory {
		if ch.Inventory[i].Code != code {
			continue
		}
		n := ch.Inventory[i].Quantity
		if n > qty {
			n = qty
		}
		ch.Inventory[i].Quantity -= n
		removed += n
		qty -= n
		if qty == 0 {
			break
		}
	}
	kept := ch.Inventory[:0]
	for _, s := range ch.Inventory {
		if s.Quantity > 0 {
			kept = append(kept, s)
		}
	}
	ch.Inventory = kept
	return removed
}

func (c *Client) GetCharacter(ctx context.Context, name string) (game.Character, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("get_character"); err != nil {
		return game.Character{}, err
	}
	return c.character(name), nil
}

func (c *Client) Move(ctx context.Context, name string, x, y int) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("move"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	ch.Pos = game.Position{X: x, Y: y}
	c.touch(&ch)
	return game.ActionResult{Character: ch}, nil
}

func (c *Client) Gather(ctx context.Context, name string) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("gather"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	drops := c.GatherDrops
	if c.GatherAt != nil {
		drops = c.GatherAt(ch.Pos)
	}
	for _, d := range drops {
		addToInventory(&ch, d.Code, d.Quantity)
	}
	c.touch(&ch)
	return game.ActionResult{
		Character: ch,
		Detail:    game.ActionDetail{XP: 5, Drops: append([]game.Drop(nil), drops...)},
	}, nil
}

func (c *Client) Fight(ctx context.Context, name string) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("fight"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	outcome := c.FightOutcome
	scripted := c.FightDrops
	if c.FightAt != nil {
		outcome, scripted = c.FightAt(ch.Pos)
	}
	if outcome == "" {
		outcome = "win"
	}
	var drops []game.Drop
	if outcome == "win" {
		drops = append(drops, scripted...)
		for _, d := range drops {
			addToInventory(&ch, d.Code, d.Quantity)
		}
	} else {
		ch.HP = 1
	}
	c.touch(&ch)
	return game.ActionResult{
		Character: ch,
		Detail:    game.ActionDetail{XP: 10, Result: outcome, Drops: drops},
	}, nil
}

func (c *Client) Rest(ctx context.Context, name string) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("rest"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	ch.HP = ch.MaxHP
	c.touch(&ch)
	return game.ActionResult{Character: ch}, nil
}

func (c *Client) Craft(ctx context.Context, name, code string, quantity int) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("craft"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	r, ok := c.Recipes[code]
	if !ok {
		return game.ActionResult{}, game.NewError(game.CodeItemNotFound, "no recipe for %s", code)
	}
	for _, req := range r.Requirements {
		if ch.CountInInventory(req.Code) < req.Quantity*quantity {
			return game.ActionResult{}, game.NewError(game.CodeMissingItem, "missing %s", req.Code)
		}
	}
	for _, req := range r.Requirements {
		removeFromInventory(&ch, req.Code, req.Quantity*quantity)
	}
	yield := r.Yield
	if yield <= 0 {
		yield = 1
	}
	produced := yield * quantity
	addToInventory(&ch, code, produced)
	c.touch(&ch)
	return game.ActionResult{
		Character: ch,
		Detail:    game.ActionDetail{XP: 20, Drops: []game.Drop{{Code: code, Quantity: produced}}},
	}, nil
}

func (c *Client) Recycle(ctx context.Context, name, code string, quantity int) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("recycle"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	removed := removeFromInventory(&ch, code, quantity)
	c.touch(&ch)
	return game.ActionResult{
		Character: ch,
		Detail:    game.ActionDetail{Drops: []game.Drop{{Code: code, Quantity: removed}}},
	}, nil
}

func (c *Client) UseItem(ctx context.Context, name, code string, quantity int) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("use_item"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	removeFromInventory(&ch, code, quantity)
	c.touch(&ch)
	return game.ActionResult{Character: ch}, nil
}

func (c *Client) DepositItems(ctx context.Context, name string, items []game.ItemQuantity) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("deposit_items"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	var moved []game.ItemQuantity
	for _, it := range items {
		n := removeFromInventory(&ch, it.Code, it.Quantity)
		if n == 0 {
			continue
		}
		c.bankAdd(it.Code, n)
		moved = append(moved, game.ItemQuantity{Code: it.Code, Quantity: n})
	}
	c.touch(&ch)
	return game.ActionResult{Character: ch, Transferred: moved}, nil
}

func (c *Client) WithdrawItems(ctx context.Context, name string, items []game.ItemQuantity) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("withdraw_items"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	var moved []game.ItemQuantity
	for _, it := range items {
		n := c.bankRemove(it.Code, it.Quantity)
		if n == 0 {
			continue
		}
		addToInventory(&ch, it.Code, n)
		moved = append(moved, game.ItemQuantity{Code: it.Code, Quantity: n})
	}
	c.touch(&ch)
	return game.ActionResult{Character: ch, Transferred: moved}, nil
}

func (c *Client) DepositGold(ctx context.Context, name string, quantity int) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("deposit_gold"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	if quantity > ch.Gold {
		quantity = ch.Gold
	}
	ch.Gold -= quantity
	c.bank.Gold += quantity
	c.touch(&ch)
	return game.ActionResult{Character: ch}, nil
}

func (c *Client) WithdrawGold(ctx context.Context, name string, quantity int) (game.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("withdraw_gold"); err != nil {
		return game.ActionResult{}, err
	}
	ch := c.character(name)
	if quantity > c.bank.Gold {
		quantity = c.bank.Gold
	}
	c.bank.Gold -= quantity
	ch.Gold += quantity
	c.touch(&ch)
	return game.ActionResult{Character: ch}, nil
}

func (c *Client) GetBank(ctx context.Context) (game.BankState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.record("get_bank"); err != nil {
		return game.BankState{}, err
	}
	out := game.BankState{Gold: c.bank.Gold}
	out.Items = append(out.Items, c.bank.Items...)
	return out, nil
}

func (c *Client) bankAdd(code string, qty int) {
	for i := range c.bank.Items {
		if c.bank.Items[i].Code == code {
			c.bank.Items[i].Quantity += qty
			return
		}
	}
	c.bank.Items = append(c.bank.Items, game.ItemQuantity{Code: code, Quantity: qty})
}

func (c *Client) bankRemove(code string, qty int) int {
	for i := range c.bank.Items {
		if c.bank.Items[i].Code != code {
			continue
		}
		n := c.bank.Items[i].Quantity
		if n > qty {
			n = qty
		}
		c.bank.Items[i].Quantity -= n
		return n
	}
	return 0
}
