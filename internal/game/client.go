package game

import "context"

// Drop is one item stack produced by a gather, fight, craft or recycle.
type Drop struct {
	Code     string
	Quantity int
}

// ActionDetail carries the per-action outcome next to the refreshed
// character snapshot.
type ActionDetail struct {
	XP     int
	Gold   int
	Drops  []Drop
	Result string // fights: "win" or "lose"
}

// ActionResult is returned by every character action. Character is the
// authoritative post-action snapshot, cooldown included.
type ActionResult struct {
	Character Character
	Detail    ActionDetail
	// Items actually transferred by a bank move; may be less than requested.
	Transferred []ItemQuantity
}

// BankState is the authoritative shared-vault balance as reported by the
// game, used to (re)seed the ledger.
type BankState struct {
	Gold  int
	Items []ItemQuantity
}

// Client is the rate-limited game API. One call per character is in flight
// at any time; every mutating call returns the refreshed character whose
// cooldown gates the next action. Implementations must return *Error for
// coded failures so the worker loop can classify them.
type Client interface {
	GetCharacter(ctx context.Context, name string) (Character, error)

	Move(ctx context.Context, name string, x, y int) (ActionResult, error)
	Gather(ctx context.Context, name string) (ActionResult, error)
	Fight(ctx context.Context, name string) (ActionResult, error)
	Rest(ctx context.Context, name string) (ActionResult, error)
	Craft(ctx context.Context, name, code string, quantity int) (ActionResult, error)
	Recycle(ctx context.Context, name, code string, quantity int) (ActionResult, error)
	UseItem(ctx context.Context, name, code string, quantity int) (ActionResult, error)

	DepositItems(ctx context.Context, name string, items []ItemQuantity) (ActionResult, error)
	WithdrawItems(ctx context.Context, name string, items []ItemQuantity) (ActionResult, error)
	DepositGold(ctx context.Context, name string, quantity int) (ActionResult, error)
	WithdrawGold(ctx context.Context, name string, quantity int) (ActionResult, error)

	GetBank(ctx context.Context) (BankState, error)
}
