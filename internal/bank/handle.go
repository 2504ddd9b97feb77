package bank

import (
	"context"
	"fmt"
	"time"

	"botcrew.ai/internal/actor"
	"botcrew.ai/internal/game"
)

// Handle is the typed client side of the bank actor. Tasks hold a Handle
// (through the task.Vault interface) instead of the raw actor, so tests can
// substitute an in-memory vault.
type Handle struct {
	a       *actor.Actor
	timeout time.Duration
}

// NewHandle wraps the running bank actor. timeout bounds every ask; on
// timeout the caller treats the operation as failed and must not assume the
// ledger rolled anything back.
func NewHandle(a *actor.Actor, timeout time.Duration) *Handle {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handle{a: a, timeout: timeout}
}

func (h *Handle) Check(ctx context.Context, code string, qty int) (CheckResult, error) {
	v, err := h.a.Ask(ctx, Check{Code: code, Quantity: qty}, h.timeout)
	if err != nil {
		return CheckResult{}, err
	}
	res, ok := v.(CheckResult)
	if !ok {
		return CheckResult{}, fmt.Errorf("bank: unexpected reply %T", v)
	}
	return res, nil
}

func (h *Handle) Reserve(ctx context.Context, code string, qty int, holder string) (string, error) {
	v, err := h.a.Ask(ctx, Reserve{Code: code, Quantity: qty, Holder: holder}, h.timeout)
	if err != nil {
		return "", err
	}
	res, ok := v.(ReserveResult)
	if !ok {
		return "", fmt.Errorf("bank: unexpected reply %T", v)
	}
	return res.ReservationID, nil
}

func (h *Handle) Release(ctx context.Context, reservationID string) error {
	_, err := h.a.Ask(ctx, Release{ReservationID: reservationID}, h.timeout)
	return err
}

func (h *Handle) Commit(ctx context.Context, reservationID string, actual int) error {
	_, err := h.a.Ask(ctx, Commit{ReservationID: reservationID, ActualQuantity: actual}, h.timeout)
	return err
}

// DepositItems is fire-and-forget: a deposit already happened in the game,
// the ledger only mirrors it.
func (h *Handle) DepositItems(items []game.ItemQuantity) error {
	return h.a.Tell(DepositItems{Items: items})
}

func (h *Handle) DepositGold(qty int) error {
	return h.a.Tell(DepositGold{Quantity: qty})
}
