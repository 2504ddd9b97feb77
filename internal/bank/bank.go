// Package bank is the resource ledger: the single serialized owner of the
// shared vault's item and gold balances. Workers never touch balances
// directly; they reserve, then commit with the actually transferred
// quantity, or release. Because the ledger runs as one actor, the
// check-then-reserve sequence needs no locking to stay overdraft-free.
//
// The ledger is a rebuildable cache of the game's authoritative state, not
// a durable store.
package bank

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"botcrew.ai/internal/game"
)

// ShortfallError reports a reserve attempt that exceeded the free quantity.
type ShortfallError struct {
	Code      string
	Requested int
	Free      int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("bank: insufficient %s: requested %d, free %d", e.Code, e.Requested, e.Free)
}

// UnknownReservationError reports a release or commit of an id the ledger
// does not hold; ids are consumed exactly once.
type UnknownReservationError struct {
	ReservationID string
}

func (e *UnknownReservationError) Error() string {
	return fmt.Sprintf("bank: unknown reservation %s", e.ReservationID)
}

type reservation struct {
	holder   string
	quantity int
}

// Ledger is the bank actor's behavior. All fields are owned by the actor
// loop; nothing outside the loop reads or writes them.
type Ledger struct {
	client game.Client
	log    *log.Logger

	gold  int
	items map[string]int

	// Unified table: resource code -> reservation id -> reservation.
	// Gold lives under GoldCode.
	reservations map[string]map[string]reservation
	codeByID     map[string]string
}

func NewLedger(client game.Client, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New(os.Stdout, "[bank] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Ledger{
		client:       client,
		log:          logger,
		items:        map[string]int{},
		reservations: map[string]map[string]reservation{},
		codeByID:     map[string]string{},
	}
}

// OnStart seeds balances from the game before any worker can reserve.
func (l *Ledger) OnStart(ctx context.Context) error {
	if err := l.refresh(ctx); err != nil {
		return fmt.Errorf("bank: initial refresh: %w", err)
	}
	l.log.Printf("ledger ready: %d gold, %d item types", l.gold, len(l.items))
	return nil
}

func (l *Ledger) OnStop() {
	if n := len(l.codeByID); n > 0 {
		l.log.Printf("stopping with %d live reservations", n)
	}
}

func (l *Ledger) Receive(ctx context.Context, msg any) (any, error) {
	switch m := msg.(type) {
	case Check:
		return l.check(m.Code, m.Quantity), nil
	case Reserve:
		return l.reserve(m)
	case Release:
		return nil, l.release(m.ReservationID)
	case Commit:
		return nil, l.commit(m.ReservationID, m.ActualQuantity)
	case DepositItems:
		l.depositItems(m.Items)
		return nil, nil
	case DepositGold:
		return nil, l.depositGold(m.Quantity)
	case Refresh:
		return nil, l.refresh(ctx)
	case Info:
		return l.info(), nil
	default:
		return nil, fmt.Errorf("bank: unknown message %T", msg)
	}
}

func (l *Ledger) total(code string) int {
	if code == GoldCode {
		return l.gold
	}
	return l.items[code]
}

func (l *Ledger) reserved(code string) int {
	n := 0
	for _, r := range l.reservations[code] {
		n += r.quantity
	}
	return n
}

func (l *Ledger) check(code string, qty int) CheckResult {
	total := l.total(code)
	reserved := l.reserved(code)
	free := total - reserved
	if free < 0 {
		free = 0
	}
	return CheckResult{
		Available: free >= qty,
		Total:     total,
		Reserved:  reserved,
		Free:      free,
		Requested: qty,
	}
}

// reserve re-validates free quantity at call time before creating the
// reservation; this is the two-phase check that keeps concurrent
// withdrawals overdraft-free.
func (l *Ledger) reserve(m Reserve) (any, error) {
	if m.Holder == "" {
		return nil, fmt.Errorf("bank: reserve needs a holder")
	}
	if m.Quantity <= 0 {
		return nil, fmt.Errorf("bank: reserve quantity must be positive")
	}
	c := l.check(m.Code, m.Quantity)
	if !c.Available {
		return nil, &ShortfallError{Code: m.Code, Requested: m.Quantity, Free: c.Free}
	}

	id := uuid.NewString()
	if l.reservations[m.Code] == nil {
		l.reservations[m.Code] = map[string]reservation{}
	}
	l.reservations[m.Code][id] = reservation{holder: m.Holder, quantity: m.Quantity}
	l.codeByID[id] = m.Code

	l.log.Printf("reserved %dx %s for %s (%s)", m.Quantity, m.Code, m.Holder, id)
	return ReserveResult{ReservationID: id, Code: m.Code, Quantity: m.Quantity}, nil
}

func (l *Ledger) take(id string) (code string, r reservation, err error) {
	code, ok := l.codeByID[id]
	if !ok {
		return "", reservation{}, &UnknownReservationError{ReservationID: id}
	}
	r = l.reservations[code][id]
	delete(l.reservations[code], id)
	if len(l.reservations[code]) == 0 {
		delete(l.reservations, code)
	}
	delete(l.codeByID, id)
	return code, r, nil
}

func (l *Ledger) release(id string) error {
	code, r, err := l.take(id)
	if err != nil {
		return err
	}
	l.log.Printf("released %dx %s held by %s (%s)", r.quantity, code, r.holder, id)
	return nil
}

// commit removes the reservation and decrements the live balance by the
// quantity actually transferred, which may differ from the amount reserved.
func (l *Ledger) commit(id string, actual int) error {
	code, r, err := l.take(id)
	if err != nil {
		return err
	}
	if actual < 0 {
		actual = 0
	}
	if code == GoldCode {
		l.gold -= actual
		if l.gold < 0 {
			l.gold = 0
		}
	} else {
		left := l.items[code] - actual
		if left <= 0 {
			delete(l.items, code)
		} else {
			l.items[code] = left
		}
	}
	if actual != r.quantity {
		l.log.Printf("committed %s: actual %d differs from reserved %d (%s)", code, actual, r.quantity, id)
	} else {
		l.log.Printf("committed %dx %s for %s (%s)", actual, code, r.holder, id)
	}
	return nil
}

// Deposits cannot overdraw, so they skip the reservation cycle entirely.
func (l *Ledger) depositItems(items []game.ItemQuantity) {
	for _, it := range items {
		if it.Code == "" || it.Quantity <= 0 {
			continue
		}
		l.items[it.Code] += it.Quantity
	}
}

func (l *Ledger) depositGold(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("bank: deposit quantity must be positive")
	}
	l.gold += qty
	return nil
}

func (l *Ledger) refresh(ctx context.Context) error {
	state, err := l.client.GetBank(ctx)
	if err != nil {
		return err
	}
	l.gold = state.Gold
	l.items = make(map[string]int, len(state.Items))
	for _, it := range state.Items {
		l.items[it.Code] = it.Quantity
	}
	return nil
}

func (l *Ledger) info() InfoResult {
	out := InfoResult{
		Gold:  l.gold,
		Items: make(map[string]int, len(l.items)),
	}
	for code, qty := range l.items {
		out.Items[code] = qty
	}
	for code, rs := range l.reservations {
		for id, r := range rs {
			out.Reservations = append(out.Reservations, Reservation{
				ID: id, Code: code, Holder: r.holder, Quantity: r.quantity,
			})
		}
	}
	return out
}
