package bank

import "botcrew.ai/internal/game"

// GoldCode keys the currency balance in the unified reservation table. The
// slash keeps it out of the item-code namespace.
const GoldCode = "currency/gold"

// Messages accepted by the bank actor. Every mutation of the shared vault
// goes through exactly one of these.

type Check struct {
	Code     string
	Quantity int
}

type CheckResult struct {
	Available bool
	Total     int
	Reserved  int
	Free      int
	Requested int
}

type Reserve struct {
	Code     string
	Quantity int
	Holder   string
}

type ReserveResult struct {
	ReservationID string
	Code          string
	Quantity      int
}

type Release struct {
	ReservationID string
}

type Commit struct {
	ReservationID  string
	ActualQuantity int
}

type DepositItems struct {
	Items []game.ItemQuantity
}

type DepositGold struct {
	Quantity int
}

// Refresh re-fetches authoritative balances from the game and replaces
// items and gold without touching live reservations.
type Refresh struct{}

// Info returns a copy of the current ledger state, mainly for the dashboard.
type Info struct{}

type Reservation struct {
	ID       string
	Code     string
	Holder   string
	Quantity int
}

type InfoResult struct {
	Gold         int
	Items        map[string]int
	Reservations []Reservation
}
