package fightarena

import (
	"encoding/json"
	"fmt"
	"time"
)

// Side identifies one of the two fixed combatants. Every bet, pool and
// battle outcome is keyed by it.
type Side string

const (
	SideRyu Side = "RYU"
	SideKen Side = "KEN"
)

// Sides lists both combatants in fighter-index order (index 0 is RYU).
func Sides() [2]Side { return [2]Side{SideRyu, SideKen} }

// Valid reports whether s names one of the two combatants.
func (s Side) Valid() bool { return s == SideRyu || s == SideKen }

// Opponent returns the other combatant.
func (s Side) Opponent() Side {
	if s == SideRyu {
		return SideKen
	}
	return SideRyu
}

// Phase is the battle cycle state. Exactly one cycle is active at a time
// and it is always in exactly one phase.
type Phase int32

const (
	PhaseBetting Phase = iota
	PhaseCountdown
	PhaseBattle
	PhasePayout
)

func (p Phase) String() string {
	switch p {
	case PhaseBetting:
		return "BETTING"
	case PhaseCountdown:
		return "COUNTDOWN"
	case PhaseBattle:
		return "BATTLE"
	case PhasePayout:
		return "PAYOUT"
	}
	return fmt.Sprintf("Phase(%d)", int32(p))
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "BETTING":
		*p = PhaseBetting
	case "COUNTDOWN":
		*p = PhaseCountdown
	case "BATTLE":
		*p = PhaseBattle
	case "PAYOUT":
		*p = PhasePayout
	default:
		return fmt.Errorf("unknown phase %q", s)
	}
	return nil
}

// Pool is the aggregate of stakes placed on one side within a cycle.
type Pool struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// Pools maps each side to its pool aggregate.
type Pools map[Side]Pool

// Total returns the combined stake over both sides.
func (p Pools) Total() float64 {
	var sum float64
	for _, pool := range p {
		sum += pool.Total
	}
	return sum
}

// WalletSet holds the deposit routing addresses shown to bettors and the
// address that collects the house fee.
type WalletSet struct {
	Ryu   string `json:"RYU"`
	Ken   string `json:"KEN"`
	House string `json:"-"`
}

// ForSide returns the deposit address for the given side.
func (w WalletSet) ForSide(s Side) string {
	if s == SideRyu {
		return w.Ryu
	}
	return w.Ken
}

// SideForAddress maps a watched deposit address back to its side.
func (w WalletSet) SideForAddress(addr string) (Side, bool) {
	switch addr {
	case w.Ryu:
		return SideRyu, true
	case w.Ken:
		return SideKen, true
	}
	return "", false
}

// Deposit is one observed inbound value transfer to a fighter wallet.
// SourceRef uniquely identifies the originating transfer (txid:vout) and is
// the dedup key for duplicate deliveries.
type Deposit struct {
	To        string    `json:"to"`
	From      string    `json:"from"`
	Amount    float64   `json:"amount"`
	SourceRef string    `json:"sourceRef"`
	Height    int64     `json:"height"`
	At        time.Time `json:"at"`
}
