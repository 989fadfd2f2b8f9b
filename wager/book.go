// Package wager tracks per-cycle betting pools and computes pari-mutuel
// settlements. A Book collects stakes while betting is open; once closed,
// ComputePayouts splits the combined pool among winning bettors after the
// house cut.
package wager

import (
	"errors"
	"fmt"
	"sync"
	"time"

	fightarena "github.com/arenabets/fightarena"
)

var (
	// ErrPhaseClosed is returned for bets arriving outside the betting
	// window.
	ErrPhaseClosed = errors.New("betting is closed")

	// ErrInvalidSide is returned for bets on an unknown fighter.
	ErrInvalidSide = errors.New("unknown side")

	// ErrInvalidAmount is returned for non-positive or below-minimum
	// stakes.
	ErrInvalidAmount = errors.New("invalid bet amount")

	// ErrDuplicateDeposit is returned when a deposit reference has already
	// been credited this cycle.
	ErrDuplicateDeposit = errors.New("deposit already credited")
)

// Bet is one accepted stake.
type Bet struct {
	Cycle     uint64          `json:"cycle"`
	Side      fightarena.Side `json:"side"`
	Amount    float64         `json:"amount"`
	Bettor    string          `json:"bettorAddress"`
	SourceRef string          `json:"sourceRef"`
	At        time.Time       `json:"timestamp"`
}

// Book is the mutable betting state for one cycle. It is safe for
// concurrent use; the phase controller opens it when betting starts and
// closes it at the countdown transition, after which every PlaceBet fails
// with ErrPhaseClosed.
type Book struct {
	mu sync.RWMutex

	open   bool
	minBet float64
	bets   map[fightarena.Side][]Bet
	seen   map[string]struct{}
}

// NewBook returns a closed book with the given minimum stake. A minBet of
// zero disables the minimum check beyond positivity.
func NewBook(minBet float64) *Book {
	b := &Book{minBet: minBet}
	b.reset()
	return b
}

func (b *Book) reset() {
	b.bets = make(map[fightarena.Side][]Bet)
	b.seen = make(map[string]struct{})
	for _, s := range fightarena.Sides() {
		b.bets[s] = nil
	}
}

// Open clears any previous cycle's bets and starts accepting new ones.
func (b *Book) Open() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
	b.open = true
}

// Close stops accepting bets. The recorded stakes stay readable until the
// next Open.
func (b *Book) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
}

func (b *Book) validateLocked(side fightarena.Side, amount float64) error {
	if !b.open {
		return ErrPhaseClosed
	}
	if !side.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if amount <= 0 || amount < b.minBet {
		return fmt.Errorf("%w: %v (minimum %v)", ErrInvalidAmount, amount, b.minBet)
	}
	return nil
}

// Validate reports whether a stake could be admitted right now, without
// recording anything. The sourceRef dedup still happens at PlaceBet.
func (b *Book) Validate(side fightarena.Side, amount float64) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.validateLocked(side, amount)
}

// PlaceBet validates and records a stake, returning the recorded bet. The
// sourceRef deduplicates deposits observed more than once; an empty ref
// skips that check.
func (b *Book) PlaceBet(cycle uint64, side fightarena.Side, amount float64, bettor, sourceRef string) (Bet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.validateLocked(side, amount); err != nil {
		return Bet{}, err
	}
	if sourceRef != "" {
		if _, dup := b.seen[sourceRef]; dup {
			return Bet{}, fmt.Errorf("%w: %s", ErrDuplicateDeposit, sourceRef)
		}
		b.seen[sourceRef] = struct{}{}
	}

	bet := Bet{
		Cycle:     cycle,
		Side:      side,
		Amount:    amount,
		Bettor:    bettor,
		SourceRef: sourceRef,
		At:        time.Now(),
	}
	b.bets[side] = append(b.bets[side], bet)
	return bet, nil
}

// IsOpen reports whether the book currently accepts bets.
func (b *Book) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.open
}

// Pools returns a point-in-time snapshot of both pools.
func (b *Book) Pools() fightarena.Pools {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pools := make(fightarena.Pools, 2)
	for _, s := range fightarena.Sides() {
		var p fightarena.Pool
		for _, bet := range b.bets[s] {
			p.Total += bet.Amount
			p.Count++
		}
		pools[s] = p
	}
	return pools
}

// BetsFor returns a copy of the bets recorded on one side.
func (b *Book) BetsFor(side fightarena.Side) []Bet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Bet, len(b.bets[side]))
	copy(out, b.bets[side])
	return out
}
