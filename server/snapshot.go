package server

import (
	"time"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/fightsim"
)

// StateSnapshot is everything a late joiner needs to render the arena
// mid-cycle without replaying past events.
type StateSnapshot struct {
	Phase            fightarena.Phase     `json:"phase"`
	Cycle            uint64               `json:"cycle"`
	Pools            fightarena.Pools     `json:"pools"`
	SecondsRemaining int                  `json:"secondsRemaining"`
	Deadline         time.Time            `json:"deadline"`
	Wallets          fightarena.WalletSet `json:"wallets"`
	MinBet           float64              `json:"minBet"`
	HouseFeeRate     float64              `json:"houseFeeRate"`

	// Battle-phase extras. Seed lets the client replay locally; Battle is
	// the latest simulated frame.
	Seed   int64              `json:"seed,omitempty"`
	Battle *fightsim.Snapshot `json:"battle,omitempty"`

	// Set once the cycle is decided.
	Winner    fightarena.Side `json:"winner,omitempty"`
	DecidedBy string          `json:"decidedBy,omitempty"`
}

// StateSnapshot returns an atomic view of the current cycle. Phase, pools
// and battle frame are read under one lock so the combination is coherent:
// a BETTING snapshot never carries battle state, a BATTLE snapshot always
// carries its seed.
func (s *Server) StateSnapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pools := s.book.Pools()

	snap := StateSnapshot{
		Phase:            s.phase,
		Cycle:            s.cycle,
		Pools:            pools,
		Deadline:         s.deadline,
		Wallets:          s.wallets,
		MinBet:           s.minBet,
		HouseFeeRate:     s.feeRate,
		Winner:           s.winner,
		DecidedBy:        s.decidedBy,
	}
	if remaining := time.Until(s.deadline); remaining > 0 {
		snap.SecondsRemaining = int(remaining / time.Second)
	}
	if s.phase == fightarena.PhaseBattle {
		snap.Seed = s.seed
		frame := s.lastSnap
		snap.Battle = &frame
	}
	return snap
}
