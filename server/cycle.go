package server

import (
	"time"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/fightsim"
)

// enterBetting begins a new cycle: fresh book, fresh generation, all
// remnants of the previous battle cleared. The battle seed is drawn here,
// at the top of the cycle; enterBattle only consumes it.
func (s *Server) enterBetting() {
	seed := s.seedFn()

	s.mu.Lock()
	s.cycle++
	s.gen++
	gen := s.gen
	cycle := s.cycle
	s.phase = fightarena.PhaseBetting
	s.deadline = time.Now().Add(s.bettingDur)
	deadline := s.deadline
	s.seed = seed
	s.sim = nil
	s.winner = ""
	s.decidedBy = ""
	s.frames = 0
	s.settled = false
	s.lastSnap = fightsim.Snapshot{}
	s.mu.Unlock()

	s.book.Open()

	s.log.Infof("cycle %d: betting open for %s", cycle, s.bettingDur)
	s.emit(fightarena.EventPhaseStarted, fightarena.BettingStarted{
		Phase:        fightarena.PhaseBetting,
		Cycle:        cycle,
		Deadline:     deadline,
		Wallets:      s.wallets,
		MinBet:       s.minBet,
		HouseFeeRate: s.feeRate,
	})

	s.afterGen(gen, s.bettingDur, s.enterCountdown)
}

// enterCountdown closes the book; the pools announced here are final for
// the cycle.
func (s *Server) enterCountdown() {
	s.book.Close()
	pools := s.book.Pools()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	cycle := s.cycle
	s.phase = fightarena.PhaseCountdown
	s.deadline = time.Now().Add(s.countdownDur)
	s.mu.Unlock()

	s.log.Infof("cycle %d: betting closed, pools RYU=%v KEN=%v, battle in %s",
		cycle, pools[fightarena.SideRyu].Total, pools[fightarena.SideKen].Total, s.countdownDur)
	s.emit(fightarena.EventPhaseStarted, fightarena.CountdownStarted{
		Phase:      fightarena.PhaseCountdown,
		Cycle:      cycle,
		FinalPools: pools,
		StartingIn: int(s.countdownDur / time.Second),
	})

	s.wg.Add(1)
	go s.runCountdownTicks(gen, cycle)

	s.afterGen(gen, s.countdownDur, s.enterBattle)
}

// runCountdownTicks emits one countdown-tick per second until the
// countdown generation ends.
func (s *Server) runCountdownTicks(gen, cycle uint64) {
	defer s.wg.Done()
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for range t.C {
		s.mu.RLock()
		stale := s.gen != gen || s.closed
		remaining := int(time.Until(s.deadline) / time.Second)
		s.mu.RUnlock()
		if stale || remaining < 0 {
			return
		}
		s.emit(fightarena.EventCountdownTick, fightarena.CountdownTick{
			Cycle:            cycle,
			SecondsRemaining: remaining,
		})
	}
}

// enterBattle starts the simulation on the seed drawn at betting open.
func (s *Server) enterBattle() {
	pools := s.book.Pools()

	s.mu.Lock()
	seed := s.seed
	sim := fightsim.NewBattle(seed)
	s.gen++
	gen := s.gen
	cycle := s.cycle
	s.phase = fightarena.PhaseBattle
	s.sim = sim
	s.deadline = time.Now().Add(s.battleBudget)
	s.lastSnap = sim.Snapshot()
	s.mu.Unlock()

	s.log.Infof("cycle %d: battle started, seed %d", cycle, seed)
	s.emit(fightarena.EventPhaseStarted, fightarena.BattleStarted{
		Phase: fightarena.PhaseBattle,
		Cycle: cycle,
		Seed:  seed,
		Pools: pools,
	})

	s.wg.Add(1)
	go s.runBattle(gen, cycle, sim)
}

// enterPayout settles the decided cycle and schedules the next betting
// window.
func (s *Server) enterPayout() {
	pools := s.book.Pools()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	cycle := s.cycle
	winner := s.winner
	s.phase = fightarena.PhasePayout
	s.deadline = time.Now().Add(s.payoutDur)
	s.mu.Unlock()

	s.log.Infof("cycle %d: payout phase, winner %s", cycle, winner)
	s.emit(fightarena.EventPhaseStarted, fightarena.PayoutStarted{
		Phase:  fightarena.PhasePayout,
		Cycle:  cycle,
		Winner: winner,
		Pools:  pools,
	})

	s.settleCycle(gen, cycle)

	s.afterGen(gen, s.payoutDur, s.enterBetting)
}
