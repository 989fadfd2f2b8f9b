package server

import (
	"time"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/fightsim"
)

// Every Nth frame goes to observers; full fidelity is reconstructible from
// the seed anyway.
const frameBroadcastStride = 3

// runBattle drives the simulation to a decision. A panic inside the step
// loop kills this battle, not the arena: the cycle still concludes with a
// winner derived from the last good frame.
func (s *Server) runBattle(gen, cycle uint64, sim *fightsim.Simulator) {
	defer s.wg.Done()

	var snap fightsim.Snapshot
	defer func() {
		if r := recover(); r != nil {
			s.log.Criticalf("cycle %d: battle aborted at frame %d: %v", cycle, snap.Frame, r)
			s.concludeBattle(gen, cycle, abortWinner(snap, sim.Seed()), "aborted", snap)
		}
	}()

	budget := time.Now().Add(s.battleBudget)
	var tick *time.Ticker
	if s.frameTick > 0 {
		tick = time.NewTicker(s.frameTick)
		defer tick.Stop()
	}

	forced := false
	for {
		s.mu.RLock()
		stale := s.gen != gen || s.closed
		reported := s.winner
		s.mu.RUnlock()
		if stale {
			return
		}
		if reported != "" {
			// An external report decided the cycle mid-battle.
			s.concludeBattle(gen, cycle, reported, "reported", snap)
			return
		}

		if !forced && time.Now().After(budget) {
			s.log.Warnf("cycle %d: battle budget exhausted at frame %d, forcing decision",
				cycle, snap.Frame)
			sim.ForceDecision()
			forced = true
		}

		snap = sim.AdvanceFrame()

		s.mu.Lock()
		s.lastSnap = snap
		s.mu.Unlock()

		if snap.Frame%frameBroadcastStride == 0 || snap.Winner != "" {
			s.emit(fightarena.EventBattleFrame, snap)
		}

		if snap.Winner != "" {
			decidedBy := "knockout"
			switch {
			case forced:
				decidedBy = "timeout"
			case snap.Frame >= fightsim.MaxFrames:
				decidedBy = "frame-cap"
			}
			s.concludeBattle(gen, cycle, snap.Winner, decidedBy, snap)
			return
		}

		if tick != nil {
			<-tick.C
		}
	}
}

// concludeBattle records the result and moves the cycle to payout. The
// first decision wins: if something (a report) already set the winner, that
// decision is kept and the caller's is dropped.
func (s *Server) concludeBattle(gen, cycle uint64, winner fightarena.Side, decidedBy string, snap fightsim.Snapshot) {
	pools := s.book.Pools()

	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	if s.winner == "" {
		s.winner = winner
		s.decidedBy = decidedBy
	} else {
		winner = s.winner
		decidedBy = s.decidedBy
	}
	s.frames = snap.Frame
	s.mu.Unlock()

	s.log.Infof("cycle %d: %s wins by %s after %d frames", cycle, winner, decidedBy, snap.Frame)
	s.emit(fightarena.EventBattleEnded, fightarena.BattleEnded{
		Cycle:     cycle,
		Winner:    winner,
		Frames:    snap.Frame,
		DecidedBy: decidedBy,
		Pools:     pools,
	})

	s.enterPayout()
}

// abortWinner decides a crashed battle from its last good frame: health
// lead wins, and with no lead the seed's parity picks deterministically.
func abortWinner(snap fightsim.Snapshot, seed int64) fightarena.Side {
	a, b := snap.Fighters[0], snap.Fighters[1]
	switch {
	case a.Health > b.Health && a.ID.Valid():
		return a.ID
	case b.Health > a.Health && b.ID.Valid():
		return b.ID
	}
	sides := fightarena.Sides()
	return sides[seed&1]
}
