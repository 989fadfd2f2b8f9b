package server

import (
	"context"
	"math"
	"time"

	fightarena "github.com/arenabets/fightarena"
	"github.com/arenabets/fightarena/arenadb"
	"github.com/arenabets/fightarena/wager"
)

// settleCycle computes and dispatches the cycle's payouts exactly once.
// One recipient's dispatch failure is recorded and skipped; it never stops
// the rest of the batch.
func (s *Server) settleCycle(gen, cycle uint64) {
	s.mu.Lock()
	if s.settled || s.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.settled = true
	winner := s.winner
	seed := s.seed
	frames := s.frames
	decidedBy := s.decidedBy
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	pools := s.book.Pools()
	winningBets := s.book.BetsFor(winner)
	losingTotal := pools[winner.Opponent()].Total

	settlement := wager.ComputePayouts(winningBets, losingTotal, s.feeRate)

	// Sanity: every staked unit must be either paid out or kept as the
	// house cut. A violation here is a settlement bug, not a bad input.
	if len(settlement.Payouts) > 0 {
		staked := pools.Total()
		if diff := settlement.TotalPaid() + settlement.HouseCut - staked; math.Abs(diff) > 1e-6 {
			s.log.Errorf("cycle %d: settlement off by %v (staked %v, paid %v, cut %v)",
				cycle, diff, staked, settlement.TotalPaid(), settlement.HouseCut)
		}
	}

	var totalPaid float64
	var failed int
	for _, p := range settlement.Payouts {
		res := s.dispatcher.Send(ctx, p.Address, p.Amount)

		entry := &arenadb.PayoutEntry{
			Cycle:   cycle,
			Address: p.Address,
			Stake:   p.Stake,
			Amount:  p.Amount,
			Profit:  p.Profit,
			Ref:     res.Ref,
			At:      time.Now(),
		}
		if res.Success {
			entry.Status = arenadb.PayoutSent
			totalPaid += p.Amount
			s.emit(fightarena.EventPayoutSent, fightarena.PayoutSent{
				Cycle:   cycle,
				Address: p.Address,
				Amount:  p.Amount,
				Profit:  p.Profit,
				Ref:     res.Ref,
			})
		} else {
			entry.Status = arenadb.PayoutFailed
			entry.Detail = res.ErrDetail
			failed++
			s.log.Errorf("cycle %d: payout of %v to %s failed: %s",
				cycle, p.Amount, p.Address, res.ErrDetail)
			s.emit(fightarena.EventDispatchFailed, fightarena.DispatchFailed{
				Cycle:   cycle,
				Address: p.Address,
				Amount:  p.Amount,
				Detail:  res.ErrDetail,
			})
		}
		if err := s.db.StorePayout(ctx, entry); err != nil {
			s.log.Errorf("cycle %d: store payout record: %v", cycle, err)
		}
	}

	if err := s.db.StoreBattle(ctx, &arenadb.BattleRecord{
		Cycle:     cycle,
		Seed:      seed,
		Winner:    winner,
		Frames:    frames,
		DecidedBy: decidedBy,
		Pools:     pools,
		HouseCut:  settlement.HouseCut,
		TotalPaid: totalPaid,
		EndedAt:   time.Now(),
	}); err != nil {
		s.log.Errorf("cycle %d: store battle record: %v", cycle, err)
	}

	s.log.Infof("cycle %d: settled, paid %v to %d winners (%d failed), house cut %v",
		cycle, totalPaid, len(settlement.Payouts)-failed, failed, settlement.HouseCut)
	s.emit(fightarena.EventPayoutBatchComplete, fightarena.PayoutBatchComplete{
		Cycle:          cycle,
		TotalPaid:      totalPaid,
		RecipientCount: len(settlement.Payouts) - failed,
		HouseCut:       settlement.HouseCut,
		FailedCount:    failed,
	})
}
