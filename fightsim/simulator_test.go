package fightsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fightarena "github.com/arenabets/fightarena"
)

// runToEnd advances a battle until it produces a winner. The frame cap
// guarantees termination, so exceeding it means the winner check broke.
func runToEnd(t *testing.T, s *Simulator) Snapshot {
	t.Helper()
	for i := 0; i <= MaxFrames+1; i++ {
		snap := s.AdvanceFrame()
		if snap.Winner != "" {
			return snap
		}
	}
	t.Fatalf("battle did not resolve within %d frames", MaxFrames)
	return Snapshot{}
}

func TestBattleDeterminism(t *testing.T) {
	a := NewBattle(42)
	b := NewBattle(42)

	for i := 0; i < 3000; i++ {
		sa := a.AdvanceFrame()
		sb := b.AdvanceFrame()
		if sa != sb {
			t.Fatalf("snapshots diverged at frame %d:\n a=%+v\n b=%+v", i+1, sa, sb)
		}
		if sa.Winner != "" {
			break
		}
	}
}

func TestBattleProducesValidWinner(t *testing.T) {
	final := runToEnd(t, NewBattle(12345))

	require.True(t, final.Winner.Valid(), "winner %q not a known side", final.Winner)
	assert.LessOrEqual(t, final.Frame, MaxFrames)

	// The loser is either knocked out or simply behind on health at the cap.
	var loser FighterView
	for _, f := range final.Fighters {
		if f.ID != final.Winner {
			loser = f
		}
	}
	if final.Frame < MaxFrames {
		assert.Equal(t, StateKnockedOut, loser.State)
		assert.Equal(t, 0, loser.Health)
	}
}

func TestBattleReplaySameOutcome(t *testing.T) {
	first := runToEnd(t, NewBattle(777))
	second := runToEnd(t, NewBattle(777))
	assert.Equal(t, first, second)
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := NewBattle(1)
	b := NewBattle(2)

	diverged := false
	for i := 0; i < 600; i++ {
		if a.AdvanceFrame() != b.AdvanceFrame() {
			diverged = true
			break
		}
	}
	assert.True(t, diverged, "seeds 1 and 2 tracked each other for 600 frames")
}

func TestPositionsStayInBounds(t *testing.T) {
	s := NewBattle(99)
	for i := 0; i < MaxFrames; i++ {
		snap := s.AdvanceFrame()
		for _, f := range snap.Fighters {
			if f.X < stageLeft || f.X > stageRight {
				t.Fatalf("frame %d: fighter %s at x=%v outside [%v, %v]",
					snap.Frame, f.ID, f.X, stageLeft, stageRight)
			}
		}
		if snap.Winner != "" {
			break
		}
	}
}

func TestHealthNeverNegative(t *testing.T) {
	s := NewBattle(31337)
	for i := 0; i < MaxFrames; i++ {
		snap := s.AdvanceFrame()
		for _, f := range snap.Fighters {
			require.GreaterOrEqual(t, f.Health, 0)
			require.LessOrEqual(t, f.Health, initialHealth)
		}
		if snap.Winner != "" {
			break
		}
	}
}

func TestFrameCapTieBreak(t *testing.T) {
	// Passive fighters never land a hit, so the battle runs to the cap with
	// both at full health and the tie-break draw picks the winner.
	s := NewBattleWithProfiles(4242, PassiveProfiles())
	final := runToEnd(t, s)

	assert.Equal(t, MaxFrames, final.Frame)
	assert.True(t, final.Winner.Valid())
	for _, f := range final.Fighters {
		assert.Equal(t, initialHealth, f.Health)
	}

	// The tie-break is part of the deterministic contract too.
	replay := runToEnd(t, NewBattleWithProfiles(4242, PassiveProfiles()))
	assert.Equal(t, final.Winner, replay.Winner)
}

func TestForceDecision(t *testing.T) {
	s := NewBattleWithProfiles(4242, PassiveProfiles())
	for i := 0; i < 120; i++ {
		s.AdvanceFrame()
	}

	w := s.ForceDecision()
	require.True(t, w.Valid())

	// Terminal state is frozen: forcing again or stepping changes nothing.
	assert.Equal(t, w, s.ForceDecision())
	after := s.AdvanceFrame()
	assert.Equal(t, w, after.Winner)
	assert.Equal(t, 120, after.Frame)
}

func TestForceDecisionPrefersHealthLead(t *testing.T) {
	s := NewBattle(5555)
	var snap Snapshot
	for i := 0; i < 1200; i++ {
		snap = s.AdvanceFrame()
		if snap.Winner != "" {
			break
		}
		if snap.Fighters[0].Health != snap.Fighters[1].Health {
			break
		}
	}
	if snap.Winner != "" || snap.Fighters[0].Health == snap.Fighters[1].Health {
		t.Skip("no health lead materialized in 1200 frames for this seed")
	}

	lead := snap.Fighters[0]
	if snap.Fighters[1].Health > lead.Health {
		lead = snap.Fighters[1]
	}
	assert.Equal(t, lead.ID, s.ForceDecision())
}

func TestSnapshotFrameZero(t *testing.T) {
	snap := NewBattle(1).Snapshot()

	assert.Equal(t, 0, snap.Frame)
	assert.Equal(t, fightarena.Side(""), snap.Winner)
	assert.Equal(t, fightarena.SideRyu, snap.Fighters[0].ID)
	assert.Equal(t, fightarena.SideKen, snap.Fighters[1].ID)
	assert.Equal(t, 100.0, snap.Fighters[0].X)
	assert.Equal(t, 280.0, snap.Fighters[1].X)
	for _, f := range snap.Fighters {
		assert.Equal(t, initialHealth, f.Health)
		assert.Equal(t, StateIdle, f.State)
	}
}
