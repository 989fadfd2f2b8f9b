package fightsim

import (
	"math"

	fightarena "github.com/arenabets/fightarena"
)

// Stage and combat constants. These are part of the deterministic contract:
// a client replaying a seed must use the same values to reach the same
// outcome.
const (
	initialHealth = 100
	stageLeft     = 20.0
	stageRight    = 362.0

	// MaxFrames caps a battle at 90 seconds of simulated time (60 fps).
	// Reaching it resolves the battle by remaining health, with a single
	// 50/50 draw breaking an exact tie.
	MaxFrames = 5400

	decisionInterval = 10 // frames between AI re-evaluations
	actionCooldown   = 30 // frames a fighter commits to an offensive choice

	meleeRange    = 50.0
	specialRange  = 80.0
	approachSlack = 20.0
	retreatSlack  = 35.0

	walkSpeed     = 2.0
	minSeparation = 40.0
	pushApart     = 2.0
	knockback     = 10.0

	blockFactor = 0.3
	comboBonus  = 2

	attackRecoveryFrames = 18
	hurtRecoveryFrames   = 12
	comboResetFrames     = 60
)

type decision int

const (
	decideNeutral decision = iota
	decideRecover
	decideApproach
	decideRetreat
	decideBlock
	decideAttackLight
	decideAttackMedium
	decideAttackHeavy
	decideAttackSpecial
)

// Snapshot is the public state of one simulation frame. Values only; two
// snapshots from identically seeded runs compare equal with ==.
type Snapshot struct {
	Frame    int             `json:"frameCount"`
	Winner   fightarena.Side `json:"winner,omitempty"`
	Fighters [2]FighterView  `json:"fighters"`
}

// Simulator advances a two-fighter battle one fixed time-step at a time.
// All randomness flows from the battle seed: each fighter draws decisions
// from its own stream (seed + index*1000) so the two decision sequences
// never collide, and a third battle-level stream breaks frame-cap ties.
// A Simulator is single-owner and not restartable mid-run; replaying
// requires a new instance with the same seed.
type Simulator struct {
	seed     int64
	frame    int
	winner   fightarena.Side
	fighters [2]*fighter
	profiles [2]Profile

	rngs      [2]*PRand
	battleRNG *PRand

	decisions  [2]decision
	lastAction [2]int
}

// NewBattle creates a battle seeded with the default RYU/KEN profiles and
// returns it positioned at frame zero.
func NewBattle(seed int64) *Simulator {
	return NewBattleWithProfiles(seed, DefaultProfiles())
}

// NewBattleWithProfiles creates a battle with explicit personality
// profiles. Profiles are index-aligned with fightarena.Sides().
func NewBattleWithProfiles(seed int64, profiles [2]Profile) *Simulator {
	s := &Simulator{
		seed:      seed,
		profiles:  profiles,
		battleRNG: NewPRand(seed),
	}
	s.fighters[0] = newFighter(profiles[0].Name, 100, 1)
	s.fighters[1] = newFighter(profiles[1].Name, 280, -1)
	for i := range s.rngs {
		s.rngs[i] = NewPRand(seed + int64(i)*1000)
	}
	return s
}

// Seed returns the seed this battle was built from.
func (s *Simulator) Seed() int64 { return s.seed }

// Snapshot returns the current frame's public state.
func (s *Simulator) Snapshot() Snapshot {
	return Snapshot{
		Frame:    s.frame,
		Winner:   s.winner,
		Fighters: [2]FighterView{s.fighters[0].view(), s.fighters[1].view()},
	}
}

// AdvanceFrame steps the simulation once and returns the resulting
// snapshot. Once a winner is set the state is frozen and further calls
// return the terminal snapshot unchanged.
func (s *Simulator) AdvanceFrame() Snapshot {
	if s.winner != "" {
		return s.Snapshot()
	}

	s.frame++

	if s.frame%decisionInterval == 0 {
		s.updateDecisions()
	}

	for i := range s.fighters {
		s.fighters[i].settleCooldowns(s.frame)
		s.applyDecision(i)
	}

	s.separate()
	s.clampPositions()
	s.checkWinner()

	return s.Snapshot()
}

// ForceDecision resolves the battle immediately by the same rule as the
// frame cap: more health wins, an exact tie is a 50/50 draw. It is a no-op
// when a winner already exists.
func (s *Simulator) ForceDecision() fightarena.Side {
	if s.winner == "" {
		s.resolveByHealth()
	}
	return s.winner
}

func (s *Simulator) updateDecisions() {
	for i := range s.fighters {
		f := s.fighters[i]
		p := s.profiles[i]

		if f.busy(s.frame) {
			continue
		}
		if f.state == StateHurt {
			s.decisions[i] = decideRecover
			continue
		}
		if s.frame-s.lastAction[i] < actionCooldown && s.lastAction[i] > 0 {
			continue
		}

		dist := s.distance()
		r := s.rngs[i].Next()

		switch {
		case dist < meleeRange && r < p.Aggressiveness:
			s.decisions[i] = s.selectAttack(i)
			s.lastAction[i] = s.frame
		case dist < meleeRange && r < p.Aggressiveness+p.Defensiveness:
			s.decisions[i] = decideBlock
		case dist > p.PreferredRange+approachSlack:
			s.decisions[i] = decideApproach
		case dist < p.PreferredRange-retreatSlack && r < p.Defensiveness:
			s.decisions[i] = decideRetreat
		case r < p.SpecialFreq && dist > specialRange:
			s.decisions[i] = decideAttackSpecial
			s.lastAction[i] = s.frame
		default:
			s.decisions[i] = decideNeutral
		}
	}
}

func (s *Simulator) selectAttack(i int) decision {
	r := s.rngs[i].Next()
	switch {
	case r < 0.4:
		return decideAttackLight
	case r < 0.7:
		return decideAttackMedium
	case r < 0.9:
		return decideAttackHeavy
	}
	return decideAttackSpecial
}

func (s *Simulator) applyDecision(i int) {
	f := s.fighters[i]
	opp := s.fighters[1-i]
	p := s.profiles[i]

	if f.busy(s.frame) {
		return
	}

	switch d := s.decisions[i]; d {
	case decideApproach:
		f.blocking = false
		f.state = StateWalking
		if f.x < opp.x {
			f.x += walkSpeed * p.Speed
			f.facing = 1
		} else {
			f.x -= walkSpeed * p.Speed
			f.facing = -1
		}

	case decideRetreat:
		f.blocking = false
		f.state = StateWalking
		if f.x < opp.x {
			f.x -= walkSpeed * p.Speed
			f.facing = 1
		} else {
			f.x += walkSpeed * p.Speed
			f.facing = -1
		}

	case decideAttackLight, decideAttackMedium, decideAttackHeavy, decideAttackSpecial:
		f.blocking = false
		tier := attackTiers[d]
		f.state = tier.state
		f.attackDoneAtFrame = s.frame + attackRecoveryFrames
		s.resolveAttack(i, tier)
		// One launch per decision; the next one needs a fresh roll.
		s.decisions[i] = decideNeutral

	case decideBlock:
		f.blocking = true
		f.state = StateBlocking

	case decideRecover:
		// Cooldown expiry flips the fighter back to idle.

	default:
		f.blocking = false
		if f.state != StateHurt {
			f.state = StateIdle
		}
	}
}

func (s *Simulator) resolveAttack(attacker int, tier attackTier) {
	att := s.fighters[attacker]
	def := s.fighters[1-attacker]

	if s.distance() > tier.reach {
		return // whiff
	}
	if !s.rngs[attacker].Chance(tier.hitChance) {
		return // miss
	}

	if def.blocking {
		def.health -= int(math.Floor(float64(tier.damage) * blockFactor))
		if def.health < 0 {
			def.health = 0
		}
		return
	}

	dmg := tier.damage
	if att.combo > 0 {
		dmg += comboBonus
	}
	def.health -= dmg
	if def.health < 0 {
		def.health = 0
	}

	def.state = StateHurt
	def.blocking = false
	def.recoverAtFrame = s.frame + hurtRecoveryFrames
	if att.x < def.x {
		def.x += knockback
	} else {
		def.x -= knockback
	}

	att.combo++
	att.comboResetAtFrame = s.frame + comboResetFrames
}

// separate pushes both fighters apart symmetrically when they overlap.
func (s *Simulator) separate() {
	if s.distance() >= minSeparation {
		return
	}
	a, b := s.fighters[0], s.fighters[1]
	if a.x < b.x {
		a.x -= pushApart
		b.x += pushApart
	} else {
		a.x += pushApart
		b.x -= pushApart
	}
}

// clampPositions pins fighters to the playable bounds. A pinned fighter
// simply cannot move further outward this frame, which stops wall
// oscillation.
func (s *Simulator) clampPositions() {
	for _, f := range s.fighters {
		f.x = math.Max(stageLeft, math.Min(stageRight, f.x))
	}
}

func (s *Simulator) checkWinner() {
	a, b := s.fighters[0], s.fighters[1]

	if a.health <= 0 {
		s.winner = b.id
		a.state = StateKnockedOut
		return
	}
	if b.health <= 0 {
		s.winner = a.id
		b.state = StateKnockedOut
		return
	}

	if s.frame >= MaxFrames {
		s.resolveByHealth()
	}
}

func (s *Simulator) resolveByHealth() {
	a, b := s.fighters[0], s.fighters[1]
	switch {
	case a.health > b.health:
		s.winner = a.id
	case b.health > a.health:
		s.winner = b.id
	default:
		// Exact tie: one more draw from the battle-level stream.
		if s.battleRNG.Chance(0.5) {
			s.winner = a.id
		} else {
			s.winner = b.id
		}
	}
}

func (s *Simulator) distance() float64 {
	return math.Abs(s.fighters[0].x - s.fighters[1].x)
}
