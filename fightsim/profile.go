package fightsim

import fightarena "github.com/arenabets/fightarena"

// Profile biases a fighter's weighted decision rolls. The values are a
// tuning choice, but they must stay stable across releases: changing any of
// them changes every battle outcome for a given seed.
type Profile struct {
	Name           fightarena.Side
	Aggressiveness float64 // probability of attacking at close range
	Defensiveness  float64 // probability of blocking at close range
	SpecialFreq    float64 // probability of a ranged special attack
	Speed          float64 // movement multiplier
	PreferredRange float64 // distance the fighter tries to hold
}

// DefaultProfiles returns the fixed RYU/KEN personalities, index-aligned
// with fightarena.Sides().
func DefaultProfiles() [2]Profile {
	return [2]Profile{
		{
			Name:           fightarena.SideRyu,
			Aggressiveness: 0.55,
			Defensiveness:  0.45,
			SpecialFreq:    0.25,
			Speed:          1.0,
			PreferredRange: 80,
		},
		{
			Name:           fightarena.SideKen,
			Aggressiveness: 0.75,
			Defensiveness:  0.25,
			SpecialFreq:    0.35,
			Speed:          1.1,
			PreferredRange: 50,
		},
	}
}

// PassiveProfiles never attack. They exist for exercising the frame-cap and
// tie-break paths.
func PassiveProfiles() [2]Profile {
	return [2]Profile{
		{Name: fightarena.SideRyu, Speed: 1.0, PreferredRange: 80},
		{Name: fightarena.SideKen, Speed: 1.0, PreferredRange: 80},
	}
}

// attackTier holds the per-strength attack parameters. Reach grows with
// strength; hit probability shrinks with it.
type attackTier struct {
	state     ActionState
	damage    int
	hitChance float64
	reach     float64
}

var attackTiers = map[decision]attackTier{
	decideAttackLight:   {StateAttackLight, 5, 0.9, 55},
	decideAttackMedium:  {StateAttackMedium, 8, 0.8, 60},
	decideAttackHeavy:   {StateAttackHeavy, 12, 0.7, 65},
	decideAttackSpecial: {StateAttackSpecial, 15, 0.6, 75},
}
