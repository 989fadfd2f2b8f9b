package fightsim

// Lehmer generator constants (Park-Miller minimal standard).
const (
	lcgMultiplier = 16807
	lcgModulus    = 2147483647
)

// PRand is a deterministic pseudo-random source. Two instances built from
// the same seed produce identical sequences, which is what makes battles
// replayable from their seed alone.
type PRand struct {
	state int64
}

// NewPRand normalizes seed into [1, 2147483646] so the multiplicative step
// never hits the degenerate fixed point at 0. Seeds congruent mod the
// modulus collapse to the same stream; the residue 0 maps to state 1.
func NewPRand(seed int64) *PRand {
	s := seed % lcgModulus
	if s < 0 {
		s += lcgModulus
	}
	if s == 0 {
		s = 1
	}
	return &PRand{state: s}
}

// Next advances the generator and returns a float in [0, 1).
func (r *PRand) Next() float64 {
	r.state = (r.state * lcgMultiplier) % lcgModulus
	return float64(r.state-1) / float64(lcgModulus-1)
}

// NextInt returns a uniform integer in [min, max], inclusive on both ends.
func (r *PRand) NextInt(min, max int) int {
	return int(r.Next()*float64(max-min+1)) + min
}

// Chance returns true with probability p.
func (r *PRand) Chance(p float64) bool {
	return r.Next() < p
}
