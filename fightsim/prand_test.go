package fightsim

import (
	"testing"

	"pgregory.net/rapid"
)

func TestPRandSameSeedSameSequence(t *testing.T) {
	a := NewPRand(987654321)
	b := NewPRand(987654321)
	for i := 0; i < 1000; i++ {
		if av, bv := a.Next(), b.Next(); av != bv {
			t.Fatalf("sequences diverged at draw %d: %v != %v", i, av, bv)
		}
	}
}

func TestPRandSeedNormalization(t *testing.T) {
	// Zero and negative seeds must still land on a valid internal state.
	// -2147483646 reduces to one short of the modulus, where an off-by-one
	// remap would land on the fixed point at 0 and freeze the stream.
	for _, seed := range []int64{0, -1, -2147483646, -2147483647, 2147483647, 4294967294} {
		r := NewPRand(seed)
		if r.state < 1 || r.state > lcgModulus-1 {
			t.Fatalf("seed %d normalized to %d, outside [1, %d]", seed, r.state, lcgModulus-1)
		}
		for i := 0; i < 20; i++ {
			if v := r.Next(); v < 0 || v >= 1 {
				t.Fatalf("seed %d draw %d out of [0,1): %v", seed, i, v)
			}
		}
	}

	// Seeds congruent mod the modulus collapse to the same stream.
	a := NewPRand(5)
	b := NewPRand(5 + lcgModulus)
	if a.Next() != b.Next() {
		t.Fatal("congruent seeds produced different streams")
	}
}

func TestPRandProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		r := NewPRand(seed)
		for i := 0; i < 100; i++ {
			v := r.Next()
			if v < 0 || v >= 1 {
				t.Fatalf("draw %d out of [0,1): %v", i, v)
			}
		}
	})
}

func TestPRandNextIntBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		lo := rapid.IntRange(-50, 50).Draw(t, "lo")
		hi := rapid.IntRange(lo, lo+100).Draw(t, "hi")
		r := NewPRand(seed)
		for i := 0; i < 50; i++ {
			n := r.NextInt(lo, hi)
			if n < lo || n > hi {
				t.Fatalf("NextInt(%d, %d) = %d", lo, hi, n)
			}
		}
	})
}
