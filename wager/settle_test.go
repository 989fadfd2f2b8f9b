package wager

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	fightarena "github.com/arenabets/fightarena"
)

func TestComputePayoutsProRata(t *testing.T) {
	winners := []Bet{
		{Side: fightarena.SideRyu, Amount: 1.0, Bettor: "addr-a"},
		{Side: fightarena.SideRyu, Amount: 2.0, Bettor: "addr-b"},
	}

	s := ComputePayouts(winners, 3.0, 0.05)

	require.Len(t, s.Payouts, 2)
	assert.InDelta(t, 0.15, s.HouseCut, 1e-9)
	assert.InDelta(t, 1.95, s.Payouts[0].Amount, 1e-9)
	assert.InDelta(t, 3.90, s.Payouts[1].Amount, 1e-9)
	assert.InDelta(t, 0.95, s.Payouts[0].Profit, 1e-9)
	assert.InDelta(t, 1.90, s.Payouts[1].Profit, 1e-9)
	assert.Equal(t, "addr-a", s.Payouts[0].Address)
	assert.Equal(t, "addr-b", s.Payouts[1].Address)
}

func TestComputePayoutsNoWinners(t *testing.T) {
	s := ComputePayouts(nil, 10.0, 0.05)
	assert.Zero(t, s.HouseCut)
	assert.Empty(t, s.Payouts)
}

func TestComputePayoutsNoLosers(t *testing.T) {
	winners := []Bet{
		{Amount: 4.0, Bettor: "addr-a"},
		{Amount: 1.0, Bettor: "addr-b"},
	}

	// An empty losing pool means no house cut and everyone gets exactly
	// their stake back.
	s := ComputePayouts(winners, 0, 0.05)

	require.Len(t, s.Payouts, 2)
	assert.Zero(t, s.HouseCut)
	for _, p := range s.Payouts {
		assert.InDelta(t, p.Stake, p.Amount, 1e-9)
		assert.InDelta(t, 0, p.Profit, 1e-9)
	}
}

func TestComputePayoutsOneRecordPerBet(t *testing.T) {
	// The same address with two winning bets gets two records.
	winners := []Bet{
		{Amount: 1.0, Bettor: "addr-a"},
		{Amount: 1.0, Bettor: "addr-a"},
	}
	s := ComputePayouts(winners, 2.0, 0.10)
	require.Len(t, s.Payouts, 2)
	assert.Equal(t, s.Payouts[0], s.Payouts[1])
}

func TestComputePayoutsConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "winners")
		winners := make([]Bet, n)
		var winningTotal float64
		for i := range winners {
			amt := rapid.Float64Range(0.01, 500).Draw(t, "stake")
			winners[i] = Bet{Amount: amt, Bettor: "addr"}
			winningTotal += amt
		}
		losingTotal := rapid.Float64Range(0, 1000).Draw(t, "losing")
		feeRate := rapid.Float64Range(0, 0.2).Draw(t, "fee")

		s := ComputePayouts(winners, losingTotal, feeRate)

		// Every unit staked ends up either paid out or kept by the house.
		got := s.TotalPaid() + s.HouseCut
		want := winningTotal + losingTotal
		if math.Abs(got-want) > 1e-6*math.Max(1, want) {
			t.Fatalf("pool not conserved: paid+cut=%v, staked=%v", got, want)
		}

		// No winner is paid less than a pro-rata share of their own stake.
		for _, p := range s.Payouts {
			if p.Amount < p.Stake-1e-9 && losingTotal > 0 {
				t.Fatalf("winner paid %v on stake %v with losing pool %v",
					p.Amount, p.Stake, losingTotal)
			}
		}
	})
}
