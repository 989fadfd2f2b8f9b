package wager

// PayoutRecord is one winning bettor's computed share.
type PayoutRecord struct {
	Address string  `json:"address"`
	Stake   float64 `json:"stake"`
	Amount  float64 `json:"amount"`
	Profit  float64 `json:"profit"`
}

// Settlement is the result of splitting a cycle's pools.
type Settlement struct {
	HouseCut float64        `json:"houseCut"`
	Payouts  []PayoutRecord `json:"payouts"`
}

// TotalPaid sums the computed payout amounts.
func (s Settlement) TotalPaid() float64 {
	var t float64
	for _, p := range s.Payouts {
		t += p.Amount
	}
	return t
}

// ComputePayouts splits the combined pool pari-mutuel style. The house cut
// is taken from the losing pool only; what remains of both pools is
// distributed to winning bettors pro rata by stake. Payouts preserve the
// bet order of winningBets, and a bettor with several winning bets gets one
// record per bet.
//
// With no winning stakes there is nothing to distribute and the whole
// losing pool is left untouched: the house keeps nothing and no payouts are
// produced.
func ComputePayouts(winningBets []Bet, losingTotal, feeRate float64) Settlement {
	var winningTotal float64
	for _, b := range winningBets {
		winningTotal += b.Amount
	}
	if winningTotal <= 0 {
		return Settlement{}
	}

	houseCut := losingTotal * feeRate
	distributable := winningTotal + losingTotal - houseCut

	payouts := make([]PayoutRecord, 0, len(winningBets))
	for _, b := range winningBets {
		amount := b.Amount / winningTotal * distributable
		payouts = append(payouts, PayoutRecord{
			Address: b.Bettor,
			Stake:   b.Amount,
			Amount:  amount,
			Profit:  amount - b.Amount,
		})
	}
	return Settlement{HouseCut: houseCut, Payouts: payouts}
}
