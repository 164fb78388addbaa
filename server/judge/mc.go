package judge

import (
	"math/rand"

	"bj-trainer/server/engine"
)

// SampleDealer estimates the dealer distribution by playing trials hands from
// start. Cards come from comp under the same rules as DealerDistribution but
// with no depth cap, so the estimate carries the mass the enumeration drops.
func SampleDealer(start int, comp engine.Composition, trials int, rng *rand.Rand) Distribution {
	var d Distribution
	n := comp.Total()
	if n == 0 || trials <= 0 {
		return d
	}
	w := 1.0 / float64(trials)
	for i := 0; i < trials; i++ {
		total := start
		for total < dealerStands {
			total = addCard(total, drawValue(comp, n, rng))
		}
		if total > engine.Blackjack {
			d.Bust += w
		} else {
			d.Totals[total-dealerStands] += w
		}
	}
	return d
}

// drawValue picks a card value with probability proportional to its count.
func drawValue(comp engine.Composition, n int, rng *rand.Rand) int {
	k := rng.Intn(n)
	for v := engine.MinValue; v <= engine.MaxValue; v++ {
		k -= comp.Count(v)
		if k < 0 {
			return v
		}
	}
	return engine.MaxValue
}

// CrossCheck returns the enumerated StandEV next to a sampled one for the same
// spot. The two agree to within sampling noise plus Missing().
func (a *Advisor) CrossCheck(total, up, trials int, seed int64) (exact, sampled float64) {
	exact = a.StandEV(total, up)
	if total > engine.Blackjack {
		return exact, -1
	}
	d := SampleDealer(up, a.Comp, trials, rand.New(rand.NewSource(seed)))
	return exact, standAgainst(d, total)
}
