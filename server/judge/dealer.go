package judge

import "bj-trainer/server/engine"

const (
	dealerStands = 17
	// maxDealerDraws caps the recursion at five cards past the start.
	maxDealerDraws = 5
)

// Distribution is the dealer's final-hand probability: bust or 17..21.
// Long draw sequences cut off by the depth cap are left out, so the mass may
// sum to slightly less than 1.
type Distribution struct {
	Bust   float64    `json:"bust"`
	Totals [5]float64 `json:"totals"` // 17, 18, 19, 20, 21
}

// Total is the probability the dealer finishes on t (17..21).
func (d Distribution) Total(t int) float64 {
	if t < dealerStands || t > engine.Blackjack {
		return 0
	}
	return d.Totals[t-dealerStands]
}

func (d Distribution) Sum() float64 {
	s := d.Bust
	for _, p := range d.Totals {
		s += p
	}
	return s
}

// Missing is the mass dropped by the depth cap.
func (d Distribution) Missing() float64 { return 1 - d.Sum() }

// DealerDistribution enumerates the dealer's outcomes from a starting total.
// Every step draws from the same composition; an ace counts 1 when 11 would
// bust the running total.
func DealerDistribution(start int, comp engine.Composition) Distribution {
	var d Distribution
	var walk func(total, depth int, p float64)
	walk = func(total, depth int, p float64) {
		if depth > maxDealerDraws {
			return
		}
		if total > engine.Blackjack {
			d.Bust += p
			return
		}
		if total >= dealerStands {
			d.Totals[total-dealerStands] += p
			return
		}
		for v := engine.MinValue; v <= engine.MaxValue; v++ {
			prob := comp.Prob(v)
			if prob <= 0 {
				continue
			}
			walk(addCard(total, v), depth+1, p*prob)
		}
	}
	walk(start, 0, 1.0)
	return d
}

// addCard adds one card of value v to a bare total, demoting an ace that
// would bust.
func addCard(total, v int) int {
	if v == engine.MaxValue && total+v > engine.Blackjack {
		return total + 1
	}
	return total + v
}
