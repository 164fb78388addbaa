package judge

import (
	"sort"

	"bj-trainer/server/engine"
)

// Invalid marks an action that cannot be offered for the current hand. It
// is not an EV and must be filtered out before display.
const Invalid = -999.0

const (
	SurrenderEV = -0.5
	// hits explored after the first one (three levels in total)
	maxHitDepth = 2
	hitCutoff   = 3
)

// Advisor computes action EVs, in units of one bet, against a fixed shoe
// composition. Results are memoized per Advisor; do not share one between
// goroutines.
type Advisor struct {
	Comp engine.Composition

	dealer map[int]Distribution
	hit    map[hitKey]float64
}

type hitKey struct{ total, up, depth int }

func NewAdvisor(comp engine.Composition) *Advisor {
	return &Advisor{
		Comp:   comp,
		dealer: make(map[int]Distribution),
		hit:    make(map[hitKey]float64),
	}
}

// Dealer returns the memoized dealer distribution for an up-card value.
func (a *Advisor) Dealer(up int) Distribution {
	if d, ok := a.dealer[up]; ok {
		return d
	}
	d := DealerDistribution(up, a.Comp)
	a.dealer[up] = d
	return d
}

// StandEV: dealer bust and lower dealer totals win, higher ones lose, a tie
// pushes.
func (a *Advisor) StandEV(total, up int) float64 {
	if total > engine.Blackjack {
		return -1
	}
	return standAgainst(a.Dealer(up), total)
}

func standAgainst(d Distribution, total int) float64 {
	ev := d.Bust
	for t := dealerStands; t <= engine.Blackjack; t++ {
		switch p := d.Total(t); {
		case total > t:
			ev += p
		case total < t:
			ev -= p
		}
	}
	return ev
}

// HitEV takes one card and then plays the better of standing and hitting
// again, up to three levels deep.
func (a *Advisor) HitEV(total, up, depth int) float64 {
	if total >= engine.Blackjack || depth > hitCutoff {
		return -1
	}
	key := hitKey{total, up, depth}
	if ev, ok := a.hit[key]; ok {
		return ev
	}
	ev, mass := 0.0, 0.0
	for v := engine.MinValue; v <= engine.MaxValue; v++ {
		p := a.Comp.Prob(v)
		if p <= 0 {
			continue
		}
		mass += p
		next := addCard(total, v)
		if next > engine.Blackjack {
			ev -= p
			continue
		}
		again := -1.0
		if depth < maxHitDepth {
			again = a.HitEV(next, up, depth+1)
		}
		ev += p * max(a.StandEV(next, up), again)
	}
	if mass == 0 {
		ev = -1
	} else {
		ev /= mass
	}
	a.hit[key] = ev
	return ev
}

// DoubleEV draws exactly one card on a two-card hand at twice the stake.
func (a *Advisor) DoubleEV(total, up, nCards int) float64 {
	if nCards != 2 || total >= engine.Blackjack {
		return Invalid
	}
	ev, mass := 0.0, 0.0
	for v := engine.MinValue; v <= engine.MaxValue; v++ {
		p := a.Comp.Prob(v)
		if p <= 0 {
			continue
		}
		mass += p
		next := addCard(total, v)
		if next > engine.Blackjack {
			ev -= 2 * p
		} else {
			ev += 2 * p * a.StandEV(next, up)
		}
	}
	if mass == 0 {
		return Invalid
	}
	return ev / mass
}

// SplitEV plays each half of a pair of cardValue with one new card, taking
// the better of stand and hit on each, and returns the per-hand average.
func (a *Advisor) SplitEV(cardValue, up int) float64 {
	if cardValue < engine.MinValue || cardValue > engine.MaxValue {
		return Invalid
	}
	var handEV [engine.Buckets]float64
	for v := engine.MinValue; v <= engine.MaxValue; v++ {
		t := addCard(cardValue, v)
		handEV[v-engine.MinValue] = max(a.StandEV(t, up), a.HitEV(t, up, 0))
	}
	ev, mass := 0.0, 0.0
	for v1 := engine.MinValue; v1 <= engine.MaxValue; v1++ {
		p1 := a.Comp.Prob(v1)
		if p1 <= 0 {
			continue
		}
		for v2 := engine.MinValue; v2 <= engine.MaxValue; v2++ {
			p2 := a.Comp.Prob(v2)
			if p2 <= 0 {
				continue
			}
			ev += p1 * p2 * (handEV[v1-engine.MinValue] + handEV[v2-engine.MinValue])
			mass += p1 * p2
		}
	}
	if mass == 0 {
		return Invalid
	}
	return ev / mass / 2
}

// HandShape is what the advisor needs to know about the acting hand.
type HandShape struct {
	Total     int  `json:"total"`
	Cards     int  `json:"cards"`
	PairValue int  `json:"pair_value,omitempty"` // card value when the hand is a splittable pair
	Split     bool `json:"split"`                 // a split is already in progress
}

func (h HandShape) canDouble() bool    { return h.Cards == 2 && !h.Split && h.Total < engine.Blackjack }
func (h HandShape) canSurrender() bool { return h.Cards == 2 && !h.Split }
func (h HandShape) canSplit() bool     { return h.Cards == 2 && h.PairValue > 0 && !h.Split }

// Allowed reports whether the action may be offered for this hand.
func (h HandShape) Allowed(act engine.Action) bool {
	switch act {
	case engine.Stand, engine.Hit:
		return true
	case engine.Double:
		return h.canDouble()
	case engine.Surrender:
		return h.canSurrender()
	case engine.Split:
		return h.canSplit()
	}
	return false
}

type Choice struct {
	Action engine.Action `json:"action"`
	EV     float64       `json:"ev"`
}

// Rank returns every offerable action, best EV first.
func (a *Advisor) Rank(h HandShape, up int) []Choice {
	out := []Choice{
		{engine.Stand, a.StandEV(h.Total, up)},
		{engine.Hit, a.HitEV(h.Total, up, 0)},
	}
	if h.canDouble() {
		out = append(out, Choice{engine.Double, a.DoubleEV(h.Total, up, h.Cards)})
	}
	if h.canSurrender() {
		out = append(out, Choice{engine.Surrender, SurrenderEV})
	}
	if h.canSplit() {
		out = append(out, Choice{engine.Split, a.SplitEV(h.PairValue, up)})
	}
	kept := out[:0]
	for _, c := range out {
		if c.EV != Invalid {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].EV > kept[j].EV })
	return kept
}
