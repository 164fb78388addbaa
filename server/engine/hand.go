package engine

const Blackjack = 21

// Value is the best total of the hand: every ace counts 1, and one of them
// is promoted to 11 if that keeps the total at or below 21.
func Value(cards []Card) int {
	total, _ := value(cards)
	return total
}

func value(cards []Card) (total int, soft bool) {
	aces := 0
	for _, c := range cards {
		if c.Rank == Ace {
			aces++
			total++
			continue
		}
		total += c.Value()
	}
	if aces > 0 && total+10 <= Blackjack {
		return total + 10, true
	}
	return total, false
}

func IsBust(cards []Card) bool { return Value(cards) > Blackjack }

// IsSoft reports whether an ace is currently counted as 11.
func IsSoft(cards []Card) bool {
	_, soft := value(cards)
	return soft
}

// IsPair reports two cards of equal blackjack value (10 and K pair up).
func IsPair(cards []Card) bool {
	return len(cards) == 2 && cards[0].Value() == cards[1].Value()
}

func IsNatural(cards []Card) bool {
	return len(cards) == 2 && Value(cards) == Blackjack
}

// BustProbability is a one-card lookahead: the mass of values 2..11 that
// would push total past 21.
func BustProbability(total int, comp Composition) float64 {
	p := 0.0
	for v := MinValue; v <= MaxValue; v++ {
		if total+v > Blackjack {
			p += comp.Prob(v)
		}
	}
	return p
}
