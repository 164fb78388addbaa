package engine

// MinDecksRemaining keeps the true count finite near the end of the shoe.
const MinDecksRemaining = 0.5

// Counter is the Hi-Lo running/true count of cards seen since the last
// reshoe.
type Counter struct {
	Running        int     `json:"running_count"`
	DecksRemaining float64 `json:"decks_remaining"`
	True           float64 `json:"true_count"`
}

func NewCounter(decks int) Counter {
	var c Counter
	c.Reset(decks)
	return c
}

func (c *Counter) Reset(decks int) {
	c.Running = 0
	c.DecksRemaining = float64(decks)
	c.True = 0
}

// HiLo: +1 for 2-6, -1 for tens and aces, 0 for 7-9.
func HiLo(r Rank) int {
	switch v := r.Value(); {
	case v >= 2 && v <= 6:
		return 1
	case v >= 10:
		return -1
	default:
		return 0
	}
}

// Observe adds the Hi-Lo weight of each newly visible card. remaining is
// the shoe size after those cards were drawn. Each card must be observed
// exactly once.
func (c *Counter) Observe(remaining int, cards ...Card) {
	for _, card := range cards {
		c.Running += HiLo(card.Rank)
	}
	c.DecksRemaining = float64(remaining) / DeckSize
	if c.DecksRemaining < MinDecksRemaining {
		c.DecksRemaining = MinDecksRemaining
	}
	c.True = float64(c.Running) / c.DecksRemaining
}
