package engine

import "fmt"

// Buckets holds one slot per blackjack value 2..11; J/Q/K share the 10 slot
// and the ace lives in the 11 slot.
const Buckets = 10

// MinValue and MaxValue bound the values a single card can add.
const (
	MinValue = 2
	MaxValue = 11
)

const DeckSize = 52

// Composition is the number of cards left per bucket, indexed by value-2.
type Composition [Buckets]int

func bucket(value int) int { return value - MinValue }

// FullComposition is the bucket layout of a fresh shoe of n decks.
func FullComposition(decks int) Composition {
	var c Composition
	for v := MinValue; v <= MaxValue; v++ {
		c[bucket(v)] = 4 * decks
	}
	c[bucket(10)] = 16 * decks
	return c
}

func (c Composition) Count(value int) int {
	if value < MinValue || value > MaxValue {
		return 0
	}
	return c[bucket(value)]
}

func (c Composition) Total() int {
	n := 0
	for _, k := range c {
		n += k
	}
	return n
}

// Prob is the chance the next card has the given value. An exhausted
// composition yields 0 rather than dividing by zero.
func (c Composition) Prob(value int) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Count(value)) / float64(total)
}

// With returns a copy with one card of the given rank added back.
func (c Composition) With(r Rank) Composition {
	c[bucket(r.Value())]++
	return c
}

func (c *Composition) remove(r Rank) {
	c[bucket(r.Value())]--
}

// NewDeck builds n ordered standard decks with unique card ids.
func NewDeck(decks int) []Card {
	cards := make([]Card, 0, decks*DeckSize)
	for d := 0; d < decks; d++ {
		for _, s := range Suits {
			for _, r := range Ranks {
				cards = append(cards, Card{Rank: r, Suit: s, ID: fmt.Sprintf("%d-%s-%s", d, s, r)})
			}
		}
	}
	return cards
}
