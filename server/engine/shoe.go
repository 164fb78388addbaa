package engine

import (
	"fmt"
	"math/rand"
	"time"
)

// Shoe is the multi-deck stack of cards still to be dealt. Counts always
// mirrors the remaining cards bucket by bucket.
type Shoe struct {
	decks  int
	cards  []Card
	queue  []Card // rigged cards, drawn first
	counts Composition
	rng    *rand.Rand
}

// NewShoe builds an initialized shoe. A zero seed uses the clock.
func NewShoe(decks int, seed int64) *Shoe {
	if decks <= 0 {
		decks = 6
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Shoe{decks: decks, rng: rand.New(rand.NewSource(seed))}
	s.Initialize()
	return s
}

// Initialize refills the shoe with fresh decks.
func (s *Shoe) Initialize() {
	s.cards = NewDeck(s.decks)
	s.queue = nil
	s.counts = FullComposition(s.decks)
}

// Draw removes one uniformly random card. ok is false on an empty shoe.
func (s *Shoe) Draw() (c Card, ok bool) {
	if len(s.queue) > 0 {
		c, s.queue = s.queue[0], s.queue[1:]
		s.counts.remove(c.Rank)
		return c, true
	}
	n := len(s.cards)
	if n == 0 {
		return Card{}, false
	}
	i := s.rng.Intn(n)
	c = s.cards[i]
	s.cards[i] = s.cards[n-1]
	s.cards = s.cards[:n-1]
	s.counts.remove(c.Rank)
	return c, true
}

// ProbabilityOf is the bucketed chance the next card has the given value.
func (s *Shoe) ProbabilityOf(value int) float64 { return s.counts.Prob(value) }

func (s *Shoe) Counts() Composition { return s.counts }
func (s *Shoe) Remaining() int      { return len(s.cards) + len(s.queue) }
func (s *Shoe) Decks() int          { return s.decks }

// NeedsReshoe reports whether fewer than threshold cards are left.
func (s *Shoe) NeedsReshoe(threshold int) bool { return s.Remaining() < threshold }

// Rig pulls one card of each rank out of the shoe and queues them to be
// drawn next, in order. Drills use it to set up a chosen situation. Nothing
// is moved if any rank has run out.
func (s *Shoe) Rig(ranks ...Rank) error {
	picked := make([]int, 0, len(ranks))
	taken := make(map[int]bool, len(ranks))
	for _, r := range ranks {
		found := -1
		for i, c := range s.cards {
			if c.Rank == r && !taken[i] {
				found = i
				break
			}
		}
		if found < 0 {
			return fmt.Errorf("no %s left in the shoe", r)
		}
		taken[found] = true
		picked = append(picked, found)
	}
	for _, i := range picked {
		s.queue = append(s.queue, s.cards[i])
	}
	kept := s.cards[:0]
	for i, c := range s.cards {
		if !taken[i] {
			kept = append(kept, c)
		}
	}
	s.cards = kept
	return nil
}
