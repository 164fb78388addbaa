package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cards(ranks ...Rank) []Card {
	out := make([]Card, len(ranks))
	for i, r := range ranks {
		out[i] = Card{Rank: r, Suit: Spades}
	}
	return out
}

func TestFreshShoeComposition(t *testing.T) {
	s := NewShoe(6, 1)
	require.Equal(t, 312, s.Remaining())

	counts := s.Counts()
	for v := 2; v <= 9; v++ {
		assert.Equal(t, 24, counts.Count(v), "value %d", v)
	}
	assert.Equal(t, 96, counts.Count(10))
	assert.Equal(t, 24, counts.Count(11))
	assert.Equal(t, s.Remaining(), counts.Total())
}

func TestDrawUntilEmpty(t *testing.T) {
	s := NewShoe(6, 42)
	seen := make(map[string]bool)
	draws := 0
	for {
		c, ok := s.Draw()
		if !ok {
			break
		}
		draws++
		require.False(t, seen[c.ID], "card %s drawn twice", c.ID)
		seen[c.ID] = true

		counts := s.Counts()
		require.Equal(t, s.Remaining(), counts.Total())
		for _, n := range counts {
			require.GreaterOrEqual(t, n, 0)
		}
	}
	assert.Equal(t, 312, draws)

	_, ok := s.Draw()
	assert.False(t, ok)
	assert.Equal(t, 0.0, s.ProbabilityOf(10))
}

func TestInitializeRefills(t *testing.T) {
	s := NewShoe(6, 7)
	for i := 0; i < 270; i++ {
		s.Draw()
	}
	assert.True(t, s.NeedsReshoe(DeckSize))
	s.Initialize()
	assert.False(t, s.NeedsReshoe(DeckSize))
	assert.Equal(t, FullComposition(6), s.Counts())
}

func TestProbabilityOfUsesBuckets(t *testing.T) {
	s := NewShoe(6, 3)
	assert.InDelta(t, 96.0/312.0, s.ProbabilityOf(10), 1e-12)
	assert.InDelta(t, 24.0/312.0, s.ProbabilityOf(11), 1e-12)

	sum := 0.0
	for v := MinValue; v <= MaxValue; v++ {
		sum += s.ProbabilityOf(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestHandValue(t *testing.T) {
	tests := []struct {
		name string
		hand []Card
		want int
	}{
		{"two aces", cards(Ace, Ace), 12},
		{"ace nine ace", cards(Ace, Nine, Ace), 21},
		{"king queen", cards(King, Queen), 20},
		{"five six king", cards(Five, Six, King), 21},
		{"soft seventeen", cards(Ace, Six), 17},
		{"ace rescue", cards(Ace, Five, Eight), 14},
		{"two aces and a ten", cards(Ace, Ace, Ten), 12},
		{"three aces and eight", cards(Ace, Ace, Ace, Eight), 21},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.hand))
		})
	}
}

func TestTwentyOneThenBust(t *testing.T) {
	base := cards(Five, Six, King)
	require.False(t, IsBust(base))
	for _, r := range Ranks {
		hand := append(append([]Card{}, base...), Card{Rank: r, Suit: Hearts})
		assert.True(t, IsBust(hand), "adding %s", r)
	}
}

func TestSoftPairNatural(t *testing.T) {
	assert.True(t, IsSoft(cards(Ace, Six)))
	assert.False(t, IsSoft(cards(Ace, Six, Nine)))
	assert.True(t, IsPair(cards(Ten, King)))
	assert.True(t, IsPair(cards(Eight, Eight)))
	assert.False(t, IsPair(cards(Seven, Nine)))
	assert.True(t, IsNatural(cards(Ace, Queen)))
	assert.False(t, IsNatural(cards(Seven, Seven, Seven)))
}

func TestBustProbability(t *testing.T) {
	comp := FullComposition(6)
	assert.Equal(t, 0.0, BustProbability(10, comp))
	// at 12 only tens and aces (counted as 11) bust
	assert.InDelta(t, 120.0/312.0, BustProbability(12, comp), 1e-12)
	assert.InDelta(t, 1.0, BustProbability(20, comp), 1e-12)
	assert.Equal(t, 0.0, BustProbability(20, Composition{}))
}

func TestHiLo(t *testing.T) {
	for _, r := range Ranks {
		c := NewCounter(6)
		c.Observe(300, Card{Rank: r})
		switch {
		case r <= Six:
			assert.Equal(t, 1, c.Running, "rank %s", r)
		case r <= Nine:
			assert.Equal(t, 0, c.Running, "rank %s", r)
		default:
			assert.Equal(t, -1, c.Running, "rank %s", r)
		}
	}
}

func TestCounterTrueCountFloor(t *testing.T) {
	c := NewCounter(6)
	c.Observe(104, cards(Two, Three, Four, Five)...)
	assert.Equal(t, 4, c.Running)
	assert.InDelta(t, 2.0, c.DecksRemaining, 1e-12)
	assert.InDelta(t, 2.0, c.True, 1e-12)

	c.Observe(10, Card{Rank: Six})
	assert.Equal(t, MinDecksRemaining, c.DecksRemaining)
	assert.InDelta(t, 10.0, c.True, 1e-12)
}

func TestParseRank(t *testing.T) {
	r, err := ParseRank("10")
	require.NoError(t, err)
	assert.Equal(t, Ten, r)
	r, err = ParseRank("A")
	require.NoError(t, err)
	assert.Equal(t, Ace, r)
	_, err = ParseRank("Z")
	assert.Error(t, err)
}

func TestRigQueuesCards(t *testing.T) {
	s := NewShoe(1, 9)
	require.NoError(t, s.Rig(Seven, Six, Nine, King))
	assert.Equal(t, 52, s.Remaining())
	assert.Equal(t, s.Remaining(), s.Counts().Total())

	for _, want := range []Rank{Seven, Six, Nine, King} {
		c, ok := s.Draw()
		require.True(t, ok)
		assert.Equal(t, want, c.Rank)
	}
	assert.Equal(t, 48, s.Remaining())
	assert.Equal(t, s.Remaining(), s.Counts().Total())
}

func TestRigRejectsExhaustedRank(t *testing.T) {
	s := NewShoe(1, 9)
	err := s.Rig(Ace, Ace, Ace, Ace, Ace)
	assert.Error(t, err)
	assert.Equal(t, 52, s.Remaining())
	c, ok := s.Draw()
	require.True(t, ok)
	assert.NotEmpty(t, c.ID)
}
