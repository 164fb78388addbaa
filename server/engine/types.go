package engine

import "fmt"

type Suit string

const (
	Spades   Suit = "♠"
	Clubs    Suit = "♣"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
)

var Suits = [4]Suit{Spades, Clubs, Hearts, Diamonds}

// Rank is one of the 13 source ranks. Two..Ten carry their pip value.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

var Ranks = [13]Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// Value is the blackjack value with the ace counted soft (11).
func (r Rank) Value() int {
	switch {
	case r == Ace:
		return 11
	case r >= Ten:
		return 10
	default:
		return int(r)
	}
}

func (r Rank) String() string {
	switch r {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return fmt.Sprintf("%d", int(r))
	}
}

// ParseRank accepts "2".."10", "T", "J", "Q", "K", "A".
func ParseRank(s string) (Rank, error) {
	switch s {
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	case "A":
		return Ace, nil
	case "T", "10":
		return Ten, nil
	}
	if len(s) == 1 && s[0] >= '2' && s[0] <= '9' {
		return Rank(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown rank %q", s)
}

type Action string

const (
	Stand     Action = "stand"
	Hit       Action = "hit"
	Double    Action = "double"
	Split     Action = "split"
	Surrender Action = "surrender"
)

// Card is immutable. ID tells apart equal cards from different decks.
type Card struct {
	Rank Rank   `json:"rank"`
	Suit Suit   `json:"suit"`
	ID   string `json:"id"`
}

// e.g. "K♠"
func (c Card) String() string { return c.Rank.String() + string(c.Suit) }

func (c Card) Value() int { return c.Rank.Value() }
