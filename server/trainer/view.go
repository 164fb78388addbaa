package trainer

import (
	"bj-trainer/server/engine"
	"bj-trainer/server/judge"
)

type HandView struct {
	Cards   []engine.Card `json:"cards"`
	Value   int           `json:"value"`
	Soft    bool          `json:"soft"`
	Stake   float64       `json:"stake"`
	Doubled bool          `json:"doubled,omitempty"`
	Outcome Outcome       `json:"outcome,omitempty"`
	Net     float64       `json:"net"`
	Active  bool          `json:"active"`
}

// View is the snapshot a client renders. The hole card is withheld until
// it is turned over.
type View struct {
	ID              string         `json:"id"`
	Phase           Phase          `json:"phase"`
	Round           int            `json:"round"`
	Dealer          []engine.Card  `json:"dealer"`
	DealerValue     int            `json:"dealer_value"`
	HoleHidden      bool           `json:"hole_hidden"`
	Hands           []HandView     `json:"hands"`
	Split           bool           `json:"split"`
	Count           engine.Counter `json:"count"`
	ShoeRemaining   int            `json:"shoe_remaining"`
	Reshuffled      bool           `json:"reshuffled,omitempty"`
	Advice          []judge.Choice `json:"advice,omitempty"`
	BustProbability float64        `json:"bust_probability"`
	Legal           []Command      `json:"legal"`
	LastGrade       *judge.Grade   `json:"last_grade,omitempty"`
	Stats           Stats          `json:"stats"`
}

func (s *Session) View(id string) View {
	v := View{
		ID:              id,
		Phase:           s.phase,
		Round:           s.round,
		Split:           s.split != nil,
		Count:           s.count,
		ShoeRemaining:   s.shoe.Remaining(),
		Reshuffled:      s.reshuffled,
		Advice:          s.RankedActions(),
		BustProbability: s.BustProbability(),
		Legal:           s.Legal(),
		LastGrade:       s.lastGrade,
		Stats:           s.stats,
	}
	if len(s.dealer) > 0 {
		if s.holeRevealed {
			v.Dealer = append([]engine.Card(nil), s.dealer...)
			v.DealerValue = engine.Value(s.dealer)
		} else {
			v.Dealer = []engine.Card{s.dealer[0]}
			v.DealerValue = s.dealer[0].Value()
			v.HoleHidden = true
		}
	}
	for i, h := range s.hands {
		v.Hands = append(v.Hands, HandView{
			Cards:   append([]engine.Card(nil), h.Cards...),
			Value:   h.Value(),
			Soft:    engine.IsSoft(h.Cards),
			Stake:   h.Stake,
			Doubled: h.Doubled,
			Outcome: h.Outcome,
			Net:     h.Net,
			Active:  s.phase == PlayerTurn && s.activeIndex() == i,
		})
	}
	return v
}

func (s *Session) activeIndex() int {
	if s.split != nil {
		return s.split.Active
	}
	return 0
}
