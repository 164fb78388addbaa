package trainer

import "bj-trainer/server/judge"

// Stats are the running results of one session.
type Stats struct {
	Rounds     int       `json:"rounds"`
	Hands      int       `json:"hands"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Pushes     int       `json:"pushes"`
	Blackjacks int       `json:"blackjacks"`
	Surrenders int       `json:"surrenders"`
	Net        float64   `json:"net_units"`
	Decisions  int       `json:"decisions"`
	Correct    int       `json:"correct"`
	EVLost     float64   `json:"ev_lost"`
	RoundNets  []float64 `json:"-"`
}

// Accuracy is the share of decisions that matched a top action.
func (s Stats) Accuracy() float64 {
	if s.Decisions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Decisions)
}

func (s *Stats) addDecision(g judge.Grade) {
	s.Decisions++
	if g.IsTop {
		s.Correct++
	}
	s.EVLost += g.Gap
}

func (s *Stats) addRound(hands []*PlayerHand, net float64) {
	s.Rounds++
	s.Net += net
	s.RoundNets = append(s.RoundNets, net)
	for _, h := range hands {
		s.Hands++
		switch h.Outcome {
		case Win:
			s.Wins++
		case Natural:
			s.Wins++
			s.Blackjacks++
		case Lose, Bust:
			s.Losses++
		case Push:
			s.Pushes++
		case Surrendered:
			s.Surrenders++
		}
	}
}
