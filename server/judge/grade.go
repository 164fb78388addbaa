package judge

import "bj-trainer/server/engine"

// TopEpsilon is how far below the best EV a choice may fall and still count
// as a top action.
const TopEpsilon = 0.005

// Grade compares a player's choice with the ranked advice.
type Grade struct {
	Chosen   engine.Action `json:"chosen"`
	Best     engine.Action `json:"best"`
	EVChosen float64       `json:"ev_chosen"`
	EVBest   float64       `json:"ev_best"`
	Gap      float64       `json:"ev_gap"`
	IsTop    bool          `json:"is_top"`
}

// GradeChoice grades chosen against ranked (best first). ok is false when
// ranked is empty or the chosen action was not on offer.
func GradeChoice(chosen engine.Action, ranked []Choice) (g Grade, ok bool) {
	if len(ranked) == 0 {
		return Grade{}, false
	}
	g = Grade{Chosen: chosen, Best: ranked[0].Action, EVBest: ranked[0].EV}
	for _, c := range ranked {
		if c.Action == chosen {
			g.EVChosen = c.EV
			g.Gap = g.EVBest - c.EV
			g.IsTop = g.Gap <= TopEpsilon
			return g, true
		}
	}
	return Grade{}, false
}
