package main

import (
	"math"
	"math/rand"
	"sort"

	"bj-trainer/server/trainer"
)

const bootstrapSamples = 1000

// Report is a session's results with confidence intervals attached.
type Report struct {
	trainer.Stats
	Accuracy    float64    `json:"accuracy"`
	WinRateCI   [2]float64 `json:"win_rate_ci95"`
	NetPerRound float64    `json:"net_per_round"`
	NetCI       [2]float64 `json:"net_per_round_ci95"`
	Persisted   *Persisted `json:"persisted,omitempty"`
}

// Persisted is the accuracy as recorded in the database.
type Persisted struct {
	Good   int     `json:"good"`
	Total  int     `json:"total"`
	EVLost float64 `json:"ev_lost"`
}

func reportFor(st trainer.Stats) Report {
	r := Report{Stats: st, Accuracy: st.Accuracy()}
	decided := st.Wins + st.Losses + st.Pushes + st.Surrenders
	r.WinRateCI[0], r.WinRateCI[1] = WilsonCI95(st.Wins, st.Pushes, decided)
	if st.Rounds > 0 {
		r.NetPerRound = st.Net / float64(st.Rounds)
	}
	r.NetCI[0], r.NetCI[1] = BootstrapCI95(st.RoundNets, bootstrapSamples)
	return r
}

// WilsonCI95 for a Bernoulli win rate; ties count as half a win.
func WilsonCI95(wins, ties, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(ties)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}

// BootstrapCI95 for the mean of values (e.g. net units per round).
func BootstrapCI95(vals []float64, B int) (low, hi float64) {
	n := len(vals)
	if n == 0 || B <= 1 {
		return 0, 0
	}
	res := make([]float64, B)
	for b := 0; b < B; b++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += vals[rand.Intn(n)]
		}
		res[b] = sum / float64(n)
	}
	sort.Float64s(res)
	l := int(0.025 * float64(B-1))
	h := int(0.975 * float64(B-1))
	return res[l], res[h]
}
