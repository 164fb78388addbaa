package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bj-trainer/server/engine"
	"bj-trainer/server/trainer"
)

func TestWilsonCI95(t *testing.T) {
	lo, hi := WilsonCI95(0, 0, 0)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = WilsonCI95(50, 0, 100)
	assert.Less(t, lo, 0.5)
	assert.Greater(t, hi, 0.5)
	assert.InDelta(t, 0.5, (lo+hi)/2, 1e-9)
}

func TestBootstrapCI95(t *testing.T) {
	lo, hi := BootstrapCI95(nil, 100)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)

	lo, hi = BootstrapCI95([]float64{1, 1, 1, 1}, 200)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 1.0, hi)

	vals := []float64{-1, 1, -1, 1, 0, 1.5, -1, 1}
	lo, hi = BootstrapCI95(vals, 500)
	assert.LessOrEqual(t, lo, hi)
	assert.GreaterOrEqual(t, lo, -1.0)
	assert.LessOrEqual(t, hi, 1.5)
}

func TestReportFor(t *testing.T) {
	r := reportFor(trainer.Stats{
		Rounds: 4, Hands: 4, Wins: 2, Losses: 1, Pushes: 1,
		Net: 1, Decisions: 5, Correct: 4, RoundNets: []float64{1, 1, -1, 0},
	})
	assert.InDelta(t, 0.8, r.Accuracy, 1e-12)
	assert.InDelta(t, 0.25, r.NetPerRound, 1e-12)
	assert.LessOrEqual(t, r.WinRateCI[0], r.WinRateCI[1])
}

func TestParseFlags(t *testing.T) {
	assert.Equal(t, flags{migrate: true}, parseFlags([]string{"--migrate"}))
	assert.Equal(t, flags{sim: 250}, parseFlags([]string{"--sim", "250"}))
	assert.Equal(t, flags{sim: 40}, parseFlags([]string{"--sim=40"}))
	assert.Equal(t, flags{sim: 1000, play: true}, parseFlags([]string{"--sim", "--play"}))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DECKS", "2")
	t.Setenv("RESHOE_AT", "30")
	t.Setenv("PORT", "9999")
	t.Setenv("AUTO_MIGRATE", "yes")
	t.Setenv("DATABASE_URL", "")
	cfg := loadConfig()
	assert.Equal(t, 2, cfg.Rules.Decks)
	assert.Equal(t, 30, cfg.Rules.ReshoeAt)
	assert.Equal(t, "9999", cfg.Port)
	assert.True(t, cfg.AutoMigrate)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestSimulate(t *testing.T) {
	rules := trainer.Rules{Decks: 2, ReshoeAt: engine.DeckSize, Seed: 99}
	calls := 0
	st, actions, err := simulate(context.Background(), rules, 60, func() { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 60, st.Rounds)
	assert.Equal(t, 60, calls)
	assert.GreaterOrEqual(t, st.Hands, 60)
	assert.Equal(t, st.Hands, st.Wins+st.Losses+st.Pushes+st.Surrenders)
	assert.Equal(t, st.Decisions, st.Correct, "the advisor's own pick is always top")

	taken := 0
	for _, n := range actions {
		taken += n
	}
	assert.Equal(t, st.Decisions, taken)

	out, err := renderSim(reportFor(st), actions, [2]float64{-0.54, -0.541})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "Advisor self-play"))
	assert.Contains(t, out, "Model check")
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := simulate(ctx, trainer.DefaultRules(), 10, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
