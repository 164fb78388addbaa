package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"bj-trainer/server/engine"
	"bj-trainer/server/store"
	"bj-trainer/server/trainer"
)

const recordTimeout = 3 * time.Second

// dbRecorder writes the session audit trail to Postgres.
type dbRecorder struct{ db *store.DB }

func (r dbRecorder) RecordSession(ctx context.Context, id string, rules trainer.Rules) error {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	return r.db.CreateSession(ctx, id, rules.Decks, rules.ReshoeAt)
}

func (r dbRecorder) RecordDecision(ctx context.Context, id string, d trainer.Decision) error {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	evs, err := json.Marshal(d.Advice)
	if err != nil {
		return err
	}
	return r.db.InsertDecision(ctx, store.Decision{
		SessionID:   id,
		Round:       d.Round,
		Hand:        d.Hand,
		PlayerTotal: d.PlayerTotal,
		DealerUp:    d.DealerUp,
		TrueCount:   d.TrueCount,
		Chosen:      string(d.Grade.Chosen),
		Best:        string(d.Grade.Best),
		EVChosen:    d.Grade.EVChosen,
		EVBest:      d.Grade.EVBest,
		Gap:         d.Grade.Gap,
		IsTop:       d.Grade.IsTop,
		EVs:         evs,
	})
}

func (r dbRecorder) RecordRound(ctx context.Context, id string, s trainer.RoundSummary) error {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	row := store.Round{
		SessionID:    id,
		Round:        s.Round,
		DealerCards:  cardStrings(s.Dealer),
		Net:          s.Net,
		RunningCount: s.RunningCount,
		TrueCount:    s.TrueCount,
	}
	for i, h := range s.Player {
		// one text entry per hand, e.g. "8♠ 3♥"
		row.PlayerCards = append(row.PlayerCards, joinCards(h))
		row.Outcomes = append(row.Outcomes, string(s.Outcomes[i]))
	}
	return r.db.InsertRound(ctx, row)
}

func cardStrings(cs []engine.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

func joinCards(cs []engine.Card) string { return strings.Join(cardStrings(cs), " ") }
