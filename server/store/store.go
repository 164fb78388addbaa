package store

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema embed.FS

type DB struct{ *pgxpool.Pool }

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// CreateSession registers a session id with the shoe it was opened with.
func (db *DB) CreateSession(ctx context.Context, id string, decks, reshoeAt int) error {
	_, err := db.Exec(ctx, `
        INSERT INTO sessions(id, decks, reshoe_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (id) DO NOTHING
    `, id, decks, reshoeAt)
	return err
}

func (db *DB) touchSession(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `UPDATE sessions SET last_seen = now() WHERE id = $1`, id)
	return err
}

// Round is one settled round as stored.
type Round struct {
	SessionID    string
	Round        int
	PlayerCards  []string
	DealerCards  []string
	Outcomes     []string
	Net          float64
	RunningCount int
	TrueCount    float64
}

// InsertRound stores a settled round and bumps the session's last_seen.
func (db *DB) InsertRound(ctx context.Context, r Round) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	if _, err := tx.Exec(ctx, `
        INSERT INTO rounds(
            session_id, round, player_cards, dealer_cards, outcomes,
            net_units, running_count, true_count
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (session_id, round) DO NOTHING
    `, r.SessionID, r.Round, r.PlayerCards, r.DealerCards, r.Outcomes,
		r.Net, r.RunningCount, r.TrueCount); err != nil {
		return err
	}
	if err := db.touchSession(ctx, tx, r.SessionID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Decision is one graded player action as stored. EVs is the ranked advice
// encoded as JSON.
type Decision struct {
	SessionID   string
	Round       int
	Hand        int
	PlayerTotal int
	DealerUp    int
	TrueCount   float64
	Chosen      string
	Best        string
	EVChosen    float64
	EVBest      float64
	Gap         float64
	IsTop       bool
	EVs         []byte
}

func (db *DB) InsertDecision(ctx context.Context, d Decision) error {
	var evs any
	if len(d.EVs) > 0 {
		evs = d.EVs
	}
	_, err := db.Exec(ctx, `
        INSERT INTO decisions(
            session_id, round, hand_index,
            player_total, dealer_up, true_count,
            chosen_action, best_action,
            ev_chosen, ev_best, ev_gap, is_top_action,
            evs_json
        ) VALUES (
            $1,$2,$3,
            $4,$5,$6,
            $7,$8,
            $9,$10,$11,$12,
            $13
        )
    `,
		d.SessionID, d.Round, d.Hand,
		d.PlayerTotal, d.DealerUp, d.TrueCount,
		d.Chosen, d.Best,
		d.EVChosen, d.EVBest, d.Gap, d.IsTop,
		evs,
	)
	return err
}

type Accuracy struct {
	Good   int
	Total  int
	EVLost float64
}

func (a Accuracy) Ratio() float64 {
	if a.Total <= 0 {
		return 0
	}
	return float64(a.Good) / float64(a.Total)
}

// SessionAccuracy tallies graded decisions for one session.
func (db *DB) SessionAccuracy(ctx context.Context, id string) (Accuracy, error) {
	var a Accuracy
	err := db.QueryRow(ctx, `
        SELECT COALESCE(SUM(CASE WHEN is_top_action THEN 1 ELSE 0 END), 0)::int,
               COUNT(*)::int,
               COALESCE(SUM(ev_gap), 0)
          FROM decisions
         WHERE session_id = $1
    `, id).Scan(&a.Good, &a.Total, &a.EVLost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Accuracy{}, nil
		}
		return Accuracy{}, err
	}
	return a, nil
}

// MistakesByTotal groups non-top decisions by (player total, dealer up) so
// the worst spots can be drilled. Ordered by EV lost.
func (db *DB) MistakesByTotal(ctx context.Context, id string, limit int) ([]Mistake, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(ctx, `
        SELECT player_total, dealer_up, COUNT(*)::int, SUM(ev_gap)
          FROM decisions
         WHERE session_id = $1 AND NOT is_top_action
         GROUP BY player_total, dealer_up
         ORDER BY SUM(ev_gap) DESC
         LIMIT $2
    `, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Mistake
	for rows.Next() {
		var m Mistake
		if err := rows.Scan(&m.PlayerTotal, &m.DealerUp, &m.Count, &m.EVLost); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type Mistake struct {
	PlayerTotal int     `json:"player_total"`
	DealerUp    int     `json:"dealer_up"`
	Count       int     `json:"count"`
	EVLost      float64 `json:"ev_lost"`
}
