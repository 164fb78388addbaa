package trainer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bj-trainer/server/engine"
)

// Recorder persists what happens in a session. Failures are logged and
// never block play.
type Recorder interface {
	RecordSession(ctx context.Context, id string, rules Rules) error
	RecordDecision(ctx context.Context, id string, d Decision) error
	RecordRound(ctx context.Context, id string, r RoundSummary) error
}

type entry struct {
	mu      sync.Mutex
	session *Session
	seen    time.Time
}

// Service owns all live sessions and serialises commands per session.
type Service struct {
	rules Rules
	rec   Recorder

	mu       sync.RWMutex
	sessions map[string]*entry

	notify func(id string, v View)
}

// NewService builds a Service. rec may be nil.
func NewService(rules Rules, rec Recorder) *Service {
	return &Service{rules: rules, rec: rec, sessions: make(map[string]*entry)}
}

func (svc *Service) Rules() Rules { return svc.rules }

// OnChange registers fn to receive every view produced by a successful
// command or drill. fn runs while the session is locked, so views of one
// session arrive in the order the commands were applied; it must not call
// back into the Service. Set it before serving.
func (svc *Service) OnChange(fn func(id string, v View)) { svc.notify = fn }

func (svc *Service) changed(id string, v View) View {
	if svc.notify != nil {
		svc.notify(id, v)
	}
	return v
}

// Create opens a fresh session with its own shoe.
func (svc *Service) Create(ctx context.Context) (View, error) {
	s, err := NewSession(svc.rules)
	if err != nil {
		return View{}, err
	}
	id := uuid.NewString()
	svc.mu.Lock()
	svc.sessions[id] = &entry{session: s, seen: time.Now()}
	svc.mu.Unlock()

	log.Info().Str("session", id).Int("decks", svc.rules.Decks).Msg("session created")
	if svc.rec != nil {
		if err := svc.rec.RecordSession(ctx, id, svc.rules); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("record session failed")
		}
	}
	return s.View(id), nil
}

func (svc *Service) get(id string) (*entry, error) {
	svc.mu.RLock()
	e, ok := svc.sessions[id]
	svc.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	return e, nil
}

// View returns the current snapshot of a session.
func (svc *Service) View(id string) (View, error) {
	e, err := svc.get(id)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.View(id), nil
}

// Stats returns a copy of the session's results.
func (svc *Service) Stats(id string) (Stats, error) {
	e, err := svc.get(id)
	if err != nil {
		return Stats{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.session.Stats()
	st.RoundNets = append([]float64(nil), st.RoundNets...)
	return st, nil
}

// Do applies one command and returns the resulting snapshot. On error the
// snapshot still reflects the (unchanged) session.
func (svc *Service) Do(ctx context.Context, id string, cmd Command) (View, error) {
	e, err := svc.get(id)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	e.seen = time.Now()
	was := s.Phase()
	phase, err := s.Apply(cmd)
	if err != nil {
		log.Debug().Err(err).Str("session", id).Str("cmd", string(cmd)).Str("phase", string(phase)).Msg("command rejected")
		return s.View(id), err
	}
	log.Debug().Str("session", id).Str("cmd", string(cmd)).Str("phase", string(phase)).Msg("command applied")

	if svc.rec != nil {
		if d := s.LastDecision(); d != nil {
			if err := svc.rec.RecordDecision(ctx, id, *d); err != nil {
				log.Warn().Err(err).Str("session", id).Msg("record decision failed")
			}
		}
		if phase == Settled && was != Settled {
			if err := svc.rec.RecordRound(ctx, id, s.Summary()); err != nil {
				log.Warn().Err(err).Str("session", id).Msg("record round failed")
			}
		}
	}
	return svc.changed(id, s.View(id)), nil
}

// Drill rigs the next cards of a session that is between rounds.
func (svc *Service) Drill(id string, ranks ...engine.Rank) (View, error) {
	e, err := svc.get(id)
	if err != nil {
		return View{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = time.Now()
	if err := e.session.Drill(ranks...); err != nil {
		return e.session.View(id), err
	}
	return svc.changed(id, e.session.View(id)), nil
}

// Close drops a session.
func (svc *Service) Close(id string) {
	svc.mu.Lock()
	delete(svc.sessions, id)
	svc.mu.Unlock()
}

// Prune drops sessions idle for longer than maxAge and returns how many went.
func (svc *Service) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	n := 0
	for id, e := range svc.sessions {
		e.mu.Lock()
		idle := e.seen.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(svc.sessions, id)
			n++
		}
	}
	return n
}

func (svc *Service) Len() int {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return len(svc.sessions)
}
