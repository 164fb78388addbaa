package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"bj-trainer/server/engine"
	"bj-trainer/server/gateway"
	"bj-trainer/server/store"
	"bj-trainer/server/trainer"
)

// embed the /web directory so the trainer page ships in the binary
//
//go:embed web/*
var webFS embed.FS

type api struct {
	svc *trainer.Service
	db  *store.DB // nil when running without a database
}

func Router(svc *trainer.Service, gw *gateway.Gateway, db *store.DB) http.Handler {
	a := &api{svc: svc, db: db}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	sub, _ := fs.Sub(webFS, "web")
	r.Handle("/web/*", http.StripPrefix("/web/", http.FileServer(http.FS(sub))))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/web/", http.StatusFound)
	})

	r.Get("/api/health", a.health)
	r.Get("/api/rules", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Rules())
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", a.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.view)
			r.Delete("/", a.close)
			r.Get("/advice", a.advice)
			r.Get("/stats", a.stats)
			r.Get("/mistakes", a.mistakes)
			r.Post("/drill", a.drill)
			r.Post("/{cmd}", a.command)
		})
	})

	r.Get("/ws/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		gw.HandleWebSocket(w, r, chi.URLParam(r, "id"))
	})
	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"ok": true, "sessions": a.svc.Len(), "db": a.db != nil}
	if a.db != nil {
		ctx, cancel := withTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.Ping(ctx); err != nil {
			out["db_error"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) create(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (a *api) view(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) close(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.svc.View(id); err != nil {
		writeError(w, err)
		return
	}
	a.svc.Close(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) advice(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.View(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"phase":            v.Phase,
		"advice":           v.Advice,
		"bust_probability": v.BustProbability,
		"count":            v.Count,
	})
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := a.svc.Stats(id)
	if err != nil {
		writeError(w, err)
		return
	}
	rep := reportFor(st)
	if a.db != nil {
		ctx, cancel := withTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if acc, err := a.db.SessionAccuracy(ctx, id); err == nil {
			rep.Persisted = &Persisted{Good: acc.Good, Total: acc.Total, EVLost: acc.EVLost}
		} else {
			log.Warn().Err(err).Str("session", id).Msg("session accuracy")
		}
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *api) mistakes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.svc.View(id); err != nil {
		writeError(w, err)
		return
	}
	if a.db == nil {
		writeJSON(w, http.StatusOK, map[string]any{"rows": []store.Mistake{}})
		return
	}
	ctx, cancel := withTimeout(r.Context(), 2*time.Second)
	defer cancel()
	rows, err := a.db.MistakesByTotal(ctx, id, 10)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []store.Mistake{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type drillRequest struct {
	Cards []string `json:"cards"`
}

func (a *api) drill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req drillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
		return
	}
	ranks := make([]engine.Rank, 0, len(req.Cards))
	for _, s := range req.Cards {
		rk, err := engine.ParseRank(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		ranks = append(ranks, rk)
	}
	v, err := a.svc.Drill(id, ranks...)
	if err != nil {
		writeErrorView(w, err, v)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) command(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cmd, err := trainer.ParseCommand(chi.URLParam(r, "cmd"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	}
	v, err := a.svc.Do(r.Context(), id, cmd)
	if err != nil {
		writeErrorView(w, err, v)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, trainer.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, trainer.ErrWrongPhase), errors.Is(err, trainer.ErrEmptyShoe):
		return http.StatusConflict
	case trainer.IsNotAllowed(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{"error": err.Error()})
}

// writeErrorView reports a rejected command along with the unchanged state.
func writeErrorView(w http.ResponseWriter, err error, v trainer.View) {
	status := statusFor(err)
	if status == http.StatusNotFound {
		writeError(w, err)
		return
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "view": v})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("req_id", middleware.GetReqID(r.Context())).
			Msg("http")
	})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
