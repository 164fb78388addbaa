package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bj-trainer/server/gateway"
	"bj-trainer/server/store"
	"bj-trainer/server/trainer"
)

func setupLogging(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.LogPretty || isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

type flags struct {
	migrate bool
	play    bool
	sim     int
}

func parseFlags(args []string) flags {
	var f flags
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--migrate":
			f.migrate = true
		case a == "--play":
			f.play = true
		case a == "--sim":
			f.sim = 1000
			if i+1 < len(args) {
				if n, err := strconv.Atoi(args[i+1]); err == nil {
					f.sim = n
					i++
				}
			}
		case strings.HasPrefix(a, "--sim="):
			f.sim = atoiDef(strings.TrimPrefix(a, "--sim="), 1000)
		}
	}
	return f
}

func openDB(cfg Config) *store.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("DB disabled (open failed)")
		return nil
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(context.Background(), db); err != nil {
			log.Warn().Err(err).Msg("migrate failed (continuing without DB)")
			db.Close(context.Background())
			return nil
		}
		log.Info().Msg("migrated")
	}
	return db
}

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	setupLogging(cfg)
	f := parseFlags(os.Args[1:])

	if f.migrate {
		if cfg.DatabaseURL == "" {
			log.Fatal().Msg("Missing required env var DATABASE_URL. Put it in .env (dev) or set it on the host (prod).")
		}
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		defer db.Close(context.Background())
		if err := store.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		log.Info().Msg("migrated")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.sim > 0 {
		if err := runSim(ctx, cfg.Rules, f.sim, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("simulation")
		}
		return
	}
	if f.play {
		if err := runPlay(ctx, cfg.Rules); err != nil {
			log.Fatal().Err(err).Msg("play")
		}
		return
	}

	db := openDB(cfg)
	var rec trainer.Recorder
	if db != nil {
		defer db.Close(context.Background())
		rec = dbRecorder{db: db}
	}
	svc := trainer.NewService(cfg.Rules, rec)
	gw := gateway.New(svc)
	svc.OnChange(gw.Publish)

	go pruneLoop(ctx, svc, cfg.SessionTTL)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      Router(svc, gw, db),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info().Str("addr", "http://localhost:"+cfg.Port).Int("decks", cfg.Rules.Decks).Bool("db", db != nil).Msg("listening (Ctrl+C to stop)")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("stopped")
}

func pruneLoop(ctx context.Context, svc *trainer.Service, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(ttl / 4)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := svc.Prune(ttl); n > 0 {
				log.Info().Int("pruned", n).Int("live", svc.Len()).Msg("sessions pruned")
			}
		}
	}
}
