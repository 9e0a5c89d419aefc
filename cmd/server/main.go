package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cosmic-arcade/arena-backend/internal/config"
	"github.com/cosmic-arcade/arena-backend/internal/engine"
	"github.com/cosmic-arcade/arena-backend/internal/httpapi"
	"github.com/cosmic-arcade/arena-backend/internal/hub"
	"github.com/cosmic-arcade/arena-backend/internal/ledger"
	"github.com/cosmic-arcade/arena-backend/internal/matchmaker"
	"github.com/cosmic-arcade/arena-backend/internal/messenger"
	"github.com/cosmic-arcade/arena-backend/internal/payout"
	"github.com/cosmic-arcade/arena-backend/internal/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store ledger.Ledger
	if cfg.DatabaseURL != "" {
		s, err := ledger.Open(cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("ledger unavailable", zap.Error(err))
		}
		store = s
	} else {
		log.Warn("DATABASE_URL not set, using in-memory ledger")
		store = ledger.NewMemory()
	}
	retrying := ledger.NewRetrying(ctx, store, 10*time.Second, log)
	defer retrying.Close()

	registry := messenger.NewRegistry(log)
	payouts := payout.NewService(retrying, cfg.RouletteStake, cfg.MafiaReward, log)
	h := hub.NewHub(ctx, registry, payouts, log)
	rules := engine.Rules{
		DaySeconds:   cfg.DaySeconds,
		VoteSeconds:  cfg.VoteSeconds,
		NightSeconds: cfg.NightSeconds,
		TurnSeconds:  cfg.TurnSeconds,
	}
	mm := matchmaker.New(h, registry, payouts, rules, log)

	server := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(&ws.Server{
			Hub:        h,
			Matchmaker: mm,
			Messenger:  registry,
			Ledger:     retrying,
			Log:        log,
		}),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	if cfg.Production() {
		log, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return log
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return log
}
