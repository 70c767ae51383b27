package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KentoBaguetti/cournot-game-backend/internal/auth"
	"github.com/KentoBaguetti/cournot-game-backend/internal/config"
	"github.com/KentoBaguetti/cournot-game-backend/internal/coordinator"
	"github.com/KentoBaguetti/cournot-game-backend/internal/game"
	"github.com/KentoBaguetti/cournot-game-backend/internal/httpapi"
	"github.com/KentoBaguetti/cournot-game-backend/internal/registry"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.New(ctx, log)
	defaults := game.Config{
		MaxRounds:         cfg.MaxRounds,
		RoundLength:       cfg.RoundLength,
		MaxPlayersPerRoom: cfg.MaxPlayersPerRoom,
		// Classroom-friendly market defaults; hosts override per game.
		Market: game.MarketParams{A: 30, B: 1, Y: 0, Z: 6},
	}
	coord := coordinator.New(reg, log, cfg.GracePeriod, defaults)
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(verifier, coord, log),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
