package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"multiplayer/internal/actor"
	"multiplayer/internal/ai"
	"multiplayer/internal/catalog"
	"multiplayer/internal/config"
	"multiplayer/internal/logging"
	"multiplayer/internal/store"
	httptransport "multiplayer/internal/transport/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func run(cfg config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStorage(ctx, cfg.Server)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("storage ping: %w", err)
	}

	svc := ai.New(cfg.AI)
	rt := actor.NewRuntime(st, actor.WithIdleTTL(cfg.Server.ActorIdleTTL))
	types := catalog.Register(rt, cfg, svc)
	log.Info().Strs("game_types", types).Str("storage", cfg.Server.StorageDriver).Msg("games registered")

	if err := rt.RestoreAlarms(ctx); err != nil {
		return err
	}
	rt.StartJanitor(ctx, time.Minute)

	r := httptransport.NewRouter(rt, st, cfg.Server)
	httptransport.LogRoutes(r)
	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGracePeriod)
		defer cancel()
		// Stop accepting upgrades first, then drain the contexts.
		err := server.Shutdown(shutdownCtx)
		return errors.Join(err, rt.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.ServerConfig) (store.Storage, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory, "":
		return store.NewMemory(), nil
	case config.StoragePostgres:
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return st, nil
	case config.StorageRedis:
		st, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
