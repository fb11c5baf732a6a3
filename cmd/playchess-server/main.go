package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"playchess/internal/accounts"
	"playchess/internal/auth"
	"playchess/internal/config"
	"playchess/internal/gateway"
	"playchess/internal/live"
	"playchess/internal/match"
	"playchess/internal/obslog"
	"playchess/internal/rules"
	"playchess/internal/store"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		logger.Fatal("auth init error", zap.Error(err))
	}

	rdb, err := store.OpenRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis init error", zap.Error(err))
	}
	snaps := store.NewLiveStore(rdb, cfg.SnapshotTTL())

	hub := gateway.NewHub()
	sessions := live.NewManager(rules.NewChessEngine(), hub, snaps,
		live.WithTickInterval(cfg.TickInterval()),
		live.WithEloK(cfg.EloK))

	// Results survive restarts only with a database attached; without one
	// the server still runs on Redis snapshots alone.
	var repo *store.Repository
	if cfg.DatabaseURL != "" {
		repo, err = store.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database init error", zap.Error(err))
		}
		sessions.AttachRepository(repo)
	} else {
		logger.Warn("DATABASE_URL not set, game results will not be persisted")
	}

	var gwOpts []gateway.Option
	if cfg.AccountsBaseURL != "" {
		gwOpts = append(gwOpts, gateway.WithAccounts(accounts.NewClient(cfg.AccountsBaseURL)))
	} else {
		logger.Warn("ACCOUNTS_BASE_URL not set, players enter pools at the default rating")
	}
	if len(cfg.AllowedOrigins) > 0 {
		gwOpts = append(gwOpts, gateway.WithAllowedOrigins(cfg.AllowedOrigins))
	}

	var gw *gateway.Gateway
	pool := match.NewPool(match.PairingConfig{
		BaseRange:  cfg.PairBaseRange,
		WidenStep:  cfg.PairWidenStep,
		WidenEvery: cfg.PairWidenEvery(),
	}, func(bucket string, white, black match.Entry) {
		gw.OnPair(bucket, white, black)
	})
	gw = gateway.New(verifier, pool, sessions, hub, gwOpts...)

	mux := http.NewServeMux()
	mux.Handle("/ws", gw)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	sessions.Close()
	_ = rdb.Close()
	if repo != nil {
		_ = repo.Close()
	}
}
