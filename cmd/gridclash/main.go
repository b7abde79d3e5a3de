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

	appcfg "github.com/park285/gridclash/internal/config"
	"github.com/park285/gridclash/internal/msgcat"
	"github.com/park285/gridclash/internal/obslog"
	"github.com/park285/gridclash/internal/profileapi"
	"github.com/park285/gridclash/internal/profilecache"
	"github.com/park285/gridclash/internal/pvpgrid"
	"github.com/park285/gridclash/internal/wsserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msgs, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		logger.Fatal("message catalog init error", zap.Error(err))
	}

	var (
		resolver  pvpgrid.ParticipantResolver
		persister pvpgrid.Persister
		closers   []func() error
	)
	if cfg.DatabaseURL != "" {
		repo, err := pvpgrid.NewRepository(cfg.DatabaseURL, cfg.StakeAmount)
		if err != nil {
			logger.Fatal("repository init error", zap.Error(err))
		}
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = repo.EnsureSchema(sctx)
		cancel()
		if err != nil {
			logger.Fatal("schema init error", zap.Error(err))
		}
		resolver, persister = repo, repo
		closers = append(closers, repo.Close)
	} else {
		mem := pvpgrid.NewMemoryStore(cfg.StakeAmount)
		for _, id := range cfg.DevUsers {
			mem.PutUser(pvpgrid.User{ID: id, Username: id, Coins: 1000})
		}
		resolver, persister = mem, mem
		logger.Warn("using in-memory store; results are lost on restart", zap.Int("dev_users", len(cfg.DevUsers)))
	}

	if cfg.ProfileAPIURL != "" {
		resolver = profileapi.NewClient(cfg.ProfileAPIURL, profileapi.WithHeaderProvider(profileapi.APIKeyHeader(cfg.ProfileAPIKey)))
		logger.Info("profile api enabled", zap.String("url", cfg.ProfileAPIURL), zap.Bool("api_key", cfg.ProfileAPIKey != ""))
	}

	if cfg.RedisURL != "" {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := profilecache.Connect(rctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal("redis init error", zap.Error(err))
		}
		cache := profilecache.NewResolver(rdb, resolver, cfg.ProfileCacheTTL)
		resolver = cache
		persister = profilecache.NewInvalidatingPersister(persister, cache)
		closers = append(closers, rdb.Close)
	}

	mgr, err := pvpgrid.NewManager(resolver, persister, nil, pvpgrid.Options{
		GridSize:       cfg.GridSize,
		AnnounceDelay:  offIfZero(cfg.AnnounceDelay),
		DebounceWindow: offIfZero(cfg.MatchDebounce),
		AllowSelfPlay:  cfg.AllowSelfPlay,
		Messages:       msgs,
	})
	if err != nil {
		logger.Fatal("manager init error", zap.Error(err))
	}
	ws := wsserver.New(mgr, wsserver.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
		Messages:       msgs,
	})
	mgr.SetNotifier(ws)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_listen", zap.String("addr", cfg.ListenAddr), zap.Int("grid_size", cfg.GridSize), zap.Bool("self_play", cfg.AllowSelfPlay))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ws.Close()
		mgr.Shutdown()
		return srv.Shutdown(sctx)
	})

	waitErr := g.Wait()
	if waitErr != nil {
		logger.Error("server_exit", zap.Error(waitErr))
	}
	for _, c := range closers {
		_ = c()
	}
	logger.Info("server_stopped")
	if waitErr != nil {
		os.Exit(1)
	}
}

// offIfZero maps a configured 0 ("none") to the manager's negative "disabled" value.
func offIfZero(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
