package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bibliotech/internal/ratelimit"
	"bibliotech/internal/util"
	"bibliotech/services/api/internal/app"
	"bibliotech/services/api/internal/config"
	"bibliotech/services/api/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("BIBLIOTECH_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	rateWindow, err := cfg.RateWindow()
	if err != nil {
		log.Fatalf("failed to parse rate window: %v", err)
	}
	var authLimiter *ratelimit.FixedWindowLimiter
	if cfg.AuthRateLimit > 0 {
		if cfg.RedisAddr != "" {
			authLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "bibliotech:auth", cfg.AuthRateLimit, rateWindow)
		} else {
			authLimiter, err = ratelimit.NewMemoryFixedWindowLimiter(cfg.AuthRateLimit, rateWindow)
		}
		if err != nil {
			log.Fatalf("failed to init auth rate limiter: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		Storage:     cfg.Storage,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		AuthLimiter:    authLimiter,
		TrustedProxies: trusted,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("api server listening", "addr", addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}
