package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"hireflow/internal/app"
	"hireflow/internal/config"
	"hireflow/internal/ratelimit"
	"hireflow/internal/server"
	"hireflow/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitEnabled {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "",
			cfg.RateLimitPerMinute,
			time.Duration(cfg.RateLimitWindowSeconds)*time.Second)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	appCore, err := app.New(cfg, app.Options{})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		TrustedProxies: trustedProxies,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("hireflow server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
