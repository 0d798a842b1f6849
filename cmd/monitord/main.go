package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pulsemon/internal/bridge"
	"pulsemon/internal/config"
	"pulsemon/internal/domain"
	"pulsemon/internal/httpapi"
	"pulsemon/internal/logging"
	"pulsemon/internal/notify"
	"pulsemon/internal/probe"
	"pulsemon/internal/repo"
	"pulsemon/internal/repo/memory"
	"pulsemon/internal/repo/postgres"
	"pulsemon/internal/repo/rediscache"
	"pulsemon/internal/scheduler"
	"pulsemon/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		targets  repo.TargetStore
		results  repo.ResultStore
		settings repo.SettingsStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, cfg.Monitor.Retention, logger)
		if err != nil {
			logger.Fatal("postgres_connect_error", zap.Error(err))
		}
		defer pg.Close()
		targets, results, settings = pg, pg, pg
		logger.Info("store_postgres")
	} else {
		mem := memory.New(cfg.Monitor.Retention)
		targets, results, settings = mem, mem, mem
		logger.Info("store_memory")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		results = rediscache.New(results, client, cfg.Monitor.Retention, logger)
		logger.Info("result_cache_redis", zap.String("addr", cfg.Redis.Addr))
	}

	dbChecker := probe.NewDBChecker(nil)
	if cfg.Bridge.URL != "" {
		b, err := bridge.NewClient(cfg.Bridge.URL, cfg.Bridge.Token)
		if err != nil {
			logger.Fatal("bridge_config_error", zap.Error(err))
		}
		dbChecker = probe.NewDBChecker(b)
		logger.Info("db_bridge_configured", zap.String("url", cfg.Bridge.URL))
	}
	checker := probe.NewProtocolChecker(probe.NewHTTPChecker(), dbChecker)

	notifier := notify.Multi{notify.NewLog(logger)}
	if slack := notify.NewSlack(cfg.Notify.SlackWebhook); slack != nil {
		notifier = append(notifier, slack)
		logger.Info("slack_alerts_enabled")
	}

	sess, err := session.New(ctx, logger, targets, results, settings,
		func(set domain.Settings) *scheduler.Scheduler {
			return scheduler.New(logger, targets, results, checker, notifier, set, cfg.Monitor.Concurrency)
		})
	if err != nil {
		logger.Fatal("session_init_error", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.NewServer(logger, sess).Router(),
	}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_listen_error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")
	sess.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = multierr.Append(srv.Shutdown(shutdownCtx), logger.Sync())
	if err != nil {
		log.Printf("shutdown: %v", err)
	}
}
