// README: Entry point; loads config, wires services, starts HTTP server and background loops.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trego/internal/config"
	httptransport "trego/internal/http"
	"trego/internal/infra"
	"trego/internal/jobs"
	"trego/internal/logger"
	"trego/internal/modules/availability"
	"trego/internal/modules/ride"
	"trego/internal/modules/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		zlog.Fatal("database init failed", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	userStore := user.NewStore(dbPool)
	rideStore := ride.NewPGStore(dbPool)
	cache := availability.NewStore(redisClient, cfg.Lifecycle.ActiveRideTTL, zlog)

	var emitter ride.Emitter
	if cfg.AMQP.URL != "" {
		publisher, err := jobs.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, zlog)
		if err != nil {
			zlog.Fatal("amqp init failed", zap.Error(err))
		}
		defer publisher.Close()
		emitter = publisher

		consumer, err := jobs.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange, "ride-events", zlog)
		if err != nil {
			zlog.Fatal("amqp consumer init failed", zap.Error(err))
		}
		worker := jobs.NewWorker(rideStore, zlog)
		go func() {
			if err := consumer.Run(ctx, worker); err != nil {
				zlog.Error("event consumer stopped", zap.Error(err))
			}
		}()
	} else {
		queue := jobs.NewQueue(cfg.Lifecycle.QueueSize)
		emitter = queue
		worker := jobs.NewWorker(rideStore, zlog)
		go worker.Run(ctx, queue.Events())
	}

	rideSvc := ride.NewService(rideStore, cache, emitter, cfg.Lifecycle, zlog)

	reaper := ride.NewReaper(rideStore, cfg.Lifecycle.ReapInterval, cfg.Lifecycle.ReapAfter, zlog)
	go reaper.Run(ctx)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Rides:     rideSvc,
		Users:     userStore,
		Cache:     cache,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
		Log:       zlog,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		zlog.Info("shutting down")
		_ = server.Shutdown(context.Background())
	}()

	zlog.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("server failed", zap.Error(err))
	}
}
