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

	"stockapp/m/internal/api"
	"stockapp/m/internal/auth"
	"stockapp/m/internal/cache"
	"stockapp/m/internal/config"
	"stockapp/m/internal/database"
	"stockapp/m/internal/events"
	"stockapp/m/internal/logger"
	"stockapp/m/internal/migrations"
	"stockapp/m/internal/payments"
	"stockapp/m/internal/sales"
	"stockapp/m/internal/seed"
	"stockapp/m/internal/stats"
	"stockapp/m/internal/stock"
)

const eventBuffer = 1024

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := database.Connect(cfg.Database.Driver, cfg.Database.DSN, database.Pool{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}
	if _, err := seed.EnsureAdmin(ctx, db, cfg.Auth, log); err != nil {
		log.Fatal("default admin", zap.Error(err))
	}
	if cfg.Seed.ItemsCSV != "" {
		if _, err := seed.LoadItems(ctx, db, cfg.Seed.ItemsCSV, log); err != nil {
			log.Error("item catalogue import failed", zap.Error(err))
		}
	}

	// Redis
	var c cache.Cache = cache.Nop{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		c = cache.NewRedis(rdb)
	} else {
		log.Info("redis not configured, caching and idempotency keys disabled")
	}

	// Kafka producer
	var (
		pub  events.Publisher = events.Nop{}
		prod *events.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		prod = events.NewProducer(cfg.Kafka, eventBuffer, log)
		prod.Start()
		pub = events.NewEmitter(prod, cfg.Kafka.ServiceName, log)
	} else {
		log.Info("kafka not configured, events disabled")
	}

	salesManager := sales.NewManager(db, pub, c, log)
	paymentService := payments.NewService(db, pub, c, log)
	handler := api.New(api.Deps{
		DB:          db,
		Tokens:      auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL),
		Sales:       salesManager,
		Stock:       stock.NewService(db, pub, log),
		Payments:    paymentService,
		Stats:       stats.NewService(db, c, log),
		Dummy:       seed.NewGenerator(db, salesManager, paymentService, log),
		Log:         log,
		CORSOrigins: cfg.Server.CORSOrigins,
		Timeout:     cfg.Server.RequestTimeout,
	})

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.Server.HTTPAddr), zap.String("env", cfg.Server.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}
