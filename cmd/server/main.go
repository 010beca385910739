package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/locker-booking-backend/internal/app"
	"github.com/nekogravitycat/locker-booking-backend/internal/config"
	"github.com/nekogravitycat/locker-booking-backend/internal/db"
	"github.com/nekogravitycat/locker-booking-backend/internal/lock"
	"github.com/nekogravitycat/locker-booking-backend/internal/logger"
	"github.com/nekogravitycat/locker-booking-backend/internal/notify"
	"github.com/nekogravitycat/locker-booking-backend/internal/obs"
	"github.com/nekogravitycat/locker-booking-backend/internal/payment"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/mq"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
)

const paymentQueue = "locker.payments"

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Log.Fatalf("failed to init logger: %v", err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	// Tracing
	shutdownTracer, err := obs.InitTracer(ctx, cfg.OTLPEndpoint, cfg.AppEnv)
	if err != nil {
		logger.Log.Fatalf("failed to init tracer: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(flushCtx)
	}()

	// Connect DB
	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.DBDSN); err != nil {
			logger.Log.Fatalf("failed to migrate db: %v", err)
		}
	}
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		logger.Log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	// Sweep lease
	leases := lock.NewNoopLocker()
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatalf("failed to connect to redis: %v", err)
		}
		defer client.Close()
		leases = lock.NewRedisLocker(client, "locker-booking:lock:")
	}

	// Notifications
	var sink notify.Notifier = notify.NewLogNotifier(logger.Log)
	if cfg.AMQPURL != "" {
		pub, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer pub.Close()
		sink = notify.NewMQNotifier(pub)
	}
	notifier := notify.NewAsync(sink, 5*time.Second)

	container := app.NewContainer(app.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		DBPool:         pool,
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTAccessTokenTTL,
		WebhookSecret:  cfg.WebhookSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Location:       cfg.Location,
		Calendar: slot.CalendarConfig{
			FirstStart: cfg.SlotFirstStartOffset,
			Length:     cfg.SlotLength,
			Gap:        cfg.SlotGap,
			Max:        cfg.SlotMax,
		},
		SessionGrace:   cfg.SessionGrace,
		PaymentTimeout: cfg.PaymentTimeout,
		SweepInterval:  cfg.SweepInterval,
		Locker:         leases,
		Notifier:       notifier,
	})

	if err := container.SlotService.Seed(ctx); err != nil {
		logger.Log.Fatalf("failed to seed slots: %v", err)
	}

	// Background workers
	workers := make(chan struct{}, 2)
	go func() {
		container.Sweeper.Start(ctx)
		workers <- struct{}{}
	}()
	running := 1

	if cfg.AMQPURL != "" {
		consumer, err := mq.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, paymentQueue, []string{payment.RoutingKeyPaid})
		if err != nil {
			logger.Log.Fatalf("failed to start payment consumer: %v", err)
		}
		defer consumer.Close()

		deliveries, err := consumer.Deliveries(ctx)
		if err != nil {
			logger.Log.Fatalf("failed to consume %s: %v", paymentQueue, err)
		}
		go func() {
			payment.Consume(ctx, deliveries, container.PaymentService)
			workers <- struct{}{}
		}()
		running++
	}

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"addr": cfg.HTTPAddr,
			"env":  cfg.AppEnv,
		}).Info("server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithField("error", err.Error()).Warn("server forced to shutdown")
	}
	for ; running > 0; running-- {
		select {
		case <-workers:
		case <-shutdownCtx.Done():
			running = 0
		}
	}
	notifier.Wait()

	logger.Log.Info("server exited gracefully")
}
