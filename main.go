package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"wifihub/internal/auth"
	"wifihub/internal/catalog"
	"wifihub/internal/config"
	"wifihub/internal/database"
	"wifihub/internal/database/migrations"
	"wifihub/internal/kafka"
	"wifihub/internal/logger"
	"wifihub/internal/middleware"
	"wifihub/internal/order"
	"wifihub/internal/order/db"
	"wifihub/internal/order/order_api"
	rediswrap "wifihub/internal/order/redis"
	"wifihub/internal/payment"
	"wifihub/internal/sse"
	"wifihub/internal/users"
	userdb "wifihub/internal/users/db"
	"wifihub/internal/vouchers/qr"
)

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("REDIS", "Redis disabled; order locks and token revocation are off")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s, continuing without it: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, client.Options().DB))
	return client
}

func runMigrations(cfg config.DatabaseConfig, log *logger.Logger) {
	if !cfg.AutoMigrate {
		log.Info("MIGRATE", "Auto migration disabled")
		return
	}
	runner := migrations.NewRunner(cfg.DSN, migrations.DefaultOptions(), log)
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("MIGRATE", err.Error())
		}
	}()
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Migration failed: %v", err))
	}
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, ".env file not found, using environment variables")
	}

	log := logger.NewLogger()
	defer log.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	log.Info("APP", "Starting WifiHub service initialization")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runMigrations(cfg.Database, log)

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg.Redis, log)
	var (
		lock    order.OrderLock
		revoked auth.RevocationStore = auth.NoopRevocationStore{}
	)
	if redisClient != nil {
		defer redisClient.Close()
		lock = rediswrap.NewRedis(redisClient, cfg.Redis.LockTTL, log)
		revoked = auth.NewRedisRevocationStore(redisClient)
		go rediswrap.WatchExpiredLocks(ctx, redisClient, log, nil)
	}

	emitter := sse.NewOrderEventEmitter()
	var publisher order.EventPublisher = emitter
	if cfg.Kafka.Enabled {
		topics := kafka.Topics{OrderCreated: cfg.Kafka.OrderCreatedTopic, StatusChanged: cfg.Kafka.StatusChangedTopic}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, topics, log)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics.StatusChanged, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go consumer.Start(ctx, emitter.Emit)
		log.Info("KAFKA", "Kafka producer and SSE consumer initialized")
	} else {
		log.Info("KAFKA", "Kafka disabled; order events go straight to SSE clients")
	}

	snap := payment.NewSnapClient(cfg.Midtrans, log)
	if !snap.HasServerKey() {
		log.Warn("PAYMENT", "MIDTRANS_SERVER_KEY not set; checkouts will use test tokens")
	}

	orderService := order.NewOrderService(&db.DB{Bun: bunDB}, snap, lock, publisher, log, order.Options{
		ProfileName:     cfg.Voucher.ProfileName,
		ClientKey:       cfg.Midtrans.ClientKey,
		IsProduction:    cfg.Midtrans.IsProduction,
		VerifySignature: cfg.Midtrans.VerifySignature,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, revoked)
	userService := users.NewService(&userdb.DB{Bun: bunDB}, tokens, log)

	handler := order_api.NewHandler(orderService, userService, catalog.New(bunDB),
		qr.NewGenerator(cfg.Voucher.LoginURL, cfg.Voucher.QRSize), log)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	if err := limiter.TrustProxies(cfg.RateLimit.TrustedProxies...); err != nil {
		log.Fatal("CONFIG", err.Error())
	}
	limiter.StartCleanup(time.Minute, ctx.Done())

	log.Info("HTTP", "Setting up router and middleware")
	router := order_api.NewRouter(order_api.RouterConfig{
		Handler:      handler,
		SSE:          order_api.NewSSEHandler(log, emitter),
		Tokens:       tokens,
		Limiter:      limiter,
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// SSE streams end with the signal context instead of holding Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 WifiHub service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ WifiHub service shutdown complete")
	}
}
