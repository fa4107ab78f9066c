/**
 * @description
 * This is the main entry point for the wallet-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, payment gateway adapters, message broker, repositories, the core
 * application service, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/db, internal/gateway,
 *   internal/metrics, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/padipay/wallet-service/internal/api"
	"github.com/padipay/wallet-service/internal/app"
	"github.com/padipay/wallet-service/internal/config"
	"github.com/padipay/wallet-service/internal/db"
	"github.com/padipay/wallet-service/internal/gateway"
	"github.com/padipay/wallet-service/internal/metrics"
	"github.com/padipay/wallet-service/internal/store"
	"github.com/padipay/wallet-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting wallet-service\" port=%s", cfg.ServerPort)

	metrics.Init()

	// Establish a tuned connection pool to PostgreSQL.
	dbpool, err := db.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Apply any pending schema migrations.
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelMigrate()
	if err := db.RunMigrations(migrateCtx, dbpool); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"migrations failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"migrations applied\"")

	// Initialize the RabbitMQ producer to publish settlement events.
	var producer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Build the gateway registry. A gateway missing its credentials is simply
	// not registered; the rest of the service keeps working.
	gateways := gateway.Registry{}
	if strings.TrimSpace(cfg.PaystackSecretKey) != "" {
		gateways["paystack"] = gateway.NewPaystackClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, 0)
		log.Println("level=info component=bootstrap msg=\"paystack gateway registered\"")
	} else {
		log.Println("level=warn component=bootstrap msg=\"paystack not configured; card funding disabled\" env=PAYSTACK_SECRET_KEY")
	}
	if strings.TrimSpace(cfg.MonnifyAPIKey) != "" && strings.TrimSpace(cfg.MonnifyClientSecret) != "" {
		gateways["monnify"] = gateway.NewMonnifyClient(cfg.MonnifyBaseURL, cfg.MonnifyAPIKey, cfg.MonnifyClientSecret, cfg.MonnifyContractCode, 0)
		log.Println("level=info component=bootstrap msg=\"monnify gateway registered\"")
	} else {
		log.Println("level=warn component=bootstrap msg=\"monnify not configured; bank transfer funding disabled\" env=MONNIFY_API_KEY")
	}

	// Optional Redis for distributed rate limiting.
	var limiter *app.RedisRateLimiter
	if cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	walletService := app.NewService(repository, gateways, producer, app.Config{
		AmountToleranceKobo:    cfg.AmountToleranceKobo,
		CreditRetryMaxAttempts: cfg.CreditRetryMaxAttempts,
		CreditRetryBase:        cfg.CreditRetryBaseSeconds,
		ReconcileWindowHours:   cfg.ReconcileWindowHours,
	})

	// Run the reconciliation loop for the lifetime of the process.
	reconCtx, cancelRecon := context.WithCancel(context.Background())
	defer cancelRecon()
	go walletService.RunReconciliationLoop(reconCtx, time.Duration(cfg.ReconcileIntervalSeconds)*time.Second)

	// Initialize the API handlers and router.
	walletHandlers := api.NewWalletHandlers(walletService)
	var routerLimiter api.RateLimiter
	if limiter != nil {
		routerLimiter = limiter
	}
	router := api.WalletRoutes(walletHandlers, routerLimiter, api.RouterConfig{
		JWTSecret:                 cfg.JWTSecret,
		InternalAPIKey:            cfg.InternalAPIKey,
		WebhookRateLimitPerMinute: cfg.WebhookRateLimitPerMinute,
		VerifyRateLimitPerMinute:  cfg.VerifyRateLimitPerMinute,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	cancelRecon()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
