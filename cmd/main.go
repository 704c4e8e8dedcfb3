/**
 * @description
 * This is the main entry point for the payment-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * the MoMo gateway client, message brokers, repositories, the core application service,
 * the reconciliation scheduler, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/momoclient: Client for the MTN MoMo API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/careernest/payment-service/internal/api"
	"github.com/careernest/payment-service/internal/app"
	"github.com/careernest/payment-service/internal/config"
	"github.com/careernest/payment-service/internal/obs"
	"github.com/careernest/payment-service/internal/store"
	"github.com/careernest/payment-service/pkg/momoclient"
	"github.com/careernest/payment-service/pkg/rabbitmq"
)

func main() {
	// Load a local .env file when present; environment variables win.
	_ = godotenv.Load()

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

	log.Printf("level=info component=bootstrap msg=\"starting payment-service\" port=%s", cfg.ServerPort)

	obs.Init()

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish events. The service only
	// publishes; an unavailable broker degrades to a no-op fallback.
	var eventProducer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		eventProducer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the MTN MoMo API.
	momoClient, err := momoclient.NewClient(momoclient.Config{
		BaseURL:           cfg.MomoBaseURL,
		TargetEnvironment: cfg.MomoTargetEnvironment,
		CallbackHost:      cfg.MomoCallbackHost,
		Collections: momoclient.ScopeCredentials{
			SubscriptionKey: cfg.MomoCollectionSubscriptionKey,
			UserID:          cfg.MomoCollectionUserID,
			APIKey:          cfg.MomoCollectionAPIKey,
		},
		Disbursements: momoclient.ScopeCredentials{
			SubscriptionKey: cfg.MomoDisbursementSubscriptionKey,
			UserID:          cfg.MomoDisbursementUserID,
			APIKey:          cfg.MomoDisbursementAPIKey,
		},
	})
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"momo client init failed\" err=%v", err)
	}

	// Optional Redis connection for purchase rate limiting.
	var rateLimiter app.RateLimiter
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; purchase rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; purchase rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; purchase rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				rateLimiter = app.NewRedisPurchaseRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	paymentService := app.NewService(repository, momoClient, eventProducer, rateLimiter, cfg.PurchaseRateLimitPerMinute)

	// Seed the service catalog.
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelSeed()
	if err := paymentService.InitializeCatalog(seedCtx); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"catalog seeding failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"service catalog seeded\"")

	// Start the reconciliation scheduler for pending payments.
	slogLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	jobs := app.NewJobs(
		repository,
		paymentService,
		slogLogger,
		time.Duration(cfg.ReconcilePendingAgeSeconds)*time.Second,
		cfg.ReconcileBatchSize,
	)
	scheduler := app.NewScheduler(jobs, slogLogger, cfg.ReconcileSchedule)
	scheduler.Start()

	// Initialize the API handlers and router.
	paymentHandlers := api.NewPaymentHandlers(paymentService)
	router := api.PaymentRoutes(paymentHandlers, cfg.JWTSecret, cfg.InternalAPIKey)

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

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
