package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/kafka"
	"checkout-service/logger"
	"checkout-service/middleware"
	awspkg "checkout-service/pkg/aws"
	repositories "checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/sender"
	"checkout-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const serviceName = "checkout-service"

func main() {
	if err := logger.Initialize(os.Getenv("APP_ENV")); err != nil {
		panic(err)
	}
	log := logger.Log

	ctx := context.Background()
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	// AWS clients are optional; without a config SNS, metrics and log
	// shipping stay off.
	var awsCfg sdkaws.Config
	awsReady := false
	if cfg.CloudWatchEnabled || cfg.OrderSNSTopicARN != "" {
		if awsCfg, err = awspkg.LoadAWSConfig(ctx, cfg.AWSOptions()); err != nil {
			log.Warn("AWS config unavailable, SNS and CloudWatch disabled", zap.Error(err))
		} else {
			awsReady = true
		}
	}

	if awsReady && cfg.CloudWatchEnabled {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Warn("CloudWatch Logs unavailable", zap.Error(err))
		} else if err := logger.InitializeWithWriter(cfg.Env, cw); err != nil {
			log.Warn("Failed to attach CloudWatch Logs", zap.Error(err))
		} else {
			log = logger.Log
		}
	}
	defer log.Sync() //nolint:errcheck

	var metricsClient *awspkg.MetricsClient
	var metrics services.MetricsRecorder
	if awsReady && cfg.CloudWatchEnabled {
		metricsClient = awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, true)
		metrics = metricsClient
	}

	db, err := database.ConnectPostgres(ctx, cfg.DSN(), log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	var redisClient *redis.Client
	var idempotency repositories.IdempotencyStore
	if cfg.RedisURL != "" {
		redisClient, err = repositories.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("Redis unavailable, order idempotency disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			idempotency = repositories.NewRedisIdempotencyStore(redisClient, cfg.IdempotencyTTL)
			log.Info("Connected to Redis")
		}
	}

	publisher, closePublisher := newEventPublisher(cfg, awsCfg, awsReady, log)
	defer closePublisher()

	var email sender.EmailSender
	if cfg.SMTP.Host != "" {
		smtpSender, err := sender.NewSMTPSender(cfg.SMTP)
		if err != nil {
			log.Warn("SMTP disabled", zap.Error(err))
		} else {
			email = smtpSender
		}
	}

	shipping, err := services.NewShippingPolicy(cfg.ShippingFee, cfg.ShippingRateTable)
	if err != nil {
		log.Fatal("Invalid SHIPPING_RATE_TABLE", zap.Error(err))
	}

	orderRepo := repositories.NewGormOrderRepository(db)
	events := services.NewOrderEvents(publisher, log)
	pricing := services.NewPricingValidator(newProductCatalog(cfg, db, log))
	stripeService := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.PaymentTimeout)
	notifier := services.NewNotifier(email, events, cfg.NotifyTimeout, log)
	lifecycle := services.NewLifecycleManager(orderRepo, events, metrics, log)

	orderService := services.NewOrderService(orderRepo, pricing, idempotency, events, metrics,
		services.OrderServiceConfig{Currency: cfg.Currency, Shipping: shipping}, log)
	paymentService := services.NewPaymentService(orderRepo, stripeService, cfg.TotalTolerance, metrics, log)
	webhookService := services.NewWebhookService(stripeService, orderRepo, lifecycle, notifier, metrics, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	controllers.RegisterValidatorTagNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})

	limiter := middleware.NewRateLimiter(rate.Every(time.Minute/time.Duration(max(cfg.RateLimitPerMinute, 1))), max(cfg.RateLimitBurst, 1), 5*time.Minute)
	defer limiter.Stop()

	routes.RegisterRoutes(r, routes.Controllers{
		Orders:   controllers.NewOrderController(orderService, lifecycle, log),
		Payments: controllers.NewPaymentController(paymentService, log),
		Webhooks: controllers.NewWebhookController(webhookService, log),
	}, middleware.AuthMiddleware([]byte(cfg.JWTSecret)), middleware.RateLimitMiddleware(limiter))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Checkout service started", zap.String("port", cfg.Port))
	<-quit
	log.Info("Shutting down checkout service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	notifier.Wait()
	log.Info("Server exited cleanly")
}

// newEventPublisher prefers Kafka when brokers are configured and falls back
// to SNS. The returned func releases the publisher.
func newEventPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsReady bool, log *zap.Logger) (services.EventPublisher, func()) {
	switch {
	case len(cfg.KafkaBrokers) > 0:
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic, log)
		return producer, func() { _ = producer.Close() }
	case awsReady && cfg.OrderSNSTopicARN != "":
		log.Info("Publishing order events to SNS", zap.String("topic_arn", cfg.OrderSNSTopicARN))
		return awspkg.NewSNSClient(awsCfg, cfg.OrderSNSTopicARN), func() {}
	default:
		log.Warn("No order event channel configured, events disabled")
		return nil, func() {}
	}
}

func newProductCatalog(cfg *config.Config, db *gorm.DB, log *zap.Logger) services.ProductCatalog {
	if cfg.ProductServiceURL != "" {
		log.Info("Reading products from product service", zap.String("url", cfg.ProductServiceURL))
		return services.NewProductClient(cfg.ProductServiceURL, 5*time.Second)
	}
	return repositories.NewGormProductRepository(db)
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", controllers.IdempotencyKeyHeader, logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = origins
	return c
}
