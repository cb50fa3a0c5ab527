package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"commerce-core/cache"
	"commerce-core/controllers"
	"commerce-core/database"
	"commerce-core/kafka"
	"commerce-core/logger"
	aws_pkg "commerce-core/pkg/aws"
	"commerce-core/repository"
	"commerce-core/routes"
	"commerce-core/services"
)

func main() {
	_ = godotenv.Load()
	cfg := LoadConfig()

	zlog, err := logger.Initialize(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if err := database.ConnectWithConfig(cfg.MongoURL, cfg.MongoDB); err != nil {
		zlog.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer database.Close() //nolint:errcheck

	// Redis cache is optional; without it, stock reads go straight to Mongo.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Warn("Invalid REDIS_URL, cache disabled", zap.Error(err))
		} else {
			redisClient = redis.NewClient(opts)
		}
	}
	productCache := cache.NewProductCache(redisClient, zlog)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, zlog)
	defer producer.Close() //nolint:errcheck

	var snsClient aws_pkg.SNSPublisher
	if cfg.OrderSNSTopicARN != "" {
		awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background())
		if awsErr != nil {
			zlog.Warn("AWS config unavailable, SNS disabled", zap.Error(awsErr))
		} else {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
		}
	}

	// DI chain
	productRepo := repository.NewMongoProductRepository(database.DB)
	orderRepo := repository.NewMongoOrderRepository(database.DB)
	customerRepo := repository.NewMongoCustomerRepository(database.DB)
	reservationRepo := repository.NewMongoReservationRepository(database.DB)
	txRunner := database.NewMongoTxRunner(database.MongoClient)

	metricsService := services.NewCustomerMetricsService(customerRepo, orderRepo, zlog)
	inventoryService := services.NewInventoryService(productRepo, productCache, zlog)
	orderService := services.NewOrderService(
		orderRepo,
		productRepo,
		customerRepo,
		reservationRepo,
		txRunner,
		metricsService,
		productCache,
		producer,
		snsClient,
		cfg.OrderSNSTopicARN,
		cfg.ReservationTTL,
		zlog,
	)
	offlineSaleService := services.NewOfflineSaleService(
		orderRepo,
		productRepo,
		customerRepo,
		txRunner,
		metricsService,
		productCache,
		producer,
		zlog,
	)

	sweeper := services.NewReservationSweeper(reservationRepo, orderService, cfg.SweepInterval, zlog)
	sweeper.Start()
	defer sweeper.Stop()

	orderController := controllers.NewOrderController(orderService, offlineSaleService)
	inventoryController := controllers.NewInventoryController(inventoryService)
	customerController := controllers.NewCustomerController(metricsService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(zlog))

	// 30-second request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.Register(r, orderController, inventoryController, customerController)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	zlog.Info("Commerce core started", zap.String("port", cfg.Port))
	<-quit
	zlog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zlog.Info("Server exited cleanly")
}
