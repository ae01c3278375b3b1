package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rifa-service/config"
	"rifa-service/internal/api"
	"rifa-service/internal/broker"
	"rifa-service/internal/gateway"
	"rifa-service/internal/redisclient"
	"rifa-service/internal/service"
	"rifa-service/internal/store"
	"rifa-service/internal/util"
	"rifa-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting rifa service")

	tp, err := util.InitTracer("rifa-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	if err := store.Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations applied")

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRaffle)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:      cfg.Gateway.BaseURL,
		ClientKey:    cfg.Gateway.ClientKey,
		ClientSecret: cfg.Gateway.ClientSecret,
	})

	reservationService := service.NewReservationService(db, redisClient, eventPublisher, cfg.Business)
	catalogService := service.NewCatalogService(db, redisClient, cfg.Business)
	depositService := service.NewDepositService(db, gatewayClient, reservationService, eventPublisher, cfg.Business)
	webhookService := service.NewWebhookService(db, redisClient, eventPublisher, cfg.Gateway.WebhookToken)
	campaignService := service.NewCampaignService(db, redisClient, cfg.Business)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	raffleConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicRaffle, cfg.Kafka.ConsumerGroup)
	topBuyerWorker := worker.NewTopBuyerWorker(raffleConsumer, db)
	go func() {
		if err := topBuyerWorker.Start(workerCtx); err != nil {
			log.Printf("Top buyer worker error: %v", err)
		}
	}()

	sweeper := worker.NewExpirySweeper(db, time.Minute)
	go sweeper.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(reservationService, catalogService, depositService, webhookService, campaignService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	topBuyerWorker.Stop()

	log.Println("Server exited")
}
