package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"safescore/feedback-service/internal/app/feedback/config"
	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/feedback-service/internal/app/feedback/handler"
	"safescore/feedback-service/internal/app/feedback/infrastructure/messaging"
	"safescore/feedback-service/internal/app/feedback/processor"
	"safescore/feedback-service/internal/app/feedback/repository"
	"safescore/feedback-service/internal/app/feedback/service"
	"safescore/feedback-service/internal/app/feedback/util"
	"safescore/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init("feedback-service", logLevel)

	logstashAddr := os.Getenv("LOGSTASH_ADDR")
	if logstashAddr != "" {
		if err := logger.InitLogstash(logstashAddr, "feedback-service", logLevel); err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Logstash, using stdout only")
		} else {
			logger.Info().Str("logstash_addr", logstashAddr).Msg("Connected to Logstash")
		}
	}

	db, err := connectDB(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	logger.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.DBName).
		Msg("Connected to PostgreSQL")

	if err := db.AutoMigrate(&entity.Feedback{}); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	redisClient, err := util.NewRedisClient(cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Str("address", cfg.Redis.Address()).Msg("Connected to Redis")

	kafkaProducer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer kafkaProducer.Close()
	logger.Info().
		Str("topic", cfg.Kafka.Topic).
		Msg("Initialized Kafka producer")

	feedbackRepo := repository.NewFeedbackRepository(db)

	trustTracker := service.NewTrustTracker(feedbackRepo, cfg.Validation.TrustedUserThreshold)
	feedbackValidator := service.NewFeedbackValidator(feedbackRepo, redisClient, trustTracker, cfg.Validation)
	aggregationService := service.NewAggregationService(feedbackRepo, redisClient, cfg.Aggregation)
	scoringEngine := service.NewScoringEngine(feedbackRepo, aggregationService, cfg.Scoring)
	feedbackService := service.NewFeedbackService(
		feedbackRepo,
		feedbackValidator,
		kafkaProducer,
		redisClient,
		scoringEngine,
		cfg.Validation,
	)

	ctx, cancelAdaptation := context.WithCancel(context.Background())
	defer cancelAdaptation()

	scheduler := processor.NewCronScheduler(scoringEngine)
	if err := scheduler.Start(ctx, cfg.Scoring.AdaptSchedule); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start cron scheduler")
	}
	defer scheduler.Stop()

	authMiddleware := handler.NewAuthMiddleware(cfg.JWT.Secret)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService, aggregationService)
	scoreHandler := handler.NewScoreHandler(scoringEngine)
	adminHandler := handler.NewAdminHandler(feedbackService)
	router := handler.SetupRoutes(feedbackHandler, scoreHandler, adminHandler, authMiddleware)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("Starting Feedback Service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Feedback Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Feedback Service stopped gracefully")
}

func connectDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Info),
	}

	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, sqlErr := db.DB()
			if sqlErr != nil {
				err = sqlErr
			} else {
				pingErr := sqlDB.Ping()
				if pingErr != nil {
					err = pingErr
				} else {
					sqlDB.SetMaxOpenConns(25)
					sqlDB.SetMaxIdleConns(5)
					sqlDB.SetConnMaxLifetime(5 * time.Minute)
					sqlDB.SetConnMaxIdleTime(1 * time.Minute)
					return db, nil
				}
			}
		}
		logger.Warn().
			Int("attempt", i+1).
			Err(err).
			Msg("Failed to connect to database, retrying...")
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect after 10 attempts: %w", err)
}
