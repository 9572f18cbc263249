package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pazar-go-api/internal/config"
	"github.com/noah-isme/pazar-go-api/internal/database"
	"github.com/noah-isme/pazar-go-api/internal/handler"
	"github.com/noah-isme/pazar-go-api/internal/middleware"
	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/repository"
	"github.com/noah-isme/pazar-go-api/internal/router"
	"github.com/noah-isme/pazar-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Listing{},
		&models.ListingBump{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional legs. The service degrades to
	// single-node operation when either is unreachable.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, category cache and pub/sub disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, cross-node events disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	renewalLocation, err := cfg.RenewalLocation()
	if err != nil {
		log.Fatalf("failed to resolve renewal timezone: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	listingRepo := repository.NewListingRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	bumpRepo := repository.NewBumpRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	events := service.NewEventPublisher(redisClient, "pazar", natsConn, logger)
	events.Start(context.Background())

	notificationService := service.NewNotificationService(notificationRepo, validate, logger)
	categoryService := service.NewCategoryService(categoryRepo, redisClient, cfg.CategoryCacheTTL, events, validate, logger)
	listingService := service.NewListingService(
		listingRepo,
		userRepo,
		categoryService,
		activityRepo,
		bumpRepo,
		notificationService,
		events,
		service.ListingThrottle{
			ListingLimit: cfg.ListingLimitDefault,
			MonthlyLimit: cfg.MonthlyRenewalLimit,
			Location:     renewalLocation,
		},
		validate,
		logger,
	)
	messageService := service.NewMessageService(
		messageRepo,
		conversationRepo,
		listingRepo,
		userRepo,
		notificationService,
		events,
		service.MessageThrottle{
			Limit:  cfg.MessageRateLimit,
			Window: cfg.MessageRateWindow,
		},
		cfg.PerParticipantUnread,
		validate,
		logger,
	)

	listingHandler := handler.NewListingHandler(listingService, logger)
	categoryHandler := handler.NewCategoryHandler(categoryService, logger)
	messageHandler := handler.NewMessageHandler(messageService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ListingHandler:      listingHandler,
		CategoryHandler:     categoryHandler,
		MessageHandler:      messageHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
