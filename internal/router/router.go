package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/pazar-go-api/internal/config"
	"github.com/noah-isme/pazar-go-api/internal/handler"
	"github.com/noah-isme/pazar-go-api/internal/middleware"
	"github.com/noah-isme/pazar-go-api/internal/models"
	"github.com/noah-isme/pazar-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ListingHandler      *handler.ListingHandler
	CategoryHandler     *handler.CategoryHandler
	MessageHandler      *handler.MessageHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.CategoryHandler != nil {
		categories := api.Group("/categories")
		deps.CategoryHandler.RegisterPublic(categories)

		adminCategories := categories.Group("", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.CategoryHandler.RegisterAdmin(adminCategories)
	}

	if deps.ListingHandler != nil {
		listings := api.Group("/listings")
		deps.ListingHandler.RegisterPublic(listings)

		authListings := listings.Group("", jwtMiddleware)
		deps.ListingHandler.RegisterAuthenticated(authListings)

		moderation := api.Group("/moderation/listings", jwtMiddleware,
			middleware.RequireRole(models.RoleModerator, models.RoleAdmin))
		deps.ListingHandler.RegisterModeration(moderation)
	}

	if deps.MessageHandler != nil {
		messages := api.Group("/messages", jwtMiddleware)
		sendLimit := middleware.RateLimit("message-send", cfg.MessageRateLimit, cfg.MessageRateWindow)
		deps.MessageHandler.Register(messages, sendLimit)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
