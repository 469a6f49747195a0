package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/WarraBell/pulsescout/app/controllers"
	"github.com/WarraBell/pulsescout/app/repository"
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/WarraBell/pulsescout/internal/pkg/cache"
	"github.com/WarraBell/pulsescout/internal/pkg/database"
	"github.com/WarraBell/pulsescout/internal/pkg/env"
	"github.com/WarraBell/pulsescout/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repos := repository.NewRepositories(db)

	// Billing core: one service instance built at startup, passed by
	// reference everywhere.
	billingRepo := billing.NewRepository(db)
	gateway := billing.NewStripeGateway(env.GetEnv("STRIPE_SECRET_KEY", ""))
	billingSvc := billing.NewService(billingRepo, gateway)
	ingestor := billing.NewIngestor(billingSvc, billingRepo, env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))

	ctrls := router.Controllers{
		User:         controllers.NewUserController(repos.User, billingSvc),
		Subscription: controllers.NewSubscriptionController(billingSvc, repos.Plan),
		Billing:      controllers.NewBillingController(billingSvc),
		Webhook:      controllers.NewWebhookController(ingestor),
		Internal:     controllers.NewInternalController(billingSvc),
		Lead:         controllers.NewLeadController(billingSvc, repos.Lead),
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "PulseScout",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app, ctrls, repos.User, billingSvc)

	return app
}
