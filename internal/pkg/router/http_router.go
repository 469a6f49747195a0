package router

import (
	"strconv"
	"time"

	"github.com/WarraBell/pulsescout/app/controllers"
	"github.com/WarraBell/pulsescout/app/repository"
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/WarraBell/pulsescout/internal/pkg/entitlements"
	"github.com/WarraBell/pulsescout/internal/pkg/env"
	"github.com/WarraBell/pulsescout/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
)

// Controllers bundles the request handlers wired in main.
type Controllers struct {
	User         *controllers.UserController
	Subscription *controllers.SubscriptionController
	Billing      *controllers.BillingController
	Webhook      *controllers.WebhookController
	Internal     *controllers.InternalController
	Lead         *controllers.LeadController
}

// InstallRouter wires all routes on the fiber app.
func InstallRouter(app *fiber.App, ctrls Controllers, users repository.UserRepository, svc *billing.Service) {
	// Provider webhooks and scheduler triggers stay outside API key auth.
	app.Post("/webhooks/stripe", ctrls.Webhook.HandleStripeWebhook)
	app.Post("/internal/usage/reset", ctrls.Internal.HandleResetUsage)

	app.Post("/api/v1/register", ctrls.User.HandleRegister)

	api := app.Group("/api/v1", apiRateLimiter(), middleware.APIKeyAuthMiddleware(users))

	api.Get("/plans", ctrls.Subscription.HandleListPlans)

	api.Post("/subscription", ctrls.Subscription.HandleCreateSubscription)
	api.Get("/subscription", ctrls.Subscription.HandleGetSubscription)
	api.Put("/subscription/plan", ctrls.Subscription.HandleChangePlan)
	api.Delete("/subscription", ctrls.Subscription.HandleCancelSubscription)
	api.Delete("/subscription/immediately", ctrls.Subscription.HandleCancelImmediately)
	api.Get("/subscription/usage", ctrls.Subscription.HandleGetUsage)
	api.Get("/subscription/preview/:planID", ctrls.Subscription.HandleGetPreview)

	api.Post("/billing/setup-intent", ctrls.Billing.HandleCreateSetupIntent)
	api.Get("/billing/payment-methods", ctrls.Billing.HandleListPaymentMethods)
	api.Post("/billing/payment-methods/default", ctrls.Billing.HandleSetDefaultPaymentMethod)
	api.Delete("/billing/payment-methods/:paymentMethodID", ctrls.Billing.HandleRemovePaymentMethod)
	api.Get("/billing/payments", ctrls.Billing.HandleGetPaymentHistory)
	api.Post("/billing/charges", ctrls.Billing.HandleCreateOneTimeCharge)

	leads := api.Group("/leads", middleware.RequireActiveSubscription(svc))
	leads.Post("/pull", ctrls.Lead.HandlePullLead)
	leads.Get("/", ctrls.Lead.HandleListLeads)
	leads.Get("/export", middleware.RequirePlanFeature(svc, entitlements.FeatureCSVExport), ctrls.Lead.HandleExportLeads)
}

// apiRateLimiter backs the limiter with redis so limits hold across
// instances.
func apiRateLimiter() fiber.Handler {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	storage := redisstorage.New(redisstorage.Config{
		Host: env.GetEnv("CACHE_HOST", "localhost"),
		Port: port,
	})

	return limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    storage,
	})
}
