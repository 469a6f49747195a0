package controllers

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/WarraBell/pulsescout/app/models"
	"github.com/WarraBell/pulsescout/app/repository"
	"github.com/WarraBell/pulsescout/internal/pkg/billing"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// UserController handles account creation. Full authentication lives
// in the presentation layer; this only covers what billing needs: a
// user row, an API key and the signup trial subscription.
type UserController struct {
	users repository.UserRepository
	svc   *billing.Service
}

// NewUserController creates a user controller.
func NewUserController(users repository.UserRepository, svc *billing.Service) *UserController {
	return &UserController{users: users, svc: svc}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// HandleRegister creates a user together with their trial
// subscription and returns the API key exactly once.
func (ctrl *UserController) HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Could not generate API key"})
	}
	user.APIKeyHash = models.HashAPIKey(apiKey)

	if err := ctrl.users.Create(user); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Email already registered"})
	}

	sub, err := ctrl.svc.StartTrial(c.Context(), user.ID)
	if err != nil {
		// The user exists; the trial can be repaired on first
		// subscription call. Log for the operator.
		log.Errorf("[User] trial subscription for user %d failed: %v", user.ID, err)
	}

	resp := fiber.Map{
		"user":    user,
		"api_key": apiKey,
	}
	if sub != nil {
		resp["subscription"] = newSubscriptionResponse(sub)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "ps_" + hex.EncodeToString(b), nil
}
