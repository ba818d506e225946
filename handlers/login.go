package handlers

import (
	"conference-webapp/errors"
	"conference-webapp/middleware"

	"github.com/gofiber/fiber/v2"
)

type Credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Register(c *fiber.Ctx) error {
	creds := new(Credentials)
	if err := c.BodyParser(creds); err != nil {
		return errors.RaiseBadRequestError(c, "Error on register request when parse credentials: "+err.Error())
	}
	user, err := h.Auth.Register(c.UserContext(), creds.Name, creds.Email, creds.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusCreated, "Success registration", user)
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	creds := new(Credentials)
	if err := c.BodyParser(creds); err != nil {
		return errors.RaiseBadRequestError(c, "Error on login request when parse credentials: "+err.Error())
	}

	token, identity, err := h.Auth.Login(c.UserContext(), creds.Email, creds.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "Success login", fiber.Map{
		"token":      token,
		"user":       identity.User,
		"expires_at": identity.Session.ExpiresAt,
	})
}

func (h *Handlers) Logout(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		return errors.RaisePermissionsError(c, "no session")
	}
	if err := h.Auth.Logout(c.UserContext(), identity.Session.Id); err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "Success logout", nil)
}

func (h *Handlers) Me(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		return errors.RaisePermissionsError(c, "no session")
	}
	return success(c, fiber.StatusOK, "", identity.User)
}
