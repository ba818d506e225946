package handlers

import "github.com/gofiber/fiber/v2"

func (h *Handlers) GetDashboard(c *fiber.Ctx) error {
	dashboard, err := h.Stats.Dashboard(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "", dashboard)
}

func (h *Handlers) GetDashboardCounts(c *fiber.Ctx) error {
	counts, err := h.Stats.GlobalDashboardCounts(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return success(c, fiber.StatusOK, "", counts)
}
