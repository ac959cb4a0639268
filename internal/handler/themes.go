package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mealweek/api/internal/service"
	"github.com/mealweek/api/pkg/response"
)

type ThemeHandler struct {
	service *service.PlanService
}

func NewThemeHandler(svc *service.PlanService) *ThemeHandler {
	return &ThemeHandler{service: svc}
}

// List handles GET /api/themes
func (h *ThemeHandler) List(c *fiber.Ctx) error {
	themes, err := h.service.ListThemes(c.Context())
	if err != nil {
		return response.ServiceError(c, "Could not load themes")
	}
	return response.OK(c, fiber.Map{"themes": themes})
}
