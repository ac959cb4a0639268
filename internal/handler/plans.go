package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/mealweek/api/internal/middleware"
	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/service"
	"github.com/mealweek/api/pkg/response"
)

type PlanHandler struct {
	service   *service.PlanService
	validator *validator.Validate
}

func NewPlanHandler(svc *service.PlanService, v *validator.Validate) *PlanHandler {
	return &PlanHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/plans/generate
func (h *PlanHandler) Generate(c *fiber.Ctx) error {
	var req model.GeneratePlanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.GeneratePlan(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			return response.Unprocessable(c, response.CodeProfileRequired, "Complete your profile before generating a plan")
		}
		if errors.Is(err, service.ErrUnknownTheme) {
			return response.ValidationError(c, "Unknown theme", nil)
		}
		return response.ServiceError(c, "Could not start plan generation")
	}

	return response.Accepted(c, result)
}

// JobStatus handles GET /api/plans/jobs/:jobId
func (h *PlanHandler) JobStatus(c *fiber.Ctx) error {
	jobID, err := uuid.Parse(c.Params("jobId"))
	if err != nil {
		return response.ValidationError(c, "Invalid job ID", nil)
	}

	result, err := h.service.GetJobStatus(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, "Could not load job status")
	}

	return response.OK(c, result)
}

// GetPlan handles GET /api/plans/:planId
func (h *PlanHandler) GetPlan(c *fiber.Ctx) error {
	planID, err := uuid.Parse(c.Params("planId"))
	if err != nil {
		return response.ValidationError(c, "Invalid plan ID", nil)
	}

	result, err := h.service.GetPlan(c.Context(), middleware.GetUserID(c), planID)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			return response.NotFound(c, "Plan not found")
		}
		return response.ServiceError(c, "Could not load plan")
	}

	return response.OK(c, result)
}

// Favorite handles POST /api/plans/:planId/favorite
func (h *PlanHandler) Favorite(c *fiber.Ctx) error {
	planID, err := uuid.Parse(c.Params("planId"))
	if err != nil {
		return response.ValidationError(c, "Invalid plan ID", nil)
	}

	result, err := h.service.ToggleFavorite(c.Context(), middleware.GetUserID(c), planID)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			return response.NotFound(c, "Plan not found")
		}
		return response.ServiceError(c, "Could not update favorite")
	}

	return response.OK(c, result)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
