package handlers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/amirphl/Yata-no-Kagami/utils"
)

// Health reports liveness
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/health [get]
func Health(c fiber.Ctx) error {
	return successResponse(c, fiber.StatusOK, "OK", fiber.Map{
		"status":    "healthy",
		"timestamp": utils.UTCNow(),
	})
}
