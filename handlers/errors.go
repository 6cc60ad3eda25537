package handlers

import (
	"context"
	"errors"

	"quest-progression-system/logger"
	"quest-progression-system/services"

	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	target error
	status int
	code   string
	detail bool // include the wrapped message, it only carries caller input
}

var errorMappings = []errorMapping{
	{services.ErrNotFound, fiber.StatusNotFound, "not_found", false},
	{services.ErrInvalidTransition, fiber.StatusConflict, "invalid_transition", false},
	{services.ErrAlreadyClaimed, fiber.StatusConflict, "already_claimed", false},
	{services.ErrPersistenceConflict, fiber.StatusConflict, "conflict", false},
	{services.ErrCapacityExceeded, fiber.StatusUnprocessableEntity, "capacity_exceeded", false},
	{services.ErrInvalidQuest, fiber.StatusBadRequest, "invalid_quest", true},
	{services.ErrInvalidTask, fiber.StatusBadRequest, "invalid_task", true},
	{services.ErrInvalidTimeframe, fiber.StatusBadRequest, "invalid_timeframe", true},
	{services.ErrInvalidAmount, fiber.StatusBadRequest, "invalid_amount", false},
	{services.ErrInvalidAttribute, fiber.StatusBadRequest, "invalid_attribute", true},
	{services.ErrNotEnoughPoints, fiber.StatusBadRequest, "not_enough_points", false},
	{services.ErrInvalidSettings, fiber.StatusBadRequest, "invalid_settings", true},
	{services.ErrExternalServiceUnavailable, fiber.StatusServiceUnavailable, "unavailable", false},
	{context.DeadlineExceeded, fiber.StatusGatewayTimeout, "timeout", false},
}

// writeError maps a service error to its HTTP status. Anything outside the
// taxonomy is logged and reported as a bare 500.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.target.Error()
		if m.detail {
			msg = err.Error()
		}
		return c.Status(m.status).JSON(fiber.Map{
			"error": msg,
			"code":  m.code,
		})
	}

	log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal error",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  "bad_request",
	})
}
