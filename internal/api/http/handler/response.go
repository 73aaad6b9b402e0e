package handler

import "github.com/gofiber/fiber/v3"

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

// page wraps a list with its unpaginated total.
func page(c fiber.Ctx, items any, total int) error {
	return c.JSON(fiber.Map{"data": items, "total": total})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

func notFound(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func conflict(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
}

// unprocessable reports a well-formed request the ledger refused to
// settle; data carries the recorded outcome when there is one.
func unprocessable(c fiber.Ctx, msg string, data any) error {
	body := fiber.Map{"error": msg}
	if data != nil {
		body["data"] = data
	}
	return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
}

func internalError(c fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
