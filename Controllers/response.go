package Controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"taskatlas/Sync"
)

// respond writes the uniform {message, data} envelope every endpoint uses.
func respond(ctx *fiber.Ctx, status int, message string, data any) error {
	return ctx.Status(status).JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

// respondError maps the sync error taxonomy onto HTTP statuses:
// validation 400, not-found 404, conflict 409, everything else 500.
func respondError(ctx *fiber.Ctx, err error) error {
	var (
		validationErr *Sync.ValidationError
		notFoundErr   *Sync.NotFoundError
		conflictErr   *Sync.ConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		return respond(ctx, fiber.StatusBadRequest, validationErr.Message, nil)
	case errors.As(err, &notFoundErr):
		return respond(ctx, fiber.StatusNotFound, notFoundErr.Error(), nil)
	case errors.As(err, &conflictErr):
		return respond(ctx, fiber.StatusConflict, conflictErr.Message, nil)
	default:
		return respond(ctx, fiber.StatusInternalServerError, "internal server error", nil)
	}
}
