package Controllers

import (
	"github.com/gofiber/fiber/v2"

	"taskatlas/CronJobs"
)

// AdminController exposes operational endpoints.
type AdminController struct {
	Reconciler *CronJobs.Reconciler
}

func NewAdminController(reconciler *CronJobs.Reconciler) *AdminController {
	return &AdminController{Reconciler: reconciler}
}

// Reconcile runs one repair sweep on demand and returns its report.
func (c *AdminController) Reconcile(ctx *fiber.Ctx) error {
	report, err := c.Reconciler.RunOnce(ctx.UserContext())
	if err != nil {
		return respond(ctx, fiber.StatusInternalServerError, "Reconcile sweep failed", nil)
	}
	return respond(ctx, fiber.StatusOK, "Reconcile complete", report)
}
