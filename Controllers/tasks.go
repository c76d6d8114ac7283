package Controllers

import (
	"github.com/gofiber/fiber/v2"

	"taskatlas/Models"
	"taskatlas/Query"
	"taskatlas/Store"
	"taskatlas/Sync"
)

// TaskController handles the /api/tasks resource.
type TaskController struct {
	Engine *Sync.Engine
	Store  *Store.Store
}

// NewTaskController creates a new TaskController
func NewTaskController(engine *Sync.Engine, store *Store.Store) *TaskController {
	return &TaskController{Engine: engine, Store: store}
}

// GetTasks lists tasks. Without an explicit limit or count request the
// listing is capped at Query.DefaultTaskLimit documents.
func (c *TaskController) GetTasks(ctx *fiber.Ctx) error {
	opts := Query.Parse(ctx)
	if opts.Count {
		n, err := c.Store.Count(ctx.UserContext(), Models.TasksCollection, opts.Filter)
		if err != nil {
			return respond(ctx, fiber.StatusInternalServerError, "Failed to count tasks", nil)
		}
		return respond(ctx, fiber.StatusOK, "OK", n)
	}
	var docs []map[string]any
	if err := c.Store.Find(ctx.UserContext(), Models.TasksCollection, opts.StoreQuery(Query.DefaultTaskLimit), &docs); err != nil {
		return respond(ctx, fiber.StatusInternalServerError, "Failed to retrieve tasks", nil)
	}
	if docs == nil {
		docs = []map[string]any{}
	}
	return respond(ctx, fiber.StatusOK, "OK", opts.Project(docs))
}

// CreateTask creates a new task and syncs the assignee's pendingTasks.
func (c *TaskController) CreateTask(ctx *fiber.Ctx) error {
	var payload Models.TaskPayload
	if err := ctx.BodyParser(&payload); err != nil {
		return respond(ctx, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	if err := validate.Struct(payload); err != nil {
		return respond(ctx, fiber.StatusBadRequest, validationMessage(err), nil)
	}
	task, err := c.Engine.CreateTask(ctx.UserContext(), payload)
	if err != nil {
		return respondError(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "Task created", task)
}

// GetTask retrieves a single task by ID
func (c *TaskController) GetTask(ctx *fiber.Ctx) error {
	task, err := c.Engine.GetTask(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "OK", task)
}

// UpdateTask replaces a task and reconciles pendingTasks membership on the
// affected users.
func (c *TaskController) UpdateTask(ctx *fiber.Ctx) error {
	var payload Models.TaskPayload
	if err := ctx.BodyParser(&payload); err != nil {
		return respond(ctx, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	if err := validate.Struct(payload); err != nil {
		return respond(ctx, fiber.StatusBadRequest, validationMessage(err), nil)
	}
	task, err := c.Engine.UpdateTask(ctx.UserContext(), ctx.Params("id"), payload)
	if err != nil {
		return respondError(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Task updated", task)
}

// DeleteTask removes a task and scrubs it from its assignee's pendingTasks.
func (c *TaskController) DeleteTask(ctx *fiber.Ctx) error {
	if err := c.Engine.DeleteTask(ctx.UserContext(), ctx.Params("id")); err != nil {
		return respondError(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Task deleted", nil)
}
