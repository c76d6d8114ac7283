package Controllers

import (
	"github.com/gofiber/fiber/v2"

	"taskatlas/Models"
	"taskatlas/Query"
	"taskatlas/Store"
	"taskatlas/Sync"
)

// UserController handles the /api/users resource.
type UserController struct {
	Engine *Sync.Engine
	Store  *Store.Store
}

// NewUserController creates a new UserController
func NewUserController(engine *Sync.Engine, store *Store.Store) *UserController {
	return &UserController{Engine: engine, Store: store}
}

// GetUsers lists users. Recognizes where/sort/select/skip/limit/count query
// parameters; user listings carry no implicit cap.
func (c *UserController) GetUsers(ctx *fiber.Ctx) error {
	opts := Query.Parse(ctx)
	if opts.Count {
		n, err := c.Store.Count(ctx.UserContext(), Models.UsersCollection, opts.Filter)
		if err != nil {
			return respond(ctx, fiber.StatusInternalServerError, "Failed to count users", nil)
		}
		return respond(ctx, fiber.StatusOK, "OK", n)
	}
	var docs []map[string]any
	if err := c.Store.Find(ctx.UserContext(), Models.UsersCollection, opts.StoreQuery(0), &docs); err != nil {
		return respond(ctx, fiber.StatusInternalServerError, "Failed to retrieve users", nil)
	}
	if docs == nil {
		docs = []map[string]any{}
	}
	return respond(ctx, fiber.StatusOK, "OK", opts.Project(docs))
}

// CreateUser creates a new user
func (c *UserController) CreateUser(ctx *fiber.Ctx) error {
	var payload Models.UserPayload
	if err := ctx.BodyParser(&payload); err != nil {
		return respond(ctx, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	if err := validate.Struct(payload); err != nil {
		return respond(ctx, fiber.StatusBadRequest, validationMessage(err), nil)
	}
	user, err := c.Engine.CreateUser(ctx.UserContext(), payload)
	if err != nil {
		return respondError(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "User created", user)
}

// GetUser retrieves a single user by ID
func (c *UserController) GetUser(ctx *fiber.Ctx) error {
	user, err := c.Engine.GetUser(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "OK", user)
}

// UpdateUser replaces a user and reconciles the task side of its
// pendingTasks changes.
func (c *UserController) UpdateUser(ctx *fiber.Ctx) error {
	var payload Models.UserPayload
	if err := ctx.BodyParser(&payload); err != nil {
		return respond(ctx, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	if err := validate.Struct(payload); err != nil {
		return respond(ctx, fiber.StatusBadRequest, validationMessage(err), nil)
	}
	user, err := c.Engine.UpdateUser(ctx.UserContext(), ctx.Params("id"), payload)
	if err != nil {
		return respondError(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "User updated", user)
}

// DeleteUser removes a user and unassigns every task that referenced it.
func (c *UserController) DeleteUser(ctx *fiber.Ctx) error {
	if err := c.Engine.DeleteUser(ctx.UserContext(), ctx.Params("id")); err != nil {
		return respondError(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "User deleted", nil)
}
