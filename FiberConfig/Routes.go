package FiberConfig

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"taskatlas/Controllers"
	"taskatlas/CronJobs"
	"taskatlas/Store"
	"taskatlas/Sync"
	"taskatlas/middleware"
)

// NewApp builds the Fiber application with all middleware and routes wired.
func NewApp(store *Store.Store, engine *Sync.Engine, reconciler *CronJobs.Reconciler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "TaskAtlas",
	})
	app.Use(middleware.RequestLogger())
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		MaxAge:       300,
	}))

	SetupRoutes(app, store, engine, reconciler)
	return app
}

// SetupRoutes registers the resource endpoints.
func SetupRoutes(app *fiber.App, store *Store.Store, engine *Sync.Engine, reconciler *CronJobs.Reconciler) {
	userController := Controllers.NewUserController(engine, store)
	taskController := Controllers.NewTaskController(engine, store)

	api := app.Group("/api")

	users := api.Group("/users")
	users.Get("/", userController.GetUsers)
	users.Post("/", userController.CreateUser)
	users.Get("/:id", userController.GetUser)
	users.Put("/:id", userController.UpdateUser)
	users.Delete("/:id", userController.DeleteUser)

	tasks := api.Group("/tasks")
	tasks.Get("/", taskController.GetTasks)
	tasks.Post("/", taskController.CreateTask)
	tasks.Get("/:id", taskController.GetTask)
	tasks.Put("/:id", taskController.UpdateTask)
	tasks.Delete("/:id", taskController.DeleteTask)

	if reconciler != nil {
		adminController := Controllers.NewAdminController(reconciler)
		api.Post("/admin/reconcile", adminController.Reconcile)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "OK", "data": nil})
	})
}

// Run builds the app and serves it on the given port.
func Run(store *Store.Store, engine *Sync.Engine, reconciler *CronJobs.Reconciler, port string) error {
	fmt.Println("Server Up...")
	app := NewApp(store, engine, reconciler)
	return app.Listen(port)
}
