package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-workorders/internal/api/http/handlers"
	"github.com/spec-kit/fleet-workorders/internal/auth"
)

const streamPath = "/work-orders/stream"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	WorkOrders     *handlers.WorkOrdersHandler
	Transitions    *handlers.TransitionsHandler
	Stream         *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Auth.Login)

	sync := app.Group("/sync", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	sync.Get("/", cfg.Stream.Status)
	sync.Post("/restart", cfg.Stream.Restart)

	workOrders := app.Group("/work-orders", cfg.AuthMiddleware.Handle, auth.RequireOperator())
	workOrders.Get("/", cfg.WorkOrders.List)
	workOrders.Post("/", cfg.WorkOrders.Create)
	// Registered before /:id so "stream" is not taken for an id.
	workOrders.Get("/stream", cfg.Stream.Stream)
	workOrders.Get("/:id", cfg.WorkOrders.Get)
	workOrders.Patch("/:id", cfg.WorkOrders.Update)
	workOrders.Delete("/:id", cfg.WorkOrders.Delete)
	workOrders.Post("/:id/history", cfg.WorkOrders.AppendHistory)

	workOrders.Post("/:id/send-to-warehouse", cfg.Transitions.SendToWarehouse)
	workOrders.Post("/:id/send-to-purchasing", cfg.Transitions.SendToPurchasing)
	workOrders.Post("/:id/return-to-shop", cfg.Transitions.ReturnToShop)
	workOrders.Post("/:id/return-to-warehouse", cfg.Transitions.ReturnToWarehouse)
	workOrders.Post("/:id/notes", cfg.Transitions.AddNote)
}
