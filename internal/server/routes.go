package server

import (
	"net/http"

	"marketim/internal/config"
	"marketim/internal/handler"
	"marketim/internal/middleware"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Products       *handler.ProductHandler
	Orders         *handler.OrderHandler
	AdminOrders    *handler.AdminOrderHandler
	AdminInventory *handler.AdminInventoryHandler
	AdminAuditLogs *handler.AdminAuditLogHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	})

	h.Products.RegisterRoutes(e)
	h.Orders.RegisterRoutes(e, cfg)

	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	h.Products.RegisterAdminRoutes(admin)
	h.AdminOrders.RegisterRoutes(admin)
	h.AdminInventory.RegisterRoutes(admin)
	h.AdminAuditLogs.RegisterRoutes(admin)
}
