package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"little_lemon/internal/access"
	"little_lemon/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck is run by GET /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type APIHandler struct {
	userService  services.UserService
	roleService  services.RoleService
	menuService  services.MenuService
	cartService  services.CartService
	orderService services.OrderService
	logger       *zap.Logger
	healthChecks []HealthCheck
}

func NewAPIHandler(
	userService services.UserService,
	roleService services.RoleService,
	menuService services.MenuService,
	cartService services.CartService,
	orderService services.OrderService,
	log *zap.Logger,
	healthChecks ...HealthCheck,
) *APIHandler {
	return &APIHandler{
		userService:  userService,
		roleService:  roleService,
		menuService:  menuService,
		cartService:  cartService,
		orderService: orderService,
		logger:       log,
		healthChecks: healthChecks,
	}
}

// RegisterRoutes mounts the API under /api and the health check at /healthz.
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)

	api := router.Group("/api")
	{
		api.POST("/auth/users/", h.Register)
		api.POST("/auth/token/login/", h.Login)
	}

	authed := api.Group("", h.RequireAuth())
	{
		authed.GET("/auth/users/me/", h.Me)
		authed.POST("/auth/token/logout/", h.Logout)

		authed.GET("/categories/", h.ListCategories)
		authed.POST("/categories/", h.CreateCategory)
		authed.GET("/categories/:id/", h.GetCategory)
		authed.DELETE("/categories/:id/", h.DeleteCategory)

		authed.GET("/menu-items/", h.ListMenuItems)
		authed.POST("/menu-items/", h.CreateMenuItem)
		authed.GET("/menu-items/:id/", h.GetMenuItem)
		authed.PUT("/menu-items/:id/", h.ReplaceMenuItem)
		authed.PATCH("/menu-items/:id/", h.PatchMenuItem)
		authed.DELETE("/menu-items/:id/", h.DeleteMenuItem)

		authed.GET("/cart/menu-items/", h.ListCart)
		authed.POST("/cart/menu-items/", h.AddToCart)
		authed.DELETE("/cart/menu-items/", h.ClearCart)

		authed.GET("/orders/", h.ListOrders)
		authed.POST("/orders/", h.PlaceOrder)
		authed.GET("/orders/:id/", h.GetOrder)
		authed.PUT("/orders/:id/", h.UpdateOrder)
		authed.PATCH("/orders/:id/", h.UpdateOrder)
		authed.DELETE("/orders/:id/", h.DeleteOrder)

		for path, role := range map[string]access.Role{
			"/groups/manager/users":       access.Manager,
			"/groups/delivery-crew/users": access.DeliveryCrew,
		} {
			authed.GET(path+"/", h.ListGroupMembers(role))
			authed.POST(path+"/", h.AddGroupMember(role))
			authed.DELETE(path+"/:id/", h.RemoveGroupMember(role))
		}
	}
}

func (h *APIHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for _, hc := range h.healthChecks {
		if err := hc.Check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", hc.Name), zap.Error(err))
			checks[hc.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[hc.Name] = "ok"
	}

	body := gin.H{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// respondError maps service errors onto HTTP statuses.
func (h *APIHandler) respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Message}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided or are invalid"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "detail": err.Error()})
}

// pathID reads the :id parameter. Anything that is not a positive integer
// cannot name a row, so it is reported as not found.
func pathID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, services.ErrNotFound
	}
	return uint(id), nil
}
