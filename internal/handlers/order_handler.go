package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"little_lemon/internal/models"
	"little_lemon/internal/repository"
	"little_lemon/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *APIHandler) PlaceOrder(c *gin.Context) {
	order, err := h.orderService.PlaceOrder(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *APIHandler) ListOrders(c *gin.Context) {
	filter, err := orderFilterFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	page, err := h.orderService.ListOrders(c.Request.Context(), principalFrom(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func orderFilterFromQuery(c *gin.Context) (repository.OrderFilter, error) {
	var (
		filter repository.OrderFilter
		err    error
	)
	if filter.Page, err = pageFromQuery(c); err != nil {
		return filter, err
	}
	if filter.UserID, err = queryUint(c, "user"); err != nil {
		return filter, err
	}
	if filter.DeliveryCrewID, err = queryUint(c, "delivery_crew"); err != nil {
		return filter, err
	}
	if raw := c.Query("status"); raw != "" {
		status := models.OrderStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, &services.ValidationError{Field: "date", Message: "must be a date in YYYY-MM-DD format"}
		}
		filter.Date = &day
	}
	filter.Ordering = c.Query("ordering")
	return filter, nil
}

func (h *APIHandler) GetOrder(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateOrder serves both PUT and PATCH. Only the keys present in the body
// are applied.
func (h *APIHandler) UpdateOrder(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var payload map[string]json.RawMessage
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.orderService.UpdateOrder(c.Request.Context(), principalFrom(c), id, payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *APIHandler) DeleteOrder(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.orderService.DeleteOrder(c.Request.Context(), principalFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
