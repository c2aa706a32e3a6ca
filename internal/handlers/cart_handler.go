package handlers

import (
	"net/http"

	"little_lemon/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *APIHandler) ListCart(c *gin.Context) {
	lines, err := h.cartService.List(c.Request.Context(), principalFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (h *APIHandler) AddToCart(c *gin.Context) {
	var input services.AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	line, err := h.cartService.Add(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func (h *APIHandler) ClearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), principalFrom(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
