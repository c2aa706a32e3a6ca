package handlers

import (
	"net/http"
	"strconv"

	"little_lemon/internal/repository"
	"little_lemon/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (h *APIHandler) ListCategories(c *gin.Context) {
	categories, err := h.menuService.ListCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *APIHandler) GetCategory(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	category, err := h.menuService.GetCategory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *APIHandler) CreateCategory(c *gin.Context) {
	var input services.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	category, err := h.menuService.CreateCategory(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *APIHandler) DeleteCategory(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.menuService.DeleteCategory(c.Request.Context(), principalFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) ListMenuItems(c *gin.Context) {
	filter, err := menuItemFilterFromQuery(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	page, err := h.menuService.ListMenuItems(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func menuItemFilterFromQuery(c *gin.Context) (repository.MenuItemFilter, error) {
	var (
		filter repository.MenuItemFilter
		err    error
	)
	if filter.Page, err = pageFromQuery(c); err != nil {
		return filter, err
	}
	if filter.CategoryID, err = queryUint(c, "category"); err != nil {
		return filter, err
	}
	if filter.Price, err = queryDecimal(c, "price"); err != nil {
		return filter, err
	}
	if filter.MinPrice, err = queryDecimal(c, "price_min"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = queryDecimal(c, "price_max"); err != nil {
		return filter, err
	}
	if filter.Featured, err = queryBool(c, "featured"); err != nil {
		return filter, err
	}
	filter.Search = c.Query("search")
	filter.Ordering = c.Query("ordering")
	return filter, nil
}

func (h *APIHandler) GetMenuItem(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	item, err := h.menuService.GetMenuItem(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *APIHandler) CreateMenuItem(c *gin.Context) {
	var input services.MenuItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	item, err := h.menuService.CreateMenuItem(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *APIHandler) ReplaceMenuItem(c *gin.Context) {
	h.updateMenuItem(c, false)
}

func (h *APIHandler) PatchMenuItem(c *gin.Context) {
	h.updateMenuItem(c, true)
}

func (h *APIHandler) updateMenuItem(c *gin.Context, partial bool) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var input services.MenuItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	item, err := h.menuService.UpdateMenuItem(c.Request.Context(), principalFrom(c), id, input, partial)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *APIHandler) DeleteMenuItem(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.menuService.DeleteMenuItem(c.Request.Context(), principalFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pageFromQuery(c *gin.Context) (repository.Page, error) {
	var page repository.Page
	for key, dst := range map[string]*int{"page": &page.Number, "perpage": &page.Size} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, &services.ValidationError{Field: key, Message: "must be a positive integer"}
		}
		*dst = n
	}
	return page, nil
}

func queryUint(c *gin.Context, key string) (*uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, &services.ValidationError{Field: key, Message: "must be an id"}
	}
	v := uint(n)
	return &v, nil
}

func queryDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &services.ValidationError{Field: key, Message: "must be a number"}
	}
	return &d, nil
}

func queryBool(c *gin.Context, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &services.ValidationError{Field: key, Message: "must be true or false"}
	}
	return &b, nil
}
