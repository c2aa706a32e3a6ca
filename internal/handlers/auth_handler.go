package handlers

import (
	"net/http"
	"strings"

	"little_lemon/internal/access"
	"little_lemon/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	principalKey = "principal"
	userIDKey    = "user_id"
	tokenKey     = "auth_token"
)

// RequireAuth resolves the Authorization header into a Principal, or
// aborts with 401.
func (h *APIHandler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromHeader(c.GetHeader("Authorization"))
		user, err := h.userService.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}

		principal, err := h.roleService.Resolve(c.Request.Context(), user)
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Set(userIDKey, user.ID)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// tokenFromHeader accepts "Token <t>" and "Bearer <t>".
func tokenFromHeader(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(token)
	}
	return ""
}

func principalFrom(c *gin.Context) access.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(access.Principal); ok {
			return p
		}
	}
	return access.Principal{}
}

func (h *APIHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *APIHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, err := h.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_token": token})
}

func (h *APIHandler) Logout(c *gin.Context) {
	if err := h.userService.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) Me(c *gin.Context) {
	principal := principalFrom(c)
	user, err := h.userService.GetUserByID(c.Request.Context(), principal.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	roles := principal.Roles
	if roles == nil {
		roles = []access.Role{}
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"roles":      roles,
		"role":       principal.Primary(),
	})
}
