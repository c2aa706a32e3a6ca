package handlers

import (
	"fmt"
	"net/http"

	"little_lemon/internal/access"

	"github.com/gin-gonic/gin"
)

func (h *APIHandler) ListGroupMembers(role access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.roleService.ListMembers(c.Request.Context(), principalFrom(c), role)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func (h *APIHandler) AddGroupMember(role access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		user, added, err := h.roleService.AddMember(c.Request.Context(), principalFrom(c), role, req.Username)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if !added {
			c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s is already in the %s group", user.Username, role)})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": fmt.Sprintf("%s added to the %s group", user.Username, role)})
	}
}

func (h *APIHandler) RemoveGroupMember(role access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c)
		if err != nil {
			h.respondError(c, err)
			return
		}
		user, err := h.roleService.RemoveMember(c.Request.Context(), principalFrom(c), role, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s removed from the %s group", user.Username, role)})
	}
}
