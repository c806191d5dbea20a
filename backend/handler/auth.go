package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/middleware"
	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/orchestrator"
)

type AuthHandler struct {
	registry *orchestrator.Registry
}

func NewAuthHandler(registry *orchestrator.Registry) *AuthHandler {
	return &AuthHandler{registry: registry}
}

// GetCurrentUser returns the current user and their live session, if any
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	username := middleware.GetUsername(c)

	resp := gin.H{"username": username}
	if s, ok := h.registry.ByOwner(username); ok {
		resp["active_session"] = gin.H{
			"session_id": s.ID(),
			"kind":       s.Kind(),
			"state":      s.State(),
		}
	}

	c.JSON(http.StatusOK, resp)
}
