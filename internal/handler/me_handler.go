package handler

import (
	"log/slog"
	"net/http"

	"dispatch/internal/middleware"
	"dispatch/internal/repository"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	users *repository.UserRepository
	log   *slog.Logger
}

func NewMeHandler(users *repository.UserRepository, log *slog.Logger) *MeHandler {
	return &MeHandler{users: users, log: log}
}

// RegisterFCMToken saves the device token used for mobile push.
func (h *MeHandler) RegisterFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required,max=512"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}
	if err := h.users.UpdateFCMToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		respondError(c, h.log, "update failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
