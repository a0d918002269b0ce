package handler

import (
	"net/http"

	"dispatch/internal/ws"

	"github.com/gin-gonic/gin"
)

func Health(hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online_clients": hub.ClientCount()})
	}
}
