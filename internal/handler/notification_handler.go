package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"dispatch/internal/middleware"
	"dispatch/internal/repository"
	"dispatch/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxPage          = 100000
)

type NotificationHandler struct {
	repo    *repository.NotificationRepository
	svc     *service.NotificationService
	targets *service.TargetingResolver
	log     *slog.Logger
}

func NewNotificationHandler(repo *repository.NotificationRepository, svc *service.NotificationService, targets *service.TargetingResolver, log *slog.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, svc: svc, targets: targets, log: log}
}

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// List returns the caller's notifications, newest first.
// Query: page (1..100000), limit (1..100), unread_only.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 || page > maxPage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	limit = min(limit, maxPageLimit)
	unreadOnly, err := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unread_only"})
		return
	}

	list, total, err := h.repo.ListForRecipient(c.Request.Context(), repository.ListFilter{
		RecipientID: userID,
		Page:        page,
		Limit:       limit,
		UnreadOnly:  unreadOnly,
	})
	if err != nil {
		respondError(c, h.log, "list failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"pagination": pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + int64(limit) - 1) / int64(limit),
		},
	})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.repo.CountUnread(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, "count failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.repo.MarkRead(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		respondError(c, h.log, "update failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.repo.MarkAllReadForRecipient(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.log, "update failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "updated": updated})
}

type sendRequest struct {
	UserID    uint           `json:"user_id" binding:"required"`
	Type      string         `json:"type" binding:"required"`
	Title     string         `json:"title" binding:"required"`
	Body      string         `json:"body" binding:"required"`
	Data      map[string]any `json:"data"`
	ActionURL *string        `json:"action_url"`
}

// Send delivers one notification to one user (admin).
func (h *NotificationHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.svc.Send(c.Request.Context(), req.UserID, service.Message{
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		ActionURL: req.ActionURL,
	})
	if err != nil {
		respondError(c, h.log, "send failed", err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

type broadcastRequest struct {
	UserIDs   []uint         `json:"user_ids"`
	CityID    *uint          `json:"city_id"`
	CountryID *uint          `json:"country_id"`
	Type      string         `json:"type" binding:"required"`
	Title     string         `json:"title" binding:"required"`
	Body      string         `json:"body" binding:"required"`
	Data      map[string]any `json:"data"`
	ActionURL *string        `json:"action_url"`
}

// Broadcast sends the same notification to an explicit user list, or to every
// user in a city and/or country (admin). A non-empty user_ids wins.
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	recipients, err := h.targets.Resolve(ctx, service.Target{
		UserIDs:   req.UserIDs,
		CityID:    req.CityID,
		CountryID: req.CountryID,
	})
	if err != nil {
		respondError(c, h.log, "resolve targets failed", err)
		return
	}
	count, err := h.svc.Broadcast(ctx, recipients, service.Message{
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		ActionURL: req.ActionURL,
	})
	if err != nil {
		respondError(c, h.log, "broadcast failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
