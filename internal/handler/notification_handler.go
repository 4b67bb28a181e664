package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/service"
)

type NotificationHandler struct {
	dispatcher *service.NotificationDispatcher
	logger     *zap.Logger
}

func NewNotificationHandler(dispatcher *service.NotificationDispatcher, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher, logger: logger}
}

func (h *NotificationHandler) Ingest(c *gin.Context) {
	var ev model.NotificationEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	path, err := h.dispatcher.Ingest(c.Request.Context(), ev)
	if err != nil {
		respondError(c, h.logger, "IngestEvent", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"path": path})
}

type digestRequest struct {
	Frequency model.Frequency `json:"frequency"`
}

func (h *NotificationHandler) RunDigest(c *gin.Context) {
	var req digestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	report, err := h.dispatcher.RunDigest(c.Request.Context(), req.Frequency)
	if err != nil {
		respondError(c, h.logger, "RunDigest", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
