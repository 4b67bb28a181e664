package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/repository"
	"admincore/internal/service"
)

type ReminderHandler struct {
	reminders *service.ReminderScheduler
	logger    *zap.Logger
}

func NewReminderHandler(reminders *service.ReminderScheduler, logger *zap.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: reminders, logger: logger}
}

type bulkRequest struct {
	ThresholdDays *int `json:"threshold_days"`
}

func (h *ReminderHandler) Bulk(c *gin.Context) {
	var req bulkRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	days := service.BulkDefaultThreshold
	if req.ThresholdDays != nil {
		if *req.ThresholdDays < 0 {
			badRequest(c, "threshold_days must not be negative")
			return
		}
		days = *req.ThresholdDays
	}
	report, err := h.reminders.SendBulk(c.Request.Context(), days)
	if err != nil {
		respondError(c, h.logger, "BulkReminders", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReminderHandler) Reset(c *gin.Context) {
	report, err := h.reminders.ResetAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ResetReminders", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Run triggers one scheduler pass immediately.
func (h *ReminderHandler) Run(c *gin.Context) {
	report, err := h.reminders.Run(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "RunReminders", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReminderHandler) History(c *gin.Context) {
	f := repository.HistoryFilter{Kind: model.EntityKind(c.Query("kind"))}
	if f.Kind != "" && f.Kind != model.KindTask && f.Kind != model.KindDeadline {
		badRequest(c, "kind must be task or deadline")
		return
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid entity_id")
			return
		}
		f.EntityID = id
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		f.Limit = n
	}
	records, err := h.reminders.History(c.Request.Context(), f)
	if err != nil {
		respondError(c, h.logger, "ReminderHistory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
