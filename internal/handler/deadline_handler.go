package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/service"
)

type deadlineRequest struct {
	model.Deadline
	DueDate string `json:"due_date"`
}

func (r deadlineRequest) deadline() (model.Deadline, error) {
	d := r.Deadline
	if r.DueDate != "" {
		due, err := parseDate("due_date", r.DueDate)
		if err != nil {
			return d, err
		}
		d.DueDate = due
	}
	return d, nil
}

type deadlinePatchRequest struct {
	model.DeadlinePatch
	DueDate *string `json:"due_date,omitempty"`
}

func (r deadlinePatchRequest) patch() (model.DeadlinePatch, error) {
	p := r.DeadlinePatch
	if r.DueDate != nil {
		due, err := parseDate("due_date", *r.DueDate)
		if err != nil {
			return p, err
		}
		p.DueDate = &due
	}
	return p, nil
}

type remindRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type DeadlineHandler struct {
	deadlines *service.DeadlineService
	reminders *service.ReminderScheduler
	logger    *zap.Logger
}

func NewDeadlineHandler(deadlines *service.DeadlineService, reminders *service.ReminderScheduler, logger *zap.Logger) *DeadlineHandler {
	return &DeadlineHandler{deadlines: deadlines, reminders: reminders, logger: logger}
}

func (h *DeadlineHandler) List(c *gin.Context) {
	p, err := parseQuery(c)
	if err != nil {
		respondError(c, h.logger, "ListDeadlines", err)
		return
	}
	page, err := h.deadlines.Query(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.logger, "ListDeadlines", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *DeadlineHandler) Create(c *gin.Context) {
	var req deadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	d, err := req.deadline()
	if err != nil {
		respondError(c, h.logger, "CreateDeadline", err)
		return
	}
	view, err := h.deadlines.Create(c.Request.Context(), d)
	if err != nil {
		respondError(c, h.logger, "CreateDeadline", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *DeadlineHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.deadlines.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "GetDeadline", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DeadlineHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req deadlinePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	patch, err := req.patch()
	if err != nil {
		respondError(c, h.logger, "UpdateDeadline", err)
		return
	}
	view, err := h.deadlines.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, h.logger, "UpdateDeadline", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DeadlineHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.deadlines.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteDeadline", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DeadlineHandler) Toggle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.deadlines.Toggle(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "ToggleDeadline", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DeadlineHandler) Complete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.deadlines.Complete(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "CompleteDeadline", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Remind sends a manual reminder; the body is optional.
func (h *DeadlineHandler) Remind(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req remindRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	res, err := h.reminders.Send(c.Request.Context(), id, req.Recipient, req.Message)
	if err != nil {
		respondError(c, h.logger, "RemindDeadline", err)
		return
	}
	h.logger.Info("Manual reminder sent", zap.Int64("deadline_id", id), zap.String("recipient", res.Recipient))
	c.JSON(http.StatusOK, res)
}
