package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/service"
)

// taskRequest accepts due_date as a plain calendar date.
type taskRequest struct {
	model.Task
	DueDate string `json:"due_date"`
}

func (r taskRequest) task() (model.Task, error) {
	t := r.Task
	if r.DueDate != "" {
		due, err := parseDate("due_date", r.DueDate)
		if err != nil {
			return t, err
		}
		t.DueDate = due
	}
	return t, nil
}

type taskPatchRequest struct {
	model.TaskPatch
	DueDate *string `json:"due_date,omitempty"`
}

func (r taskPatchRequest) patch() (model.TaskPatch, error) {
	p := r.TaskPatch
	if r.DueDate != nil {
		due, err := parseDate("due_date", *r.DueDate)
		if err != nil {
			return p, err
		}
		p.DueDate = &due
	}
	return p, nil
}

type TaskHandler struct {
	tasks  *service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

func (h *TaskHandler) List(c *gin.Context) {
	p, err := parseQuery(c)
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}
	page, err := h.tasks.Query(c.Request.Context(), p)
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	t, err := req.task()
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}
	view, err := h.tasks.Create(c.Request.Context(), t)
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "GetTask", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req taskPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	patch, err := req.patch()
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	view, err := h.tasks.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) Toggle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.tasks.Toggle(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "ToggleTask", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *TaskHandler) Complete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.tasks.Complete(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "CompleteTask", err)
		return
	}
	c.JSON(http.StatusOK, view)
}
