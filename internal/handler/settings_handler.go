package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/service"
)

type SettingsHandler struct {
	registry *service.PreferenceRegistry
	logger   *zap.Logger
}

func NewSettingsHandler(registry *service.PreferenceRegistry, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{registry: registry, logger: logger}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.registry.Settings(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "GetSettings", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var patch model.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s, err := h.registry.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		respondError(c, h.logger, "UpdateSettings", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type recipientRequest struct {
	Email string `json:"email"`
}

func (h *SettingsHandler) AddRecipient(c *gin.Context) {
	var req recipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	s, err := h.registry.AddRecipient(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, "AddRecipient", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) RemoveRecipient(c *gin.Context) {
	s, err := h.registry.RemoveRecipient(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, h.logger, "RemoveRecipient", err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) ListPreferences(c *gin.Context) {
	prefs, err := h.registry.Preferences(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListPreferences", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

func (h *SettingsHandler) UpdatePreference(c *gin.Context) {
	var patch model.PreferencePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	pref, err := h.registry.UpdatePreference(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, "UpdatePreference", err)
		return
	}
	c.JSON(http.StatusOK, pref)
}
