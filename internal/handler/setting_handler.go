package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// SettingHandler exposes runtime configuration endpoints.
type SettingHandler struct {
	settings *service.SettingService
}

// NewSettingHandler constructs SettingHandler.
func NewSettingHandler(settings *service.SettingService) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// List godoc
// @Summary List every setting
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings [get]
func (h *SettingHandler) List(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "settings retrieved", settings)
}

// Public godoc
// @Summary List settings exposed without authentication
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/public [get]
func (h *SettingHandler) Public(c *gin.Context) {
	settings, err := h.settings.Public(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "public settings retrieved", settings)
}

// Group godoc
// @Summary List the settings of one group
// @Tags Settings
// @Produce json
// @Param group path string true "Setting group"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings/groups/{group} [get]
func (h *SettingHandler) Group(c *gin.Context) {
	settings, err := h.settings.Group(c.Request.Context(), c.Param("group"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "settings retrieved", settings)
}

// Get godoc
// @Summary Get one setting by key
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings/{key} [get]
func (h *SettingHandler) Get(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "setting retrieved", setting)
}

// Set godoc
// @Summary Create or update a setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param payload body models.UpsertSettingRequest true "Setting payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings/{key} [put]
func (h *SettingHandler) Set(c *gin.Context) {
	var req models.UpsertSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	setting, err := h.settings.Set(c.Request.Context(), c.Param("key"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "setting saved", setting)
}

type batchSettingsRequest struct {
	Settings []models.BatchSettingItem `json:"settings" binding:"required"`
}

// BatchSet godoc
// @Summary Update several setting values at once
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body batchSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings [put]
func (h *SettingHandler) BatchSet(c *gin.Context) {
	var req batchSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	missing, err := h.settings.BatchSet(c.Request.Context(), req.Settings)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "settings updated", gin.H{"missing_keys": missing})
}

// Delete godoc
// @Summary Delete a non-system setting
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 204
// @Security BearerAuth
// @Router /settings/{key} [delete]
func (h *SettingHandler) Delete(c *gin.Context) {
	if err := h.settings.Delete(c.Request.Context(), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
