package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// TaskHandler exposes the background analysis task endpoints.
type TaskHandler struct {
	tasks *service.AnalysisTaskService
}

// NewTaskHandler constructs TaskHandler.
func NewTaskHandler(tasks *service.AnalysisTaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Create godoc
// @Summary Queue an analysis task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body models.CreateAnalysisTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateAnalysisTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "task queued", task)
}

// List godoc
// @Summary List analysis tasks
// @Tags Tasks
// @Produce json
// @Param status query string false "Filter by status"
// @Param task_type query string false "Filter by task type"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter models.AnalysisTaskFilter
	filter.Status = c.Query("status")
	filter.TaskType = c.Query("task_type")
	filter.Page, filter.PageSize = pageParams(c)

	tasks, total, err := h.tasks.List(c.Request.Context(), claims.UserID, claims.Role, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "tasks retrieved", response.NewPage(tasks, total, filter.Page, filter.PageSize))
}

// Get godoc
// @Summary Get one task with its reports and download links
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "task retrieved", task)
}

// Download godoc
// @Summary Download a generated report with a signed token
// @Tags Tasks
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /tasks/reports/download [get]
func (h *TaskHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Validationf("token is required"))
		return
	}
	report, file, err := h.tasks.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	filename := fmt.Sprintf("%s%s", report.Title, filepath.Ext(report.FilePath))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.DataFromReader(http.StatusOK, report.Size, "application/octet-stream", file, nil)
}
