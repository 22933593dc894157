package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// ClassHandler exposes class endpoints, including the teacher assignments
// and the roster workbook import/export.
type ClassHandler struct {
	classes *service.ClassService
	roster  *service.RosterService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService, roster *service.RosterService) *ClassHandler {
	return &ClassHandler{classes: classes, roster: roster}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param grade_id query string false "Filter by grade"
// @Param search query string false "Search by name or code"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	var filter models.ClassFilter
	filter.GradeID = c.Query("grade_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)

	classes, total, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "classes retrieved", response.NewPage(classes, total, filter.Page, filter.PageSize))
}

// Get godoc
// @Summary Get one class with headteacher and student count
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "class retrieved", class)
}

// Students godoc
// @Summary List the students of a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/students [get]
func (h *ClassHandler) Students(c *gin.Context) {
	students, err := h.classes.Students(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "class students retrieved", students)
}

// Create godoc
// @Summary Create a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body models.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req models.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "class created", class)
}

// Update godoc
// @Summary Update a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req models.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "class updated", class)
}

// Delete godoc
// @Summary Delete an empty class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Security BearerAuth
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Teachers godoc
// @Summary List the subject teachers assigned to a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/teachers [get]
func (h *ClassHandler) Teachers(c *gin.Context) {
	teachers, err := h.classes.Teachers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "class teachers retrieved", teachers)
}

type assignTeacherRequest struct {
	TeacherID string `json:"teacher_id" binding:"required"`
}

// AssignTeacher godoc
// @Summary Assign a subject teacher to a class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body assignTeacherRequest true "Teacher reference"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/teachers [post]
func (h *ClassHandler) AssignTeacher(c *gin.Context) {
	var req assignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.classes.AssignTeacher(c.Request.Context(), c.Param("id"), req.TeacherID); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "teacher assigned", nil)
}

// UnassignTeacher godoc
// @Summary Remove a subject teacher from a class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Param teacherId path string true "Teacher ID"
// @Success 204
// @Security BearerAuth
// @Router /classes/{id}/teachers/{teacherId} [delete]
func (h *ClassHandler) UnassignTeacher(c *gin.Context) {
	if err := h.classes.UnassignTeacher(c.Request.Context(), c.Param("id"), c.Param("teacherId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RosterTemplate godoc
// @Summary Download the roster import template
// @Tags Classes
// @Produce application/octet-stream
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /classes/roster/template [get]
func (h *ClassHandler) RosterTemplate(c *gin.Context) {
	data, err := h.roster.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="roster_import_template.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ExportRoster godoc
// @Summary Export the class roster as a workbook
// @Tags Classes
// @Produce application/octet-stream
// @Param id path string true "Class ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /classes/{id}/students/export [get]
func (h *ClassHandler) ExportRoster(c *gin.Context) {
	filename, data, err := h.roster.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ImportRoster godoc
// @Summary Bulk enroll or update students from an uploaded roster
// @Tags Classes
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Class ID"
// @Param file formData file true "Roster sheet (xlsx)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/students/import [post]
func (h *ClassHandler) ImportRoster(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validationf("missing file upload"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.roster.Import(c.Request.Context(), service.RosterImportInput{
		ClassID: c.Param("id"),
		Reader:  file,
		Size:    fileHeader.Size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "roster import finished", result)
}
