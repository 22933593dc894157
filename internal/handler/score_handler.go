package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ScoreHandler exposes score endpoints: CRUD plus the bulk import and the
// sheet export.
type ScoreHandler struct {
	scores   *service.ScoreService
	importer *service.ScoreImportService
	exporter *service.ScoreExportService
}

// NewScoreHandler constructs ScoreHandler.
func NewScoreHandler(scores *service.ScoreService, importer *service.ScoreImportService, exporter *service.ScoreExportService) *ScoreHandler {
	return &ScoreHandler{scores: scores, importer: importer, exporter: exporter}
}

// List godoc
// @Summary List scores visible to the caller
// @Tags Scores
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param subject_id query string false "Filter by subject"
// @Param exam_id query string false "Filter by exam"
// @Param class_id query string false "Filter by class"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scores [get]
func (h *ScoreHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter models.ScoreFilter
	filter.StudentID = c.Query("student_id")
	filter.SubjectID = c.Query("subject_id")
	filter.ExamID = c.Query("exam_id")
	filter.ClassID = c.Query("class_id")
	filter.Page, filter.PageSize = pageParams(c)

	scores, total, err := h.scores.List(c.Request.Context(), claims.UserID, claims.Role, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "scores retrieved", response.NewPage(scores, total, filter.Page, filter.PageSize))
}

// Get godoc
// @Summary Get one score entry
// @Tags Scores
// @Produce json
// @Param id path string true "Score ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scores/{id} [get]
func (h *ScoreHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	score, err := h.scores.Get(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "score retrieved", score)
}

// Create godoc
// @Summary Record one score
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body models.CreateScoreRequest true "Score payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /scores [post]
func (h *ScoreHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.CreateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.Create(c.Request.Context(), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "score recorded", score)
}

// Update godoc
// @Summary Update one score
// @Tags Scores
// @Accept json
// @Produce json
// @Param id path string true "Score ID"
// @Param payload body models.UpdateScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scores/{id} [put]
func (h *ScoreHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req models.UpdateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.Update(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "score updated", score)
}

// Delete godoc
// @Summary Remove one score
// @Tags Scores
// @Produce json
// @Param id path string true "Score ID"
// @Success 204
// @Security BearerAuth
// @Router /scores/{id} [delete]
func (h *ScoreHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.scores.Delete(c.Request.Context(), claims.UserID, claims.Role, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Template godoc
// @Summary Download the score import template
// @Tags Scores
// @Produce application/octet-stream
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /scores/import/template [get]
func (h *ScoreHandler) Template(c *gin.Context) {
	data, err := h.importer.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="score_import_template.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Import godoc
// @Summary Bulk import scores from an uploaded sheet
// @Tags Scores
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Score sheet (xlsx)"
// @Param exam_id formData string true "Exam ID"
// @Param class_id formData string true "Class ID"
// @Param subject_id formData string false "Subject ID when the exam group carries several subjects"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scores/import [post]
func (h *ScoreHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validationf("missing file upload"))
		return
	}
	examID := c.PostForm("exam_id")
	classID := c.PostForm("class_id")
	if examID == "" || classID == "" {
		response.Error(c, appErrors.Validationf("exam_id and class_id are required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, err := h.importer.Import(c.Request.Context(), service.ScoreImportInput{
		ExamID:    examID,
		ClassID:   classID,
		SubjectID: c.PostForm("subject_id"),
		Reader:    file,
		Size:      fileHeader.Size,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "import finished", result)
}

// Export godoc
// @Summary Export a class or grade score sheet
// @Tags Scores
// @Produce application/octet-stream
// @Param class_id query string true "Class ID"
// @Param exam_id query string true "Exam ID"
// @Param subject_id query string false "Restrict to one subject"
// @Param grade query bool false "Export the whole grade (admin only)"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /scores/export [get]
func (h *ScoreHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classID := c.Query("class_id")
	examID := c.Query("exam_id")
	if classID == "" || examID == "" {
		response.Error(c, appErrors.Validationf("class_id and exam_id are required"))
		return
	}
	gradeExport := c.Query("grade") == "true"

	filename, data, err := h.exporter.ExportClassScores(c.Request.Context(), claims.UserID, claims.Role, classID, examID, c.Query("subject_id"), gradeExport)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
