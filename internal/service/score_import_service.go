package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/excel"
)

type importScoreRepository interface {
	BulkUpsert(ctx context.Context, rows []models.ScoreUpsert, examID, subjectID string) error
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type importExamRepository interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	FindInGroupBySubject(ctx context.Context, groupID, subjectID string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
}

type importClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type importSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// ScoreImportInput carries one uploaded score sheet.
type ScoreImportInput struct {
	ExamID    string
	ClassID   string
	SubjectID string
	Reader    io.Reader
	Size      int64
}

// ScoreImportService ingests bulk score sheets. Valid rows are written even
// when other rows fail; rejected rows come back as row-level errors.
type ScoreImportService struct {
	scores    importScoreRepository
	exams     importExamRepository
	classes   importClassRepository
	subjects  importSubjectRepository
	analytics *AnalyticsService
	maxBytes  int64
	maxRows   int
	logger    *zap.Logger
}

// NewScoreImportService constructs the score import service.
func NewScoreImportService(scores importScoreRepository, exams importExamRepository, classes importClassRepository, subjects importSubjectRepository, analytics *AnalyticsService, maxBytes int64, maxRows int, logger *zap.Logger) *ScoreImportService {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if maxRows <= 0 {
		maxRows = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreImportService{scores: scores, exams: exams, classes: classes, subjects: subjects, analytics: analytics, maxBytes: maxBytes, maxRows: maxRows, logger: logger}
}

// templateHeaders are the columns the import sheet must carry.
var templateHeaders = []string{"Student Code", "Student Name", "Score"}

// Template renders a downloadable import sheet with the required columns.
func (s *ScoreImportService) Template() ([]byte, error) {
	data, err := excel.Render(excel.Sheet{
		Name:    "Scores",
		Title:   "Score Import Template",
		Headers: templateHeaders,
		Rows:    [][]string{{"S001", "Example Student", "85"}},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	return data, nil
}

// Import parses the uploaded sheet, validates every row against the class
// roster and the exam bounds, writes the valid rows in one transaction and
// refreshes the cached rankings of the touched exam.
func (s *ScoreImportService) Import(ctx context.Context, input ScoreImportInput) (*models.ScoreImportResult, error) {
	if input.Size > s.maxBytes {
		return nil, appErrors.Validationf("file exceeds the %d byte limit", s.maxBytes)
	}
	if _, err := s.classes.FindByID(ctx, input.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	exam, err := s.resolveTargetExam(ctx, input.ExamID, input.SubjectID)
	if err != nil {
		return nil, err
	}

	rows, err := excel.ReadRows(input.Reader)
	if err != nil {
		return nil, appErrors.Validationf("unreadable workbook: %v", err)
	}
	if len(rows) > s.maxRows {
		return nil, appErrors.Validationf("sheet exceeds the %d row limit", s.maxRows)
	}

	headerIdx, columns, err := locateHeader(rows)
	if err != nil {
		return nil, err
	}

	roster, err := s.scores.Roster(ctx, input.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	byCode := make(map[string]models.RosterEntry, len(roster))
	for _, entry := range roster {
		byCode[entry.StudentCode] = entry
	}

	result := &models.ScoreImportResult{ErrorDetails: []models.ScoreImportRowError{}}
	var upserts []models.ScoreUpsert
	seen := make(map[string]bool)

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		rowNum := i + 1

		code := cellAt(row, columns.code)
		if code == "" && cellAt(row, columns.name) == "" && cellAt(row, columns.score) == "" {
			continue
		}
		if code == "" {
			result.ErrorDetails = append(result.ErrorDetails, rowError(rowNum, code, "student code is empty"))
			continue
		}
		student, ok := byCode[code]
		if !ok {
			result.ErrorDetails = append(result.ErrorDetails, rowError(rowNum, code, "student is not in this class"))
			continue
		}
		if seen[code] {
			result.ErrorDetails = append(result.ErrorDetails, rowError(rowNum, code, "duplicate student code"))
			continue
		}

		raw := cellAt(row, columns.score)
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			result.ErrorDetails = append(result.ErrorDetails, rowError(rowNum, code, fmt.Sprintf("score %q is not a number", raw)))
			continue
		}
		if value < 0 || value > exam.TotalScore {
			result.ErrorDetails = append(result.ErrorDetails, rowError(rowNum, code, fmt.Sprintf("score must be between 0 and %.1f", exam.TotalScore)))
			continue
		}

		seen[code] = true
		upserts = append(upserts, models.ScoreUpsert{
			StudentID: student.StudentID,
			SubjectID: exam.SubjectID,
			ExamID:    exam.ID,
			Score:     value,
		})
	}

	if err := s.scores.BulkUpsert(ctx, upserts, exam.ID, exam.SubjectID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write scores")
	}
	result.SuccessCount = len(upserts)
	result.ErrorCount = len(result.ErrorDetails)

	if s.analytics != nil {
		s.analytics.InvalidateCache(ctx)
	}
	s.logger.Info("score import finished",
		zap.String("exam_id", exam.ID),
		zap.String("class_id", input.ClassID),
		zap.Int("imported", result.SuccessCount),
		zap.Int("rejected", result.ErrorCount))
	return result, nil
}

// resolveTargetExam maps the request onto the per-subject exam row of the
// sitting, creating it when the group does not carry the subject yet.
func (s *ScoreImportService) resolveTargetExam(ctx context.Context, examID, subjectID string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if subjectID == "" || exam.SubjectID == subjectID {
		return exam, nil
	}
	if exam.GroupID == nil {
		return nil, appErrors.Validationf("exam %s is a different subject and has no group", examID)
	}

	sibling, err := s.exams.FindInGroupBySubject(ctx, *exam.GroupID, subjectID)
	if err == nil {
		return sibling, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve exam group")
	}

	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validationf("subject %s does not exist", subjectID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject")
	}

	created := &models.Exam{
		Name:        fmt.Sprintf("%s - %s", sittingLabel(exam.Name), subject.Name),
		Description: exam.Description,
		ExamDate:    exam.ExamDate,
		TotalScore:  exam.TotalScore,
		SubjectID:   subjectID,
		GroupID:     exam.GroupID,
	}
	if err := s.exams.Create(ctx, created); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject exam")
	}
	s.logger.Info("created subject exam for import", zap.String("exam_id", created.ID), zap.String("subject_id", subjectID))
	return created, nil
}

// columnIndexes locates the required sheet columns.
type columnIndexes struct {
	code  int
	name  int
	score int
}

// locateHeader scans the first rows for the header carrying the required
// columns. The title row of rendered sheets is skipped naturally.
func locateHeader(rows [][]string) (int, columnIndexes, error) {
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		cols := columnIndexes{code: -1, name: -1, score: -1}
		for j, cell := range rows[i] {
			switch normalizeHeader(cell) {
			case "studentcode", "code":
				cols.code = j
			case "studentname", "name":
				cols.name = j
			case "score":
				cols.score = j
			}
		}
		if cols.code >= 0 && cols.name >= 0 && cols.score >= 0 {
			return i, cols, nil
		}
	}
	return 0, columnIndexes{}, appErrors.Validationf("sheet must carry student code, name and score columns")
}

func normalizeHeader(cell string) string {
	cell = strings.ToLower(strings.TrimSpace(cell))
	cell = strings.ReplaceAll(cell, " ", "")
	cell = strings.ReplaceAll(cell, "_", "")
	return cell
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowError(row int, code, message string) models.ScoreImportRowError {
	return models.ScoreImportRowError{Row: row, Code: code, Message: message}
}
