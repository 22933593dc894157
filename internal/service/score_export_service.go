package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/stats"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/excel"
)

type exportClassRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	ListByGrade(ctx context.Context, gradeID string) ([]models.Class, error)
}

// absentMark fills score cells of students without a recorded score.
const absentMark = "absent"

// ScoreExportService renders score sheets for download: one column per
// subject of the exam sitting, totals and the dual class/grade rank.
type ScoreExportService struct {
	scores  analyticsScoreRepository
	exams   analyticsExamRepository
	classes exportClassRepository
	access  *AccessService
	logger  *zap.Logger
}

// NewScoreExportService constructs the score export service.
func NewScoreExportService(scores analyticsScoreRepository, exams analyticsExamRepository, classes exportClassRepository, access *AccessService, logger *zap.Logger) *ScoreExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreExportService{scores: scores, exams: exams, classes: classes, access: access, logger: logger}
}

// ExportClassScores renders the score sheet of one class, or of the whole
// grade when gradeExport is set. Grade exports are restricted to admins.
func (s *ScoreExportService) ExportClassScores(ctx context.Context, userID string, role models.UserRole, classID, examID, subjectID string, gradeExport bool) (string, []byte, error) {
	if gradeExport && role != models.RoleAdmin {
		return "", nil, appErrors.Clone(appErrors.ErrForbidden, "grade export requires admin access")
	}
	if s.access != nil && !gradeExport {
		if err := s.access.CanAccessClass(ctx, userID, role, classID); err != nil {
			return "", nil, err
		}
	}

	class, err := s.classes.FindDetailByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	groupExams, err := s.resolveExams(ctx, examID, subjectID)
	if err != nil {
		return "", nil, err
	}
	sort.Slice(groupExams, func(i, j int) bool { return groupExams[i].SubjectID < groupExams[j].SubjectID })
	examIDs := examIDsOf(groupExams)

	gradeRows, err := s.scores.ListCohort(ctx, models.CohortFilter{GradeID: class.GradeID, ExamIDs: examIDs})
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
	}

	classNames := map[string]string{class.ID: class.Name}
	var roster []models.RosterEntry
	if gradeExport {
		classes, err := s.classes.ListByGrade(ctx, class.GradeID)
		if err != nil {
			return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade classes")
		}
		for _, c := range classes {
			classNames[c.ID] = c.Name
			entries, err := s.scores.Roster(ctx, c.ID)
			if err != nil {
				return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
			}
			roster = append(roster, entries...)
		}
	} else {
		roster, err = s.scores.Roster(ctx, classID)
		if err != nil {
			return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
	}

	sheet := s.buildSheet(class, groupExams, gradeRows, roster, classNames, gradeExport)
	data, err := excel.Render(sheet)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render sheet")
	}

	scope := class.Code
	if gradeExport {
		scope = class.GradeName
	}
	filename := fmt.Sprintf("scores_%s_%s.xlsx", scope, examID)
	return filename, data, nil
}

func (s *ScoreExportService) buildSheet(class *models.ClassDetail, groupExams []models.Exam, gradeRows []models.CohortScoreRow, roster []models.RosterEntry, classNames map[string]string, gradeExport bool) excel.Sheet {
	type studentScores struct {
		entry    models.RosterEntry
		bySubj   map[string]float64
		total    float64
		hasScore bool
	}

	byStudent := make(map[string]*studentScores, len(roster))
	for _, entry := range roster {
		byStudent[entry.StudentID] = &studentScores{entry: entry, bySubj: make(map[string]float64)}
	}
	subjectNames := make(map[string]string, len(groupExams))
	for _, row := range gradeRows {
		subjectNames[row.SubjectID] = row.SubjectName
		student, ok := byStudent[row.StudentID]
		if !ok {
			continue
		}
		student.bySubj[row.SubjectID] = row.Score
		student.total += row.Score
		student.hasScore = true
	}

	// Ranks derive from raw rows: class rank within each class partition,
	// grade rank across the whole grade cohort.
	gradeRank := totalRankMap(gradeRows)
	classRank := make(map[string]int)
	byClass := make(map[string][]models.CohortScoreRow)
	for _, row := range gradeRows {
		byClass[row.ClassID] = append(byClass[row.ClassID], row)
	}
	for _, rows := range byClass {
		for id, rank := range totalRankMap(rows) {
			classRank[id] = rank
		}
	}

	headers := []string{"Student Code", "Student Name"}
	if gradeExport {
		headers = append(headers, "Class")
	}
	for _, exam := range groupExams {
		name := subjectNames[exam.SubjectID]
		if name == "" {
			name = exam.Name
		}
		headers = append(headers, name)
	}
	headers = append(headers, "Total", "Class Rank", "Grade Rank")

	sorted := make([]*studentScores, 0, len(byStudent))
	for _, student := range byStudent {
		sorted = append(sorted, student)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].entry.StudentCode < sorted[j].entry.StudentCode
	})

	rows := make([][]string, 0, len(sorted))
	for _, student := range sorted {
		row := []string{student.entry.StudentCode, student.entry.StudentName}
		if gradeExport {
			row = append(row, classNames[student.entry.ClassID])
		}
		for _, exam := range groupExams {
			if score, ok := student.bySubj[exam.SubjectID]; ok {
				row = append(row, formatScore(score))
			} else {
				row = append(row, absentMark)
			}
		}
		if student.hasScore {
			row = append(row,
				formatScore(student.total),
				strconv.Itoa(classRank[student.entry.StudentID]),
				strconv.Itoa(gradeRank[student.entry.StudentID]))
		} else {
			row = append(row, absentMark, "-", "-")
		}
		rows = append(rows, row)
	}

	title := fmt.Sprintf("%s Scores", class.Name)
	if gradeExport {
		title = fmt.Sprintf("%s Scores", class.GradeName)
	}
	return excel.Sheet{Name: "Scores", Title: title, Headers: headers, Rows: rows}
}

func totalRankMap(rows []models.CohortScoreRow) map[string]int {
	entries := make([]stats.ScoreEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, stats.ScoreEntry{StudentID: row.StudentID, Score: row.Score})
	}
	ranks := make(map[string]int)
	for _, total := range stats.TotalRanking(entries) {
		ranks[total.StudentID] = total.Rank
	}
	return ranks
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// resolveExams mirrors the analytics exam scope rules for exports.
func (s *ScoreExportService) resolveExams(ctx context.Context, examID, subjectID string) ([]models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if subjectID != "" {
		if exam.SubjectID == subjectID {
			return []models.Exam{*exam}, nil
		}
		if exam.GroupID == nil {
			return nil, appErrors.NotFoundf("no %s exam in this sitting", subjectID)
		}
		sibling, err := s.exams.FindInGroupBySubject(ctx, *exam.GroupID, subjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFoundf("no %s exam in this sitting", subjectID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve exam group")
		}
		return []models.Exam{*sibling}, nil
	}
	if exam.GroupID == nil {
		return []models.Exam{*exam}, nil
	}
	details, err := s.exams.ListByGroup(ctx, *exam.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve exam group")
	}
	exams := make([]models.Exam, 0, len(details))
	for _, detail := range details {
		exams = append(exams, detail.Exam)
	}
	return exams, nil
}
