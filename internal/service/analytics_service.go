package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/stats"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type analyticsScoreRepository interface {
	ListCohort(ctx context.Context, filter models.CohortFilter) ([]models.CohortScoreRow, error)
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type analyticsExamRepository interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.ExamDetail, error)
	FindInGroupBySubject(ctx context.Context, groupID, subjectID string) (*models.Exam, error)
	FindPreviousGroupExam(ctx context.Context, subjectID string, before time.Time) (*models.Exam, error)
}

type analyticsClassRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type analyticsStudentRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type analyticsGradeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Grade, error)
}

// AnalyticsService computes score analytics on demand. Ranks are always
// derived from raw score rows here; the cached Score.ranking column is never
// consulted. Heavyweight aggregates go through the cache service.
type AnalyticsService struct {
	scores   analyticsScoreRepository
	exams    analyticsExamRepository
	classes  analyticsClassRepository
	students analyticsStudentRepository
	grades   analyticsGradeRepository
	access   *AccessService
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(scores analyticsScoreRepository, exams analyticsExamRepository, classes analyticsClassRepository, students analyticsStudentRepository, grades analyticsGradeRepository, access *AccessService, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{scores: scores, exams: exams, classes: classes, students: students, grades: grades, access: access, cache: cache, metrics: metrics, logger: logger}
}

// InvalidateCache drops every cached analytics aggregate. Called after bulk
// imports change the underlying scores.
func (s *AnalyticsService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "analytics:*"); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.Error(err))
	}
}

// SystemMetrics returns the runtime instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}

// ClassScores computes roster-aware statistics for one class on one exam
// sitting. Without a subject filter the exam expands to its whole group.
func (s *AnalyticsService) ClassScores(ctx context.Context, userID string, role models.UserRole, classID, examID, subjectID string) (*models.ClassScoresAnalytics, error) {
	if s.access != nil {
		if err := s.access.CanAccessClass(ctx, userID, role, classID); err != nil {
			return nil, err
		}
	}

	cacheKey := makeAnalyticsCacheKey("class_scores", classID, examID, subjectID)
	var cached models.ClassScoresAnalytics
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	class, err := s.classes.FindDetailByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	groupExams, err := s.resolveExamScope(ctx, examID, subjectID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.scores.ListCohort(ctx, models.CohortFilter{ClassID: classID, ExamIDs: examIDsOf(groupExams)})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class scores")
	}
	roster, err := s.scores.Roster(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_class_scores", time.Since(start))
	}

	result := s.buildClassScores(class, examID, groupExams, rows, roster)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, 0); err != nil {
			s.logger.Warn("cache class scores", zap.Error(err))
		}
	}
	return result, nil
}

func (s *AnalyticsService) buildClassScores(class *models.ClassDetail, examID string, groupExams []models.Exam, rows []models.CohortScoreRow, roster []models.RosterEntry) *models.ClassScoresAnalytics {
	result := &models.ClassScoresAnalytics{
		ClassID:      class.ID,
		ClassName:    class.Name,
		ExamID:       examID,
		StudentCount: len(roster),
		Subjects:     []models.SubjectStatistics{},
		Totals:       []models.StudentTotalRow{},
		TopStudents:  []models.StudentTotalRow{},
	}

	scored := make(map[string]bool)
	bySubject := make(map[string][]models.CohortScoreRow)
	subjectOrder := make([]string, 0)
	for _, row := range rows {
		scored[row.StudentID] = true
		if _, ok := bySubject[row.SubjectID]; !ok {
			subjectOrder = append(subjectOrder, row.SubjectID)
		}
		bySubject[row.SubjectID] = append(bySubject[row.SubjectID], row)
	}
	sort.Strings(subjectOrder)

	result.ScoredCount = len(scored)
	if len(roster) > 0 {
		result.CompletionRate = float64(len(scored)) / float64(len(roster)) * 100
	}

	for _, subjectID := range subjectOrder {
		subjectRows := bySubject[subjectID]
		result.Subjects = append(result.Subjects, buildSubjectStatistics(subjectRows))
	}

	entries := make([]stats.ScoreEntry, 0, len(rows))
	subjectsPerStudent := make(map[string]int)
	for _, row := range rows {
		entries = append(entries, stats.ScoreEntry{StudentID: row.StudentID, Score: row.Score})
		subjectsPerStudent[row.StudentID]++
	}
	names := make(map[string]models.RosterEntry, len(roster))
	for _, entry := range roster {
		names[entry.StudentID] = entry
	}
	for _, row := range rows {
		if _, ok := names[row.StudentID]; !ok {
			names[row.StudentID] = models.RosterEntry{StudentID: row.StudentID, StudentName: row.StudentName, StudentCode: row.StudentCode}
		}
	}

	for _, total := range stats.TotalRanking(entries) {
		entry := names[total.StudentID]
		average := 0.0
		if total.Count > 0 {
			average = total.Total / float64(total.Count)
		}
		result.Totals = append(result.Totals, models.StudentTotalRow{
			StudentID:    total.StudentID,
			StudentName:  entry.StudentName,
			StudentCode:  entry.StudentCode,
			Total:        total.Total,
			Average:      average,
			SubjectCount: total.Count,
			Rank:         total.Rank,
		})
	}
	top := len(result.Totals)
	if top > 10 {
		top = 10
	}
	result.TopStudents = result.Totals[:top]

	if len(rows) > 0 {
		overall := buildOverallStatistics(rows)
		result.Overall = &overall
	}
	return result
}

// Historical computes per-exam metric series for a class sorted by exam
// date. A subject filter maps each requested exam onto its group's exam for
// that subject; sittings without one, and exams without scores, contribute
// null points at aligned indices.
func (s *AnalyticsService) Historical(ctx context.Context, userID string, role models.UserRole, classID string, examIDs []string, subjectID string) (*models.HistoricalAnalytics, error) {
	if s.access != nil {
		if err := s.access.CanAccessClass(ctx, userID, role, classID); err != nil {
			return nil, err
		}
	}
	if len(examIDs) == 0 {
		return nil, appErrors.Validationf("exam_ids is required")
	}

	exams := make([]models.Exam, 0, len(examIDs))
	seen := make(map[string]bool, len(examIDs))
	for _, id := range examIDs {
		exam, err := s.exams.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFoundf("exam %s not found", id)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
		}
		if subjectID != "" && exam.SubjectID != subjectID {
			sibling, err := s.siblingExam(ctx, exam, subjectID)
			if err != nil {
				return nil, err
			}
			if sibling != nil {
				exam = sibling
			}
		}
		if seen[exam.ID] {
			continue
		}
		seen[exam.ID] = true
		exams = append(exams, *exam)
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].ExamDate.Before(exams[j].ExamDate) })

	rows, err := s.scores.ListCohort(ctx, models.CohortFilter{ClassID: classID, ExamIDs: examIDsOf(exams), SubjectID: subjectID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load historical scores")
	}
	byExam := make(map[string][]models.CohortScoreRow)
	for _, row := range rows {
		byExam[row.ExamID] = append(byExam[row.ExamID], row)
	}

	result := &models.HistoricalAnalytics{
		ClassID:    classID,
		SubjectID:  subjectID,
		ExamLabels: make([]string, 0, len(exams)),
		ExamDates:  make([]time.Time, 0, len(exams)),
	}
	for _, exam := range exams {
		result.ExamLabels = append(result.ExamLabels, exam.Name)
		result.ExamDates = append(result.ExamDates, exam.ExamDate)

		examRows := byExam[exam.ID]
		if len(examRows) == 0 {
			result.Mean = append(result.Mean, models.HistoricalMetricPoint{ExamID: exam.ID})
			result.PassRate = append(result.PassRate, models.HistoricalMetricPoint{ExamID: exam.ID})
			result.Excellent = append(result.Excellent, models.HistoricalMetricPoint{ExamID: exam.ID})
			result.Max = append(result.Max, models.HistoricalMetricPoint{ExamID: exam.ID})
			result.Min = append(result.Min, models.HistoricalMetricPoint{ExamID: exam.ID})
			continue
		}

		values := scoresOf(examRows)
		summary := stats.Describe(values)
		bands := stats.RateBands(values, exam.TotalScore)
		result.Mean = append(result.Mean, metricPoint(exam.ID, summary.Mean))
		result.PassRate = append(result.PassRate, metricPoint(exam.ID, bands.PassRate))
		result.Excellent = append(result.Excellent, metricPoint(exam.ID, bands.ExcellentRate))
		result.Max = append(result.Max, metricPoint(exam.ID, summary.Max))
		result.Min = append(result.Min, metricPoint(exam.ID, summary.Min))
	}
	return result, nil
}

// siblingExam finds the same sitting's exam for another subject. A nil
// result means the sitting carries no exam for that subject.
func (s *AnalyticsService) siblingExam(ctx context.Context, exam *models.Exam, subjectID string) (*models.Exam, error) {
	if exam.GroupID == nil {
		return nil, nil
	}
	sibling, err := s.exams.FindInGroupBySubject(ctx, *exam.GroupID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve exam group")
	}
	return sibling, nil
}

// StudentTrend computes a student's per-subject score series, radar of the
// latest sitting, grade subject ranks and class/grade total ranks.
func (s *AnalyticsService) StudentTrend(ctx context.Context, userID string, role models.UserRole, studentID, subjectID string, limit int) (*models.StudentTrendAnalytics, error) {
	if s.access != nil {
		if err := s.access.CanAccessStudent(ctx, userID, role, studentID); err != nil {
			return nil, err
		}
	}
	student, err := s.students.FindDetailByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if limit <= 0 {
		limit = 10
	}

	cacheKey := makeAnalyticsCacheKey("student_trend", studentID, subjectID, fmt.Sprintf("%d", limit))
	var cached models.StudentTrendAnalytics
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	rows, err := s.scores.ListCohort(ctx, models.CohortFilter{StudentID: studentID, SubjectID: subjectID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student scores")
	}

	sittings := groupSittings(rows)
	if len(sittings) > limit {
		sittings = sittings[len(sittings)-limit:]
	}

	result := &models.StudentTrendAnalytics{
		StudentID:   student.ID,
		StudentName: student.Name,
		ExamLabels:  make([]string, 0, len(sittings)),
		Series:      []models.SubjectTrendSeries{},
		Radar:       []models.RadarPoint{},
		GradeRanks:  []models.SubjectRank{},
		RankHistory: []models.RankHistoryPoint{},
	}
	for _, sitting := range sittings {
		result.ExamLabels = append(result.ExamLabels, sitting.label)
	}

	result.Series = buildTrendSeries(sittings)
	result.Radar = buildRadar(sittings)

	if len(sittings) > 0 {
		latest := sittings[len(sittings)-1]
		if err := s.attachRanks(ctx, result, student, latest); err != nil {
			return nil, err
		}
	}
	if history, err := s.buildRankHistory(ctx, student, sittings, subjectID); err == nil {
		result.RankHistory = history
	} else {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, 0); err != nil {
			s.logger.Warn("cache student trend", zap.Error(err))
		}
	}
	return result, nil
}

// sitting groups the rows of one exam date into one combined exam event.
type sitting struct {
	date  time.Time
	label string
	rows  []models.CohortScoreRow
}

// groupSittings buckets rows by exam date, oldest first. Rows arrive sorted
// by date already, so bucket order follows insertion order.
func groupSittings(rows []models.CohortScoreRow) []sitting {
	var sittings []sitting
	index := make(map[string]int)
	for _, row := range rows {
		key := row.ExamDate.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(sittings)
			index[key] = i
			sittings = append(sittings, sitting{date: row.ExamDate, label: sittingLabel(row.ExamName)})
		}
		sittings[i].rows = append(sittings[i].rows, row)
	}
	return sittings
}

// sittingLabel strips a trailing subject qualifier like "Midterm - Math" so
// exams of one sitting share one axis label.
func sittingLabel(examName string) string {
	if i := strings.LastIndex(examName, " - "); i > 0 {
		return examName[:i]
	}
	return examName
}

func buildTrendSeries(sittings []sitting) []models.SubjectTrendSeries {
	subjectNames := make(map[string]string)
	subjectOrder := make([]string, 0)
	for _, st := range sittings {
		for _, row := range st.rows {
			if _, ok := subjectNames[row.SubjectID]; !ok {
				subjectNames[row.SubjectID] = row.SubjectName
				subjectOrder = append(subjectOrder, row.SubjectID)
			}
		}
	}
	sort.Strings(subjectOrder)

	series := make([]models.SubjectTrendSeries, 0, len(subjectOrder))
	for _, subjectID := range subjectOrder {
		entry := models.SubjectTrendSeries{
			SubjectID:   subjectID,
			SubjectName: subjectNames[subjectID],
			Scores:      make([]*float64, len(sittings)),
		}
		for i, st := range sittings {
			for _, row := range st.rows {
				if row.SubjectID == subjectID {
					v := row.Score
					entry.Scores[i] = &v
					break
				}
			}
		}
		series = append(series, entry)
	}
	return series
}

func buildRadar(sittings []sitting) []models.RadarPoint {
	if len(sittings) == 0 {
		return []models.RadarPoint{}
	}
	latest := sittings[len(sittings)-1]
	radar := make([]models.RadarPoint, 0, len(latest.rows))
	for _, row := range latest.rows {
		radar = append(radar, models.RadarPoint{
			SubjectID:   row.SubjectID,
			SubjectName: row.SubjectName,
			Score:       row.Score,
			TotalScore:  row.TotalScore,
		})
	}
	sort.Slice(radar, func(i, j int) bool { return radar[i].SubjectID < radar[j].SubjectID })
	return radar
}

// attachRanks fills grade subject ranks and the dual class/grade total rank
// for the latest sitting.
func (s *AnalyticsService) attachRanks(ctx context.Context, result *models.StudentTrendAnalytics, student *models.StudentDetail, latest sitting) error {
	examIDs := make([]string, 0, len(latest.rows))
	for _, row := range latest.rows {
		examIDs = append(examIDs, row.ExamID)
	}

	gradeRows, err := s.scores.ListCohort(ctx, models.CohortFilter{GradeID: student.GradeID, ExamIDs: examIDs})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade cohort")
	}

	byExam := make(map[string][]models.CohortScoreRow)
	for _, row := range gradeRows {
		byExam[row.ExamID] = append(byExam[row.ExamID], row)
	}
	for _, own := range latest.rows {
		cohort := byExam[own.ExamID]
		values := scoresOf(cohort)
		ranks := stats.CompetitionRanks(values)
		for i, row := range cohort {
			if row.StudentID == student.ID {
				result.GradeRanks = append(result.GradeRanks, models.SubjectRank{
					SubjectID:   own.SubjectID,
					SubjectName: own.SubjectName,
					Rank:        ranks[i],
					CohortSize:  len(cohort),
					Percentile:  stats.Percentile(ranks[i], len(cohort)),
				})
				break
			}
		}
	}
	sort.Slice(result.GradeRanks, func(i, j int) bool { return result.GradeRanks[i].SubjectID < result.GradeRanks[j].SubjectID })

	if rank, size, ok := totalRankOf(filterByClass(gradeRows, student.ClassID), student.ID); ok {
		result.ClassRank = &models.SubjectRank{Rank: rank, CohortSize: size, Percentile: stats.Percentile(rank, size)}
	}
	if rank, size, ok := totalRankOf(gradeRows, student.ID); ok {
		result.GradeRank = &models.SubjectRank{Rank: rank, CohortSize: size, Percentile: stats.Percentile(rank, size)}
	}
	return nil
}

// buildRankHistory ranks the student's class totals per sitting. The cohort
// honors the trend's subject filter, so a subject-scoped trend ranks
// single-subject totals instead of all-subject ones.
func (s *AnalyticsService) buildRankHistory(ctx context.Context, student *models.StudentDetail, sittings []sitting, subjectID string) ([]models.RankHistoryPoint, error) {
	if len(sittings) == 0 {
		return []models.RankHistoryPoint{}, nil
	}
	classRows, err := s.scores.ListCohort(ctx, models.CohortFilter{ClassID: student.ClassID, SubjectID: subjectID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class history")
	}
	byDate := make(map[string][]models.CohortScoreRow)
	for _, row := range classRows {
		key := row.ExamDate.Format("2006-01-02")
		byDate[key] = append(byDate[key], row)
	}

	history := make([]models.RankHistoryPoint, 0, len(sittings))
	for _, st := range sittings {
		cohort := byDate[st.date.Format("2006-01-02")]
		rank, size, ok := totalRankOf(cohort, student.ID)
		if !ok {
			continue
		}
		point := models.RankHistoryPoint{ExamLabel: st.label, Rank: rank, CohortSize: size}
		if len(st.rows) > 0 {
			point.ExamID = st.rows[0].ExamID
		}
		history = append(history, point)
	}
	return history, nil
}

// StudentStatistics computes per-subject aggregates for one student with a
// first-to-last progress delta per subject.
func (s *AnalyticsService) StudentStatistics(ctx context.Context, userID string, role models.UserRole, studentID, examID string) (*models.StudentStatisticsAnalytics, error) {
	if s.access != nil {
		if err := s.access.CanAccessStudent(ctx, userID, role, studentID); err != nil {
			return nil, err
		}
	}

	filter := models.CohortFilter{StudentID: studentID}
	if examID != "" {
		exams, err := s.resolveExamScope(ctx, examID, "")
		if err != nil {
			return nil, err
		}
		filter.ExamIDs = examIDsOf(exams)
	}
	rows, err := s.scores.ListCohort(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student scores")
	}

	result := &models.StudentStatisticsAnalytics{StudentID: studentID, ExamID: examID, Subjects: []models.StudentSubjectAggregate{}}

	bySubject := make(map[string][]models.CohortScoreRow)
	subjectOrder := make([]string, 0)
	for _, row := range rows {
		if _, ok := bySubject[row.SubjectID]; !ok {
			subjectOrder = append(subjectOrder, row.SubjectID)
		}
		bySubject[row.SubjectID] = append(bySubject[row.SubjectID], row)
	}
	sort.Strings(subjectOrder)

	for _, subjectID := range subjectOrder {
		subjectRows := bySubject[subjectID]
		values := scoresOf(subjectRows)
		summary := stats.Describe(values)
		first := subjectRows[0].Score
		last := subjectRows[len(subjectRows)-1].Score
		result.Subjects = append(result.Subjects, models.StudentSubjectAggregate{
			SubjectID:   subjectID,
			SubjectName: subjectRows[0].SubjectName,
			Count:       summary.Count,
			Mean:        summary.Mean,
			Max:         summary.Max,
			Min:         summary.Min,
			First:       first,
			Last:        last,
			Progress:    last - first,
		})
	}

	if len(rows) > 0 {
		overall := buildOverallStatistics(rows)
		result.Overall = &overall
	}
	return result, nil
}

// Comparative compares classes or grade levels on one exam sitting. Grade
// comparisons are limited to admins and headteachers.
func (s *AnalyticsService) Comparative(ctx context.Context, userID string, role models.UserRole, examID, targetType string, targetIDs []string, subjectID string) (*models.ComparativeAnalytics, error) {
	if targetType != "class" && targetType != "grade" {
		return nil, appErrors.Validationf("target_type must be class or grade")
	}
	if targetType == "grade" && role != models.RoleAdmin && role != models.RoleHeadteacher {
		return nil, appErrors.ErrForbidden
	}
	if len(targetIDs) == 0 {
		return nil, appErrors.Validationf("target_ids is required")
	}

	groupExams, err := s.resolveExamScope(ctx, examID, subjectID)
	if err != nil {
		return nil, err
	}
	examIDs := examIDsOf(groupExams)

	result := &models.ComparativeAnalytics{ExamID: examID, TargetType: targetType, SubjectID: subjectID, Targets: []models.ComparativeTarget{}}

	for _, targetID := range targetIDs {
		filter := models.CohortFilter{ExamIDs: examIDs}
		var targetName string
		switch targetType {
		case "class":
			if s.access != nil && role != models.RoleAdmin {
				if err := s.access.CanAccessClass(ctx, userID, role, targetID); err != nil {
					return nil, err
				}
			}
			class, err := s.classes.FindDetailByID(ctx, targetID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.NotFoundf("class %s not found", targetID)
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
			}
			filter.ClassID = targetID
			targetName = class.Name
		case "grade":
			grade, err := s.grades.FindByID(ctx, targetID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.NotFoundf("grade %s not found", targetID)
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
			}
			filter.GradeID = targetID
			targetName = grade.Name
		}

		rows, err := s.scores.ListCohort(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load comparative cohort")
		}

		normalized := normalizedScores(rows)
		summary := stats.Describe(normalized)
		bands := stats.RateBands(normalized, 100)
		result.Targets = append(result.Targets, models.ComparativeTarget{
			TargetID:      targetID,
			TargetName:    targetName,
			Count:         summary.Count,
			Mean:          summary.Mean,
			PassRate:      bands.PassRate,
			ExcellentRate: bands.ExcellentRate,
			Distribution:  toDistribution(stats.Distribution(normalized, 100)),
		})
	}
	return result, nil
}

// LevelDistribution computes each class's four-band split for one exam
// sitting plus a progress index against the immediately preceding sitting.
// Every class must belong to the same grade level.
func (s *AnalyticsService) LevelDistribution(ctx context.Context, classIDs []string, examID string) (*models.LevelDistributionAnalytics, error) {
	if len(classIDs) == 0 {
		return nil, appErrors.Validationf("class_ids is required")
	}

	cacheKey := makeAnalyticsCacheKey("level_distribution", strings.Join(classIDs, ","), examID)
	var cached models.LevelDistributionAnalytics
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	groupExams, err := s.resolveExamScope(ctx, examID, "")
	if err != nil {
		return nil, err
	}
	examIDs := examIDsOf(groupExams)

	classes := make([]*models.ClassDetail, 0, len(classIDs))
	gradeID := ""
	for _, id := range classIDs {
		class, err := s.classes.FindDetailByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFoundf("class %s not found", id)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
		if gradeID == "" {
			gradeID = class.GradeID
		} else if class.GradeID != gradeID {
			return nil, appErrors.Validationf("classes must belong to one grade level")
		}
		classes = append(classes, class)
	}

	gradeRows, err := s.scores.ListCohort(ctx, models.CohortFilter{GradeID: gradeID, ExamIDs: examIDs})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade cohort")
	}

	result := &models.LevelDistributionAnalytics{
		ExamID:         examID,
		GradeID:        gradeID,
		Classes:        []models.ClassLevelDistribution{},
		GradeBenchmark: toLevelBandCounts(stats.LevelDistribution(studentAveragesOf(gradeRows))),
		MostImproved:   []string{},
	}

	var previousRows []models.CohortScoreRow
	if previous, err := s.exams.FindPreviousGroupExam(ctx, exam.SubjectID, exam.ExamDate); err == nil {
		result.PreviousExamID = previous.ID
		previousScope, err := s.resolveExamScope(ctx, previous.ID, "")
		if err != nil {
			return nil, err
		}
		previousRows, err = s.scores.ListCohort(ctx, models.CohortFilter{GradeID: gradeID, ExamIDs: examIDsOf(previousScope)})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous cohort")
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve previous exam")
	}

	type progressEntry struct {
		name  string
		index float64
	}
	var progress []progressEntry

	for _, class := range classes {
		classRows := filterByClass(gradeRows, class.ID)
		averages := studentAveragesOf(classRows)
		bands := stats.LevelDistribution(averages)

		entry := models.ClassLevelDistribution{
			ClassID:      class.ID,
			ClassName:    class.Name,
			StudentCount: len(averages),
			Bands:        toLevelBandCounts(bands),
		}
		if result.PreviousExamID != "" {
			previousBands := stats.LevelDistribution(studentAveragesOf(filterByClass(previousRows, class.ID)))
			index := stats.ProgressIndex(bands, previousBands)
			entry.ProgressIndex = &index
			progress = append(progress, progressEntry{name: class.Name, index: index})
		}
		result.Classes = append(result.Classes, entry)
	}

	sort.Slice(progress, func(i, j int) bool { return progress[i].index > progress[j].index })
	for i, entry := range progress {
		if i >= 3 {
			break
		}
		result.MostImproved = append(result.MostImproved, entry.name)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, 0); err != nil {
			s.logger.Warn("cache level distribution", zap.Error(err))
		}
	}
	return result, nil
}

// resolveExamScope returns the exams covered by an analytics request: the
// exam itself, its whole group when no subject filter is given, or the
// group's per-subject exam when one is.
func (s *AnalyticsService) resolveExamScope(ctx context.Context, examID, subjectID string) ([]models.Exam, error) {
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

func buildSubjectStatistics(rows []models.CohortScoreRow) models.SubjectStatistics {
	values := scoresOf(rows)
	summary := stats.Describe(values)
	totalScore := rows[0].TotalScore
	bands := stats.RateBands(values, totalScore)
	return models.SubjectStatistics{
		SubjectID:      rows[0].SubjectID,
		SubjectName:    rows[0].SubjectName,
		ExamID:         rows[0].ExamID,
		TotalScore:     totalScore,
		Count:          summary.Count,
		Mean:           summary.Mean,
		Median:         summary.Median,
		Min:            summary.Min,
		Max:            summary.Max,
		StdDev:         summary.StdDev,
		Quantiles:      summary.Quantiles,
		PassCount:      bands.PassCount,
		PassRate:       bands.PassRate,
		GoodCount:      bands.GoodCount,
		GoodRate:       bands.GoodRate,
		ExcellentCount: bands.ExcellentCount,
		ExcellentRate:  bands.ExcellentRate,
		Distribution:   toDistribution(stats.Distribution(values, totalScore)),
	}
}

// buildOverallStatistics aggregates rows across subjects by normalizing each
// score to a percentage of its exam's total.
func buildOverallStatistics(rows []models.CohortScoreRow) models.SubjectStatistics {
	normalized := normalizedScores(rows)
	summary := stats.Describe(normalized)
	bands := stats.RateBands(normalized, 100)
	return models.SubjectStatistics{
		SubjectID:      "overall",
		SubjectName:    "Overall",
		TotalScore:     100,
		Count:          summary.Count,
		Mean:           summary.Mean,
		Median:         summary.Median,
		Min:            summary.Min,
		Max:            summary.Max,
		StdDev:         summary.StdDev,
		Quantiles:      summary.Quantiles,
		PassCount:      bands.PassCount,
		PassRate:       bands.PassRate,
		GoodCount:      bands.GoodCount,
		GoodRate:       bands.GoodRate,
		ExcellentCount: bands.ExcellentCount,
		ExcellentRate:  bands.ExcellentRate,
		Distribution:   toDistribution(stats.Distribution(normalized, 100)),
	}
}

func scoresOf(rows []models.CohortScoreRow) []float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Score)
	}
	return values
}

// normalizedScores converts each score to a percentage of its exam's total,
// so rows of different subjects become comparable.
func normalizedScores(rows []models.CohortScoreRow) []float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.TotalScore <= 0 {
			continue
		}
		values = append(values, row.Score/row.TotalScore*100)
	}
	return values
}

// studentAveragesOf returns each student's mean normalized score.
func studentAveragesOf(rows []models.CohortScoreRow) []float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, row := range rows {
		if row.TotalScore <= 0 {
			continue
		}
		if _, ok := counts[row.StudentID]; !ok {
			order = append(order, row.StudentID)
		}
		sums[row.StudentID] += row.Score / row.TotalScore * 100
		counts[row.StudentID]++
	}
	averages := make([]float64, 0, len(order))
	for _, id := range order {
		averages = append(averages, sums[id]/float64(counts[id]))
	}
	return averages
}

func filterByClass(rows []models.CohortScoreRow, classID string) []models.CohortScoreRow {
	filtered := make([]models.CohortScoreRow, 0, len(rows))
	for _, row := range rows {
		if row.ClassID == classID {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// totalRankOf ranks the cohort by summed score and returns the student's
// competition rank and the cohort size.
func totalRankOf(rows []models.CohortScoreRow, studentID string) (int, int, bool) {
	entries := make([]stats.ScoreEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, stats.ScoreEntry{StudentID: row.StudentID, Score: row.Score})
	}
	totals := stats.TotalRanking(entries)
	for _, total := range totals {
		if total.StudentID == studentID {
			return total.Rank, len(totals), true
		}
	}
	return 0, len(totals), false
}

func metricPoint(examID string, value float64) models.HistoricalMetricPoint {
	v := value
	return models.HistoricalMetricPoint{ExamID: examID, Value: &v}
}

func toDistribution(buckets []stats.Bucket) []models.DistributionBucket {
	result := make([]models.DistributionBucket, 0, len(buckets))
	for _, bucket := range buckets {
		result = append(result, models.DistributionBucket{Label: bucket.Label, Count: bucket.Count})
	}
	return result
}

func toLevelBandCounts(bands stats.LevelBands) models.LevelBandCounts {
	return models.LevelBandCounts{Excellent: bands.Excellent, Good: bands.Good, Pass: bands.Pass, Fail: bands.Fail}
}

func examIDsOf(exams []models.Exam) []string {
	ids := make([]string, 0, len(exams))
	for _, exam := range exams {
		ids = append(ids, exam.ID)
	}
	return ids
}

// makeAnalyticsCacheKey joins the parts into a key. Empty parts keep their
// segment so every part stays positionally unambiguous.
func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}
