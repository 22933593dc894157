package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type scoreRepository interface {
	List(ctx context.Context, filter models.ScoreFilter) ([]models.ScoreDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Score, error)
	FindByTriple(ctx context.Context, studentID, subjectID, examID string) (*models.Score, error)
	Create(ctx context.Context, score *models.Score) error
	Update(ctx context.Context, score *models.Score) error
	Delete(ctx context.Context, id string) error
}

type scoreExamRepository interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

// ScoreService handles single score entry use-cases. Bulk import and export
// live in ScoreImportService and ScoreExportService.
type ScoreService struct {
	repo      scoreRepository
	exams     scoreExamRepository
	students  accessStudentRepository
	teachers  accessTeacherRepository
	classes   accessClassRepository
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScoreService constructs the score service.
func NewScoreService(repo scoreRepository, exams scoreExamRepository, students accessStudentRepository, teachers accessTeacherRepository, classes accessClassRepository, access *AccessService, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{repo: repo, exams: exams, students: students, teachers: teachers, classes: classes, access: access, validator: validate, logger: logger}
}

// List returns scores visible to the caller. Students only see their own
// rows; subject teachers are pinned to their subject; a headteacher with no
// explicit class filter is pinned to the class they head.
func (s *ScoreService) List(ctx context.Context, userID string, role models.UserRole, filter models.ScoreFilter) ([]models.ScoreDetail, int, error) {
	scoped, err := s.scopeFilter(ctx, userID, role, filter)
	if err != nil {
		return nil, 0, err
	}
	scores, total, err := s.repo.List(ctx, scoped)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}
	return scores, total, nil
}

// Get returns one score entry if the caller may see it.
func (s *ScoreService) Get(ctx context.Context, userID string, role models.UserRole, id string) (*models.Score, error) {
	score, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "score not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score")
	}
	if s.access != nil {
		if err := s.access.CanAccessScore(ctx, userID, role, score); err != nil {
			return nil, err
		}
	}
	return score, nil
}

// Create records a single score entry after validating the exam bounds and
// the caller's authority over the student and subject.
func (s *ScoreService) Create(ctx context.Context, userID string, role models.UserRole, req models.CreateScoreRequest) (*models.Score, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	exam, err := s.exams.FindByID(ctx, req.ExamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validationf("exam %s does not exist", req.ExamID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate exam")
	}
	if exam.SubjectID != req.SubjectID {
		return nil, appErrors.Validationf("exam %s is not a %s exam", req.ExamID, req.SubjectID)
	}
	if req.Score < 0 || req.Score > exam.TotalScore {
		return nil, appErrors.Validationf("score must be between 0 and %.1f", exam.TotalScore)
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validationf("student %s does not exist", req.StudentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student")
	}

	candidate := &models.Score{StudentID: req.StudentID, SubjectID: req.SubjectID, ExamID: req.ExamID}
	if s.access != nil && role != models.RoleAdmin {
		if err := s.access.CanAccessScore(ctx, userID, role, candidate); err != nil {
			return nil, err
		}
	}

	if _, err := s.repo.FindByTriple(ctx, req.StudentID, req.SubjectID, req.ExamID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "score already recorded for this exam")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate score")
	}

	score := &models.Score{
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		ExamID:    req.ExamID,
		Score:     req.Score,
		Comments:  req.Comments,
	}
	if err := s.repo.Create(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create score")
	}
	return score, nil
}

// Update applies partial changes to a score entry. The cached ranking is
// left untouched; it refreshes on the next bulk import of the exam.
func (s *ScoreService) Update(ctx context.Context, userID string, role models.UserRole, id string, req models.UpdateScoreRequest) (*models.Score, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	score, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "score not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score")
	}
	if s.access != nil && role != models.RoleAdmin {
		if err := s.access.CanAccessScore(ctx, userID, role, score); err != nil {
			return nil, err
		}
	}

	if req.Score != nil {
		exam, err := s.exams.FindByID(ctx, score.ExamID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
		}
		if *req.Score < 0 || *req.Score > exam.TotalScore {
			return nil, appErrors.Validationf("score must be between 0 and %.1f", exam.TotalScore)
		}
		score.Score = *req.Score
	}
	if req.Comments != nil {
		score.Comments = req.Comments
	}

	if err := s.repo.Update(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update score")
	}
	return score, nil
}

// Delete removes a score entry.
func (s *ScoreService) Delete(ctx context.Context, userID string, role models.UserRole, id string) error {
	score, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "score not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score")
	}
	if s.access != nil && role != models.RoleAdmin {
		if err := s.access.CanAccessScore(ctx, userID, role, score); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete score")
	}
	return nil
}

func (s *ScoreService) scopeFilter(ctx context.Context, userID string, role models.UserRole, filter models.ScoreFilter) (models.ScoreFilter, error) {
	switch role {
	case models.RoleAdmin:
		return filter, nil
	case models.RoleStudent:
		student, err := s.students.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return filter, appErrors.ErrForbidden
			}
			return filter, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scope scores")
		}
		filter.StudentID = student.ID
		return filter, nil
	case models.RoleTeacher, models.RoleHeadteacher:
		teacher, err := s.teachers.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return filter, appErrors.ErrForbidden
			}
			return filter, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scope scores")
		}
		if role == models.RoleHeadteacher {
			headed, err := s.classes.FindByHeadteacher(ctx, teacher.ID)
			if err == nil {
				if filter.ClassID == "" {
					filter.ClassID = headed.ID
				}
				if filter.ClassID == headed.ID {
					return filter, nil
				}
			} else if !errors.Is(err, sql.ErrNoRows) {
				return filter, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scope scores")
			}
		}
		filter.SubjectID = teacher.SubjectID
		return filter, nil
	default:
		return filter, appErrors.ErrForbidden
	}
}
