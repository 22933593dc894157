package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.ExamDetail, error)
	FindInGroupBySubject(ctx context.Context, groupID, subjectID string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
}

type examSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// ExamService handles exam scheduling use-cases. Exams of one combined
// sitting share a group id; one subject appears at most once per group.
type ExamService struct {
	repo      examRepository
	subjects  examSubjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs the exam service.
func NewExamService(repo examRepository, subjects examSubjectRepository, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, subjects: subjects, validator: validate, logger: logger}
}

// List returns exams matching the filter with the total count.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, int, error) {
	exams, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, total, nil
}

// Get returns one exam by id.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// Group returns every subject exam of one combined sitting.
func (s *ExamService) Group(ctx context.Context, groupID string) ([]models.ExamDetail, error) {
	exams, err := s.repo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam group")
	}
	if len(exams) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam group not found")
	}
	return exams, nil
}

// Create schedules a new exam. When no group id is supplied a fresh one is
// minted so the exam can later be joined by sibling subjects.
func (s *ExamService) Create(ctx context.Context, req models.CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validationf("subject %s does not exist", req.SubjectID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate subject")
	}

	groupID := req.GroupID
	if groupID == nil {
		minted := uuid.NewString()
		groupID = &minted
	} else {
		if _, err := s.repo.FindInGroupBySubject(ctx, *groupID, req.SubjectID); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "subject already has an exam in this group")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate exam group")
		}
	}

	totalScore := req.TotalScore
	if totalScore <= 0 {
		totalScore = 100
	}
	exam := &models.Exam{
		Name:        req.Name,
		Description: req.Description,
		ExamDate:    req.ExamDate,
		TotalScore:  totalScore,
		SubjectID:   req.SubjectID,
		GroupID:     groupID,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// Update applies partial changes to an exam.
func (s *ExamService) Update(ctx context.Context, id string, req models.UpdateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	if req.GroupID != nil {
		if existing, err := s.repo.FindInGroupBySubject(ctx, *req.GroupID, exam.SubjectID); err == nil && existing.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, "subject already has an exam in this group")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate exam group")
		}
		exam.GroupID = req.GroupID
	}
	if req.Name != nil {
		exam.Name = *req.Name
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.ExamDate != nil {
		exam.ExamDate = *req.ExamDate
	}
	if req.TotalScore != nil {
		exam.TotalScore = *req.TotalScore
	}

	if err := s.repo.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return exam, nil
}

// Delete removes an exam.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	return nil
}
