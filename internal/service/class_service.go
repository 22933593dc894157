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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	FindByCode(ctx context.Context, code string) (*models.Class, error)
	FindByHeadteacher(ctx context.Context, teacherID string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	AddTeacher(ctx context.Context, classID, teacherID string) error
	RemoveTeacher(ctx context.Context, classID, teacherID string) error
	ListTeachers(ctx context.Context, classID string) ([]models.ClassTeacherDetail, error)
	IsTeacherAssigned(ctx context.Context, classID, teacherID string) (bool, error)
}

type classGradeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Grade, error)
}

type classTeacherRepository interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type classStudentRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
}

// ClassService handles class and teacher-assignment use-cases.
type ClassService struct {
	repo      classRepository
	grades    classGradeRepository
	teachers  classTeacherRepository
	students  classStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, grades classGradeRepository, teachers classTeacherRepository, students classStudentRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, grades: grades, teachers: teachers, students: students, validator: validate, logger: logger}
}

// List returns classes matching the filter with the total count.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, total, nil
}

// Get returns one class with joined display fields.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Students returns the class roster ordered by student code.
func (s *ClassService) Students(ctx context.Context, id string) ([]models.Student, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	students, err := s.students.ListByClass(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class students")
	}
	return students, nil
}

// Create registers a new class under an existing grade level.
func (s *ClassService) Create(ctx context.Context, req models.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if _, err := s.grades.FindByID(ctx, req.GradeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validationf("grade %s does not exist", req.GradeID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate grade")
	}
	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class code already used")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class code")
	}
	if req.HeadteacherID != nil {
		if err := s.checkHeadteacher(ctx, *req.HeadteacherID, ""); err != nil {
			return nil, err
		}
	}

	capacity := req.Capacity
	if capacity <= 0 {
		capacity = 50
	}
	class := &models.Class{
		Name:          req.Name,
		Code:          req.Code,
		Capacity:      capacity,
		GradeID:       req.GradeID,
		HeadteacherID: req.HeadteacherID,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update applies partial changes to a class.
func (s *ClassService) Update(ctx context.Context, id string, req models.UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if req.Code != nil && *req.Code != class.Code {
		if existing, err := s.repo.FindByCode(ctx, *req.Code); err == nil && existing.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, "class code already used")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class code")
		}
		class.Code = *req.Code
	}
	if req.GradeID != nil && *req.GradeID != class.GradeID {
		if _, err := s.grades.FindByID(ctx, *req.GradeID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Validationf("grade %s does not exist", *req.GradeID)
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate grade")
		}
		class.GradeID = *req.GradeID
	}
	if req.HeadteacherID != nil {
		if err := s.checkHeadteacher(ctx, *req.HeadteacherID, id); err != nil {
			return nil, err
		}
		class.HeadteacherID = req.HeadteacherID
	}
	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Capacity != nil {
		class.Capacity = *req.Capacity
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class that has no students enrolled.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if detail.StudentCount > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class still has students enrolled")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

// Teachers returns the subject teachers assigned to the class.
func (s *ClassService) Teachers(ctx context.Context, id string) ([]models.ClassTeacherDetail, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	teachers, err := s.repo.ListTeachers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class teachers")
	}
	return teachers, nil
}

// AssignTeacher attaches a subject teacher to the class.
func (s *ClassService) AssignTeacher(ctx context.Context, classID, teacherID string) error {
	if _, err := s.repo.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	assigned, err := s.repo.IsTeacherAssigned(ctx, classID, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if assigned {
		return appErrors.Clone(appErrors.ErrConflict, "teacher already assigned to class")
	}
	if err := s.repo.AddTeacher(ctx, classID, teacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign teacher")
	}
	return nil
}

// UnassignTeacher detaches a subject teacher from the class.
func (s *ClassService) UnassignTeacher(ctx context.Context, classID, teacherID string) error {
	assigned, err := s.repo.IsTeacherAssigned(ctx, classID, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if !assigned {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not assigned to class")
	}
	if err := s.repo.RemoveTeacher(ctx, classID, teacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign teacher")
	}
	return nil
}

// checkHeadteacher verifies the teacher exists and does not already head
// another class. excludeClassID allows re-assigning the current class.
func (s *ClassService) checkHeadteacher(ctx context.Context, teacherID, excludeClassID string) error {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Validationf("teacher %s does not exist", teacherID)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate headteacher")
	}
	existing, err := s.repo.FindByHeadteacher(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate headteacher")
	}
	if existing.ID != excludeClassID {
		return appErrors.Clone(appErrors.ErrConflict, "teacher already heads another class")
	}
	return nil
}
