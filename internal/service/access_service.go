package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type accessStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type accessTeacherRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Teacher, error)
}

type accessClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByHeadteacher(ctx context.Context, teacherID string) (*models.Class, error)
	IsTeacherAssigned(ctx context.Context, classID, teacherID string) (bool, error)
}

// AccessService decides whether a user may read a given student, class or
// score. Admins pass every check; other roles are scoped to their own
// profile, their own class, or the classes they teach.
type AccessService struct {
	students accessStudentRepository
	teachers accessTeacherRepository
	classes  accessClassRepository
}

// NewAccessService creates a new instance of AccessService.
func NewAccessService(students accessStudentRepository, teachers accessTeacherRepository, classes accessClassRepository) *AccessService {
	return &AccessService{students: students, teachers: teachers, classes: classes}
}

// CanAccessClass reports whether the user may view the class. Existence is
// checked before permission so a missing class is a 404, not a 403.
func (s *AccessService) CanAccessClass(ctx context.Context, userID string, role models.UserRole, classID string) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundf("class %s not found", classID)
		}
		return fmt.Errorf("check class access: %w", err)
	}

	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		student, err := s.students.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrForbidden
			}
			return fmt.Errorf("check class access: %w", err)
		}
		if student.ClassID != class.ID {
			return appErrors.ErrForbidden
		}
		return nil
	case models.RoleTeacher, models.RoleHeadteacher:
		teacher, err := s.teachers.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrForbidden
			}
			return fmt.Errorf("check class access: %w", err)
		}
		if class.HeadteacherID != nil && *class.HeadteacherID == teacher.ID {
			return nil
		}
		assigned, err := s.classes.IsTeacherAssigned(ctx, class.ID, teacher.ID)
		if err != nil {
			return fmt.Errorf("check class access: %w", err)
		}
		if !assigned {
			return appErrors.ErrForbidden
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}

// CanAccessStudent reports whether the user may view the student.
func (s *AccessService) CanAccessStudent(ctx context.Context, userID string, role models.UserRole, studentID string) error {
	target, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundf("student %s not found", studentID)
		}
		return fmt.Errorf("check student access: %w", err)
	}

	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		self, err := s.students.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrForbidden
			}
			return fmt.Errorf("check student access: %w", err)
		}
		if self.ID != target.ID {
			return appErrors.ErrForbidden
		}
		return nil
	case models.RoleTeacher, models.RoleHeadteacher:
		return s.CanAccessClass(ctx, userID, role, target.ClassID)
	default:
		return appErrors.ErrForbidden
	}
}

// CanAccessScore reports whether the user may view or modify a score entry.
// Subject teachers are restricted to scores of their own subject; a class
// headteacher may see every subject of the class they head.
func (s *AccessService) CanAccessScore(ctx context.Context, userID string, role models.UserRole, score *models.Score) error {
	if score == nil {
		return appErrors.ErrNotFound
	}

	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		self, err := s.students.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrForbidden
			}
			return fmt.Errorf("check score access: %w", err)
		}
		if self.ID != score.StudentID {
			return appErrors.ErrForbidden
		}
		return nil
	case models.RoleTeacher, models.RoleHeadteacher:
		target, err := s.students.FindByID(ctx, score.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NotFoundf("student %s not found", score.StudentID)
			}
			return fmt.Errorf("check score access: %w", err)
		}
		teacher, err := s.teachers.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrForbidden
			}
			return fmt.Errorf("check score access: %w", err)
		}
		class, err := s.classes.FindByID(ctx, target.ClassID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NotFoundf("class %s not found", target.ClassID)
			}
			return fmt.Errorf("check score access: %w", err)
		}
		if class.HeadteacherID != nil && *class.HeadteacherID == teacher.ID {
			return nil
		}
		if teacher.SubjectID != score.SubjectID {
			return appErrors.ErrForbidden
		}
		assigned, err := s.classes.IsTeacherAssigned(ctx, class.ID, teacher.ID)
		if err != nil {
			return fmt.Errorf("check score access: %w", err)
		}
		if !assigned {
			return appErrors.ErrForbidden
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}
