package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

// ClassRepository provides database access for classes and their teacher
// assignments.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new instance of ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = `id, name, code, capacity, grade_id, headteacher_id, created_at, updated_at`

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// FindDetailByID returns a class with joined grade and headteacher info.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `
		SELECT c.id, c.name, c.code, c.capacity, c.grade_id, c.headteacher_id, c.created_at, c.updated_at,
		       g.name AS grade_name,
		       t.name AS headteacher_name,
		       (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id) AS student_count
		FROM classes c
		JOIN grades g ON g.id = c.grade_id
		LEFT JOIN teachers t ON t.id = c.headteacher_id
		WHERE c.id = $1 LIMIT 1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class detail: %w", err)
	}
	return &detail, nil
}

// FindByCode returns a class by its unique code.
func (r *ClassRepository) FindByCode(ctx context.Context, code string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE code = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by code: %w", err)
	}
	return &class, nil
}

// FindByHeadteacher returns the class headed by the given teacher, if any.
func (r *ClassRepository) FindByHeadteacher(ctx context.Context, teacherID string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE headteacher_id = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by headteacher: %w", err)
	}
	return &class, nil
}

// ListByGrade returns all classes of a grade level ordered by code.
func (r *ClassRepository) ListByGrade(ctx context.Context, gradeID string) ([]models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE grade_id = $1 ORDER BY code ASC`, classColumns)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, gradeID); err != nil {
		return nil, fmt.Errorf("list classes by grade: %w", err)
	}
	return classes, nil
}

// List returns classes with joined display fields and total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	baseQuery := `
		FROM classes c
		JOIN grades g ON g.id = c.grade_id
		LEFT JOIN teachers t ON t.id = c.headteacher_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.GradeID != "" {
		conditions = append(conditions, fmt.Sprintf("c.grade_id = $%d", len(args)+1))
		args = append(args, filter.GradeID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`
		SELECT c.id, c.name, c.code, c.capacity, c.grade_id, c.headteacher_id, c.created_at, c.updated_at,
		       g.name AS grade_name,
		       t.name AS headteacher_name,
		       (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id) AS student_count
		%s ORDER BY g.name ASC, c.code ASC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", baseQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, code, capacity, grade_id, headteacher_id, created_at, updated_at) VALUES (:id, :name, :code, :capacity, :grade_id, :headteacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update updates mutable fields of a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, code = :code, capacity = :capacity, grade_id = :grade_id, headteacher_id = :headteacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// AddTeacher assigns a subject teacher to a class.
func (r *ClassRepository) AddTeacher(ctx context.Context, classID, teacherID string) error {
	const query = `INSERT INTO class_teachers (class_id, teacher_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, classID, teacherID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add class teacher: %w", err)
	}
	return nil
}

// RemoveTeacher unassigns a subject teacher from a class.
func (r *ClassRepository) RemoveTeacher(ctx context.Context, classID, teacherID string) error {
	const query = `DELETE FROM class_teachers WHERE class_id = $1 AND teacher_id = $2`
	if _, err := r.db.ExecContext(ctx, query, classID, teacherID); err != nil {
		return fmt.Errorf("remove class teacher: %w", err)
	}
	return nil
}

// ListTeachers returns the subject teachers assigned to a class.
func (r *ClassRepository) ListTeachers(ctx context.Context, classID string) ([]models.ClassTeacherDetail, error) {
	const query = `
		SELECT ct.class_id, ct.teacher_id, t.name AS teacher_name, t.teacher_code,
		       t.subject_id, s.name AS subject_name
		FROM class_teachers ct
		JOIN teachers t ON t.id = ct.teacher_id
		JOIN subjects s ON s.id = t.subject_id
		WHERE ct.class_id = $1
		ORDER BY s.name ASC`
	var teachers []models.ClassTeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query, classID); err != nil {
		return nil, fmt.Errorf("list class teachers: %w", err)
	}
	return teachers, nil
}

// IsTeacherAssigned reports whether the teacher teaches the class.
func (r *ClassRepository) IsTeacherAssigned(ctx context.Context, classID, teacherID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM class_teachers WHERE class_id = $1 AND teacher_id = $2)`
	var assigned bool
	if err := r.db.GetContext(ctx, &assigned, query, classID, teacherID); err != nil {
		return false, fmt.Errorf("check teacher assignment: %w", err)
	}
	return assigned, nil
}
