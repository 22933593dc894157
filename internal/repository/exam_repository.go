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

// ExamRepository provides database access for exams and exam groups.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new instance of ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

const examColumns = `id, name, description, exam_date, total_score, subject_id, group_id, created_at, updated_at`

// FindByID returns an exam by identifier.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := fmt.Sprintf(`SELECT %s FROM exams WHERE id = $1 LIMIT 1`, examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam by id: %w", err)
	}
	return &exam, nil
}

// ListByGroup returns all exams of a shared sitting ordered by subject.
func (r *ExamRepository) ListByGroup(ctx context.Context, groupID string) ([]models.ExamDetail, error) {
	const query = `
		SELECT e.id, e.name, e.description, e.exam_date, e.total_score, e.subject_id, e.group_id, e.created_at, e.updated_at,
		       s.name AS subject_name
		FROM exams e
		JOIN subjects s ON s.id = e.subject_id
		WHERE e.group_id = $1
		ORDER BY s.name ASC`
	var exams []models.ExamDetail
	if err := r.db.SelectContext(ctx, &exams, query, groupID); err != nil {
		return nil, fmt.Errorf("list exams by group: %w", err)
	}
	return exams, nil
}

// FindInGroupBySubject returns the per-subject exam of a sitting, if present.
func (r *ExamRepository) FindInGroupBySubject(ctx context.Context, groupID, subjectID string) (*models.Exam, error) {
	query := fmt.Sprintf(`SELECT %s FROM exams WHERE group_id = $1 AND subject_id = $2 LIMIT 1`, examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, groupID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam in group: %w", err)
	}
	return &exam, nil
}

// FindPreviousGroupExam returns the latest exam of the same subject dated
// strictly before the given exam. Used to locate the preceding sitting.
func (r *ExamRepository) FindPreviousGroupExam(ctx context.Context, subjectID string, before time.Time) (*models.Exam, error) {
	query := fmt.Sprintf(`SELECT %s FROM exams WHERE subject_id = $1 AND exam_date < $2 ORDER BY exam_date DESC LIMIT 1`, examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, subjectID, before); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find previous exam: %w", err)
	}
	return &exam, nil
}

// List returns exams with joined subject names and total count.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.ExamDetail, int, error) {
	baseQuery := `
		FROM exams e
		JOIN subjects s ON s.id = e.subject_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("e.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.GroupID != "" {
		conditions = append(conditions, fmt.Sprintf("e.group_id = $%d", len(args)+1))
		args = append(args, filter.GroupID)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("e.exam_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("e.exam_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(e.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`
		SELECT e.id, e.name, e.description, e.exam_date, e.total_score, e.subject_id, e.group_id, e.created_at, e.updated_at,
		       s.name AS subject_name
		%s ORDER BY e.exam_date DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var exams []models.ExamDetail
	if err := r.db.SelectContext(ctx, &exams, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", baseQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.TotalScore <= 0 {
		exam.TotalScore = 100
	}
	now := time.Now().UTC()
	exam.CreatedAt = now
	exam.UpdatedAt = now

	const query = `INSERT INTO exams (id, name, description, exam_date, total_score, subject_id, group_id, created_at, updated_at) VALUES (:id, :name, :description, :exam_date, :total_score, :subject_id, :group_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update updates mutable fields of an exam.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET name = :name, description = :description, exam_date = :exam_date, total_score = :total_score, group_id = :group_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// Delete removes an exam.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM exams WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}
