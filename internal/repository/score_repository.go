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

// ScoreRepository provides database access for scores, including the flat
// cohort queries analytics run and the bulk import upsert path.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository creates a new instance of ScoreRepository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

const scoreColumns = `id, student_id, subject_id, exam_id, score, ranking, comments, created_at, updated_at`

// FindByID returns a score by identifier.
func (r *ScoreRepository) FindByID(ctx context.Context, id string) (*models.Score, error) {
	query := fmt.Sprintf(`SELECT %s FROM scores WHERE id = $1 LIMIT 1`, scoreColumns)
	var score models.Score
	if err := r.db.GetContext(ctx, &score, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find score by id: %w", err)
	}
	return &score, nil
}

// FindByTriple returns the score for a (student, subject, exam) triple.
func (r *ScoreRepository) FindByTriple(ctx context.Context, studentID, subjectID, examID string) (*models.Score, error) {
	query := fmt.Sprintf(`SELECT %s FROM scores WHERE student_id = $1 AND subject_id = $2 AND exam_id = $3 LIMIT 1`, scoreColumns)
	var score models.Score
	if err := r.db.GetContext(ctx, &score, query, studentID, subjectID, examID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find score by triple: %w", err)
	}
	return &score, nil
}

// List returns score details with total count.
func (r *ScoreRepository) List(ctx context.Context, filter models.ScoreFilter) ([]models.ScoreDetail, int, error) {
	baseQuery := `
		FROM scores sc
		JOIN students st ON st.id = sc.student_id
		JOIN subjects su ON su.id = sc.subject_id
		JOIN exams e ON e.id = sc.exam_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.ExamID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.exam_id = $%d", len(args)+1))
		args = append(args, filter.ExamID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("st.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`
		SELECT sc.id, sc.student_id, sc.subject_id, sc.exam_id, sc.score, sc.ranking, sc.comments, sc.created_at, sc.updated_at,
		       st.name AS student_name, st.student_code,
		       su.name AS subject_name,
		       e.name AS exam_name, e.exam_date, e.total_score
		%s ORDER BY e.exam_date DESC, st.student_code ASC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var scores []models.ScoreDetail
	if err := r.db.SelectContext(ctx, &scores, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list scores: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", baseQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count scores: %w", err)
	}
	return scores, total, nil
}

// ListCohort returns the flat score rows matching the cohort filter, ordered
// by exam date then student code.
func (r *ScoreRepository) ListCohort(ctx context.Context, filter models.CohortFilter) ([]models.CohortScoreRow, error) {
	query := `
		SELECT sc.student_id, st.name AS student_name, st.student_code, st.class_id,
		       sc.subject_id, su.name AS subject_name,
		       sc.exam_id, e.name AS exam_name, e.exam_date, e.total_score,
		       sc.score
		FROM scores sc
		JOIN students st ON st.id = sc.student_id
		JOIN classes c ON c.id = st.class_id
		JOIN subjects su ON su.id = sc.subject_id
		JOIN exams e ON e.id = sc.exam_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("st.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if len(filter.ClassIDs) > 0 {
		placeholders := make([]string, len(filter.ClassIDs))
		for i, id := range filter.ClassIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("st.class_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.GradeID != "" {
		conditions = append(conditions, fmt.Sprintf("c.grade_id = $%d", len(args)+1))
		args = append(args, filter.GradeID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.ExamID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.exam_id = $%d", len(args)+1))
		args = append(args, filter.ExamID)
	}
	if len(filter.ExamIDs) > 0 {
		placeholders := make([]string, len(filter.ExamIDs))
		for i, id := range filter.ExamIDs {
			placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, id)
		}
		conditions = append(conditions, fmt.Sprintf("sc.exam_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.exam_date ASC, st.student_code ASC"

	var rows []models.CohortScoreRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list cohort scores: %w", err)
	}
	return rows, nil
}

// Roster returns the class roster used to detect students without scores.
func (r *ScoreRepository) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	const query = `
		SELECT s.id AS student_id, s.name AS student_name, s.student_code, s.class_id
		FROM students s
		WHERE s.class_id = $1
		ORDER BY s.student_code ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("load class roster: %w", err)
	}
	return roster, nil
}

// Create inserts a new score.
func (r *ScoreRepository) Create(ctx context.Context, score *models.Score) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	score.CreatedAt = now
	score.UpdatedAt = now

	const query = `INSERT INTO scores (id, student_id, subject_id, exam_id, score, ranking, comments, created_at, updated_at) VALUES (:id, :student_id, :subject_id, :exam_id, :score, :ranking, :comments, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		return fmt.Errorf("create score: %w", err)
	}
	return nil
}

// Update updates mutable fields of a score.
func (r *ScoreRepository) Update(ctx context.Context, score *models.Score) error {
	score.UpdatedAt = time.Now().UTC()
	const query = `UPDATE scores SET score = :score, ranking = :ranking, comments = :comments, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return nil
}

// Delete removes a score.
func (r *ScoreRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM scores WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete score: %w", err)
	}
	return nil
}

// BulkUpsert writes all validated import rows and refreshes the cached
// rankings of the touched exam+subject cohort in one transaction.
func (r *ScoreRepository) BulkUpsert(ctx context.Context, rows []models.ScoreUpsert, examID, subjectID string) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const upsert = `
		INSERT INTO scores (id, student_id, subject_id, exam_id, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (student_id, subject_id, exam_id)
		DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, upsert, uuid.NewString(), row.StudentID, row.SubjectID, row.ExamID, row.Score, now); err != nil {
			return fmt.Errorf("upsert score: %w", err)
		}
	}

	// RANK() matches the competition ranking used by analytics.
	const rerank = `
		UPDATE scores SET ranking = ranked.rnk, updated_at = $3
		FROM (
			SELECT id, RANK() OVER (ORDER BY score DESC) AS rnk
			FROM scores
			WHERE exam_id = $1 AND subject_id = $2
		) ranked
		WHERE scores.id = ranked.id`
	if _, err := tx.ExecContext(ctx, rerank, examID, subjectID, now); err != nil {
		return fmt.Errorf("recompute rankings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import tx: %w", err)
	}
	return nil
}
