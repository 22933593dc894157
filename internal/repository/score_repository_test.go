package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
)

func TestFindByTriple(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "exam_id", "score", "ranking", "comments", "created_at", "updated_at"}).
		AddRow("sc1", "st1", "su1", "e1", 92.5, 1, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, subject_id, exam_id, score, ranking, comments, created_at, updated_at FROM scores WHERE student_id = $1 AND subject_id = $2 AND exam_id = $3 LIMIT 1")).
		WithArgs("st1", "su1", "e1").
		WillReturnRows(rows)

	score, err := repo.FindByTriple(context.Background(), "st1", "su1", "e1")
	require.NoError(t, err)
	assert.InDelta(t, 92.5, score.Score, 1e-9)
	require.NotNil(t, score.Ranking)
	assert.Equal(t, 1, *score.Ranking)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCohortFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"student_id", "student_name", "student_code", "class_id",
		"subject_id", "subject_name", "exam_id", "exam_name", "exam_date", "total_score", "score",
	}).AddRow("st1", "Alice", "S001", "c1", "su1", "Math", "e1", "Midterm", now, 100.0, 88.0)

	mock.ExpectQuery("SELECT sc.student_id, st.name AS student_name").
		WithArgs("c1", "e1").
		WillReturnRows(rows)

	cohort, err := repo.ListCohort(context.Background(), models.CohortFilter{ClassID: "c1", ExamID: "e1"})
	require.NoError(t, err)
	require.Len(t, cohort, 1)
	assert.Equal(t, "Alice", cohort[0].StudentName)
	assert.InDelta(t, 88, cohort[0].Score, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertRecomputesRankings(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scores").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scores").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE scores SET ranking = ranked.rnk").
		WithArgs("e1", "su1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	rows := []models.ScoreUpsert{
		{StudentID: "st1", SubjectID: "su1", ExamID: "e1", Score: 90},
		{StudentID: "st2", SubjectID: "su1", ExamID: "e1", Score: 80},
	}
	err := repo.BulkUpsert(context.Background(), rows, "e1", "su1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	err := repo.BulkUpsert(context.Background(), nil, "e1", "su1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
