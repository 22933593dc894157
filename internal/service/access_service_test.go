package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type mockAccessStudents struct {
	byID     map[string]*models.Student
	byUserID map[string]*models.Student
}

func (m *mockAccessStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccessStudents) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	if s, ok := m.byUserID[userID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockAccessTeachers struct {
	byUserID map[string]*models.Teacher
}

func (m *mockAccessTeachers) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	if t, ok := m.byUserID[userID]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

type mockAccessClasses struct {
	byID        map[string]*models.Class
	assignments map[string]bool
}

func (m *mockAccessClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.byID[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccessClasses) FindByHeadteacher(ctx context.Context, teacherID string) (*models.Class, error) {
	for _, c := range m.byID {
		if c.HeadteacherID != nil && *c.HeadteacherID == teacherID {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccessClasses) IsTeacherAssigned(ctx context.Context, classID, teacherID string) (bool, error) {
	return m.assignments[classID+"/"+teacherID], nil
}

func newTestAccessService() (*AccessService, *mockAccessStudents, *mockAccessTeachers, *mockAccessClasses) {
	headteacherID := "t-head"
	students := &mockAccessStudents{
		byID: map[string]*models.Student{
			"s1": {ID: "s1", UserID: "user-s1", ClassID: "c1"},
			"s2": {ID: "s2", UserID: "user-s2", ClassID: "c2"},
		},
		byUserID: map[string]*models.Student{
			"user-s1": {ID: "s1", UserID: "user-s1", ClassID: "c1"},
			"user-s2": {ID: "s2", UserID: "user-s2", ClassID: "c2"},
		},
	}
	teachers := &mockAccessTeachers{byUserID: map[string]*models.Teacher{
		"user-t1":   {ID: "t1", UserID: "user-t1", SubjectID: "math"},
		"user-head": {ID: headteacherID, UserID: "user-head", SubjectID: "english"},
	}}
	classes := &mockAccessClasses{
		byID: map[string]*models.Class{
			"c1": {ID: "c1", GradeID: "g1", HeadteacherID: &headteacherID},
			"c2": {ID: "c2", GradeID: "g1"},
		},
		assignments: map[string]bool{"c1/t1": true},
	}
	return NewAccessService(students, teachers, classes), students, teachers, classes
}

func TestAccessClassAdminAlwaysAllowed(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	require.NoError(t, svc.CanAccessClass(context.Background(), "anyone", models.RoleAdmin, "c1"))
}

func TestAccessClassMissingIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	err := svc.CanAccessClass(context.Background(), "user-s1", models.RoleStudent, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAccessClassStudentOwnClassOnly(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	require.NoError(t, svc.CanAccessClass(context.Background(), "user-s1", models.RoleStudent, "c1"))

	err := svc.CanAccessClass(context.Background(), "user-s1", models.RoleStudent, "c2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAccessClassTeacherAssignment(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	require.NoError(t, svc.CanAccessClass(context.Background(), "user-t1", models.RoleTeacher, "c1"))

	err := svc.CanAccessClass(context.Background(), "user-t1", models.RoleTeacher, "c2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAccessClassHeadteacherOfClass(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	require.NoError(t, svc.CanAccessClass(context.Background(), "user-head", models.RoleHeadteacher, "c1"))
}

func TestAccessStudentSelfOnly(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	require.NoError(t, svc.CanAccessStudent(context.Background(), "user-s1", models.RoleStudent, "s1"))

	err := svc.CanAccessStudent(context.Background(), "user-s1", models.RoleStudent, "s2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAccessScoreSubjectTeacherScope(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	mathScore := &models.Score{ID: "sc1", StudentID: "s1", SubjectID: "math", ExamID: "e1"}
	englishScore := &models.Score{ID: "sc2", StudentID: "s1", SubjectID: "english", ExamID: "e1"}

	require.NoError(t, svc.CanAccessScore(context.Background(), "user-t1", models.RoleTeacher, mathScore))

	err := svc.CanAccessScore(context.Background(), "user-t1", models.RoleTeacher, englishScore)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAccessScoreHeadteacherSeesAllSubjects(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	mathScore := &models.Score{ID: "sc1", StudentID: "s1", SubjectID: "math", ExamID: "e1"}
	require.NoError(t, svc.CanAccessScore(context.Background(), "user-head", models.RoleHeadteacher, mathScore))
}

func TestAccessScoreStudentOwnsScore(t *testing.T) {
	svc, _, _, _ := newTestAccessService()
	own := &models.Score{ID: "sc1", StudentID: "s1", SubjectID: "math"}
	other := &models.Score{ID: "sc2", StudentID: "s2", SubjectID: "math"}

	require.NoError(t, svc.CanAccessScore(context.Background(), "user-s1", models.RoleStudent, own))

	err := svc.CanAccessScore(context.Background(), "user-s1", models.RoleStudent, other)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
