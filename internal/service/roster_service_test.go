package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/excel"
)

type mockRosterClasses struct{ classes map[string]*models.ClassDetail }

func (m *mockRosterClasses) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockRosterStudents struct {
	byCode  map[string]*models.Student
	byClass map[string][]models.Student
	created []*models.Student
	updated []*models.Student
}

func (m *mockRosterStudents) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	return m.byClass[classID], nil
}

func (m *mockRosterStudents) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	if s, ok := m.byCode[code]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterStudents) Create(ctx context.Context, student *models.Student) error {
	student.ID = "student-" + student.StudentCode
	m.created = append(m.created, student)
	return nil
}

func (m *mockRosterStudents) Update(ctx context.Context, student *models.Student) error {
	m.updated = append(m.updated, student)
	return nil
}

type mockRosterUsers struct {
	byUsername map[string]*models.User
	created    []*models.User
}

func (m *mockRosterUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.byUsername[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterUsers) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-" + user.Username
	m.created = append(m.created, user)
	return nil
}

func renderRosterSheet(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()
	data, err := excel.Render(excel.Sheet{Name: "Roster", Title: "Roster", Headers: rosterHeaders, Rows: rows})
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func newRosterFixture() (*RosterService, *mockRosterStudents, *mockRosterUsers) {
	classes := &mockRosterClasses{classes: map[string]*models.ClassDetail{
		"c1": {Class: models.Class{ID: "c1", Name: "Class 1A", GradeID: "g1"}},
	}}
	students := &mockRosterStudents{
		byCode: map[string]*models.Student{
			"S001": {ID: "s1", Name: "Alice", StudentCode: "S001", ClassID: "c1"},
			"S777": {ID: "s7", Name: "Grace", StudentCode: "S777", ClassID: "c2"},
		},
		byClass: map[string][]models.Student{
			"c1": {{ID: "s1", Name: "Alice", StudentCode: "S001", ClassID: "c1"}},
		},
	}
	users := &mockRosterUsers{byUsername: map[string]*models.User{}}
	svc := NewRosterService(classes, students, users, 0, 0, zap.NewNop())
	return svc, students, users
}

func TestRosterImportCreatesAndUpdates(t *testing.T) {
	svc, students, users := newRosterFixture()
	reader := renderRosterSheet(t, [][]string{
		{"S001", "Alice Updated", "female", "2010-04-21", "Parent A", "555-0100"},
		{"S002", "Bob", "male", "", "", ""},
	})

	result, err := svc.Import(context.Background(), RosterImportInput{ClassID: "c1", Reader: reader})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Equal(t, 0, result.ErrorCount)

	require.Len(t, students.updated, 1)
	assert.Equal(t, "Alice Updated", students.updated[0].Name)
	require.NotNil(t, students.updated[0].BirthDate)
	assert.Equal(t, time.Date(2010, 4, 21, 0, 0, 0, 0, time.UTC), *students.updated[0].BirthDate)

	require.Len(t, students.created, 1)
	assert.Equal(t, "S002", students.created[0].StudentCode)
	assert.Equal(t, "c1", students.created[0].ClassID)
	assert.Equal(t, "user-S002", students.created[0].UserID)

	require.Len(t, users.created, 1)
	assert.Equal(t, "S002", users.created[0].Username)
	assert.Equal(t, models.RoleStudent, users.created[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.created[0].PasswordHash), []byte("S002")))
}

func TestRosterImportRowErrors(t *testing.T) {
	svc, students, _ := newRosterFixture()
	reader := renderRosterSheet(t, [][]string{
		{"S777", "Grace", "", "", "", ""},
		{"S003", "", "", "", "", ""},
		{"S004", "Dana", "other", "", "", ""},
		{"S005", "Eve", "", "21/04/2010", "", ""},
		{"S001", "Alice", "", "", "", ""},
		{"S001", "Alice", "", "", "", ""},
	})

	result, err := svc.Import(context.Background(), RosterImportInput{ClassID: "c1", Reader: reader})
	require.NoError(t, err)
	assert.Equal(t, 0, result.CreatedCount)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Equal(t, 5, result.ErrorCount)
	assert.Empty(t, students.created)

	messages := make([]string, 0, len(result.ErrorDetails))
	for _, detail := range result.ErrorDetails {
		messages = append(messages, detail.Message)
	}
	assert.Contains(t, messages, "student is enrolled in another class")
	assert.Contains(t, messages, "gender must be male or female")
	assert.Contains(t, messages, "birth date must be YYYY-MM-DD")
	assert.Contains(t, messages, "duplicate student code")
}

func TestRosterImportTakenUsername(t *testing.T) {
	svc, students, users := newRosterFixture()
	users.byUsername["S002"] = &models.User{ID: "u2", Username: "S002"}
	reader := renderRosterSheet(t, [][]string{
		{"S002", "Bob", "", "", "", ""},
	})

	result, err := svc.Import(context.Background(), RosterImportInput{ClassID: "c1", Reader: reader})
	require.NoError(t, err)
	assert.Equal(t, 0, result.CreatedCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Empty(t, students.created)
}

func TestRosterImportUnknownClass(t *testing.T) {
	svc, _, _ := newRosterFixture()
	reader := renderRosterSheet(t, [][]string{{"S001", "Alice", "", "", "", ""}})

	_, err := svc.Import(context.Background(), RosterImportInput{ClassID: "missing", Reader: reader})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterExportRendersRoster(t *testing.T) {
	svc, _, _ := newRosterFixture()

	filename, data, err := svc.Export(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "roster_c1.xlsx", filename)

	rows, err := excel.ReadRows(bytes.NewReader(data))
	require.NoError(t, err)
	headerIdx, cols, err := locateRosterHeader(rows)
	require.NoError(t, err)
	require.Greater(t, len(rows), headerIdx+1)
	assert.Equal(t, "S001", cellAt(rows[headerIdx+1], cols.code))
	assert.Equal(t, "Alice", cellAt(rows[headerIdx+1], cols.name))
}

func TestRosterTemplateRoundTrips(t *testing.T) {
	svc, _, _ := newRosterFixture()
	data, err := svc.Template()
	require.NoError(t, err)

	rows, err := excel.ReadRows(bytes.NewReader(data))
	require.NoError(t, err)
	_, cols, err := locateRosterHeader(rows)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cols.code, 0)
	assert.GreaterOrEqual(t, cols.birthDate, 0)
}
