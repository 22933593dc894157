package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/excel"
)

type rosterClassRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type rosterStudentRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

type rosterUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// RosterImportInput carries one uploaded roster sheet.
type RosterImportInput struct {
	ClassID string
	Reader  io.Reader
	Size    int64
}

// RosterService imports and exports class rosters as workbooks. Imported
// students get a login account provisioned from their student code.
type RosterService struct {
	classes  rosterClassRepository
	students rosterStudentRepository
	users    rosterUserRepository
	maxBytes int64
	maxRows  int
	logger   *zap.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(classes rosterClassRepository, students rosterStudentRepository, users rosterUserRepository, maxBytes int64, maxRows int, logger *zap.Logger) *RosterService {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if maxRows <= 0 {
		maxRows = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{classes: classes, students: students, users: users, maxBytes: maxBytes, maxRows: maxRows, logger: logger}
}

var rosterHeaders = []string{"Student Code", "Student Name", "Gender", "Birth Date", "Parent Name", "Parent Phone"}

// Template renders a downloadable roster sheet with the expected columns.
func (s *RosterService) Template() ([]byte, error) {
	data, err := excel.Render(excel.Sheet{
		Name:    "Roster",
		Title:   "Class Roster Template",
		Headers: rosterHeaders,
		Rows:    [][]string{{"S001", "Example Student", "female", "2010-04-21", "Example Parent", "555-0100"}},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	return data, nil
}

// Export renders the class roster as a workbook.
func (s *RosterService) Export(ctx context.Context, classID string) (string, []byte, error) {
	class, err := s.classes.FindDetailByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	students, err := s.students.ListByClass(ctx, classID)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	rows := make([][]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, []string{
			st.StudentCode,
			st.Name,
			derefString(st.Gender),
			formatDate(st.BirthDate),
			derefString(st.ParentName),
			derefString(st.ParentPhone),
		})
	}

	data, err := excel.Render(excel.Sheet{
		Name:    "Roster",
		Title:   fmt.Sprintf("%s Roster", class.Name),
		Headers: rosterHeaders,
		Rows:    rows,
	})
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return fmt.Sprintf("roster_%s.xlsx", class.ID), data, nil
}

// Import parses the uploaded roster. Unknown student codes are enrolled with
// a freshly provisioned student account, known codes in the class get their
// details refreshed, and rejected rows come back as row-level errors.
func (s *RosterService) Import(ctx context.Context, input RosterImportInput) (*models.RosterImportResult, error) {
	if input.Size > s.maxBytes {
		return nil, appErrors.Validationf("file exceeds the %d byte limit", s.maxBytes)
	}
	if _, err := s.classes.FindDetailByID(ctx, input.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	rows, err := excel.ReadRows(input.Reader)
	if err != nil {
		return nil, appErrors.Validationf("unreadable workbook: %v", err)
	}
	if len(rows) > s.maxRows {
		return nil, appErrors.Validationf("sheet exceeds the %d row limit", s.maxRows)
	}

	headerIdx, columns, err := locateRosterHeader(rows)
	if err != nil {
		return nil, err
	}

	result := &models.RosterImportResult{ErrorDetails: []models.RosterImportRowError{}}
	seen := make(map[string]bool)

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		rowNum := i + 1

		code := cellAt(row, columns.code)
		name := cellAt(row, columns.name)
		if code == "" && name == "" {
			continue
		}
		if code == "" || name == "" {
			result.ErrorDetails = append(result.ErrorDetails, rosterRowError(rowNum, code, "student code and name are required"))
			continue
		}
		if seen[code] {
			result.ErrorDetails = append(result.ErrorDetails, rosterRowError(rowNum, code, "duplicate student code"))
			continue
		}
		seen[code] = true

		gender, ok := parseGender(cellAt(row, columns.gender))
		if !ok {
			result.ErrorDetails = append(result.ErrorDetails, rosterRowError(rowNum, code, "gender must be male or female"))
			continue
		}
		birthDate, ok := parseDate(cellAt(row, columns.birthDate))
		if !ok {
			result.ErrorDetails = append(result.ErrorDetails, rosterRowError(rowNum, code, "birth date must be YYYY-MM-DD"))
			continue
		}
		parentName := optionalString(cellAt(row, columns.parentName))
		parentPhone := optionalString(cellAt(row, columns.parentPhone))

		existing, err := s.students.FindByCode(ctx, code)
		switch {
		case err == nil:
			if existing.ClassID != input.ClassID {
				result.ErrorDetails = append(result.ErrorDetails, rosterRowError(rowNum, code, "student is enrolled in another class"))
				continue
			}
			existing.Name = name
			existing.Gender = gender
			existing.BirthDate = birthDate
			existing.ParentName = parentName
			existing.ParentPhone = parentPhone
			if err := s.students.Update(ctx, existing); err != nil {
				result.ErrorDetails = append(result.ErrorDetails, rosterRowError(rowNum, code, "failed to update student"))
				continue
			}
			result.UpdatedCount++
		case errors.Is(err, sql.ErrNoRows):
			if err := s.enroll(ctx, input.ClassID, code, name, gender, birthDate, parentName, parentPhone); err != nil {
				result.ErrorDetails = append(result.ErrorDetails, rosterRowError(rowNum, code, err.Error()))
				continue
			}
			result.CreatedCount++
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up student")
		}
	}

	result.ErrorCount = len(result.ErrorDetails)
	s.logger.Info("roster import finished",
		zap.String("class_id", input.ClassID),
		zap.Int("created", result.CreatedCount),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("rejected", result.ErrorCount))
	return result, nil
}

// enroll provisions a student account and the student row. The student code
// doubles as the initial username and password.
func (s *RosterService) enroll(ctx context.Context, classID, code, name string, gender *string, birthDate *time.Time, parentName, parentPhone *string) error {
	if _, err := s.users.FindByUsername(ctx, code); err == nil {
		return fmt.Errorf("username %s is already taken", code)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check username")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to provision account")
	}
	user := &models.User{
		Username:     code,
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		FullName:     &name,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create account")
	}

	student := &models.Student{
		Name:        name,
		StudentCode: code,
		Gender:      gender,
		BirthDate:   birthDate,
		ParentName:  parentName,
		ParentPhone: parentPhone,
		UserID:      user.ID,
		ClassID:     classID,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return fmt.Errorf("failed to create student")
	}
	return nil
}

type rosterColumnIndexes struct {
	code        int
	name        int
	gender      int
	birthDate   int
	parentName  int
	parentPhone int
}

func locateRosterHeader(rows [][]string) (int, rosterColumnIndexes, error) {
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		cols := rosterColumnIndexes{code: -1, name: -1, gender: -1, birthDate: -1, parentName: -1, parentPhone: -1}
		for j, cell := range rows[i] {
			switch normalizeHeader(cell) {
			case "studentcode", "code":
				cols.code = j
			case "studentname", "name":
				cols.name = j
			case "gender":
				cols.gender = j
			case "birthdate":
				cols.birthDate = j
			case "parentname":
				cols.parentName = j
			case "parentphone":
				cols.parentPhone = j
			}
		}
		if cols.code >= 0 && cols.name >= 0 {
			return i, cols, nil
		}
	}
	return 0, rosterColumnIndexes{}, appErrors.Validationf("sheet must carry student code and name columns")
}

func parseGender(raw string) (*string, bool) {
	if raw == "" {
		return nil, true
	}
	g := strings.ToLower(raw)
	if g != "male" && g != "female" {
		return nil, false
	}
	return &g, true
}

func parseDate(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rosterRowError(row int, code, message string) models.RosterImportRowError {
	return models.RosterImportRowError{Row: row, Code: code, Message: message}
}
