package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/dto"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type importTeacherRepository interface {
	FindByPhone(ctx context.Context, organizationID, phone string) (*models.Teacher, error)
	ExistsByIDCard(ctx context.Context, idCard, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
}

type importChildRepository interface {
	ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error)
	Create(ctx context.Context, child *models.Child) error
}

type importOrganizationRepository interface {
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, org *models.Organization) error
}

type importClassLookup interface {
	FindByName(ctx context.Context, organizationID, name string) (*models.Class, error)
	ExistsByName(ctx context.Context, organizationID, name, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
}

type importAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ImportService ingests CSV uploads. Teacher imports are all-or-nothing:
// every row is validated up front and nothing is written when any row fails.
// Child and organization imports apply row by row, reporting failures
// alongside the successes.
type ImportService struct {
	teachers importTeacherRepository
	children importChildRepository
	orgs     importOrganizationRepository
	classes  importClassLookup
	audit    importAuditor
	logger   *zap.Logger
}

// NewImportService constructs the import service.
func NewImportService(teachers importTeacherRepository, children importChildRepository, orgs importOrganizationRepository, classes importClassLookup, audit importAuditor, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{teachers: teachers, children: children, orgs: orgs, classes: classes, audit: audit, logger: logger}
}

type teacherImportRow struct {
	row      int
	teacher  models.Teacher
	classIDs []string
	existing *models.Teacher
}

// ImportTeachers reads a CSV of teachers for one organization. Expected
// columns: name, gender, position, phone, id_card, employee_id. A row whose
// phone matches an existing teacher updates that teacher instead of creating
// a duplicate.
func (s *ImportService) ImportTeachers(ctx context.Context, p authz.Principal, organizationID string, r io.Reader) (*dto.ImportResult, error) {
	if !authz.CanCreate(p, authz.KindTeacher) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot import the roster")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: organizationID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "organization is outside your scope")
	}

	rows, result, err := readCSV(r, []string{"name", "gender", "position"})
	if err != nil {
		return nil, err
	}

	// Validation pass. Nothing is written until every row checks out.
	var prepared []teacherImportRow
	seenPhones := map[string]int{}
	for _, row := range rows {
		t := models.Teacher{
			OrganizationID: organizationID,
			Name:           strings.TrimSpace(row.values["name"]),
			Gender:         strings.TrimSpace(row.values["gender"]),
			Position:       strings.TrimSpace(row.values["position"]),
			Active:         true,
		}
		if v := strings.TrimSpace(row.values["phone"]); v != "" {
			t.Phone = &v
		}
		if v := strings.TrimSpace(row.values["id_card"]); v != "" {
			t.IDCard = &v
		}
		if v := strings.TrimSpace(row.values["employee_id"]); v != "" {
			t.EmployeeID = &v
		}
		t.NormalizeIdentifiers()

		if t.Name == "" {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "name is required"})
			continue
		}
		if t.Gender != "M" && t.Gender != "F" {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "gender must be M or F"})
			continue
		}
		if !validPosition(t.Position) {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: fmt.Sprintf("unknown position %q", t.Position)})
			continue
		}
		if t.Phone != nil {
			if prev, dup := seenPhones[*t.Phone]; dup {
				result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: fmt.Sprintf("phone duplicates row %d", prev)})
				continue
			}
			seenPhones[*t.Phone] = row.number
		}

		item := teacherImportRow{row: row.number, teacher: t}
		if t.Phone != nil {
			existing, err := s.teachers.FindByPhone(ctx, organizationID, *t.Phone)
			if err != nil && err != sql.ErrNoRows {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match phone")
			}
			if err == nil {
				item.existing = existing
			}
		}
		if t.IDCard != nil {
			excludeID := ""
			if item.existing != nil {
				excludeID = item.existing.ID
			}
			taken, err := s.teachers.ExistsByIDCard(ctx, *t.IDCard, excludeID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate id card")
			}
			if taken {
				result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "id card already used"})
				continue
			}
		}
		prepared = append(prepared, item)
	}

	// Any failed row aborts the whole file.
	if len(result.Errors) > 0 {
		return result, nil
	}

	for _, item := range prepared {
		if item.existing != nil {
			updated := *item.existing
			updated.Name = item.teacher.Name
			updated.Gender = item.teacher.Gender
			updated.Position = item.teacher.Position
			updated.IDCard = item.teacher.IDCard
			updated.EmployeeID = item.teacher.EmployeeID
			if err := s.teachers.Update(ctx, &updated); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
			}
			result.UpdatedCount++
			continue
		}
		t := item.teacher
		if err := s.teachers.Create(ctx, &t); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
		}
		result.CreatedCount++
	}

	s.recordImportAudit(ctx, p, "teachers", result)
	return result, nil
}

// ImportChildren reads a CSV of children for one organization, resolving the
// class column by name. Rows apply independently.
func (s *ImportService) ImportChildren(ctx context.Context, p authz.Principal, organizationID string, r io.Reader) (*dto.ImportResult, error) {
	if !authz.CanCreate(p, authz.KindChild) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot import children")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: organizationID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "organization is outside your scope")
	}

	rows, result, err := readCSV(r, []string{"name", "gender"})
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		child := models.Child{
			Name:   strings.TrimSpace(row.values["name"]),
			Gender: strings.TrimSpace(row.values["gender"]),
			Active: true,
		}
		if child.Name == "" {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "name is required"})
			continue
		}
		if child.Gender != "M" && child.Gender != "F" {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "gender must be M or F"})
			continue
		}
		if v := strings.TrimSpace(row.values["birth_date"]); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "birth_date must be YYYY-MM-DD"})
				continue
			}
			child.BirthDate = &parsed
		}
		if v := strings.TrimSpace(row.values["student_id"]); v != "" {
			taken, err := s.children.ExistsByStudentID(ctx, v, "")
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
			}
			if taken {
				result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "student id already used"})
				continue
			}
			child.StudentID = &v
		}
		if v := strings.TrimSpace(row.values["class"]); v != "" {
			class, err := s.classes.FindByName(ctx, organizationID, v)
			if err != nil {
				if err == sql.ErrNoRows {
					result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: fmt.Sprintf("class %q not found", v)})
					continue
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class")
			}
			child.ClassID = &class.ID
		}
		if err := s.children.Create(ctx, &child); err != nil {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "failed to create child"})
			s.logger.Error("child import row failed", zap.Int("row", row.number), zap.Error(err))
			continue
		}
		result.CreatedCount++
	}

	s.recordImportAudit(ctx, p, "children", result)
	return result, nil
}

// ImportClasses reads a CSV of classes for one organization. Rows apply
// independently; a name already taken in the organization fails its row.
func (s *ImportService) ImportClasses(ctx context.Context, p authz.Principal, organizationID string, r io.Reader) (*dto.ImportResult, error) {
	if !authz.CanCreate(p, authz.KindClass) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot import classes")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: organizationID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "organization is outside your scope")
	}

	rows, result, err := readCSV(r, []string{"name", "class_type"})
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		class := models.Class{
			OrganizationID: organizationID,
			Name:           strings.TrimSpace(row.values["name"]),
			ClassType:      strings.TrimSpace(row.values["class_type"]),
		}
		if class.Name == "" {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "name is required"})
			continue
		}
		if !validClassType(class.ClassType) {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: fmt.Sprintf("unknown class_type %q", class.ClassType)})
			continue
		}
		if v := strings.TrimSpace(row.values["classroom_location"]); v != "" {
			class.ClassroomLocation = &v
		}
		if v := strings.TrimSpace(row.values["description"]); v != "" {
			class.Description = &v
		}
		taken, err := s.classes.ExistsByName(ctx, organizationID, class.Name, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate name")
		}
		if taken {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "class name already used"})
			continue
		}
		if err := s.classes.Create(ctx, &class); err != nil {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "failed to create class"})
			s.logger.Error("class import row failed", zap.Int("row", row.number), zap.Error(err))
			continue
		}
		result.CreatedCount++
	}

	s.recordImportAudit(ctx, p, "classes", result)
	return result, nil
}

func validClassType(classType string) bool {
	switch classType {
	case models.ClassTypeNursery, models.ClassTypeSmall, models.ClassTypeMiddle, models.ClassTypeLarge, models.ClassTypePreSchool:
		return true
	}
	return false
}

// ImportOrganizations reads a CSV of organizations. Owner only; rows apply
// independently.
func (s *ImportService) ImportOrganizations(ctx context.Context, p authz.Principal, r io.Reader) (*dto.ImportResult, error) {
	if !authz.CanCreate(p, authz.KindOrganization) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only owners can import organizations")
	}

	rows, result, err := readCSV(r, []string{"name", "org_type"})
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		org := models.Organization{
			Name:    strings.TrimSpace(row.values["name"]),
			OrgType: strings.TrimSpace(row.values["org_type"]),
			Active:  true,
		}
		if org.Name == "" {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "name is required"})
			continue
		}
		if org.OrgType != models.OrgTypePublic && org.OrgType != models.OrgTypePrivate && org.OrgType != models.OrgTypeChain {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: fmt.Sprintf("unknown org_type %q", org.OrgType)})
			continue
		}
		if v := strings.TrimSpace(row.values["region"]); v != "" {
			org.Region = &v
		}
		if v := strings.TrimSpace(row.values["address"]); v != "" {
			org.Address = &v
		}
		taken, err := s.orgs.ExistsByName(ctx, org.Name, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate name")
		}
		if taken {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "organization name already used"})
			continue
		}
		if err := s.orgs.Create(ctx, &org); err != nil {
			result.Errors = append(result.Errors, dto.RowError{Row: row.number, Message: "failed to create organization"})
			s.logger.Error("organization import row failed", zap.Int("row", row.number), zap.Error(err))
			continue
		}
		result.CreatedCount++
	}

	s.recordImportAudit(ctx, p, "organizations", result)
	return result, nil
}

type csvRow struct {
	number int
	values map[string]string
}

// readCSV parses the upload into header-keyed rows. Headers are matched
// case-insensitively; required ones must be present.
func readCSV(r io.Reader, required []string) ([]csvRow, *dto.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "file is empty or not a CSV")
	}
	cols := make([]string, len(header))
	seen := map[string]bool{}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		cols[i] = name
		seen[name] = true
	}
	for _, col := range required {
		if !seen[col] {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing required column %q", col))
		}
	}

	var rows []csvRow
	for n := 1; ; n++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("row %d is malformed", n))
		}
		values := map[string]string{}
		for i, v := range record {
			if i < len(cols) {
				values[cols[i]] = v
			}
		}
		rows = append(rows, csvRow{number: n, values: values})
	}

	return rows, &dto.ImportResult{TotalRows: len(rows)}, nil
}

func validPosition(position string) bool {
	switch position {
	case models.PositionHeadmaster, models.PositionDeputyHeadmaster, models.PositionHeadTeacher, models.PositionAssistantTeacher, models.PositionLifeTeacher:
		return true
	}
	return false
}

func (s *ImportService) recordImportAudit(ctx context.Context, p authz.Principal, resource string, result *dto.ImportResult) {
	if s.audit == nil {
		return
	}
	payload := fmt.Sprintf(`{"created":%d,"updated":%d,"failed":%d}`, result.CreatedCount, result.UpdatedCount, len(result.Errors))
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    &p.UserID,
		Action:    models.AuditActionImport,
		Resource:  resource,
		NewValues: []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record import audit log", zap.Error(err))
	}
}
