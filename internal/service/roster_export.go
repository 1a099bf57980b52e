package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/export"
)

// Roster exports render the same scoped listings the List endpoints serve,
// walked page by page, as CSV downloads. Teachers keep their read scope here:
// an empty scope yields a header-only file rather than an error, matching the
// empty listing the same principal would see.

const rosterExportPageSize = 100

// ExportCSV renders the scoped child roster as CSV. Filter semantics match List.
func (s *ChildService) ExportCSV(ctx context.Context, p authz.Principal, filter models.ChildFilter) ([]byte, error) {
	data := export.Dataset{Headers: []string{"Name", "Gender", "Birth Date", "Class", "Organization", "Student ID", "Parent", "Parent Phone", "Status"}}
	filter.Page = 1
	filter.PageSize = rosterExportPageSize
	for {
		children, _, err := s.List(ctx, p, filter)
		if err != nil {
			return nil, err
		}
		for _, ch := range children {
			data.Rows = append(data.Rows, map[string]string{
				"Name":         ch.Name,
				"Gender":       ch.Gender,
				"Birth Date":   exportDate(ch.BirthDate),
				"Class":        exportStr(ch.ClassName),
				"Organization": exportStr(ch.OrganizationName),
				"Student ID":   exportStr(ch.StudentID),
				"Parent":       exportStr(ch.ParentName),
				"Parent Phone": exportStr(ch.ParentPhone),
				"Status":       exportActive(ch.Active),
			})
		}
		if len(children) < filter.PageSize {
			break
		}
		filter.Page++
	}
	return renderRosterCSV(data)
}

// ExportCSV renders the scoped teacher roster as CSV. Filter semantics match List.
func (s *TeacherService) ExportCSV(ctx context.Context, p authz.Principal, filter models.TeacherFilter) ([]byte, error) {
	data := export.Dataset{Headers: []string{"Name", "Gender", "Position", "Organization", "Phone", "Employee ID", "Classes", "Status"}}
	filter.Page = 1
	filter.PageSize = rosterExportPageSize
	for {
		teachers, _, err := s.List(ctx, p, filter)
		if err != nil {
			return nil, err
		}
		for _, t := range teachers {
			data.Rows = append(data.Rows, map[string]string{
				"Name":         t.Name,
				"Gender":       t.Gender,
				"Position":     t.Position,
				"Organization": t.OrganizationName,
				"Phone":        exportStr(t.Phone),
				"Employee ID":  exportStr(t.EmployeeID),
				"Classes":      strconv.Itoa(len(t.ClassIDs)),
				"Status":       exportActive(t.Active),
			})
		}
		if len(teachers) < filter.PageSize {
			break
		}
		filter.Page++
	}
	return renderRosterCSV(data)
}

// ExportCSV renders the scoped class listing as CSV. Filter semantics match List.
func (s *ClassService) ExportCSV(ctx context.Context, p authz.Principal, filter models.ClassFilter) ([]byte, error) {
	data := export.Dataset{Headers: []string{"Name", "Type", "Organization", "Location", "Children"}}
	filter.Page = 1
	filter.PageSize = rosterExportPageSize
	for {
		classes, _, err := s.List(ctx, p, filter)
		if err != nil {
			return nil, err
		}
		for _, c := range classes {
			data.Rows = append(data.Rows, map[string]string{
				"Name":         c.Name,
				"Type":         c.ClassType,
				"Organization": c.OrganizationName,
				"Location":     exportStr(c.ClassroomLocation),
				"Children":     strconv.Itoa(c.ChildCount),
			})
		}
		if len(classes) < filter.PageSize {
			break
		}
		filter.Page++
	}
	return renderRosterCSV(data)
}

// ExportCSV renders the scoped organization listing with its derived counts as
// CSV. Filter semantics match List.
func (s *OrganizationService) ExportCSV(ctx context.Context, p authz.Principal, filter models.OrganizationFilter) ([]byte, error) {
	data := export.Dataset{Headers: []string{"Name", "Type", "Region", "Classes", "Teachers", "Children", "Status"}}
	filter.Page = 1
	filter.PageSize = rosterExportPageSize
	for {
		orgs, _, err := s.List(ctx, p, filter)
		if err != nil {
			return nil, err
		}
		for _, o := range orgs {
			data.Rows = append(data.Rows, map[string]string{
				"Name":     o.Name,
				"Type":     o.OrgType,
				"Region":   exportStr(o.Region),
				"Classes":  strconv.Itoa(o.ClassCount),
				"Teachers": strconv.Itoa(o.TeacherCount),
				"Children": strconv.Itoa(o.ChildCount),
				"Status":   exportActive(o.Active),
			})
		}
		if len(orgs) < filter.PageSize {
			break
		}
		filter.Page++
	}
	return renderRosterCSV(data)
}

// Import CSV column sets. Template serves these so uploads start from the
// exact headers the importer expects.
var importTemplateHeaders = map[string][]string{
	"teachers":      {"name", "gender", "position", "phone", "id_card", "employee_id"},
	"children":      {"name", "gender", "birth_date", "student_id", "class"},
	"classes":       {"name", "class_type", "classroom_location", "description"},
	"organizations": {"name", "org_type", "region", "address"},
}

// Template returns a header-only CSV for the named import kind.
func (s *ImportService) Template(resource string) ([]byte, error) {
	headers, ok := importTemplateHeaders[strings.ToLower(resource)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no import template for this resource")
	}
	return renderRosterCSV(export.Dataset{Headers: headers})
}

func renderRosterCSV(data export.Dataset) ([]byte, error) {
	payload, err := export.NewCSVExporter().Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, nil
}

func exportStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func exportDate(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format("2006-01-02")
}

func exportActive(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
