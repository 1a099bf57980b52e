package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
)

type rosterChildRepo struct {
	children []models.ChildDetail
	pages    []int
}

func (m *rosterChildRepo) List(ctx context.Context, scope authz.Scope, filter models.ChildFilter) ([]models.ChildDetail, int, error) {
	m.pages = append(m.pages, filter.Page)
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(m.children) {
		return []models.ChildDetail{}, len(m.children), nil
	}
	end := start + filter.PageSize
	if end > len(m.children) {
		end = len(m.children)
	}
	return m.children[start:end], len(m.children), nil
}

func (m *rosterChildRepo) FindByID(ctx context.Context, id string) (*models.ChildDetail, error) {
	return nil, nil
}

func (m *rosterChildRepo) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	return false, nil
}

func (m *rosterChildRepo) Create(ctx context.Context, child *models.Child) error { return nil }

func (m *rosterChildRepo) Update(ctx context.Context, child *models.Child) error { return nil }

func (m *rosterChildRepo) Deactivate(ctx context.Context, id string) error { return nil }

func (m *rosterChildRepo) SetActive(ctx context.Context, id string, active bool) error { return nil }

func TestChildExportCSVWalksPages(t *testing.T) {
	repo := &rosterChildRepo{}
	for i := 0; i < rosterExportPageSize+3; i++ {
		repo.children = append(repo.children, models.ChildDetail{
			Child: models.Child{Name: "Child", Gender: "F", Active: true},
		})
	}
	repo.children[0].Name = "Mia"
	repo.children[0].ClassName = strptr("Sunflower")

	svc := NewChildService(repo, nil, nil, nil)
	payload, err := svc.ExportCSV(context.Background(), principalOwner(), models.ChildFilter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	// Header plus every child across both pages.
	require.Len(t, lines, len(repo.children)+1)
	assert.Equal(t, []int{1, 2}, repo.pages)
	assert.Contains(t, lines[0], "Name")
	assert.Contains(t, lines[1], "Mia")
	assert.Contains(t, lines[1], "Sunflower")
	assert.Contains(t, lines[1], "active")
}

func TestChildExportCSVEmptyScopeYieldsHeaderOnly(t *testing.T) {
	repo := &rosterChildRepo{children: []models.ChildDetail{{Child: models.Child{Name: "Hidden"}}}}
	svc := NewChildService(repo, nil, nil, nil)

	inconsistent := authz.Principal{UserID: "u", Role: authz.RoleTeacher}
	payload, err := svc.ExportCSV(context.Background(), inconsistent, models.ChildFilter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 1)
	assert.Empty(t, repo.pages)
}

func TestImportTemplateHeaders(t *testing.T) {
	svc := NewImportService(nil, nil, nil, nil, nil, nil)

	payload, err := svc.Template("teachers")
	require.NoError(t, err)
	assert.Equal(t, "name,gender,position,phone,id_card,employee_id", strings.TrimSpace(string(payload)))

	_, err = svc.Template("invoices")
	require.Error(t, err)
}
