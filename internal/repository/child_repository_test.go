package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
)

func newChildMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var childCols = []string{
	"id", "name", "gender", "birth_date", "class_id", "student_id", "admission_date",
	"parent_name", "parent_phone", "parent_email", "home_address", "avatar_path", "health_notes",
	"active", "notes", "created_at", "updated_at", "class_name", "organization_id", "organization_name",
}

func childRow(id, name string) []driver.Value {
	now := time.Now()
	return []driver.Value{id, name, "F", nil, "class-1", nil, nil, nil, nil, nil, nil, nil, nil, true, nil, now, now, "Sunflower", "org-1", "Little Oaks"}
}

func TestChildRepositoryListUnscoped(t *testing.T) {
	db, mock, cleanup := newChildMock(t)
	defer cleanup()
	repo := NewChildRepository(db)

	rows := sqlmock.NewRows(childCols).AddRow(childRow("child-1", "Mia")...)
	mock.ExpectQuery(regexp.QuoteMeta("FROM children ch LEFT JOIN classes c ON c.id = ch.class_id LEFT JOIN organizations o ON o.id = c.organization_id WHERE 1=1 ORDER BY ch.created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	children, total, err := repo.List(context.Background(), authz.All(), models.ChildFilter{})
	require.NoError(t, err)
	assert.Len(t, children, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChildRepositoryListScopedToOrganization(t *testing.T) {
	db, mock, cleanup := newChildMock(t)
	defer cleanup()
	repo := NewChildRepository(db)

	rows := sqlmock.NewRows(childCols).AddRow(childRow("child-1", "Mia")...)
	mock.ExpectQuery(regexp.QuoteMeta("ch.class_id IN (SELECT id FROM classes WHERE organization_id = $1)")).
		WithArgs("org-1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	children, total, err := repo.List(context.Background(), authz.Org("org-1"), models.ChildFilter{})
	require.NoError(t, err)
	assert.Len(t, children, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChildRepositoryListScopedToClasses(t *testing.T) {
	db, mock, cleanup := newChildMock(t)
	defer cleanup()
	repo := NewChildRepository(db)

	rows := sqlmock.NewRows(childCols).AddRow(childRow("child-1", "Mia")...)
	mock.ExpectQuery(`ch\.class_id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	children, total, err := repo.List(context.Background(), authz.Classes([]string{"class-1", "class-2"}), models.ChildFilter{})
	require.NoError(t, err)
	assert.Len(t, children, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChildRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newChildMock(t)
	defer cleanup()
	repo := NewChildRepository(db)

	mock.ExpectExec("INSERT INTO children").
		WillReturnResult(sqlmock.NewResult(1, 1))

	classID := "class-1"
	child := &models.Child{Name: "Mia", Gender: "F", ClassID: &classID, Active: true}
	require.NoError(t, repo.Create(context.Background(), child))
	assert.NotEmpty(t, child.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChildRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newChildMock(t)
	defer cleanup()
	repo := NewChildRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE children SET active = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("child-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "child-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
