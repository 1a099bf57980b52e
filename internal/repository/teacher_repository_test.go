package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiddohub/kindergarten-admin-api/internal/models"
)

func newTeacherMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTeacherRepositoryExistsByPhone(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM teachers WHERE phone = $1 LIMIT 1")).
		WithArgs("13800000001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByPhone(context.Background(), "13800000001", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryExistsByPhoneExcludesSelf(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM teachers WHERE phone = $1 AND id <> $2 LIMIT 1")).
		WithArgs("13800000001", "teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.ExistsByPhone(context.Background(), "13800000001", "teacher-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec("INSERT INTO teachers").
		WillReturnResult(sqlmock.NewResult(1, 1))

	teacher := &models.Teacher{OrganizationID: "org-1", Name: "Ms. Lin", Gender: "F", Position: models.PositionHeadTeacher, Active: true}
	require.NoError(t, repo.Create(context.Background(), teacher))
	assert.NotEmpty(t, teacher.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryReplaceClasses(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_classes WHERE teacher_id = $1")).
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teacher_classes (teacher_id, class_id) VALUES ($1, $2)")).
		WithArgs("teacher-1", "class-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teacher_classes (teacher_id, class_id) VALUES ($1, $2)")).
		WithArgs("teacher-1", "class-2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReplaceClasses(context.Background(), "teacher-1", []string{"class-1", "class-2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryDeactivateClearsClasses(t *testing.T) {
	db, mock, cleanup := newTeacherMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_classes WHERE teacher_id = $1")).
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE teachers SET active = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("teacher-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Deactivate(context.Background(), "teacher-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
