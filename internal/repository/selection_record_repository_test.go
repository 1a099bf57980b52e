package repository

import (
	"context"
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

func newRecordMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSelectionRecordRepositoryUpsertInsert(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewSelectionRecordRepository(db)

	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO selection_records").
		WithArgs(sqlmock.AnyArg(), "child-1", "area-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("rec-1", created))

	record := &models.SelectionRecord{
		ChildID:    "child-1",
		AreaID:     "area-1",
		Date:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		SelectTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	err := repo.Upsert(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)
	assert.True(t, record.Active)
	assert.Equal(t, created, record.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionRecordRepositoryUpsertConflictKeepsExistingID(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewSelectionRecordRepository(db)

	// Conflict path: the RETURNING clause hands back the pre-existing row's
	// identity, not the candidate one.
	originalCreated := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO selection_records").
		WithArgs(sqlmock.AnyArg(), "child-1", "area-2", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("rec-existing", originalCreated))

	record := &models.SelectionRecord{
		ChildID:    "child-1",
		AreaID:     "area-2",
		Date:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		SelectTime: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	}
	err := repo.Upsert(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "rec-existing", record.ID)
	assert.Equal(t, originalCreated, record.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionRecordRepositoryEnd(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewSelectionRecordRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE selection_records SET active = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("rec-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.End(context.Background(), "rec-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionRecordRepositoryListScopedToClasses(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewSelectionRecordRepository(db)

	cols := []string{
		"id", "child_id", "area_id", "date", "select_time", "operated_by", "active", "notes", "created_at", "updated_at",
		"child_name", "child_gender", "area_name", "class_id", "class_name", "organization_id", "organization_name", "operator_name",
	}
	now := time.Now()
	rows := sqlmock.NewRows(cols).
		AddRow("rec-1", "child-1", "area-1", now, now, nil, true, nil, now, now,
			"Mia", "F", "Blocks", "class-1", "Sunflower", "org-1", "Little Oaks", nil)

	mock.ExpectQuery(`a\.class_id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	scope := authz.Classes([]string{"class-1"})
	records, total, err := repo.List(context.Background(), scope, models.SelectionRecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Mia", records[0].ChildName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectionRecordRepositoryFindByChildAndDate(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewSelectionRecordRepository(db)

	cols := []string{
		"id", "child_id", "area_id", "date", "select_time", "operated_by", "active", "notes", "created_at", "updated_at",
		"child_name", "child_gender", "area_name", "class_id", "class_name", "organization_id", "organization_name", "operator_name",
	}
	now := time.Now()
	mock.ExpectQuery(`WHERE sr\.child_id = \$1 AND sr\.date = \$2`).
		WithArgs("child-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("rec-1", "child-1", "area-1", now, now, nil, true, nil, now, now,
				"Mia", "F", "Blocks", "class-1", "Sunflower", "org-1", "Little Oaks", nil))

	detail, err := repo.FindByChildAndDate(context.Background(), "child-1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "rec-1", detail.ID)
	assert.Equal(t, "area-1", detail.AreaID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
