package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/dto"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/jobs"
	"github.com/kiddohub/kindergarten-admin-api/pkg/storage"
)

type mockExportRecords struct {
	records []models.SelectionRecordDetail
}

func (m *mockExportRecords) ListAll(ctx context.Context, scope authz.Scope, filter models.SelectionRecordFilter) ([]models.SelectionRecordDetail, error) {
	return m.records, nil
}

func newExportFixture(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	records := &mockExportRecords{records: []models.SelectionRecordDetail{
		{
			SelectionRecord: models.SelectionRecord{
				ID:      "rec-1",
				ChildID: "child-1",
				AreaID:  "area-1",
				Date:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
				Active:  true,
			},
			ChildName: "Mia",
			AreaName:  "Building Blocks",
			ClassName: "Sunflower",
		},
	}}

	signer := storage.NewSignedURLSigner("export-test-secret", time.Hour)
	return NewExportService(records, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), jobs.QueueConfig{Workers: 1})
}

func TestStartExportRejectsUnknownFormat(t *testing.T) {
	svc := newExportFixture(t)

	_, err := svc.StartExport(context.Background(), principalOwner(), models.SelectionRecordFilter{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStartExportEmptyScopeForbidden(t *testing.T) {
	svc := newExportFixture(t)

	// A teacher account with no teaching classes sees nothing.
	p := authz.Principal{UserID: "user-9", Role: authz.RoleTeacher, OrgID: "org-1", TeacherID: "teacher-9"}
	_, err := svc.StartExport(context.Background(), p, models.SelectionRecordFilter{}, ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRenderCSVSynchronous(t *testing.T) {
	svc := newExportFixture(t)

	payload, err := svc.RenderCSV(context.Background(), principalOwner(), models.SelectionRecordFilter{})
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Mia")
	assert.Contains(t, string(payload), "Building Blocks")

	p := authz.Principal{UserID: "user-9", Role: authz.RoleTeacher, OrgID: "org-1", TeacherID: "teacher-9"}
	_, err = svc.RenderCSV(context.Background(), p, models.SelectionRecordFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportRoundTrip(t *testing.T) {
	svc := newExportFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartQueue(ctx)
	defer svc.StopQueue()

	job, err := svc.StartExport(ctx, principalOwner(), models.SelectionRecordFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, dto.ExportStatusPending, job.Status)

	require.Eventually(t, func() bool {
		state, err := svc.Job(job.ID)
		return err == nil && state.Status == dto.ExportStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	state, err := svc.Job(job.ID)
	require.NoError(t, err)
	assert.Contains(t, state.DownloadURL, "/api/v1/selection-records/export/download/")
	assert.True(t, strings.HasSuffix(state.FileName, ".csv"))

	token := state.DownloadURL[strings.LastIndex(state.DownloadURL, "/")+1:]
	file, name, err := svc.OpenDownload(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, state.FileName, name)

	payload, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Mia")
	assert.Contains(t, string(payload), "Building Blocks")
}

func TestOpenDownloadRejectsTamperedToken(t *testing.T) {
	svc := newExportFixture(t)

	_, _, err := svc.OpenDownload("job.12345.cGF0aA.deadbeef")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestJobUnknownID(t *testing.T) {
	svc := newExportFixture(t)

	_, err := svc.Job("missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
