package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/dto"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/export"
	"github.com/kiddohub/kindergarten-admin-api/pkg/jobs"
	"github.com/kiddohub/kindergarten-admin-api/pkg/storage"
)

// Export formats accepted by the records export.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type exportRecordRepository interface {
	ListAll(ctx context.Context, scope authz.Scope, filter models.SelectionRecordFilter) ([]models.SelectionRecordDetail, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

type exportPayload struct {
	JobID  string
	Scope  authz.Scope
	Filter models.SelectionRecordFilter
	Format string
}

// ExportService renders selection-record exports. Record exports run on the
// background queue and are downloaded through signed URLs; the daily class
// sheet renders synchronously.
type ExportService struct {
	records exportRecordRepository
	storage exportFileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig

	queue *jobs.Queue

	mu       sync.RWMutex
	registry map[string]*dto.ExportJob
}

// NewExportService constructs an ExportService. Call StartQueue before
// accepting export requests.
func NewExportService(records exportRecordRepository, store exportFileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, queueCfg jobs.QueueConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		records:  records,
		storage:  store,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		registry: make(map[string]*dto.ExportJob),
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.queue = jobs.NewQueue("record-exports", s.handleJob, queueCfg)
	return s
}

// StartQueue launches the export workers.
func (s *ExportService) StartQueue(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopQueue drains the export workers.
func (s *ExportService) StopQueue() {
	s.queue.Stop()
}

// StartExport queues an export of the records visible to the principal and
// returns the pending job.
func (s *ExportService) StartExport(ctx context.Context, p authz.Principal, filter models.SelectionRecordFilter, format string) (*dto.ExportJob, error) {
	format = strings.ToLower(format)
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	scope := authz.SelectionScope(p)
	if scope.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "nothing to export")
	}

	job := &dto.ExportJob{ID: uuid.NewString(), Status: dto.ExportStatusPending}
	s.mu.Lock()
	s.registry[job.ID] = job
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    "selection-records",
		Payload: exportPayload{JobID: job.ID, Scope: scope, Filter: filter, Format: format},
	})
	if err != nil {
		s.fail(job.ID, "export queue unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	snapshot := *job
	return &snapshot, nil
}

// RenderCSV renders the records visible to the principal synchronously,
// bypassing the job queue. Meant for small, filtered pulls; large exports
// should go through StartExport.
func (s *ExportService) RenderCSV(ctx context.Context, p authz.Principal, filter models.SelectionRecordFilter) ([]byte, error) {
	scope := authz.SelectionScope(p)
	if scope.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "nothing to export")
	}
	records, err := s.records.ListAll(ctx, scope, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect records")
	}
	rendered, err := s.csv.Render(recordsDataset(records))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return rendered, nil
}

// Job returns the current state of an export job.
func (s *ExportService) Job(id string) (*dto.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.registry[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	snapshot := *job
	return &snapshot, nil
}

// OpenDownload validates a signed token and opens the exported file.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	return f, relPath, nil
}

// DailySheet renders the printable PDF board of one class for one day.
func (s *ExportService) DailySheet(ctx context.Context, p authz.Principal, className string, records []models.SelectionRecordDetail, date time.Time) ([]byte, error) {
	dataset := recordsDataset(records)
	title := fmt.Sprintf("Selection Sheet %s", date.Format("2006-01-02"))
	payload, err := s.pdf.Render(dataset, title, className)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render daily sheet")
	}
	return payload, nil
}

// Cleanup removes exported files older than ttl (defaults to ResultTTL).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		s.fail(job.ID, "malformed export payload")
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	records, err := s.records.ListAll(ctx, payload.Scope, payload.Filter)
	if err != nil {
		s.fail(payload.JobID, "failed to collect records")
		return err
	}
	dataset := recordsDataset(records)

	var rendered []byte
	switch payload.Format {
	case ExportFormatCSV:
		rendered, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		rendered, err = s.pdf.Render(dataset, "Selection Records", "")
	default:
		err = fmt.Errorf("unsupported format %s", payload.Format)
	}
	if err != nil {
		s.fail(payload.JobID, "failed to render export")
		return err
	}

	filename := fmt.Sprintf("selection_records_%s.%s", time.Now().UTC().Format("20060102_150405"), payload.Format)
	relPath, err := s.storage.Save(filename, rendered)
	if err != nil {
		s.fail(payload.JobID, "failed to store export")
		return err
	}

	token, expiresAt, err := s.signer.Generate(payload.JobID, relPath)
	if err != nil {
		s.fail(payload.JobID, "failed to sign download")
		return err
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.mu.Lock()
	if entry, ok := s.registry[payload.JobID]; ok {
		entry.Status = dto.ExportStatusCompleted
		entry.FileName = filename
		entry.DownloadURL = fmt.Sprintf("%s/selection-records/export/download/%s", prefix, token)
		entry.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	}
	s.mu.Unlock()
	return nil
}

func (s *ExportService) fail(jobID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.registry[jobID]; ok {
		entry.Status = dto.ExportStatusFailed
		entry.Error = message
	}
}

func recordsDataset(records []models.SelectionRecordDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		status := "assigned"
		if !r.Active {
			status = "ended"
		}
		operator := ""
		if r.OperatorName != nil {
			operator = *r.OperatorName
		}
		rows = append(rows, map[string]string{
			"Date":         r.Date.Format("2006-01-02"),
			"Child":        r.ChildName,
			"Class":        r.ClassName,
			"Organization": r.OrganizationName,
			"Area":         r.AreaName,
			"Selected At":  r.SelectTime.UTC().Format("15:04"),
			"Status":       status,
			"Operator":     operator,
		})
	}
	return export.Dataset{
		Headers: []string{"Date", "Child", "Class", "Organization", "Area", "Selected At", "Status", "Operator"},
		Rows:    rows,
	}
}
