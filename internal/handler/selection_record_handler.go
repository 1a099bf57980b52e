package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	"github.com/kiddohub/kindergarten-admin-api/internal/service"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/response"
)

// SelectionRecordHandler exposes the daily selection lifecycle plus exports.
type SelectionRecordHandler struct {
	records *service.SelectionRecordService
	classes *service.ClassService
	exports *service.ExportService
	metrics *service.MetricsService
}

// NewSelectionRecordHandler constructs SelectionRecordHandler.
func NewSelectionRecordHandler(records *service.SelectionRecordService, classes *service.ClassService, exports *service.ExportService, metrics *service.MetricsService) *SelectionRecordHandler {
	return &SelectionRecordHandler{records: records, classes: classes, exports: exports, metrics: metrics}
}

// Assign godoc
// @Summary Assign a child to a selection area
// @Description Re-assigning the same child on the same day moves the record
// @Tags SelectionRecords
// @Accept json
// @Produce json
// @Param payload body service.AssignSelectionRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /selection-records [post]
func (h *SelectionRecordHandler) Assign(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AssignSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.records.Assign(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSelectionWrite("assign")
	}
	response.Created(c, record)
}

// BatchAssign godoc
// @Summary Assign several children to one area
// @Tags SelectionRecords
// @Accept json
// @Produce json
// @Param payload body service.BatchAssignRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /selection-records/batch [post]
func (h *SelectionRecordHandler) BatchAssign(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BatchAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.records.BatchAssign(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil && len(result.Assigned) > 0 {
		h.metrics.RecordSelectionWrite("batch_assign")
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List selection records
// @Tags SelectionRecords
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param area_id query string false "Filter by area"
// @Param child_id query string false "Per-child selection history"
// @Param child_name query string false "Search by child name"
// @Param active query bool false "Filter by active state"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /selection-records [get]
func (h *SelectionRecordHandler) List(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := recordFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	records, pagination, err := h.records.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get a selection record
// @Tags SelectionRecords
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /selection-records/{id} [get]
func (h *SelectionRecordHandler) Get(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.records.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// End godoc
// @Summary End an active selection
// @Description The record stays in history with active=false
// @Tags SelectionRecords
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /selection-records/{id}/end [post]
func (h *SelectionRecordHandler) End(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.records.End(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSelectionWrite("end")
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Board godoc
// @Summary Classroom board of active selections for one day
// @Tags SelectionRecords
// @Produce json
// @Param class_id query string true "Class ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /selection-records/board [get]
func (h *SelectionRecordHandler) Board(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classID := c.Query("class_id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}
	date, err := queryDate(c, "date", time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.records.ActiveForDate(c.Request.Context(), p, classID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// StartExport godoc
// @Summary Queue an export of selection records
// @Tags SelectionRecords
// @Produce json
// @Param format query string true "csv or pdf"
// @Success 202 {object} response.Envelope
// @Router /selection-records/export [post]
func (h *SelectionRecordHandler) StartExport(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := recordFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	job, err := h.exports.StartExport(c.Request.Context(), p, filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// ExportCSV godoc
// @Summary Download filtered selection records as CSV
// @Description Renders synchronously; large pulls should queue a job instead
// @Tags SelectionRecords
// @Produce text/csv
// @Param class_id query string false "Filter by class"
// @Param child_id query string false "Per-child selection history"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Success 200
// @Router /selection-records/export [get]
func (h *SelectionRecordHandler) ExportCSV(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter, err := recordFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.exports.RenderCSV(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "selection_records_"+time.Now().UTC().Format("2006-01-02")+".csv", payload)
}

// ExportJob godoc
// @Summary Get export job status
// @Tags SelectionRecords
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /selection-records/export/jobs/{id} [get]
func (h *SelectionRecordHandler) ExportJob(c *gin.Context) {
	job, err := h.exports.Job(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download an exported file
// @Description The token is the signed URL issued when the job completed
// @Tags SelectionRecords
// @Produce octet-stream
// @Param token path string true "Download token"
// @Success 200
// @Router /selection-records/export/download/{token} [get]
func (h *SelectionRecordHandler) Download(c *gin.Context) {
	file, name, err := h.exports.OpenDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file"))
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}

// DailySheet godoc
// @Summary Printable PDF board of one class for one day
// @Tags SelectionRecords
// @Produce application/pdf
// @Param class_id query string true "Class ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200
// @Router /selection-records/daily-sheet [get]
func (h *SelectionRecordHandler) DailySheet(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classID := c.Query("class_id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}
	date, err := queryDate(c, "date", time.Now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}

	class, err := h.classes.Get(c.Request.Context(), p, classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.records.ActiveForDate(c.Request.Context(), p, classID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.exports.DailySheet(c.Request.Context(), p, class.Name, records, date)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("selection_sheet_%s_%s.pdf", class.Name, date.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}

func recordFilterFromQuery(c *gin.Context) (models.SelectionRecordFilter, error) {
	var filter models.SelectionRecordFilter
	filter.ClassID = c.Query("class_id")
	filter.OrganizationID = c.Query("organization_id")
	filter.ChildID = c.Query("child_id")
	filter.ChildName = c.Query("child_name")
	filter.AreaID = c.Query("area_id")
	filter.OperatedBy = c.Query("operated_by")
	filter.Active = queryBool(c, "active")
	filter.Page, filter.PageSize = queryPage(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	if raw := c.Query("date_from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "date_from must be YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "date_to must be YYYY-MM-DD")
		}
		filter.DateTo = &to
	}
	return filter, nil
}

func queryDate(c *gin.Context, name string, fallback time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be YYYY-MM-DD", name))
	}
	return parsed, nil
}
