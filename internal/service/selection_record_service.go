package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type selectionRecordRepository interface {
	Upsert(ctx context.Context, record *models.SelectionRecord) error
	FindByID(ctx context.Context, id string) (*models.SelectionRecordDetail, error)
	FindByChildAndDate(ctx context.Context, childID string, date time.Time) (*models.SelectionRecordDetail, error)
	List(ctx context.Context, scope authz.Scope, filter models.SelectionRecordFilter) ([]models.SelectionRecordDetail, int, error)
	End(ctx context.Context, id string) error
}

type recordChildLookup interface {
	FindByID(ctx context.Context, id string) (*models.ChildDetail, error)
}

type recordAreaLookup interface {
	FindByID(ctx context.Context, id string, today time.Time) (*models.SelectionAreaDetail, error)
}

// AssignSelectionRequest holds payload for assigning a child to an area.
type AssignSelectionRequest struct {
	ChildID    string     `json:"child_id" validate:"required"`
	AreaID     string     `json:"area_id" validate:"required"`
	Date       *time.Time `json:"date"`
	SelectTime *time.Time `json:"select_time"`
	Notes      *string    `json:"notes"`
}

// BatchAssignRequest assigns several children to one area for one day.
type BatchAssignRequest struct {
	ChildIDs   []string   `json:"child_ids" validate:"required,min=1"`
	AreaID     string     `json:"area_id" validate:"required"`
	Date       *time.Time `json:"date"`
	SelectTime *time.Time `json:"select_time"`
	Notes      *string    `json:"notes"`
}

// BatchAssignResult lists the records written by a batch assignment.
type BatchAssignResult struct {
	Assigned []models.SelectionRecordDetail `json:"assigned"`
}

// SelectionRecordService implements the daily selection lifecycle. One child
// holds at most one record per day; assigning again moves the record to the
// new area in place.
type SelectionRecordService struct {
	repo      selectionRecordRepository
	children  recordChildLookup
	areas     recordAreaLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSelectionRecordService constructs the selection record service.
func NewSelectionRecordService(repo selectionRecordRepository, children recordChildLookup, areas recordAreaLookup, validate *validator.Validate, logger *zap.Logger) *SelectionRecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionRecordService{repo: repo, children: children, areas: areas, validator: validate, logger: logger}
}

// Assign places a child into an area for the day, overwriting any existing
// assignment for the same child and day.
func (s *SelectionRecordService) Assign(ctx context.Context, p authz.Principal, req AssignSelectionRequest) (*models.SelectionRecordDetail, error) {
	if !authz.CanCreate(p, authz.KindSelectionRecord) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot record selections")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection payload")
	}

	record, err := s.buildRecord(ctx, p, req.ChildID, req.AreaID, req.Date, req.SelectTime, req.Notes)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save selection")
	}
	detail, err := s.repo.FindByID(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload selection")
	}
	return detail, nil
}

// BatchAssign assigns several children to one area. Rows apply in order and
// the first rejected child aborts the batch with its error; rows already
// written stay written.
func (s *SelectionRecordService) BatchAssign(ctx context.Context, p authz.Principal, req BatchAssignRequest) (*BatchAssignResult, error) {
	if !authz.CanCreate(p, authz.KindSelectionRecord) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot record selections")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	result := &BatchAssignResult{}
	for _, childID := range req.ChildIDs {
		record, err := s.buildRecord(ctx, p, childID, req.AreaID, req.Date, req.SelectTime, req.Notes)
		if err != nil {
			e := appErrors.FromError(err)
			return nil, appErrors.Wrap(err, e.Code, e.Status, fmt.Sprintf("child %s: %s", childID, e.Message))
		}
		if err := s.repo.Upsert(ctx, record); err != nil {
			s.logger.Error("batch selection upsert failed", zap.String("child_id", childID), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("child %s: failed to save selection", childID))
		}
		detail, err := s.repo.FindByID(ctx, record.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("child %s: failed to reload selection", childID))
		}
		result.Assigned = append(result.Assigned, *detail)
	}
	return result, nil
}

// Get returns a single record if the principal may see it.
func (s *SelectionRecordService) Get(ctx context.Context, p authz.Principal, id string) (*models.SelectionRecordDetail, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection record")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: record.OrganizationID, ClassID: record.ClassID}) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "selection record not found")
	}
	return record, nil
}

// List returns records visible to the principal.
func (s *SelectionRecordService) List(ctx context.Context, p authz.Principal, filter models.SelectionRecordFilter) ([]models.SelectionRecordDetail, *models.Pagination, error) {
	scope := authz.SelectionScope(p)
	if scope.IsEmpty() {
		return []models.SelectionRecordDetail{}, paginationFor(filter.Page, filter.PageSize, 0), nil
	}
	records, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list selection records")
	}
	return records, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ActiveForDate returns the active assignments for one day, defaulting to
// today. Used by the classroom board view.
func (s *SelectionRecordService) ActiveForDate(ctx context.Context, p authz.Principal, classID string, date time.Time) ([]models.SelectionRecordDetail, error) {
	date = startOfDay(date.UTC())
	active := true
	filter := models.SelectionRecordFilter{
		ClassID:  classID,
		Active:   &active,
		DateFrom: &date,
		DateTo:   &date,
		PageSize: 100,
	}
	scope := authz.SelectionScope(p)
	if scope.IsEmpty() {
		return []models.SelectionRecordDetail{}, nil
	}
	var all []models.SelectionRecordDetail
	for page := 1; ; page++ {
		filter.Page = page
		records, total, err := s.repo.List(ctx, scope, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active selections")
		}
		all = append(all, records...)
		if len(all) >= total || len(records) == 0 {
			return all, nil
		}
	}
}

// End closes an active assignment. The record stays as history.
func (s *SelectionRecordService) End(ctx context.Context, p authz.Principal, id string) (*models.SelectionRecordDetail, error) {
	record, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !record.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "selection is already ended")
	}
	if err := s.repo.End(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end selection")
	}
	record.Active = false
	return record, nil
}

// buildRecord runs the consistency checks shared by single and batch
// assignment: the child must be active and placed in a class, the area must
// belong to that same class, and the class must be inside the caller's scope.
func (s *SelectionRecordService) buildRecord(ctx context.Context, p authz.Principal, childID, areaID string, date, selectTime *time.Time, notes *string) (*models.SelectionRecord, error) {
	child, err := s.children.FindByID(ctx, childID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	if !child.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "child is withdrawn")
	}
	if child.ClassID == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "child has no class")
	}

	area, err := s.areas.FindByID(ctx, areaID, startOfDay(time.Now().UTC()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection area not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection area")
	}
	if area.ClassID != *child.ClassID {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("area %s belongs to a different class than the child", area.Name))
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: area.OrganizationID, ClassID: area.ClassID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class is outside your scope")
	}

	at := time.Now().UTC()
	if selectTime != nil {
		at = selectTime.UTC()
	}
	// Absent an explicit date, the record files under the day of the
	// select time so backdated times land on the right row.
	day := startOfDay(at)
	if date != nil {
		day = startOfDay(date.UTC())
	}

	operator := p.UserID
	return &models.SelectionRecord{
		ChildID:    childID,
		AreaID:     areaID,
		Date:       day,
		SelectTime: at,
		OperatedBy: &operator,
		Notes:      notes,
	}, nil
}
