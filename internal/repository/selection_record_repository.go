package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
)

// SelectionRecordRepository manages persistence for daily selection records.
type SelectionRecordRepository struct {
	db *sqlx.DB
}

// NewSelectionRecordRepository constructs a SelectionRecordRepository.
func NewSelectionRecordRepository(db *sqlx.DB) *SelectionRecordRepository {
	return &SelectionRecordRepository{db: db}
}

// Upsert inserts the record or, when the (child, date) row already exists,
// overwrites the assignment in place. The conflict resolution reactivates an
// ended row: re-selecting after an end starts a fresh active assignment for
// the same day. The write is a single statement, so concurrent assigns for
// one child and day never produce two rows.
func (r *SelectionRecordRepository) Upsert(ctx context.Context, record *models.SelectionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Active = true

	const query = `INSERT INTO selection_records (id, child_id, area_id, date, select_time, operated_by, active, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, $9)
        ON CONFLICT (child_id, date) DO UPDATE SET
            area_id = EXCLUDED.area_id,
            select_time = EXCLUDED.select_time,
            operated_by = EXCLUDED.operated_by,
            notes = EXCLUDED.notes,
            active = TRUE,
            updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query,
		record.ID, record.ChildID, record.AreaID, record.Date, record.SelectTime,
		record.OperatedBy, record.Notes, record.CreatedAt, record.UpdatedAt)
	if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
		return fmt.Errorf("upsert selection record: %w", err)
	}
	return nil
}

// FindByID fetches a record detail by ID.
func (r *SelectionRecordRepository) FindByID(ctx context.Context, id string) (*models.SelectionRecordDetail, error) {
	query := detailSelect + ` WHERE sr.id = $1`
	var detail models.SelectionRecordDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByChildAndDate fetches the record for one child on one day, if any.
func (r *SelectionRecordRepository) FindByChildAndDate(ctx context.Context, childID string, date time.Time) (*models.SelectionRecordDetail, error) {
	query := detailSelect + ` WHERE sr.child_id = $1 AND sr.date = $2`
	var detail models.SelectionRecordDetail
	if err := r.db.GetContext(ctx, &detail, query, childID, date); err != nil {
		return nil, err
	}
	return &detail, nil
}

const detailSelect = `SELECT sr.id, sr.child_id, sr.area_id, sr.date, sr.select_time, sr.operated_by, sr.active, sr.notes, sr.created_at, sr.updated_at,
        ch.name AS child_name, ch.gender AS child_gender, a.name AS area_name,
        a.class_id AS class_id, c.name AS class_name,
        c.organization_id AS organization_id, o.name AS organization_name,
        u.username AS operator_name
        FROM selection_records sr
        JOIN children ch ON ch.id = sr.child_id
        JOIN selection_areas a ON a.id = sr.area_id
        JOIN classes c ON c.id = a.class_id
        JOIN organizations o ON o.id = c.organization_id
        LEFT JOIN users u ON u.id = sr.operated_by`

// List returns records visible to the scope matching the filter. The scope
// applies to the area's class: visibility follows where the selection
// happened, even if the child has since moved.
func (r *SelectionRecordRepository) List(ctx context.Context, scope authz.Scope, filter models.SelectionRecordFilter) ([]models.SelectionRecordDetail, int, error) {
	base := `FROM selection_records sr
        JOIN children ch ON ch.id = sr.child_id
        JOIN selection_areas a ON a.id = sr.area_id
        JOIN classes c ON c.id = a.class_id
        JOIN organizations o ON o.id = c.organization_id
        LEFT JOIN users u ON u.id = sr.operated_by`
	var args []interface{}
	conditions := []string{"1=1"}

	if cond, arg, ok := classScopeCondition(scope, "a.class_id", len(args)+1); cond != "" {
		conditions = append(conditions, cond)
		if ok {
			args = append(args, arg)
		}
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("a.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("c.organization_id = $%d", len(args)+1))
		args = append(args, filter.OrganizationID)
	}
	if filter.ChildID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.child_id = $%d", len(args)+1))
		args = append(args, filter.ChildID)
	}
	if filter.ChildName != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(ch.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.ChildName)+"%")
	}
	if filter.AreaID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.area_id = $%d", len(args)+1))
		args = append(args, filter.AreaID)
	}
	if filter.OperatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("sr.operated_by = $%d", len(args)+1))
		args = append(args, filter.OperatedBy)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("sr.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("sr.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("sr.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	where := strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"date":        "sr.date",
		"select_time": "sr.select_time",
		"child_name":  "ch.name",
		"created_at":  "sr.created_at",
	}
	if sortBy == "" {
		sortBy = "date"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "sr.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT sr.id, sr.child_id, sr.area_id, sr.date, sr.select_time, sr.operated_by, sr.active, sr.notes, sr.created_at, sr.updated_at,
        ch.name AS child_name, ch.gender AS child_gender, a.name AS area_name,
        a.class_id AS class_id, c.name AS class_name,
        c.organization_id AS organization_id, o.name AS organization_name,
        u.username AS operator_name
        %s WHERE %s ORDER BY %s %s, sr.select_time DESC LIMIT %d OFFSET %d`, base, where, column, order, size, offset)

	var records []models.SelectionRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list selection records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count selection records: %w", err)
	}
	return records, total, nil
}

// ListAll streams every record matching the filter without paging, for
// exports. The same scope rules apply.
func (r *SelectionRecordRepository) ListAll(ctx context.Context, scope authz.Scope, filter models.SelectionRecordFilter) ([]models.SelectionRecordDetail, error) {
	filter.Page = 1
	filter.PageSize = 100

	var all []models.SelectionRecordDetail
	for {
		batch, total, err := r.List(ctx, scope, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(all) >= total || len(batch) == 0 {
			return all, nil
		}
		filter.Page++
	}
}

// End closes an assignment, keeping the row as history.
func (r *SelectionRecordRepository) End(ctx context.Context, id string) error {
	const query = `UPDATE selection_records SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("end selection record: %w", err)
	}
	return nil
}

// Delete removes a record outright. Reserved for owner-level corrections;
// the normal lifecycle ends records instead.
func (r *SelectionRecordRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM selection_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete selection record: %w", err)
	}
	return nil
}
