package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
)

// SelectionAreaRepository manages persistence for selection areas.
type SelectionAreaRepository struct {
	db *sqlx.DB
}

// NewSelectionAreaRepository constructs a SelectionAreaRepository.
func NewSelectionAreaRepository(db *sqlx.DB) *SelectionAreaRepository {
	return &SelectionAreaRepository{db: db}
}

// List returns areas visible to the scope with today's occupancy.
func (r *SelectionAreaRepository) List(ctx context.Context, scope authz.Scope, filter models.SelectionAreaFilter, today time.Time) ([]models.SelectionAreaDetail, int, error) {
	base := "FROM selection_areas a JOIN classes c ON c.id = a.class_id JOIN organizations o ON o.id = c.organization_id"
	args := []interface{}{today}
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
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(a.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "a.name",
		"created_at": "a.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "a.created_at"
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

	query := fmt.Sprintf(`SELECT a.id, a.class_id, a.name, a.description, a.image_path, a.created_at, a.updated_at,
        c.name AS class_name, c.organization_id AS organization_id, o.name AS organization_name,
        (SELECT COUNT(*) FROM selection_records sr WHERE sr.area_id = a.id AND sr.date = $1 AND sr.active = TRUE) AS current_selections
        %s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, where, column, order, size, offset)

	var areas []models.SelectionAreaDetail
	if err := r.db.SelectContext(ctx, &areas, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list selection areas: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count selection areas: %w", err)
	}
	return areas, total, nil
}

// FindByID fetches an area detail with today's occupancy.
func (r *SelectionAreaRepository) FindByID(ctx context.Context, id string, today time.Time) (*models.SelectionAreaDetail, error) {
	const query = `SELECT a.id, a.class_id, a.name, a.description, a.image_path, a.created_at, a.updated_at,
        c.name AS class_name, c.organization_id AS organization_id, o.name AS organization_name,
        (SELECT COUNT(*) FROM selection_records sr WHERE sr.area_id = a.id AND sr.date = $2 AND sr.active = TRUE) AS current_selections
        FROM selection_areas a
        JOIN classes c ON c.id = a.class_id
        JOIN organizations o ON o.id = c.organization_id
        WHERE a.id = $1`
	var detail models.SelectionAreaDetail
	if err := r.db.GetContext(ctx, &detail, query, id, today); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByName checks (class, name) uniqueness optionally excluding an ID.
func (r *SelectionAreaRepository) ExistsByName(ctx context.Context, classID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM selection_areas WHERE class_id = $1 AND name = $2"
	args := []interface{}{classID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check area name: %w", err)
	}
	return true, nil
}

// Create inserts a new selection area.
func (r *SelectionAreaRepository) Create(ctx context.Context, area *models.SelectionArea) error {
	if area.ID == "" {
		area.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if area.CreatedAt.IsZero() {
		area.CreatedAt = now
	}
	area.UpdatedAt = now
	const query = `INSERT INTO selection_areas (id, class_id, name, description, image_path, created_at, updated_at)
        VALUES (:id, :class_id, :name, :description, :image_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, area); err != nil {
		return fmt.Errorf("create selection area: %w", err)
	}
	return nil
}

// Update modifies an existing area. The owning class never changes.
func (r *SelectionAreaRepository) Update(ctx context.Context, area *models.SelectionArea) error {
	area.UpdatedAt = time.Now().UTC()
	const query = `UPDATE selection_areas SET name = :name, description = :description, image_path = :image_path, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, area); err != nil {
		return fmt.Errorf("update selection area: %w", err)
	}
	return nil
}

// SetImagePath stores or clears the illustration file path for an area.
func (r *SelectionAreaRepository) SetImagePath(ctx context.Context, id string, path *string) error {
	const query = `UPDATE selection_areas SET image_path = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("set area image: %w", err)
	}
	return nil
}

// Delete removes a selection area. Its records cascade at the schema level.
func (r *SelectionAreaRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM selection_areas WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete selection area: %w", err)
	}
	return nil
}
