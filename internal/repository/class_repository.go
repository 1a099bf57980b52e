package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
)

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes visible to the scope matching the filter.
func (r *ClassRepository) List(ctx context.Context, scope authz.Scope, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := "FROM classes c JOIN organizations o ON o.id = c.organization_id"
	var args []interface{}
	conditions := []string{"1=1"}

	if cond, arg, ok := classScopeCondition(scope, "c.id", len(args)+1); cond != "" {
		conditions = append(conditions, cond)
		if ok {
			args = append(args, arg)
		}
	}
	if filter.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("c.organization_id = $%d", len(args)+1))
		args = append(args, filter.OrganizationID)
	}
	if filter.ClassType != "" {
		conditions = append(conditions, fmt.Sprintf("c.class_type = $%d", len(args)+1))
		args = append(args, filter.ClassType)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "c.name",
		"class_type": "c.class_type",
		"created_at": "c.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "c.created_at"
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

	query := fmt.Sprintf(`SELECT c.id, c.organization_id, c.name, c.class_type, c.classroom_location, c.description, c.created_at, c.updated_at,
        o.name AS organization_name,
        (SELECT COUNT(*) FROM children ch WHERE ch.class_id = c.id AND ch.active = TRUE) AS child_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID fetches a class detail by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT c.id, c.organization_id, c.name, c.class_type, c.classroom_location, c.description, c.created_at, c.updated_at,
        o.name AS organization_name,
        (SELECT COUNT(*) FROM children ch WHERE ch.class_id = c.id AND ch.active = TRUE) AS child_count
        FROM classes c JOIN organizations o ON o.id = c.organization_id
        WHERE c.id = $1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByName checks (organization, name) uniqueness optionally excluding an ID.
func (r *ClassRepository) ExistsByName(ctx context.Context, organizationID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM classes WHERE organization_id = $1 AND name = $2"
	args := []interface{}{organizationID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class name: %w", err)
	}
	return true, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, organization_id, name, class_type, classroom_location, description, created_at, updated_at)
        VALUES (:id, :organization_id, :name, :class_type, :classroom_location, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies an existing class. The owning organization never changes.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, class_type = :class_type, classroom_location = :classroom_location, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class. Children are declassed and selection areas cascade
// at the schema level; the declass is made explicit here so callers inside a
// transaction see consistent rows.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete class: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE children SET class_id = NULL, updated_at = $2 WHERE class_id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("declass children: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return tx.Commit()
}

// FindByName fetches a class by its unique (organization, name) pair.
func (r *ClassRepository) FindByName(ctx context.Context, organizationID, name string) (*models.Class, error) {
	const query = `SELECT id, organization_id, name, class_type, classroom_location, description, created_at, updated_at FROM classes WHERE organization_id = $1 AND name = $2 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, organizationID, name); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListIDsByOrganization returns all class IDs within an organization.
func (r *ClassRepository) ListIDsByOrganization(ctx context.Context, organizationID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM classes WHERE organization_id = $1`, organizationID); err != nil {
		return nil, fmt.Errorf("list class ids: %w", err)
	}
	return ids, nil
}

// ExistAll reports whether every given class ID exists within the organization.
func (r *ClassRepository) ExistAll(ctx context.Context, organizationID string, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int
	const query = `SELECT COUNT(*) FROM classes WHERE organization_id = $1 AND id = ANY($2)`
	if err := r.db.GetContext(ctx, &count, query, organizationID, pq.Array(ids)); err != nil {
		return false, fmt.Errorf("check class ids: %w", err)
	}
	return count == len(ids), nil
}
