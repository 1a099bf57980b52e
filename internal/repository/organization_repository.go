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

// OrganizationRepository manages persistence for kindergarten organizations.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs an OrganizationRepository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// List returns organizations visible to the scope with derived counts.
func (r *OrganizationRepository) List(ctx context.Context, scope authz.Scope, filter models.OrganizationFilter) ([]models.OrganizationStats, int, error) {
	base := "FROM organizations o"
	var args []interface{}
	conditions := []string{"1=1"}

	if cond, arg, ok := orgScopeCondition(scope, "o.id", len(args)+1); cond != "" {
		conditions = append(conditions, cond)
		if ok {
			args = append(args, arg)
		}
	}
	if filter.OrgType != "" {
		conditions = append(conditions, fmt.Sprintf("o.org_type = $%d", len(args)+1))
		args = append(args, filter.OrgType)
	}
	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("o.region = $%d", len(args)+1))
		args = append(args, filter.Region)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("o.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(o.name) LIKE $%d OR LOWER(COALESCE(o.principal_name, '')) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "o.name",
		"org_type":   "o.org_type",
		"region":     "o.region",
		"created_at": "o.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "o.created_at"
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

	query := fmt.Sprintf(`SELECT o.id, o.name, o.org_type, o.address, o.phone, o.principal_name, o.region, o.active, o.created_at, o.updated_at,
        (SELECT COUNT(*) FROM classes c WHERE c.organization_id = o.id) AS class_count,
        (SELECT COUNT(*) FROM children ch JOIN classes c ON c.id = ch.class_id WHERE c.organization_id = o.id AND ch.active = TRUE) AS child_count,
        (SELECT COUNT(*) FROM teachers t WHERE t.organization_id = o.id AND t.active = TRUE) AS teacher_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var orgs []models.OrganizationStats
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}
	return orgs, total, nil
}

// FindByID fetches an organization with derived counts.
func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*models.OrganizationStats, error) {
	const query = `SELECT o.id, o.name, o.org_type, o.address, o.phone, o.principal_name, o.region, o.active, o.created_at, o.updated_at,
        (SELECT COUNT(*) FROM classes c WHERE c.organization_id = o.id) AS class_count,
        (SELECT COUNT(*) FROM children ch JOIN classes c ON c.id = ch.class_id WHERE c.organization_id = o.id AND ch.active = TRUE) AS child_count,
        (SELECT COUNT(*) FROM teachers t WHERE t.organization_id = o.id AND t.active = TRUE) AS teacher_count
        FROM organizations o WHERE o.id = $1`
	var org models.OrganizationStats
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, err
	}
	return &org, nil
}

// ExistsByName checks name uniqueness optionally excluding an ID.
func (r *OrganizationRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM organizations WHERE name = $1"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check organization name: %w", err)
	}
	return true, nil
}

// Create inserts a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	org.UpdatedAt = now
	const query = `INSERT INTO organizations (id, name, org_type, address, phone, principal_name, region, active, created_at, updated_at)
        VALUES (:id, :name, :org_type, :address, :phone, :principal_name, :region, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, org); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// Update modifies an existing organization.
func (r *OrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	org.UpdatedAt = time.Now().UTC()
	const query = `UPDATE organizations SET name = :name, org_type = :org_type, address = :address, phone = :phone, principal_name = :principal_name, region = :region, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, org); err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	return nil
}

// SetActive toggles the organization's active flag.
func (r *OrganizationRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE organizations SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set organization active: %w", err)
	}
	return nil
}

// Delete removes an organization. Classes cascade at the schema level, which
// in turn declasses the children placed in them.
func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	return nil
}
