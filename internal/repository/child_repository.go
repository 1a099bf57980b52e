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

// ChildRepository manages persistence for children.
type ChildRepository struct {
	db *sqlx.DB
}

// NewChildRepository constructs a ChildRepository.
func NewChildRepository(db *sqlx.DB) *ChildRepository {
	return &ChildRepository{db: db}
}

// List returns children visible to the scope matching the filter. A child
// without a class resolves to no organization, so only unrestricted scopes
// see declassed children.
func (r *ChildRepository) List(ctx context.Context, scope authz.Scope, filter models.ChildFilter) ([]models.ChildDetail, int, error) {
	base := "FROM children ch LEFT JOIN classes c ON c.id = ch.class_id LEFT JOIN organizations o ON o.id = c.organization_id"
	var args []interface{}
	conditions := []string{"1=1"}

	if cond, arg, ok := classScopeCondition(scope, "ch.class_id", len(args)+1); cond != "" {
		conditions = append(conditions, cond)
		if ok {
			args = append(args, arg)
		}
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("ch.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("ch.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(ch.name) LIKE $%d OR LOWER(COALESCE(ch.student_id, '')) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":           "ch.name",
		"birth_date":     "ch.birth_date",
		"admission_date": "ch.admission_date",
		"created_at":     "ch.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "ch.created_at"
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

	query := fmt.Sprintf(`SELECT ch.id, ch.name, ch.gender, ch.birth_date, ch.class_id, ch.student_id, ch.admission_date,
        ch.parent_name, ch.parent_phone, ch.parent_email, ch.home_address, ch.avatar_path, ch.health_notes, ch.active, ch.notes, ch.created_at, ch.updated_at,
        c.name AS class_name, c.organization_id AS organization_id, o.name AS organization_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var children []models.ChildDetail
	if err := r.db.SelectContext(ctx, &children, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list children: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count children: %w", err)
	}
	return children, total, nil
}

// FindByID fetches a child detail by ID.
func (r *ChildRepository) FindByID(ctx context.Context, id string) (*models.ChildDetail, error) {
	const query = `SELECT ch.id, ch.name, ch.gender, ch.birth_date, ch.class_id, ch.student_id, ch.admission_date,
        ch.parent_name, ch.parent_phone, ch.parent_email, ch.home_address, ch.avatar_path, ch.health_notes, ch.active, ch.notes, ch.created_at, ch.updated_at,
        c.name AS class_name, c.organization_id AS organization_id, o.name AS organization_name
        FROM children ch
        LEFT JOIN classes c ON c.id = ch.class_id
        LEFT JOIN organizations o ON o.id = c.organization_id
        WHERE ch.id = $1`
	var detail models.ChildDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByStudentID checks student-id uniqueness optionally excluding an ID.
func (r *ChildRepository) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM children WHERE student_id = $1"
	args := []interface{}{studentID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student id: %w", err)
	}
	return true, nil
}

// Create inserts a new child record.
func (r *ChildRepository) Create(ctx context.Context, child *models.Child) error {
	if child.ID == "" {
		child.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if child.CreatedAt.IsZero() {
		child.CreatedAt = now
	}
	child.UpdatedAt = now
	const query = `INSERT INTO children (id, name, gender, birth_date, class_id, student_id, admission_date, parent_name, parent_phone, parent_email, home_address, avatar_path, health_notes, active, notes, created_at, updated_at)
        VALUES (:id, :name, :gender, :birth_date, :class_id, :student_id, :admission_date, :parent_name, :parent_phone, :parent_email, :home_address, :avatar_path, :health_notes, :active, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("create child: %w", err)
	}
	return nil
}

// Update modifies an existing child.
func (r *ChildRepository) Update(ctx context.Context, child *models.Child) error {
	child.UpdatedAt = time.Now().UTC()
	const query = `UPDATE children SET name = :name, gender = :gender, birth_date = :birth_date, class_id = :class_id, student_id = :student_id, admission_date = :admission_date, parent_name = :parent_name, parent_phone = :parent_phone, parent_email = :parent_email, home_address = :home_address, avatar_path = :avatar_path, health_notes = :health_notes, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, child); err != nil {
		return fmt.Errorf("update child: %w", err)
	}
	return nil
}

// SetAvatarPath stores or clears the avatar file path for a child.
func (r *ChildRepository) SetAvatarPath(ctx context.Context, id string, path *string) error {
	const query = `UPDATE children SET avatar_path = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("set child avatar: %w", err)
	}
	return nil
}

// Deactivate marks a child as withdrawn, keeping the record and its history.
func (r *ChildRepository) Deactivate(ctx context.Context, id string) error {
	return r.SetActive(ctx, id, false)
}

// SetActive flips the enrollment flag without touching any other column.
func (r *ChildRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE children SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set child active: %w", err)
	}
	return nil
}
