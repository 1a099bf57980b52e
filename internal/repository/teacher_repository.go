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

// TeacherRepository manages persistence for teacher roster records and their
// class assignments.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers visible to the scope matching the filter.
func (r *TeacherRepository) List(ctx context.Context, scope authz.Scope, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	base := "FROM teachers t JOIN organizations o ON o.id = t.organization_id"
	var args []interface{}
	conditions := []string{"1=1"}

	if cond, arg, ok := orgScopeCondition(scope, "t.organization_id", len(args)+1); cond != "" {
		conditions = append(conditions, cond)
		if ok {
			args = append(args, arg)
		}
	}
	if filter.OrganizationID != "" {
		conditions = append(conditions, fmt.Sprintf("t.organization_id = $%d", len(args)+1))
		args = append(args, filter.OrganizationID)
	}
	if filter.Position != "" {
		conditions = append(conditions, fmt.Sprintf("t.position = $%d", len(args)+1))
		args = append(args, filter.Position)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("t.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(t.name) LIKE $%d OR LOWER(COALESCE(t.phone, '')) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":       "t.name",
		"position":   "t.position",
		"hire_date":  "t.hire_date",
		"created_at": "t.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "t.created_at"
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

	query := fmt.Sprintf(`SELECT t.id, t.organization_id, t.name, t.gender, t.position, t.employee_id, t.phone, t.email, t.id_card,
        t.hire_date, t.photo_path, t.active, t.notes, t.created_at, t.updated_at, o.name AS organization_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var teachers []models.TeacherDetail
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}

	for i := range teachers {
		ids, err := r.ListClassIDs(ctx, teachers[i].ID)
		if err != nil {
			return nil, 0, err
		}
		teachers[i].ClassIDs = ids
	}
	return teachers, total, nil
}

// FindByID fetches a teacher detail by ID including class assignments.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	const query = `SELECT t.id, t.organization_id, t.name, t.gender, t.position, t.employee_id, t.phone, t.email, t.id_card,
        t.hire_date, t.photo_path, t.active, t.notes, t.created_at, t.updated_at, o.name AS organization_name
        FROM teachers t JOIN organizations o ON o.id = t.organization_id
        WHERE t.id = $1`
	var detail models.TeacherDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	ids, err := r.ListClassIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.ClassIDs = ids
	return &detail, nil
}

// FindByPhone returns a teacher by phone number within an organization.
func (r *TeacherRepository) FindByPhone(ctx context.Context, organizationID, phone string) (*models.Teacher, error) {
	const query = `SELECT id, organization_id, name, gender, position, employee_id, phone, email, id_card, hire_date, photo_path, active, notes, created_at, updated_at
        FROM teachers WHERE organization_id = $1 AND phone = $2 LIMIT 1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, organizationID, phone); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ExistsByPhone checks phone uniqueness optionally excluding an ID. NULL
// phones never participate in the constraint.
func (r *TeacherRepository) ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error) {
	return r.existsByColumn(ctx, "phone", phone, excludeID)
}

// ExistsByIDCard checks id-card uniqueness optionally excluding an ID.
func (r *TeacherRepository) ExistsByIDCard(ctx context.Context, idCard, excludeID string) (bool, error) {
	return r.existsByColumn(ctx, "id_card", idCard, excludeID)
}

func (r *TeacherRepository) existsByColumn(ctx context.Context, column, value, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM teachers WHERE %s = $1", column)
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher %s: %w", column, err)
	}
	return true, nil
}

// Create inserts a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, organization_id, name, gender, position, employee_id, phone, email, id_card, hire_date, photo_path, active, notes, created_at, updated_at)
        VALUES (:id, :organization_id, :name, :gender, :position, :employee_id, :phone, :email, :id_card, :hire_date, :photo_path, :active, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update modifies an existing teacher.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET name = :name, gender = :gender, position = :position, employee_id = :employee_id, phone = :phone, email = :email, id_card = :id_card, hire_date = :hire_date, photo_path = :photo_path, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// Deactivate marks a teacher as departed. Class assignments are cleared so a
// stale roster never widens a teacher account's visibility.
func (r *TeacherRepository) Deactivate(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deactivate teacher: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_classes WHERE teacher_id = $1`, id); err != nil {
		return fmt.Errorf("clear teacher classes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE teachers SET active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate teacher: %w", err)
	}
	return tx.Commit()
}

// SetActive flips the employment flag. Deactivation goes through Deactivate
// so the teaching-class assignments are cleared with it.
func (r *TeacherRepository) SetActive(ctx context.Context, id string, active bool) error {
	if !active {
		return r.Deactivate(ctx, id)
	}
	const query = `UPDATE teachers SET active = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("set teacher active: %w", err)
	}
	return nil
}

// ListClassIDs returns the teaching-class set for a teacher.
func (r *TeacherRepository) ListClassIDs(ctx context.Context, teacherID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT class_id FROM teacher_classes WHERE teacher_id = $1 ORDER BY class_id`, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher classes: %w", err)
	}
	return ids, nil
}

// ReplaceClasses replaces the teaching-class set atomically.
func (r *TeacherRepository) ReplaceClasses(ctx context.Context, teacherID string, classIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace classes: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_classes WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear teacher classes: %w", err)
	}
	for _, classID := range classIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO teacher_classes (teacher_id, class_id) VALUES ($1, $2)`, teacherID, classID); err != nil {
			return fmt.Errorf("assign class %s: %w", classID, err)
		}
	}
	return tx.Commit()
}
