package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
)

const userColumns = `id, role, salutation, first_name, last_name, email, phone, street, city, postal_code, password_hash, availability, deleted, application_state, fee, school_id, grade_level, school_name, created_at, updated_at`

// UserRepository provides persistence for the role-tagged users table.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// List returns users with optional filtering and pagination.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	base := "FROM users WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Deleted != nil {
		conditions = append(conditions, fmt.Sprintf("deleted = $%d", len(args)+1))
		args = append(args, *filter.Deleted)
	}
	if filter.SchoolID != nil {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, *filter.SchoolID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"last_name": true, "email": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "last_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, base, sortBy, order, size, offset)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// FindByID loads a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail loads a user by email for authentication.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE LOWER(email) = LOWER($1) AND deleted = FALSE", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail checks uniqueness, optionally excluding one id.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM users WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID > 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"

	var one int
	err := r.db.GetContext(ctx, &one, query, args...)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check user email: %w", err)
	}
	return true, nil
}

// Create stores a new user and assigns the generated id.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
INSERT INTO users (role, salutation, first_name, last_name, email, phone, street, city, postal_code, password_hash, availability, deleted, application_state, fee, school_id, grade_level, school_name, created_at, updated_at)
VALUES (:role, :salutation, :first_name, :last_name, :email, :phone, :street, :city, :postal_code, :password_hash, :availability, :deleted, :application_state, :fee, :school_id, :grade_level, :school_name, :created_at, :updated_at)
RETURNING id`

	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, user)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&user.ID); err != nil {
			return fmt.Errorf("scan user id: %w", err)
		}
	}
	return nil
}

// Update replaces a user's profile fields.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE users SET salutation = :salutation, first_name = :first_name, last_name = :last_name, email = :email,
 phone = :phone, street = :street, city = :city, postal_code = :postal_code, fee = :fee,
 school_id = :school_id, grade_level = :grade_level, school_name = :school_name, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdateAvailability replaces the stored interval-set literal wholesale.
func (r *UserRepository) UpdateAvailability(ctx context.Context, id int64, raw string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET availability = $2, updated_at = $3 WHERE id = $1`, id, raw, time.Now().UTC()); err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return nil
}

// UpdateApplicationState moves a teacher applicant to the given state.
func (r *UserRepository) UpdateApplicationState(ctx context.Context, id int64, state models.ApplicationState) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET application_state = $2, updated_at = $3 WHERE id = $1`, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("update application state: %w", err)
	}
	return nil
}

// SetPasswordHash stores new credentials for a user.
func (r *UserRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, time.Now().UTC()); err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

// SoftDelete flags a user as deleted.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET deleted = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	return nil
}

// ListEmployedTeachersBySubject returns hiring-complete teachers offering
// the subject, the candidate pool of the suggestion engine.
func (r *UserRepository) ListEmployedTeachersBySubject(ctx context.Context, subjectID int64) ([]models.User, error) {
	query := fmt.Sprintf(`
SELECT %s FROM users
WHERE role = 'TEACHER' AND deleted = FALSE AND application_state = 'EMPLOYED'
  AND id IN (SELECT teacher_id FROM teacher_subjects WHERE subject_id = $1)
ORDER BY last_name ASC, first_name ASC, id ASC`, userColumns)
	var teachers []models.User
	if err := r.db.SelectContext(ctx, &teachers, query, subjectID); err != nil {
		return nil, fmt.Errorf("list teachers by subject: %w", err)
	}
	return teachers, nil
}

// FindByIDs loads several users at once, keyed by id.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	if len(ids) == 0 {
		return map[int64]models.User{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = ANY($1)", userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load users by ids: %w", err)
	}
	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// ReplaceTeacherSubjects rewrites the teacher's subject assignments.
func (r *UserRepository) ReplaceTeacherSubjects(ctx context.Context, teacherID int64, subjectIDs []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace teacher subjects: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM teacher_subjects WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear teacher subjects: %w", err)
	}
	for _, subjectID := range subjectIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO teacher_subjects (teacher_id, subject_id) VALUES ($1, $2)`, teacherID, subjectID); err != nil {
			return fmt.Errorf("insert teacher subject: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace teacher subjects: %w", err)
	}
	return nil
}
