package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
)

const subjectColumns = `id, name, shorthand, color, created_at, updated_at`

// SubjectRepository provides persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns all subjects ordered by name.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, "SELECT "+subjectColumns+" FROM subjects ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID loads one subject.
func (r *SubjectRepository) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create stores a new subject and assigns the generated id.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now

	const query = `
INSERT INTO subjects (name, shorthand, color, created_at, updated_at)
VALUES (:name, :shorthand, :color, :created_at, :updated_at)
RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, subject)
	if err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&subject.ID); err != nil {
			return fmt.Errorf("scan subject id: %w", err)
		}
	}
	return nil
}

// Update rewrites a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, shorthand = :shorthand, color = :color, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject. Fails on a foreign key if contracts or
// teachers still reference it.
func (r *SubjectRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
