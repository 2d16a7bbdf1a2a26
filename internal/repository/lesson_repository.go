package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
)

const lessonColumns = `id, contract_id, date, state, notes, created_at, updated_at`

// LessonRepository provides persistence for materialized occurrences.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// List returns lessons matching the filter, ordered by date.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, error) {
	base := "SELECT " + lessonColumns + " FROM lessons WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ContractID != nil {
		conditions = append(conditions, fmt.Sprintf("contract_id = $%d", len(args)+1))
		args = append(args, *filter.ContractID)
	}
	if filter.TeacherID != nil {
		conditions = append(conditions, fmt.Sprintf("contract_id IN (SELECT id FROM contracts WHERE teacher_id = $%d AND deleted = FALSE)", len(args)+1))
		args = append(args, *filter.TeacherID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"

	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// FindByID loads one lesson.
func (r *LessonRepository) FindByID(ctx context.Context, id int64) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, "SELECT "+lessonColumns+" FROM lessons WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// UpsertDates materializes occurrences for the given dates. Existing rows
// keep their recorded state.
func (r *LessonRepository) UpsertDates(ctx context.Context, contractID int64, dates []time.Time) error {
	for _, date := range dates {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO lessons (contract_id, date, state, created_at, updated_at) VALUES ($1, $2, 'IDLE', NOW(), NOW())
			 ON CONFLICT (contract_id, date) DO NOTHING`,
			contractID, date); err != nil {
			return fmt.Errorf("upsert lesson: %w", err)
		}
	}
	return nil
}

// Update records the outcome of one occurrence.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET state = :state, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// PostponeForTeacherRange flips every pending occurrence of the teacher's
// contracts inside the inclusive date range to POSTPONED. One statement,
// one transaction boundary; this is the leave-acceptance cascade.
func (r *LessonRepository) PostponeForTeacherRange(ctx context.Context, teacherID int64, from, to time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE lessons SET state = 'POSTPONED', updated_at = NOW()
FROM contracts
WHERE lessons.contract_id = contracts.id
  AND contracts.teacher_id = $1
  AND contracts.deleted = FALSE
  AND lessons.state = 'IDLE'
  AND lessons.date >= $2 AND lessons.date <= $3`, teacherID, from, to)
	if err != nil {
		return 0, fmt.Errorf("postpone lessons for leave: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count postponed lessons: %w", err)
	}
	return affected, nil
}

// CountPendingAfter reports how many future pending occurrences a
// contract still has; a contract with any is not yet deletable.
func (r *LessonRepository) CountPendingAfter(ctx context.Context, contractID int64, after time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM lessons WHERE contract_id = $1 AND state = 'IDLE' AND date >= $2`,
		contractID, after)
	if err != nil {
		return 0, fmt.Errorf("count pending lessons: %w", err)
	}
	return count, nil
}
