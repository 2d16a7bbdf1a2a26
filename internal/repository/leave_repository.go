package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
)

const leaveColumns = `id, user_id, type, state, start_date, end_date, attachment_path, created_at, updated_at`

// LeaveRepository provides persistence for absences.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository creates a new leave repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// FindByID loads one leave.
func (r *LeaveRepository) FindByID(ctx context.Context, id int64) (*models.Leave, error) {
	var leave models.Leave
	if err := r.db.GetContext(ctx, &leave, "SELECT "+leaveColumns+" FROM leaves WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// ListByUser returns a user's leaves, newest range first.
func (r *LeaveRepository) ListByUser(ctx context.Context, userID int64) ([]models.Leave, error) {
	var leaves []models.Leave
	query := "SELECT " + leaveColumns + " FROM leaves WHERE user_id = $1 ORDER BY start_date DESC, id DESC"
	if err := r.db.SelectContext(ctx, &leaves, query, userID); err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	return leaves, nil
}

// ListByState returns every leave in the given state, oldest first, for
// the admin review queue.
func (r *LeaveRepository) ListByState(ctx context.Context, state models.LeaveState) ([]models.Leave, error) {
	var leaves []models.Leave
	query := "SELECT " + leaveColumns + " FROM leaves WHERE state = $1 ORDER BY start_date ASC, id ASC"
	if err := r.db.SelectContext(ctx, &leaves, query, state); err != nil {
		return nil, fmt.Errorf("list leaves by state: %w", err)
	}
	return leaves, nil
}

// ListAcceptedIntersecting returns the user's accepted leaves whose
// inclusive range touches [from, to].
func (r *LeaveRepository) ListAcceptedIntersecting(ctx context.Context, userID int64, from, to time.Time) ([]models.Leave, error) {
	var leaves []models.Leave
	query := "SELECT " + leaveColumns + ` FROM leaves
WHERE user_id = $1 AND state = 'ACCEPTED' AND start_date <= $3 AND end_date >= $2
ORDER BY start_date ASC`
	if err := r.db.SelectContext(ctx, &leaves, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list intersecting leaves: %w", err)
	}
	return leaves, nil
}

// Create stores a new leave and assigns the generated id.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.Leave) error {
	now := time.Now().UTC()
	leave.CreatedAt = now
	leave.UpdatedAt = now

	const query = `
INSERT INTO leaves (user_id, type, state, start_date, end_date, attachment_path, created_at, updated_at)
VALUES (:user_id, :type, :state, :start_date, :end_date, :attachment_path, :created_at, :updated_at)
RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, leave)
	if err != nil {
		return fmt.Errorf("create leave: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&leave.ID); err != nil {
			return fmt.Errorf("scan leave id: %w", err)
		}
	}
	return nil
}

// Update rewrites a pending leave's type and range.
func (r *LeaveRepository) Update(ctx context.Context, leave *models.Leave) error {
	leave.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE leaves SET type = :type, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
WHERE id = :id AND state = 'PENDING'`
	if _, err := r.db.NamedExecContext(ctx, query, leave); err != nil {
		return fmt.Errorf("update leave: %w", err)
	}
	return nil
}

// UpdateState records the admin decision.
func (r *LeaveRepository) UpdateState(ctx context.Context, id int64, state models.LeaveState) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE leaves SET state = $2, updated_at = $3 WHERE id = $1`, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("update leave state: %w", err)
	}
	return nil
}

// SetAttachment stores the path of an uploaded proof document.
func (r *LeaveRepository) SetAttachment(ctx context.Context, id int64, path string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE leaves SET attachment_path = $2, updated_at = $3 WHERE id = $1`, id, path, time.Now().UTC()); err != nil {
		return fmt.Errorf("set leave attachment: %w", err)
	}
	return nil
}

// Delete removes a pending leave outright.
func (r *LeaveRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM leaves WHERE id = $1 AND state = 'PENDING'`, id); err != nil {
		return fmt.Errorf("delete leave: %w", err)
	}
	return nil
}
