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

const contractColumns = `id, subject_id, teacher_id, weekday, start_time, end_time, start_date, end_date, interval_weeks, state, contract_type, parent_contract_id, school_id, deleted, created_at, updated_at`

// ContractRepository provides persistence for contracts and their
// customer assignments.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository creates a new contract repository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// List returns contracts with optional filtering and pagination.
func (r *ContractRepository) List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, int, error) {
	base := "FROM contracts WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != nil {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, *filter.TeacherID)
	}
	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("id IN (SELECT contract_id FROM contract_customers WHERE customer_id = $%d)", len(args)+1))
		args = append(args, *filter.CustomerID)
	}
	if filter.SubjectID != nil {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, *filter.SubjectID)
	}
	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.Deleted != nil {
		conditions = append(conditions, fmt.Sprintf("deleted = $%d", len(args)+1))
		args = append(args, *filter.Deleted)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_date ASC, id ASC LIMIT %d OFFSET %d", contractColumns, base, size, offset)
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list contracts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count contracts: %w", err)
	}

	if err := r.loadCustomers(ctx, contracts); err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

// FindByID loads one contract including its customer ids.
func (r *ContractRepository) FindByID(ctx context.Context, id int64) (*models.Contract, error) {
	query := fmt.Sprintf("SELECT %s FROM contracts WHERE id = $1", contractColumns)
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		return nil, err
	}
	one := []models.Contract{contract}
	if err := r.loadCustomers(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// ListActiveByTeacher returns every non-deleted contract assigned to the
// teacher, without pagination. Conflict and absence checks must see the
// complete set, never a page of it.
func (r *ContractRepository) ListActiveByTeacher(ctx context.Context, teacherID int64) ([]models.Contract, error) {
	query := fmt.Sprintf("SELECT %s FROM contracts WHERE deleted = FALSE AND teacher_id = $1 ORDER BY start_date ASC, id ASC", contractColumns)
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher contracts: %w", err)
	}
	if err := r.loadCustomers(ctx, contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

// ListInvolving returns live contracts touching the given teacher or any
// of the given customers. Declined, deleted and explicitly excluded rows
// are skipped; these are the rows a new proposal can collide with.
func (r *ContractRepository) ListInvolving(ctx context.Context, teacherID *int64, customerIDs, excludeIDs []int64) ([]models.Contract, error) {
	var parties []string
	var args []interface{}

	if teacherID != nil {
		parties = append(parties, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, *teacherID)
	}
	if len(customerIDs) > 0 {
		parties = append(parties, fmt.Sprintf("id IN (SELECT contract_id FROM contract_customers WHERE customer_id = ANY($%d))", len(args)+1))
		args = append(args, pq.Array(customerIDs))
	}
	if len(parties) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT %s FROM contracts WHERE deleted = FALSE AND state <> 'DECLINED' AND (%s)",
		contractColumns, strings.Join(parties, " OR "))
	if len(excludeIDs) > 0 {
		query += fmt.Sprintf(" AND id <> ALL($%d)", len(args)+1)
		args = append(args, pq.Array(excludeIDs))
	}
	query += " ORDER BY id ASC"

	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query, args...); err != nil {
		return nil, fmt.Errorf("list involved contracts: %w", err)
	}
	if err := r.loadCustomers(ctx, contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

// ConflictCheck re-reads the schedules a proposal can collide with and
// decides whether the write may go ahead. It runs inside the write
// transaction, after the teacher row is locked.
type ConflictCheck func(involved []models.Contract) error

// CreateChecked inserts a contract, its customer assignments and its
// initial lesson rows in one transaction. The assigned teacher's user row
// is locked first so two overlapping proposals serialize; check then sees
// a consistent view of every contract the proposal touches.
func (r *ContractRepository) CreateChecked(ctx context.Context, contract *models.Contract, lessons []models.Lesson, check ConflictCheck) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create contract: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.runCheck(ctx, tx, contract, nil, check); err != nil {
		return err
	}

	now := time.Now().UTC()
	contract.CreatedAt = now
	contract.UpdatedAt = now

	const insert = `
INSERT INTO contracts (subject_id, teacher_id, weekday, start_time, end_time, start_date, end_date, interval_weeks, state, contract_type, parent_contract_id, school_id, deleted, created_at, updated_at)
VALUES (:subject_id, :teacher_id, :weekday, :start_time, :end_time, :start_date, :end_date, :interval_weeks, :state, :contract_type, :parent_contract_id, :school_id, :deleted, :created_at, :updated_at)
RETURNING id`
	var rows *sqlx.Rows
	rows, err = sqlx.NamedQueryContext(ctx, tx, insert, contract)
	if err != nil {
		return fmt.Errorf("create contract: %w", err)
	}
	if rows.Next() {
		if err = rows.Scan(&contract.ID); err != nil {
			rows.Close() //nolint:errcheck
			return fmt.Errorf("scan contract id: %w", err)
		}
	}
	rows.Close() //nolint:errcheck

	if err = r.replaceCustomers(ctx, tx, contract.ID, contract.CustomerIDs); err != nil {
		return err
	}
	if err = insertLessons(ctx, tx, contract.ID, lessons); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create contract: %w", err)
	}
	return nil
}

// UpdateChecked replaces a contract's schedule, customers and projected
// lessons under the same lock-and-recheck discipline as CreateChecked.
// Lesson rows on dates the new recurrence no longer produces are removed
// unless they already record an outcome.
func (r *ContractRepository) UpdateChecked(ctx context.Context, contract *models.Contract, lessons []models.Lesson, keepDates []time.Time, check ConflictCheck) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update contract: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.runCheck(ctx, tx, contract, []int64{contract.ID}, check); err != nil {
		return err
	}

	contract.UpdatedAt = time.Now().UTC()
	const update = `
UPDATE contracts SET subject_id = :subject_id, teacher_id = :teacher_id, weekday = :weekday,
 start_time = :start_time, end_time = :end_time, start_date = :start_date, end_date = :end_date,
 interval_weeks = :interval_weeks, state = :state, contract_type = :contract_type,
 school_id = :school_id, updated_at = :updated_at
WHERE id = :id AND deleted = FALSE`
	if _, err = sqlx.NamedExecContext(ctx, tx, update, contract); err != nil {
		return fmt.Errorf("update contract: %w", err)
	}

	if err = r.replaceCustomers(ctx, tx, contract.ID, contract.CustomerIDs); err != nil {
		return err
	}

	dates := make([]time.Time, 0, len(keepDates))
	dates = append(dates, keepDates...)
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM lessons WHERE contract_id = $1 AND state = 'IDLE' AND date <> ALL($2)`,
		contract.ID, pq.Array(dates)); err != nil {
		return fmt.Errorf("prune contract lessons: %w", err)
	}
	if err = insertLessons(ctx, tx, contract.ID, lessons); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update contract: %w", err)
	}
	return nil
}

// runCheck locks the teacher row, re-reads the contracts the proposal
// touches and runs the conflict decision against that snapshot.
func (r *ContractRepository) runCheck(ctx context.Context, tx *sqlx.Tx, contract *models.Contract, excludeIDs []int64, check ConflictCheck) error {
	if check == nil {
		return nil
	}
	if contract.TeacherID != nil {
		var locked int64
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, *contract.TeacherID); err != nil {
			return fmt.Errorf("lock teacher row: %w", err)
		}
	}

	var parties []string
	var args []interface{}
	if contract.TeacherID != nil {
		parties = append(parties, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, *contract.TeacherID)
	}
	if len(contract.CustomerIDs) > 0 {
		parties = append(parties, fmt.Sprintf("id IN (SELECT contract_id FROM contract_customers WHERE customer_id = ANY($%d))", len(args)+1))
		args = append(args, pq.Array(contract.CustomerIDs))
	}
	if len(parties) == 0 {
		return check(nil)
	}

	query := fmt.Sprintf("SELECT %s FROM contracts WHERE deleted = FALSE AND state <> 'DECLINED' AND (%s)",
		contractColumns, strings.Join(parties, " OR "))
	if len(excludeIDs) > 0 {
		query += fmt.Sprintf(" AND id <> ALL($%d)", len(args)+1)
		args = append(args, pq.Array(excludeIDs))
	}

	var involved []models.Contract
	if err := tx.SelectContext(ctx, &involved, query, args...); err != nil {
		return fmt.Errorf("reread involved contracts: %w", err)
	}
	for i := range involved {
		var ids []int64
		if err := tx.SelectContext(ctx, &ids, `SELECT customer_id FROM contract_customers WHERE contract_id = $1 ORDER BY customer_id`, involved[i].ID); err != nil {
			return fmt.Errorf("reread contract customers: %w", err)
		}
		involved[i].CustomerIDs = ids
	}
	return check(involved)
}

// UpdateState records the outcome of an accept/decline decision.
func (r *ContractRepository) UpdateState(ctx context.Context, id int64, state models.ContractState) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE contracts SET state = $2, updated_at = $3 WHERE id = $1`, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("update contract state: %w", err)
	}
	return nil
}

// SoftDelete flags a contract as deleted and drops its pending lessons.
func (r *ContractRepository) SoftDelete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete contract: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE contracts SET deleted = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete contract: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM lessons WHERE contract_id = $1 AND state = 'IDLE'`, id); err != nil {
		return fmt.Errorf("drop pending lessons: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete contract: %w", err)
	}
	return nil
}

func (r *ContractRepository) replaceCustomers(ctx context.Context, tx *sqlx.Tx, contractID int64, customerIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM contract_customers WHERE contract_id = $1`, contractID); err != nil {
		return fmt.Errorf("clear contract customers: %w", err)
	}
	for _, customerID := range customerIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO contract_customers (contract_id, customer_id) VALUES ($1, $2)`, contractID, customerID); err != nil {
			return fmt.Errorf("insert contract customer: %w", err)
		}
	}
	return nil
}

func (r *ContractRepository) loadCustomers(ctx context.Context, contracts []models.Contract) error {
	for i := range contracts {
		var ids []int64
		if err := r.db.SelectContext(ctx, &ids, `SELECT customer_id FROM contract_customers WHERE contract_id = $1 ORDER BY customer_id`, contracts[i].ID); err != nil {
			return fmt.Errorf("load contract customers: %w", err)
		}
		contracts[i].CustomerIDs = ids
	}
	return nil
}

func insertLessons(ctx context.Context, tx *sqlx.Tx, contractID int64, lessons []models.Lesson) error {
	for i := range lessons {
		lessons[i].ContractID = contractID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lessons (contract_id, date, state, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW())
			 ON CONFLICT (contract_id, date) DO NOTHING`,
			contractID, lessons[i].Date, lessons[i].State); err != nil {
			return fmt.Errorf("insert lesson: %w", err)
		}
	}
	return nil
}
