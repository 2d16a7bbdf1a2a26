package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
)

func newLeaveRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLeaveRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO leaves")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	leave := &models.Leave{
		UserID:    3,
		Type:      models.LeaveSick,
		State:     models.LeavePending,
		StartDate: time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), leave))
	require.Equal(t, int64(9), leave.ID)

	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "state", "start_date", "end_date", "attachment_path", "created_at", "updated_at"}).
		AddRow(leave.ID, leave.UserID, leave.Type, leave.State, leave.StartDate, leave.EndDate, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, type")).
		WithArgs(leave.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), leave.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeaveSick, found.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryListAcceptedIntersecting(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	from := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "state", "start_date", "end_date", "attachment_path", "created_at", "updated_at"}).
		AddRow(int64(9), int64(3), "REGULAR", "ACCEPTED", from.AddDate(0, 0, 6), from.AddDate(0, 0, 10), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, type")).
		WithArgs(int64(3), from, to).
		WillReturnRows(rows)

	leaves, err := repo.ListAcceptedIntersecting(context.Background(), 3, from, to)
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	require.Equal(t, models.LeaveAccepted, leaves[0].State)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryUpdateOnlyTouchesPending(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leaves SET type")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	leave := &models.Leave{
		ID:        9,
		Type:      models.LeaveRegular,
		StartDate: time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 10, 9, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Update(context.Background(), leave))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()

	repo := NewLeaveRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leaves SET state")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateState(context.Background(), 9, models.LeaveAccepted))
	require.NoError(t, mock.ExpectationsWereMet())
}
