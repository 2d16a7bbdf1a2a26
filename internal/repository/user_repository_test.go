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
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "role", "salutation", "first_name", "last_name", "email", "phone", "street", "city", "postal_code", "password_hash", "availability", "deleted", "application_state", "fee", "school_id", "grade_level", "school_name", "created_at", "updated_at"})
}

func TestUserRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	state := models.ApplicationCreated
	user := &models.User{
		Role: models.RoleTeacher,
		Person: models.Person{
			FirstName: "Anna",
			LastName:  "Berg",
			Email:     "anna.berg@example.com",
		},
		Availability:     schedule.FullWeek,
		ApplicationState: &state,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.Equal(t, int64(7), user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := userRows().AddRow(
		int64(3), "TEACHER", nil, "Anna", "Berg", "anna.berg@example.com", nil, nil, nil, nil, nil,
		schedule.FullWeek, false, "EMPLOYED", 28.5, nil, nil, nil, time.Now(), time.Now(),
	)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, role, salutation")).
		WithArgs("TEACHER", "%berg%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WithArgs("TEACHER", "%berg%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	role := models.RoleTeacher
	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Search: "berg"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, users, 1)
	require.Equal(t, int64(3), users[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryExistsByEmailNoMatch(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"one"}))

	exists, err := repo.ExistsByEmail(context.Background(), "nobody@example.com", 0)
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateApplicationState(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET application_state")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateApplicationState(context.Background(), 3, models.ApplicationEmployed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateAvailability(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET availability")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateAvailability(context.Background(), 3, "{[2001-01-01 09:00,2001-01-01 12:00)}"))
	require.NoError(t, mock.ExpectationsWereMet())
}
