package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type mockTeacherUsers struct {
	byID         map[int64]models.User
	emails       map[string]bool
	created      *models.User
	updated      *models.User
	availability map[int64]string
	states       map[int64]models.ApplicationState
	subjects     map[int64][]int64
	deleted      []int64
	nextID       int64
}

func (m *mockTeacherUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return nil, 0, nil
}

func (m *mockTeacherUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherUsers) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	return m.emails[email], nil
}

func (m *mockTeacherUsers) Create(ctx context.Context, user *models.User) error {
	m.nextID++
	user.ID = m.nextID
	if m.byID == nil {
		m.byID = make(map[int64]models.User)
	}
	m.byID[user.ID] = *user
	m.created = user
	return nil
}

func (m *mockTeacherUsers) Update(ctx context.Context, user *models.User) error {
	m.byID[user.ID] = *user
	m.updated = user
	return nil
}

func (m *mockTeacherUsers) UpdateAvailability(ctx context.Context, id int64, raw string) error {
	if m.availability == nil {
		m.availability = make(map[int64]string)
	}
	m.availability[id] = raw
	if u, ok := m.byID[id]; ok {
		u.Availability = raw
		m.byID[id] = u
	}
	return nil
}

func (m *mockTeacherUsers) UpdateApplicationState(ctx context.Context, id int64, state models.ApplicationState) error {
	if m.states == nil {
		m.states = make(map[int64]models.ApplicationState)
	}
	m.states[id] = state
	if u, ok := m.byID[id]; ok {
		u.ApplicationState = &state
		m.byID[id] = u
	}
	return nil
}

func (m *mockTeacherUsers) SoftDelete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTeacherUsers) ReplaceTeacherSubjects(ctx context.Context, teacherID int64, subjectIDs []int64) error {
	if m.subjects == nil {
		m.subjects = make(map[int64][]int64)
	}
	m.subjects[teacherID] = subjectIDs
	return nil
}

func teacherInState(id int64, state models.ApplicationState) models.User {
	return models.User{
		ID:               id,
		Role:             models.RoleTeacher,
		Person:           models.Person{FirstName: "Anna", LastName: "Berg", Email: "anna.berg@example.com"},
		Availability:     schedule.FullWeek,
		ApplicationState: &state,
	}
}

func TestTeacherCreateStartsPipeline(t *testing.T) {
	repo := &mockTeacherUsers{}
	svc := NewTeacherService(repo, nil, nil, nil, nil)

	teacher, err := svc.Create(context.Background(), adminClaims(), dto.CreateTeacherRequest{
		PersonPayload: dto.PersonPayload{FirstName: "Anna", LastName: "Berg", Email: "anna.berg@example.com"},
		SubjectIDs:    []int64{1, 2},
	})
	require.NoError(t, err)
	require.NotNil(t, teacher.ApplicationState)
	assert.Equal(t, models.ApplicationCreated, *teacher.ApplicationState)
	assert.Equal(t, schedule.FullWeek, teacher.Availability)
	assert.Equal(t, []int64{1, 2}, repo.subjects[teacher.ID])
}

func TestTeacherCreateRejectsDuplicateEmail(t *testing.T) {
	repo := &mockTeacherUsers{emails: map[string]bool{"anna.berg@example.com": true}}
	svc := NewTeacherService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), adminClaims(), dto.CreateTeacherRequest{
		PersonPayload: dto.PersonPayload{FirstName: "Anna", LastName: "Berg", Email: "anna.berg@example.com"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestApplicationStateAdvancesOneStep(t *testing.T) {
	repo := &mockTeacherUsers{byID: map[int64]models.User{3: teacherInState(3, models.ApplicationInterview)}}
	svc := NewTeacherService(repo, nil, nil, nil, nil)

	teacher, err := svc.SetApplicationState(context.Background(), adminClaims(), 3, dto.ApplicationStateRequest{State: "APPLIED"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApplied, *teacher.ApplicationState)
	assert.Equal(t, models.ApplicationApplied, repo.states[3])
}

func TestApplicationStateRejectsSkipAndRollback(t *testing.T) {
	repo := &mockTeacherUsers{byID: map[int64]models.User{3: teacherInState(3, models.ApplicationInterview)}}
	svc := NewTeacherService(repo, nil, nil, nil, nil)

	// Skipping a stage.
	_, err := svc.SetApplicationState(context.Background(), adminClaims(), 3, dto.ApplicationStateRequest{State: "EMPLOYED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)

	// Going backwards.
	_, err = svc.SetApplicationState(context.Background(), adminClaims(), 3, dto.ApplicationStateRequest{State: "CREATED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)

	// Staying in place is fine.
	_, err = svc.SetApplicationState(context.Background(), adminClaims(), 3, dto.ApplicationStateRequest{State: "INTERVIEW"})
	require.NoError(t, err)
	assert.Empty(t, repo.states)
}

func TestTeacherUpdateReplacesAvailabilityWholesale(t *testing.T) {
	repo := &mockTeacherUsers{byID: map[int64]models.User{3: teacherInState(3, models.ApplicationEmployed)}}
	svc := NewTeacherService(repo, nil, nil, nil, nil)

	slots := []schedule.TimeSlot{{Weekday: 2, Start: "09:00", End: "12:00"}}
	teacher, err := svc.Update(context.Background(), &models.JWTClaims{UserID: 3, Role: models.RoleTeacher}, 3, dto.UpdateTeacherRequest{
		PersonPayload: dto.PersonPayload{FirstName: "Anna", LastName: "Berg", Email: "anna.berg@example.com"},
		Availability:  slots,
	})
	require.NoError(t, err)
	expected, encErr := schedule.EncodeSlots(slots)
	require.NoError(t, encErr)
	assert.Equal(t, expected, teacher.Availability)
	assert.Equal(t, expected, repo.availability[3])

	// Clearing the slots falls back to the unconstrained sentinel.
	teacher, err = svc.Update(context.Background(), &models.JWTClaims{UserID: 3, Role: models.RoleTeacher}, 3, dto.UpdateTeacherRequest{
		PersonPayload: dto.PersonPayload{FirstName: "Anna", LastName: "Berg", Email: "anna.berg@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, schedule.FullWeek, teacher.Availability)
}

func TestTeacherUpdateForbiddenForOthers(t *testing.T) {
	repo := &mockTeacherUsers{byID: map[int64]models.User{3: teacherInState(3, models.ApplicationEmployed)}}
	svc := NewTeacherService(repo, nil, nil, nil, nil)

	_, err := svc.Update(context.Background(), &models.JWTClaims{UserID: 4, Role: models.RoleTeacher}, 3, dto.UpdateTeacherRequest{
		PersonPayload: dto.PersonPayload{FirstName: "Anna", LastName: "Berg", Email: "anna.berg@example.com"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
