package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type mockLeaveRepo struct {
	byID    map[int64]models.Leave
	created *models.Leave
	updated *models.Leave
	states  map[int64]models.LeaveState
	deleted []int64
	nextID  int64
}

func (m *mockLeaveRepo) FindByID(ctx context.Context, id int64) (*models.Leave, error) {
	if l, ok := m.byID[id]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLeaveRepo) ListByUser(ctx context.Context, userID int64) ([]models.Leave, error) {
	var out []models.Leave
	for _, l := range m.byID {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLeaveRepo) ListByState(ctx context.Context, state models.LeaveState) ([]models.Leave, error) {
	var out []models.Leave
	for _, l := range m.byID {
		if l.State == state {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLeaveRepo) Create(ctx context.Context, leave *models.Leave) error {
	m.nextID++
	leave.ID = m.nextID
	if m.byID == nil {
		m.byID = make(map[int64]models.Leave)
	}
	m.byID[leave.ID] = *leave
	m.created = leave
	return nil
}

func (m *mockLeaveRepo) Update(ctx context.Context, leave *models.Leave) error {
	m.byID[leave.ID] = *leave
	m.updated = leave
	return nil
}

func (m *mockLeaveRepo) UpdateState(ctx context.Context, id int64, state models.LeaveState) error {
	if m.states == nil {
		m.states = make(map[int64]models.LeaveState)
	}
	m.states[id] = state
	if l, ok := m.byID[id]; ok {
		l.State = state
		m.byID[id] = l
	}
	return nil
}

func (m *mockLeaveRepo) SetAttachment(ctx context.Context, id int64, path string) error {
	if l, ok := m.byID[id]; ok {
		l.AttachmentPath = &path
		m.byID[id] = l
	}
	return nil
}

func (m *mockLeaveRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	delete(m.byID, id)
	return nil
}

type mockLeaveUsers struct {
	byID map[int64]models.User
}

func (m *mockLeaveUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func pendingLeave(id, userID int64) models.Leave {
	return models.Leave{
		ID:        id,
		UserID:    userID,
		Type:      models.LeaveSick,
		State:     models.LeavePending,
		StartDate: time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC),
	}
}

func newLeaveServiceForTest(leaves *mockLeaveRepo, lessons *mockConflictLessons) *LeaveService {
	users := &mockLeaveUsers{byID: map[int64]models.User{
		3: employedTeacher(3, "Berg", "{[2001-01-01 00:00,2001-01-08 00:00)}"),
	}}
	conflicts := NewConflictService(&mockConflictContracts{}, lessons, &mockConflictLeaves{}, nil, nil)
	return NewLeaveService(leaves, users, conflicts, nil, nil, nil, 0, nil, nil)
}

func TestLeaveCreateDefaultsToCaller(t *testing.T) {
	repo := &mockLeaveRepo{}
	svc := newLeaveServiceForTest(repo, &mockConflictLessons{})

	leave, err := svc.Create(context.Background(), &models.JWTClaims{UserID: 3, Role: models.RoleTeacher}, dto.CreateLeaveRequest{
		Type:      "SICK",
		StartDate: "2024-10-07",
		EndDate:   "2024-10-11",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), leave.UserID)
	assert.Equal(t, models.LeavePending, leave.State)
}

func TestLeaveCreateForbiddenForOthers(t *testing.T) {
	svc := newLeaveServiceForTest(&mockLeaveRepo{}, &mockConflictLessons{})

	_, err := svc.Create(context.Background(), &models.JWTClaims{UserID: 4, Role: models.RoleTeacher}, dto.CreateLeaveRequest{
		UserID:    3,
		Type:      "REGULAR",
		StartDate: "2024-10-07",
		EndDate:   "2024-10-11",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLeaveCreateRejectsInvertedRange(t *testing.T) {
	svc := newLeaveServiceForTest(&mockLeaveRepo{}, &mockConflictLessons{})

	_, err := svc.Create(context.Background(), &models.JWTClaims{UserID: 3, Role: models.RoleTeacher}, dto.CreateLeaveRequest{
		Type:      "SICK",
		StartDate: "2024-10-11",
		EndDate:   "2024-10-07",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLeaveUpdateOnlyWhilePending(t *testing.T) {
	accepted := pendingLeave(5, 3)
	accepted.State = models.LeaveAccepted
	repo := &mockLeaveRepo{byID: map[int64]models.Leave{5: accepted}}
	svc := newLeaveServiceForTest(repo, &mockConflictLessons{})

	_, err := svc.Update(context.Background(), &models.JWTClaims{UserID: 3, Role: models.RoleTeacher}, 5, dto.UpdateLeaveRequest{
		Type:      "REGULAR",
		StartDate: "2024-10-08",
		EndDate:   "2024-10-09",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.updated)
}

func TestLeaveAcceptCascadesToLessons(t *testing.T) {
	repo := &mockLeaveRepo{byID: map[int64]models.Leave{5: pendingLeave(5, 3)}}
	lessons := &mockConflictLessons{affected: 2}
	svc := newLeaveServiceForTest(repo, lessons)

	leave, err := svc.SetState(context.Background(), adminClaims(), 5, "ACCEPTED")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveAccepted, leave.State)
	assert.Equal(t, models.LeaveAccepted, repo.states[5])
	assert.Equal(t, 1, lessons.calls)
	assert.Equal(t, int64(3), lessons.teacherID)
}

func TestLeaveAcceptRetriesAfterCascadeFailure(t *testing.T) {
	repo := &mockLeaveRepo{byID: map[int64]models.Leave{5: pendingLeave(5, 3)}}
	lessons := &mockConflictLessons{affected: 2, failOnce: errors.New("connection reset by peer")}
	svc := newLeaveServiceForTest(repo, lessons)

	// First attempt fails mid-cascade: the leave must stay PENDING so the
	// admin can decide again.
	_, err := svc.SetState(context.Background(), adminClaims(), 5, "ACCEPTED")
	require.Error(t, err)
	assert.Empty(t, repo.states)
	assert.Equal(t, models.LeavePending, repo.byID[5].State)

	// Second attempt re-runs the cascade and settles the leave.
	leave, err := svc.SetState(context.Background(), adminClaims(), 5, "ACCEPTED")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveAccepted, leave.State)
	assert.Equal(t, models.LeaveAccepted, repo.states[5])
	assert.Equal(t, 2, lessons.calls)
}

func TestLeaveDeclineLeavesLessonsAlone(t *testing.T) {
	repo := &mockLeaveRepo{byID: map[int64]models.Leave{5: pendingLeave(5, 3)}}
	lessons := &mockConflictLessons{}
	svc := newLeaveServiceForTest(repo, lessons)

	leave, err := svc.SetState(context.Background(), adminClaims(), 5, "DECLINED")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveDeclined, leave.State)
	assert.Zero(t, lessons.calls)
}

func TestLeaveSetStateSettledIsFinal(t *testing.T) {
	declined := pendingLeave(5, 3)
	declined.State = models.LeaveDeclined
	repo := &mockLeaveRepo{byID: map[int64]models.Leave{5: declined}}
	svc := newLeaveServiceForTest(repo, &mockConflictLessons{})

	_, err := svc.SetState(context.Background(), adminClaims(), 5, "ACCEPTED")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)

	// Repeating the settled state is a no-op, not an error.
	leave, err := svc.SetState(context.Background(), adminClaims(), 5, "DECLINED")
	require.NoError(t, err)
	assert.Equal(t, models.LeaveDeclined, leave.State)
}

func TestLeaveSetStateAdminOnly(t *testing.T) {
	repo := &mockLeaveRepo{byID: map[int64]models.Leave{5: pendingLeave(5, 3)}}
	svc := newLeaveServiceForTest(repo, &mockConflictLessons{})

	_, err := svc.SetState(context.Background(), &models.JWTClaims{UserID: 3, Role: models.RoleTeacher}, 5, "ACCEPTED")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLeaveDeleteOnlyPending(t *testing.T) {
	accepted := pendingLeave(5, 3)
	accepted.State = models.LeaveAccepted
	repo := &mockLeaveRepo{byID: map[int64]models.Leave{
		5: accepted,
		6: pendingLeave(6, 3),
	}}
	svc := newLeaveServiceForTest(repo, &mockConflictLessons{})
	teacher := &models.JWTClaims{UserID: 3, Role: models.RoleTeacher}

	err := svc.Delete(context.Background(), teacher, 5)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), teacher, 6))
	assert.Equal(t, []int64{6}, repo.deleted)
}
