package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type mockSuggestionUsers struct {
	teachers []models.User
	byID     map[int64]models.User
}

func (m *mockSuggestionUsers) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User)
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *mockSuggestionUsers) ListEmployedTeachersBySubject(ctx context.Context, subjectID int64) ([]models.User, error) {
	return m.teachers, nil
}

type mockSuggestionContracts struct {
	contracts []models.Contract
}

func (m *mockSuggestionContracts) ListInvolving(ctx context.Context, teacherID *int64, customerIDs, excludeIDs []int64) ([]models.Contract, error) {
	excluded := make(map[int64]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []models.Contract
	for _, c := range m.contracts {
		if excluded[c.ID] {
			continue
		}
		involved := teacherID != nil && c.TeacherID != nil && *c.TeacherID == *teacherID
		if !involved {
			for _, cid := range customerIDs {
				for _, own := range c.CustomerIDs {
					if cid == own {
						involved = true
					}
				}
			}
		}
		if involved {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockSuggestionLeaves struct {
	leaves map[int64][]models.Leave
}

func (m *mockSuggestionLeaves) ListAcceptedIntersecting(ctx context.Context, userID int64, from, to time.Time) ([]models.Leave, error) {
	return m.leaves[userID], nil
}

func employedTeacher(id int64, lastName, availability string) models.User {
	state := models.ApplicationEmployed
	return models.User{
		ID:               id,
		Role:             models.RoleTeacher,
		Person:           models.Person{FirstName: "T", LastName: lastName, Email: lastName + "@example.com"},
		Availability:     availability,
		ApplicationState: &state,
	}
}

func fullWeekCustomer(id int64) models.User {
	return models.User{
		ID:           id,
		Role:         models.RolePrivateCustomer,
		Person:       models.Person{FirstName: "C", LastName: "Kunde", Email: "kunde@example.com"},
		Availability: schedule.FullWeek,
	}
}

func mustEncode(t *testing.T, slots []schedule.TimeSlot) string {
	t.Helper()
	encoded, err := schedule.EncodeSlots(slots)
	require.NoError(t, err)
	return encoded
}

func newSuggestionServiceForTest(users *mockSuggestionUsers, contracts *mockSuggestionContracts, leaves *mockSuggestionLeaves) *SuggestionService {
	return NewSuggestionService(users, contracts, leaves, nil, nil, 52, 0, nil, nil)
}

func TestSuggestUnconstrainedEverything(t *testing.T) {
	users := &mockSuggestionUsers{
		teachers: []models.User{employedTeacher(3, "Berg", schedule.FullWeek)},
		byID:     map[int64]models.User{20: fullWeekCustomer(20)},
	}
	svc := newSuggestionServiceForTest(users, &mockSuggestionContracts{}, &mockSuggestionLeaves{})

	got, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:   1,
		CustomerIDs: []int64{20},
		StartDate:   "2024-09-02",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].TeacherID)
	assert.Len(t, got[0].Windows, 5)
	assert.Equal(t, schedule.TimeSlot{Weekday: 1, Start: "00:00", End: "24:00"}, got[0].Windows[0])
	// Unassigned candidate always closes the list.
	assert.Equal(t, models.UnassignedTeacherID, got[1].TeacherID)
	assert.Len(t, got[1].Windows, 5)
}

func TestSuggestSubtractsConflictingContract(t *testing.T) {
	teacherID := int64(3)
	avail := mustEncode(t, []schedule.TimeSlot{{Weekday: 1, Start: "09:00", End: "17:00"}})
	users := &mockSuggestionUsers{
		teachers: []models.User{employedTeacher(teacherID, "Berg", avail)},
		byID:     map[int64]models.User{20: fullWeekCustomer(20)},
	}
	contracts := &mockSuggestionContracts{contracts: []models.Contract{{
		ID:            8,
		TeacherID:     &teacherID,
		Weekday:       1,
		StartTime:     "14:00",
		EndTime:       "15:00",
		StartDate:     time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		IntervalWeeks: 1,
		State:         models.ContractAccepted,
		CustomerIDs:   []int64{99},
	}}}
	svc := newSuggestionServiceForTest(users, contracts, &mockSuggestionLeaves{})

	got, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:   1,
		CustomerIDs: []int64{20},
		StartDate:   "2024-09-02",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []schedule.TimeSlot{
		{Weekday: 1, Start: "09:00", End: "14:00"},
		{Weekday: 1, Start: "15:00", End: "17:00"},
	}, got[0].Windows)
}

func TestSuggestBiweeklyOppositePhaseCoexists(t *testing.T) {
	teacherID := int64(3)
	avail := mustEncode(t, []schedule.TimeSlot{{Weekday: 1, Start: "14:00", End: "15:00"}})
	users := &mockSuggestionUsers{
		teachers: []models.User{employedTeacher(teacherID, "Berg", avail)},
		byID:     map[int64]models.User{20: fullWeekCustomer(20)},
	}
	// Existing engagement runs on the even weeks.
	contracts := &mockSuggestionContracts{contracts: []models.Contract{{
		ID:            8,
		TeacherID:     &teacherID,
		Weekday:       1,
		StartTime:     "14:00",
		EndTime:       "15:00",
		StartDate:     time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		IntervalWeeks: 2,
		State:         models.ContractAccepted,
	}}}
	svc := newSuggestionServiceForTest(users, contracts, &mockSuggestionLeaves{})

	// Proposal on the odd weeks: same weekday and time, no collision.
	got, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:     1,
		CustomerIDs:   []int64{20},
		StartDate:     "2024-09-09",
		IntervalWeeks: 2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []schedule.TimeSlot{{Weekday: 1, Start: "14:00", End: "15:00"}}, got[0].Windows)

	// Same phase does collide; the teacher drops out entirely.
	got, err = svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:     1,
		CustomerIDs:   []int64{20},
		StartDate:     "2024-09-16",
		IntervalWeeks: 2,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.UnassignedTeacherID, got[0].TeacherID)
}

func TestSuggestAcceptedLeaveDropsWeekday(t *testing.T) {
	teacherID := int64(3)
	avail := mustEncode(t, []schedule.TimeSlot{
		{Weekday: 1, Start: "09:00", End: "12:00"},
		{Weekday: 3, Start: "09:00", End: "12:00"},
	})
	users := &mockSuggestionUsers{
		teachers: []models.User{employedTeacher(teacherID, "Berg", avail)},
		byID:     map[int64]models.User{20: fullWeekCustomer(20)},
	}
	leaves := &mockSuggestionLeaves{leaves: map[int64][]models.Leave{
		teacherID: {{
			UserID:    teacherID,
			State:     models.LeaveAccepted,
			StartDate: time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC),
		}},
	}}
	svc := newSuggestionServiceForTest(users, &mockSuggestionContracts{}, leaves)

	// Weekly proposal produces a Monday inside the one-day leave; Monday
	// goes away, Wednesday survives.
	got, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:   1,
		CustomerIDs: []int64{20},
		StartDate:   "2024-09-02",
		EndDate:     "2024-09-27",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []schedule.TimeSlot{{Weekday: 3, Start: "09:00", End: "12:00"}}, got[0].Windows)
}

func TestSuggestCustomerAvailabilityIntersected(t *testing.T) {
	teacherAvail := mustEncode(t, []schedule.TimeSlot{{Weekday: 2, Start: "08:00", End: "16:00"}})
	customer := fullWeekCustomer(20)
	customer.Availability = mustEncode(t, []schedule.TimeSlot{{Weekday: 2, Start: "14:00", End: "18:00"}})
	users := &mockSuggestionUsers{
		teachers: []models.User{employedTeacher(3, "Berg", teacherAvail)},
		byID:     map[int64]models.User{20: customer},
	}
	svc := newSuggestionServiceForTest(users, &mockSuggestionContracts{}, &mockSuggestionLeaves{})

	got, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:   1,
		CustomerIDs: []int64{20},
		StartDate:   "2024-09-02",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []schedule.TimeSlot{{Weekday: 2, Start: "14:00", End: "16:00"}}, got[0].Windows)
}

func TestSuggestDesiredWindowFiltersAndValidates(t *testing.T) {
	avail := mustEncode(t, []schedule.TimeSlot{{Weekday: 1, Start: "09:00", End: "12:00"}})
	users := &mockSuggestionUsers{
		teachers: []models.User{employedTeacher(3, "Berg", avail)},
		byID:     map[int64]models.User{20: fullWeekCustomer(20)},
	}
	svc := newSuggestionServiceForTest(users, &mockSuggestionContracts{}, &mockSuggestionLeaves{})

	got, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:   1,
		CustomerIDs: []int64{20},
		StartDate:   "2024-09-02",
		Weekday:     1,
		StartTime:   "10:00",
		EndTime:     "11:00",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []schedule.TimeSlot{{Weekday: 1, Start: "09:00", End: "12:00"}}, got[0].Windows)

	// A window the teacher cannot host removes them from the answer.
	got, err = svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:   1,
		CustomerIDs: []int64{20},
		StartDate:   "2024-09-02",
		Weekday:     1,
		StartTime:   "11:30",
		EndTime:     "13:00",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.UnassignedTeacherID, got[0].TeacherID)
}

func TestSuggestExcludedContractIgnored(t *testing.T) {
	teacherID := int64(3)
	avail := mustEncode(t, []schedule.TimeSlot{{Weekday: 1, Start: "14:00", End: "15:00"}})
	users := &mockSuggestionUsers{
		teachers: []models.User{employedTeacher(teacherID, "Berg", avail)},
		byID:     map[int64]models.User{20: fullWeekCustomer(20)},
	}
	contracts := &mockSuggestionContracts{contracts: []models.Contract{{
		ID:            8,
		TeacherID:     &teacherID,
		Weekday:       1,
		StartTime:     "14:00",
		EndTime:       "15:00",
		StartDate:     time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		IntervalWeeks: 1,
		State:         models.ContractAccepted,
	}}}
	svc := newSuggestionServiceForTest(users, contracts, &mockSuggestionLeaves{})

	// Editing contract 8 itself: its own window must not block.
	got, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:        1,
		CustomerIDs:      []int64{20},
		StartDate:        "2024-09-02",
		ExcludeContracts: []int64{8},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []schedule.TimeSlot{{Weekday: 1, Start: "14:00", End: "15:00"}}, got[0].Windows)
}

func TestSuggestOriginalTeacherSkipped(t *testing.T) {
	users := &mockSuggestionUsers{
		teachers: []models.User{
			employedTeacher(3, "Berg", schedule.FullWeek),
			employedTeacher(4, "Cram", schedule.FullWeek),
		},
		byID: map[int64]models.User{20: fullWeekCustomer(20)},
	}
	svc := newSuggestionServiceForTest(users, &mockSuggestionContracts{}, &mockSuggestionLeaves{})

	original := int64(3)
	got, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:         1,
		CustomerIDs:       []int64{20},
		StartDate:         "2024-09-02",
		OriginalTeacherID: &original,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].TeacherID)
}

func TestSuggestUnknownCustomer(t *testing.T) {
	users := &mockSuggestionUsers{byID: map[int64]models.User{}}
	svc := newSuggestionServiceForTest(users, &mockSuggestionContracts{}, &mockSuggestionLeaves{})

	_, err := svc.Suggest(context.Background(), dto.SuggestionRequest{
		SubjectID:   1,
		CustomerIDs: []int64{99},
		StartDate:   "2024-09-02",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
