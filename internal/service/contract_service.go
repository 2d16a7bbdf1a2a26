package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/repository"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type contractRepository interface {
	List(ctx context.Context, filter models.ContractFilter) ([]models.Contract, int, error)
	FindByID(ctx context.Context, id int64) (*models.Contract, error)
	CreateChecked(ctx context.Context, contract *models.Contract, lessons []models.Lesson, check repository.ConflictCheck) error
	UpdateChecked(ctx context.Context, contract *models.Contract, lessons []models.Lesson, keepDates []time.Time, check repository.ConflictCheck) error
	UpdateState(ctx context.Context, id int64, state models.ContractState) error
	SoftDelete(ctx context.Context, id int64) error
}

type contractUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error)
}

type contractLessonRepository interface {
	CountPendingAfter(ctx context.Context, contractID int64, after time.Time) (int, error)
}

// ContractService owns the lifecycle of recurring teaching engagements:
// validation, the commit-time double-booking check and the accept/decline
// state machine.
type ContractService struct {
	contracts    contractRepository
	users        contractUserRepository
	lessons      contractLessonRepository
	cache        *CacheService
	horizonWeeks int
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewContractService instantiates ContractService.
func NewContractService(contracts contractRepository, users contractUserRepository, lessons contractLessonRepository, cache *CacheService, horizonWeeks int, validate *validator.Validate, logger *zap.Logger) *ContractService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if horizonWeeks <= 0 {
		horizonWeeks = 52
	}
	return &ContractService{contracts: contracts, users: users, lessons: lessons, cache: cache, horizonWeeks: horizonWeeks, validator: validate, logger: logger}
}

// List returns contracts visible to the actor. Teachers and customers see
// only their own engagements.
func (s *ContractService) List(ctx context.Context, claims *models.JWTClaims, filter models.ContractFilter) ([]models.Contract, *models.Pagination, error) {
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		filter.TeacherID = &claims.UserID
	default:
		filter.CustomerID = &claims.UserID
	}
	contracts, total, err := s.contracts.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contracts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return contracts, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one contract if the actor is a party to it.
func (s *ContractService) Get(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Contract, error) {
	contract, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "contract not found")
	}
	if !s.isParty(claims, contract) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a party to this contract")
	}
	return contract, nil
}

// Create books a new recurring engagement. The overlap check runs inside
// the write transaction, so a concurrent booking on the same teacher
// either serializes or fails with SCHEDULE_CONFLICT.
func (s *ContractService) Create(ctx context.Context, claims *models.JWTClaims, payload dto.ContractPayload) (*models.Contract, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins create contracts")
	}
	contract, err := s.buildContract(ctx, payload)
	if err != nil {
		return nil, err
	}
	contract.State = models.ContractPending
	if contract.TeacherID == nil {
		// Nobody to ask; the engagement is booked and waits for assignment.
		contract.State = models.ContractAccepted
	}

	dates := s.producedDates(contract)
	lessons := make([]models.Lesson, 0, len(dates))
	for _, date := range dates {
		lessons = append(lessons, models.Lesson{Date: date, State: models.LessonIdle})
	}

	err = s.contracts.CreateChecked(ctx, contract, lessons, s.overlapCheck(contract))
	if err != nil {
		return nil, err
	}
	s.invalidateSuggestions(ctx)
	s.logger.Info("contract created",
		zap.Int64("contract_id", contract.ID),
		zap.Int("weekday", contract.Weekday),
		zap.String("start_time", contract.StartTime))
	return contract, nil
}

// Update replaces a contract's schedule and participants, re-running the
// overlap check and reconciling materialized lessons. Occurrences whose
// dates survive keep their recorded outcome; stale pending ones are
// dropped and new dates are materialized.
func (s *ContractService) Update(ctx context.Context, claims *models.JWTClaims, id int64, payload dto.ContractPayload) (*models.Contract, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins update contracts")
	}
	existing, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "contract not found")
	}
	if existing.Deleted || existing.State == models.ContractDeclined {
		return nil, appErrors.Clone(appErrors.ErrConflict, "contract is no longer editable")
	}

	contract, err := s.buildContract(ctx, payload)
	if err != nil {
		return nil, err
	}
	contract.ID = existing.ID
	contract.State = existing.State
	contract.ParentContractID = existing.ParentContractID
	if contract.TeacherID != nil && (existing.TeacherID == nil || *existing.TeacherID != *contract.TeacherID) {
		// A newly assigned teacher has to confirm the engagement again.
		contract.State = models.ContractPending
	}

	dates := s.producedDates(contract)
	lessons := make([]models.Lesson, 0, len(dates))
	for _, date := range dates {
		lessons = append(lessons, models.Lesson{Date: date, State: models.LessonIdle})
	}

	if err := s.contracts.UpdateChecked(ctx, contract, lessons, dates, s.overlapCheck(contract)); err != nil {
		return nil, err
	}
	s.invalidateSuggestions(ctx)
	return contract, nil
}

// SetState executes an explicit accept or decline. The assigned teacher
// decides; admins may decide on their behalf.
func (s *ContractService) SetState(ctx context.Context, claims *models.JWTClaims, id int64, req dto.ContractStateRequest) (*models.Contract, error) {
	target, ok := models.ParseContractState(req.State)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown contract state")
	}
	contract, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "contract not found")
	}
	if claims.Role != models.RoleAdmin {
		if claims.Role != models.RoleTeacher || contract.TeacherID == nil || *contract.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned teacher decides")
		}
	}
	if !contract.State.CanTransition(target) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "contract state "+string(contract.State)+" cannot become "+string(target))
	}
	if contract.State == target {
		return contract, nil
	}
	if err := s.contracts.UpdateState(ctx, id, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contract state")
	}
	contract.State = target
	s.invalidateSuggestions(ctx)
	return contract, nil
}

// Delete soft-deletes a contract once every occurrence lies in the past.
// Engagements with remaining occurrences are ended by setting an end date
// instead.
func (s *ContractService) Delete(ctx context.Context, claims *models.JWTClaims, id int64) error {
	if claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins delete contracts")
	}
	contract, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "contract not found")
	}
	today := schedule.DateOnly(time.Now().UTC())
	for _, date := range s.producedDates(contract) {
		if !date.Before(today) {
			return appErrors.Clone(appErrors.ErrConflict, "contract still has upcoming occurrences, set an end date instead")
		}
	}
	// Materialized lessons can outlive the recurrence when the schedule
	// was edited, so the stored occurrences get the final say.
	if pending, err := s.lessons.CountPendingAfter(ctx, id, today); err == nil && pending > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "contract still has pending lessons, set an end date instead")
	}
	if err := s.contracts.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete contract")
	}
	s.invalidateSuggestions(ctx)
	return nil
}

// buildContract validates the payload and resolves it into a model.
func (s *ContractService) buildContract(ctx context.Context, payload dto.ContractPayload) (*models.Contract, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contract payload")
	}

	startDate, err := time.Parse("2006-01-02", payload.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_date")
	}
	weekday := schedule.ISOWeekday(startDate)
	if weekday < 1 || weekday > 5 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must fall on Monday through Friday")
	}

	var endDate *time.Time
	if payload.EndDate != "" {
		end, err := time.Parse("2006-01-02", payload.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end_date")
		}
		if end.Before(startDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date before start_date")
		}
		endDate = &end
	}

	startMin, err := schedule.ParseClock(payload.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_time")
	}
	endMin, err := schedule.ParseClock(payload.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end_time")
	}
	if startMin%5 != 0 || endMin%5 != 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "times must fall on a 5-minute grid")
	}
	if endMin-startMin < 30 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a lesson lasts at least 30 minutes")
	}

	contractType := models.ContractStandard
	if payload.ContractType != "" {
		switch models.ContractType(payload.ContractType) {
		case models.ContractStandard, models.ContractOnline:
			contractType = models.ContractType(payload.ContractType)
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown contract type")
		}
	}

	var teacherID *int64
	if payload.TeacherID != models.UnassignedTeacherID {
		teacher, err := s.users.FindByID(ctx, payload.TeacherID)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		if teacher.Role != models.RoleTeacher || teacher.Deleted {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user is not an active teacher")
		}
		if teacher.ApplicationState == nil || !teacher.ApplicationState.AtLeast(models.ApplicationEmployed) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is not employed yet")
		}
		teacherID = &teacher.ID
	}

	customers, err := s.users.FindByIDs(ctx, payload.CustomerIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load customers")
	}
	for _, id := range payload.CustomerIDs {
		customer, ok := customers[id]
		if !ok || customer.Deleted {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "customer not found")
		}
		if !customer.Role.IsCustomer() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a customer")
		}
	}

	return &models.Contract{
		SubjectID:        payload.SubjectID,
		TeacherID:        teacherID,
		Weekday:          weekday,
		StartTime:        schedule.FormatClock(startMin),
		EndTime:          schedule.FormatClock(endMin),
		StartDate:        startDate,
		EndDate:          endDate,
		IntervalWeeks:    payload.IntervalWeeks,
		ContractType:     contractType,
		ParentContractID: payload.ParentContractID,
		SchoolID:         payload.SchoolID,
		CustomerIDs:      payload.CustomerIDs,
	}, nil
}

// overlapCheck builds the decision that runs against the re-read snapshot
// inside the write transaction.
func (s *ContractService) overlapCheck(proposal *models.Contract) repository.ConflictCheck {
	until := proposal.StartDate.AddDate(0, 0, 7*s.horizonWeeks)
	if proposal.EndDate != nil && proposal.EndDate.Before(until) {
		until = *proposal.EndDate
	}
	proposalWeeks := weekStarts(schedule.ExpandDates(proposal.StartDate, proposal.EndDate, proposal.IntervalWeeks, proposal.StartDate, until))
	startMin, _ := schedule.ParseClock(proposal.StartTime)
	endMin, _ := schedule.ParseClock(proposal.EndTime)
	window := schedule.Window{Weekday: proposal.Weekday, Start: startMin, End: endMin}

	return func(involved []models.Contract) error {
		for _, other := range involved {
			if other.ID == proposal.ID {
				continue
			}
			otherStart, err := schedule.ParseClock(other.StartTime)
			if err != nil {
				continue
			}
			otherEnd, err := schedule.ParseClock(other.EndTime)
			if err != nil {
				continue
			}
			if !window.Overlaps(schedule.Window{Weekday: other.Weekday, Start: otherStart, End: otherEnd}) {
				continue
			}
			otherWeeks := weekStarts(schedule.ExpandDates(other.StartDate, other.EndDate, other.IntervalWeeks, proposal.StartDate, until))
			if weeksIntersect(proposalWeeks, otherWeeks) {
				return appErrors.Clone(appErrors.ErrScheduleConflict, "window collides with an existing engagement")
			}
		}
		return nil
	}
}

// producedDates expands the contract's recurrence up to its end or the
// configured horizon.
func (s *ContractService) producedDates(contract *models.Contract) []time.Time {
	until := contract.StartDate.AddDate(0, 0, 7*s.horizonWeeks)
	if contract.EndDate != nil && contract.EndDate.Before(until) {
		until = *contract.EndDate
	}
	return schedule.ExpandDates(contract.StartDate, contract.EndDate, contract.IntervalWeeks, contract.StartDate, until)
}

func (s *ContractService) isParty(claims *models.JWTClaims, contract *models.Contract) bool {
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return contract.TeacherID != nil && *contract.TeacherID == claims.UserID
	default:
		for _, id := range contract.CustomerIDs {
			if id == claims.UserID {
				return true
			}
		}
		return false
	}
}

func (s *ContractService) invalidateSuggestions(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "suggestions:*"); err != nil {
		s.logger.Warn("failed to invalidate suggestion cache", zap.Error(err))
	}
}
