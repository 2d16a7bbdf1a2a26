package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type suggestionUserRepository interface {
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error)
	ListEmployedTeachersBySubject(ctx context.Context, subjectID int64) ([]models.User, error)
}

type suggestionContractRepository interface {
	ListInvolving(ctx context.Context, teacherID *int64, customerIDs, excludeIDs []int64) ([]models.Contract, error)
}

type suggestionLeaveRepository interface {
	ListAcceptedIntersecting(ctx context.Context, userID int64, from, to time.Time) ([]models.Leave, error)
}

// SuggestionService computes, per candidate teacher, the weekly windows in
// which a proposed recurring contract could take place. An empty result is
// a valid answer: nobody can serve the request.
type SuggestionService struct {
	users        suggestionUserRepository
	contracts    suggestionContractRepository
	leaves       suggestionLeaveRepository
	cache        *CacheService
	metrics      *MetricsService
	horizonWeeks int
	cacheTTL     time.Duration
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewSuggestionService instantiates SuggestionService. horizonWeeks bounds
// the expansion of open-ended proposals.
func NewSuggestionService(users suggestionUserRepository, contracts suggestionContractRepository, leaves suggestionLeaveRepository, cache *CacheService, metrics *MetricsService, horizonWeeks int, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SuggestionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if horizonWeeks <= 0 {
		horizonWeeks = 52
	}
	return &SuggestionService{
		users:        users,
		contracts:    contracts,
		leaves:       leaves,
		cache:        cache,
		metrics:      metrics,
		horizonWeeks: horizonWeeks,
		cacheTTL:     cacheTTL,
		validator:    validate,
		logger:       logger,
	}
}

// Suggest returns candidates ordered by name, the unassigned candidate
// (teacher id -1) always last. Candidates without any feasible window are
// omitted; the unassigned candidate is kept regardless so a contract can
// always be booked for later assignment.
func (s *SuggestionService) Suggest(ctx context.Context, req dto.SuggestionRequest) ([]dto.TeacherSuggestion, error) {
	started := time.Now()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suggestion request")
	}

	p, err := s.resolveProposal(req)
	if err != nil {
		return nil, err
	}

	cacheKey := suggestionCacheKey(req)
	var cached []dto.TeacherSuggestion
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	customerWindows, err := s.combinedCustomerWindows(ctx, req.CustomerIDs)
	if err != nil {
		return nil, err
	}

	teachers, err := s.users.ListEmployedTeachersBySubject(ctx, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate teachers")
	}

	suggestions := make([]dto.TeacherSuggestion, 0, len(teachers)+1)
	for _, teacher := range teachers {
		if req.OriginalTeacherID != nil && teacher.ID == *req.OriginalTeacherID {
			continue
		}
		windows, err := s.candidateWindows(ctx, &teacher, customerWindows, req, p)
		if err != nil {
			return nil, err
		}
		if len(windows) == 0 {
			continue
		}
		suggestions = append(suggestions, dto.TeacherSuggestion{
			TeacherID: teacher.ID,
			FirstName: teacher.FirstName,
			LastName:  teacher.LastName,
			Windows:   windows,
		})
	}

	unassigned, err := s.candidateWindows(ctx, nil, customerWindows, req, p)
	if err != nil {
		return nil, err
	}
	suggestions = append(suggestions, dto.TeacherSuggestion{
		TeacherID: models.UnassignedTeacherID,
		Windows:   unassigned,
	})

	if err := s.cache.Set(ctx, cacheKey, suggestions, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache suggestions", zap.Error(err))
	}
	s.metrics.ObserveSuggestion(time.Since(started))
	return suggestions, nil
}

// proposal is the resolved calendar shape of a suggestion request.
type proposal struct {
	startDate time.Time
	endDate   *time.Time
	interval  int
	// until bounds expansion: the contract end or the configured horizon.
	until time.Time
	// weeks holds the Monday of every week the proposal produces a date in.
	weeks []time.Time
	// desired is the optional exact sub-window to validate, nil otherwise.
	desired *schedule.Window
}

func (s *SuggestionService) resolveProposal(req dto.SuggestionRequest) (*proposal, error) {
	p := &proposal{interval: req.IntervalWeeks}
	if p.interval == 0 {
		p.interval = 1
	}

	if req.StartDate == "" {
		p.startDate = schedule.DateOnly(time.Now().UTC())
	} else {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_date")
		}
		p.startDate = start
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end_date")
		}
		if end.Before(p.startDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date before start_date")
		}
		p.endDate = &end
	}

	p.until = p.startDate.AddDate(0, 0, 7*s.horizonWeeks)
	if p.endDate != nil && p.endDate.Before(p.until) {
		p.until = *p.endDate
	}
	p.weeks = weekStarts(schedule.ExpandDates(p.startDate, p.endDate, p.interval, p.startDate, p.until))

	if req.StartTime != "" || req.EndTime != "" {
		if req.StartTime == "" || req.EndTime == "" || req.Weekday == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "desired window needs weekday, start_time and end_time")
		}
		start, err := schedule.ParseClock(req.StartTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_time")
		}
		end, err := schedule.ParseClock(req.EndTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end_time")
		}
		if end <= start {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
		}
		p.desired = &schedule.Window{Weekday: req.Weekday, Start: start, End: end}
	}
	return p, nil
}

// combinedCustomerWindows intersects the availability of every customer on
// the request. Each id must resolve to a live customer account.
func (s *SuggestionService) combinedCustomerWindows(ctx context.Context, customerIDs []int64) (schedule.WindowSet, error) {
	customers, err := s.users.FindByIDs(ctx, customerIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load customers")
	}

	combined := schedule.FullWeekWindows()
	for _, id := range customerIDs {
		customer, ok := customers[id]
		if !ok || customer.Deleted {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "customer not found")
		}
		if !customer.Role.IsCustomer() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a customer")
		}
		windows, err := availabilityWindows(customer.Availability)
		if err != nil {
			return nil, err
		}
		combined = combined.Intersect(windows)
	}
	return combined, nil
}

// candidateWindows runs the matching pipeline for one candidate. A nil
// teacher is the unassigned candidate: unconstrained availability, no own
// contracts and no leaves, only the customers' side applies.
func (s *SuggestionService) candidateWindows(ctx context.Context, teacher *models.User, customerWindows schedule.WindowSet, req dto.SuggestionRequest, p *proposal) ([]schedule.TimeSlot, error) {
	feasible := customerWindows
	var teacherID *int64
	if teacher != nil {
		avail, err := availabilityWindows(teacher.Availability)
		if err != nil {
			return nil, err
		}
		feasible = feasible.Intersect(avail)
		teacherID = &teacher.ID
	}
	if req.Weekday != 0 {
		feasible = feasible.OnWeekday(req.Weekday)
	}
	if len(feasible) == 0 {
		return nil, nil
	}

	involved, err := s.contracts.ListInvolving(ctx, teacherID, req.CustomerIDs, req.ExcludeContracts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing contracts")
	}
	for _, contract := range involved {
		blocks, err := s.contractBlocks(contract, p)
		if err != nil {
			return nil, err
		}
		if !blocks {
			continue
		}
		start, err := schedule.ParseClock(contract.StartTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored contract has invalid start time")
		}
		end, err := schedule.ParseClock(contract.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored contract has invalid end time")
		}
		feasible = feasible.Subtract(schedule.Window{Weekday: contract.Weekday, Start: start, End: end})
	}

	if teacher != nil {
		leaves, err := s.leaves.ListAcceptedIntersecting(ctx, teacher.ID, p.startDate, p.until)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaves")
		}
		for weekday := 1; weekday <= 5; weekday++ {
			if len(feasible.OnWeekday(weekday)) == 0 {
				continue
			}
			if anyDateOnLeave(p, weekday, leaves) {
				feasible = feasible.SubtractDay(weekday)
			}
		}
	}

	if p.desired != nil {
		var kept schedule.WindowSet
		for _, w := range feasible {
			if w.Contains(*p.desired) {
				kept = append(kept, w)
			}
		}
		feasible = kept
	}
	return feasible.Slots(), nil
}

// contractBlocks reports whether an existing contract's occurrences land
// in the same calendar weeks as the proposal's. Alternating biweekly
// schedules on opposite weeks coexist in the same window.
func (s *SuggestionService) contractBlocks(contract models.Contract, p *proposal) (bool, error) {
	dates := schedule.ExpandDates(contract.StartDate, contract.EndDate, contract.IntervalWeeks, p.startDate, p.until)
	if len(dates) == 0 {
		return false, nil
	}
	return weeksIntersect(p.weeks, weekStarts(dates)), nil
}

// anyDateOnLeave checks whether moving the proposal to the given weekday
// produces at least one date inside an accepted leave.
func anyDateOnLeave(p *proposal, weekday int, leaves []models.Leave) bool {
	for _, week := range p.weeks {
		date := week.AddDate(0, 0, weekday-1)
		if date.Before(p.startDate) || date.After(p.until) {
			continue
		}
		for _, leave := range leaves {
			if !date.Before(leave.StartDate) && !date.After(leave.EndDate) {
				return true
			}
		}
	}
	return false
}

// weekStarts maps dates to the Monday of their week, deduplicated.
func weekStarts(dates []time.Time) []time.Time {
	weeks := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		monday := schedule.DateOnly(d).AddDate(0, 0, 1-schedule.ISOWeekday(d))
		if len(weeks) == 0 || !weeks[len(weeks)-1].Equal(monday) {
			weeks = append(weeks, monday)
		}
	}
	return weeks
}

func weeksIntersect(a, b []time.Time) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Equal(b[j]):
			return true
		case a[i].Before(b[j]):
			i++
		default:
			j++
		}
	}
	return false
}

// availabilityWindows decodes a stored interval-set literal into windows;
// the full-week sentinel means unconstrained.
func availabilityWindows(raw string) (schedule.WindowSet, error) {
	slots, err := schedule.DecodeSlots(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored availability is malformed")
	}
	windows, err := schedule.WindowsFromSlots(slots)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored availability is malformed")
	}
	return windows, nil
}

func suggestionCacheKey(req dto.SuggestionRequest) string {
	payload, err := json.Marshal(req)
	if err != nil {
		return "suggestions:invalid"
	}
	sum := sha256.Sum256(payload)
	return "suggestions:" + hex.EncodeToString(sum[:16])
}
