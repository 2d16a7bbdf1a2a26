package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type conflictContractRepository interface {
	ListActiveByTeacher(ctx context.Context, teacherID int64) ([]models.Contract, error)
}

type conflictLessonRepository interface {
	PostponeForTeacherRange(ctx context.Context, teacherID int64, from, to time.Time) (int64, error)
}

type conflictLeaveRepository interface {
	ListAcceptedIntersecting(ctx context.Context, userID int64, from, to time.Time) ([]models.Leave, error)
}

// ConflictService answers "what does this absence collide with" questions
// and executes the lesson cascade when a leave is accepted.
type ConflictService struct {
	contracts conflictContractRepository
	lessons   conflictLessonRepository
	leaves    conflictLeaveRepository
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewConflictService instantiates ConflictService.
func NewConflictService(contracts conflictContractRepository, lessons conflictLessonRepository, leaves conflictLeaveRepository, metrics *MetricsService, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{contracts: contracts, lessons: lessons, leaves: leaves, metrics: metrics, logger: logger}
}

// BlockedContracts returns the teacher's live contracts whose recurrence
// produces at least one date inside the inclusive range. This is what an
// admin reviews before approving a leave.
func (s *ConflictService) BlockedContracts(ctx context.Context, teacherID int64, from, to time.Time) ([]models.Contract, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end before range start")
	}
	contracts, err := s.contracts.ListActiveByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher contracts")
	}

	var blocked []models.Contract
	for _, contract := range contracts {
		if contract.State == models.ContractDeclined {
			continue
		}
		if len(schedule.ExpandDates(contract.StartDate, contract.EndDate, contract.IntervalWeeks, from, to)) > 0 {
			blocked = append(blocked, contract)
		}
	}
	return blocked, nil
}

// CascadeLeave postpones every pending lesson of the teacher's contracts
// dated inside the accepted leave. One UPDATE, one transaction; declining
// or deleting a leave afterwards restores nothing.
func (s *ConflictService) CascadeLeave(ctx context.Context, leave *models.Leave) error {
	if leave.State != models.LeaveAccepted {
		return appErrors.Clone(appErrors.ErrValidation, "only accepted leaves cascade")
	}
	affected, err := s.lessons.PostponeForTeacherRange(ctx, leave.UserID, leave.StartDate, leave.EndDate)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to postpone lessons")
	}
	s.metrics.AddCascadedLessons(affected)
	s.logger.Info("leave cascade applied",
		zap.Int64("leave_id", leave.ID),
		zap.Int64("user_id", leave.UserID),
		zap.Int64("postponed_lessons", affected))
	return nil
}

// IntersectingLeaves returns the user's accepted leaves overlapping the
// inclusive range.
func (s *ConflictService) IntersectingLeaves(ctx context.Context, userID int64, from, to time.Time) ([]models.Leave, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end before range start")
	}
	leaves, err := s.leaves.ListAcceptedIntersecting(ctx, userID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaves")
	}
	return leaves, nil
}
