package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, error)
	FindByID(ctx context.Context, id int64) (*models.Lesson, error)
	Update(ctx context.Context, lesson *models.Lesson) error
}

type lessonContractRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Contract, error)
}

// LessonService reads and records the outcome of materialized
// occurrences.
type LessonService struct {
	lessons   lessonRepository
	contracts lessonContractRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService instantiates LessonService.
func NewLessonService(lessons lessonRepository, contracts lessonContractRepository, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{lessons: lessons, contracts: contracts, validator: validate, logger: logger}
}

// List returns lessons visible to the actor. Teachers are restricted to
// their own contracts.
func (s *LessonService) List(ctx context.Context, claims *models.JWTClaims, filter models.LessonFilter) ([]models.Lesson, error) {
	if claims.Role == models.RoleTeacher {
		filter.TeacherID = &claims.UserID
	}
	lessons, err := s.lessons.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// Update records the outcome of one occurrence. Only the contract's
// teacher or an admin may do so.
func (s *LessonService) Update(ctx context.Context, claims *models.JWTClaims, id int64, req dto.UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	state, ok := models.ParseLessonState(req.State)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown lesson state")
	}

	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "lesson not found")
	}
	if claims.Role != models.RoleAdmin {
		contract, err := s.contracts.FindByID(ctx, lesson.ContractID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
		}
		if claims.Role != models.RoleTeacher || contract.TeacherID == nil || *contract.TeacherID != claims.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not your lesson")
		}
	}

	lesson.State = state
	lesson.Notes = req.Notes
	if err := s.lessons.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}
