package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context) ([]models.Subject, error)
	FindByID(ctx context.Context, id int64) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id int64) error
}

// SubjectService manages the subject catalogue.
type SubjectService struct {
	subjects  subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService instantiates SubjectService.
func NewSubjectService(subjects subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{subjects: subjects, validator: validate, logger: logger}
}

// List returns all subjects.
func (s *SubjectService) List(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Create adds a subject to the catalogue.
func (s *SubjectService) Create(ctx context.Context, claims *models.JWTClaims, req dto.SubjectPayload) (*models.Subject, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	subject := &models.Subject{Name: req.Name, Shorthand: req.Shorthand, Color: req.Color}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update rewrites a subject.
func (s *SubjectService) Update(ctx context.Context, claims *models.JWTClaims, id int64, req dto.SubjectPayload) (*models.Subject, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "subject not found")
	}
	subject.Name = req.Name
	subject.Shorthand = req.Shorthand
	subject.Color = req.Color
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Delete removes a subject that is no longer referenced.
func (s *SubjectService) Delete(ctx context.Context, claims *models.JWTClaims, id int64) error {
	if claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	if err := s.subjects.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "subject is still in use")
	}
	return nil
}
