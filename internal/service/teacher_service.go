package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/schedule"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
)

type teacherUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateAvailability(ctx context.Context, id int64, raw string) error
	UpdateApplicationState(ctx context.Context, id int64, state models.ApplicationState) error
	SoftDelete(ctx context.Context, id int64) error
	ReplaceTeacherSubjects(ctx context.Context, teacherID int64, subjectIDs []int64) error
}

// TeacherService manages teacher accounts: the hiring pipeline state
// machine, profile and availability updates, and the side effects those
// emit.
type TeacherService struct {
	users     teacherUserRepository
	notifier  *NotificationService
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService instantiates TeacherService.
func NewTeacherService(users teacherUserRepository, notifier *NotificationService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{users: users, notifier: notifier, cache: cache, validator: validate, logger: logger}
}

// List returns teachers with pagination.
func (s *TeacherService) List(ctx context.Context, claims *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if claims.Role != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	role := models.RoleTeacher
	filter.Role = &role
	teachers, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return teachers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one teacher; teachers may read themselves.
func (s *TeacherService) Get(ctx context.Context, claims *models.JWTClaims, id int64) (*models.User, error) {
	if claims.Role != models.RoleAdmin && claims.UserID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view other teachers")
	}
	teacher, err := s.loadTeacher(ctx, id)
	if err != nil {
		return nil, err
	}
	return teacher, nil
}

// Create registers a teacher applicant at the start of the hiring
// pipeline, unconstrained availability until they submit their own.
func (s *TeacherService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateTeacherRequest) (*models.User, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	taken, err := s.users.ExistsByEmail(ctx, req.Email, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	state := models.ApplicationCreated
	teacher := &models.User{
		Role:             models.RoleTeacher,
		Person:           personFromPayload(req.PersonPayload),
		Availability:     schedule.FullWeek,
		ApplicationState: &state,
		Fee:              req.Fee,
	}
	if err := s.users.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	if len(req.SubjectIDs) > 0 {
		if err := s.users.ReplaceTeacherSubjects(ctx, teacher.ID, req.SubjectIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign subjects")
		}
	}
	return teacher, nil
}

// Update replaces profile, subjects and availability. Changing the email
// of a teacher who already holds credentials triggers a reissue effect.
func (s *TeacherService) Update(ctx context.Context, claims *models.JWTClaims, id int64, req dto.UpdateTeacherRequest) (*models.User, error) {
	if claims.Role != models.RoleAdmin && claims.UserID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot edit other teachers")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher, err := s.loadTeacher(ctx, id)
	if err != nil {
		return nil, err
	}
	taken, err := s.users.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}

	emailChanged := teacher.Email != req.Email
	teacher.Person = personFromPayload(req.PersonPayload)
	if claims.Role == models.RoleAdmin {
		teacher.Fee = req.Fee
	}
	if err := s.users.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}

	encoded, err := schedule.EncodeSlots(req.Availability)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability")
	}
	if encoded != teacher.Availability {
		if err := s.users.UpdateAvailability(ctx, id, encoded); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
		}
		teacher.Availability = encoded
		s.invalidateSuggestions(ctx)
	}

	if claims.Role == models.RoleAdmin && req.SubjectIDs != nil {
		if err := s.users.ReplaceTeacherSubjects(ctx, id, req.SubjectIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign subjects")
		}
	}

	if emailChanged && teacher.ApplicationState != nil {
		s.notifier.Dispatch(ctx, teacher.ID, models.EmailChangeEffects(*teacher.ApplicationState))
	}
	return teacher, nil
}

// SetApplicationState advances the hiring pipeline one step. Skipping
// stages or moving backwards is rejected; reaching CONTRACT grants login
// credentials and reaching EMPLOYED notifies the teacher.
func (s *TeacherService) SetApplicationState(ctx context.Context, claims *models.JWTClaims, id int64, req dto.ApplicationStateRequest) (*models.User, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	target, ok := models.ParseApplicationState(req.State)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown application state")
	}
	teacher, err := s.loadTeacher(ctx, id)
	if err != nil {
		return nil, err
	}
	current := models.ApplicationCreated
	if teacher.ApplicationState != nil {
		current = *teacher.ApplicationState
	}
	if !current.CanTransition(target) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "application state "+string(current)+" cannot become "+string(target))
	}
	if current == target {
		return teacher, nil
	}
	if err := s.users.UpdateApplicationState(ctx, id, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application state")
	}
	teacher.ApplicationState = &target
	s.logger.Info("application state advanced",
		zap.Int64("teacher_id", id),
		zap.String("from", string(current)),
		zap.String("to", string(target)))
	s.notifier.Dispatch(ctx, id, models.ApplicationEffects(current, target))
	return teacher, nil
}

// Delete soft-deletes a teacher account.
func (s *TeacherService) Delete(ctx context.Context, claims *models.JWTClaims, id int64) error {
	if claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	if _, err := s.loadTeacher(ctx, id); err != nil {
		return err
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	s.invalidateSuggestions(ctx)
	return nil
}

func (s *TeacherService) loadTeacher(ctx context.Context, id int64) (*models.User, error) {
	teacher, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "teacher not found")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return teacher, nil
}

func (s *TeacherService) invalidateSuggestions(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "suggestions:*"); err != nil {
		s.logger.Warn("failed to invalidate suggestion cache", zap.Error(err))
	}
}

func personFromPayload(p dto.PersonPayload) models.Person {
	return models.Person{
		Salutation: p.Salutation,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      p.Email,
		Phone:      p.Phone,
		Street:     p.Street,
		City:       p.City,
		PostalCode: p.PostalCode,
	}
}
