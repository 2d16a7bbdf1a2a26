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

type customerUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateAvailability(ctx context.Context, id int64, raw string) error
	SoftDelete(ctx context.Context, id int64) error
}

// CustomerService manages private customers, class customers and school
// accounts.
type CustomerService struct {
	users     customerUserRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCustomerService instantiates CustomerService.
func NewCustomerService(users customerUserRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CustomerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{users: users, cache: cache, validator: validate, logger: logger}
}

// List returns customers of the given role with pagination.
func (s *CustomerService) List(ctx context.Context, claims *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if claims.Role != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	customers, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list customers")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return customers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one customer; customers may read themselves.
func (s *CustomerService) Get(ctx context.Context, claims *models.JWTClaims, id int64) (*models.User, error) {
	if claims.Role != models.RoleAdmin && claims.UserID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view other customers")
	}
	customer, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "customer not found")
	}
	return customer, nil
}

// Create registers a private or class customer with unconstrained
// availability.
func (s *CustomerService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateCustomerRequest) (*models.User, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid customer payload")
	}
	if err := s.requireFreeEmail(ctx, req.Email, 0); err != nil {
		return nil, err
	}

	role := models.UserRole(req.Role)
	if role == models.RoleClassCustomer && req.SchoolID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class customers belong to a school")
	}
	if req.SchoolID != nil {
		school, err := s.users.FindByID(ctx, *req.SchoolID)
		if err != nil || school.Role != models.RoleSchool || school.Deleted {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
	}

	customer := &models.User{
		Role:         role,
		Person:       personFromPayload(req.PersonPayload),
		Availability: schedule.FullWeek,
		SchoolID:     req.SchoolID,
		GradeLevel:   req.GradeLevel,
	}
	if err := s.users.Create(ctx, customer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create customer")
	}
	return customer, nil
}

// CreateSchool registers a school account.
func (s *CustomerService) CreateSchool(ctx context.Context, claims *models.JWTClaims, req dto.CreateSchoolRequest) (*models.User, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	if err := s.requireFreeEmail(ctx, req.Email, 0); err != nil {
		return nil, err
	}

	school := &models.User{
		Role:         models.RoleSchool,
		Person:       personFromPayload(req.PersonPayload),
		Availability: schedule.FullWeek,
		SchoolName:   &req.SchoolName,
	}
	if err := s.users.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	return school, nil
}

// Update replaces a customer's profile and availability.
func (s *CustomerService) Update(ctx context.Context, claims *models.JWTClaims, id int64, req dto.UpdateCustomerRequest) (*models.User, error) {
	if claims.Role != models.RoleAdmin && claims.UserID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot edit other customers")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid customer payload")
	}
	customer, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "customer not found")
	}
	if !customer.Role.IsCustomer() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "customer not found")
	}
	if err := s.requireFreeEmail(ctx, req.Email, id); err != nil {
		return nil, err
	}

	customer.Person = personFromPayload(req.PersonPayload)
	customer.SchoolID = req.SchoolID
	customer.GradeLevel = req.GradeLevel
	if err := s.users.Update(ctx, customer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update customer")
	}

	encoded, err := schedule.EncodeSlots(req.Availability)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability")
	}
	if encoded != customer.Availability {
		if err := s.users.UpdateAvailability(ctx, id, encoded); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update availability")
		}
		customer.Availability = encoded
		if err := s.cache.Invalidate(ctx, "suggestions:*"); err != nil {
			s.logger.Warn("failed to invalidate suggestion cache", zap.Error(err))
		}
	}
	return customer, nil
}

// Delete soft-deletes a customer account.
func (s *CustomerService) Delete(ctx context.Context, claims *models.JWTClaims, id int64) error {
	if claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "customer not found")
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete customer")
	}
	return nil
}

func (s *CustomerService) requireFreeEmail(ctx context.Context, email string, excludeID int64) error {
	taken, err := s.users.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, "email already in use")
	}
	return nil
}
