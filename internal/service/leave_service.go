package service

import (
	"context"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	appErrors "github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/errors"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/storage"
)

type leaveRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Leave, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Leave, error)
	ListByState(ctx context.Context, state models.LeaveState) ([]models.Leave, error)
	Create(ctx context.Context, leave *models.Leave) error
	Update(ctx context.Context, leave *models.Leave) error
	UpdateState(ctx context.Context, id int64, state models.LeaveState) error
	SetAttachment(ctx context.Context, id int64, path string) error
	Delete(ctx context.Context, id int64) error
}

type leaveUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// LeaveService owns the absence approval flow: filing, admin review and
// the lesson cascade on acceptance, plus proof attachments for sick
// leaves.
type LeaveService struct {
	leaves    leaveRepository
	users     leaveUserRepository
	conflicts *ConflictService
	cache     *CacheService
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	maxBytes  int64
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeaveService instantiates LeaveService.
func NewLeaveService(leaves leaveRepository, users leaveUserRepository, conflicts *ConflictService, cache *CacheService, store *storage.LocalStorage, signer *storage.SignedURLSigner, maxBytes int64, validate *validator.Validate, logger *zap.Logger) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &LeaveService{
		leaves:    leaves,
		users:     users,
		conflicts: conflicts,
		cache:     cache,
		store:     store,
		signer:    signer,
		maxBytes:  maxBytes,
		validator: validate,
		logger:    logger,
	}
}

// ListForUser returns a user's leaves; non-admins see only their own.
func (s *LeaveService) ListForUser(ctx context.Context, claims *models.JWTClaims, userID int64) ([]models.Leave, error) {
	if claims.Role != models.RoleAdmin && claims.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view other users' leaves")
	}
	leaves, err := s.leaves.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leaves")
	}
	return leaves, nil
}

// ListPending returns the admin review queue.
func (s *LeaveService) ListPending(ctx context.Context, claims *models.JWTClaims) ([]models.Leave, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	leaves, err := s.leaves.ListByState(ctx, models.LeavePending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending leaves")
	}
	return leaves, nil
}

// Create files an absence. Teachers file for themselves; admins may file
// on anyone's behalf.
func (s *LeaveService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateLeaveRequest) (*models.Leave, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave request")
	}
	userID := req.UserID
	if userID == 0 {
		userID = claims.UserID
	}
	if claims.Role != models.RoleAdmin && userID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot file leave for someone else")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}

	start, end, err := parseLeaveRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	leave := &models.Leave{
		UserID:    userID,
		Type:      models.LeaveType(req.Type),
		State:     models.LeavePending,
		StartDate: start,
		EndDate:   end,
	}
	if err := s.leaves.Create(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave")
	}
	return leave, nil
}

// Update edits a leave while it is still pending.
func (s *LeaveService) Update(ctx context.Context, claims *models.JWTClaims, id int64, req dto.UpdateLeaveRequest) (*models.Leave, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave request")
	}
	leave, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if leave.State != models.LeavePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending leaves are editable")
	}

	start, end, err := parseLeaveRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	leave.Type = models.LeaveType(req.Type)
	leave.StartDate = start
	leave.EndDate = end
	if err := s.leaves.Update(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave")
	}
	return leave, nil
}

// SetState records the admin decision. Accepting a teacher's leave
// synchronously postpones the affected lessons; declining changes
// nothing beyond the state.
func (s *LeaveService) SetState(ctx context.Context, claims *models.JWTClaims, id int64, state string) (*models.Leave, error) {
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin only")
	}
	target, ok := models.ParseLeaveState(state)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown leave state")
	}
	leave, err := s.leaves.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "leave not found")
	}
	if leave.State == target {
		return leave, nil
	}
	if leave.State != models.LeavePending {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "leave is already settled")
	}
	leave.State = target

	// The cascade runs before the state write: if postponing fails the
	// row stays PENDING and the decision can be retried. The postpone
	// UPDATE is idempotent, so a retry after a partial failure is safe.
	if target == models.LeaveAccepted {
		if err := s.conflicts.CascadeLeave(ctx, leave); err != nil {
			leave.State = models.LeavePending
			return nil, err
		}
	}
	if err := s.leaves.UpdateState(ctx, id, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave state")
	}
	if target == models.LeaveAccepted {
		s.invalidateSuggestions(ctx)
	}
	return leave, nil
}

// Delete removes a pending leave.
func (s *LeaveService) Delete(ctx context.Context, claims *models.JWTClaims, id int64) error {
	leave, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return err
	}
	if leave.State != models.LeavePending {
		return appErrors.Clone(appErrors.ErrConflict, "only pending leaves can be deleted")
	}
	if err := s.leaves.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete leave")
	}
	if leave.AttachmentPath != nil {
		if err := s.store.Remove(*leave.AttachmentPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove leave attachment", zap.Error(err))
		}
	}
	return nil
}

// AttachProof stores an uploaded document (a sick note, typically) and
// binds it to the leave.
func (s *LeaveService) AttachProof(ctx context.Context, claims *models.JWTClaims, id int64, filename string, size int64, r io.Reader) (*models.Leave, error) {
	if size > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attachment too large")
	}
	leave, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	stored := uuid.NewString() + path.Ext(filename)
	relPath, err := s.store.SaveStream(stored, io.LimitReader(r, s.maxBytes))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	if err := s.leaves.SetAttachment(ctx, id, relPath); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bind attachment")
	}
	leave.AttachmentPath = &relPath
	return leave, nil
}

// AttachmentURL issues a short-lived signed token for downloading the
// leave's attachment.
func (s *LeaveService) AttachmentURL(ctx context.Context, claims *models.JWTClaims, id int64) (string, time.Time, error) {
	leave, err := s.loadOwned(ctx, claims, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if leave.AttachmentPath == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "leave has no attachment")
	}
	return signAttachment(s.signer, leave.ID, *leave.AttachmentPath)
}

// OpenAttachment validates a signed token and opens the underlying file.
func (s *LeaveService) OpenAttachment(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}
	f, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "attachment not found")
	}
	return f, nil
}

func (s *LeaveService) loadOwned(ctx context.Context, claims *models.JWTClaims, id int64) (*models.Leave, error) {
	leave, err := s.leaves.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "leave not found")
	}
	if claims.Role != models.RoleAdmin && leave.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your leave")
	}
	return leave, nil
}

func (s *LeaveService) invalidateSuggestions(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "suggestions:*"); err != nil {
		s.logger.Warn("failed to invalidate suggestion cache", zap.Error(err))
	}
}

func parseLeaveRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid start_date")
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid end_date")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date before start_date")
	}
	return start, end, nil
}

func signAttachment(signer *storage.SignedURLSigner, leaveID int64, relPath string) (string, time.Time, error) {
	token, expires, err := signer.Generate(strconv.FormatInt(leaveID, 10), relPath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment url")
	}
	return token, expires, nil
}
