package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/pkg/jobs"
)

type notificationUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	SetPasswordHash(ctx context.Context, id int64, hash string) error
}

// EffectJob is the payload carried by one queued state machine effect.
type EffectJob struct {
	UserID int64
	Effect models.Effect
}

// NotificationService executes the side effects the state machines emit:
// issuing credentials and sending notifications. Effects run after the
// triggering transaction committed, on the background worker pool.
type NotificationService struct {
	users  notificationUserRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the service and its worker queue. Call
// Start before dispatching and Stop on shutdown.
func NewNotificationService(users notificationUserRepository, workers, maxRetries int, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{users: users, logger: logger}
	s.queue = jobs.NewQueue("effects", s.handle, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: maxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues the given effects for a user. Failures are logged,
// never propagated: the triggering state change is already committed.
func (s *NotificationService) Dispatch(ctx context.Context, userID int64, effects []models.Effect) {
	if s == nil {
		return
	}
	for _, effect := range effects {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    string(effect),
			Payload: EffectJob{UserID: userID, Effect: effect},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Error("failed to enqueue effect",
				zap.Int64("user_id", userID),
				zap.String("effect", string(effect)),
				zap.Error(err))
		}
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(EffectJob)
	if !ok {
		return fmt.Errorf("effect job %s has unexpected payload %T", job.ID, job.Payload)
	}
	switch payload.Effect {
	case models.EffectGrantAuthentication, models.EffectReissueCredentials:
		return s.issueCredentials(ctx, payload.UserID)
	case models.EffectSendHiredNotification:
		// Mail delivery is out of scope here; downstream tooling tails
		// this log line.
		s.logger.Info("hired notification", zap.Int64("user_id", payload.UserID))
		return nil
	default:
		return fmt.Errorf("unknown effect %q", payload.Effect)
	}
}

// issueCredentials sets a fresh random password for the user. The
// generated secret is logged at debug level for the onboarding admin to
// hand over out of band.
func (s *NotificationService) issueCredentials(ctx context.Context, userID int64) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}

	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate password: %w", err)
	}
	password := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPasswordHash(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("store password hash: %w", err)
	}
	s.logger.Info("credentials issued", zap.Int64("user_id", user.ID))
	s.logger.Debug("initial password", zap.Int64("user_id", user.ID), zap.String("password", password))
	return nil
}
