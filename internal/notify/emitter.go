// Package notify persists addressed alerts. Emission is best-effort: a
// failure is logged and never propagated to the transition that raised it.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
)

const (
	defaultTimeout = 5 * time.Second
	defaultBackoff = 100 * time.Millisecond
)

type Emitter struct {
	repo    repository.NotificationRepository
	newID   func() string
	now     func() time.Time
	retries int
	backoff time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

type Option func(*Emitter)

func WithClock(now func() time.Time) Option { return func(e *Emitter) { e.now = now } }

// WithRetries sets how many extra attempts a failed write gets.
func WithRetries(n int) Option { return func(e *Emitter) { e.retries = n } }

// WithBackoff sets the pause before the first retry. It doubles on each
// further attempt.
func WithBackoff(d time.Duration) Option { return func(e *Emitter) { e.backoff = d } }

// WithTimeout bounds every store call the emitter makes.
func WithTimeout(d time.Duration) Option { return func(e *Emitter) { e.timeout = d } }

func NewEmitter(repo repository.NotificationRepository, newID func() string, logger *zap.Logger, opts ...Option) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		repo:    repo,
		newID:   newID,
		now:     func() time.Time { return time.Now().UTC() },
		backoff: defaultBackoff,
		timeout: defaultTimeout,
		logger:  logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Notify creates an UNREAD notification and returns it.
func (e *Emitter) Notify(ctx context.Context, userID, message string, typ models.NotificationType, relatedRequestID string) (*models.Notification, error) {
	if userID == "" {
		return nil, errs.Validation("notification needs an addressee")
	}
	n := &models.Notification{
		NotificationID:   e.newID(),
		UserID:           userID,
		Message:          message,
		Status:           models.NotificationUnread,
		Type:             typ,
		RelatedRequestID: relatedRequestID,
		CreatedOn:        e.now(),
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var err error
	wait := e.backoff
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errs.Normalize(errors.Join(err, ctx.Err()))
			case <-time.After(wait):
			}
			wait *= 2
		}
		if err = e.repo.Create(ctx, n); err == nil {
			return n, nil
		}
		// A duplicate id means an earlier attempt landed.
		if errors.Is(err, errs.ErrConflict) {
			return n, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs.Normalize(err)
}

func (e *Emitter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Dispatch stores events in order. Failures are logged and skipped; the
// notifications that were stored are returned.
func (e *Emitter) Dispatch(ctx context.Context, events []models.NotificationEvent) []models.Notification {
	sent := make([]models.Notification, 0, len(events))
	for _, ev := range events {
		n, err := e.Notify(ctx, ev.UserID, ev.Message, ev.Type, ev.RelatedRequestID)
		if err != nil {
			e.logger.Warn("Failed to store notification",
				zap.String("user_id", ev.UserID),
				zap.String("type", string(ev.Type)),
				zap.String("request_id", ev.RelatedRequestID),
				zap.Error(err))
			continue
		}
		sent = append(sent, *n)
	}
	return sent
}

func (e *Emitter) MarkRead(ctx context.Context, notificationID string) (*models.Notification, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	n, err := e.repo.MarkRead(ctx, notificationID)
	return n, errs.Normalize(err)
}

func (e *Emitter) Delete(ctx context.Context, notificationID string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return errs.Normalize(e.repo.Delete(ctx, notificationID))
}

func (e *Emitter) List(ctx context.Context, filter repository.NotificationFilter) ([]models.Notification, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	out, err := e.repo.List(ctx, filter)
	return out, errs.Normalize(err)
}

func (e *Emitter) Get(ctx context.Context, notificationID string) (*models.Notification, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	n, err := e.repo.FindByID(ctx, notificationID)
	return n, errs.Normalize(err)
}
