package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"load-request-api-server/internal/errs"
	"load-request-api-server/internal/models"
	"load-request-api-server/internal/repository"
	"load-request-api-server/internal/repository/memory"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("NTF-%d", n)
	}
}

// flakyRepo fails the first failN creates.
type flakyRepo struct {
	repository.NotificationRepository
	failN int
	calls int
}

func (f *flakyRepo) Create(ctx context.Context, n *models.Notification) error {
	f.calls++
	if f.calls <= f.failN {
		return errors.New("store unavailable")
	}
	return f.NotificationRepository.Create(ctx, n)
}

func TestNotifyCreatesUnread(t *testing.T) {
	store := memory.NewStore()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	e := NewEmitter(store.Notifications(), seqIDs(), nil, WithClock(func() time.Time { return at }))

	n, err := e.Notify(context.Background(), "lsr-1", "approved", models.NotificationApproval, "LR-1")
	require.NoError(t, err)
	assert.Equal(t, "NTF-1", n.NotificationID)
	assert.Equal(t, models.NotificationUnread, n.Status)
	assert.Equal(t, at, n.CreatedOn)

	read, err := e.MarkRead(context.Background(), n.NotificationID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationRead, read.Status)
	_, err = e.MarkRead(context.Background(), n.NotificationID)
	assert.NoError(t, err)
}

func TestNotifyRetries(t *testing.T) {
	store := memory.NewStore()
	repo := &flakyRepo{NotificationRepository: store.Notifications(), failN: 1}
	e := NewEmitter(repo, seqIDs(), nil, WithRetries(1), WithBackoff(time.Millisecond))

	_, err := e.Notify(context.Background(), "lsr-1", "hello", models.NotificationSystem, "")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestDispatchSwallowsFailures(t *testing.T) {
	store := memory.NewStore()
	repo := &flakyRepo{NotificationRepository: store.Notifications(), failN: 1}
	core, logs := observer.New(zap.WarnLevel)
	e := NewEmitter(repo, seqIDs(), zap.New(core))

	sent := e.Dispatch(context.Background(), []models.NotificationEvent{
		{UserID: "lsr-1", Message: "first", Type: models.NotificationDiscrepancy, RelatedRequestID: "LR-1"},
		{UserID: "lsr-1", Message: "second", Type: models.NotificationDiscrepancy, RelatedRequestID: "LR-1"},
	})

	require.Len(t, sent, 1)
	assert.Equal(t, "second", sent[0].Message)
	assert.Equal(t, 1, logs.FilterMessage("Failed to store notification").Len())
}

func TestNotifyRequiresAddressee(t *testing.T) {
	e := NewEmitter(memory.NewStore().Notifications(), seqIDs(), nil)
	_, err := e.Notify(context.Background(), "", "x", models.NotificationSystem, "")
	assert.Error(t, err)
}

func TestNotifyBacksOffBetweenAttempts(t *testing.T) {
	store := memory.NewStore()
	repo := &flakyRepo{NotificationRepository: store.Notifications(), failN: 2}
	e := NewEmitter(repo, seqIDs(), nil, WithRetries(2), WithBackoff(20*time.Millisecond))

	start := time.Now()
	_, err := e.Notify(context.Background(), "lsr-1", "hello", models.NotificationSystem, "")
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond, "20ms then 40ms between attempts")
}

func TestNotifyStopsRetryingWhenContextEnds(t *testing.T) {
	store := memory.NewStore()
	repo := &flakyRepo{NotificationRepository: store.Notifications(), failN: 10}
	e := NewEmitter(repo, seqIDs(), nil, WithRetries(5), WithBackoff(time.Second), WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := e.Notify(context.Background(), "lsr-1", "hello", models.NotificationSystem, "")
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.Equal(t, 1, repo.calls)
	assert.Less(t, time.Since(start), time.Second)
}

// stalledRepo blocks every call until the context is done.
type stalledRepo struct {
	repository.NotificationRepository
}

func (stalledRepo) List(ctx context.Context, _ repository.NotificationFilter) ([]models.Notification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledRepo) MarkRead(ctx context.Context, _ string) (*models.Notification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledRepo) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledRepo) FindByID(ctx context.Context, _ string) (*models.Notification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestReadsAndWritesAreBounded(t *testing.T) {
	e := NewEmitter(stalledRepo{}, seqIDs(), nil, WithTimeout(20*time.Millisecond))
	ctx := context.Background()

	_, err := e.List(ctx, repository.NotificationFilter{UserID: "lsr-1"})
	assert.ErrorIs(t, err, errs.ErrTimeout)
	_, err = e.MarkRead(ctx, "NTF-1")
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.ErrorIs(t, e.Delete(ctx, "NTF-1"), errs.ErrTimeout)
	_, err = e.Get(ctx, "NTF-1")
	assert.ErrorIs(t, err, errs.ErrTimeout)
}
