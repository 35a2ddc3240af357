package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/ident"
)

type fakeNotifRepo struct {
	rows map[uuid.UUID]*model.Notification
}

func newFakeNotifRepo() *fakeNotifRepo {
	return &fakeNotifRepo{rows: make(map[uuid.UUID]*model.Notification)}
}

func (r *fakeNotifRepo) Create(_ context.Context, n *model.Notification) error {
	clone := *n
	r.rows[n.ID] = &clone
	return nil
}

func (r *fakeNotifRepo) Get(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	n, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (r *fakeNotifRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.DeliveryStatus, at time.Time, lastError *string) (*model.Notification, error) {
	n, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !n.DeliveryStatus.CanTransitionTo(status) {
		return nil, repository.ErrDeliveryTransition
	}
	n.DeliveryStatus = status
	n.LastError = lastError
	if status == model.DeliveryStatusDelivered {
		n.DeliveredAt = &at
	}
	clone := *n
	return &clone, nil
}

func (r *fakeNotifRepo) ListPending(_ context.Context, limit int) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range r.rows {
		if n.DeliveryStatus == model.DeliveryStatusPending && len(out) < limit {
			clone := *n
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeNotifRepo) ListForRecipient(_ context.Context, recipientID uuid.UUID, limit int) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range r.rows {
		if n.RecipientID == recipientID && len(out) < limit {
			clone := *n
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (r *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

type fakeEmail struct {
	sent []string
	err  error
}

func (f *fakeEmail) SendCustom(_ context.Context, to, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeBroker struct {
	err       error
	published int
}

func (f *fakeBroker) Publish(_ context.Context, _ string, _ interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.published++
	return nil
}

func (f *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBroker) Close() error { return nil }

func websocketNotification() *model.Notification {
	return &model.Notification{
		RecipientID: uuid.New(),
		Message:     "Queue number 4: please proceed to the triage room, department OPD",
		Channel:     model.ChannelWebsocket,
		EventType:   "queue_start_processing",
	}
}

func TestEmitSuccessfulHandoffMarksSent(t *testing.T) {
	repo := newFakeNotifRepo()
	broker := &fakeBroker{}
	svc := NewService(repo, &fakeUserRepo{}, &fakeEmail{}, broker, ident.NewClock(), nil)

	n, err := svc.Emit(context.Background(), websocketNotification())
	require.NoError(t, err)

	assert.Equal(t, model.DeliveryStatusSent, n.DeliveryStatus)
	assert.Equal(t, 1, broker.published)
}

func TestEmitTransportFailureNeverFailsCaller(t *testing.T) {
	repo := newFakeNotifRepo()
	broker := &fakeBroker{err: errors.New("redis unavailable")}
	svc := NewService(repo, &fakeUserRepo{}, &fakeEmail{}, broker, ident.NewClock(), nil)

	n, err := svc.Emit(context.Background(), websocketNotification())
	require.NoError(t, err, "transport failure must not surface to the caller")

	assert.Equal(t, model.DeliveryStatusFailed, n.DeliveryStatus)
	require.NotNil(t, n.LastError)
	assert.Contains(t, *n.LastError, "redis unavailable")
}

func TestEmitValidatesInput(t *testing.T) {
	svc := NewService(newFakeNotifRepo(), &fakeUserRepo{}, &fakeEmail{}, &fakeBroker{}, ident.NewClock(), nil)

	_, err := svc.Emit(context.Background(), &model.Notification{Channel: model.ChannelWebsocket})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestEmitEmailChannelResolvesRecipient(t *testing.T) {
	repo := newFakeNotifRepo()
	recipient := uuid.New()
	users := &fakeUserRepo{users: map[uuid.UUID]*model.User{
		recipient: {ID: recipient, Email: "patient@example.com"},
	}}
	email := &fakeEmail{}
	svc := NewService(repo, users, email, &fakeBroker{}, ident.NewClock(), nil)

	n, err := svc.Emit(context.Background(), &model.Notification{
		RecipientID: recipient,
		Message:     "Please come to the clinic",
		Channel:     model.ChannelEmail,
		EventType:   "appointment_reminder",
	})
	require.NoError(t, err)

	assert.Equal(t, model.DeliveryStatusSent, n.DeliveryStatus)
	assert.Equal(t, []string{"patient@example.com"}, email.sent)
}

func TestConfirmTransitionsToDelivered(t *testing.T) {
	repo := newFakeNotifRepo()
	svc := NewService(repo, &fakeUserRepo{}, &fakeEmail{}, &fakeBroker{}, ident.NewClock(), nil)

	n, err := svc.Emit(context.Background(), websocketNotification())
	require.NoError(t, err)

	confirmed, err := svc.Confirm(context.Background(), n.ID)
	require.NoError(t, err)

	assert.Equal(t, model.DeliveryStatusDelivered, confirmed.DeliveryStatus)
	require.NotNil(t, confirmed.DeliveredAt)
}

func TestConfirmIsIdempotent(t *testing.T) {
	repo := newFakeNotifRepo()
	svc := NewService(repo, &fakeUserRepo{}, &fakeEmail{}, &fakeBroker{}, ident.NewClock(), nil)

	n, err := svc.Emit(context.Background(), websocketNotification())
	require.NoError(t, err)

	first, err := svc.Confirm(context.Background(), n.ID)
	require.NoError(t, err)
	second, err := svc.Confirm(context.Background(), n.ID)
	require.NoError(t, err)

	assert.Equal(t, first.DeliveredAt, second.DeliveredAt, "repeat confirmation keeps the original delivered_at")
}

func TestConfirmBeforeSentRecorded(t *testing.T) {
	// The recipient's confirmation can race the sent update; the
	// pending row must still accept delivered.
	repo := newFakeNotifRepo()
	svc := NewService(repo, &fakeUserRepo{}, &fakeEmail{}, &fakeBroker{}, ident.NewClock(), nil)

	pending := websocketNotification()
	pending.ID = uuid.New()
	pending.DeliveryStatus = model.DeliveryStatusPending
	require.NoError(t, repo.Create(context.Background(), pending))

	confirmed, err := svc.Confirm(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusDelivered, confirmed.DeliveryStatus)
}

func TestConfirmFailedNotification(t *testing.T) {
	repo := newFakeNotifRepo()
	broker := &fakeBroker{err: errors.New("down")}
	svc := NewService(repo, &fakeUserRepo{}, &fakeEmail{}, broker, ident.NewClock(), nil)

	n, err := svc.Emit(context.Background(), websocketNotification())
	require.NoError(t, err)
	require.Equal(t, model.DeliveryStatusFailed, n.DeliveryStatus)

	_, err = svc.Confirm(context.Background(), n.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestConfirmUnknownNotification(t *testing.T) {
	svc := NewService(newFakeNotifRepo(), &fakeUserRepo{}, &fakeEmail{}, &fakeBroker{}, ident.NewClock(), nil)

	_, err := svc.Confirm(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestRedeliverPendingFlipsToSent(t *testing.T) {
	repo := newFakeNotifRepo()
	broker := &fakeBroker{}
	svc := NewService(repo, &fakeUserRepo{}, &fakeEmail{}, broker, ident.NewClock(), nil)

	pending := websocketNotification()
	pending.ID = uuid.New()
	pending.DeliveryStatus = model.DeliveryStatusPending
	require.NoError(t, repo.Create(context.Background(), pending))

	redelivered, err := svc.RedeliverPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, redelivered)

	got, err := repo.Get(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusSent, got.DeliveryStatus)
}
