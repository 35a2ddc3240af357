package queue

import (
	"context"
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

// fakeDeptRepo and fakeQueueRepo reproduce the repository contract in
// memory, including counter allocation and head selection.

type fakeDeptRepo struct {
	depts map[string]*model.Department
}

func newFakeDeptRepo(codes ...string) *fakeDeptRepo {
	r := &fakeDeptRepo{depts: make(map[string]*model.Department)}
	for _, code := range codes {
		r.depts[code] = &model.Department{
			ID:        uuid.New(),
			Code:      code,
			Name:      code,
			IsOpen:    true,
			SessionID: 1,
		}
	}
	return r
}

func (r *fakeDeptRepo) Create(_ context.Context, dept *model.Department) error {
	dept.ID = uuid.New()
	r.depts[dept.Code] = dept
	return nil
}

func (r *fakeDeptRepo) Get(_ context.Context, id uuid.UUID) (*model.Department, error) {
	for _, d := range r.depts {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeDeptRepo) GetByCode(_ context.Context, code string) (*model.Department, error) {
	d, ok := r.depts[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (r *fakeDeptRepo) List(_ context.Context) ([]*model.Department, error) {
	out := make([]*model.Department, 0, len(r.depts))
	for _, d := range r.depts {
		out = append(out, d)
	}
	return out, nil
}

func (r *fakeDeptRepo) SetOpen(_ context.Context, code string, open bool) (*model.Department, error) {
	d, ok := r.depts[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if open && !d.IsOpen {
		d.SessionID++
		d.LastQueueNumber = 0
	}
	d.IsOpen = open
	return d, nil
}

type fakeQueueRepo struct {
	depts   *fakeDeptRepo
	entries []*model.QueueEntry
}

func (r *fakeQueueRepo) Join(ctx context.Context, patientID uuid.UUID, departmentCode string, priority model.PriorityClass) (*model.QueueEntry, error) {
	dept, err := r.depts.GetByCode(ctx, departmentCode)
	if err != nil {
		return nil, err
	}
	if !dept.IsOpen {
		return nil, repository.ErrDepartmentClosed
	}
	for _, e := range r.entries {
		if e.PatientID == patientID && !e.Status.Terminal() {
			return nil, repository.ErrAlreadyEnqueued
		}
	}
	dept.LastQueueNumber++
	entry := &model.QueueEntry{
		ID:            uuid.New(),
		PatientID:     patientID,
		DepartmentID:  dept.ID,
		SessionID:     dept.SessionID,
		QueueNumber:   dept.LastQueueNumber,
		PriorityClass: priority,
		Status:        model.QueueStatusWaiting,
		EnqueuedAt:    time.Now(),
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *fakeQueueRepo) Get(_ context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeQueueRepo) ListActive(_ context.Context, departmentID uuid.UUID) ([]*model.QueueEntry, error) {
	var out []*model.QueueEntry
	for _, e := range r.entries {
		if e.DepartmentID == departmentID && !e.Status.Terminal() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeQueueRepo) StartNext(ctx context.Context, departmentCode string, weights map[model.PriorityClass]int, at time.Time) (*model.QueueEntry, error) {
	dept, err := r.depts.GetByCode(ctx, departmentCode)
	if err != nil {
		return nil, err
	}
	var waiting []*model.QueueEntry
	for _, e := range r.entries {
		if e.DepartmentID == dept.ID && e.Status == model.QueueStatusWaiting {
			waiting = append(waiting, e)
		}
	}
	if len(waiting) == 0 {
		return nil, repository.ErrNoWaiting
	}
	model.SortQueueEntries(waiting, weights)
	head := waiting[0]
	head.Status = model.QueueStatusInProgress
	head.StartedAt = &at
	return head, nil
}

func (r *fakeQueueRepo) Finish(ctx context.Context, entryID uuid.UUID, at time.Time) (*model.QueueEntry, error) {
	e, err := r.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.QueueStatusInProgress {
		return nil, repository.ErrInvalidTransition
	}
	e.Status = model.QueueStatusServed
	e.FinishedAt = &at
	return e, nil
}

func (r *fakeQueueRepo) Remove(ctx context.Context, entryID uuid.UUID, reason string, at time.Time) (*model.QueueEntry, error) {
	e, err := r.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status.Terminal() {
		return e, repository.ErrAlreadyTerminal
	}
	e.Status = model.QueueStatusRemoved
	e.RemovalReason = &reason
	e.FinishedAt = &at
	return e, nil
}

func (r *fakeQueueRepo) ActiveForPatient(_ context.Context, patientID, departmentID uuid.UUID) (*model.QueueEntry, error) {
	for _, e := range r.entries {
		if e.PatientID == patientID && e.DepartmentID == departmentID && !e.Status.Terminal() {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeQueueRepo) AnyActiveForPatient(_ context.Context, patientID uuid.UUID) (*model.QueueEntry, error) {
	for _, e := range r.entries {
		if e.PatientID == patientID && !e.Status.Terminal() {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeQueueRepo) EvictStale(_ context.Context, cutoff time.Time) ([]*model.QueueEntry, error) {
	var evicted []*model.QueueEntry
	for _, e := range r.entries {
		if e.Status == model.QueueStatusWaiting && e.EnqueuedAt.Before(cutoff) {
			e.Status = model.QueueStatusNoShow
			evicted = append(evicted, e)
		}
	}
	return evicted, nil
}

func (r *fakeQueueRepo) RecentServiceDurations(_ context.Context, _ uuid.UUID, _ int) ([]time.Duration, error) {
	return nil, nil
}

// fakeNotifier records emitted notifications and reports them sent.
type fakeNotifier struct {
	emitted []*model.Notification
}

func (f *fakeNotifier) Emit(_ context.Context, n *model.Notification) (*model.Notification, error) {
	n.ID = uuid.New()
	n.DeliveryStatus = model.DeliveryStatusSent
	f.emitted = append(f.emitted, n)
	return n, nil
}

func (f *fakeNotifier) Confirm(_ context.Context, _ uuid.UUID) (*model.Notification, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeNotifier) ListForRecipient(_ context.Context, _ uuid.UUID, _ int) ([]*model.Notification, error) {
	return nil, nil
}

func (f *fakeNotifier) RedeliverPending(_ context.Context, _ int) (int, error) {
	return 0, nil
}

type fakeBroker struct {
	published []string
}

func (f *fakeBroker) Publish(_ context.Context, channel string, _ interface{}) error {
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBroker) Close() error { return nil }

func newTestService(codes ...string) (*Service, *fakeQueueRepo, *fakeNotifier) {
	depts := newFakeDeptRepo(codes...)
	repo := &fakeQueueRepo{depts: depts}
	notifier := &fakeNotifier{}
	svc := NewService(repo, depts, notifier, &fakeBroker{}, ident.NewClock(), nil, nil)
	return svc, repo, notifier
}

func TestJoinAssignsSequentialNumbersAndPriorityPositions(t *testing.T) {
	svc, _, _ := newTestService("OPD")
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()

	resp1, _, err := svc.Join(ctx, p1, "OPD", model.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, 1, resp1.QueueNumber)
	assert.Equal(t, 1, resp1.Position)

	resp2, _, err := svc.Join(ctx, p2, "OPD", model.PriorityPWD)
	require.NoError(t, err)
	assert.Equal(t, 2, resp2.QueueNumber)
	assert.Equal(t, 1, resp2.Position, "pwd should preempt the earlier normal entry")
}

func TestJoinClosedDepartment(t *testing.T) {
	svc, _, _ := newTestService("OPD")
	ctx := context.Background()

	_, err := svc.SetOpen(ctx, "OPD", false)
	require.NoError(t, err)

	_, _, err = svc.Join(ctx, uuid.New(), "OPD", model.PriorityNormal)
	assert.True(t, apperrors.Is(err, apperrors.CodeDeptClosed))
}

func TestJoinRejectsSecondActiveEntry(t *testing.T) {
	svc, _, _ := newTestService("OPD")
	ctx := context.Background()
	patient := uuid.New()

	_, _, err := svc.Join(ctx, patient, "OPD", model.PriorityNormal)
	require.NoError(t, err)

	_, _, err = svc.Join(ctx, patient, "OPD", model.PriorityNormal)
	assert.True(t, apperrors.Is(err, apperrors.CodeAlreadyEnqueued))
}

func TestJoinUnknownDepartment(t *testing.T) {
	svc, _, _ := newTestService("OPD")

	_, _, err := svc.Join(context.Background(), uuid.New(), "XRAY", model.PriorityNormal)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestJoinRejectsUnknownPriority(t *testing.T) {
	svc, _, _ := newTestService("OPD")

	_, _, err := svc.Join(context.Background(), uuid.New(), "OPD", model.PriorityClass("vip"))
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestStartNextPicksPriorityHeadAndNotifies(t *testing.T) {
	svc, _, notifier := newTestService("OPD")
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()
	_, _, err := svc.Join(ctx, p1, "OPD", model.PriorityNormal)
	require.NoError(t, err)
	_, e2, err := svc.Join(ctx, p2, "OPD", model.PriorityPWD)
	require.NoError(t, err)

	snapshot, notif, err := svc.StartNext(ctx, "OPD")
	require.NoError(t, err)

	require.NotNil(t, snapshot.CurrentServing)
	assert.Equal(t, e2.ID, snapshot.CurrentServing.ID)
	assert.Equal(t, model.QueueStatusInProgress, snapshot.CurrentServing.Status)
	assert.Equal(t, 1, snapshot.TotalWaiting)

	require.NotNil(t, notif)
	assert.Equal(t, p2, notif.RecipientID)
	assert.Equal(t, model.DeliveryStatusSent, notif.DeliveryStatus)
	assert.Contains(t, notif.Message, "triage room")
	assert.Contains(t, notif.Message, "OPD")
	require.Len(t, notifier.emitted, 1)
}

func TestStartNextEmptyQueue(t *testing.T) {
	svc, _, _ := newTestService("OPD")

	_, _, err := svc.StartNext(context.Background(), "OPD")
	assert.True(t, apperrors.Is(err, apperrors.CodeNoWaiting))
}

func TestMarkServedRequiresInProgress(t *testing.T) {
	svc, _, _ := newTestService("OPD")
	ctx := context.Background()

	_, entry, err := svc.Join(ctx, uuid.New(), "OPD", model.PriorityNormal)
	require.NoError(t, err)

	_, err = svc.MarkServed(ctx, entry.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	_, _, err = svc.StartNext(ctx, "OPD")
	require.NoError(t, err)

	served, err := svc.MarkServed(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusServed, served.Status)
}

func TestRemoveIsIdempotent(t *testing.T) {
	svc, _, notifier := newTestService("OPD")
	ctx := context.Background()

	_, entry, err := svc.Join(ctx, uuid.New(), "OPD", model.PriorityNormal)
	require.NoError(t, err)

	removed, err := svc.Remove(ctx, entry.ID, "left the building")
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusRemoved, removed.Status)

	again, err := svc.Remove(ctx, entry.ID, "left the building")
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusRemoved, again.Status)
	assert.Len(t, notifier.emitted, 1, "no second notification for an already-terminal entry")
}

func TestReopenResetsQueueNumbers(t *testing.T) {
	svc, _, _ := newTestService("OPD")
	ctx := context.Background()

	resp, _, err := svc.Join(ctx, uuid.New(), "OPD", model.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.QueueNumber)

	_, err = svc.SetOpen(ctx, "OPD", false)
	require.NoError(t, err)
	_, err = svc.SetOpen(ctx, "OPD", true)
	require.NoError(t, err)

	resp2, _, err := svc.Join(ctx, uuid.New(), "OPD", model.PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, 1, resp2.QueueNumber, "a new session restarts the counter")
}

func TestEvictStaleMarksNoShow(t *testing.T) {
	svc, repo, notifier := newTestService("OPD")
	ctx := context.Background()

	_, entry, err := svc.Join(ctx, uuid.New(), "OPD", model.PriorityNormal)
	require.NoError(t, err)

	// Age the entry past the timeout.
	repo.entries[0].EnqueuedAt = time.Now().Add(-time.Hour)

	evicted, err := svc.EvictStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	got, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusNoShow, got.Status)
	require.Len(t, notifier.emitted, 1)
	assert.Equal(t, "queue_no_show", notifier.emitted[0].EventType)
}
