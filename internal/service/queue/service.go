package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
	"github.com/itsmeEn/New-MediSync-sub001/internal/service/notification"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/ident"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/messaging"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/metrics"
)

const (
	// Fallback when a department has no service history yet.
	defaultServiceTime = 10 * time.Minute

	avgCacheTTL     = time.Minute
	durationSamples = 20

	departmentEventsChannel = "department_events"
)

type Service struct {
	repo     repository.QueueRepository
	deptRepo repository.DepartmentRepository
	notifSvc notification.Service
	broker   messaging.Broker
	clock    ident.Clock
	weights  map[model.PriorityClass]int
	metrics  *metrics.Metrics
	avgTimes *gocache.Cache
}

func NewService(repo repository.QueueRepository, deptRepo repository.DepartmentRepository, notifSvc notification.Service, broker messaging.Broker, clock ident.Clock, weights map[model.PriorityClass]int, m *metrics.Metrics) *Service {
	if weights == nil {
		weights = model.DefaultPriorityWeights
	}
	return &Service{
		repo:     repo,
		deptRepo: deptRepo,
		notifSvc: notifSvc,
		broker:   broker,
		clock:    clock,
		weights:  weights,
		metrics:  m,
		avgTimes: gocache.New(avgCacheTTL, 5*time.Minute),
	}
}

// SetOpen opens or closes a department queue and broadcasts the change
// to department subscribers.
func (s *Service) SetOpen(ctx context.Context, departmentCode string, open bool) (*model.Department, error) {
	dept, err := s.deptRepo.SetOpen(ctx, departmentCode, open)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("department", err)
		}
		return nil, err
	}

	event := map[string]interface{}{
		"type":       "queue_status_changed",
		"department": dept.Code,
		"is_open":    dept.IsOpen,
		"at":         s.clock.Now(),
	}
	if err := s.broker.Publish(ctx, departmentEventsChannel, event); err != nil && s.metrics != nil {
		s.metrics.NotificationsFailed.Inc()
	}
	return dept, nil
}

// Join enqueues the patient and returns their number, position and a
// predicted wait.
func (s *Service) Join(ctx context.Context, patientID uuid.UUID, departmentCode string, priority model.PriorityClass) (*model.JoinQueueResponse, *model.QueueEntry, error) {
	if priority == "" {
		priority = model.PriorityNormal
	}
	if !model.ValidPriorityClass(priority) {
		return nil, nil, apperrors.Validation(fmt.Sprintf("unknown priority class %q", priority), nil)
	}

	entry, err := s.repo.Join(ctx, patientID, departmentCode, priority)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, apperrors.NotFound("department", err)
		case errors.Is(err, repository.ErrDepartmentClosed):
			return nil, nil, apperrors.New(apperrors.CodeDeptClosed, "department queue is closed", err)
		case errors.Is(err, repository.ErrAlreadyEnqueued):
			return nil, nil, apperrors.New(apperrors.CodeAlreadyEnqueued, "patient already has an active queue entry", err)
		}
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.QueueJoins.WithLabelValues(departmentCode, string(priority)).Inc()
	}

	position, err := s.position(ctx, entry)
	if err != nil {
		// The join itself succeeded; degrade to position unknown.
		position = entry.QueueNumber
	}

	return &model.JoinQueueResponse{
		QueueNumber:   entry.QueueNumber,
		Position:      position,
		PredictedWait: s.predictWait(ctx, entry.DepartmentID, position),
	}, entry, nil
}

// List returns the ordered snapshot of a department queue. Readers see
// a snapshot; stale reads are acceptable.
func (s *Service) List(ctx context.Context, departmentCode string) (*model.QueueSnapshot, error) {
	dept, err := s.deptRepo.GetByCode(ctx, departmentCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("department", err)
		}
		return nil, err
	}

	entries, err := s.repo.ListActive(ctx, dept.ID)
	if err != nil {
		return nil, err
	}

	snapshot := &model.QueueSnapshot{Department: dept.Code}
	var waiting []*model.QueueEntry
	for _, e := range entries {
		if e.Status == model.QueueStatusInProgress {
			if snapshot.CurrentServing == nil {
				snapshot.CurrentServing = e
			}
			continue
		}
		waiting = append(waiting, e)
	}
	model.SortQueueEntries(waiting, s.weights)
	snapshot.Entries = waiting
	snapshot.TotalWaiting = len(waiting)

	if s.metrics != nil {
		s.metrics.QueueWaiting.WithLabelValues(dept.Code).Set(float64(len(waiting)))
	}
	return snapshot, nil
}

// StartNext dispatches the head waiter to triage and notifies them.
func (s *Service) StartNext(ctx context.Context, departmentCode string) (*model.QueueSnapshot, *model.Notification, error) {
	entry, err := s.repo.StartNext(ctx, departmentCode, s.weights, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, apperrors.NotFound("department", err)
		case errors.Is(err, repository.ErrNoWaiting):
			return nil, nil, apperrors.New(apperrors.CodeNoWaiting, "no waiting patients", err)
		}
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.QueueTransitions.WithLabelValues(string(model.QueueStatusInProgress)).Inc()
	}

	notif, _ := s.notifSvc.Emit(ctx, &model.Notification{
		RecipientID:   entry.PatientID,
		Message:       fmt.Sprintf("Queue number %d: please proceed to the triage room, department %s", entry.QueueNumber, departmentCode),
		Channel:       model.ChannelWebsocket,
		EventType:     "queue_start_processing",
		CorrelationID: &entry.ID,
	})

	snapshot, err := s.List(ctx, departmentCode)
	if err != nil {
		return nil, notif, err
	}
	snapshot.CurrentServing = entry
	return snapshot, notif, nil
}

// MarkServed finishes an in_progress entry.
func (s *Service) MarkServed(ctx context.Context, entryID uuid.UUID) (*model.QueueEntry, error) {
	entry, err := s.repo.Finish(ctx, entryID, s.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("queue entry", err)
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, apperrors.Validation("entry is not in progress", err)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.QueueTransitions.WithLabelValues(string(model.QueueStatusServed)).Inc()
	}

	s.notifSvc.Emit(ctx, &model.Notification{
		RecipientID:   entry.PatientID,
		Message:       fmt.Sprintf("Queue number %d has been served", entry.QueueNumber),
		Channel:       model.ChannelWebsocket,
		EventType:     "queue_served",
		CorrelationID: &entry.ID,
	})
	return entry, nil
}

// Remove takes a non-terminal entry out of the queue. Idempotent for
// already-terminal entries, which are returned unchanged.
func (s *Service) Remove(ctx context.Context, entryID uuid.UUID, reason string) (*model.QueueEntry, error) {
	entry, err := s.repo.Remove(ctx, entryID, reason, s.clock.Now())
	if errors.Is(err, repository.ErrAlreadyTerminal) {
		return entry, nil
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("queue entry", err)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.QueueTransitions.WithLabelValues(string(model.QueueStatusRemoved)).Inc()
	}

	s.notifSvc.Emit(ctx, &model.Notification{
		RecipientID:   entry.PatientID,
		Message:       fmt.Sprintf("Queue number %d was removed from the queue: %s", entry.QueueNumber, reason),
		Channel:       model.ChannelWebsocket,
		EventType:     "queue_removed",
		CorrelationID: &entry.ID,
	})
	return entry, nil
}

// EvictStale flips waiting entries older than the timeout to no_show.
// Called from the background worker.
func (s *Service) EvictStale(ctx context.Context, timeout time.Duration) (int, error) {
	evicted, err := s.repo.EvictStale(ctx, s.clock.Now().Add(-timeout))
	if err != nil {
		return 0, err
	}

	for _, entry := range evicted {
		if s.metrics != nil {
			s.metrics.QueueTransitions.WithLabelValues(string(model.QueueStatusNoShow)).Inc()
		}
		s.notifSvc.Emit(ctx, &model.Notification{
			RecipientID:   entry.PatientID,
			Message:       fmt.Sprintf("Queue number %d was marked as a no-show", entry.QueueNumber),
			Channel:       model.ChannelWebsocket,
			EventType:     "queue_no_show",
			CorrelationID: &entry.ID,
		})
	}
	return len(evicted), nil
}

// position ranks the entry within the current ordered waiting view.
func (s *Service) position(ctx context.Context, entry *model.QueueEntry) (int, error) {
	entries, err := s.repo.ListActive(ctx, entry.DepartmentID)
	if err != nil {
		return 0, err
	}

	var waiting []*model.QueueEntry
	for _, e := range entries {
		if e.Status == model.QueueStatusWaiting {
			waiting = append(waiting, e)
		}
	}
	model.SortQueueEntries(waiting, s.weights)

	for i, e := range waiting {
		if e.ID == entry.ID {
			return i + 1, nil
		}
	}
	return len(waiting), nil
}

// predictWait estimates time-to-service from recent service durations,
// cached briefly per department.
func (s *Service) predictWait(ctx context.Context, departmentID uuid.UUID, position int) time.Duration {
	key := departmentID.String()
	if cached, ok := s.avgTimes.Get(key); ok {
		return time.Duration(position) * cached.(time.Duration)
	}

	durations, err := s.repo.RecentServiceDurations(ctx, departmentID, durationSamples)
	avg := defaultServiceTime
	if err == nil && len(durations) > 0 {
		var total time.Duration
		for _, d := range durations {
			total += d
		}
		avg = total / time.Duration(len(durations))
	}
	s.avgTimes.Set(key, avg, gocache.DefaultExpiration)
	return time.Duration(position) * avg
}
