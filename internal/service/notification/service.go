package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/itsmeEn/New-MediSync-sub001/internal/email"
	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/ident"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/messaging"
	"github.com/itsmeEn/New-MediSync-sub001/pkg/metrics"
)

// TransportChannel is the broker channel the websocket hub and in-app
// consumers subscribe to.
const TransportChannel = "notifications"

// Event is the envelope handed to the transport.
type Event struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	RecipientID    uuid.UUID  `json:"recipient_id"`
	EventType      string     `json:"event_type"`
	Message        string     `json:"message"`
	CorrelationID  *uuid.UUID `json:"correlation_id,omitempty"`
	EmittedAt      time.Time  `json:"emitted_at"`
}

type Service interface {
	// Emit persists the notification as pending, hands it to the
	// transport and flips it to sent on synchronous acceptance.
	// Transport failures mark the row failed; they never propagate.
	Emit(ctx context.Context, n *model.Notification) (*model.Notification, error)
	// Confirm is the recipient-reported delivered transition. Idempotent.
	Confirm(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*model.Notification, error)
	// RedeliverPending retries the transport handoff for rows still
	// pending, giving at-least-once delivery across process restarts.
	RedeliverPending(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	emailSvc email.Service
	broker   messaging.Broker
	clock    ident.Clock
	metrics  *metrics.Metrics
}

func NewService(repo repository.NotificationRepository, userRepo repository.UserRepository, emailSvc email.Service, broker messaging.Broker, clock ident.Clock, m *metrics.Metrics) Service {
	return &service{
		repo:     repo,
		userRepo: userRepo,
		emailSvc: emailSvc,
		broker:   broker,
		clock:    clock,
		metrics:  m,
	}
}

func (s *service) Emit(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	if err := s.validate(n); err != nil {
		return nil, apperrors.Validation("invalid notification", err)
	}

	n.ID = uuid.New()
	n.DeliveryStatus = model.DeliveryStatusPending
	n.CreatedAt = s.clock.Now()

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.NotificationDispatches)
	}
	err := s.dispatch(ctx, n)
	if timer != nil {
		timer.ObserveDuration()
	}

	if err != nil {
		errStr := err.Error()
		if s.metrics != nil {
			s.metrics.NotificationsFailed.Inc()
		}
		failed, updateErr := s.repo.UpdateStatus(ctx, n.ID, model.DeliveryStatusFailed, s.clock.Now(), &errStr)
		if updateErr != nil {
			return n, nil // the originating operation must not fail
		}
		return failed, nil
	}

	sent, err := s.repo.UpdateStatus(ctx, n.ID, model.DeliveryStatusSent, s.clock.Now(), nil)
	if err != nil {
		return n, nil
	}
	if s.metrics != nil {
		s.metrics.NotificationsEmitted.WithLabelValues(string(n.Channel), string(sent.DeliveryStatus)).Inc()
	}
	return sent, nil
}

func (s *service) dispatch(ctx context.Context, n *model.Notification) error {
	switch n.Channel {
	case model.ChannelWebsocket, model.ChannelInApp:
		return s.broker.Publish(ctx, TransportChannel, &Event{
			NotificationID: n.ID,
			RecipientID:    n.RecipientID,
			EventType:      n.EventType,
			Message:        n.Message,
			CorrelationID:  n.CorrelationID,
			EmittedAt:      s.clock.Now(),
		})
	case model.ChannelEmail:
		user, err := s.userRepo.Get(ctx, n.RecipientID)
		if err != nil {
			return fmt.Errorf("failed to resolve recipient: %w", err)
		}
		return s.emailSvc.SendCustom(ctx, user.Email, n.EventType, n.Message)
	default:
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, err
	}

	switch current.DeliveryStatus {
	case model.DeliveryStatusDelivered:
		// Already confirmed; keep the earlier delivered_at.
		return current, nil
	case model.DeliveryStatusFailed:
		return nil, apperrors.Validation("notification already failed", nil)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, model.DeliveryStatusDelivered, s.clock.Now(), nil)
	if err != nil {
		if errors.Is(err, repository.ErrDeliveryTransition) {
			// Raced with another confirmation.
			return s.repo.Get(ctx, id)
		}
		return nil, err
	}
	return updated, nil
}

func (s *service) RedeliverPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	pending, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	redelivered := 0
	for _, n := range pending {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return redelivered, ctxErr
		}
		if err := s.dispatch(ctx, n); err != nil {
			errStr := err.Error()
			s.repo.UpdateStatus(ctx, n.ID, model.DeliveryStatusFailed, s.clock.Now(), &errStr)
			if s.metrics != nil {
				s.metrics.NotificationsFailed.Inc()
			}
			continue
		}
		// A confirmation may already have landed; the lattice rejects
		// sent after delivered and that is fine.
		if _, err := s.repo.UpdateStatus(ctx, n.ID, model.DeliveryStatusSent, s.clock.Now(), nil); err == nil {
			redelivered++
		}
	}
	return redelivered, nil
}

func (s *service) ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repo.ListForRecipient(ctx, recipientID, limit)
}

func (s *service) validate(n *model.Notification) error {
	if n.RecipientID == uuid.Nil {
		return fmt.Errorf("recipient is required")
	}
	if n.Message == "" {
		return fmt.Errorf("message is required")
	}
	if n.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	return nil
}
