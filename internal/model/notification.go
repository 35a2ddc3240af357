package model

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// CanTransitionTo enforces the monotonic delivery lattice:
// pending -> sent -> delivered; pending/sent -> failed.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	switch s {
	case DeliveryStatusPending:
		// A confirmation may arrive before the transport handoff is
		// recorded; skipping "sent" keeps the lattice monotonic.
		return next == DeliveryStatusSent || next == DeliveryStatusDelivered || next == DeliveryStatusFailed
	case DeliveryStatusSent:
		return next == DeliveryStatusDelivered || next == DeliveryStatusFailed
	}
	return false
}

type NotificationChannel string

const (
	ChannelWebsocket NotificationChannel = "websocket"
	ChannelEmail     NotificationChannel = "email"
	ChannelInApp     NotificationChannel = "inapp"
)

type Notification struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	RecipientID    uuid.UUID           `json:"recipient_id" db:"recipient_id"`
	Message        string              `json:"message" db:"message"`
	Channel        NotificationChannel `json:"channel" db:"channel"`
	DeliveryStatus DeliveryStatus      `json:"delivery_status" db:"delivery_status"`
	EventType      string              `json:"event_type" db:"event_type"`
	CorrelationID  *uuid.UUID          `json:"correlation_id,omitempty" db:"correlation_id"`
	LastError      *string             `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	DeliveredAt    *time.Time          `json:"delivered_at,omitempty" db:"delivered_at"`
}

type ConfirmNotificationRequest struct {
	NotificationID uuid.UUID `json:"notification_id" binding:"required"`
}
