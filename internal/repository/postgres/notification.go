package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	"github.com/itsmeEn/New-MediSync-sub001/internal/repository"
)

const notificationColumns = `
	id, recipient_id, message, channel, delivery_status, event_type,
	correlation_id, last_error, created_at, delivered_at
`

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, n.ID, n.RecipientID, n.Message, n.Channel, n.DeliveryStatus,
		n.EventType, n.CorrelationID, n.LastError, n.CreatedAt, n.DeliveredAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	err := r.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DeliveryStatus, at time.Time, lastError *string) (*model.Notification, error) {
	var n model.Notification
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock notification: %w", err)
		}

		if !n.DeliveryStatus.CanTransitionTo(status) {
			return repository.ErrDeliveryTransition
		}

		n.DeliveryStatus = status
		n.LastError = lastError
		if status == model.DeliveryStatusDelivered {
			n.DeliveredAt = &at
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE notifications
			SET delivery_status = $1, last_error = $2, delivered_at = $3
			WHERE id = $4
		`, n.DeliveryStatus, n.LastError, n.DeliveredAt, n.ID)
		if err != nil {
			return fmt.Errorf("failed to update notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepository) ListPending(ctx context.Context, limit int) ([]*model.Notification, error) {
	var notifications []*model.Notification
	err := r.db.SelectContext(ctx, &notifications, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE delivery_status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*model.Notification, error) {
	var notifications []*model.Notification
	err := r.db.SelectContext(ctx, &notifications, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
