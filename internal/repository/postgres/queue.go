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

const queueColumns = `
	id, patient_id, department_id, session_id, queue_number,
	priority_class, status, enqueued_at, started_at, finished_at, removal_reason
`

func (r *queueRepository) Join(ctx context.Context, patientID uuid.UUID, departmentCode string, priority model.PriorityClass) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var dept model.Department
		if err := lockDepartmentByCode(ctx, tx, departmentCode, &dept); err != nil {
			return err
		}
		if !dept.IsOpen {
			return repository.ErrDepartmentClosed
		}

		var exists bool
		err := tx.GetContext(ctx, &exists, `
			SELECT EXISTS (
				SELECT 1 FROM queue_entries
				WHERE patient_id = $1 AND department_id = $2
				AND status IN ('waiting', 'in_progress')
			)
		`, patientID, dept.ID)
		if err != nil {
			return fmt.Errorf("failed to check existing entry: %w", err)
		}
		if exists {
			return repository.ErrAlreadyEnqueued
		}

		// Allocation is serialized by the department row lock, so the
		// sequence is strictly increasing and gap-free per session.
		dept.LastQueueNumber++
		_, err = tx.ExecContext(ctx, `
			UPDATE departments SET last_queue_number = $1, updated_at = $2 WHERE id = $3
		`, dept.LastQueueNumber, time.Now(), dept.ID)
		if err != nil {
			return fmt.Errorf("failed to allocate queue number: %w", err)
		}

		entry = model.QueueEntry{
			ID:            uuid.New(),
			PatientID:     patientID,
			DepartmentID:  dept.ID,
			SessionID:     dept.SessionID,
			QueueNumber:   dept.LastQueueNumber,
			PriorityClass: priority,
			Status:        model.QueueStatusWaiting,
			EnqueuedAt:    time.Now(),
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO queue_entries (`+queueColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL, NULL)
		`, entry.ID, entry.PatientID, entry.DepartmentID, entry.SessionID,
			entry.QueueNumber, entry.PriorityClass, entry.Status, entry.EnqueuedAt)
		if err != nil {
			return fmt.Errorf("failed to insert queue entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *queueRepository) Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, `SELECT `+queueColumns+` FROM queue_entries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) ListActive(ctx context.Context, departmentID uuid.UUID) ([]*model.QueueEntry, error) {
	var entries []*model.QueueEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+queueColumns+` FROM queue_entries e
		WHERE department_id = $1
		AND status IN ('waiting', 'in_progress')
		AND session_id = (SELECT session_id FROM departments WHERE id = $1)
		ORDER BY enqueued_at ASC, queue_number ASC
	`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	return entries, nil
}

func (r *queueRepository) StartNext(ctx context.Context, departmentCode string, weights map[model.PriorityClass]int, at time.Time) (*model.QueueEntry, error) {
	var head *model.QueueEntry
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		// The department lock serializes head selection against
		// concurrent joins and other nurses.
		var dept model.Department
		if err := lockDepartmentByCode(ctx, tx, departmentCode, &dept); err != nil {
			return err
		}

		var waiting []*model.QueueEntry
		err := tx.SelectContext(ctx, &waiting, `
			SELECT `+queueColumns+` FROM queue_entries
			WHERE department_id = $1 AND session_id = $2 AND status = 'waiting'
		`, dept.ID, dept.SessionID)
		if err != nil {
			return fmt.Errorf("failed to load waiting entries: %w", err)
		}
		if len(waiting) == 0 {
			return repository.ErrNoWaiting
		}

		model.SortQueueEntries(waiting, weights)
		head = waiting[0]
		head.Status = model.QueueStatusInProgress
		head.StartedAt = &at

		_, err = tx.ExecContext(ctx, `
			UPDATE queue_entries SET status = $1, started_at = $2 WHERE id = $3
		`, head.Status, head.StartedAt, head.ID)
		if err != nil {
			return fmt.Errorf("failed to start queue entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return head, nil
}

func (r *queueRepository) Finish(ctx context.Context, entryID uuid.UUID, at time.Time) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockEntry(ctx, tx, entryID, &entry); err != nil {
			return err
		}
		if entry.Status != model.QueueStatusInProgress {
			return repository.ErrInvalidTransition
		}

		entry.Status = model.QueueStatusServed
		entry.FinishedAt = &at

		_, err := tx.ExecContext(ctx, `
			UPDATE queue_entries SET status = $1, finished_at = $2 WHERE id = $3
		`, entry.Status, entry.FinishedAt, entry.ID)
		if err != nil {
			return fmt.Errorf("failed to finish queue entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *queueRepository) Remove(ctx context.Context, entryID uuid.UUID, reason string, at time.Time) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockEntry(ctx, tx, entryID, &entry); err != nil {
			return err
		}
		if entry.Status.Terminal() {
			// Idempotent: report the prior state.
			return repository.ErrAlreadyTerminal
		}

		entry.Status = model.QueueStatusRemoved
		entry.FinishedAt = &at
		entry.RemovalReason = &reason

		_, err := tx.ExecContext(ctx, `
			UPDATE queue_entries SET status = $1, finished_at = $2, removal_reason = $3 WHERE id = $4
		`, entry.Status, entry.FinishedAt, entry.RemovalReason, entry.ID)
		if err != nil {
			return fmt.Errorf("failed to remove queue entry: %w", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, repository.ErrAlreadyTerminal) {
		return nil, err
	}
	return &entry, err
}

func (r *queueRepository) ActiveForPatient(ctx context.Context, patientID, departmentID uuid.UUID) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, `
		SELECT `+queueColumns+` FROM queue_entries
		WHERE patient_id = $1 AND department_id = $2
		AND status IN ('waiting', 'in_progress')
	`, patientID, departmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) AnyActiveForPatient(ctx context.Context, patientID uuid.UUID) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, `
		SELECT `+queueColumns+` FROM queue_entries
		WHERE patient_id = $1
		AND status IN ('waiting', 'in_progress')
		LIMIT 1
	`, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active entry: %w", err)
	}
	return &entry, nil
}

func (r *queueRepository) EvictStale(ctx context.Context, cutoff time.Time) ([]*model.QueueEntry, error) {
	var evicted []*model.QueueEntry
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.SelectContext(ctx, &evicted, `
			UPDATE queue_entries
			SET status = 'no_show', finished_at = NOW()
			WHERE status = 'waiting' AND enqueued_at < $1
			RETURNING `+queueColumns+`
		`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to evict stale entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

func (r *queueRepository) RecentServiceDurations(ctx context.Context, departmentID uuid.UUID, limit int) ([]time.Duration, error) {
	var seconds []float64
	err := r.db.SelectContext(ctx, &seconds, `
		SELECT EXTRACT(EPOCH FROM (finished_at - started_at))
		FROM queue_entries
		WHERE department_id = $1 AND status = 'served'
		AND started_at IS NOT NULL AND finished_at IS NOT NULL
		ORDER BY finished_at DESC
		LIMIT $2
	`, departmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load service durations: %w", err)
	}

	durations := make([]time.Duration, 0, len(seconds))
	for _, s := range seconds {
		durations = append(durations, time.Duration(s*float64(time.Second)))
	}
	return durations, nil
}

// lockEntry serializes state transitions for a single queue entry.
func lockEntry(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, dest *model.QueueEntry) error {
	err := tx.GetContext(ctx, dest, `SELECT `+queueColumns+` FROM queue_entries WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock queue entry: %w", err)
	}
	return nil
}
