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

const appointmentColumns = `
	id, patient_id, doctor_id, department_id, type, scheduled_at, status,
	queue_number, reason, reschedule_reason, cancellation_reason, arrived,
	created_at, updated_at, finished_at
`

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := checkSlotFree(ctx, tx, appt.PatientID, appt.DoctorID, appt.ScheduledAt, nil); err != nil {
			return err
		}

		appt.ID = uuid.New()
		appt.Status = model.AppointmentStatusScheduled
		appt.CreatedAt = time.Now()
		appt.UpdatedAt = appt.CreatedAt

		_, err := tx.ExecContext(ctx, `
			INSERT INTO appointments (`+appointmentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, NULL, FALSE, $10, $11, NULL)
		`, appt.ID, appt.PatientID, appt.DoctorID, appt.DepartmentID, appt.Type,
			appt.ScheduledAt, appt.Status, appt.QueueNumber, appt.Reason,
			appt.CreatedAt, appt.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		return nil
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.GetContext(ctx, &appt, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id uuid.UUID, newWhen time.Time, reason string, at time.Time) (*model.Appointment, error) {
	var appt model.Appointment
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockAppointment(ctx, tx, id, &appt); err != nil {
			return err
		}
		if !appt.Status.Active() {
			return repository.ErrInvalidTransition
		}
		if err := checkSlotFree(ctx, tx, appt.PatientID, appt.DoctorID, newWhen, &appt.ID); err != nil {
			return err
		}

		appt.ScheduledAt = newWhen
		appt.Status = model.AppointmentStatusRescheduled
		appt.RescheduleReason = &reason
		appt.UpdatedAt = at

		_, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET scheduled_at = $1, status = $2, reschedule_reason = $3, updated_at = $4
			WHERE id = $5
		`, appt.ScheduledAt, appt.Status, appt.RescheduleReason, appt.UpdatedAt, appt.ID)
		if err != nil {
			return fmt.Errorf("failed to reschedule appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) (*model.Appointment, error) {
	var appt model.Appointment
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockAppointment(ctx, tx, id, &appt); err != nil {
			return err
		}
		if !appt.Status.Active() {
			return repository.ErrInvalidTransition
		}

		appt.Status = model.AppointmentStatusCancelled
		appt.CancellationReason = &reason
		appt.UpdatedAt = at

		_, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = $1, cancellation_reason = $2, updated_at = $3
			WHERE id = $4
		`, appt.Status, appt.CancellationReason, appt.UpdatedAt, appt.ID)
		if err != nil {
			return fmt.Errorf("failed to cancel appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) Finish(ctx context.Context, id uuid.UUID, at time.Time) (*model.Appointment, error) {
	var appt model.Appointment
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockAppointment(ctx, tx, id, &appt); err != nil {
			return err
		}
		if !appt.Status.Active() {
			return repository.ErrInvalidTransition
		}

		appt.Status = model.AppointmentStatusCompleted
		appt.FinishedAt = &at
		appt.UpdatedAt = at

		_, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = $1, finished_at = $2, updated_at = $3
			WHERE id = $4
		`, appt.Status, appt.FinishedAt, appt.UpdatedAt, appt.ID)
		if err != nil {
			return fmt.Errorf("failed to finish appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) SetArrived(ctx context.Context, id uuid.UUID, arrived bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE appointments SET arrived = $1, updated_at = $2 WHERE id = $3
	`, arrived, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update arrival: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	var appts []*model.Appointment
	err := r.db.SelectContext(ctx, &appts, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_at ASC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

func (r *appointmentRepository) ActiveArrivedForPatient(ctx context.Context, patientID uuid.UUID) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.GetContext(ctx, &appt, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = $1 AND arrived = TRUE
		AND status IN ('scheduled', 'rescheduled')
		LIMIT 1
	`, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get arrived appointment: %w", err)
	}
	return &appt, nil
}

// checkSlotFree enforces the single-booking invariant for both the
// patient and the doctor at the exact scheduled instant. Runs inside
// the transaction that inserts or moves the appointment.
func checkSlotFree(ctx context.Context, tx *sqlx.Tx, patientID, doctorID uuid.UUID, at time.Time, excludeID *uuid.UUID) error {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE status IN ('scheduled', 'rescheduled')
			AND scheduled_at = $1
			AND (patient_id = $2 OR doctor_id = $3)
	`
	args := []interface{}{at, patientID, doctorID}

	if excludeID != nil {
		query += " AND id != $4"
		args = append(args, *excludeID)
	}
	query += ")"

	var clash bool
	if err := tx.GetContext(ctx, &clash, query, args...); err != nil {
		return fmt.Errorf("failed to check conflicts: %w", err)
	}
	if clash {
		return repository.ErrConflict
	}
	return nil
}

func lockAppointment(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, dest *model.Appointment) error {
	err := tx.GetContext(ctx, dest, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock appointment: %w", err)
	}
	return nil
}
