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

const archiveColumns = `
	id, patient_id, patient_name, assessment_type, medical_condition,
	history_summary, diagnostics, assessment_data, last_assessed_at,
	hospital_label, created_at, updated_at
`

func (r *archiveRepository) Create(ctx context.Context, rec *model.ArchiveRecord, sideEffects func(*model.ArchiveRecord) error) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		// TIMESTAMPTZ keeps microseconds; the mirror payload is
		// canonicalized from this struct and must byte-match the row
		// as read back.
		rec.CreatedAt = time.Now().Truncate(time.Microsecond)
		rec.UpdatedAt = rec.CreatedAt
		rec.LastAssessedAt = rec.LastAssessedAt.Truncate(time.Microsecond)
		rec.Diagnostics = jsonOrEmpty(rec.Diagnostics)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO archive_records (`+archiveColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, rec.ID, rec.PatientID, rec.PatientName, rec.AssessmentType,
			rec.MedicalCondition, rec.HistorySummary, rec.Diagnostics,
			rec.AssessmentData, rec.LastAssessedAt, rec.HospitalLabel,
			rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert archive record: %w", err)
		}

		// Mirror writes run inside the transaction boundary: a failed
		// write aborts the insert so the three stores stay in lockstep.
		if sideEffects != nil {
			if err := sideEffects(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *archiveRepository) Update(ctx context.Context, rec *model.ArchiveRecord, sideEffects func(*model.ArchiveRecord) error) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current model.ArchiveRecord
		err := tx.GetContext(ctx, &current, `SELECT `+archiveColumns+` FROM archive_records WHERE id = $1 FOR UPDATE`, rec.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock archive record: %w", err)
		}

		rec.CreatedAt = current.CreatedAt
		rec.UpdatedAt = time.Now().Truncate(time.Microsecond)
		rec.LastAssessedAt = rec.LastAssessedAt.Truncate(time.Microsecond)
		rec.Diagnostics = jsonOrEmpty(rec.Diagnostics)

		_, err = tx.ExecContext(ctx, `
			UPDATE archive_records
			SET assessment_type = $1, medical_condition = $2, history_summary = $3,
				diagnostics = $4, assessment_data = $5, last_assessed_at = $6,
				updated_at = $7
			WHERE id = $8
		`, rec.AssessmentType, rec.MedicalCondition, rec.HistorySummary,
			rec.Diagnostics, rec.AssessmentData, rec.LastAssessedAt,
			rec.UpdatedAt, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to update archive record: %w", err)
		}

		if sideEffects != nil {
			if err := sideEffects(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *archiveRepository) Get(ctx context.Context, id uuid.UUID) (*model.ArchiveRecord, error) {
	var rec model.ArchiveRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+archiveColumns+` FROM archive_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archive record: %w", err)
	}
	return &rec, nil
}

func (r *archiveRepository) List(ctx context.Context, filter *model.ArchiveFilter) ([]*model.ArchiveRecord, error) {
	query := `SELECT ` + archiveColumns + ` FROM archive_records WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filter.PatientID != nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, *filter.PatientID)
		argCount++
	}
	if filter.PatientName != "" {
		query += fmt.Sprintf(" AND patient_name ILIKE $%d", argCount)
		args = append(args, "%"+filter.PatientName+"%")
		argCount++
	}
	if filter.Start != nil {
		query += fmt.Sprintf(" AND last_assessed_at >= $%d", argCount)
		args = append(args, *filter.Start)
		argCount++
	}
	if filter.End != nil {
		query += fmt.Sprintf(" AND last_assessed_at <= $%d", argCount)
		args = append(args, *filter.End)
		argCount++
	}
	if filter.AssessmentType != "" {
		query += fmt.Sprintf(" AND assessment_type = $%d", argCount)
		args = append(args, filter.AssessmentType)
		argCount++
	}
	if filter.Condition != "" {
		query += fmt.Sprintf(" AND medical_condition ILIKE $%d", argCount)
		args = append(args, "%"+filter.Condition+"%")
		argCount++
	}

	query += fmt.Sprintf(" ORDER BY last_assessed_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, filter.Limit, filter.Offset)

	var records []*model.ArchiveRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list archive records: %w", err)
	}
	return records, nil
}

func (r *archiveRepository) All(ctx context.Context) ([]*model.ArchiveRecord, error) {
	var records []*model.ArchiveRecord
	err := r.db.SelectContext(ctx, &records, `SELECT `+archiveColumns+` FROM archive_records ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive records: %w", err)
	}
	return records, nil
}
