package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
)

func (r *archiveAccessLogRepository) Create(ctx context.Context, log *model.ArchiveAccessLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.AccessedAt.IsZero() {
		log.AccessedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO archive_access_logs (
			id, principal_id, action, record_id, query_params,
			duration_ms, accessed_at, outcome, error_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, log.ID, log.PrincipalID, log.Action, log.RecordID, jsonOrEmpty(log.QueryParams),
		log.DurationMS, log.AccessedAt, log.Outcome, log.ErrorCode)
	if err != nil {
		return fmt.Errorf("failed to append access log: %w", err)
	}
	return nil
}

func (r *archiveAccessLogRepository) List(ctx context.Context, filter *model.ArchiveLogFilter) ([]*model.ArchiveAccessLog, error) {
	query := `
		SELECT id, principal_id, action, record_id, query_params,
			   duration_ms, accessed_at, outcome, error_code
		FROM archive_access_logs WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filter.PrincipalID != nil {
		query += fmt.Sprintf(" AND principal_id = $%d", argCount)
		args = append(args, *filter.PrincipalID)
		argCount++
	}
	if filter.RecordID != nil {
		query += fmt.Sprintf(" AND record_id = $%d", argCount)
		args = append(args, *filter.RecordID)
		argCount++
	}
	if filter.PatientID != nil {
		query += fmt.Sprintf(" AND record_id IN (SELECT id FROM archive_records WHERE patient_id = $%d)", argCount)
		args = append(args, *filter.PatientID)
		argCount++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY accessed_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	var logs []*model.ArchiveAccessLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return logs, nil
}
