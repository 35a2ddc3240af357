package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/itsmeEn/New-MediSync-sub001/internal/model"
	apperrors "github.com/itsmeEn/New-MediSync-sub001/pkg/errors"
)

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Orphans  int `json:"orphans"`
	Failures int `json:"failures"`
}

// Reconcile restores the three-store invariant: every relational row
// has byte-identical files in both mirrors, and neither mirror holds a
// file without a row. Runs at startup and periodically from the
// worker. Mismatches are repaired from the relational row, which is
// the source of truth.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.ReconcileDuration)
		defer timer.ObserveDuration()
	}

	records, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	valid := make(map[uuid.UUID]bool, len(records))

	for _, rec := range records {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, apperrors.Timeout(ctxErr)
		}
		valid[rec.ID] = true
		report.Checked++

		payload, perr := CanonicalizeRecord(rec)
		if perr != nil {
			report.Failures++
			if s.logger != nil {
				s.logger.Error().Err(perr).Str("record_id", rec.ID.String()).Msg("failed to canonicalize record during reconciliation")
			}
			continue
		}

		repaired := false
		for _, path := range []string{s.mirrors.DoctorPath(rec.ID), s.mirrors.NursePath(rec.ID)} {
			if s.mirrors.Verify(path, payload) {
				continue
			}
			if rerr := s.mirrors.Repair(path, payload); rerr != nil {
				report.Failures++
				if s.logger != nil {
					s.logger.Error().Err(rerr).Str("record_id", rec.ID.String()).Msg("mirror repair failed")
				}
				continue
			}
			repaired = true
		}

		if repaired {
			report.Repaired++
			s.logRepair(ctx, rec)
		}
	}

	report.Orphans = s.removeOrphans(valid)
	return report, nil
}

// logRepair records the detected divergence and its repair in the
// access log.
func (s *Service) logRepair(ctx context.Context, rec *model.ArchiveRecord) {
	code := "REPAIRED"
	entry := &model.ArchiveAccessLog{
		PrincipalID: uuid.Nil, // system actor
		Action:      model.ArchiveActionCreate,
		RecordID:    &rec.ID,
		DurationMS:  0,
		AccessedAt:  s.clock.Now(),
		Outcome:     model.ArchiveOutcomeFailure,
		ErrorCode:   &code,
	}
	if err := s.logRepo.Create(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error().Err(err).Msg("failed to log mirror repair")
	}
}

// removeOrphans deletes mirror files with no backing relational row.
func (s *Service) removeOrphans(valid map[uuid.UUID]bool) int {
	removed := 0
	for _, dir := range []string{filepath.Dir(s.mirrors.DoctorPath(uuid.Nil)), filepath.Dir(s.mirrors.NursePath(uuid.Nil))} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, "archive_") || !strings.HasSuffix(name, ".json") {
				continue
			}
			id, err := uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(name, "archive_"), ".json"))
			if err != nil || valid[id] {
				continue
			}
			if os.Remove(filepath.Join(dir, name)) == nil {
				removed++
			}
		}
	}
	return removed
}
