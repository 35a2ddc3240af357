package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsmeEn/New-MediSync-sub001/internal/service/archive"
)

// ReconcileWorker periodically restores the archive three-store
// invariant from the relational source of truth.
type ReconcileWorker struct {
	archiveSvc *archive.Service
	interval   time.Duration
	logger     *zerolog.Logger
}

func NewReconcileWorker(archiveSvc *archive.Service, interval time.Duration, logger *zerolog.Logger) *ReconcileWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ReconcileWorker{
		archiveSvc: archiveSvc,
		interval:   interval,
		logger:     logger,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := w.archiveSvc.Reconcile(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("archive reconciliation failed")
				continue
			}
			w.logger.Info().
				Int("checked", report.Checked).
				Int("repaired", report.Repaired).
				Int("orphans", report.Orphans).
				Int("failures", report.Failures).
				Msg("archive reconciliation pass complete")
		}
	}
}
