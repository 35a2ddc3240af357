package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsmeEn/New-MediSync-sub001/internal/service/queue"
)

// EvictionWorker sweeps waiting queue entries that have exceeded the
// eviction timeout and marks them no_show.
type EvictionWorker struct {
	queueSvc      *queue.Service
	timeout       time.Duration
	sweepInterval time.Duration
	logger        *zerolog.Logger
}

func NewEvictionWorker(queueSvc *queue.Service, timeout, sweepInterval time.Duration, logger *zerolog.Logger) *EvictionWorker {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &EvictionWorker{
		queueSvc:      queueSvc,
		timeout:       timeout,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

func (w *EvictionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := w.queueSvc.EvictStale(ctx, w.timeout)
			if err != nil {
				w.logger.Error().Err(err).Msg("queue eviction sweep failed")
				continue
			}
			if evicted > 0 {
				w.logger.Info().Int("evicted", evicted).Msg("marked stale queue entries as no_show")
			}
		}
	}
}
