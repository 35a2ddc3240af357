package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/itsmeEn/New-MediSync-sub001/internal/service/notification"
)

// DispatchWorker retries the transport handoff for notifications still
// pending, e.g. after a crash between persist and dispatch.
type DispatchWorker struct {
	notifSvc  notification.Service
	interval  time.Duration
	batchSize int
	logger    *zerolog.Logger
}

func NewDispatchWorker(notifSvc notification.Service, interval time.Duration, batchSize int, logger *zerolog.Logger) *DispatchWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &DispatchWorker{
		notifSvc:  notifSvc,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (w *DispatchWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			redelivered, err := w.notifSvc.RedeliverPending(ctx, w.batchSize)
			if err != nil {
				w.logger.Error().Err(err).Msg("notification redelivery pass failed")
				continue
			}
			if redelivered > 0 {
				w.logger.Info().Int("redelivered", redelivered).Msg("redelivered pending notifications")
			}
		}
	}
}
