package workers

import (
	"context"
	"groupchat/observability"
	"groupchat/repositories"
	"log/slog"
	"time"
)

type ArchiveConfig struct {
	Interval     time.Duration
	Retention    time.Duration
	SafetyMargin time.Duration
	BatchSize    int
}

// ArchiverWorker periodically moves messages older than the retention window
// out of the live log. The safety margin keeps the cutoff far behind any send
// still in flight, so a pass never competes with a fresh append.
type ArchiverWorker struct {
	log        *slog.Logger
	messages   repositories.IMessageRepository
	monitoring *observability.MonitoringManager
	config     ArchiveConfig
}

func NewArchiverWorker(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	monitoring *observability.MonitoringManager,
	config ArchiveConfig) *ArchiverWorker {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &ArchiverWorker{
		log:        log,
		messages:   messages,
		monitoring: monitoring,
		config:     config,
	}
}

func (w *ArchiverWorker) Run(ctx context.Context) error {
	w.log.Info("Starting archiver worker",
		"interval", w.config.Interval, "retention", w.config.Retention)
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.ArchiveOnce(time.Now()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ArchiveOnce runs a single pass as if the clock read now.
func (w *ArchiverWorker) ArchiveOnce(now time.Time) (int, error) {
	start := time.Now()
	cutoff := now.Add(-w.config.Retention - w.config.SafetyMargin)
	moved, err := w.messages.ArchiveBefore(cutoff, w.config.BatchSize, now)
	observability.ArchiveRunDuration.Observe(time.Since(start).Seconds())
	if moved > 0 {
		observability.ArchivedMessages.Add(float64(moved))
		if w.monitoring != nil {
			w.monitoring.IncrArchived(moved)
		}
		w.log.Info("Messages archived", "count", moved, "cutoff", cutoff)
	}
	if err != nil {
		w.log.Error("Archive pass failed", "moved", moved, "error", err)
		return moved, err
	}
	return moved, nil
}
