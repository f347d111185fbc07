package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/db"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/queue"
	"github.com/michaelschiller-mdm-solutions/content-scheduler/internal/repository"
)

// Dispatcher claims due queue items and publishes posting jobs for the
// executors. Claiming marks rows retrying, so a crashed dispatcher leaves
// them visible instead of silently dropped.
type Dispatcher struct {
	Conn      *sql.DB
	QueueRepo *repository.QueueRepository
	Publisher queue.Publisher
	BatchSize int
	Logger    zerolog.Logger
}

// DispatchDue claims one batch of due items and publishes a job per item.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	batch := d.BatchSize
	if batch <= 0 {
		batch = 50
	}

	var ids []int
	err := db.WithTx(ctx, d.Conn, func(tx *sql.Tx) error {
		var err error
		ids, err = d.QueueRepo.ClaimDue(ctx, tx, batch)
		return err
	})
	if err != nil {
		return 0, err
	}

	published := 0
	for _, id := range ids {
		if err := d.Publisher.Publish(queue.TopicContentPostings, queue.PostingJob{QueueItemID: id}); err != nil {
			d.Logger.Error().Err(err).Int("queue_item_id", id).Msg("failed to publish posting job")
			continue
		}
		published++
	}
	if published > 0 {
		d.Logger.Info().Int("published", published).Msg("posting jobs dispatched")
	}
	return published, nil
}

// Run dispatches on a fixed interval until the context ends.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchDue(ctx); err != nil {
				d.Logger.Error().Err(err).Msg("dispatch cycle failed")
			}
		}
	}
}
