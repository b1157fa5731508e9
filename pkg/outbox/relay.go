package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockpile/pos-backend-go/pkg/kafka"
	"github.com/stockpile/pos-backend-go/pkg/logging"
)

const defaultBatch = 100

// Relay drains pending outbox rows to Kafka. Rows are only marked sent
// after a successful publish; a crash between publish and mark means the
// event can be delivered twice, so consumers must dedupe on event_id.
type Relay struct {
	Pool     *pgxpool.Pool
	Kafka    *kafka.Client
	Interval time.Duration
	Service  string
}

func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

func (r *Relay) flush(ctx context.Context) {
	records, err := FetchPending(ctx, r.Pool, defaultBatch)
	if err != nil {
		logging.Log(logging.Fields{Service: r.Service, Step: "outbox_fetch", Status: "error", Error: err.Error()})
		return
	}
	for _, rec := range records {
		if err := r.Kafka.PublishRaw(ctx, rec.Topic, rec.Key, rec.Payload); err != nil {
			logging.Log(logging.Fields{Service: r.Service, Step: "outbox_publish", Status: "error", Message: rec.EventID, Error: err.Error()})
			return
		}
		if err := MarkSent(ctx, r.Pool, rec.ID); err != nil {
			logging.Log(logging.Fields{Service: r.Service, Step: "outbox_mark_sent", Status: "error", Message: rec.EventID, Error: err.Error()})
			return
		}
	}
}
