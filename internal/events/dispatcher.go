package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stfrancis-sis/enrollment-api/pkg/jobs"
)

// Dispatcher fans events out to subscribers. Synchronous subscribers run
// inline (in-process audit); asynchronous subscribers run on a worker queue
// (email delivery). Failures on either path are logged, never propagated to
// the caller.
type Dispatcher struct {
	sync   []Subscriber
	async  []Subscriber
	queue  *jobs.Queue
	logger *zap.Logger
}

// DispatcherConfig tunes the async delivery queue.
type DispatcherConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewDispatcher constructs a dispatcher with the given subscribers.
func NewDispatcher(syncSubs, asyncSubs []Subscriber, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{sync: syncSubs, async: asyncSubs, logger: logger}
	if len(asyncSubs) > 0 {
		d.queue = jobs.NewQueue("events", d.handleAsync, jobs.QueueConfig{
			Workers:    cfg.Workers,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
		})
	}
	return d
}

// Start launches the async delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.queue != nil {
		d.queue.Start(ctx)
	}
}

// Stop drains the async delivery workers.
func (d *Dispatcher) Stop() {
	if d.queue != nil {
		d.queue.Stop()
	}
}

// Emit implements Sink.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	for _, sub := range d.sync {
		if err := sub.Handle(ctx, event); err != nil {
			d.logger.Warn("event subscriber failed",
				zap.String("subscriber", sub.Name()),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}

	if d.queue == nil {
		return
	}
	job := jobs.Job{ID: event.ID, Type: string(event.Type), Payload: event}
	if err := d.queue.Enqueue(job); err != nil {
		d.logger.Warn("failed to enqueue event for async delivery",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func (d *Dispatcher) handleAsync(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(Event)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	var firstErr error
	for _, sub := range d.async {
		if err := sub.Handle(ctx, event); err != nil {
			d.logger.Warn("async event subscriber failed",
				zap.String("subscriber", sub.Name()),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
