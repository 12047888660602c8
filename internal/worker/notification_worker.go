// Package worker moves notification fan-out onto a Redis-backed asynq queue.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/Astro-67/bookissue-backend/internal/config"
	"github.com/Astro-67/bookissue-backend/internal/events"
)

// TaskFanout carries one encoded domain event.
const TaskFanout = "notification:fanout"

const maxRetry = 5

// Deliverer stores the notifications produced by an event.
type Deliverer interface {
	Deliver(ctx context.Context, event events.Event) (int, error)
}

// RedisOpt converts the Redis settings into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// NewFanoutTask wraps event in a task whose id is the event id, so a re-enqueue is rejected by
// the queue itself.
func NewFanoutTask(event events.Event, queue string) (*asynq.Task, error) {
	payload, err := events.Encode(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFanout, payload,
		asynq.TaskID(event.Meta().ID),
		asynq.Queue(queue),
		asynq.MaxRetry(maxRetry),
	), nil
}

// Client submits fan-out tasks.
type Client struct {
	client *asynq.Client
	queue  string
	logger *zap.Logger
}

// NewClient constructs an asynq client.
func NewClient(opts asynq.RedisConnOpt, queue string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{client: asynq.NewClient(opts), queue: queue, logger: logger}
}

// Enqueue schedules fan-out for event. An event already queued counts as success.
func (c *Client) Enqueue(ctx context.Context, event events.Event) error {
	task, err := NewFanoutTask(event, c.queue)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.logger.Debug("fan-out already queued", zap.String("event_id", event.Meta().ID))
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Debug("fan-out queued",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
		zap.String("event_type", string(event.Type())))
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// FanoutHandler decodes the task payload and delivers it. Undecodable payloads are not retried.
func FanoutHandler(deliverer Deliverer, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		event, err := events.Decode(task.Payload())
		if err != nil {
			logger.Error("drop fan-out task", zap.Error(err))
			return fmt.Errorf("decode fan-out payload: %v: %w", err, asynq.SkipRetry)
		}
		created, err := deliverer.Deliver(ctx, event)
		if err != nil {
			return fmt.Errorf("deliver %s %s: %w", event.Type(), event.Meta().ID, err)
		}
		logger.Info("fan-out delivered",
			zap.String("event_id", event.Meta().ID),
			zap.String("event_type", string(event.Type())),
			zap.Int("created", created))
		return nil
	}
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisConnOpt
	Queue       string
	Concurrency int
	Deliverer   Deliverer
	Logger      *zap.Logger
}

// Worker wraps the asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Deliverer == nil {
		return nil, errors.New("worker: deliverer required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskFanout, FanoutHandler(cfg.Deliverer, logger))
	return &Worker{server: srv, mux: mux, logger: logger}, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.logger.Info("notification worker started")
	<-ctx.Done()
	w.server.Shutdown()
	w.logger.Info("notification worker stopped")
	return nil
}
