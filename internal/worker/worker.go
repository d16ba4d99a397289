package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/storefront/internal/telemetry"
)

// JobCancelStaleOrders is the metrics label for sweeper runs.
const JobCancelStaleOrders = "cancel_stale_orders"

// StaleOrderCanceller cancels card orders whose payment never started.
// It is implemented by service.OrderService.
type StaleOrderCanceller interface {
	CancelStalePendingOrders(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// Interval is how often to sweep for stale orders
	Interval time.Duration

	// MaxAge is how long a card order may wait for its payment intent
	MaxAge time.Duration

	// BatchSize caps the orders cancelled per sweep
	BatchSize int

	// RunTimeout bounds a single sweep
	RunTimeout time.Duration
}

// Worker periodically releases stock held by abandoned card orders
type Worker struct {
	config Config
	orders StaleOrderCanceller
	logger *slog.Logger
}

// NewWorker creates a new stale order sweeper
func NewWorker(orders StaleOrderCanceller, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.Interval == 0 {
		config.Interval = 5 * time.Minute
	}
	if config.MaxAge == 0 {
		config.MaxAge = time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.RunTimeout == 0 {
		config.RunTimeout = time.Minute
	}

	return &Worker{
		config: config,
		orders: orders,
		logger: logger,
	}
}

// Start sweeps on every tick until the context is cancelled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"interval", w.config.Interval,
		"max_age", w.config.MaxAge,
		"batch_size", w.config.BatchSize,
	)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			return ctx.Err()

		case <-ticker.C:
			// Runs are sequential, so a slow sweep delays the next tick
			// instead of overlapping it.
			_, _ = w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns the number of orders cancelled
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	start := time.Now()
	count, err := w.orders.CancelStalePendingOrders(runCtx, w.config.MaxAge, w.config.BatchSize)
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
		w.logger.Error("job failed",
			"job", JobCancelStaleOrders,
			"worker_id", w.config.WorkerID,
			"cancelled", count,
			"error", err,
		)
	} else if count > 0 {
		w.logger.Info("job completed",
			"job", JobCancelStaleOrders,
			"worker_id", w.config.WorkerID,
			"cancelled", count,
			"duration", duration,
		)
	}

	if telemetry.Business != nil {
		telemetry.Business.JobsProcessed.WithLabelValues(JobCancelStaleOrders, result).Inc()
		telemetry.Business.JobDuration.WithLabelValues(JobCancelStaleOrders).Observe(duration.Seconds())
	}
	return count, err
}
