package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/internal/notifications"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/logger"
	"go.uber.org/multierr"
)

const (
	giftTimerJobName      = "gift-timer-expiry"
	defaultGiftTimerBatch = 200
)

// GiftTimerJobParams configure the gift timer sweep.
type GiftTimerJobParams struct {
	Logger    *logger.Logger
	Orders    giftTimerExpirer
	Notifier  notifications.Dispatcher
	Metrics   affectedCounter
	BatchSize int
}

type giftTimerExpirer interface {
	ListDueGiftTimers(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	ExpireGiftTimer(ctx context.Context, order models.Order, now time.Time) (bool, error)
}

type affectedCounter interface {
	AddAffected(job string, n int)
}

// SweepResult summarizes one pass over the due gift timers.
type SweepResult struct {
	Due      int
	Advanced int
	Skipped  int
	Failed   int
}

// NewGiftTimerJob builds the job that moves gift orders whose timer ran out to ready_to_send.
func NewGiftTimerJob(params GiftTimerJobParams) (*GiftTimerJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.NewLogDispatcher(params.Logger)
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultGiftTimerBatch
	}
	return &GiftTimerJob{
		logg:     params.Logger,
		orders:   params.Orders,
		notifier: notifier,
		metrics:  params.Metrics,
		batch:    batch,
		now:      time.Now,
	}, nil
}

// GiftTimerJob is safe to run repeatedly; an order that already left timing is skipped.
type GiftTimerJob struct {
	logg     *logger.Logger
	orders   giftTimerExpirer
	notifier notifications.Dispatcher
	metrics  affectedCounter
	batch    int
	now      func() time.Time
}

func (j *GiftTimerJob) Name() string { return giftTimerJobName }

func (j *GiftTimerJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep expires every due timer independently, fetching batches until one comes back short.
// A failed order never stops the rest of the sweep; the failures are combined into the
// returned error. Orders that failed are not retried within the same sweep, so a batch made
// only of them ends the pass and they wait for the next tick.
func (j *GiftTimerJob) Sweep(ctx context.Context) (SweepResult, error) {
	now := j.now().UTC()

	var (
		result SweepResult
		errs   []error
		seen   = map[uuid.UUID]struct{}{}
	)
	for {
		due, err := j.orders.ListDueGiftTimers(ctx, now, j.batch)
		if err != nil {
			if len(seen) == 0 {
				return SweepResult{}, fmt.Errorf("query due gift timers: %w", err)
			}
			errs = append(errs, fmt.Errorf("query due gift timers: %w", err))
			break
		}

		fresh := 0
		for _, order := range due {
			if ctx.Err() != nil {
				break
			}
			if _, ok := seen[order.ID]; ok {
				continue
			}
			seen[order.ID] = struct{}{}
			fresh++
			j.expire(ctx, order, now, &result, &errs)
		}

		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if len(due) < j.batch || fresh == 0 {
			break
		}
	}

	if j.metrics != nil {
		j.metrics.AddAffected(giftTimerJobName, result.Advanced)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":      result.Due,
		"advanced": result.Advanced,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	})
	j.logg.Info(logCtx, "gift timer sweep complete")
	return result, multierr.Combine(errs...)
}

func (j *GiftTimerJob) expire(ctx context.Context, order models.Order, now time.Time, result *SweepResult, errs *[]error) {
	result.Due++
	moved, err := j.orders.ExpireGiftTimer(ctx, order, now)
	if err != nil {
		result.Failed++
		*errs = append(*errs, fmt.Errorf("expire order %s: %w", order.ID, err))
		return
	}
	if !moved {
		result.Skipped++
		return
	}
	result.Advanced++
	if msg, ok := notifications.GiftTimerExpired(order, now); ok {
		j.notifier.Notify(ctx, msg)
	}
}
