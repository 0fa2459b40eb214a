// Package audit records order history without blocking the request that produced it.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/logger"
)

const (
	defaultQueueSize     = 256
	defaultInsertTimeout = 5 * time.Second

	FailureQueueFull    = "queue_full"
	FailureInsert       = "insert_failed"
	FailureAfterClosing = "closed"
)

// Entry is one audit record. OperatorID is nil for system actions.
type Entry struct {
	OrderID      uuid.UUID
	OperatorID   *uuid.UUID
	OperatorRole string
	Action       enums.OrderLogAction
	Details      string
	At           time.Time
}

type store interface {
	Insert(ctx context.Context, log *models.OrderLog) error
}

type failureCounter interface {
	IncAuditFailure(reason string)
}

// RecorderParams configures a Recorder.
type RecorderParams struct {
	Store         store
	Logger        *logger.Logger
	Metrics       failureCounter
	QueueSize     int
	InsertTimeout time.Duration
}

// Recorder buffers entries on a channel drained by a single background writer.
// Failures are logged and counted, never returned to the caller.
type Recorder struct {
	store   store
	logg    *logger.Logger
	metrics failureCounter
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}
}

// NewRecorder starts the background writer.
func NewRecorder(params RecorderParams) (*Recorder, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	size := params.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := params.InsertTimeout
	if timeout <= 0 {
		timeout = defaultInsertTimeout
	}
	r := &Recorder{
		store:   params.Store,
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
		queue:   make(chan Entry, size),
		done:    make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Record enqueues entry. It never blocks.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil {
		return
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.fail(ctx, entry, FailureAfterClosing, nil)
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.fail(ctx, entry, FailureQueueFull, nil)
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit drain: %w", ctx.Err())
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *Recorder) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	row := &models.OrderLog{
		ID:           uuid.New(),
		OrderID:      entry.OrderID,
		OperatorID:   entry.OperatorID,
		OperatorRole: entry.OperatorRole,
		Action:       string(entry.Action),
		Details:      entry.Details,
		CreatedAt:    entry.At,
	}
	if err := r.store.Insert(ctx, row); err != nil {
		r.fail(ctx, entry, FailureInsert, err)
	}
}

func (r *Recorder) fail(ctx context.Context, entry Entry, reason string, err error) {
	if r.metrics != nil {
		r.metrics.IncAuditFailure(reason)
	}
	if r.logg == nil {
		return
	}
	fields := map[string]any{
		"order_id":     entry.OrderID.String(),
		"audit_action": string(entry.Action),
		"reason":       reason,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	r.logg.Warn(r.logg.WithFields(ctx, fields), "audit.record_failed")
}
