package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk/pkg/db/dbtest"
	"github.com/angelmondragon/orderdesk/pkg/db/models"
	"github.com/angelmondragon/orderdesk/pkg/enums"
	"github.com/angelmondragon/orderdesk/pkg/logger"
)

type stubStore struct {
	mu      sync.Mutex
	rows    []*models.OrderLog
	err     error
	release chan struct{}
}

func (s *stubStore) Insert(ctx context.Context, log *models.OrderLog) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, log)
	return nil
}

func (s *stubStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type stubCounter struct {
	mu      sync.Mutex
	reasons []string
}

func (c *stubCounter) IncAuditFailure(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reasons = append(c.reasons, reason)
}

func (c *stubCounter) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.reasons...)
}

func closeRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
}

func TestRecorderPersistsEntries(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	rec, err := NewRecorder(RecorderParams{Store: repo, Logger: logger.Nop()})
	require.NoError(t, err)

	orderID := uuid.New()
	operator := uuid.New()
	rec.Record(context.Background(), Entry{
		OrderID:      orderID,
		OperatorID:   &operator,
		OperatorRole: string(enums.RoleSupplier),
		Action:       enums.OrderLogActionStartGiftTimer,
		Details:      "supplier s1 started gift timer for order #A-1",
	})
	rec.Record(context.Background(), Entry{
		OrderID:      orderID,
		OperatorRole: enums.OperatorSystem,
		Action:       enums.OrderLogActionGiftTimerExpire,
	})
	closeRecorder(t, rec)

	logs, err := repo.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, string(enums.OrderLogActionStartGiftTimer), logs[0].Action)
	require.NotNil(t, logs[0].OperatorID)
	assert.Equal(t, operator, *logs[0].OperatorID)
	assert.Nil(t, logs[1].OperatorID)
	assert.Equal(t, enums.OperatorSystem, logs[1].OperatorRole)
}

func TestRecorderInsertFailureIsCountedNotReturned(t *testing.T) {
	store := &stubStore{err: errors.New("disk full")}
	counter := &stubCounter{}
	rec, err := NewRecorder(RecorderParams{Store: store, Logger: logger.Nop(), Metrics: counter})
	require.NoError(t, err)

	rec.Record(context.Background(), Entry{OrderID: uuid.New(), Action: enums.OrderLogActionCreate})
	closeRecorder(t, rec)

	assert.Equal(t, []string{FailureInsert}, counter.snapshot())
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	store := &stubStore{release: make(chan struct{})}
	counter := &stubCounter{}
	rec, err := NewRecorder(RecorderParams{Store: store, Logger: logger.Nop(), Metrics: counter, QueueSize: 1})
	require.NoError(t, err)

	// The worker holds the first entry inside Insert, the second fills the queue.
	rec.Record(context.Background(), Entry{OrderID: uuid.New()})
	require.Eventually(t, func() bool { return len(rec.queue) == 0 }, time.Second, 5*time.Millisecond)
	rec.Record(context.Background(), Entry{OrderID: uuid.New()})
	rec.Record(context.Background(), Entry{OrderID: uuid.New()})

	assert.Equal(t, []string{FailureQueueFull}, counter.snapshot())

	close(store.release)
	closeRecorder(t, rec)
	assert.Equal(t, 2, store.count())
}

func TestRecorderAfterCloseDoesNotPanic(t *testing.T) {
	counter := &stubCounter{}
	rec, err := NewRecorder(RecorderParams{Store: &stubStore{}, Metrics: counter})
	require.NoError(t, err)
	closeRecorder(t, rec)

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Entry{OrderID: uuid.New()})
	})
	assert.Equal(t, []string{FailureAfterClosing}, counter.snapshot())
	closeRecorder(t, rec)
}

func TestNewRecorderRequiresStore(t *testing.T) {
	_, err := NewRecorder(RecorderParams{})
	require.Error(t, err)
}
