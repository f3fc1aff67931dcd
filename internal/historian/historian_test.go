// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmypass17/wordjamboree/internal/cache"
	"github.com/timmypass17/wordjamboree/internal/models"
)

type fakeWriter struct {
	mu        sync.Mutex
	actions   []models.GameActionRecord
	batches   int
	abandoned []uuid.UUID
	fail      bool
}

func (f *fakeWriter) WriteActions(_ context.Context, recs []models.GameActionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("db down")
	}
	f.batches++
	f.actions = append(f.actions, recs...)
	return nil
}

func (f *fakeWriter) MarkAbandoned(_ context.Context, gameID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, gameID)
	return true, nil
}

func (f *fakeWriter) snapshot() ([]models.GameActionRecord, []uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GameActionRecord(nil), f.actions...), append([]uuid.UUID(nil), f.abandoned...)
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func startService(t *testing.T, w Writer, opts Options) (*cache.ActionQueue, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	svc := New(rdb, w, opts, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("historian did not stop")
		}
	}
	return cache.NewActionQueue(rdb, opts.Queue), stop
}

func action(gameID uuid.UUID, idx int, typ string) models.GameActionRecord {
	return models.GameActionRecord{
		RoomID:      uuid.New(),
		GameID:      gameID,
		ActionIndex: idx,
		ActorUserID: uuid.New(),
		ActionType:  typ,
		Timestamp:   time.Now().UnixMilli(),
	}
}

func TestRecordsAreFlushedInOrder(t *testing.T) {
	w := &fakeWriter{}
	q, stop := startService(t, w, Options{BatchSize: 2, FlushDelay: 50 * time.Millisecond, PopTimeout: time.Second})
	defer stop()

	gameID := uuid.New()
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, action(gameID, 1, models.ActionStartGame)))
	require.NoError(t, q.Publish(ctx, action(gameID, 2, models.ActionWord)))
	require.NoError(t, q.Publish(ctx, action(gameID, 3, models.ActionDamage)))

	require.Eventually(t, func() bool {
		got, _ := w.snapshot()
		return len(got) == 3
	}, 3*time.Second, 20*time.Millisecond)

	got, _ := w.snapshot()
	for i, rec := range got {
		assert.Equal(t, i+1, rec.ActionIndex)
		assert.Equal(t, gameID, rec.GameID)
	}
}

func TestShutdownFlushesPendingBatch(t *testing.T) {
	w := &fakeWriter{}
	q, stop := startService(t, w, Options{BatchSize: 100, FlushDelay: time.Hour, PopTimeout: time.Second})

	require.NoError(t, q.Publish(context.Background(), action(uuid.New(), 1, models.ActionJoin)))
	// Give the reader time to pop the record before stopping.
	time.Sleep(300 * time.Millisecond)
	stop()

	got, _ := w.snapshot()
	assert.Len(t, got, 1)
}

func TestIdleGameIsAbandoned(t *testing.T) {
	w := &fakeWriter{}
	q, stop := startService(t, w, Options{
		FlushDelay: 20 * time.Millisecond,
		Inactivity: 50 * time.Millisecond,
		SweepEvery: 20 * time.Millisecond,
		PopTimeout: time.Second,
	})
	defer stop()

	idle := uuid.New()
	require.NoError(t, q.Publish(context.Background(), action(idle, 1, models.ActionStartGame)))

	require.Eventually(t, func() bool {
		_, abandoned := w.snapshot()
		return len(abandoned) == 1
	}, 3*time.Second, 20*time.Millisecond)

	_, abandoned := w.snapshot()
	assert.Equal(t, idle, abandoned[0])
}

func TestEndedGameIsNotSwept(t *testing.T) {
	w := &fakeWriter{}
	svc := New(nil, w, Options{Inactivity: time.Minute}, testLogger())

	gameID := uuid.New()
	svc.track(action(gameID, 1, models.ActionStartGame))
	svc.track(action(gameID, 2, models.ActionEndGame))
	svc.sweep(context.Background(), time.Now().Add(time.Hour))

	_, abandoned := w.snapshot()
	assert.Empty(t, abandoned)
}

func TestFailedFlushIsDropped(t *testing.T) {
	w := &fakeWriter{fail: true}
	svc := New(nil, w, Options{BatchSize: 1}, testLogger())

	assert.True(t, svc.append(action(uuid.New(), 1, models.ActionJoin)))
	svc.flush(context.Background())
	assert.Empty(t, svc.batch)
}
