// Package historian drains the action queue into the game history database
// and closes games that stop receiving actions.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/cache"
	"github.com/timmypass17/wordjamboree/internal/models"
	"golang.org/x/sync/errgroup"
)

// Writer persists what the historian collects.
type Writer interface {
	WriteActions(ctx context.Context, recs []models.GameActionRecord) error
	MarkAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error)
}

type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// Inactivity is how long a game may go without actions before it is
	// marked abandoned.
	Inactivity time.Duration
	// SweepEvery is how often idle games are looked for. Defaults to a minute.
	SweepEvery time.Duration
	PopTimeout time.Duration
}

func (o *Options) defaults() {
	if o.Queue == "" {
		o.Queue = cache.DefaultQueueName
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushDelay <= 0 {
		o.FlushDelay = 500 * time.Millisecond
	}
	if o.Inactivity <= 0 {
		o.Inactivity = 10 * time.Minute
	}
	if o.SweepEvery <= 0 {
		o.SweepEvery = time.Minute
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 3 * time.Second
	}
}

// Service pops records from Redis, batches them and hands them to a Writer.
type Service struct {
	rdb  *redis.Client
	w    Writer
	opts Options
	log  logrus.FieldLogger

	lastActivity sync.Map // uuid.UUID -> time.Time

	batchMu sync.Mutex
	batch   []models.GameActionRecord
}

func New(rdb *redis.Client, w Writer, opts Options, log logrus.FieldLogger) *Service {
	opts.defaults()
	return &Service{
		rdb:   rdb,
		w:     w,
		opts:  opts,
		log:   log,
		batch: make([]models.GameActionRecord, 0, opts.BatchSize),
	}
}

// Run blocks until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.log.Infof("historian reading %s", s.opts.Queue)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.flushLoop(gctx) })
	g.Go(func() error { return s.inactivityLoop(gctx) })
	err := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.log.Info("historian stopped")
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := s.rdb.BLPop(ctx, s.opts.PopTimeout, s.opts.Queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			s.log.WithError(err).Error("BLPop")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload.
		if len(res) < 2 {
			continue
		}
		var rec models.GameActionRecord
		if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
			s.log.WithError(err).Warn("invalid action record")
			continue
		}
		s.track(rec)
		if s.append(rec) {
			s.flush(ctx)
		}
	}
}

func (s *Service) track(rec models.GameActionRecord) {
	if rec.ActionType == models.ActionEndGame {
		s.lastActivity.Delete(rec.GameID)
		return
	}
	s.lastActivity.Store(rec.GameID, time.Now())
}

// append adds rec and reports whether the batch is full.
func (s *Service) append(rec models.GameActionRecord) bool {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	return len(s.batch) >= s.opts.BatchSize
}

func (s *Service) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// flush writes the pending batch. A failed batch is logged and dropped.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]models.GameActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.w.WriteActions(ctx, pending); err != nil {
		s.log.WithError(err).Errorf("failed to flush %d actions", len(pending))
		return
	}
	s.log.Debugf("flushed %d actions", len(pending))
}

func (s *Service) inactivityLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx, time.Now())
		}
	}
}

// sweep marks every game idle for longer than the inactivity window abandoned.
func (s *Service) sweep(ctx context.Context, now time.Time) {
	s.lastActivity.Range(func(key, val interface{}) bool {
		gameID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.Inactivity {
			return true
		}
		// Pending actions of the game must land before it is closed.
		s.flush(ctx)
		changed, err := s.w.MarkAbandoned(ctx, gameID)
		if err != nil {
			s.log.WithError(err).Warnf("failed to mark game %v abandoned", gameID)
			return true
		}
		s.lastActivity.Delete(gameID)
		if changed {
			s.log.Infof("marked game %v as abandoned due to inactivity", gameID)
		}
		return true
	})
}
