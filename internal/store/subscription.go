package store

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/models"
)

// subscription turns a sequence of committed snapshots into filtered changes.
// deliver never blocks the committer; run diffs and forwards on its own goroutine.
type subscription struct {
	path  string
	kinds []EventKind
	out   chan Change
	log   logrus.FieldLogger

	mu      sync.Mutex
	pending []envelope
	wake    chan struct{}

	last        *models.GameDocument
	lastVersion int64
	started     bool
}

func newSubscription(path string, kinds []EventKind, log logrus.FieldLogger) *subscription {
	return &subscription{
		path:  path,
		kinds: kinds,
		out:   make(chan Change, 64),
		log:   log,
		wake:  make(chan struct{}, 1),
	}
}

func (s *subscription) deliver(env envelope) {
	s.mu.Lock()
	s.pending = append(s.pending, env)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, env := range batch {
			if s.started && env.Version <= s.lastVersion {
				continue
			}
			changes, err := Diff(s.last, env.Doc)
			if err != nil {
				s.log.Warnf("dropping snapshot version %d: %v", env.Version, err)
				continue
			}
			initial := !s.started
			s.started = true
			s.last = env.Doc
			s.lastVersion = env.Version

			for _, c := range changes {
				c, ok := c.Scope(s.path, s.kinds)
				if !ok {
					continue
				}
				c.Version = env.Version
				c.Initial = initial
				select {
				case s.out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
