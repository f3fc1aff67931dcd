package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/models"
)

// MemoryStore is an in-process Store. Documents are kept JSON encoded so that
// transforms see exactly what they would see through the Redis backend.
type MemoryStore struct {
	// MaxRetries bounds transform re-runs per Transact.
	MaxRetries int
	// Clock is the store's server clock.
	Clock func() time.Time

	log   logrus.FieldLogger
	mu    sync.Mutex
	rooms map[uuid.UUID]*memoryRoom
}

type memoryRoom struct {
	meta     models.Room
	counters map[string]int64
	data     []byte
	version  int64
	subs     map[*subscription]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(log logrus.FieldLogger) *MemoryStore {
	return &MemoryStore{
		MaxRetries: DefaultMaxRetries,
		Clock:      time.Now,
		log:        log,
		rooms:      make(map[uuid.UUID]*memoryRoom),
	}
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room models.Room, doc *models.GameDocument) error {
	doc = doc.Clone()
	doc.ResolveServerValues(s.Clock().UnixMilli())
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.ID]; exists {
		return ErrRoomExists
	}
	s.rooms[room.ID] = &memoryRoom{
		meta:     room,
		counters: map[string]int64{models.FieldPlayerCount: room.PlayerCount},
		data:     data,
		version:  1,
		subs:     make(map[*subscription]struct{}),
	}
	s.log.Debugf("created room %s", room.ID)
	return nil
}

func (s *MemoryStore) Rooms(ctx context.Context) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		meta := r.meta
		meta.PlayerCount = r.counters[models.FieldPlayerCount]
		rooms = append(rooms, meta)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt < rooms[j].CreatedAt })
	return rooms, nil
}

func (s *MemoryStore) Get(ctx context.Context, roomID uuid.UUID) (*models.GameDocument, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	data := r.data
	s.mu.Unlock()
	return decodeDocument(data, s.log), nil
}

func (s *MemoryStore) Transact(ctx context.Context, roomID uuid.UUID, fn TransformFunc) (Result, error) {
	for attempt := 1; attempt <= s.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		s.mu.Lock()
		r, ok := s.rooms[roomID]
		if !ok {
			s.mu.Unlock()
			return Result{}, ErrRoomNotFound
		}
		data, version := r.data, r.version
		s.mu.Unlock()

		current := decodeDocument(data, s.log)
		next, outcome := fn(current.Clone())
		res := Result{Before: current, After: current, Version: version, Attempts: attempt}
		if outcome == Abort || next == nil {
			return res, nil
		}

		next.ResolveServerValues(s.Clock().UnixMilli())
		encoded, err := json.Marshal(next)
		if err != nil {
			return Result{}, fmt.Errorf("marshal document: %w", err)
		}
		committed := decodeDocument(encoded, s.log)

		s.mu.Lock()
		if r.version != version {
			s.mu.Unlock()
			continue
		}
		r.version++
		r.data = encoded
		env := envelope{Version: r.version, Doc: committed}
		for sub := range r.subs {
			sub.deliver(env)
		}
		s.mu.Unlock()

		res.Committed = true
		res.After = committed
		res.Version = env.Version
		return res, nil
	}
	return Result{}, ErrTooManyRetries
}

func (s *MemoryStore) Subscribe(ctx context.Context, roomID uuid.UUID, path string, kinds ...EventKind) (<-chan Change, error) {
	sub := newSubscription(path, kinds, s.log)

	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	r.subs[sub] = struct{}{}
	sub.deliver(envelope{Version: r.version, Doc: decodeDocument(r.data, s.log)})
	s.mu.Unlock()

	go sub.run(ctx)
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(r.subs, sub)
		s.mu.Unlock()
	}()
	return sub.out, nil
}

func (s *MemoryStore) AtomicIncrement(ctx context.Context, roomID uuid.UUID, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return 0, ErrRoomNotFound
	}
	r.counters[field] += delta
	return r.counters[field], nil
}

func (s *MemoryStore) ServerTimestamp(ctx context.Context) (int64, error) {
	return s.Clock().UnixMilli(), nil
}

// decodeDocument returns nil for missing or malformed documents.
func decodeDocument(data []byte, log logrus.FieldLogger) *models.GameDocument {
	if len(data) == 0 {
		return nil
	}
	var doc models.GameDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warnf("treating malformed game document as empty: %v", err)
		return nil
	}
	return &doc
}
