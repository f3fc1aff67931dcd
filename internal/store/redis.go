package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/models"
)

// Key layout:
//
//	games:{roomID}          JSON GameDocument
//	games:{roomID}:version  commit counter
//	games:{roomID}:changes  pub/sub channel of committed snapshots
//	rooms:{roomID}          room metadata hash
//	rooms                   set of room ids
const roomIndexKey = "rooms"

func docKey(id uuid.UUID) string     { return "games:" + id.String() }
func versionKey(id uuid.UUID) string { return "games:" + id.String() + ":version" }
func channelKey(id uuid.UUID) string { return "games:" + id.String() + ":changes" }
func roomKey(id uuid.UUID) string    { return "rooms:" + id.String() }

// RedisStore is the production Store. Transactions use WATCH/MULTI/EXEC: a
// commit fails with redis.TxFailedErr when another client wrote the document
// after it was read, and the transform is re-run against the new value. The
// committed snapshot is published inside the same MULTI so subscribers never
// miss a commit.
type RedisStore struct {
	MaxRetries int

	rdb *redis.Client
	log logrus.FieldLogger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb *redis.Client, log logrus.FieldLogger) *RedisStore {
	return &RedisStore{
		MaxRetries: DefaultMaxRetries,
		rdb:        rdb,
		log:        log,
	}
}

func (s *RedisStore) CreateRoom(ctx context.Context, room models.Room, doc *models.GameDocument) error {
	now, err := s.ServerTimestamp(ctx)
	if err != nil {
		return err
	}
	doc = doc.Clone()
	doc.ResolveServerValues(now)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	key := docKey(room.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key, roomKey(room.ID)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrRoomExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Set(ctx, versionKey(room.ID), 1, 0)
			pipe.HSet(ctx, roomKey(room.ID),
				"title", room.Title,
				"createdAt", room.CreatedAt,
				models.FieldPlayerCount, room.PlayerCount,
			)
			pipe.SAdd(ctx, roomIndexKey, room.ID.String())
			return nil
		})
		return err
	}, key, roomKey(room.ID))
	if errors.Is(err, ErrRoomExists) || errors.Is(err, redis.TxFailedErr) {
		return ErrRoomExists
	}
	if err != nil {
		return fmt.Errorf("create room %s: %w", room.ID, err)
	}
	return nil
}

func (s *RedisStore) Rooms(ctx context.Context) ([]models.Room, error) {
	ids, err := s.rdb.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list room ids: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, "rooms:"+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}

	rooms := make([]models.Room, 0, len(ids))
	for i, id := range ids {
		roomID, err := uuid.Parse(id)
		if err != nil {
			s.log.Warnf("skipping room with invalid id %q", id)
			continue
		}
		h := cmds[i].Val()
		if len(h) == 0 {
			continue
		}
		createdAt, _ := strconv.ParseInt(h["createdAt"], 10, 64)
		count, _ := strconv.ParseInt(h[models.FieldPlayerCount], 10, 64)
		rooms = append(rooms, models.Room{
			ID:          roomID,
			Title:       h["title"],
			CreatedAt:   createdAt,
			PlayerCount: count,
		})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt < rooms[j].CreatedAt })
	return rooms, nil
}

func (s *RedisStore) Get(ctx context.Context, roomID uuid.UUID) (*models.GameDocument, error) {
	raw, err := s.rdb.Get(ctx, docKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return decodeDocument(raw, s.log), nil
}

func (s *RedisStore) Transact(ctx context.Context, roomID uuid.UUID, fn TransformFunc) (Result, error) {
	key, verKey := docKey(roomID), versionKey(roomID)

	for attempt := 1; attempt <= s.MaxRetries; attempt++ {
		res := Result{Attempts: attempt}

		txf := func(tx *redis.Tx) error {
			vals, err := tx.MGet(ctx, key, verKey).Result()
			if err != nil {
				return err
			}
			if vals[0] == nil {
				return ErrRoomNotFound
			}
			raw, _ := vals[0].(string)
			version := parseVersion(vals[1])

			current := decodeDocument([]byte(raw), s.log)
			res.Before, res.After, res.Version = current, current, version

			next, outcome := fn(current.Clone())
			if outcome == Abort || next == nil {
				return nil
			}

			now, err := tx.Time(ctx).Result()
			if err != nil {
				return err
			}
			next.ResolveServerValues(now.UnixMilli())
			encoded, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("marshal document: %w", err)
			}
			committed := decodeDocument(encoded, s.log)
			env, err := json.Marshal(envelope{Version: version + 1, Doc: committed})
			if err != nil {
				return fmt.Errorf("marshal snapshot: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				pipe.Set(ctx, verKey, version+1, 0)
				pipe.Publish(ctx, channelKey(roomID), env)
				return nil
			})
			if err != nil {
				return err
			}
			res.Committed, res.After, res.Version = true, committed, version+1
			return nil
		}

		err := s.rdb.Watch(ctx, txf, key, verKey)
		if errors.Is(err, redis.TxFailedErr) {
			s.log.Debugf("room %s: transaction conflict on attempt %d, retrying", roomID, attempt)
			continue
		}
		if errors.Is(err, ErrRoomNotFound) {
			return Result{}, err
		}
		if err != nil {
			return Result{}, fmt.Errorf("transact room %s: %w", roomID, err)
		}
		return res, nil
	}
	return Result{}, ErrTooManyRetries
}

func (s *RedisStore) Subscribe(ctx context.Context, roomID uuid.UUID, path string, kinds ...EventKind) (<-chan Change, error) {
	// Subscribe before reading the baseline so no commit falls in between;
	// snapshots older than the baseline are dropped by version.
	ps := s.rdb.Subscribe(ctx, channelKey(roomID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe room %s: %w", roomID, err)
	}

	vals, err := s.rdb.MGet(ctx, docKey(roomID), versionKey(roomID)).Result()
	if err != nil {
		ps.Close()
		return nil, fmt.Errorf("read baseline for room %s: %w", roomID, err)
	}
	if vals[0] == nil {
		ps.Close()
		return nil, ErrRoomNotFound
	}
	raw, _ := vals[0].(string)

	sub := newSubscription(path, kinds, s.log)
	sub.deliver(envelope{Version: parseVersion(vals[1]), Doc: decodeDocument([]byte(raw), s.log)})
	go sub.run(ctx)

	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					s.log.Warnf("room %s: invalid snapshot on %s: %v", roomID, msg.Channel, err)
					continue
				}
				sub.deliver(env)
			}
		}
	}()
	return sub.out, nil
}

func (s *RedisStore) AtomicIncrement(ctx context.Context, roomID uuid.UUID, field string, delta int64) (int64, error) {
	n, err := s.rdb.Exists(ctx, roomKey(roomID)).Result()
	if err != nil {
		return 0, fmt.Errorf("check room %s: %w", roomID, err)
	}
	if n == 0 {
		return 0, ErrRoomNotFound
	}
	v, err := s.rdb.HIncrBy(ctx, roomKey(roomID), field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s for room %s: %w", field, roomID, err)
	}
	return v, nil
}

func (s *RedisStore) ServerTimestamp(ctx context.Context) (int64, error) {
	t, err := s.rdb.Time(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("redis time: %w", err)
	}
	return t.UnixMilli(), nil
}

func parseVersion(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
