package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/models"
	"github.com/timmypass17/wordjamboree/internal/store"
)

// ErrSubscriptionClosed is returned by Run when the store ends the change stream.
var ErrSubscriptionClosed = errors.New("room subscription closed")

// live typing is not part of the action log
const actionUpdateWord = "action_update_word"

// ActionPublisher receives a record for every committed in-game action.
type ActionPublisher interface {
	Publish(ctx context.Context, rec models.GameActionRecord) error
}

// Session is one connected client of a room. It projects the room's changes
// into events, runs the client's timers and submits the client's actions.
// Timers and change handling run on the session loop started by Run.
type Session struct {
	RoomID   uuid.UUID
	PlayerID uuid.UUID

	// BroadcastFn receives every event for this client. If nil, events are dropped.
	BroadcastFn func(ev GameEvent)
	// Actions receives the action log of committed in-game actions. Optional.
	Actions ActionPublisher

	store store.Store
	orch  *Orchestrator
	rules Rules
	log   logrus.FieldLogger

	projector *Projector
	tasks     chan func()
	done      chan struct{}
	inflight  sync.WaitGroup

	// stopMu orders inflight.Add against the final Wait in Run.
	stopMu  sync.Mutex
	stopped bool

	// loop state
	ctx         context.Context
	turnSeq     uint64
	turnTimer   TurnTimer
	afkTimer    TurnTimer
	ticker      *time.Ticker
	clockOffset int64
}

// NewSession prepares a session for playerID in roomID. Call Run to start it.
func NewSession(roomID, playerID uuid.UUID, st store.Store, orch *Orchestrator, log logrus.FieldLogger) *Session {
	return &Session{
		RoomID:    roomID,
		PlayerID:  playerID,
		store:     st,
		orch:      orch,
		rules:     orch.Rules(),
		log:       log.WithFields(logrus.Fields{"room": roomID, "player": playerID}),
		projector: NewProjector(),
		tasks:     make(chan func(), 16),
		done:      make(chan struct{}),
	}
}

// Run subscribes to the room and processes changes, timers and completions
// until ctx ends. Transactions still in flight are waited for.
func (s *Session) Run(ctx context.Context) error {
	changes, err := s.store.Subscribe(ctx, s.RoomID, "")
	if err != nil {
		return fmt.Errorf("subscribe to room %s: %w", s.RoomID, err)
	}
	if now, err := s.store.ServerTimestamp(ctx); err != nil {
		s.log.Warnf("could not read server clock, using local time: %v", err)
	} else {
		s.clockOffset = now - time.Now().UnixMilli()
	}
	s.ctx = ctx

	defer func() {
		s.stopMu.Lock()
		s.stopped = true
		s.stopMu.Unlock()
		close(s.done)
		s.turnTimer.Stop()
		s.afkTimer.Stop()
		s.stopCountdown()
		s.inflight.Wait()
	}()

	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C
		}
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			s.handleChange(c)
		case f := <-s.tasks:
			f()
		case <-tick:
			s.countdownTick()
		}
	}
}

// Join asks to join the lobby under name.
func (s *Session) Join(ctx context.Context, name string) {
	s.transact(ctx, models.ActionJoin, map[string]interface{}{"name": name}, s.orch.Join(s.PlayerID, name))
}

// StartGame starts the game without waiting for the countdown.
func (s *Session) StartGame(ctx context.Context) {
	s.transact(ctx, models.ActionStartGame, nil, s.orch.StartGame())
}

// UpdateWord shares the partially typed word with the room.
func (s *Session) UpdateWord(ctx context.Context, partial string) {
	s.transact(ctx, actionUpdateWord, nil, s.orch.UpdateWord(s.PlayerID, partial))
}

// Submit plays word.
func (s *Session) Submit(ctx context.Context, word string) {
	s.transact(ctx, models.ActionWord, map[string]interface{}{"word": NormalizeWord(word)}, s.orch.Submit(s.PlayerID, word))
}

// Exit leaves the room.
func (s *Session) Exit(ctx context.Context) {
	s.transact(ctx, models.ActionExit, nil, s.orch.Exit(s.PlayerID))
}

// transact runs fn without blocking the caller. A submitted transaction is
// not cancelled with ctx; its completion runs exactly once. Actions requested
// after Run has returned are dropped.
func (s *Session) transact(ctx context.Context, action string, payload map[string]interface{}, fn store.TransformFunc) {
	ctx = context.WithoutCancel(ctx)
	s.stopMu.Lock()
	if s.stopped {
		s.stopMu.Unlock()
		s.log.Debugf("session stopped, dropping %s", action)
		return
	}
	s.inflight.Add(1)
	s.stopMu.Unlock()
	go func() {
		defer s.inflight.Done()
		res, err := s.store.Transact(ctx, s.RoomID, fn)
		s.complete(ctx, action, payload, res, err)
	}()
}

func (s *Session) complete(ctx context.Context, action string, payload map[string]interface{}, res store.Result, err error) {
	if err != nil {
		s.log.WithError(err).Warnf("%s failed", action)
		s.post(func() {
			s.emit(GameEvent{Type: EventActionFailed, Payload: map[string]interface{}{
				"action": action,
				"error":  err.Error(),
			}})
		})
		return
	}
	if !res.Committed {
		s.log.Debugf("%s had no effect", action)
		return
	}
	if err := CheckInvariants(res.After, s.rules); err != nil {
		s.log.WithError(err).Errorf("%s committed a document that breaks the game rules (version %d)", action, res.Version)
	}

	delta := int64(len(res.After.PlayersInfo) - len(res.Before.PlayersInfo))
	if delta != 0 {
		if _, err := s.store.AtomicIncrement(ctx, s.RoomID, models.FieldPlayerCount, delta); err != nil {
			s.log.WithError(err).Warn("failed to update player count")
		}
	}
	s.publishActions(ctx, action, payload, res)
}

// publishActions logs actions that belong to a running or just finished game.
func (s *Session) publishActions(ctx context.Context, action string, payload map[string]interface{}, res store.Result) {
	if s.Actions == nil || action == actionUpdateWord {
		return
	}
	before, after := res.Before, res.After
	ended := before.State.RoomStatus == models.InProgress && after.State.RoomStatus == models.NotStarted

	var gameID uuid.UUID
	switch {
	case after.State.RoomStatus == models.InProgress:
		gameID = after.GameID
	case ended:
		gameID = before.GameID
	default:
		return
	}

	if action == models.ActionWord && after.Success[s.PlayerID] == before.Success[s.PlayerID] {
		action = models.ActionWordReject
	}
	now := time.Now().UnixMilli()
	rec := models.GameActionRecord{
		RoomID:        s.RoomID,
		GameID:        gameID,
		ActionIndex:   int(res.Version),
		ActorUserID:   s.PlayerID,
		ActionType:    action,
		ActionPayload: payload,
		Timestamp:     now,
	}
	if err := s.Actions.Publish(ctx, rec); err != nil {
		s.log.WithError(err).Warnf("failed to publish %s", action)
	}

	if ended {
		end := rec
		end.ActionType = models.ActionEndGame
		end.ActionPayload = map[string]interface{}{"rounds": before.Rounds}
		if w := after.State.Winner; w != nil {
			end.ActionPayload["winner"] = w.PlayerID.String()
			end.ActionPayload["winnerName"] = w.Name
		}
		if err := s.Actions.Publish(ctx, end); err != nil {
			s.log.WithError(err).Warn("failed to publish game end")
		}
	}
}

// post runs f on the session loop. Dropped once the session has stopped.
func (s *Session) post(f func()) {
	select {
	case s.tasks <- f:
	case <-s.done:
	}
}

func (s *Session) emit(ev GameEvent) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

func (s *Session) handleChange(c store.Change) {
	events, err := s.projector.Apply(c)
	if err != nil {
		s.log.WithError(err).Warnf("skipping %s change", c.Path)
		return
	}
	for _, ev := range events {
		s.emit(ev)
	}
	switch c.Path {
	case store.PathCurrentPlayerTurn:
		s.onTurnChanged()
	case store.PathCountdownStartTime, store.PathState:
		s.syncCountdown()
	}
}

// onTurnChanged restarts the timers for the new turn owner. The owner's own
// session counts down to self-damage; everyone else waits a grace period
// longer and then skips the owner as absent.
func (s *Session) onTurnChanged() {
	s.turnSeq++
	seq := s.turnSeq
	s.turnTimer.Stop()
	s.afkTimer.Stop()

	v := s.projector.View()
	if v.Turn == nil {
		return
	}
	owner := *v.Turn
	turn := time.Duration(v.SecondsPerTurn) * time.Second

	if owner == s.PlayerID {
		s.turnTimer.Start(turn, func() {
			s.post(func() { s.onTurnExpired(seq) })
		})
		return
	}
	round := v.Rounds
	s.afkTimer.Start(turn+s.rules.AFKGrace, func() {
		s.post(func() { s.onOwnerAbsent(seq, owner, round) })
	})
}

func (s *Session) onTurnExpired(seq uint64) {
	if seq != s.turnSeq {
		return
	}
	s.transact(s.ctx, models.ActionDamage, nil, s.orch.DamagePlayer(s.PlayerID))
}

func (s *Session) onOwnerAbsent(seq uint64, owner uuid.UUID, round int) {
	if seq != s.turnSeq {
		return
	}
	s.log.Infof("turn owner %s did not move in round %d, skipping", owner, round)
	payload := map[string]interface{}{"target": owner.String(), "round": round}
	s.transact(s.ctx, models.ActionSkip, payload, s.orch.SkipTurn(owner, round))
}

// syncCountdown runs the lobby countdown ticker while a countdown is set.
func (s *Session) syncCountdown() {
	v := s.projector.View()
	if v.Status != models.NotStarted || v.CountdownStart == nil {
		s.stopCountdown()
		return
	}
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.rules.CountdownTick)
		s.countdownTick()
	}
}

func (s *Session) stopCountdown() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

// countdownTick reports the time left against the store clock and races
// StartGame when it runs out.
func (s *Session) countdownTick() {
	v := s.projector.View()
	if v.Status != models.NotStarted || v.CountdownStart == nil {
		s.stopCountdown()
		return
	}
	now := time.Now().UnixMilli() + s.clockOffset
	remaining := s.rules.LobbyCountdown - time.Duration(now-*v.CountdownStart)*time.Millisecond
	if remaining <= 0 {
		s.stopCountdown()
		s.emit(GameEvent{Type: EventCountdownTick, Payload: map[string]interface{}{"remaining": 0}})
		s.transact(s.ctx, models.ActionStartGame, nil, s.orch.StartGame())
		return
	}
	s.emit(GameEvent{Type: EventCountdownTick, Payload: map[string]interface{}{
		"remaining": int(math.Ceil(remaining.Seconds())),
	}})
}
