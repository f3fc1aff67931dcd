package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmypass17/wordjamboree/internal/models"
	"github.com/timmypass17/wordjamboree/internal/store"
)

// project diffs prev into next and feeds every change through p.
func project(t *testing.T, p *Projector, prev, next *models.GameDocument, initial bool) []GameEvent {
	t.Helper()
	changes, err := store.Diff(prev, next)
	require.NoError(t, err)
	var events []GameEvent
	for _, c := range changes {
		c.Initial = initial
		evs, err := p.Apply(c)
		require.NoError(t, err)
		events = append(events, evs...)
	}
	return events
}

func eventTypes(events []GameEvent) []GameEventType {
	out := make([]GameEventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestProjectorStartOfGame(t *testing.T) {
	o := newTestOrchestrator()
	p := NewProjector()
	lobby, ids := lobbyDoc(2)

	events := project(t, p, nil, lobby, true)
	assert.Contains(t, eventTypes(events), EventPlayerJoined)
	assert.Contains(t, eventTypes(events), EventCountdownStarted)
	assert.Len(t, p.View().Players, 2)

	started, _ := o.StartGame()(lobby.Clone())
	events = project(t, p, lobby, started, false)
	types := eventTypes(events)
	assert.Contains(t, types, EventCountdownCancelled)
	assert.Contains(t, types, EventLettersChanged)
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, []GameEventType{EventTurnChanged, EventGameStatus}, types[len(types)-2:], "turn and status come last")

	v := p.View()
	assert.Equal(t, models.InProgress, v.Status)
	assert.Equal(t, ids[0], *v.Turn)
	assert.Equal(t, started.GameID, v.GameID)
	assert.Nil(t, v.CountdownStart)
}

func TestProjectorTriggerCues(t *testing.T) {
	o := newTestOrchestrator()
	p := NewProjector()
	doc, ids := inProgressDoc(3, 3, 3)
	doc.Shake = map[uuid.UUID]int{ids[0]: 4}

	events := project(t, p, nil, doc, true)
	assert.NotContains(t, eventTypes(events), EventShake, "replayed cues are silent")

	shaken, _ := o.Submit(ids[0], "nope")(doc.Clone())
	events = project(t, p, doc, shaken, false)
	require.Len(t, events, 1)
	assert.Equal(t, EventShake, events[0].Type)
	assert.Equal(t, 0, *events[0].Position)

	again, _ := o.Submit(ids[0], "nope")(shaken.Clone())
	events = project(t, p, shaken, again, false)
	require.Len(t, events, 1, "a second cue in a row is not lost")

	damaged, _ := o.DamagePlayer(ids[0])(again.Clone())
	events = project(t, p, again, damaged, false)
	types := eventTypes(events)
	assert.Contains(t, types, EventHeartsChanged)
	assert.Contains(t, types, EventExplode)
	assert.Equal(t, EventTurnChanged, types[len(types)-1])
	assert.Equal(t, ids[1], events[len(events)-1].User.ID)
}

func TestProjectorLiveTyping(t *testing.T) {
	o := newTestOrchestrator()
	p := NewProjector()
	doc, ids := inProgressDoc(3, 3)
	project(t, p, nil, doc, true)

	typed, _ := o.UpdateWord(ids[0], "ap")(doc.Clone())
	events := project(t, p, doc, typed, false)
	require.Len(t, events, 1)
	assert.Equal(t, EventWordUpdated, events[0].Type)
	assert.Equal(t, "ap", events[0].Payload["word"])
}

func TestProjectorGameEnd(t *testing.T) {
	o := newTestOrchestrator()
	p := NewProjector()
	doc, ids := inProgressDoc(1, 1)
	project(t, p, nil, doc, true)

	ended, _ := o.DamagePlayer(ids[0])(doc.Clone())
	events := project(t, p, doc, ended, false)
	types := eventTypes(events)
	assert.Equal(t, 2, countType(types, EventPlayerLeft))
	require.Equal(t, 1, countType(types, EventDeath), "the deciding elimination is cued")
	death := events[len(events)-2]
	assert.Equal(t, EventDeath, death.Type)
	assert.Equal(t, ids[0], death.User.ID)
	assert.Equal(t, 0, *death.Position)
	last := events[len(events)-1]
	assert.Equal(t, EventGameStatus, last.Type)
	assert.Equal(t, models.NotStarted, last.Payload["status"])
	winner, ok := last.Payload["winner"].(*models.Winner)
	require.True(t, ok)
	assert.Equal(t, ids[1], winner.PlayerID)
	assert.Empty(t, p.View().Players)
}

func countType(types []GameEventType, t GameEventType) int {
	n := 0
	for _, tt := range types {
		if tt == t {
			n++
		}
	}
	return n
}

func TestProjectorGameEndAfterSkip(t *testing.T) {
	o := newTestOrchestrator()
	p := NewProjector()
	doc, ids := inProgressDoc(0, 2, 3)
	project(t, p, nil, doc, true)

	// ids[0] died earlier; ids[1] is skipped and ids[2] wins.
	turn := ids[1]
	doc.CurrentPlayerTurn = &turn
	ended, outcome := o.SkipTurn(ids[1], doc.Rounds)(doc.Clone())
	require.Equal(t, store.Commit, outcome)

	events := project(t, p, doc, ended, false)
	var deaths []uuid.UUID
	for _, ev := range events {
		if ev.Type == EventDeath {
			deaths = append(deaths, ev.User.ID)
		}
	}
	assert.Equal(t, []uuid.UUID{ids[1]}, deaths)
}

func TestProjectorLobbyExitIsNotADeath(t *testing.T) {
	o := newTestOrchestrator()
	p := NewProjector()
	lobby, ids := lobbyDoc(3)
	project(t, p, nil, lobby, true)

	left, _ := o.Exit(ids[0])(lobby.Clone())
	events := project(t, p, lobby, left, false)
	assert.NotContains(t, eventTypes(events), EventDeath)

	started, _ := o.StartGame()(left.Clone())
	events = project(t, p, left, started, false)
	assert.NotContains(t, eventTypes(events), EventDeath)
}
