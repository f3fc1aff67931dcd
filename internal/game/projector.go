package game

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/timmypass17/wordjamboree/internal/models"
	"github.com/timmypass17/wordjamboree/internal/store"
)

// View is the projector's running picture of a room, rebuilt from changes.
type View struct {
	GameID         uuid.UUID
	Letters        string
	SecondsPerTurn int
	Rounds         int
	Turn           *uuid.UUID
	Players        map[uuid.UUID]models.PlayerInfo
	Status         models.RoomStatus
	Winner         *models.Winner
	CountdownStart *int64
}

// Projector turns store changes into GameEvents. It is not safe for
// concurrent use; a session drives it from its own loop.
type Projector struct {
	view View

	// departed holds players removed by the commit being applied. A game that
	// ends clears the roster in the same commit as the final elimination.
	departed map[uuid.UUID]models.PlayerInfo
	version  int64
}

func NewProjector() *Projector {
	return &Projector{view: View{Players: make(map[uuid.UUID]models.PlayerInfo)}}
}

// View returns the current picture. Players must not be modified.
func (p *Projector) View() View { return p.view }

// Apply folds c into the view and returns the events it produces. Trigger
// cues replayed as part of the initial contents produce no events.
func (p *Projector) Apply(c store.Change) ([]GameEvent, error) {
	if c.Version != p.version {
		p.version, p.departed = c.Version, nil
	}
	switch c.Path {
	case store.PathGameID:
		var id uuid.UUID
		if err := decodeValue(c.Value, &id); err != nil {
			return nil, err
		}
		p.view.GameID = id
		return nil, nil

	case store.PathCurrentLetters:
		if err := decodeValue(c.Value, &p.view.Letters); err != nil {
			return nil, err
		}
		return []GameEvent{{Type: EventLettersChanged, Payload: map[string]interface{}{"letters": p.view.Letters}}}, nil

	case store.PathSecondsPerTurn:
		if err := decodeValue(c.Value, &p.view.SecondsPerTurn); err != nil {
			return nil, err
		}
		return []GameEvent{{Type: EventTurnTimeChanged, Payload: map[string]interface{}{"secondsPerTurn": p.view.SecondsPerTurn}}}, nil

	case store.PathRounds:
		if err := decodeValue(c.Value, &p.view.Rounds); err != nil {
			return nil, err
		}
		return []GameEvent{{Type: EventRoundChanged, Payload: map[string]interface{}{"rounds": p.view.Rounds}}}, nil

	case store.PathCountdownStartTime:
		var ts *int64
		if err := decodeValue(c.Value, &ts); err != nil {
			return nil, err
		}
		had := p.view.CountdownStart != nil
		p.view.CountdownStart = ts
		switch {
		case ts != nil:
			return []GameEvent{{Type: EventCountdownStarted, Payload: map[string]interface{}{"startTime": *ts}}}, nil
		case had:
			return []GameEvent{{Type: EventCountdownCancelled}}, nil
		}
		return nil, nil

	case store.PathPlayersInfo:
		if c.Kind == store.ValueChanged {
			return nil, nil
		}
		return p.applyPlayer(c)

	case store.PathShake, store.PathSuccess, store.PathExplode, store.PathDeath:
		return p.applyTrigger(c)

	case store.PathCurrentPlayerTurn:
		var turn *uuid.UUID
		if err := decodeValue(c.Value, &turn); err != nil {
			return nil, err
		}
		p.view.Turn = turn
		ev := GameEvent{Type: EventTurnChanged}
		if turn != nil {
			info := p.view.Players[*turn]
			ev = userEvent(EventTurnChanged, *turn, info)
		}
		return []GameEvent{ev}, nil

	case store.PathState:
		var st models.GameState
		if err := decodeValue(c.Value, &st); err != nil {
			return nil, err
		}
		var events []GameEvent
		if p.view.Status == models.InProgress && st.RoomStatus == models.NotStarted && !c.Initial {
			events = p.finalDeaths(st.Winner)
		}
		p.view.Status, p.view.Winner = st.RoomStatus, st.Winner
		p.departed = nil
		payload := map[string]interface{}{"status": st.RoomStatus}
		if st.Winner != nil {
			payload["winner"] = st.Winner
		}
		return append(events, GameEvent{Type: EventGameStatus, Payload: payload}), nil
	}
	return nil, nil
}

// finalDeaths cues the eliminations that ended the game. Their death counters
// were cleared with the roster, so they never arrive as trigger changes.
func (p *Projector) finalDeaths(winner *models.Winner) []GameEvent {
	ids := make([]uuid.UUID, 0, len(p.departed))
	for id, info := range p.departed {
		if info.Hearts > 0 && (winner == nil || winner.PlayerID != id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return p.departed[ids[i]].Position < p.departed[ids[j]].Position })

	events := make([]GameEvent, 0, len(ids))
	for _, id := range ids {
		events = append(events, userEvent(EventDeath, id, p.departed[id]))
	}
	return events
}

func (p *Projector) applyPlayer(c store.Change) ([]GameEvent, error) {
	id, err := uuid.Parse(c.Key)
	if err != nil {
		return nil, fmt.Errorf("player key %q: %w", c.Key, err)
	}
	old, existed := p.view.Players[id]

	if c.Kind == store.ChildRemoved {
		delete(p.view.Players, id)
		if !existed {
			return nil, nil
		}
		if p.departed == nil {
			p.departed = make(map[uuid.UUID]models.PlayerInfo)
		}
		p.departed[id] = old
		return []GameEvent{userEvent(EventPlayerLeft, id, old)}, nil
	}

	var info models.PlayerInfo
	if err := decodeValue(c.Value, &info); err != nil {
		return nil, err
	}
	p.view.Players[id] = info
	if !existed {
		ev := userEvent(EventPlayerJoined, id, info)
		ev.Payload = map[string]interface{}{"hearts": info.Hearts}
		return []GameEvent{ev}, nil
	}

	var events []GameEvent
	if info.Position != old.Position {
		events = append(events, userEvent(EventPlayerMoved, id, info))
	}
	if info.Hearts != old.Hearts {
		ev := userEvent(EventHeartsChanged, id, info)
		ev.Payload = map[string]interface{}{"hearts": info.Hearts}
		events = append(events, ev)
	}
	if info.EnteredWord != old.EnteredWord {
		ev := userEvent(EventWordUpdated, id, info)
		ev.Payload = map[string]interface{}{"word": info.EnteredWord}
		events = append(events, ev)
	}
	return events, nil
}

var triggerEvents = map[string]GameEventType{
	store.PathShake:   EventShake,
	store.PathSuccess: EventSuccess,
	store.PathExplode: EventExplode,
	store.PathDeath:   EventDeath,
}

// applyTrigger emits a cue for every added or changed counter. The counter
// value itself is never inspected.
func (p *Projector) applyTrigger(c store.Change) ([]GameEvent, error) {
	if c.Initial || c.Kind == store.ChildRemoved || c.Kind == store.ValueChanged {
		return nil, nil
	}
	id, err := uuid.Parse(c.Key)
	if err != nil {
		return nil, fmt.Errorf("%s key %q: %w", c.Path, c.Key, err)
	}
	info, ok := p.view.Players[id]
	if !ok {
		return nil, nil
	}
	return []GameEvent{userEvent(triggerEvents[c.Path], id, info)}, nil
}

// decodeValue decodes a change value; a removed value decodes to the zero value.
func decodeValue(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode change value: %w", err)
	}
	return nil
}
