// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/timmypass17/wordjamboree/internal/models"
)

// GameEventType is an enum-like type for events sent to a client.
type GameEventType string

const (
	EventPlayerJoined       GameEventType = "player_joined"
	EventPlayerLeft         GameEventType = "player_left"
	EventPlayerMoved        GameEventType = "player_moved"   // position renumbered
	EventHeartsChanged      GameEventType = "hearts_changed" // damage or bonus heart
	EventWordUpdated        GameEventType = "word_updated"   // live typing
	EventTurnChanged        GameEventType = "turn_changed"
	EventLettersChanged     GameEventType = "letters_changed"
	EventRoundChanged       GameEventType = "round_changed"
	EventTurnTimeChanged    GameEventType = "turn_time_changed"
	EventShake              GameEventType = "shake"
	EventSuccess            GameEventType = "success"
	EventExplode            GameEventType = "explode"
	EventDeath              GameEventType = "death"
	EventCountdownStarted   GameEventType = "countdown_started"
	EventCountdownTick      GameEventType = "countdown_tick"
	EventCountdownCancelled GameEventType = "countdown_cancelled"
	EventGameStatus         GameEventType = "game_status"
	EventActionFailed       GameEventType = "action_failed"
)

// EventUser identifies the player an event is about.
type EventUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// GameEvent is what the projector and session hand to the client.
type GameEvent struct {
	Type     GameEventType `json:"type"`
	User     *EventUser    `json:"user,omitempty"`
	Position *int          `json:"position,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`
}

func userEvent(t GameEventType, id uuid.UUID, p models.PlayerInfo) GameEvent {
	pos := p.Position
	return GameEvent{Type: t, User: &EventUser{ID: id, Name: p.Name}, Position: &pos}
}

