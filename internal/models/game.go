package models

import (
	"sort"

	"github.com/google/uuid"
)

// RoomStatus is the lifecycle phase of a room.
type RoomStatus string

const (
	NotStarted RoomStatus = "notStarted"
	InProgress RoomStatus = "inProgress"
)

// PendingServerTimestamp is a placeholder a transform writes into a timestamp
// field; the store replaces it with its own clock at commit time.
const PendingServerTimestamp int64 = -1

// Winner identifies the player who won the last game in a room.
type Winner struct {
	PlayerID uuid.UUID `json:"playerID"`
	Name     string    `json:"name"`
}

// GameState holds the room status and the last winner, if any.
type GameState struct {
	RoomStatus RoomStatus `json:"roomStatus"`
	Winner     *Winner    `json:"winner,omitempty"`
}

// GameDocument is the shared, mutable state of one room. It is only ever
// changed through store transactions.
type GameDocument struct {
	GameID            uuid.UUID                `json:"gameID"`
	CurrentLetters    string                   `json:"currentLetters"`
	SecondsPerTurn    int                      `json:"secondsPerTurn"`
	Rounds            int                      `json:"rounds"`
	CurrentPlayerTurn *uuid.UUID               `json:"currentPlayerTurn,omitempty"`
	PlayersInfo       map[uuid.UUID]PlayerInfo `json:"playersInfo,omitempty"`
	WordsUsed         map[string]bool          `json:"wordsUsed,omitempty"`

	// Edge-triggered cues. Each cue increments the player's counter; only the
	// change matters, never the value.
	Shake   map[uuid.UUID]int `json:"shake,omitempty"`
	Success map[uuid.UUID]int `json:"success,omitempty"`
	Explode map[uuid.UUID]int `json:"explode,omitempty"`
	Death   map[uuid.UUID]int `json:"death,omitempty"`

	State              GameState `json:"state"`
	CountdownStartTime *int64    `json:"countdownStartTime,omitempty"`
}

// Clone returns a deep copy of the document. A nil document clones to nil.
func (d *GameDocument) Clone() *GameDocument {
	if d == nil {
		return nil
	}
	c := *d
	if d.CurrentPlayerTurn != nil {
		id := *d.CurrentPlayerTurn
		c.CurrentPlayerTurn = &id
	}
	if d.CountdownStartTime != nil {
		ts := *d.CountdownStartTime
		c.CountdownStartTime = &ts
	}
	if d.State.Winner != nil {
		w := *d.State.Winner
		c.State.Winner = &w
	}
	if d.PlayersInfo != nil {
		c.PlayersInfo = make(map[uuid.UUID]PlayerInfo, len(d.PlayersInfo))
		for k, v := range d.PlayersInfo {
			c.PlayersInfo[k] = v
		}
	}
	if d.WordsUsed != nil {
		c.WordsUsed = make(map[string]bool, len(d.WordsUsed))
		for k, v := range d.WordsUsed {
			c.WordsUsed[k] = v
		}
	}
	c.Shake = cloneCounters(d.Shake)
	c.Success = cloneCounters(d.Success)
	c.Explode = cloneCounters(d.Explode)
	c.Death = cloneCounters(d.Death)
	return &c
}

func cloneCounters(m map[uuid.UUID]int) map[uuid.UUID]int {
	if m == nil {
		return nil
	}
	c := make(map[uuid.UUID]int, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Wellformed reports whether the document has the fields every transform
// relies on. Malformed documents are treated as "no active game".
func (d *GameDocument) Wellformed() bool {
	if d == nil {
		return false
	}
	switch d.State.RoomStatus {
	case NotStarted, InProgress:
	default:
		return false
	}
	return d.SecondsPerTurn > 0 && d.Rounds > 0
}

// ResolveServerValues replaces pending server timestamps with now.
func (d *GameDocument) ResolveServerValues(now int64) {
	if d == nil {
		return
	}
	if d.CountdownStartTime != nil && *d.CountdownStartTime == PendingServerTimestamp {
		ts := now
		d.CountdownStartTime = &ts
	}
}

// IsTurn reports whether it is uid's turn.
func (d *GameDocument) IsTurn(uid uuid.UUID) bool {
	return d.CurrentPlayerTurn != nil && *d.CurrentPlayerTurn == uid
}

// PlayersByPosition returns player ids sorted by ascending position.
func (d *GameDocument) PlayersByPosition() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(d.PlayersInfo))
	for id := range d.PlayersInfo {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := d.PlayersInfo[ids[i]].Position, d.PlayersInfo[ids[j]].Position
		if pi != pj {
			return pi < pj
		}
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// AlivePlayers returns the ids of players with hearts left, by position.
func (d *GameDocument) AlivePlayers() []uuid.UUID {
	var alive []uuid.UUID
	for _, id := range d.PlayersByPosition() {
		if d.PlayersInfo[id].Alive() {
			alive = append(alive, id)
		}
	}
	return alive
}
