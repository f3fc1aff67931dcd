package game

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type sessionKey struct {
	room   uuid.UUID
	player uuid.UUID
}

type liveSession struct {
	session *Session
	cancel  context.CancelFunc
}

// SessionStore tracks the live session of every connected player. A player
// holds at most one session per room; registering a new one cancels the old.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[sessionKey]liveSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[sessionKey]liveSession),
	}
}

// Add registers s, cancelling any earlier session of the same player in the room.
func (st *SessionStore) Add(s *Session, cancel context.CancelFunc) {
	key := sessionKey{s.RoomID, s.PlayerID}
	st.mu.Lock()
	old, exists := st.sessions[key]
	st.sessions[key] = liveSession{session: s, cancel: cancel}
	st.mu.Unlock()
	if exists {
		old.cancel()
	}
}

// Remove unregisters s if it is still the player's current session.
func (st *SessionStore) Remove(s *Session) {
	key := sessionKey{s.RoomID, s.PlayerID}
	st.mu.Lock()
	defer st.mu.Unlock()
	if cur, ok := st.sessions[key]; ok && cur.session == s {
		delete(st.sessions, key)
	}
}

// Connected returns the number of live sessions in a room.
func (st *SessionStore) Connected(roomID uuid.UUID) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for k := range st.sessions {
		if k.room == roomID {
			n++
		}
	}
	return n
}
