package game

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/timmypass17/wordjamboree/internal/models"
	"github.com/timmypass17/wordjamboree/internal/store"
)

// fixedRand always picks the same index, wrapped into range.
type fixedRand int

func (r fixedRand) Intn(n int) int { return int(r) % n }

type wordSet map[string]bool

func (w wordSet) IsValidWord(word string) bool { return w[word] }

func newWordSet(words ...string) wordSet {
	w := wordSet{}
	for _, word := range words {
		w[word] = true
	}
	return w
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestOrchestrator(words ...string) *Orchestrator {
	return NewOrchestrator(DefaultRules(), newWordSet(words...), fixedRand(0))
}

// inProgressDoc builds a running game whose players sit at positions in the
// order of the hearts given. The first player holds the turn.
func inProgressDoc(hearts ...int) (*models.GameDocument, []uuid.UUID) {
	doc := &models.GameDocument{
		GameID:         uuid.New(),
		CurrentLetters: "a",
		SecondsPerTurn: 10,
		Rounds:         1,
		PlayersInfo:    make(map[uuid.UUID]models.PlayerInfo),
		State:          models.GameState{RoomStatus: models.InProgress},
	}
	ids := make([]uuid.UUID, len(hearts))
	for i, h := range hearts {
		ids[i] = uuid.New()
		doc.PlayersInfo[ids[i]] = models.PlayerInfo{
			Name:        string(rune('A' + i)),
			Hearts:      h,
			Position:    i,
			LettersUsed: seedLettersUsed,
		}
	}
	for _, id := range ids {
		if doc.PlayersInfo[id].Alive() {
			turn := id
			doc.CurrentPlayerTurn = &turn
			break
		}
	}
	return doc, ids
}

// lobbyDoc builds a lobby with n joined players.
func lobbyDoc(n int) (*models.GameDocument, []uuid.UUID) {
	doc := &models.GameDocument{
		CurrentLetters: "a",
		SecondsPerTurn: 10,
		Rounds:         1,
		State:          models.GameState{RoomStatus: models.NotStarted},
	}
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		if doc.PlayersInfo == nil {
			doc.PlayersInfo = make(map[uuid.UUID]models.PlayerInfo)
		}
		doc.PlayersInfo[ids[i]] = models.PlayerInfo{Name: string(rune('A' + i)), Hearts: 3, Position: i, LettersUsed: seedLettersUsed}
	}
	if n >= 2 {
		ts := int64(1000)
		doc.CountdownStartTime = &ts
	}
	return doc, ids
}

// apply runs fn the way the store does, on a private copy.
func apply(t *testing.T, fn store.TransformFunc, doc *models.GameDocument) (*models.GameDocument, store.Outcome) {
	t.Helper()
	next, outcome := fn(doc.Clone())
	if outcome == store.Commit {
		require.NotNil(t, next)
		require.NoError(t, CheckInvariants(next, DefaultRules()))
	}
	return next, outcome
}

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []GameEvent
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.events = append(mb.events, ev)
}

func (mb *mockBroadcaster) count(t GameEventType) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, ev := range mb.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// fakePublisher records published actions.
type fakePublisher struct {
	mu      sync.Mutex
	records []models.GameActionRecord
}

func (p *fakePublisher) Publish(_ context.Context, rec models.GameActionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, r := range p.records {
		out = append(out, r.ActionType)
	}
	return out
}
