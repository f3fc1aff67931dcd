package game

import (
	"strings"

	"github.com/google/uuid"
	"github.com/timmypass17/wordjamboree/internal/models"
	"github.com/timmypass17/wordjamboree/internal/store"
)

// Dictionary is the word validity predicate.
type Dictionary interface {
	IsValidWord(word string) bool
}

// DictionaryFunc adapts a function to Dictionary.
type DictionaryFunc func(word string) bool

func (f DictionaryFunc) IsValidWord(word string) bool { return f(word) }

// Orchestrator builds the transaction bodies for every game action. Each
// method returns a pure transform; failed preconditions abort, leaving the
// document unchanged.
type Orchestrator struct {
	rules Rules
	dict  Dictionary
	rand  Rand
}

// NewOrchestrator returns an orchestrator. A nil r uses DefaultRand.
func NewOrchestrator(rules Rules, dict Dictionary, r Rand) *Orchestrator {
	if r == nil {
		r = DefaultRand
	}
	return &Orchestrator{rules: rules, dict: dict, rand: r}
}

// Rules returns the rules the orchestrator was built with.
func (o *Orchestrator) Rules() Rules { return o.rules }

// NewRoomDocument returns the document of a freshly created, empty lobby.
func (o *Orchestrator) NewRoomDocument() *models.GameDocument {
	return &models.GameDocument{
		CurrentLetters: drawLetters(o.rand, ""),
		SecondsPerTurn: o.randomTurnTime(),
		Rounds:         1,
		State:          models.GameState{RoomStatus: models.NotStarted},
	}
}

// Join adds uid to the lobby. The second player to join starts the countdown.
func (o *Orchestrator) Join(uid uuid.UUID, name string) store.TransformFunc {
	return func(doc *models.GameDocument) (*models.GameDocument, store.Outcome) {
		if !doc.Wellformed() || doc.State.RoomStatus != models.NotStarted {
			return doc, store.Abort
		}
		if _, ok := doc.PlayersInfo[uid]; ok || len(doc.PlayersInfo) >= o.rules.MaxPlayers {
			return doc, store.Abort
		}
		if doc.PlayersInfo == nil {
			doc.PlayersInfo = make(map[uuid.UUID]models.PlayerInfo)
		}
		doc.PlayersInfo[uid] = models.PlayerInfo{
			Name:        name,
			Hearts:      o.rules.MaxHearts,
			Position:    len(doc.PlayersInfo),
			LettersUsed: seedLettersUsed,
		}
		if len(doc.PlayersInfo) >= 2 && doc.CountdownStartTime == nil {
			ts := models.PendingServerTimestamp
			doc.CountdownStartTime = &ts
		}
		return doc, store.Commit
	}
}

// StartGame begins a game with a random starting player.
func (o *Orchestrator) StartGame() store.TransformFunc {
	return func(doc *models.GameDocument) (*models.GameDocument, store.Outcome) {
		if !doc.Wellformed() || doc.State.RoomStatus != models.NotStarted || len(doc.PlayersInfo) < 2 {
			return doc, store.Abort
		}
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		doc.GameID = id
		doc.State = models.GameState{RoomStatus: models.InProgress}
		doc.CountdownStartTime = nil
		doc.Rounds = 1
		doc.WordsUsed = nil
		doc.Shake, doc.Success, doc.Explode, doc.Death = nil, nil, nil, nil
		for uid, p := range doc.PlayersInfo {
			p.Hearts = o.rules.MaxHearts
			p.EnteredWord = ""
			p.LettersUsed = seedLettersUsed
			doc.PlayersInfo[uid] = p
		}
		ids := doc.PlayersByPosition()
		starter := ids[o.rand.Intn(len(ids))]
		doc.CurrentPlayerTurn = &starter
		doc.CurrentLetters = drawLetters(o.rand, doc.CurrentLetters)
		return doc, store.Commit
	}
}

// UpdateWord mirrors the turn owner's partially typed word.
func (o *Orchestrator) UpdateWord(uid uuid.UUID, partial string) store.TransformFunc {
	return func(doc *models.GameDocument) (*models.GameDocument, store.Outcome) {
		if !doc.Wellformed() || doc.State.RoomStatus != models.InProgress || !doc.IsTurn(uid) {
			return doc, store.Abort
		}
		p := doc.PlayersInfo[uid]
		if p.EnteredWord == partial {
			return doc, store.Abort
		}
		p.EnteredWord = partial
		doc.PlayersInfo[uid] = p
		return doc, store.Commit
	}
}

// NormalizeWord is the form words are validated and recorded in.
func NormalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Submit plays word for uid. A rejected word shakes the player and changes
// nothing else. The dictionary is consulted once, outside the transform.
func (o *Orchestrator) Submit(uid uuid.UUID, word string) store.TransformFunc {
	word = NormalizeWord(word)
	valid := word != "" && o.dict != nil && o.dict.IsValidWord(word)

	return func(doc *models.GameDocument) (*models.GameDocument, store.Outcome) {
		if !doc.Wellformed() || doc.State.RoomStatus != models.InProgress || !doc.IsTurn(uid) {
			return doc, store.Abort
		}
		if !valid || !strings.Contains(word, strings.ToLower(doc.CurrentLetters)) || doc.WordsUsed[word] {
			doc.Shake = bump(doc.Shake, uid)
			return doc, store.Commit
		}

		if doc.WordsUsed == nil {
			doc.WordsUsed = make(map[string]bool)
		}
		doc.WordsUsed[word] = true
		doc.Success = bump(doc.Success, uid)

		p := doc.PlayersInfo[uid]
		used, complete := addLettersUsed(p.LettersUsed, word)
		if complete {
			if p.Hearts < o.rules.MaxHearts {
				p.Hearts++
			}
			used = seedLettersUsed
		}
		p.LettersUsed = used
		doc.PlayersInfo[uid] = p

		o.advanceTurn(doc, uid)
		doc.CurrentLetters = drawLetters(o.rand, doc.CurrentLetters)
		return doc, store.Commit
	}
}

// DamagePlayer costs uid a heart when its own turn timer runs out. The letters
// stay the same for the next player.
func (o *Orchestrator) DamagePlayer(uid uuid.UUID) store.TransformFunc {
	return func(doc *models.GameDocument) (*models.GameDocument, store.Outcome) {
		if !doc.Wellformed() || doc.State.RoomStatus != models.InProgress || !doc.IsTurn(uid) {
			return doc, store.Abort
		}
		p := doc.PlayersInfo[uid]
		p.Hearts--
		if p.Hearts <= 0 {
			p.Hearts = 0
			doc.Death = bump(doc.Death, uid)
		} else {
			doc.Explode = bump(doc.Explode, uid)
		}
		doc.PlayersInfo[uid] = p
		o.settle(doc, uid)
		return doc, store.Commit
	}
}

// SkipTurn eliminates an unresponsive turn owner on behalf of a peer. Only the
// first skip for a given round and owner has an effect.
func (o *Orchestrator) SkipTurn(uid uuid.UUID, expectedRound int) store.TransformFunc {
	return func(doc *models.GameDocument) (*models.GameDocument, store.Outcome) {
		if !doc.Wellformed() || doc.State.RoomStatus != models.InProgress || !doc.IsTurn(uid) || doc.Rounds != expectedRound {
			return doc, store.Abort
		}
		p := doc.PlayersInfo[uid]
		p.Hearts = 0
		doc.PlayersInfo[uid] = p
		doc.Death = bump(doc.Death, uid)
		o.settle(doc, uid)
		return doc, store.Commit
	}
}

// Exit removes uid from a lobby, or eliminates it in place during a game.
func (o *Orchestrator) Exit(uid uuid.UUID) store.TransformFunc {
	return func(doc *models.GameDocument) (*models.GameDocument, store.Outcome) {
		if !doc.Wellformed() {
			return doc, store.Abort
		}
		p, ok := doc.PlayersInfo[uid]
		if !ok {
			return doc, store.Abort
		}

		if doc.State.RoomStatus == models.NotStarted {
			delete(doc.PlayersInfo, uid)
			for _, m := range []map[uuid.UUID]int{doc.Shake, doc.Success, doc.Explode, doc.Death} {
				delete(m, uid)
			}
			for i, id := range doc.PlayersByPosition() {
				rest := doc.PlayersInfo[id]
				rest.Position = i
				doc.PlayersInfo[id] = rest
			}
			if len(doc.PlayersInfo) == 0 {
				doc.PlayersInfo = nil
			}
			if len(doc.PlayersInfo) < 2 {
				doc.CountdownStartTime = nil
			}
			return doc, store.Commit
		}

		if !p.Alive() {
			return doc, store.Abort
		}
		p.Hearts = 0
		p.EnteredWord = ""
		doc.PlayersInfo[uid] = p
		doc.Shake = bump(doc.Shake, uid)
		o.settle(doc, uid)
		return doc, store.Commit
	}
}
