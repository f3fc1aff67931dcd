package game

import (
	"github.com/google/uuid"
	"github.com/timmypass17/wordjamboree/internal/models"
)

// NextTurn returns the first alive player after current in position order,
// wrapping around. current itself is considered last. Returns nil when no
// player is alive.
func NextTurn(doc *models.GameDocument, current uuid.UUID) *uuid.UUID {
	ids := doc.PlayersByPosition()
	if len(ids) == 0 {
		return nil
	}
	start := -1
	for i, id := range ids {
		if id == current {
			start = i
			break
		}
	}
	for step := 1; step <= len(ids); step++ {
		id := ids[(start+step+len(ids))%len(ids)]
		if doc.PlayersInfo[id].Alive() {
			return &id
		}
	}
	return nil
}

// CheckWinner returns the only player with hearts left, if the game had at
// least two players and exactly one of them is alive.
func CheckWinner(doc *models.GameDocument) *uuid.UUID {
	if len(doc.PlayersInfo) < 2 {
		return nil
	}
	alive := doc.AlivePlayers()
	if len(alive) != 1 {
		return nil
	}
	return &alive[0]
}

// advanceTurn hands the turn from uid to its successor. Wrapping past the
// last position completes a round, which shortens the turn time.
func (o *Orchestrator) advanceTurn(doc *models.GameDocument, uid uuid.UUID) {
	if p, ok := doc.PlayersInfo[uid]; ok {
		p.EnteredWord = ""
		doc.PlayersInfo[uid] = p
	}
	next := NextTurn(doc, uid)
	if next == nil {
		doc.CurrentPlayerTurn = nil
		return
	}
	if doc.PlayersInfo[*next].Position <= doc.PlayersInfo[uid].Position {
		doc.Rounds++
		if doc.SecondsPerTurn > o.rules.MinimumTime {
			doc.SecondsPerTurn--
		}
		if doc.SecondsPerTurn < o.rules.MinimumTime {
			doc.SecondsPerTurn = o.rules.MinimumTime
		}
	}
	doc.CurrentPlayerTurn = next
}

// settle runs after a player lost hearts: a sole survivor wins, nobody left
// resets the room, otherwise the turn moves on if uid held it.
func (o *Orchestrator) settle(doc *models.GameDocument, uid uuid.UUID) {
	if winner := CheckWinner(doc); winner != nil {
		o.collapse(doc, &models.Winner{PlayerID: *winner, Name: doc.PlayersInfo[*winner].Name})
		return
	}
	if len(doc.AlivePlayers()) == 0 {
		o.collapse(doc, nil)
		return
	}
	if doc.IsTurn(uid) {
		o.advanceTurn(doc, uid)
	}
}

// collapse turns a finished game back into an empty lobby. gameID is kept so
// the finished game can still be identified.
func (o *Orchestrator) collapse(doc *models.GameDocument, winner *models.Winner) {
	doc.State = models.GameState{RoomStatus: models.NotStarted, Winner: winner}
	doc.PlayersInfo = nil
	doc.WordsUsed = nil
	doc.Shake, doc.Success, doc.Explode, doc.Death = nil, nil, nil, nil
	doc.CurrentPlayerTurn = nil
	doc.CountdownStartTime = nil
	doc.Rounds = 1
	doc.SecondsPerTurn = o.randomTurnTime()
	doc.CurrentLetters = drawLetters(o.rand, doc.CurrentLetters)
}

func (o *Orchestrator) randomTurnTime() int {
	return o.rules.TurnTimeMin + o.rand.Intn(o.rules.TurnTimeMax-o.rules.TurnTimeMin+1)
}

func bump(m map[uuid.UUID]int, uid uuid.UUID) map[uuid.UUID]int {
	if m == nil {
		m = make(map[uuid.UUID]int)
	}
	m[uid]++
	return m
}
