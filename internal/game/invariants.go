package game

import (
	"fmt"

	"github.com/timmypass17/wordjamboree/internal/models"
)

// CheckInvariants reports the first structural rule a committed document breaks.
func CheckInvariants(doc *models.GameDocument, rules Rules) error {
	if !doc.Wellformed() {
		return fmt.Errorf("document is malformed")
	}
	if n := len(doc.PlayersInfo); n > rules.MaxPlayers {
		return fmt.Errorf("%d players exceeds the limit of %d", n, rules.MaxPlayers)
	}

	seen := make([]bool, len(doc.PlayersInfo))
	for id, p := range doc.PlayersInfo {
		if p.Position < 0 || p.Position >= len(seen) || seen[p.Position] {
			return fmt.Errorf("player %s has position %d outside a dense ordering", id, p.Position)
		}
		seen[p.Position] = true
		if p.Hearts < 0 || p.Hearts > rules.MaxHearts {
			return fmt.Errorf("player %s has %d hearts", id, p.Hearts)
		}
		if p.Hearts == 0 && doc.State.RoomStatus == models.NotStarted {
			return fmt.Errorf("eliminated player %s is still in the lobby", id)
		}
	}

	if doc.CurrentPlayerTurn != nil {
		p, ok := doc.PlayersInfo[*doc.CurrentPlayerTurn]
		if !ok || !p.Alive() {
			return fmt.Errorf("turn belongs to %s who is not an alive player", *doc.CurrentPlayerTurn)
		}
	}

	switch doc.State.RoomStatus {
	case models.InProgress:
		if doc.State.Winner != nil {
			return fmt.Errorf("game in progress has a winner")
		}
		if doc.CurrentPlayerTurn == nil {
			return fmt.Errorf("game in progress has no turn owner")
		}
		if CheckWinner(doc) != nil {
			return fmt.Errorf("game in progress has a sole survivor")
		}
	case models.NotStarted:
		if doc.CurrentPlayerTurn != nil {
			return fmt.Errorf("lobby has a turn owner")
		}
		if doc.CountdownStartTime != nil && len(doc.PlayersInfo) < 2 {
			return fmt.Errorf("countdown running with %d players", len(doc.PlayersInfo))
		}
	}

	if doc.SecondsPerTurn < rules.MinimumTime {
		return fmt.Errorf("secondsPerTurn %d is below the minimum %d", doc.SecondsPerTurn, rules.MinimumTime)
	}
	return nil
}
