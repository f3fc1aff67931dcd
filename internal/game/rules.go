// internal/game/rules.go
package game

import (
	"fmt"
	"time"
)

// Rules holds the tunable constants of a room.
type Rules struct {
	MaxPlayers  int `json:"maxPlayers"`
	MaxHearts   int `json:"maxHearts"`
	MinimumTime int `json:"minimumTime"` // floor for secondsPerTurn
	TurnTimeMin int `json:"turnTimeMin"` // initial secondsPerTurn is drawn from [TurnTimeMin, TurnTimeMax]
	TurnTimeMax int `json:"turnTimeMax"`

	// AFKGrace is how long past the owner's own deadline peers wait before skipping.
	AFKGrace time.Duration `json:"afkGrace"`
	// LobbyCountdown runs from countdownStartTime to the automatic start.
	LobbyCountdown time.Duration `json:"lobbyCountdown"`
	// CountdownTick is the interval of countdown tick events.
	CountdownTick time.Duration `json:"countdownTick"`
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		MaxPlayers:     5,
		MaxHearts:      3,
		MinimumTime:    5,
		TurnTimeMin:    8,
		TurnTimeMax:    12,
		AFKGrace:       5 * time.Second,
		LobbyCountdown: 10 * time.Second,
		CountdownTick:  time.Second,
	}
}

// Validate checks that the rules can produce a playable game.
func (r Rules) Validate() error {
	switch {
	case r.MaxPlayers < 2:
		return fmt.Errorf("maxPlayers must be at least 2, got %d", r.MaxPlayers)
	case r.MaxHearts < 1:
		return fmt.Errorf("maxHearts must be positive, got %d", r.MaxHearts)
	case r.MinimumTime < 1:
		return fmt.Errorf("minimumTime must be positive, got %d", r.MinimumTime)
	case r.TurnTimeMin < r.MinimumTime || r.TurnTimeMax < r.TurnTimeMin:
		return fmt.Errorf("turn time range [%d, %d] must start at or above minimumTime %d", r.TurnTimeMin, r.TurnTimeMax, r.MinimumTime)
	case r.AFKGrace < 0 || r.LobbyCountdown < 0:
		return fmt.Errorf("durations must be non-negative")
	case r.CountdownTick <= 0:
		return fmt.Errorf("countdownTick must be positive")
	}
	return nil
}
