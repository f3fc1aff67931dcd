package models

// PlayerInfo is one player's entry in a room's playersInfo map.
type PlayerInfo struct {
	Name   string `json:"name"`
	Hearts int    `json:"hearts"`
	// Position is dense and 0-based; lobby departures renumber the rest.
	Position int `json:"position"`
	// EnteredWord is the live typing buffer for the active turn.
	EnteredWord string `json:"enteredWord"`
	// LettersUsed is the sorted set of upper-case letters used in accepted
	// words since the last bonus heart.
	LettersUsed string `json:"lettersUsed"`
}

// Alive reports whether the player still has hearts.
func (p PlayerInfo) Alive() bool {
	return p.Hearts > 0
}
