package models

import "github.com/google/uuid"

// GameActionRecord holds the minimal info the historian needs about one committed action.
type GameActionRecord struct {
	RoomID        uuid.UUID              `json:"room_id"`
	GameID        uuid.UUID              `json:"game_id"`
	ActionIndex   int                    `json:"action_index"`
	ActorUserID   uuid.UUID              `json:"actor_user_id"`
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Action types published after a commit.
const (
	ActionJoin       = "action_join"
	ActionExit       = "action_exit"
	ActionStartGame  = "action_start_game"
	ActionWord       = "action_word"
	ActionWordReject = "action_word_reject"
	ActionDamage     = "action_damage"
	ActionSkip       = "action_skip"
	ActionEndGame    = "action_end_game"
)
