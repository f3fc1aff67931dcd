package models

import "github.com/google/uuid"

// FieldPlayerCount is the room counter maintained with atomic increments.
const FieldPlayerCount = "playerCount"

// Room is the metadata that is created alongside a room's GameDocument.
type Room struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   int64     `json:"createdAt"` // unix millis
	PlayerCount int64     `json:"playerCount"`
}
