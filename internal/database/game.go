// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/timmypass17/wordjamboree/internal/models"
)

// GameStore persists game history rows.
type GameStore struct {
	pool *pgxpool.Pool
}

func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool}
}

// WriteActions stores a batch of action records in one transaction.
func (s *GameStore) WriteActions(ctx context.Context, recs []models.GameActionRecord) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertGameActionTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insert action %d of game %v: %w", rec.ActionIndex, rec.GameID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx write actions: %w", err)
	}
	return nil
}

// MarkAbandoned closes a game that is still in progress.
func (s *GameStore) MarkAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error) {
	q := `
		UPDATE games
		SET status = 'abandoned', end_time = NOW()
		WHERE id = $1 AND status = 'in_progress'
	`
	tag, err := s.pool.Exec(ctx, q, gameID)
	if err != nil {
		return false, fmt.Errorf("mark game %v abandoned: %w", gameID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// insertGameActionTx upserts the game row, inserts the action and finalizes
// the game when the record ends it.
func insertGameActionTx(ctx context.Context, tx pgx.Tx, rec models.GameActionRecord) error {
	ts := RecordTime(rec)
	upsertGameQ := `
		INSERT INTO games (id, room_id, status, start_time)
		VALUES ($1, $2, 'in_progress', $3)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsertGameQ, rec.GameID, rec.RoomID, ts); err != nil {
		return err
	}

	jsonPayload, err := json.Marshal(rec.ActionPayload)
	if err != nil {
		return err
	}
	actionInsertQ := `
		INSERT INTO game_actions (
			game_id, action_index, actor_user_id, action_type, action_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, actionInsertQ,
		rec.GameID, rec.ActionIndex, rec.ActorUserID, rec.ActionType, jsonPayload, ts,
	); err != nil {
		return err
	}

	if rec.ActionType != models.ActionEndGame {
		return nil
	}
	res := ParseGameResult(rec)
	finalizeQ := `
		UPDATE games
		SET status = 'completed', end_time = $2, winner_id = $3, winner_name = $4, rounds = $5
		WHERE id = $1 AND status = 'in_progress'
	`
	_, err = tx.Exec(ctx, finalizeQ, rec.GameID, ts, res.WinnerID, res.WinnerName, res.Rounds)
	return err
}

// GameResult is the outcome carried by an end-of-game record.
type GameResult struct {
	WinnerID   *uuid.UUID
	WinnerName *string
	Rounds     *int
}

// ParseGameResult reads the winner and round count from an end-of-game
// payload. Missing or malformed fields stay nil.
func ParseGameResult(rec models.GameActionRecord) GameResult {
	var res GameResult
	p := rec.ActionPayload
	if p == nil {
		return res
	}
	if s, ok := p["winner"].(string); ok {
		if id, err := uuid.Parse(s); err == nil {
			res.WinnerID = &id
		}
	}
	if s, ok := p["winnerName"].(string); ok {
		res.WinnerName = &s
	}
	switch n := p["rounds"].(type) {
	case int:
		res.Rounds = &n
	case float64:
		r := int(n)
		res.Rounds = &r
	}
	return res
}

// RecordTime converts the record's epoch millis, falling back to now.
func RecordTime(rec models.GameActionRecord) time.Time {
	if rec.Timestamp <= 0 {
		return time.Now()
	}
	return time.UnixMilli(rec.Timestamp)
}
