// Package store is the shared state store every client of a room mutates.
//
// All game state changes go through Transact, which applies a pure transform
// to the latest committed document and retries on conflicting commits until
// the transform's output commits or the retry budget is exhausted.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/timmypass17/wordjamboree/internal/models"
)

var (
	// ErrRoomNotFound is returned when a room has no metadata or document.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned by CreateRoom for a duplicate room id.
	ErrRoomExists = errors.New("room already exists")
	// ErrTooManyRetries is returned when a transaction keeps conflicting.
	ErrTooManyRetries = errors.New("transaction retry limit exceeded")
)

// DefaultMaxRetries bounds how many times a transform is re-run under contention.
const DefaultMaxRetries = 25

// Outcome tells the store what to do with a transform's result.
type Outcome int

const (
	// Commit writes the returned document.
	Commit Outcome = iota
	// Abort leaves the stored document untouched.
	Abort
)

// TransformFunc computes the next document from the current one. current is a
// private deep copy (nil when the room has no document or it could not be
// decoded) and may be mutated and returned. Transforms can be invoked several
// times per Transact call and must not have side effects.
type TransformFunc func(current *models.GameDocument) (*models.GameDocument, Outcome)

// Result describes a finished transaction.
type Result struct {
	Committed bool
	// Before is the document the final attempt of the transform saw.
	Before *models.GameDocument
	// After is the committed document, or Before when nothing was written.
	After    *models.GameDocument
	Version  int64
	Attempts int
}

// Store is the contract the game engine needs from the shared state store.
type Store interface {
	// CreateRoom atomically stores room metadata and its initial document.
	CreateRoom(ctx context.Context, room models.Room, doc *models.GameDocument) error
	// Rooms lists room metadata.
	Rooms(ctx context.Context) ([]models.Room, error)
	// Get returns the latest committed document.
	Get(ctx context.Context, roomID uuid.UUID) (*models.GameDocument, error)
	// Transact runs fn against the latest document until it commits without conflict.
	Transact(ctx context.Context, roomID uuid.UUID, fn TransformFunc) (Result, error)
	// Subscribe streams path-level changes of a room's document. An empty path
	// selects the whole document; no kinds selects every kind. Scalar paths
	// only produce ValueChanged. Collection paths produce child events per key
	// and then one ValueChanged with the whole collection; a "collection/key"
	// path (see ChildPath) sees that child's changes as ValueChanged. The
	// stream starts with the current contents, marked Initial, and closes when
	// ctx ends.
	Subscribe(ctx context.Context, roomID uuid.UUID, path string, kinds ...EventKind) (<-chan Change, error)
	// AtomicIncrement adds delta to a room counter and returns the new value.
	AtomicIncrement(ctx context.Context, roomID uuid.UUID, field string, delta int64) (int64, error)
	// ServerTimestamp returns the store clock in unix milliseconds.
	ServerTimestamp(ctx context.Context) (int64, error)
}

// envelope is a committed snapshot as it travels to subscribers.
type envelope struct {
	Version int64                `json:"version"`
	Doc     *models.GameDocument `json:"doc"`
}
