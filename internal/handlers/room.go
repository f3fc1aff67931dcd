// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmypass17/wordjamboree/internal/models"
	"github.com/timmypass17/wordjamboree/internal/store"
)

const maxTitleLen = 64

type createRoomRequest struct {
	Title string `json:"title"`
}

// CreateRoomHandler creates a room and its lobby document.
func CreateRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := gs.Auth.EnsureGuest(w, r, "")
		if err != nil {
			gs.Log.WithError(err).Error("failed to issue guest token")
			http.Error(w, "could not create guest", http.StatusInternalServerError)
			return
		}

		var req createRoomRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad room request payload", http.StatusBadRequest)
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = id.Name + "'s room"
		}
		if len(title) > maxTitleLen {
			http.Error(w, "title too long", http.StatusBadRequest)
			return
		}

		roomID, err := uuid.NewV7()
		if err != nil {
			http.Error(w, "could not allocate room id", http.StatusInternalServerError)
			return
		}
		room := models.Room{
			ID:        roomID,
			Title:     title,
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := gs.Store.CreateRoom(r.Context(), room, gs.Orch.NewRoomDocument()); err != nil {
			gs.Log.WithError(err).Error("failed to create room")
			http.Error(w, "could not create room", http.StatusInternalServerError)
			return
		}
		gs.Log.WithField("room", roomID).Infof("room %q created by %s", title, id.ID)
		writeJSON(w, http.StatusOK, room, gs.Log)
	}
}

// ListRoomsHandler returns every room, newest first.
func ListRoomsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := gs.Store.Rooms(r.Context())
		if err != nil {
			gs.Log.WithError(err).Error("failed to list rooms")
			http.Error(w, "could not list rooms", http.StatusInternalServerError)
			return
		}
		sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt > rooms[j].CreatedAt })
		if rooms == nil {
			rooms = []models.Room{}
		}
		writeJSON(w, http.StatusOK, rooms, gs.Log)
	}
}

// GetRoomHandler returns a room's current document.
func GetRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := roomIDFromPath(r)
		if !ok {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		doc, err := gs.Store.Get(r.Context(), roomID)
		if errors.Is(err, store.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			gs.Log.WithError(err).Errorf("failed to read room %s", roomID)
			http.Error(w, "could not read room", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, doc, gs.Log)
	}
}
