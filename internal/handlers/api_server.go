// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/auth"
	"github.com/timmypass17/wordjamboree/internal/game"
	"github.com/timmypass17/wordjamboree/internal/middleware"
	"github.com/timmypass17/wordjamboree/internal/store"
)

// GameServer holds what the HTTP and websocket handlers share.
type GameServer struct {
	Store    store.Store
	Orch     *game.Orchestrator
	Sessions *game.SessionStore
	Auth     *auth.Issuer
	// Actions receives committed in-game actions. Optional.
	Actions game.ActionPublisher
	Log     logrus.FieldLogger
}

func NewGameServer(st store.Store, orch *game.Orchestrator, issuer *auth.Issuer, log logrus.FieldLogger) *GameServer {
	return &GameServer{
		Store:    st,
		Orch:     orch,
		Sessions: game.NewSessionStore(),
		Auth:     issuer,
		Log:      log,
	}
}

// Routes registers every endpoint behind the logging middleware.
func (gs *GameServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /room/create", CreateRoomHandler(gs))
	mux.HandleFunc("GET /room/list", ListRoomsHandler(gs))
	mux.HandleFunc("GET /room/{roomID}", GetRoomHandler(gs))
	mux.HandleFunc("GET /room/ws/{roomID}", RoomWSHandler(gs))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return middleware.LogMiddleware(gs.Log)(mux)
}
