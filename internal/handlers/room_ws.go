// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/auth"
	"github.com/timmypass17/wordjamboree/internal/game"
	"github.com/timmypass17/wordjamboree/internal/middleware"
	"github.com/timmypass17/wordjamboree/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	subprotocol   = "game"
	outboundQueue = 64
	readLimit     = 4096
	writeTimeout  = 5 * time.Second
	maxNameLen    = 24
)

// ClientMessage is a message sent by the client over the room socket.
type ClientMessage struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	Word string `json:"word,omitempty"`
}

// RoomWSHandler upgrades the connection and runs one game session for the
// authenticated player until either side hangs up.
func RoomWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := roomIDFromPath(r)
		if !ok {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		if _, err := gs.Store.Get(r.Context(), roomID); err != nil {
			if errors.Is(err, store.ErrRoomNotFound) {
				http.Error(w, "room not found", http.StatusNotFound)
				return
			}
			gs.Log.WithError(err).Errorf("failed to read room %s", roomID)
			http.Error(w, "could not read room", http.StatusInternalServerError)
			return
		}

		// The cookie has to be set before the upgrade response is written.
		id, err := gs.Auth.EnsureGuest(w, r, "")
		if err != nil {
			gs.Log.WithError(err).Warn("guest authentication failed")
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			gs.Log.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != subprotocol {
			c.Close(BadSubprotocolError, "client must speak the game subprotocol")
			return
		}
		c.SetReadLimit(readLimit)

		log := gs.Log.WithFields(logrus.Fields{"room": roomID, "player": id.ID})
		middleware.LogWebSocketConnect(log, r.RemoteAddr, r.URL.Path)

		err = gs.serveSession(r.Context(), c, roomID, id, log)
		middleware.LogWebSocketDisconnect(log, r.RemoteAddr, r.URL.Path, err)

		switch {
		case errors.Is(err, errSlowConsumer):
			c.Close(SlowConsumerError, "too slow reading events")
		case errors.Is(err, game.ErrSubscriptionClosed):
			c.Close(InvalidRoomIDError, "room closed")
		default:
			c.Close(websocket.StatusNormalClosure, "")
		}
	}
}

var (
	errSlowConsumer = errors.New("outbound queue full")
	errClientExit   = errors.New("client exited")
	errClientGone   = errors.New("client closed the connection")
)

// serveSession runs the session loop, the write pump and the read pump until
// one of them stops.
func (gs *GameServer) serveSession(ctx context.Context, c *websocket.Conn, roomID uuid.UUID, id auth.Identity, log logrus.FieldLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := game.NewSession(roomID, id.ID, gs.Store, gs.Orch, log)
	if gs.Actions != nil {
		sess.Actions = gs.Actions
	}

	out := make(chan []byte, outboundQueue)
	var overflow atomic.Bool
	sess.BroadcastFn = func(ev game.GameEvent) {
		select {
		case out <- game.EventBytes(ev):
		default:
			if overflow.CompareAndSwap(false, true) {
				log.Warn("client is not keeping up, dropping connection")
				cancel()
			}
		}
	}

	// A second connection of the same player replaces this one.
	gs.Sessions.Add(sess, cancel)
	defer gs.Sessions.Remove(sess)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gctx) })
	g.Go(func() error { return writePump(gctx, c, out) })
	g.Go(func() error { return readPump(gctx, c, sess, id, out, log) })
	err := g.Wait()

	switch {
	case overflow.Load():
		return errSlowConsumer
	case errors.Is(err, errClientExit), errors.Is(err, errClientGone):
		return nil
	}
	return err
}

// writePump is the only writer of the connection.
func writePump(ctx context.Context, c *websocket.Conn, out <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

// readPump routes client messages to the session.
func readPump(ctx context.Context, c *websocket.Conn, sess *game.Session, id auth.Identity, out chan<- []byte, log logrus.FieldLogger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				return errClientGone
			}
			return fmt.Errorf("read: %w", err)
		}
		if typ != websocket.MessageText {
			log.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			send(ctx, out, errorMessage("Invalid JSON format."))
			continue
		}
		log.Debugf("received %q", msg.Type)

		switch msg.Type {
		case "join":
			sess.Join(ctx, displayName(msg.Name, id.Name))
		case "type":
			sess.UpdateWord(ctx, msg.Word)
		case "submit":
			sess.Submit(ctx, msg.Word)
		case "start":
			sess.StartGame(ctx)
		case "exit":
			sess.Exit(ctx)
			return errClientExit
		case "ping":
			send(ctx, out, map[string]string{"type": "pong"})
		default:
			send(ctx, out, errorMessage(fmt.Sprintf("Unknown message type: %s", msg.Type)))
		}
	}
}

func displayName(requested, fallback string) string {
	name := strings.TrimSpace(requested)
	if name == "" {
		name = fallback
	}
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen])
	}
	return name
}

func errorMessage(msg string) map[string]interface{} {
	return map[string]interface{}{
		"type":    "error",
		"message": msg,
	}
}

// send queues a direct reply for the write pump.
func send(ctx context.Context, out chan<- []byte, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case out <- data:
	case <-ctx.Done():
	}
}
