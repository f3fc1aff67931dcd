// internal/handlers/room_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmypass17/wordjamboree/internal/auth"
	"github.com/timmypass17/wordjamboree/internal/game"
	"github.com/timmypass17/wordjamboree/internal/models"
	"github.com/timmypass17/wordjamboree/internal/store"
)

func newTestServer(t *testing.T) (*GameServer, *httptest.Server) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	issuer, err := auth.NewIssuer(time.Hour)
	require.NoError(t, err)
	dict := game.DictionaryFunc(func(word string) bool { return word == "sing" })
	orch := game.NewOrchestrator(game.DefaultRules(), dict, nil)
	gs := NewGameServer(store.NewMemoryStore(log), orch, issuer, log)

	srv := httptest.NewServer(gs.Routes())
	t.Cleanup(srv.Close)
	return gs, srv
}

func createRoom(t *testing.T, srv *httptest.Server, title string) models.Room {
	t.Helper()
	body := `{"title":"` + title + `"}`
	resp, err := http.Post(srv.URL+"/room/create", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var room models.Room
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	return room
}

func listRooms(t *testing.T, srv *httptest.Server) []models.Room {
	t.Helper()
	resp, err := http.Get(srv.URL + "/room/list")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms []models.Room
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	return rooms
}

// TestRoomCreate checks that /room/create stores a lobby and hands out a guest cookie.
func TestRoomCreate(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/room/create", "application/json", strings.NewReader(`{"title":"friday"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var room models.Room
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	assert.NotEqual(t, uuid.Nil, room.ID)
	assert.Equal(t, "friday", room.Title)

	var hasCookie bool
	for _, c := range resp.Cookies() {
		hasCookie = hasCookie || c.Name == auth.CookieName
	}
	assert.True(t, hasCookie, "guest cookie")

	docResp, err := http.Get(srv.URL + "/room/" + room.ID.String())
	require.NoError(t, err)
	defer docResp.Body.Close()
	require.Equal(t, http.StatusOK, docResp.StatusCode)

	var doc models.GameDocument
	require.NoError(t, json.NewDecoder(docResp.Body).Decode(&doc))
	assert.Equal(t, models.NotStarted, doc.State.RoomStatus)
	assert.Equal(t, 1, doc.Rounds)
	assert.NotEmpty(t, doc.CurrentLetters)
}

func TestRoomCreateRejectsBadInput(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/room/create", "application/json", strings.NewReader(`{"title":`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	long := `{"title":"` + strings.Repeat("x", maxTitleLen+1) + `"}`
	resp, err = http.Post(srv.URL+"/room/create", "application/json", strings.NewReader(long))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRoomListNewestFirst(t *testing.T) {
	_, srv := newTestServer(t)
	assert.Empty(t, listRooms(t, srv))

	first := createRoom(t, srv, "first")
	time.Sleep(2 * time.Millisecond)
	second := createRoom(t, srv, "second")

	rooms := listRooms(t, srv)
	require.Len(t, rooms, 2)
	assert.Equal(t, second.ID, rooms[0].ID)
	assert.Equal(t, first.ID, rooms[1].ID)
}

func TestRoomGetErrors(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/room/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/room/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID uuid.UUID) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws/" + roomID.String()
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{subprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func writeMessage(t *testing.T, c *websocket.Conn, msg ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, c *websocket.Conn, match func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ string) func(map[string]interface{}) bool {
	return func(m map[string]interface{}) bool { return m["type"] == typ }
}

func TestRoomWebSocketJoin(t *testing.T) {
	gs, srv := newTestServer(t)
	room := createRoom(t, srv, "ws")

	c := dialRoom(t, srv, room.ID)
	writeMessage(t, c, ClientMessage{Type: "ping"})
	readUntil(t, c, ofType("pong"))

	writeMessage(t, c, ClientMessage{Type: "join", Name: "ada"})
	ev := readUntil(t, c, ofType(string(game.EventPlayerJoined)))
	user, ok := ev["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ada", user["name"])

	assert.Equal(t, 1, gs.Sessions.Connected(room.ID))
	require.Eventually(t, func() bool {
		rooms := listRooms(t, srv)
		return len(rooms) == 1 && rooms[0].PlayerCount == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRoomWebSocketSeesOtherPlayers(t *testing.T) {
	_, srv := newTestServer(t)
	room := createRoom(t, srv, "pair")

	a := dialRoom(t, srv, room.ID)
	b := dialRoom(t, srv, room.ID)

	writeMessage(t, a, ClientMessage{Type: "join", Name: "ada"})
	readUntil(t, b, func(m map[string]interface{}) bool {
		u, _ := m["user"].(map[string]interface{})
		return m["type"] == string(game.EventPlayerJoined) && u["name"] == "ada"
	})

	writeMessage(t, b, ClientMessage{Type: "join", Name: "bob"})
	readUntil(t, a, ofType(string(game.EventCountdownStarted)))

	writeMessage(t, a, ClientMessage{Type: "start"})
	ev := readUntil(t, b, func(m map[string]interface{}) bool {
		p, _ := m["payload"].(map[string]interface{})
		return m["type"] == string(game.EventGameStatus) && p["status"] == string(models.InProgress)
	})
	assert.NotNil(t, ev)
}

func TestRoomWebSocketUnknownMessage(t *testing.T) {
	_, srv := newTestServer(t)
	room := createRoom(t, srv, "errors")
	c := dialRoom(t, srv, room.ID)

	writeMessage(t, c, ClientMessage{Type: "dance"})
	msg := readUntil(t, c, ofType("error"))
	assert.Contains(t, msg["message"], "dance")

	require.NoError(t, c.Write(context.Background(), websocket.MessageText, []byte("{")))
	readUntil(t, c, ofType("error"))
}

func TestRoomWebSocketExitLeavesLobby(t *testing.T) {
	gs, srv := newTestServer(t)
	room := createRoom(t, srv, "exit")
	c := dialRoom(t, srv, room.ID)

	writeMessage(t, c, ClientMessage{Type: "join", Name: "ada"})
	readUntil(t, c, ofType(string(game.EventPlayerJoined)))
	writeMessage(t, c, ClientMessage{Type: "exit"})

	require.Eventually(t, func() bool {
		doc, err := gs.Store.Get(context.Background(), room.ID)
		return err == nil && len(doc.PlayersInfo) == 0 && gs.Sessions.Connected(room.ID) == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRoomWebSocketUnknownRoom(t *testing.T) {
	_, srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws/" + uuid.NewString()
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{subprotocol}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomWebSocketReplacesForeignToken(t *testing.T) {
	_, srv := newTestServer(t)
	room := createRoom(t, srv, "stale")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws/" + room.ID.String()
	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"=not-a-token")
	c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{subprotocol}, HTTPHeader: header})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	var fresh bool
	for _, ck := range resp.Cookies() {
		fresh = fresh || (ck.Name == auth.CookieName && ck.Value != "not-a-token")
	}
	assert.True(t, fresh, "a new guest token is issued")

	writeMessage(t, c, ClientMessage{Type: "ping"})
	readUntil(t, c, ofType("pong"))
}
