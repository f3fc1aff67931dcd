// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidRoomIDError  = 3003 // Room vanished between lookup and session start.
	SlowConsumerError   = 3004 // Client did not read events fast enough.
)
