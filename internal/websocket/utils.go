package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline = 10 * time.Second
	// Monitor clients are expected to ping; a silent connection for this
	// long is treated as gone.
	readDeadline = 5 * time.Minute
)

// WriteTyped sends one event payload with a write deadline applied.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteJSON(v)
}

// ReadJSON decodes the next client message with a read deadline applied.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	return conn.ReadJSON(v)
}
