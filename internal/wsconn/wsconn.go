// Package wsconn adapts a gorilla/websocket connection to the
// registry.Channel capability interface.
package wsconn

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn wraps *websocket.Conn with the mutex gorilla requires around
// concurrent writes from multiple goroutines (broadcast vs. read loop).
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Upgrade promotes an HTTP request to a websocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

// SendBytes writes one text frame, satisfying registry.Channel.
func (c *Conn) SendBytes(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// ReadMessage blocks for the next client frame, for the caller's read
// loop (request dispatch lives in internal/api, not here).
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}
