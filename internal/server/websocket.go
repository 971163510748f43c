package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 8
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // pages are served from any local origin
	},
}

// client is one connected browser. Only its write loop touches conn for
// writing.
type client struct {
	conn *websocket.Conn
	send chan Message
}

// reply is a message for a single client.
type reply struct {
	to  *client
	msg Message
}

// Hub tracks connected clients and fans out reload messages to them. Only Run
// sends on or closes a client's send channel.
type Hub struct {
	mu         sync.Mutex
	clients    map[*client]bool
	broadcast  chan Message
	direct     chan reply
	register   chan *client
	unregister chan *client
	done       chan struct{}
	once       sync.Once
}

// NewHub creates a Hub. Call Run to start delivering messages.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 64),
		direct:     make(chan reply),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.dropLocked(c)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Too slow to keep up; it reconnects and reloads.
					h.dropLocked(c)
				}
			}
			h.mu.Unlock()

		case r := <-h.direct:
			h.mu.Lock()
			if h.clients[r.to] {
				select {
				case r.to.send <- r.msg:
				default:
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Stop ends Run and disconnects every client. It is safe to call more than
// once.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Broadcast queues msg for every connected client. It never blocks; the
// message is dropped when the queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// HandleWS upgrades the request and registers the connection until the
// client goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("warning: websocket upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writeLoop(c)
	go h.readLoop(c)
}

// readLoop answers handshakes and notices disconnects.
func (h *Hub) readLoop(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Command != CommandHello {
			continue
		}
		select {
		case h.direct <- reply{to: c, msg: helloReply()}:
		case <-h.done:
			return
		}
	}
}

// writeLoop delivers queued messages and keeps the connection alive. It
// closes the connection once send is closed.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
