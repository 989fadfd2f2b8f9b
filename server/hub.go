package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"

	fightarena "github.com/arenabets/fightarena"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxChatBytes = 512
	clientBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans arena events out to websocket observers. It implements Sink;
// Broadcast never blocks, a client that cannot keep up is dropped.
type Hub struct {
	log   slog.Logger
	state func() StateSnapshot

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub builds a hub; state supplies the snapshot pushed to each client on
// connect.
func NewHub(log slog.Logger, state func() StateSnapshot) *Hub {
	return &Hub{
		log:     log,
		state:   state,
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast marshals the event once and queues it on every client.
func (h *Hub) Broadcast(ev fightarena.Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.log.Errorf("hub: marshal %s event: %v", ev.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			// Slow consumer; closing the connection errors out both
			// pumps and the read side detaches the client.
			go c.conn.Close()
		}
	}
}

// ClientCount reports connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches the client. The first message
// the client receives is a current-state snapshot.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("hub: upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debugf("hub: client %s connected (%d total)", r.RemoteAddr, n)

	if raw, err := json.Marshal(fightarena.Event{
		Type:    fightarena.EventCurrentState,
		Payload: h.state(),
	}); err == nil {
		c.send <- raw
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump relays viewer chat and discards everything else clients send.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxChatBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ev fightarena.Event
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Type != fightarena.EventChatMessage {
			continue
		}
		var msg fightarena.ChatMessage
		inner, err := json.Marshal(ev.Payload)
		if err != nil || json.Unmarshal(inner, &msg) != nil || msg.Message == "" {
			continue
		}
		msg.At = time.Now()
		c.hub.Broadcast(fightarena.Event{Type: fightarena.EventChatMessage, Payload: msg})
	}
}
