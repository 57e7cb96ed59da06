// Package websocket broadcasts run progress to connected observers. Late
// joiners receive the ring-buffered history in one bulk message before the
// live stream.
package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
)

// Event is a single progress entry pushed to observers.
type Event struct {
	Time       string          `json:"time"`
	Event      string          `json:"event"`
	RunID      string          `json:"run_id,omitempty"`
	Rules      *int            `json:"rules,omitempty"`
	Candidates *int            `json:"candidates,omitempty"`
	Generation *int            `json:"generation,omitempty"`
	Fitness    *float64        `json:"fitness,omitempty"`
	Coverage   *float64        `json:"coverage,omitempty"`
	SuiteSize  *int            `json:"suite_size,omitempty"`
	Seq        uint64          `json:"seq,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// RingBuffer keeps a fixed window of recent events for bulk replay.
type RingBuffer struct {
	events []Event
	head   int
	tail   int
	size   int
	count  int
	mutex  sync.RWMutex
	full   bool
}

// NewRingBuffer creates a buffer with the given capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 4096
	}
	return &RingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

// Add appends an event, evicting the oldest once full.
func (rb *RingBuffer) Add(event Event) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	rb.events[rb.head] = event
	rb.head = (rb.head + 1) % rb.size

	if rb.full {
		rb.tail = (rb.tail + 1) % rb.size
	} else {
		rb.count++
		if rb.head == rb.tail && rb.count > 0 {
			rb.full = true
		}
	}
}

// All returns the buffered events oldest first.
func (rb *RingBuffer) All() []Event {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()

	out := make([]Event, 0, rb.count)
	for i := 0; i < rb.count; i++ {
		out = append(out, rb.events[(rb.tail+i)%rb.size])
	}
	return out
}

// Count returns the number of buffered events.
func (rb *RingBuffer) Count() int {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return rb.count
}

const (
	writeDeadline     = 5 * time.Second
	heartbeatInterval = 10 * time.Second
	pongWait          = 60 * time.Second
	pingInterval      = 30 * time.Second
)

var upgrader = gws.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans progress events out to websocket clients.
type Hub struct {
	clients    map[string]*client
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mutex      sync.RWMutex
	buffer     *RingBuffer
	instanceID string
	seq        uint64
	seqMu      sync.Mutex
	startTime  time.Time
}

type client struct {
	id      string
	conn    *gws.Conn
	send    chan []byte
	hub     *Hub
	closed  chan struct{}
	closeMu sync.Mutex
}

// NewHub creates a hub with the given replay buffer capacity.
func NewHub(bufferSize int) *Hub {
	return &Hub{
		clients:    make(map[string]*client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		buffer:     NewRingBuffer(bufferSize),
		instanceID: uuid.NewString(),
		startTime:  time.Now(),
	}
}

// Run starts the hub's main loop; callers run it on its own goroutine.
func (h *Hub) Run() {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mutex.Unlock()
			log.Printf("websocket client connected, total %d", n)

		case c := <-h.unregister:
			h.removeClient(c.id)

		case message := <-h.broadcast:
			for _, c := range h.snapshotClients() {
				h.enqueue(c, message)
			}

		case <-heartbeat.C:
			h.Emit(Event{Event: "heartbeat"})
		}
	}
}

// Emit stamps, buffers, and broadcasts an event.
func (h *Hub) Emit(event Event) {
	event.Time = time.Now().UTC().Format(time.RFC3339Nano)
	h.seqMu.Lock()
	h.seq++
	event.Seq = h.seq
	h.seqMu.Unlock()

	h.buffer.Add(event)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal websocket event %s: %v", event.Event, err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("websocket broadcast channel full, dropping %s", event.Event)
	}
}

// EmitJSON broadcasts an event with an arbitrary JSON payload.
func (h *Hub) EmitJSON(name string, payload any) {
	if strings.TrimSpace(name) == "" {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to marshal websocket payload for %s: %v", name, err)
			return
		}
		raw = data
	}
	h.Emit(Event{Event: name, Payload: raw})
}

// Recent returns up to limit buffered events, newest last.
func (h *Hub) Recent(limit int) []Event {
	events := h.buffer.All()
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events
}

func (h *Hub) snapshotClients() []*client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// enqueue queues a payload for one client. A stalled consumer loses its oldest
// queued message instead of stalling the hub, and a client torn down
// concurrently is skipped rather than panicking on its closed channel.
func (h *Hub) enqueue(c *client, payload []byte) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.send <- payload:
		return
	default:
	}

	// Buffer full: evict the oldest message and retry once.
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- payload:
	default:
		log.Printf("websocket: dropping message for client %s (send buffer full)", c.id)
	}
}

func (h *Hub) removeClient(id string) {
	h.mutex.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mutex.Unlock()
	if ok {
		c.close()
	}
}

// HandleWebSocket upgrades the request and attaches the client to the hub. The
// buffered history is sent as one bulk message before live events.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	bulk, err := json.Marshal(struct {
		Event  string  `json:"event"`
		Events []Event `json:"events"`
	}{Event: "bulk", Events: h.buffer.All()})
	if err != nil {
		log.Printf("failed to marshal bulk message: %v", err)
		conn.Close()
		return
	}
	if err := conn.WriteMessage(gws.TextMessage, bulk); err != nil {
		log.Printf("failed to send bulk message: %v", err)
		conn.Close()
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h,
		closed: make(chan struct{}),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseAbnormalClosure) {
				log.Printf("websocket read error (client %s): %v", c.id, err)
			}
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(gws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}

func (c *client) close() {
	c.closeMu.Lock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
	c.closeMu.Unlock()
}
