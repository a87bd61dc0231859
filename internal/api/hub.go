package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"token_swap/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffer size for channels
	channelBufferSize = 256
)

// StreamObserver tracks the number of open streams.
type StreamObserver interface {
	IncrementStreams()
	DecrementStreams()
}

// StreamMessage is one notification pushed to stream clients.
type StreamMessage struct {
	Topic     string              `json:"topic"`
	Indexed   []string            `json:"indexed"`
	Data      domain.Notification `json:"data"`
	Timestamp time.Time           `json:"timestamp"`
}

type streamClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]bool // empty means every topic
}

func (c *streamClient) wants(topic string) bool {
	return len(c.topics) == 0 || c.topics[topic]
}

// Hub fans committed notifications out to websocket clients. It is a
// domain.NotificationSink.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
	upgrader websocket.Upgrader
	observer StreamObserver
	logger   *slog.Logger
	closed   bool
}

// NewHub creates a new Hub
func NewHub(observer StreamObserver, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		observer: observer,
		logger:   logger.With("module", "stream_hub"),
	}
}

// Notify implements domain.NotificationSink. Slow clients drop messages
// rather than block the caller.
func (h *Hub) Notify(n domain.Notification) {
	msg, err := json.Marshal(StreamMessage{
		Topic:     n.Topic(),
		Indexed:   n.Indexed(),
		Data:      n,
		Timestamp: n.Header().Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal notification", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(n.Topic()) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Client send buffer full, skipping message", slog.String("client_id", c.id))
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams notifications until the peer
// goes away. ?topics=swap,liquidityAdded narrows the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &streamClient{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, channelBufferSize),
		topics: make(map[string]bool),
	}
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			c.topics[t] = true
		}
	}

	if !h.register(c) {
		conn.Close()
		return
	}
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.observer != nil {
		h.observer.IncrementStreams()
	}
	h.logger.Info("Client registered", slog.String("client_id", c.id), slog.Int("total_clients", len(h.clients)))
	return true
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if h.observer != nil {
		h.observer.DecrementStreams()
	}
	h.logger.Info("Client unregistered", slog.String("client_id", c.id), slog.Int("total_clients", len(h.clients)))
}

// readPump only services control frames; clients never send data.
func (h *Hub) readPump(c *streamClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}
