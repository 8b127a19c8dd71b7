// Package live pushes auction events to WebSocket subscribers.
package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 64
)

// Hub fans out JSON payloads to sessions grouped by topic. A session that
// cannot keep up with the send buffer is dropped rather than allowed to
// block other subscribers.
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	topics map[string]map[*session]struct{}

	upgrader websocket.Upgrader
}

type session struct {
	id     string
	topics []string
	conn   *websocket.Conn
	send   chan []byte

	// mu guards closed so a broadcast can never send on a channel that a
	// concurrent disconnect has already closed.
	mu     sync.Mutex
	closed bool
}

// trySend queues a payload unless the session is closed or its buffer is
// full. The boolean reports whether the payload was queued.
func (s *session) trySend(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close shuts the session down once. It reports whether this call was the
// one that closed it.
func (s *session) close() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	close(s.send)
	s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
	}
	return true
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		log:    zap.L().Named("live"),
		topics: make(map[string]map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the marketplace frontend on a
			// different origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and subscribes the connection to the topics
// named in the "topic" query parameter (repeatable). With no topic given the
// session receives everything published to the firehose topic.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	topics := r.URL.Query()["topic"]
	if len(topics) == 0 {
		topics = []string{TopicFirehose}
	}

	s := &session{
		id:     uuid.NewString(),
		topics: topics,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	h.add(s)
	h.log.Info("subscriber connected",
		zap.String("session_id", s.id),
		zap.Strings("topics", topics),
	)

	go h.writePump(s)
	go h.readPump(s)
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range s.topics {
		set, ok := h.topics[topic]
		if !ok {
			set = make(map[*session]struct{})
			h.topics[topic] = set
		}
		set[s] = struct{}{}
	}
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	for _, topic := range s.topics {
		if set, ok := h.topics[topic]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	h.mu.Unlock()

	if s.close() {
		h.log.Info("subscriber disconnected", zap.String("session_id", s.id))
	}
}

// Broadcast delivers a payload to every session subscribed to the topic.
func (h *Hub) Broadcast(topic string, payload []byte) {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		if s.trySend(payload) {
			continue
		}
		// A session that refused the payload is either already closing
		// (disconnect raced the broadcast) or too slow to keep.
		if !s.isClosed() {
			h.log.Warn("dropping slow subscriber", zap.String("session_id", s.id))
		}
		h.remove(s)
	}
}

// SubscriberCount returns how many sessions are subscribed to a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) writePump(s *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs are processed and the connection's
// close handshake completes. Inbound messages carry no commands.
func (h *Hub) readPump(s *session) {
	defer h.remove(s)

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error",
					zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
	}
}
