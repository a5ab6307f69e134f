package capture

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the viewer.
	writeWait = 10 * time.Second

	// Maximum inbound message size. Viewers only send keepalives.
	maxMessageSize = 512

	// Outbound messages buffered per viewer before it counts as lagging.
	sendBufferSize = 64
)

var pongPayload = mustMarshal(ControlMessage{Type: MessageTypePong})

// Session is one live viewer connection. It holds no state of its own
// beyond its outbound queue; the registry is the source of truth.
type Session struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool

	lastSeen atomic.Int64
}

// NewSession wraps conn in a new session with a fresh id. conn may be nil
// for sessions that are drained directly (tests).
func NewSession(conn *websocket.Conn) *Session {
	s := &Session{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	s.touch()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Messages returns the outbound queue. It is closed when the session ends.
func (s *Session) Messages() <-chan []byte {
	return s.send
}

// LastSeen returns when the viewer last sent anything.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// enqueue queues data without blocking. It returns false when the session is
// closed or its buffer is full.
func (s *Session) enqueue(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// close ends the outbound queue. Safe to call more than once.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// serve starts the read and write pumps for a connected session.
func (s *Session) serve(hub *Hub, idleTimeout time.Duration, log *slog.Logger) {
	log = log.With(slog.String("session_id", s.id.String()))
	go s.writePump(hub, idleTimeout, log)
	go s.readPump(hub, idleTimeout, log)
}

// readPump consumes keepalives until the viewer goes away or stays silent
// past idleTimeout. Browsers answer ping frames on their own, so an open
// tab keeps the read deadline moving even without application pings.
func (s *Session) readPump(hub *Hub, idleTimeout time.Duration, log *slog.Logger) {
	defer func() {
		hub.Detach(s.id)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("viewer read failed", slog.String("error", err.Error()))
			}
			return
		}
		s.touch()
		_ = s.conn.SetReadDeadline(time.Now().Add(idleTimeout))

		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing && !s.enqueue(pongPayload) {
			return
		}
	}
}

// writePump drains the outbound queue onto the connection and sends ping
// frames so that idle viewers are detected.
func (s *Session) writePump(hub *Hub, idleTimeout time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(idleTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("viewer write failed", slog.String("error", err.Error()))
				hub.Detach(s.id)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				hub.Detach(s.id)
				return
			}
		}
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
