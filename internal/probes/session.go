package probes

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/logger"
)

// Close codes sent to probes that fail the stream handshake.
const (
	CloseUnauthorized  = 4001
	CloseMissingParams = 4002
)

// ResultHandler receives task-result frames read off probe sessions. The
// dispatcher implements it.
type ResultHandler interface {
	HandleResult(result domain.TaskResult)
}

// Session is one live, authenticated probe connection.
type Session struct {
	ID     string
	Region string

	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows a single concurrent writer

	mu       sync.Mutex
	lastSeen time.Time
	closed   bool

	log logger.Logger
}

// NewSession wraps an upgraded websocket connection.
func NewSession(id, region string, conn *websocket.Conn, log logger.Logger) *Session {
	return &Session{
		ID:       id,
		Region:   region,
		conn:     conn,
		lastSeen: time.Now(),
		log:      log,
	}
}

// SendTask writes a task frame to the probe. Writes are serialized so frames
// never interleave.
func (s *Session) SendTask(task domain.Task) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(task)
}

// LastSeen returns the time of the most recent inbound frame.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Close tears down the connection. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced"),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	_ = s.conn.Close()
}

// ReadLoop processes inbound frames until the connection dies, then
// unregisters the session. Frames that decode to a task result are handed to
// the handler; anything else is logged and dropped.
func (s *Session) ReadLoop(registry *Registry, handler ResultHandler) {
	defer func() {
		registry.Unregister(s)
		_ = s.conn.Close()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Infof("probe %s connection closed: %v", s.ID, err)
			}
			return
		}
		s.touch()

		var result domain.TaskResult
		if err := json.Unmarshal(data, &result); err != nil || result.ID == "" {
			s.log.Warn("dropping malformed probe frame",
				logger.String("probe", s.ID),
				logger.Int("bytes", len(data)))
			continue
		}
		handler.HandleResult(result)
	}
}
