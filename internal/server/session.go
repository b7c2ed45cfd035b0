package server

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one connected TCP client. A reader goroutine (the server's
// connection handler) parses request frames; a writer goroutine drains
// the outgoing queue. All responses and notifications go through the
// queue, so request handling never blocks on a slow client socket.
type Session struct {
	id   string
	conn net.Conn

	out          chan []byte
	writeTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}

	logger Logger
}

func newSession(conn net.Conn, queueSize int, writeTimeout time.Duration, logger Logger) *Session {
	return &Session{
		id:           uuid.NewString(),
		conn:         conn,
		out:          make(chan []byte, queueSize),
		writeTimeout: writeTimeout,
		closed:       make(chan struct{}),
		logger:       logger,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Send queues a frame for delivery. When the queue is full the oldest
// pending frame is dropped; a lagging client loses notifications rather
// than stalling the hub.
func (s *Session) Send(frame []byte) {
	select {
	case <-s.closed:
		return
	default:
	}

	for {
		select {
		case s.out <- frame:
			return
		default:
		}
		select {
		case dropped := <-s.out:
			_ = dropped
			s.logger.Warn("session queue full, dropping oldest frame", "session_id", s.id)
		default:
		}
	}
}

// writePump drains the outgoing queue onto the socket. It exits when
// the session closes; a write error closes the session.
func (s *Session) writePump() {
	for {
		select {
		case <-s.closed:
			return
		case frame := <-s.out:
			if s.writeTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if _, err := s.conn.Write(frame); err != nil {
				s.logger.Debug("session write failed", "session_id", s.id, "error", err)
				s.Close()
				return
			}
		}
	}
}

// Close shuts the session down. Safe to call from any goroutine, any
// number of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}
