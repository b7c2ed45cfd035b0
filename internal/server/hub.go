package server

import (
	"fmt"

	"sync"

	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/protocol"
)

// Logger defines the logging interface used by the server layer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ErrTooManyClients indicates the session pool is at capacity.
var errTooManyClients = fmt.Errorf("server: too many clients")

// Hub tracks connected sessions and fans notifications out to all of
// them. Replies to a specific request go through that request's session
// only; the hub carries everything unsolicited.
//
// Hub implements device.Notifier, translating registry notifications
// into broadcast frames.
type Hub struct {
	mu         sync.Mutex
	sessions   map[*Session]struct{}
	maxClients int
	logger     Logger
}

// NewHub creates a session hub bounded to maxClients connections.
func NewHub(maxClients int) *Hub {
	return &Hub{
		sessions:   make(map[*Session]struct{}),
		maxClients: maxClients,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

func (h *Hub) add(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.sessions) >= h.maxClients {
		return errTooManyClients
	}
	h.sessions[s] = struct{}{}
	h.logger.Info("client connected", "session_id", s.ID(), "clients", len(h.sessions))
	return nil
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		h.logger.Info("client disconnected", "session_id", s.ID(), "clients", len(h.sessions))
	}
}

// Broadcast queues a frame on every connected session.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Send(frame)
	}
}

// CloseAll closes every session; used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// DeviceEvent implements device.Notifier.
func (h *Hub) DeviceEvent(evt device.Event) {
	h.Broadcast(protocol.EncodeEvent(protocol.CmdEvent, evt.DevID, evt.ID, evt.Param1, evt.Param2))
}

// StatusChanged implements device.Notifier.
func (h *Hub) StatusChanged(devID uint32, pairs []device.StatusPair) {
	h.Broadcast(protocol.EncodeStatus(protocol.CmdStatusUpdate, devID, pairs))
}

// DeviceArrived implements device.Notifier.
func (h *Hub) DeviceArrived(dev *device.Device) {
	h.Broadcast(protocol.EncodeDevOnline(dev))
}
