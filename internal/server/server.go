package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/infrastructure/config"
	"github.com/qubit-star/hsb-core/internal/protocol"
	"github.com/qubit-star/hsb-core/internal/scene"
)

// snapshotDelay is how long after accept the online device snapshot is
// pushed, giving the client time to install its listener.
const snapshotDelay = time.Second

// Server is the TCP command server. Each accepted connection becomes a
// Session in the Hub; request frames are handled on the connection's
// reader goroutine and answered through the session's queue.
type Server struct {
	cfg        config.NetworkConfig
	registry   *device.Registry
	scenes     *scene.Registry
	engine     *scene.Engine
	dispatcher *device.Dispatcher
	hub        *Hub
	logger     Logger
}

// New creates the TCP command server.
func New(cfg config.NetworkConfig, registry *device.Registry, scenes *scene.Registry, engine *scene.Engine, dispatcher *device.Dispatcher, hub *Hub) *Server {
	return &Server{
		cfg:        cfg,
		registry:   registry,
		scenes:     scenes,
		engine:     engine,
		dispatcher: dispatcher,
		hub:        hub,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// Run accepts client connections until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.cfg.TCPPort))
	if err != nil {
		return fmt.Errorf("listening on tcp port %d: %w", s.cfg.TCPPort, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close() //nolint:errcheck // Unblocks Accept at shutdown
		s.hub.CloseAll()
	}()

	s.logger.Info("tcp server listening", "port", s.cfg.TCPPort, "max_clients", s.cfg.MaxClients)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn owns one client connection for its lifetime.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	sess := newSession(conn, s.cfg.SessionQueueSize, s.cfg.SessionWriteTimeout(), s.logger)

	if err := s.hub.add(sess); err != nil {
		s.logger.Warn("rejecting client", "remote", conn.RemoteAddr(), "error", err)
		conn.Close() //nolint:errcheck // Reject path
		return
	}
	defer func() {
		sess.Close()
		s.hub.remove(sess)
	}()

	go sess.writePump()

	// Replay the online world to the new client shortly after accept.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-sess.closed:
			return
		case <-time.After(snapshotDelay):
		}
		for _, dev := range s.registry.Snapshot() {
			sess.Send(protocol.EncodeDevOnline(dev))
		}
	}()

	for {
		cmd, frame, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("session read ended", "session_id", sess.ID(), "error", err)
			}
			return
		}
		s.handleFrame(ctx, sess, cmd, frame)
	}
}

// replyHandle routes one request's dispatcher outcome back to the
// session that issued it, echoing the request command in results.
type replyHandle struct {
	sess *Session
	cmd  uint16
}

// Result implements device.Replier.
func (r replyHandle) Result(devID uint32, err error) {
	r.sess.Send(protocol.EncodeResult(devID, r.cmd, protocol.CodeForError(err)))
}

// Status implements device.Replier.
func (r replyHandle) Status(devID uint32, pairs []device.StatusPair) {
	r.sess.Send(protocol.EncodeStatus(protocol.CmdGetStatusResp, devID, pairs))
}
