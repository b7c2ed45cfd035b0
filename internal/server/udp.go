package server

import (
	"context"
	"fmt"
	"net"

	"github.com/qubit-star/hsb-core/internal/protocol"
)

// UDPServer answers discovery broadcasts so clients on the local
// network can find the hub without configuration.
type UDPServer struct {
	port   int
	boxID  uint16
	logger Logger
}

// NewUDPServer creates the discovery responder.
func NewUDPServer(port int, boxID uint16) *UDPServer {
	return &UDPServer{port: port, boxID: boxID, logger: noopLogger{}}
}

// SetLogger sets the logger for the discovery responder.
func (u *UDPServer) SetLogger(logger Logger) {
	u.logger = logger
}

// Run answers discovery datagrams until the context is cancelled.
func (u *UDPServer) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	pc, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf(":%d", u.port))
	if err != nil {
		return fmt.Errorf("listening on udp port %d: %w", u.port, err)
	}

	go func() {
		<-ctx.Done()
		pc.Close() //nolint:errcheck // Unblocks ReadFrom at shutdown
	}()

	u.logger.Info("discovery listening", "port", u.port, "box_id", u.boxID)

	resp := protocol.EncodeDiscoverResp(u.boxID)
	buf := make([]byte, 64)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			u.logger.Warn("discovery read failed", "error", err)
			continue
		}
		if n < protocol.HeaderLen {
			continue
		}
		if cmd := uint16(buf[0]) | uint16(buf[1])<<8; cmd != protocol.CmdDiscover {
			continue
		}

		if _, err := pc.WriteTo(resp, addr); err != nil {
			u.logger.Warn("discovery reply failed", "remote", addr, "error", err)
		} else {
			u.logger.Debug("discovery reply sent", "remote", addr)
		}
	}
}
