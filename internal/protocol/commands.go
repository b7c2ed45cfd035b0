package protocol

import (
	"errors"

	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/scene"
)

// Command codes. The low byte pairs requests with their responses where
// one exists; notifications reuse the response shapes.
const (
	// UDP discovery.
	CmdDiscover     uint16 = 0x0001
	CmdDiscoverResp uint16 = 0x0002

	// Device enumeration and identity.
	CmdGetDevices     uint16 = 0x1000
	CmdGetDevicesResp uint16 = 0x1001
	CmdGetInfo        uint16 = 0x1002
	CmdGetInfoResp    uint16 = 0x1003
	CmdGetConfig      uint16 = 0x1004
	CmdGetConfigResp  uint16 = 0x1005
	CmdSetConfig      uint16 = 0x1006

	// Status and actions.
	CmdGetStatus     uint16 = 0x1008
	CmdGetStatusResp uint16 = 0x1009
	CmdSetStatus     uint16 = 0x100A
	CmdStatusUpdate  uint16 = 0x100C
	CmdDoAction      uint16 = 0x100D
	CmdEvent         uint16 = 0x100E
	CmdResult        uint16 = 0x1010

	// Automation slots.
	CmdGetTimer       uint16 = 0x1012
	CmdGetTimerResp   uint16 = 0x1013
	CmdSetTimer       uint16 = 0x1014
	CmdDelTimer       uint16 = 0x1015
	CmdGetDelay       uint16 = 0x1016
	CmdGetDelayResp   uint16 = 0x1017
	CmdSetDelay       uint16 = 0x1018
	CmdDelDelay       uint16 = 0x1019
	CmdGetLinkage     uint16 = 0x101A
	CmdGetLinkageResp uint16 = 0x101B
	CmdSetLinkage     uint16 = 0x101C
	CmdDelLinkage     uint16 = 0x101D

	// Channels.
	CmdSetChannel     uint16 = 0x1020
	CmdDelChannel     uint16 = 0x1021
	CmdGetChannel     uint16 = 0x1022
	CmdGetChannelResp uint16 = 0x1023
	CmdSwitchChannel  uint16 = 0x1024

	// Scenes.
	CmdSetScene    uint16 = 0x1030
	CmdDelScene    uint16 = 0x1031
	CmdEnterScene  uint16 = 0x1032
	CmdGetScene    uint16 = 0x1033
	CmdSceneUpdate uint16 = 0x1034

	// Provisioning.
	CmdProbeDev uint16 = 0x1040
	CmdAddDev   uint16 = 0x1041
	CmdDelDev   uint16 = 0x1042

	// Device snapshot push.
	CmdDevOnline uint16 = 0x1050
)

// Result codes carried in result frames.
const (
	CodeOK             uint16 = 0
	CodeBadParam       uint16 = 1
	CodeNotFound       uint16 = 2
	CodeNotSupported   uint16 = 3
	CodeAlreadyExists  uint16 = 4
	CodeNoMemory       uint16 = 5
	CodeInvalidMessage uint16 = 6
	CodeIOFail         uint16 = 7
	CodeBusy           uint16 = 8
)

// ErrInvalidMessage indicates a frame that cannot be parsed: short
// body, bad magic, or out-of-range counts.
var ErrInvalidMessage = errors.New("protocol: invalid message")

// CodeForError maps core sentinel errors to wire result codes.
// Unknown errors map to CodeIOFail.
func CodeForError(err error) uint16 {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, device.ErrBadParam), errors.Is(err, scene.ErrBadParam):
		return CodeBadParam
	case errors.Is(err, device.ErrNotFound), errors.Is(err, scene.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, device.ErrNotSupported):
		return CodeNotSupported
	case errors.Is(err, device.ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrInvalidMessage):
		return CodeInvalidMessage
	case errors.Is(err, device.ErrQueueFull), errors.Is(err, scene.ErrBusy):
		return CodeBusy
	default:
		return CodeIOFail
	}
}
