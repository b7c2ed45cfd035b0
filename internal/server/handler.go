package server

import (
	"context"

	"github.com/qubit-star/hsb-core/internal/device"
	"github.com/qubit-star/hsb-core/internal/protocol"
)

// handleFrame dispatches one request frame. Every request produces
// exactly one terminating answer on the issuing session: a typed
// response, a streamed list ending in a result, or a bare result.
// Driver-touching requests are queued on the dispatcher and answered
// asynchronously through a reply handle.
func (s *Server) handleFrame(ctx context.Context, sess *Session, cmd uint16, frame []byte) {
	reply := replyHandle{sess: sess, cmd: cmd}

	switch cmd {
	case protocol.CmdGetDevices:
		sess.Send(protocol.EncodeGetDevicesResp(s.registry.Devices()))

	case protocol.CmdGetInfo:
		devID, err := protocol.DecodeDevID(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		info, err := s.registry.GetInfo(devID)
		if err != nil {
			reply.Result(devID, err)
			return
		}
		sess.Send(protocol.EncodeGetInfoResp(devID, info))

	case protocol.CmdGetConfig:
		devID, err := protocol.DecodeDevID(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		cfg, err := s.registry.GetConfig(devID)
		if err != nil {
			reply.Result(devID, err)
			return
		}
		sess.Send(protocol.EncodeConfig(protocol.CmdGetConfigResp, devID, cfg))

	case protocol.CmdSetConfig:
		devID, cfg, err := protocol.DecodeConfig(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.SetConfig(ctx, devID, cfg))

	case protocol.CmdGetStatus:
		devID, err := protocol.DecodeDevID(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		s.submit(reply, device.Task{Type: device.TaskGetStatus, DevID: devID, Reply: reply})

	case protocol.CmdSetStatus:
		devID, pairs, err := protocol.DecodeStatus(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		s.submit(reply, device.Task{Type: device.TaskSetStatus, DevID: devID, Pairs: pairs, Reply: reply})

	case protocol.CmdDoAction:
		devID, actID, p1, p2, err := protocol.DecodeEvent(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		s.submit(reply, device.Task{
			Type: device.TaskDoAction, DevID: devID,
			ActID: actID, Param1: p1, Param2: p2, Reply: reply,
		})

	case protocol.CmdGetTimer:
		devID, slot, err := protocol.DecodeSlotReq(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		t, err := s.registry.GetTimer(devID, int(slot))
		if err != nil {
			reply.Result(devID, err)
			return
		}
		sess.Send(protocol.EncodeTimer(protocol.CmdGetTimerResp, devID, slot, t))

	case protocol.CmdSetTimer:
		devID, slot, t, err := protocol.DecodeTimer(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.SetTimer(ctx, devID, int(slot), t))

	case protocol.CmdDelTimer:
		devID, slot, err := protocol.DecodeSlotReq(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.DelTimer(ctx, devID, int(slot)))

	case protocol.CmdGetDelay:
		devID, slot, err := protocol.DecodeSlotReq(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		d, err := s.registry.GetDelay(devID, int(slot))
		if err != nil {
			reply.Result(devID, err)
			return
		}
		sess.Send(protocol.EncodeDelay(protocol.CmdGetDelayResp, devID, slot, d))

	case protocol.CmdSetDelay:
		devID, slot, d, err := protocol.DecodeDelay(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.SetDelay(ctx, devID, int(slot), d))

	case protocol.CmdDelDelay:
		devID, slot, err := protocol.DecodeSlotReq(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.DelDelay(ctx, devID, int(slot)))

	case protocol.CmdGetLinkage:
		devID, slot, err := protocol.DecodeSlotReq(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		l, err := s.registry.GetLinkage(devID, int(slot))
		if err != nil {
			reply.Result(devID, err)
			return
		}
		sess.Send(protocol.EncodeLinkage(protocol.CmdGetLinkageResp, devID, slot, l))

	case protocol.CmdSetLinkage:
		devID, slot, l, err := protocol.DecodeLinkage(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.SetLinkage(ctx, devID, int(slot), l))

	case protocol.CmdDelLinkage:
		devID, slot, err := protocol.DecodeSlotReq(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.DelLinkage(ctx, devID, int(slot)))

	case protocol.CmdSetChannel:
		devID, name, cid, err := protocol.DecodeChannel(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.SetChannel(ctx, devID, name, cid))

	case protocol.CmdDelChannel:
		devID, name, err := protocol.DecodeChannelName(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.DelChannel(ctx, devID, name))

	case protocol.CmdSwitchChannel:
		devID, name, err := protocol.DecodeChannelName(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.SwitchChannel(ctx, devID, name))

	case protocol.CmdGetChannel:
		devID, err := protocol.DecodeDevID(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		channels, err := s.registry.Channels(devID)
		if err != nil {
			reply.Result(devID, err)
			return
		}
		for _, ch := range channels {
			sess.Send(protocol.EncodeChannel(protocol.CmdGetChannelResp, devID, ch.Name, ch.CID))
		}
		reply.Result(devID, nil)

	case protocol.CmdSetScene:
		sc, err := protocol.DecodeScene(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		if err := s.scenes.Save(ctx, sc); err != nil {
			reply.Result(0, err)
			return
		}
		s.hub.Broadcast(protocol.EncodeScene(protocol.CmdSceneUpdate, sc))
		reply.Result(0, nil)

	case protocol.CmdDelScene:
		name, err := protocol.DecodeSceneName(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(0, s.scenes.Delete(ctx, name))

	case protocol.CmdEnterScene:
		name, err := protocol.DecodeSceneName(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(0, s.engine.Enter(name))

	case protocol.CmdGetScene:
		for _, sc := range s.scenes.All() {
			sess.Send(protocol.EncodeScene(protocol.CmdSceneUpdate, sc))
		}
		reply.Result(0, nil)

	case protocol.CmdProbeDev:
		driverID, err := protocol.DecodeProbeDev(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		s.submit(reply, device.Task{Type: device.TaskProbe, DriverID: uint32(driverID), Reply: reply})

	case protocol.CmdAddDev:
		driverID, devType, err := protocol.DecodeAddDev(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		drv, err := s.registry.Driver(uint32(driverID))
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(0, drv.AddDevice(ctx, uint32(devType)))

	case protocol.CmdDelDev:
		devID, err := protocol.DecodeDevID(frame)
		if err != nil {
			reply.Result(0, err)
			return
		}
		reply.Result(devID, s.registry.RemoveDevice(ctx, devID))

	default:
		s.logger.Warn("unknown command", "session_id", sess.ID(), "cmd", cmd)
		reply.Result(0, protocol.ErrInvalidMessage)
	}
}

// submit queues a dispatcher task; a full queue is reported to the
// client immediately instead of through the reply handle.
func (s *Server) submit(reply replyHandle, task device.Task) {
	if err := s.dispatcher.Submit(task); err != nil {
		reply.Result(task.DevID, err)
	}
}
