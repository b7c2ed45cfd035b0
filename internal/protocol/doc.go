// Package protocol implements the hub's binary client protocol.
//
// Frames are little-endian with fixed field offsets. Every frame opens
// with a 4-byte header: the command code and the total frame length,
// header included. Requests are answered either by a typed response
// frame or by a generic result frame echoing the request's command code
// and a result code; list queries stream their records as individual
// frames terminated by a result.
//
// The same frame shapes travel both directions: status frames serve
// writes, read responses and unsolicited updates, and the device record
// push doubles as the snapshot replayed to new connections.
package protocol
