// Package server provides the hub's network surfaces: the TCP command
// server with its session hub, and the UDP discovery responder.
//
// Each TCP client is a Session with its own bounded outgoing queue and
// writer goroutine; a lagging client drops its oldest notifications
// instead of back-pressuring the hub. Replies to a request go only to
// the session that issued it, while the Hub broadcasts unsolicited
// notifications (events, status updates, device arrivals) to every
// connected client. New connections receive a replay of the online
// device set shortly after accept.
package server
