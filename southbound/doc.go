// Package southbound carries device sessions: one Conn per TCP or WebSocket
// connection, with a reader that decodes frames and hands them to the event
// loop, a writer that drains an ordered outbound queue, and a watchdog that
// closes sessions whose hellos stop arriving.
//
// Protocol specifics live behind Handler. The per-protocol packages
// (southbound/lvapp, southbound/vbsp, southbound/lvnfp) implement it on top
// of the runtime and plug it into a Server or a WebSocketServer.
//
// Handler methods named "on loop" below run as tasks of the event loop and
// may touch the runtime; Decode and Encode run on the connection goroutines
// and must not.
package southbound
