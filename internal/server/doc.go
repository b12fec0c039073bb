// Package server implements the HTTP and WebSocket functionality of the demo
// chat server.
//
// The HTTP side serves a greeting, two sleep demos (blocking and streamed), a
// synthetic file download and the chat page. The WebSocket side registers
// each peer in a ConnectionManager, echoes what it writes and broadcasts it to
// everyone connected. The code is split into files for configuration,
// connections, the registry, sessions, routing and handlers.
package server
