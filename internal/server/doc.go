// Package server implements the real-time relay: the WebSocket hub that
// tracks live connections, the per-connection read/write pumps, and the
// broadcast engine that persists inbound messages, coordinates push
// notification dispatch, and fans frames out to every live client.
package server
