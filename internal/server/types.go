// Package server defines the frame types passed between clients and the hub,
// plus small helpers shared by both.
package server

import "strings"

// inboundFrame is a raw client frame on its way to the hub run loop.
type inboundFrame struct {
	client  *Client
	payload []byte
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
