// Package server is the websocket transport and HTTP surface of the relay.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers. Room logic lives in
// the session package; this package only moves frames between browsers and
// the session coordinator.
package server
