// Package session coordinates two-player game rooms.
//
// A Coordinator pairs connections into named rooms of at most two players,
// hands out player numbers, and relays the gameplay event vocabulary to the
// right members of a room. It knows nothing about websockets: outbound frames
// leave through the Transport interface, which the server package implements.
//
// All room state lives behind a single mutex. Every operation is one short
// critical section, so two joins racing for the last seat cannot both win.
package session
