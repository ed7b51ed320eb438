package session

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
)

// MaxPlayers is the room capacity.
const MaxPlayers = 2

// Participant is one seat in a room. Number is assigned at join time and
// never changes afterwards, even when the other seat empties.
type Participant struct {
	ConnID string
	Name   string
	Number int
}

// JoinResult reports the outcome of a join. A full room is a normal outcome,
// not an error.
type JoinResult struct {
	Accepted     bool
	PlayerNumber int
}

type room struct {
	id           string
	participants []Participant
}

// membership is the side-table entry of a connection. current is the room of
// its latest successful join; joined lists every room it was seated in.
type membership struct {
	current string
	joined  []string
}

// Coordinator owns all room state. The zero value is not usable; create one
// with NewCoordinator.
type Coordinator struct {
	mu        sync.Mutex
	rooms     map[string]*room
	conns     map[string]*membership
	transport Transport
	logger    *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for room lifecycle and dropped events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator returns a Coordinator that emits frames through t.
func NewCoordinator(t Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms:     make(map[string]*room),
		conns:     make(map[string]*membership),
		transport: t,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch decodes one inbound frame from connID and routes it. Frames that
// cannot be decoded or name an unknown event are dropped.
func (c *Coordinator) Dispatch(connID string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Debug("dropping undecodable frame", "conn", connID, "error", err)
		return
	}

	kind := Kind(env.Event)
	if kind == KindJoinRoom {
		var req joinRequest
		if err := decodeObject(env.Data, &req); err != nil {
			c.logger.Debug("dropping malformed join", "conn", connID, "error", err)
			return
		}
		c.Join(connID, string(req.RoomID), req.DisplayName)
		return
	}

	if _, ok := relayRules[kind]; !ok {
		c.logger.Debug("dropping unknown event", "conn", connID, "event", env.Event)
		return
	}
	c.Relay(connID, kind, env.Data)
}

// Join seats connID in roomID under name. The joiner receives assigned_player
// and every member, the joiner included, receives player_joined. When the
// room already holds MaxPlayers the joiner only receives room_full.
func (c *Coordinator) Join(connID, roomID, name string) JoinResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms[roomID]
	if !ok {
		r = &room{id: roomID}
		c.rooms[roomID] = r
		c.logger.Info("room created", "room", roomID)
	}

	if len(r.participants) >= MaxPlayers {
		c.logger.Info("room full", "room", roomID, "conn", connID)
		c.emit(connID, SignalRoomFull, nil)
		return JoinResult{}
	}

	number := len(r.participants) + 1
	r.participants = append(r.participants, Participant{ConnID: connID, Name: name, Number: number})

	m, ok := c.conns[connID]
	if !ok {
		m = &membership{}
		c.conns[connID] = m
	}
	m.current = roomID
	if !slices.Contains(m.joined, roomID) {
		m.joined = append(m.joined, roomID)
	}

	c.logger.Info("player joined", "room", roomID, "conn", connID, "name", name, "player", number)

	c.emit(connID, SignalAssignedPlayer, number)
	joined := PlayerJoined{Name: name, PlayerNumber: number}
	for _, id := range r.recipients("", RoomWide) {
		c.emit(id, SignalPlayerJoined, joined)
	}

	return JoinResult{Accepted: true, PlayerNumber: number}
}

// Relay routes one gameplay event from connID and returns the number of
// connections it was delivered to. Unknown kinds, malformed payloads, a
// missing room and an unknown room all result in zero deliveries.
func (c *Coordinator) Relay(connID string, kind Kind, data json.RawMessage) int {
	rule, ok := relayRules[kind]
	if !ok {
		return 0
	}

	roomID, out, err := rule.decode(data)
	if err != nil {
		c.logger.Debug("dropping malformed event", "conn", connID, "event", kind, "error", err)
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if rule.fromSender {
		roomID = ""
		if m, ok := c.conns[connID]; ok {
			roomID = m.current
		}
	}
	if roomID == "" {
		c.logger.Debug("dropping event without room", "conn", connID, "event", kind)
		return 0
	}

	r, ok := c.rooms[roomID]
	if !ok {
		return 0
	}

	targets := r.recipients(connID, rule.audience)
	for _, id := range targets {
		c.emit(id, rule.outbound, out)
	}
	return len(targets)
}

// Disconnect removes connID from every room it was seated in and deletes
// rooms left empty. The remaining peer is not notified. Unknown connections
// are ignored.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.conns[connID]
	if !ok {
		return
	}
	delete(c.conns, connID)

	for _, roomID := range m.joined {
		r, ok := c.rooms[roomID]
		if !ok {
			continue
		}
		r.participants = slices.DeleteFunc(r.participants, func(p Participant) bool {
			return p.ConnID == connID
		})
		if len(r.participants) == 0 {
			delete(c.rooms, roomID)
			c.logger.Info("room deleted", "room", roomID)
		}
	}
}

// Participants returns a copy of the seats of roomID in join order.
func (c *Coordinator) Participants(roomID string) []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms[roomID]
	if !ok {
		return nil
	}
	return slices.Clone(r.participants)
}

// RoomOf reports the room recorded for connID by its latest successful join.
func (c *Coordinator) RoomOf(connID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.conns[connID]
	if !ok {
		return "", false
	}
	return m.current, true
}

// Stats returns the number of live rooms and seated participants.
func (c *Coordinator) Stats() (rooms, participants int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.rooms {
		participants += len(r.participants)
	}
	return len(c.rooms), participants
}

// emit must be called with c.mu held. Transport.Send does not block, so
// per-connection ordering follows the order of emit calls.
func (c *Coordinator) emit(connID, event string, data any) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		c.logger.Warn("dropping unencodable event", "conn", connID, "event", event, "error", err)
		return
	}
	c.transport.Send(connID, frame)
}

// recipients lists the member connections that should receive an event from
// sender. A connection seated twice is listed once.
func (r *room) recipients(sender string, audience Audience) []string {
	ids := make([]string, 0, len(r.participants))
	for _, p := range r.participants {
		if audience == PeerOnly && p.ConnID == sender {
			continue
		}
		if slices.Contains(ids, p.ConnID) {
			continue
		}
		ids = append(ids, p.ConnID)
	}
	return ids
}
