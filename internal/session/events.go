package session

import (
	"encoding/json"
	"errors"
)

// Kind names an inbound client event.
type Kind string

// Inbound events accepted from clients.
const (
	KindJoinRoom                Kind = "join_room"
	KindRouteStarted            Kind = "route_started"
	KindSackTimerUpdate         Kind = "sack_timer_update"
	KindPlaceCharacter          Kind = "place_character"
	KindAssignRoute             Kind = "assign_route"
	KindAssignZone              Kind = "assign_zone"
	KindZoneAreaAssigned        Kind = "zone_area_assigned"
	KindUpdateCharacterPosition Kind = "update_character_position"
	KindReadyToCatch            Kind = "ready_to_catch"
	KindPlayOutcome             Kind = "play_outcome"
	KindSwitchSides             Kind = "switch_sides"
	KindPlayReset               Kind = "play_reset"
	KindPlayerPositionsUpdate   Kind = "player_positions_update"
)

// Signals emitted by the coordinator itself.
const (
	SignalAssignedPlayer = "assigned_player"
	SignalPlayerJoined   = "player_joined"
	SignalRoomFull       = "room_full"
)

// Audience selects which room members receive a relayed event.
type Audience int

const (
	// PeerOnly delivers to every member except the sender.
	PeerOnly Audience = iota + 1
	// RoomWide delivers to every member, the sender included.
	RoomWide
)

func (a Audience) String() string {
	switch a {
	case PeerOnly:
		return "peer-only"
	case RoomWide:
		return "room-wide"
	default:
		return "unknown"
	}
}

// PlayerJoined is the data of the player_joined signal.
type PlayerJoined struct {
	Name         string `json:"name"`
	PlayerNumber int    `json:"playerNumber"`
}

// relayRule describes how one inbound kind is routed. When fromSender is set
// the room comes from the sender's recorded association and decode only
// produces the outbound data.
type relayRule struct {
	outbound   string
	audience   Audience
	fromSender bool
	decode     func(data json.RawMessage) (room string, out json.RawMessage, err error)
}

var errNoData = errors.New("missing event data")

var relayRules = map[Kind]relayRule{
	KindRouteStarted: {
		outbound: "route_started",
		audience: PeerOnly,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				RouteStarted json.RawMessage `json:"routeStarted"`
				RoomID       roomRef         `json:"roomId"`
			}
			if err := decodeObject(data, &p); err != nil {
				return "", nil, err
			}
			return string(p.RoomID), p.RouteStarted, nil
		},
	},
	KindSackTimerUpdate: {
		outbound: "sack_timer_update",
		audience: PeerOnly,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				SackTimeRemaining json.RawMessage `json:"sackTimeRemaining"`
				RoomID            roomRef         `json:"roomId"`
			}
			if err := decodeObject(data, &p); err != nil {
				return "", nil, err
			}
			return string(p.RoomID), p.SackTimeRemaining, nil
		},
	},
	KindPlaceCharacter: {
		outbound: "character_placed",
		audience: PeerOnly,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				Room roomRef `json:"room"`
			}
			if err := decodeObject(data, &p); err != nil {
				return "", nil, err
			}
			return string(p.Room), data, nil
		},
	},
	KindAssignRoute: {
		outbound: "route_assigned",
		audience: RoomWide,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				Room roomRef `json:"room"`
				routeAssignment
			}
			return reshape(data, &p, &p.Room, &p.routeAssignment)
		},
	},
	KindAssignZone: {
		outbound: "zone_assigned",
		audience: RoomWide,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				Room roomRef `json:"room"`
				zoneAssignment
			}
			return reshape(data, &p, &p.Room, &p.zoneAssignment)
		},
	},
	KindZoneAreaAssigned: {
		outbound: "zone_area_assigned",
		audience: RoomWide,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				Room roomRef `json:"room"`
				zoneArea
			}
			return reshape(data, &p, &p.Room, &p.zoneArea)
		},
	},
	KindUpdateCharacterPosition: {
		outbound: "character_position_updated",
		audience: PeerOnly,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				Room roomRef `json:"room"`
				characterPosition
			}
			return reshape(data, &p, &p.Room, &p.characterPosition)
		},
	},
	KindReadyToCatch: {
		outbound:   "ready_to_catch",
		audience:   PeerOnly,
		fromSender: true,
		decode:     passThrough,
	},
	KindPlayOutcome: {
		outbound: "play_outcome",
		audience: PeerOnly,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				RoomID roomRef `json:"roomId"`
				playOutcome
			}
			return reshape(data, &p, &p.RoomID, &p.playOutcome)
		},
	},
	KindSwitchSides: {
		outbound: "switch_sides",
		audience: RoomWide,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				RoomID roomRef `json:"roomId"`
				sideSwitch
			}
			return reshape(data, &p, &p.RoomID, &p.sideSwitch)
		},
	},
	KindPlayReset: {
		outbound: "play_reset",
		audience: RoomWide,
		decode: func(data json.RawMessage) (string, json.RawMessage, error) {
			var p struct {
				RoomID roomRef `json:"roomId"`
				playReset
			}
			return reshape(data, &p, &p.RoomID, &p.playReset)
		},
	},
	KindPlayerPositionsUpdate: {
		outbound:   "player_positions_updated",
		audience:   PeerOnly,
		fromSender: true,
		decode:     passThrough,
	},
}

// Outbound shapes. Fields the client left out stay out of the relayed object.

type routeAssignment struct {
	PlayerID  json.RawMessage `json:"playerId,omitempty"`
	RouteName json.RawMessage `json:"routeName,omitempty"`
}

type zoneAssignment struct {
	PlayerID            json.RawMessage `json:"playerId,omitempty"`
	ZoneType            json.RawMessage `json:"zoneType,omitempty"`
	ZoneCircle          json.RawMessage `json:"zoneCircle,omitempty"`
	AssignedOffensiveID json.RawMessage `json:"assignedOffensiveId,omitempty"`
}

type zoneArea struct {
	PlayerID   json.RawMessage `json:"playerId,omitempty"`
	ZoneType   json.RawMessage `json:"zoneType,omitempty"`
	ZoneCircle json.RawMessage `json:"zoneCircle,omitempty"`
}

type characterPosition struct {
	PlayerID json.RawMessage `json:"playerId,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
}

type playOutcome struct {
	Outcome        json.RawMessage `json:"outcome,omitempty"`
	CompletedYards json.RawMessage `json:"completedYards,omitempty"`
}

type sideSwitch struct {
	Outcome  json.RawMessage `json:"outcome,omitempty"`
	YardLine json.RawMessage `json:"yardLine,omitempty"`
}

type playReset struct {
	NewYardLine        json.RawMessage `json:"newYardLine,omitempty"`
	NewDown            json.RawMessage `json:"newDown,omitempty"`
	NewDistance        json.RawMessage `json:"newDistance,omitempty"`
	NewFirstDownStartY json.RawMessage `json:"newFirstDownStartY,omitempty"`
}

// Lookup reports the audience and outbound event name of a relay kind.
func Lookup(kind Kind) (outbound string, audience Audience, ok bool) {
	rule, ok := relayRules[kind]
	if !ok {
		return "", 0, false
	}
	return rule.outbound, rule.audience, true
}

// RelayKinds returns every kind routed through Relay.
func RelayKinds() []Kind {
	return []Kind{
		KindRouteStarted,
		KindSackTimerUpdate,
		KindPlaceCharacter,
		KindAssignRoute,
		KindAssignZone,
		KindZoneAreaAssigned,
		KindUpdateCharacterPosition,
		KindReadyToCatch,
		KindPlayOutcome,
		KindSwitchSides,
		KindPlayReset,
		KindPlayerPositionsUpdate,
	}
}

func decodeObject(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errNoData
	}
	return json.Unmarshal(data, v)
}

// reshape decodes data into payload and re-encodes the outbound part. The
// outbound value is read after decoding, so callers pass a pointer to the
// embedded shape.
func reshape(data json.RawMessage, payload any, room *roomRef, out any) (string, json.RawMessage, error) {
	if err := decodeObject(data, payload); err != nil {
		return "", nil, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", nil, err
	}
	return string(*room), raw, nil
}

func passThrough(data json.RawMessage) (string, json.RawMessage, error) {
	return "", data, nil
}

// joinRequest accepts both {"roomId": ..., "displayName": ...} and the
// positional form [roomId, displayName].
type joinRequest struct {
	RoomID      roomRef
	DisplayName string
}

func (j *joinRequest) UnmarshalJSON(b []byte) error {
	var positional []json.RawMessage
	if err := json.Unmarshal(b, &positional); err == nil {
		if len(positional) > 0 {
			if err := json.Unmarshal(positional[0], &j.RoomID); err != nil {
				return err
			}
		}
		if len(positional) > 1 {
			_ = json.Unmarshal(positional[1], &j.DisplayName)
		}
		return nil
	}

	var obj struct {
		RoomID      roomRef         `json:"roomId"`
		DisplayName json.RawMessage `json:"displayName"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	j.RoomID = obj.RoomID
	if len(obj.DisplayName) > 0 {
		_ = json.Unmarshal(obj.DisplayName, &j.DisplayName)
	}
	return nil
}
