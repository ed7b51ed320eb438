package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gridiron-relay/internal/server"
	"github.com/Tyrowin/gridiron-relay/internal/session"
	"github.com/Tyrowin/gridiron-relay/internal/testhelpers"
)

func startRelay(t *testing.T, tweak func(*server.Config)) (*server.Hub, *httptest.Server) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{testhelpers.TestOrigin}
	if tweak != nil {
		tweak(cfg)
	}
	server.SetConfig(cfg)

	hub := server.NewHub()
	go hub.Run()
	srv := httptest.NewServer(server.SetupRoutes(hub))

	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(2 * time.Second)
		server.SetConfig(nil)
	})
	return hub, srv
}

func join(t *testing.T, conn *websocket.Conn, room, name string) {
	t.Helper()
	testhelpers.SendEvent(t, conn, string(session.KindJoinRoom), map[string]string{
		"roomId":      room,
		"displayName": name,
	})
}

func expectPlayerJoined(t *testing.T, conn *websocket.Conn, want session.PlayerJoined) {
	t.Helper()
	env := testhelpers.ExpectEvent(t, conn, session.SignalPlayerJoined)
	var got session.PlayerJoined
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, want, got)
}

func expectAssigned(t *testing.T, conn *websocket.Conn, number int) {
	t.Helper()
	env := testhelpers.ExpectEvent(t, conn, session.SignalAssignedPlayer)
	assert.JSONEq(t, strconv.Itoa(number), string(env.Data))
}

func TestRelayGameSession(t *testing.T) {
	hub, srv := startRelay(t, nil)
	coord := hub.Coordinator()

	alice := testhelpers.MustConnect(t, srv)
	join(t, alice, "abc123", "Alice")
	expectAssigned(t, alice, 1)
	expectPlayerJoined(t, alice, session.PlayerJoined{Name: "Alice", PlayerNumber: 1})

	bob := testhelpers.MustConnect(t, srv)
	join(t, bob, "abc123", "Bob")
	expectAssigned(t, bob, 2)
	expectPlayerJoined(t, bob, session.PlayerJoined{Name: "Bob", PlayerNumber: 2})
	expectPlayerJoined(t, alice, session.PlayerJoined{Name: "Bob", PlayerNumber: 2})

	carol := testhelpers.MustConnect(t, srv)
	join(t, carol, "abc123", "Carol")
	env := testhelpers.ExpectEvent(t, carol, session.SignalRoomFull)
	assert.Empty(t, env.Data)
	assert.Len(t, coord.Participants("abc123"), 2)

	t.Run("peer-only skips the sender", func(t *testing.T) {
		testhelpers.SendEvent(t, alice, "play_outcome", map[string]any{
			"outcome": "complete", "completedYards": 8, "roomId": "abc123",
		})
		env := testhelpers.ExpectEvent(t, bob, "play_outcome")
		assert.JSONEq(t, `{"outcome":"complete","completedYards":8}`, string(env.Data))

		// Frames are handled in order, so the next thing Alice sees must be
		// her own room-wide event rather than the play outcome.
		testhelpers.SendEvent(t, alice, "switch_sides", map[string]any{
			"roomId": "abc123", "outcome": "turnover", "yardLine": 35,
		})
		for _, conn := range []*websocket.Conn{alice, bob} {
			env := testhelpers.ExpectEvent(t, conn, "switch_sides")
			assert.JSONEq(t, `{"outcome":"turnover","yardLine":35}`, string(env.Data))
		}
	})

	t.Run("room derived from the sender", func(t *testing.T) {
		testhelpers.SendEvent(t, bob, "player_positions_update", map[string]any{
			"positions": []int{1, 2, 3},
		})
		env := testhelpers.ExpectEvent(t, alice, "player_positions_updated")
		assert.JSONEq(t, `{"positions":[1,2,3]}`, string(env.Data))
	})

	t.Run("rejected joiner relays nowhere", func(t *testing.T) {
		testhelpers.SendEvent(t, carol, "ready_to_catch", []string{"wr1"})
		testhelpers.SendEvent(t, alice, "assign_route", map[string]any{
			"room": "abc123", "playerId": "wr1", "routeName": "post",
		})
		// Carol holds no seat, so Bob's next frame is Alice's route.
		env := testhelpers.ExpectEvent(t, bob, "route_assigned")
		assert.JSONEq(t, `{"playerId":"wr1","routeName":"post"}`, string(env.Data))
		testhelpers.ExpectEvent(t, alice, "route_assigned")
	})

	require.NoError(t, testhelpers.CloseWebSocket(bob))
	testhelpers.Eventually(t, func() bool {
		return len(coord.Participants("abc123")) == 1
	}, 2*time.Second)
	assert.Equal(t, 1, coord.Participants("abc123")[0].Number)

	rooms, players, _ := hub.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, players)

	require.NoError(t, testhelpers.CloseWebSocket(alice))
	testhelpers.Eventually(t, func() bool {
		return coord.Participants("abc123") == nil
	}, 2*time.Second)

	testhelpers.ExpectNoEvent(t, carol, 150*time.Millisecond)
}

func TestRelayRejectsDisallowedOrigin(t *testing.T) {
	_, srv := startRelay(t, nil)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(srv.URL), header)
	if conn != nil {
		_ = conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRelayClosesOversizedFrames(t *testing.T) {
	hub, srv := startRelay(t, func(cfg *server.Config) {
		cfg.MaxMessageSize = 64
	})

	conn := testhelpers.MustConnect(t, srv)
	testhelpers.Eventually(t, func() bool {
		_, _, connections := hub.Stats()
		return connections == 1
	}, time.Second)

	testhelpers.SendEvent(t, conn, "join_room", map[string]string{
		"roomId":      strings.Repeat("x", 100),
		"displayName": "Alice",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	testhelpers.Eventually(t, func() bool {
		_, _, connections := hub.Stats()
		return connections == 0
	}, 2*time.Second)
	rooms, _, _ := hub.Stats()
	assert.Zero(t, rooms)
}

func TestRelayRateLimitsFrames(t *testing.T) {
	_, srv := startRelay(t, func(cfg *server.Config) {
		cfg.RateLimit = server.RateLimitConfig{Burst: 2, RefillInterval: time.Minute}
	})

	conn := testhelpers.MustConnect(t, srv)
	join(t, conn, "solo", "Alice")
	expectAssigned(t, conn, 1)
	testhelpers.ExpectEvent(t, conn, session.SignalPlayerJoined)

	for i := 0; i < 4; i++ {
		testhelpers.SendEvent(t, conn, "play_reset", map[string]any{"roomId": "solo", "newDown": i + 1})
	}

	env := testhelpers.ExpectEvent(t, conn, "play_reset")
	assert.JSONEq(t, `{"newDown":1}`, string(env.Data))
	testhelpers.ExpectNoEvent(t, conn, 200*time.Millisecond)
}

func TestRelayGracefulShutdown(t *testing.T) {
	hub, srv := startRelay(t, nil)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = testhelpers.MustConnect(t, srv)
	}
	join(t, conns[0], "r", "Alice")
	expectAssigned(t, conns[0], 1)

	require.NoError(t, hub.Shutdown(5*time.Second))

	for i, conn := range conns {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		t.Logf("client %d closed", i)
	}

	rooms, players, connections := hub.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, players)
	assert.Zero(t, connections)
}
