package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-mesh/internal/bracket"
	"github.com/AdamBeresnev/bracket-mesh/internal/replica"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type memoryRooms struct {
	mu     sync.Mutex
	stores map[string]*replica.Store
}

func (m *memoryRooms) get(id string) (*replica.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	if !ok {
		return nil, fmt.Errorf("room %s not found", id)
	}
	return s, nil
}

func (m *memoryRooms) Snapshot(_ context.Context, id string) (replica.Snapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return replica.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (m *memoryRooms) Merge(_ context.Context, id, peerID string, snap replica.Snapshot) (replica.Snapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return replica.Snapshot{}, err
	}
	s.Merge(snap, s.IsAuthority(peerID))
	return s.Snapshot(), nil
}

type countingRecorder struct {
	mu      sync.Mutex
	dropped map[string]int
}

func (r *countingRecorder) RelayMessage(string) {}
func (r *countingRecorder) SetRooms(int)        {}
func (r *countingRecorder) RelayDropped(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[reason]++
}

func (r *countingRecorder) count(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped[reason]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRoom() *replica.Store {
	s := replica.New(bracket.Meta{ID: "room-1", Name: "Relay Night", AdminID: "p1"}, replica.WithLogger(quietLogger()))
	s.UpsertParticipant(bracket.Participant{ID: "p1", Name: "Ann"})
	s.UpsertParticipant(bracket.Participant{ID: "p2", Name: "Bo"})
	return s
}

// startRelay runs a hub behind a test server and returns a dial function.
func startRelay(t *testing.T, rooms Rooms, opts ...Option) (*Hub, func(room, peer string) (*websocket.Conn, *http.Response, error)) {
	t.Helper()
	hub := NewHub(rooms, append([]Option{WithLogger(quietLogger())}, opts...)...)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("room"), r.URL.Query().Get("peer"))
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	base := "ws" + strings.TrimPrefix(srv.URL, "http")
	return hub, func(room, peer string) (*websocket.Conn, *http.Response, error) {
		return websocket.DefaultDialer.Dial(base+"?room="+room+"&peer="+peer, nil)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendSnapshot(t *testing.T, conn *websocket.Conn, snap replica.Snapshot) {
	t.Helper()
	data, err := encode(TypeSnapshot, snap.Meta.ID, snap)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestHub_MergesAndBroadcasts(t *testing.T) {
	room := newTestRoom()
	hub, dial := startRelay(t, &memoryRooms{stores: map[string]*replica.Store{"room-1": room}})

	a, _, err := dial("room-1", "p1")
	require.NoError(t, err)
	defer a.Close()
	b, _, err := dial("room-1", "p2")
	require.NoError(t, err)
	defer b.Close()

	for _, conn := range []*websocket.Conn{a, b} {
		first := readMessage(t, conn)
		assert.Equal(t, TypeSnapshot, first.Type)
		assert.Equal(t, "Relay Night", gjson.GetBytes(first.Payload, "meta.name").String())
	}
	require.Eventually(t, func() bool { return hub.ClientCount("room-1") == 2 }, 2*time.Second, 10*time.Millisecond)

	// b joins a spectator on its own copy and pushes it.
	peer := replica.FromSnapshot(room.Snapshot(), replica.WithLogger(quietLogger()))
	peer.UpsertParticipant(bracket.Participant{ID: "p9", Name: "Spectator"})
	sendSnapshot(t, b, peer.Snapshot())

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		require.Equal(t, TypeSnapshot, msg.Type)
		assert.Equal(t, "room-1", msg.RoomID)
		assert.Equal(t, "Spectator", gjson.GetBytes(msg.Payload, `participants.#(0=="p9").1.name`).String())
	}

	_, ok := room.Participant("p9")
	assert.True(t, ok, "node replica holds the merged roster")
}

func TestHub_UnknownRoom(t *testing.T) {
	_, dial := startRelay(t, &memoryRooms{stores: map[string]*replica.Store{}})

	_, resp, err := dial("nowhere", "p1")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHub_RejectsBadInput(t *testing.T) {
	rec := &countingRecorder{dropped: map[string]int{}}
	room := newTestRoom()
	_, dial := startRelay(t, &memoryRooms{stores: map[string]*replica.Store{"room-1": room}},
		WithRecorder(rec),
		WithRateLimit(0, 3),
	)

	conn, _, err := dial("room-1", "p2")
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)

	testCases := []struct {
		name   string
		frame  string
		reason string
	}{
		{name: "not json", frame: "{", reason: "malformed"},
		{name: "unknown type", frame: `{"type":"chat","payload":"hi"}`, reason: "unknown_type"},
		{name: "bad snapshot", frame: `{"type":"snapshot","payload":[1,2]}`, reason: "malformed"},
		{name: "over the limit", frame: `{"type":"snapshot","payload":{}}`, reason: "rate_limited"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := rec.count(tc.reason)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tc.frame)))

			msg := readMessage(t, conn)
			assert.Equal(t, TypeError, msg.Type)
			assert.Equal(t, before+1, rec.count(tc.reason))
		})
	}

	assert.Len(t, room.Participants(), 2, "nothing reached the replica")
}
