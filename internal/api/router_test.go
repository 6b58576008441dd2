package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pokerhall/internal/coordinator"
	"pokerhall/internal/engine"
	"pokerhall/internal/store/kv"
)

// memKV is a minimal in-memory stand-in for *kv.Store, satisfying the
// coordinator's unexported kvStore interface structurally so this
// end-to-end test can drive a real Coordinator without Postgres.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// fixedRNG always returns 0, keeping shuffles deterministic for the test.
type fixedRNG struct{}

func (fixedRNG) RandomInt(max int) int { return 0 }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	coord := coordinator.NewForTesting(newMemKV(), nil, nil, nil, nil, fixedRNG{})
	router := NewRouter(coord, nil)
	return httptest.NewServer(router)
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// TestE2ECreateJoinDealAction drives a full HTTP round trip: create a
// game, join a second seat, deal the first hand, and submit one action,
// asserting the coordinator's state flows correctly through the wire
// format at every step.
func TestE2ECreateJoinDealAction(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	createResp := doJSON(t, http.MethodPost, srv.URL+"/games", createRequest{
		Settings: engine.Settings{
			StartingChips:     1000,
			SmallBlindInitial: 10,
			BigBlindInitial:   20,
			TargetGameMinutes: 60,
		},
		CreatorName: "Alice",
		CreatorPin:  "1111",
	})
	require.Equal(t, http.StatusCreated, createResp.StatusCode)
	var created struct {
		Code     string           `json:"code"`
		PlayerID string           `json:"player_id"`
		Lobby    coordinator.Lobby `json:"lobby"`
	}
	decodeJSON(t, createResp, &created)
	require.Len(t, created.Code, 6)
	require.Len(t, created.Lobby.Players, 1)

	joinResp := doJSON(t, http.MethodPost, srv.URL+"/games/"+created.Code+"/join", joinRequest{Name: "Bob", Pin: "2222"})
	require.Equal(t, http.StatusOK, joinResp.StatusCode)
	var joined struct {
		PlayerID string            `json:"player_id"`
		Lobby    coordinator.Lobby `json:"lobby"`
	}
	decodeJSON(t, joinResp, &joined)
	require.Len(t, joined.Lobby.Players, 2)

	dealResp := doJSON(t, http.MethodPost, srv.URL+"/games/"+created.Code+"/deal", seatRequest{PlayerID: created.PlayerID, Pin: "1111"})
	require.Equal(t, http.StatusOK, dealResp.StatusCode)
	var dealt engine.EngineView
	decodeJSON(t, dealResp, &dealt)
	require.True(t, dealt.HandActive)
	require.NotEmpty(t, dealt.ActionOn)

	stateResp, err := http.Get(srv.URL + "/games/" + created.Code + "/state?player_id=" + dealt.ActionOn)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, stateResp.StatusCode)
	var view engine.EngineView
	decodeJSON(t, stateResp, &view)
	require.Len(t, view.MyCards, 2)

	actionResp := doJSON(t, http.MethodPost, srv.URL+"/games/"+created.Code+"/action", actionRequest{
		PlayerID: dealt.ActionOn,
		Pin:      pinFor(dealt.ActionOn, created.PlayerID, joined.PlayerID),
		Action:   engine.KindFold,
	})
	require.Equal(t, http.StatusOK, actionResp.StatusCode)
	var afterAction engine.EngineView
	decodeJSON(t, actionResp, &afterAction)
	require.False(t, afterAction.HandActive, "folding heads-up should end the hand immediately")
	require.NotNil(t, afterAction.LastHandResult, "a concluded hand should report its result")
}

// pinFor returns whichever seat's PIN matches playerID, since the two
// seeded seats use different PINs.
func pinFor(playerID, creatorID, joinerID string) string {
	if playerID == creatorID {
		return "1111"
	}
	return "2222"
}

// TestE2EWrongPinRejected exercises the HTTP status mapping for an
// unauthorized coordinator error.
func TestE2EWrongPinRejected(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	createResp := doJSON(t, http.MethodPost, srv.URL+"/games", createRequest{
		Settings:    engine.Settings{StartingChips: 1000, SmallBlindInitial: 10, BigBlindInitial: 20},
		CreatorName: "Alice",
		CreatorPin:  "1111",
	})
	var created struct {
		Code     string `json:"code"`
		PlayerID string `json:"player_id"`
	}
	decodeJSON(t, createResp, &created)

	pauseResp := doJSON(t, http.MethodPost, srv.URL+"/games/"+created.Code+"/pause", seatRequest{PlayerID: created.PlayerID, Pin: "wrong"})
	require.Equal(t, http.StatusUnauthorized, pauseResp.StatusCode)
}

// TestE2EUnknownGameNotFound exercises the NotFound status mapping.
func TestE2EUnknownGameNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/games/NOSUCH/state?player_id=x")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
