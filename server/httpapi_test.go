package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fightarena "github.com/arenabets/fightarena"
)

func newTestAPI(t *testing.T, a *testArena) *httptest.Server {
	t.Helper()
	hub := NewHub(slog.Disabled, a.srv.StateSnapshot)
	ts := httptest.NewServer(NewAPI(slog.Disabled, a.srv, a.db, hub).Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestStateEndpoint(t *testing.T) {
	a := newTestArena(t, func(cfg *Config) {
		cfg.BettingDuration = 500 * time.Millisecond
	})
	a.sink.waitFor(t, fightarena.EventPhaseStarted, 1)
	ts := newTestAPI(t, a)

	var snap StateSnapshot
	code := getJSON(t, ts.URL+"/api/state", &snap)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, fightarena.PhaseBetting, snap.Phase)
	assert.Equal(t, "ryu-wallet", snap.Wallets.Ryu)
	assert.Equal(t, "ken-wallet", snap.Wallets.Ken)
	assert.Empty(t, snap.Wallets.House, "house wallet is not published")
	assert.Equal(t, 0.05, snap.HouseFeeRate)
}

func TestBetEndpoint(t *testing.T) {
	a := newTestArena(t, func(cfg *Config) {
		cfg.BettingDuration = 500 * time.Millisecond
	})
	a.sink.waitFor(t, fightarena.EventPhaseStarted, 1)
	ts := newTestAPI(t, a)

	code := postJSON(t, ts.URL+"/api/bet", betRequest{
		Side: fightarena.SideRyu, Amount: 1.0, Address: "addr-a",
	}, nil)
	assert.Equal(t, http.StatusOK, code)

	// Unknown fighter.
	code = postJSON(t, ts.URL+"/api/bet", betRequest{
		Side: "BLANKA", Amount: 1.0, Address: "addr-a",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Below minimum.
	code = postJSON(t, ts.URL+"/api/bet", betRequest{
		Side: fightarena.SideKen, Amount: 0.0001, Address: "addr-a",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Missing address.
	code = postJSON(t, ts.URL+"/api/bet", betRequest{
		Side: fightarena.SideKen, Amount: 1.0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Duplicate deposit reference.
	code = postJSON(t, ts.URL+"/api/bet", betRequest{
		Side: fightarena.SideKen, Amount: 1.0, Address: "addr-b", SourceRef: "tx9:0",
	}, nil)
	assert.Equal(t, http.StatusOK, code)
	code = postJSON(t, ts.URL+"/api/bet", betRequest{
		Side: fightarena.SideKen, Amount: 1.0, Address: "addr-b", SourceRef: "tx9:0",
	}, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestBetEndpointClosedPhase(t *testing.T) {
	a := newTestArena(t, func(cfg *Config) {
		cfg.BettingDuration = 50 * time.Millisecond
		cfg.CountdownDuration = 2 * time.Second
	})
	ts := newTestAPI(t, a)

	// Wait until the countdown: the window is shut.
	a.sink.waitFor(t, fightarena.EventPhaseStarted, 2)

	code := postJSON(t, ts.URL+"/api/bet", betRequest{
		Side: fightarena.SideRyu, Amount: 1.0, Address: "addr-a",
	}, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestReportEndpoint(t *testing.T) {
	a := newTestArena(t, func(cfg *Config) {
		cfg.FrameInterval = 5 * time.Millisecond
	})
	ts := newTestAPI(t, a)

	evs := a.sink.waitFor(t, fightarena.EventPhaseStarted, 3)
	started := evs[2].Payload.(fightarena.BattleStarted)

	code := postJSON(t, ts.URL+"/api/report", reportRequest{
		Seed: started.Seed, Winner: fightarena.SideRyu,
	}, nil)
	assert.Equal(t, http.StatusOK, code)

	// Second decision is refused.
	code = postJSON(t, ts.URL+"/api/report", reportRequest{
		Seed: started.Seed, Winner: fightarena.SideKen,
	}, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestHistoryAndStatsEndpoints(t *testing.T) {
	a := newTestArena(t, nil)
	ts := newTestAPI(t, a)

	// Before any battle completes, history is an empty array, not null.
	var hist []json.RawMessage
	code := getJSON(t, ts.URL+"/api/history", &hist)
	assert.Equal(t, http.StatusOK, code)
	assert.NotNil(t, hist)

	a.sink.waitFor(t, fightarena.EventPayoutBatchComplete, 1)

	code = getJSON(t, ts.URL+"/api/history", &hist)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, hist)

	var stats map[string]any
	code = getJSON(t, ts.URL+"/api/stats", &stats)
	assert.Equal(t, http.StatusOK, code)

	// Bad limit is rejected.
	resp, err := http.Get(ts.URL + "/api/history?limit=0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
