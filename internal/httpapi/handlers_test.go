package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/rps-client/internal/engine"
	"github.com/DoyleJ11/rps-client/internal/history"
	"github.com/DoyleJ11/rps-client/internal/metrics"
	"github.com/DoyleJ11/rps-client/internal/schedule"
	"github.com/DoyleJ11/rps-client/internal/session"
)

type nopSender struct{}

func (nopSender) Send([]byte) {}

type apiHarness struct {
	srv   *httptest.Server
	sess  *session.Session
	store *history.MemoryStore
}

func newAPI(t *testing.T) *apiHarness {
	t.Helper()
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	sess := session.New(context.Background(), session.Options{
		Sender:  nopSender{},
		Clock:   schedule.NewManual(),
		Metrics: met,
	})
	store := history.NewMemoryStore(10)

	srv := httptest.NewServer(SetupRoutes(Deps{
		Session:      sess,
		History:      store,
		HistoryLimit: 3,
		Gatherer:     reg,
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(sess.Shutdown)
	return &apiHarness{srv: srv, sess: sess, store: store}
}

func (h *apiHarness) toPlaying(t *testing.T) {
	t.Helper()
	h.sess.OnOpened()
	h.sess.OnMessage([]byte(`{"type":"GAME_START"}`))
	require.Eventually(t, func() bool {
		v, err := h.sess.View(context.Background())
		return err == nil && v.State.Status == engine.StatusPlaying
	}, time.Second, 5*time.Millisecond)
}

func (h *apiHarness) postMove(t *testing.T, body string) (*http.Response, moveResponse) {
	t.Helper()
	resp, err := http.Post(h.srv.URL+"/move", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var mr moveResponse
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&mr))
	}
	return resp, mr
}

func TestHealthz(t *testing.T) {
	h := newAPI(t)
	resp, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetState(t *testing.T) {
	h := newAPI(t)

	resp, err := http.Get(h.srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Type    string       `json:"type"`
		Version int          `json:"version"`
		State   engine.State `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "StateSnapshot", body.Type)
	assert.Equal(t, 0, body.Version)
	assert.Equal(t, engine.StatusConnecting, body.State.Status)
	assert.Equal(t, engine.MsgConnecting, body.State.StatusMessage)
}

func TestSubmitMove(t *testing.T) {
	h := newAPI(t)

	resp, mr := h.postMove(t, `{"move":"rock"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, mr.Accepted)
	assert.Equal(t, engine.ErrNotPlaying.Error(), mr.Error)

	h.toPlaying(t)

	resp, mr = h.postMove(t, `{"move":"rock"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, mr.Accepted)
	assert.Equal(t, engine.MoveRock, mr.State.SelectedMove)

	resp, mr = h.postMove(t, `{"move":"PAPER"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, mr.Accepted)
	assert.Equal(t, engine.ErrMoveAlreadySelected.Error(), mr.Error)
	assert.Equal(t, engine.MoveRock, mr.State.SelectedMove)
}

func TestSubmitMove_BadInput(t *testing.T) {
	h := newAPI(t)
	h.toPlaying(t)

	for name, body := range map[string]string{
		"not json":     `{"move":`,
		"unknown move": `{"move":"LIZARD"}`,
		"empty move":   `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := h.postMove(t, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	v, err := h.sess.View(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v.State.SelectedMove)
}

func TestHistory(t *testing.T) {
	h := newAPI(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	results := []engine.RoundResult{
		{Winner: engine.WinnerPlayer1, Moves: engine.RoundMoves{Player1: engine.MoveRock, Player2: engine.MoveScissors}},
		{Winner: engine.WinnerPlayer2, Moves: engine.RoundMoves{Player1: engine.MoveRock, Player2: engine.MovePaper}},
		{Winner: engine.WinnerTie, Moves: engine.RoundMoves{Player1: engine.MovePaper, Player2: engine.MovePaper}},
		{Winner: engine.WinnerPlayer1, Moves: engine.RoundMoves{Player1: engine.MoveScissors, Player2: engine.MovePaper}},
	}
	for i, res := range results {
		r := history.NewRound(res.Moves.Player1, res, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, h.store.Save(context.Background(), &r))
	}

	get := func(query string) (int, []history.Round) {
		resp, err := http.Get(h.srv.URL + "/history" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, nil
		}
		var body historyResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body.Rounds
	}

	code, rounds := get("")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, rounds, 3, "capped by the configured limit")
	assert.Equal(t, engine.OutcomeWon, rounds[0].Outcome)
	assert.Equal(t, engine.OutcomeTie, rounds[1].Outcome)
	assert.Equal(t, engine.OutcomeLost, rounds[2].Outcome)

	code, rounds = get("?limit=1")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, rounds, 1)
	assert.Equal(t, engine.MoveScissors, rounds[0].MyMove)

	code, _ = get("?limit=zero")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newAPI(t)
	h.sess.OnMessage([]byte(`garbage`))
	_, err := h.sess.View(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "rps_frames_malformed_total 1")
	assert.Contains(t, string(body), `rps_session_status{status="connecting"} 1`)
}
