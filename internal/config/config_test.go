package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{"WEBSOCKET_URL": "ws://localhost:8080/ws"})
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8080/ws", cfg.Endpoint)
	assert.Equal(t, TransportCoder, cfg.Transport)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 3*time.Second, cfg.ResultDisplayDelay)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, 50, cfg.HistoryLimit)
}

func TestParse_MissingEndpoint(t *testing.T) {
	_, err := Parse(map[string]string{})
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		vars map[string]string
	}{
		{"unknown transport", map[string]string{"TRANSPORT": "carrier-pigeon"}},
		{"zero reconnect delay", map[string]string{"RECONNECT_DELAY": "0s"}},
		{"negative result delay", map[string]string{"RESULT_DISPLAY_DELAY": "-1s"}},
		{"zero history", map[string]string{"HISTORY_LIMIT": "0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.vars["WEBSOCKET_URL"] = "ws://x"
			_, err := Parse(tc.vars)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"WEBSOCKET_URL":   "ws://x",
		"TRANSPORT":       "gorilla",
		"RECONNECT_DELAY": "250ms",
		"HTTP_ADDR":       "",
		"LOG_JSON":        "true",
	})
	require.NoError(t, err)
	assert.Equal(t, TransportGorilla, cfg.Transport)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
	assert.True(t, cfg.LogJSON)
}
