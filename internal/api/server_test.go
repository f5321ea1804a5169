package api

import (
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_StartStop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	server := NewServer("127.0.0.1:0", handler, zerolog.Nop())

	require.NoError(t, server.Start())
	assert.EqualError(t, server.Start(), "control server is already running")

	resp, err := http.Get("http://" + server.Addr().String() + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	require.NoError(t, server.Stop())
	assert.EqualError(t, server.Stop(), "control server is not running")
}

func TestServer_StartBindFailure(t *testing.T) {
	first := NewServer("127.0.0.1:0", http.NotFoundHandler(), zerolog.Nop())
	require.NoError(t, first.Start())
	defer first.Stop()

	second := NewServer(first.Addr().String(), http.NotFoundHandler(), zerolog.Nop())
	assert.Error(t, second.Start())
}
