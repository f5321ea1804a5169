package reporter

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPost(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	return req
}

func TestHTTPTransport_Do_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := NewHTTPTransport(time.Second).Do(newPost(t, server.URL))

	assert.NoError(t, err)
	assert.Equal(t, []byte("ok"), body)
}

func TestHTTPTransport_Do_StatusErrorKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success": false}`))
	}))
	defer server.Close()

	body, err := NewHTTPTransport(time.Second).Do(newPost(t, server.URL))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "unexpected status code: 400", err.Error())
	assert.Equal(t, []byte(`{"success": false}`), body)
}

func TestHTTPTransport_Do_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	body, err := NewHTTPTransport(time.Second).Do(newPost(t, url))

	assert.Error(t, err)
	assert.Empty(t, body)
}

func TestParseEndpoint(t *testing.T) {
	_, err := parseEndpoint("https://testurl")
	assert.NoError(t, err)

	_, err = parseEndpoint("mailto:someone@example.test")
	assert.Error(t, err)
}
