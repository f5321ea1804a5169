package reporter

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport sends a prepared request and returns whatever body came back.
// A non-nil error does not imply an empty body.
type Transport interface {
	Do(req *http.Request) ([]byte, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// HTTPTransport is a Transport backed by net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates an HTTPTransport. A zero timeout leaves the
// request unbounded apart from its context.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do performs the request and reads the full response body.
func (t *HTTPTransport) Do(req *http.Request) ([]byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post report: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return body, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{StatusCode: resp.StatusCode}
	}
	return body, nil
}
