package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidEndpoint is returned when the endpoint is not an absolute URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint url")
	// ErrSerialization is returned when the payload cannot be encoded as JSON.
	ErrSerialization = errors.New("failed to serialize report payload")
	// ErrEmptyResponseBody is returned when the transport delivers no body.
	ErrEmptyResponseBody = errors.New("empty response body")
)

// Payload is the JSON document posted to the endpoint.
type Payload struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Time      int64   `json:"time"` // epoch seconds
	Ext       string  `json:"ext"`
}

// Report holds the inputs of a single send. The zero value reports
// position (0, 0) at the current time with an empty ext.
type Report struct {
	Latitude  float64
	Longitude float64
	Time      time.Time // zero means now
	Ext       string
}

// SuccessFunc receives a non-empty response body. transportErr is advisory:
// a non-2xx status or a transport failure that still produced a body ends
// up here, not in FailureFunc.
type SuccessFunc func(body []byte, transportErr error)

// FailureFunc receives one of ErrInvalidEndpoint, ErrSerialization or
// ErrEmptyResponseBody (possibly wrapping the transport error).
type FailureFunc func(err error)

// Reporter posts location reports over an injected Transport.
type Reporter struct {
	transport Transport
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReporter creates a Reporter using the given transport.
func NewReporter(transport Transport, logger zerolog.Logger) *Reporter {
	return &Reporter{
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
}

// Send builds the payload for report and posts it to endpoint.
// Exactly one of onSuccess or onFailure is called before Send returns.
// HTTP status codes are not inspected.
func (r *Reporter) Send(ctx context.Context, endpoint string, report Report, onSuccess SuccessFunc, onFailure FailureFunc) {
	payload := r.buildPayload(report)

	target, err := parseEndpoint(endpoint)
	if err != nil {
		r.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Rejected report endpoint")
		onFailure(fmt.Errorf("%w: %v", ErrInvalidEndpoint, err))
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error().Err(err).Float64("lat", payload.Latitude).Float64("lon", payload.Longitude).
			Msg("Failed to serialize report payload")
		onFailure(fmt.Errorf("%w: %v", ErrSerialization, err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		onFailure(fmt.Errorf("%w: %v", ErrInvalidEndpoint, err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, transportErr := r.transport.Do(req)
	if len(respBody) == 0 {
		r.logger.Warn().Err(transportErr).Str("endpoint", endpoint).Msg("Report returned an empty body")
		if transportErr != nil {
			onFailure(fmt.Errorf("%w: %w", ErrEmptyResponseBody, transportErr))
			return
		}
		onFailure(ErrEmptyResponseBody)
		return
	}

	r.logger.Debug().
		Str("endpoint", endpoint).
		Float64("lat", payload.Latitude).
		Float64("lon", payload.Longitude).
		Int("response_size", len(respBody)).
		AnErr("transport_error", transportErr).
		Msg("Report sent")
	onSuccess(respBody, transportErr)
}

func (r *Reporter) buildPayload(report Report) Payload {
	ts := report.Time
	if ts.IsZero() {
		ts = r.now()
	}
	return Payload{
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Time:      ts.Unix(),
		Ext:       report.Ext,
	}
}

// parseEndpoint accepts only absolute URLs that name a host.
func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute url", endpoint)
	}
	return u, nil
}
