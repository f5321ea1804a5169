package services_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/benmeehan/geo-reporter/internal/constants"
	"github.com/benmeehan/geo-reporter/internal/mocks"
	"github.com/benmeehan/geo-reporter/internal/services"
	"github.com/benmeehan/geo-reporter/pkg/reporter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: bad", reporter.ErrInvalidEndpoint), constants.ReasonInvalidEndpoint},
		{fmt.Errorf("%w: NaN", reporter.ErrSerialization), constants.ReasonSerialization},
		{fmt.Errorf("%w: %w", reporter.ErrEmptyResponseBody, errors.New("refused")), constants.ReasonEmptyBody},
		{errors.New("something else"), constants.ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, services.FailureReason(tt.err))
		})
	}
}

func TestMultiDelegate(t *testing.T) {
	first := new(mocks.MockReportDelegate)
	second := new(mocks.MockReportDelegate)
	failure := errors.New("boom")

	first.On("DidReport", 1.0, 2.0, okBody).Return().Once()
	second.On("DidReport", 1.0, 2.0, okBody).Return().Once()
	first.On("DidFailToReport", 3.0, 4.0, failure).Return().Once()
	second.On("DidFailToReport", 3.0, 4.0, failure).Return().Once()

	multi := services.MultiDelegate{first, second}
	multi.DidReport(1, 2, okBody)
	multi.DidFailToReport(3, 4, failure)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestLogDelegate(t *testing.T) {
	var buf bytes.Buffer
	delegate := &services.LogDelegate{Logger: zerolog.New(&buf)}

	delegate.DidFailToReport(5, 6, fmt.Errorf("%w: bad", reporter.ErrInvalidEndpoint))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, constants.ReasonInvalidEndpoint, entry["reason"])
	assert.Equal(t, 5.0, entry["lat"])
	assert.Equal(t, 6.0, entry["lon"])

	buf.Reset()
	delegate.DidReport(5, 6, okBody)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, float64(len(okBody)), entry["response_size"])
}

// counterValue sums a counter family in the default registry, filtered by label values.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metricLoop
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetricsDelegate(t *testing.T) {
	success := map[string]string{"status": constants.ReportStatusSuccess}
	failure := map[string]string{"status": constants.ReportStatusFailure, "reason": constants.ReasonEmptyBody}

	successBefore := counterValue(t, "geo_reporter_reports_total", success)
	failureBefore := counterValue(t, "geo_reporter_reports_total", failure)
	zeroBefore := counterValue(t, "geo_reporter_zero_position_reports_total", nil)

	delegate := services.MetricsDelegate{}
	delegate.DidReport(0, 0, okBody)
	delegate.DidReport(10, 20, okBody)
	delegate.DidFailToReport(0, 0, reporter.ErrEmptyResponseBody)

	assert.Equal(t, successBefore+2, counterValue(t, "geo_reporter_reports_total", success))
	assert.Equal(t, failureBefore+1, counterValue(t, "geo_reporter_reports_total", failure))
	assert.Equal(t, zeroBefore+1, counterValue(t, "geo_reporter_zero_position_reports_total", nil))
}
